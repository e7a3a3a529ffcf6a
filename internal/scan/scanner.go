package scan

import (
	"cmp"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/requireconcat/internal/logfields"
)

// Record describes one scanned source file.
type Record struct {
	ID      string    // Logical module id
	Path    string    // Absolute path to the file
	ModTime time.Time // Last modification time, used for change detection
}

// Scanner walks source trees. The zero value is ready to use.
type Scanner struct {
	// Concurrency bounds the goroutines per directory (0 = 4 × NumCPU).
	Concurrency int
}

// NewScanner creates a scanner with the default per-directory fan-out.
func NewScanner() *Scanner {
	return &Scanner{}
}

type collector struct {
	mu      sync.Mutex
	records []Record
}

func (c *collector) add(r Record) {
	c.mu.Lock()
	c.records = append(c.records, r)
	c.mu.Unlock()
}

// Scan returns a Record for every regular file below root, sorted by id.
func (s *Scanner) Scan(ctx context.Context, root string) ([]Record, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, scanFailure(ErrRootUnreadable, err, root)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, scanFailure(ErrRootUnreadable, err, abs)
	}
	if !info.IsDir() {
		return nil, scanFailure(ErrRootUnreadable, fs.ErrInvalid, abs)
	}

	c := &collector{}
	if err := s.walkDir(ctx, abs, "", c); err != nil {
		return nil, err
	}

	records := c.records
	slices.SortFunc(records, func(a, b Record) int {
		if n := cmp.Compare(a.ID, b.ID); n != 0 {
			return n
		}
		return cmp.Compare(a.Path, b.Path)
	})
	for i := 1; i < len(records); i++ {
		if records[i].ID == records[i-1].ID {
			return nil, ErrAmbiguousModuleID.
				WithContext("id", records[i].ID).
				WithContext("first", records[i-1].Path).
				WithContext("second", records[i].Path)
		}
	}

	slog.Debug("Scanned source tree", logfields.Root(abs), logfields.Count(len(records)))
	return records, nil
}

// walkDir lists dir and settles all of its children before returning.
func (s *Scanner) walkDir(ctx context.Context, dir, prefix string, c *collector) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return scanFailure(ErrReadDirFailed, err, dir)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit())
	for _, entry := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			full := filepath.Join(dir, entry.Name())
			info, err := os.Stat(full)
			if err != nil {
				return scanFailure(ErrStatFailed, err, full)
			}

			if info.IsDir() {
				// Symlinked directories are not followed, so link cycles cannot recurse forever.
				if entry.Type()&fs.ModeSymlink != 0 {
					slog.Debug("Skipping symlinked directory", logfields.Path(full))
					return nil
				}
				return s.walkDir(gctx, full, prefix+"/"+entry.Name(), c)
			}
			if !info.Mode().IsRegular() {
				return nil
			}

			c.add(Record{
				ID:      ModuleID(prefix, entry.Name()),
				Path:    full,
				ModTime: info.ModTime(),
			})
			return nil
		})
	}
	return g.Wait()
}

func (s *Scanner) limit() int {
	if s.Concurrency > 0 {
		return s.Concurrency
	}
	return 4 * runtime.NumCPU()
}
