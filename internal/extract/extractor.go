package extract

import (
	"context"
	"os"
	"regexp"

	"golang.org/x/text/unicode/norm"

	ferrors "git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
	"git.home.luguber.info/inful/requireconcat/internal/scan"
)

// DefaultCallToken is the function name whose calls are treated as references.
const DefaultCallToken = "require"

// ErrReadFailed indicates a scanned module could not be read.
var ErrReadFailed = ferrors.ScanError("failed to read module source").Build()

// Module is a scanned record together with what was derived from its text.
type Module struct {
	Record scan.Record
	Deps   []string // Referenced ids in textual order, duplicates kept
	Chunk  string   // Rendered code chunk
}

// Extractor matches references for one call token.
type Extractor struct {
	token   string
	pattern *regexp.Regexp
}

// New creates an extractor for token. An empty token selects DefaultCallToken.
func New(token string) *Extractor {
	if token == "" {
		token = DefaultCallToken
	}
	return &Extractor{
		token:   token,
		pattern: compilePattern(token),
	}
}

// Token returns the call token the extractor matches.
func (e *Extractor) Token() string {
	return e.token
}

func compilePattern(token string) *regexp.Regexp {
	boundary := ""
	if isWordByte(token[0]) {
		boundary = `\b`
	}
	// RE2 has no backreferences, so each quote style is its own alternative.
	return regexp.MustCompile(boundary + regexp.QuoteMeta(token) +
		`\s*\(\s*(?:'([^'\r\n]*)'|"([^"\r\n]*)")\s*\)`)
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// References returns every id referenced in text, in order of appearance.
// Ids are NFC-normalized to match the ids the scanner assigns to file names.
func (e *Extractor) References(text string) []string {
	matches := e.pattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		ref := m[1]
		if ref == "" {
			ref = m[2]
		}
		refs = append(refs, norm.NFC.String(ref))
	}
	return refs
}

// Extract derives the references and the rendered chunk for rec.
func (e *Extractor) Extract(rec scan.Record, text string) Module {
	return Module{
		Record: rec,
		Deps:   e.References(text),
		Chunk:  RenderChunk(rec.ID, rec.Path, text),
	}
}

// ReadModule reads rec's file. The file is read once per pipeline run.
func ReadModule(ctx context.Context, rec scan.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(rec.Path)
	if err != nil {
		return "", ferrors.WrapError(err, ErrReadFailed.Category(), ErrReadFailed.Message()).
			WithRetry(ErrReadFailed.RetryStrategy()).
			WithContext("path", rec.Path).
			WithContext("module_id", rec.ID).
			Build()
	}
	return string(data), nil
}
