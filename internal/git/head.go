package git

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

const shortHashLen = 12

// Revision identifies the checked-out commit of a work tree.
type Revision struct {
	Hash   string // Full commit SHA
	Branch string // Short branch name; empty for a detached HEAD
}

// Short returns an abbreviated commit hash.
func (r Revision) Short() string {
	if len(r.Hash) <= shortHashLen {
		return r.Hash
	}
	return r.Hash[:shortHashLen]
}

// String renders the revision for the bundle preamble.
func (r Revision) String() string {
	if r.Branch == "" {
		return r.Short()
	}
	return r.Branch + "@" + r.Short()
}

// ReadHead returns the HEAD revision of the repository containing path,
// searching parent directories for the .git directory. It returns nil and no
// error when path is not inside a repository or the repository has no commits.
func ReadHead(path string) (*Revision, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	rev := &Revision{Hash: head.Hash().String()}
	if head.Name().IsBranch() {
		rev.Branch = head.Name().Short()
	}
	return rev, nil
}
