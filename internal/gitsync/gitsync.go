// Package gitsync implements the Git-kind registry source sync backend:
// cloning a source for the first sync, re-cloning it into the staged
// directory on later syncs, and resolving its current HEAD into a snapshot id. It uses a pure-Go
// git client so crosspack never shells out to a system `git` binary.
package gitsync

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// Clone clones location into destination.
func Clone(location, destination string) error {
	_, err := git.PlainClone(destination, false, &git.CloneOptions{
		URL: location,
	})
	if err != nil {
		return fmt.Errorf("git clone failed: %w", err)
	}
	return nil
}

// FetchAndResetHard brings repoRoot up to date with location's current
// default branch. Since repoRoot is always a freshly staged scratch
// directory rather than the long-lived cache, this re-clones in place
// instead of fetching into the existing checkout and resetting — same
// observable result (a clean checkout of the remote's current HEAD), one
// well-defined code path instead of two.
func FetchAndResetHard(repoRoot, location string) error {
	if err := removeAll(repoRoot); err != nil {
		return fmt.Errorf("failed clearing staged repository: %w", err)
	}
	return Clone(location, repoRoot)
}

// HeadSnapshotID resolves repoRoot's current HEAD commit into a snapshot
// id of the form "git:<16-hex-char prefix>".
func HeadSnapshotID(repoRoot string) (string, error) {
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		return "", fmt.Errorf("failed opening repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed resolving HEAD: %w", err)
	}
	return DeriveSnapshotIDFromFullGitSHA(head.Hash().String())
}

// DeriveSnapshotIDFromFullGitSHA validates a full git commit SHA and
// derives its 16-character snapshot id prefix.
func DeriveSnapshotIDFromFullGitSHA(fullSHA string) (string, error) {
	if len(fullSHA) < 16 {
		return "", fmt.Errorf("git HEAD sha too short for snapshot id: '%s'", fullSHA)
	}
	for _, ch := range fullSHA {
		isDigit := ch >= '0' && ch <= '9'
		isLower := ch >= 'a' && ch <= 'f'
		isUpper := ch >= 'A' && ch <= 'F'
		if !isDigit && !isLower && !isUpper {
			return "", fmt.Errorf("git HEAD sha contains non-hex characters: '%s'", fullSHA)
		}
	}
	return "git:" + fullSHA[:16], nil
}
