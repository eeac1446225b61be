// Package gitmeta resolves commit metadata for the run context block.
// Inside Actions the runner env is authoritative; local runs fall back to
// reading the repository directly.
package gitmeta

import (
	"os"
	"strings"

	git "github.com/go-git/go-git/v5"
)

// Info holds commit metadata for display. Fields may be empty when neither
// the CI env nor a repository is available; display code skips empty rows.
type Info struct {
	SHA    string // short (8-char) commit sha
	Branch string
}

// Resolve returns commit metadata for dir, preferring the Actions env vars.
func Resolve(dir string) Info {
	info := Info{
		SHA:    shorten(os.Getenv("GITHUB_SHA")),
		Branch: os.Getenv("GITHUB_REF_NAME"),
	}
	if info.SHA != "" {
		return info
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return info
	}
	head, err := repo.Head()
	if err != nil {
		return info
	}

	info.SHA = shorten(head.Hash().String())
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}
	return info
}

func shorten(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return strings.TrimSpace(sha)
}
