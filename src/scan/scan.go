// Package scan checks a to-be-published tree for leaked credentials using
// the gitleaks default ruleset. Publishing a kernel to a public hub with an
// embedded token is unrecoverable, so critical hits block distribution.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
	"golang.org/x/sync/semaphore"
)

// Finding is one detected secret occurrence.
type Finding struct {
	File    string // path relative to the scanned root
	Line    int    // 1-based
	RuleID  string
	Message string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s:%d: %s (%s)", f.File, f.Line, f.Message, f.RuleID)
}

// Scanner runs gitleaks detection over files.
type Scanner struct {
	detector *detect.Detector
}

// New creates a Scanner with the gitleaks default config.
func New() (*Scanner, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("initializing secret detector: %w", err)
	}
	return &Scanner{detector: d}, nil
}

// ScanDir scans every regular file under root with bounded concurrency and
// returns all findings, ordered by file then line.
func (s *Scanner) ScanDir(ctx context.Context, root string) ([]Finding, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating %s: %w", root, err)
	}

	sem := semaphore.NewWeighted(int64(runtime.NumCPU() * 2))

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		findings []Finding
		firstErr error
	)

	for _, path := range paths {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(path string) {
			defer sem.Release(1)
			defer wg.Done()

			ff, err := s.scanFile(root, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
				return
			}
			findings = append(findings, ff...)
		}(path)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		return findings[i].Line < findings[j].Line
	})
	return findings, nil
}

func (s *Scanner) scanFile(root, path string) ([]Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	hits := s.detector.DetectBytes(data)
	if len(hits) == 0 {
		return nil, nil
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	findings := make([]Finding, 0, len(hits))
	for _, h := range hits {
		findings = append(findings, Finding{
			File:    rel,
			Line:    h.StartLine + 1, // gitleaks is 0-indexed
			RuleID:  h.RuleID,
			Message: h.Description,
		})
	}
	return findings, nil
}
