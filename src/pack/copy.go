// Package pack stages a build result into a stable, name-derived output
// directory for upload and publishing.
package pack

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Stage copies the artifact tree at src to "<name>-output" in the current
// working directory, replacing any previous directory of that name.
// Symbolic links are dereferenced, so the staged tree holds regular files
// only (nix results are symlink-heavy and store paths are not portable).
func Stage(src, name string) (string, error) {
	dest := name + "-output"

	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("clearing %s: %w", dest, err)
	}
	if err := copyTree(src, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// copyTree recursively copies src to dst, following symlinks. Directory
// symlinks are walked manually because filepath.WalkDir does not descend
// into them.
func copyTree(src, dst string) error {
	info, err := os.Stat(src) // follows symlinks
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	switch {
	case info.IsDir():
		if err := os.MkdirAll(dst, info.Mode().Perm()|0o700); err != nil {
			return fmt.Errorf("mkdir %s: %w", dst, err)
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return fmt.Errorf("reading %s: %w", src, err)
		}
		for _, e := range entries {
			if err := copyTree(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
				return err
			}
		}
		return nil

	case info.Mode().IsRegular():
		return copyFile(src, dst, info.Mode().Perm())

	default:
		return fmt.Errorf("%s: unsupported file type %s", src, info.Mode().Type())
	}
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}
