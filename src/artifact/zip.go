package artifact

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ListFiles enumerates every regular file under root, returned as sorted
// paths relative to root.
func ListFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// writeZip bundles the given files (relative to root) into a temp zip and
// returns its path, size, and sha256 hex digest. The caller removes it.
func writeZip(root string, files []string) (path string, size int64, digest string, err error) {
	tmp, err := os.CreateTemp("", "kernel-artifact-*.zip")
	if err != nil {
		return "", 0, "", fmt.Errorf("creating bundle: %w", err)
	}
	path = tmp.Name()

	zw := zip.NewWriter(tmp)
	for _, rel := range files {
		if err := addZipEntry(zw, root, rel); err != nil {
			zw.Close()
			tmp.Close()
			os.Remove(path)
			return "", 0, "", err
		}
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		os.Remove(path)
		return "", 0, "", fmt.Errorf("closing bundle: %w", err)
	}

	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		os.Remove(path)
		return "", 0, "", err
	}
	size = info.Size()

	if err := tmp.Close(); err != nil {
		os.Remove(path)
		return "", 0, "", err
	}

	digest, err = sha256File(path)
	if err != nil {
		os.Remove(path)
		return "", 0, "", fmt.Errorf("hashing bundle: %w", err)
	}
	return path, size, digest, nil
}

func addZipEntry(zw *zip.Writer, root, rel string) error {
	f, err := os.Open(filepath.Join(root, rel))
	if err != nil {
		return fmt.Errorf("opening %s: %w", rel, err)
	}
	defer f.Close()

	w, err := zw.Create(filepath.ToSlash(rel))
	if err != nil {
		return fmt.Errorf("adding %s to bundle: %w", rel, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("writing %s to bundle: %w", rel, err)
	}
	return nil
}
