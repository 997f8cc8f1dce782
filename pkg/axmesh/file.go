package axmesh

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// Extension is the conventional file extension of mesh assets.
const Extension = ".axmesh"

// WriteFile validates m and writes it to path. Data goes to a temporary file
// in the destination directory which is renamed over path once complete, so
// path never holds a partially written asset.
func WriteFile(path string, m *Mesh) (err error) {
	if err := m.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file in %s: %w", ErrIO, dir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	if err = Encode(w, m); err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("%w: flushing %s: %w", ErrIO, tmpPath, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: syncing %s: %w", ErrIO, tmpPath, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrIO, tmpPath, err)
	}
	if err = os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", ErrIO, tmpPath, err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: renaming into %s: %w", ErrIO, path, err)
	}
	return nil
}

// ReadFile reads and decodes the mesh asset at path.
func ReadFile(path string, opts DecodeOptions) (*Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrIO, path, err)
	}
	return Decode(data, opts)
}
