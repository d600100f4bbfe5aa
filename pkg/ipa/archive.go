package ipa

import (
	"archive/zip"
	"fmt"
	"io"
)

// Read limits for entries pulled into memory.
const (
	MaxDescriptorSize = 8 << 20
	MaxIconSize       = 16 << 20
	MaxExecutableSize = 512 << 20
)

// Archive is a read-only view over an IPA file
type Archive struct {
	path  string
	r     *zip.ReadCloser
	names []string
	files map[string]*zip.File
}

// Open validates the archive at path and indexes its entries. Only the
// central directory is read; a file that is not a zip container fails with
// ErrInvalidArchive before any entry is opened.
func Open(path string) (*Archive, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, path, err)
	}

	a := &Archive{
		path:  path,
		r:     r,
		names: make([]string, 0, len(r.File)),
		files: make(map[string]*zip.File, len(r.File)),
	}
	for _, f := range r.File {
		a.names = append(a.names, f.Name)
		// first entry wins for duplicated names
		if _, dup := a.files[f.Name]; !dup {
			a.files[f.Name] = f
		}
	}
	return a, nil
}

// Close releases the underlying file handle
func (a *Archive) Close() error {
	if a == nil || a.r == nil {
		return nil
	}
	err := a.r.Close()
	a.r = nil
	return err
}

// Path returns the file the archive was opened from
func (a *Archive) Path() string {
	return a.path
}

// Names returns the entry names in archive order
func (a *Archive) Names() []string {
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

// Has reports whether an entry with the exact name exists
func (a *Archive) Has(name string) bool {
	_, ok := a.files[name]
	return ok
}

// ReadFile returns the decompressed contents of one entry, refusing
// anything larger than limit bytes.
func (a *Archive) ReadFile(name string, limit int64) ([]byte, error) {
	f, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	if f.FileInfo().IsDir() {
		return nil, fmt.Errorf("%s is a directory", name)
	}
	if limit > 0 && f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrEntryTooLarge, name, f.UncompressedSize64)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer rc.Close()

	// header sizes can lie
	var src io.Reader = rc
	if limit > 0 {
		src = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, name)
	}
	return data, nil
}
