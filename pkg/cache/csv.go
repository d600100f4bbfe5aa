package cache

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aluedeke/go-appfeed/pkg/catalog"
)

var csvHeader = []string{"name", "bundleId", "genre"}

// CSVStorage keeps records in a name,bundleId,genre file
type CSVStorage struct {
	path string
}

// NewCSVStorage returns storage backed by the file at path
func NewCSVStorage(path string) *CSVStorage {
	return &CSVStorage{path: path}
}

// Load reads all records. A missing file is an empty cache. Files
// without a genre column load with GenreApp.
func (s *CSVStorage) Load(_ context.Context) ([]Record, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	nameCol, ok1 := cols["name"]
	idCol, ok2 := cols["bundleId"]
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("cache %s: header must contain name and bundleId", s.path)
	}
	genreCol, hasGenre := cols["genre"]

	var records []Record
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read cache: %w", err)
		}
		if nameCol >= len(row) || idCol >= len(row) {
			return nil, fmt.Errorf("cache %s line %d: too few columns", s.path, line)
		}
		rec := Record{Name: row[nameCol], BundleID: row[idCol], Genre: catalog.GenreApp}
		if hasGenre && genreCol < len(row) {
			g, err := catalog.ParseGenre(row[genreCol])
			if err != nil {
				return nil, fmt.Errorf("cache %s line %d: %w", s.path, line, err)
			}
			rec.Genre = g
		}
		records = append(records, rec)
	}
	return records, nil
}

// Save rewrites the file in full
func (s *CSVStorage) Save(_ context.Context, records []Record) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return err
	}
	for _, rec := range records {
		if err := w.Write([]string{rec.Name, rec.BundleID, strconv.Itoa(int(rec.Genre))}); err != nil {
			f.Close()
			return fmt.Errorf("failed to write cache: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close cache: %w", err)
	}
	return os.Rename(tmp, s.path)
}
