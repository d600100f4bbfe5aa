// Package ipatest builds small IPA archives for tests.
package ipatest

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"howett.net/plist"
)

// Entry is one file in a test archive
type Entry struct {
	Name string
	Data []byte
}

// Write creates a zip archive named name in a temp directory and returns
// its path. Entries are written in the order given.
func Write(t *testing.T, name string, entries ...Entry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, e := range entries {
		fw, err := w.Create(e.Name)
		if err != nil {
			t.Fatalf("failed to add %s: %v", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			t.Fatalf("failed to write %s: %v", e.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to finish archive: %v", err)
	}
	return path
}

// Plist encodes v as an XML property list
func Plist(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := plist.MarshalIndent(v, plist.XMLFormat, "\t")
	if err != nil {
		t.Fatalf("failed to marshal plist: %v", err)
	}
	return data
}

// App returns the entries of a minimal bundle at Payload/<app>.app with
// the given Info.plist values plus any extra files, which are named
// relative to the bundle root.
func App(t *testing.T, app string, info map[string]interface{}, extra map[string][]byte) []Entry {
	t.Helper()
	root := "Payload/" + app + ".app/"
	entries := []Entry{
		{Name: "Payload/"},
		{Name: root},
		{Name: root + "Info.plist", Data: Plist(t, info)},
	}
	names := make([]string, 0, len(extra))
	for n := range extra {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		entries = append(entries, Entry{Name: root + n, Data: extra[n]})
	}
	return entries
}
