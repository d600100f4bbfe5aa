// Package feed assembles and writes the apps.json document.
package feed

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

const schemaID = "inmemory://appfeed/schema.json"

// App is one application version in the feed
type App struct {
	Name                 string `json:"name"`
	BundleIdentifier     string `json:"bundleIdentifier"`
	Version              string `json:"version"`
	VersionDate          string `json:"versionDate"`
	Size                 int64  `json:"size"`
	DownloadURL          string `json:"downloadURL"`
	DeveloperName        string `json:"developerName"`
	LocalizedDescription string `json:"localizedDescription"`
	IconURL              string `json:"iconURL"`
	Type                 int    `json:"type"`
}

// Document is the feed file. Top-level keys other than "apps" are kept
// as they were read.
type Document struct {
	Apps  []App
	extra map[string]json.RawMessage
}

// Load reads a feed document; a missing file yields an empty document
func Load(path string) (*Document, error) {
	doc := &Document{extra: map[string]json.RawMessage{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}

	if err := json.Unmarshal(data, &doc.extra); err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	if raw, ok := doc.extra["apps"]; ok {
		if err := json.Unmarshal(raw, &doc.Apps); err != nil {
			return nil, fmt.Errorf("failed to parse feed apps: %w", err)
		}
		delete(doc.extra, "apps")
	}
	return doc, nil
}

// Marshal encodes the document with four space indentation
func (d *Document) Marshal() ([]byte, error) {
	out := make(map[string]interface{}, len(d.extra)+1)
	for k, v := range d.extra {
		out[k] = v
	}
	apps := d.Apps
	if apps == nil {
		apps = []App{}
	}
	out["apps"] = apps

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("failed to encode feed: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate checks encoded feed data against the feed schema
func Validate(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaID, bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(schemaID)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := compiled.Validate(payload); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// Save validates the document and writes it to path
func (d *Document) Save(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	if err := Validate(data); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create feed directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write feed: %w", err)
	}
	return os.Rename(tmp, path)
}
