package ipa

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"howett.net/plist"
)

// Descriptor is the parsed Info.plist of an application bundle
type Descriptor struct {
	Path          string // archive path of the Info.plist
	BundleID      string
	Executable    string
	DisplayName   string
	ShortVersion  string
	BundleVersion string
	MinimumOS     string

	raw map[string]interface{}
}

// ParseDescriptor parses Info.plist data (XML or binary) found at path.
// A missing or unusable CFBundleIdentifier is reported as ErrMissingIdentity.
func ParseDescriptor(data []byte, plistPath string) (*Descriptor, error) {
	info, err := parseInfoPlist(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingIdentity, plistPath, err)
	}
	return newDescriptor(info, plistPath)
}

func parseInfoPlist(data []byte) (map[string]interface{}, error) {
	var info map[string]interface{}
	_, err := plist.Unmarshal(data, &info)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plist: %w", err)
	}
	return info, nil
}

func newDescriptor(info map[string]interface{}, plistPath string) (*Descriptor, error) {
	bundleID, _ := info["CFBundleIdentifier"].(string)
	bundleID = strings.TrimSpace(bundleID)
	if bundleID == "" {
		return nil, fmt.Errorf("%w: CFBundleIdentifier not found in %s", ErrMissingIdentity, plistPath)
	}
	if !validBundleID(bundleID) {
		return nil, fmt.Errorf("%w: unusable CFBundleIdentifier %q", ErrMissingIdentity, bundleID)
	}

	d := &Descriptor{
		Path:          plistPath,
		BundleID:      bundleID,
		Executable:    stringValue(info, "CFBundleExecutable"),
		DisplayName:   firstNonEmpty(stringValue(info, "CFBundleDisplayName"), stringValue(info, "CFBundleName")),
		ShortVersion:  stringValue(info, "CFBundleShortVersionString"),
		BundleVersion: stringValue(info, "CFBundleVersion"),
		MinimumOS:     stringValue(info, "MinimumOSVersion"),
		raw:           info,
	}
	return d, nil
}

// HasKey reports whether the top-level key is present
func (d *Descriptor) HasKey(key string) bool {
	_, ok := d.raw[key]
	return ok
}

// Dir returns the archive directory holding the descriptor
func (d *Descriptor) Dir() string {
	dir := path.Dir(d.Path)
	if dir == "." {
		return ""
	}
	return dir
}

// validBundleID rejects identifiers that cannot safely name a file.
func validBundleID(id string) bool {
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func stringValue(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// lookupPath walks nested dictionaries by key
func lookupPath(m map[string]interface{}, keys ...string) (interface{}, bool) {
	var cur interface{} = m
	for _, k := range keys {
		dict, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = dict[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// firstString returns the first non-empty string of a plist array value
func firstString(v interface{}) (string, bool) {
	list, ok := v.([]interface{})
	if !ok || len(list) == 0 {
		return "", false
	}
	s, ok := list[0].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
