package ipa

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// TamperRules lists the structural markers left by a known repackaging
// tool. Matching is exact: a marker file must sit directly in the bundle
// root and a signature key must be a top-level Info.plist key.
type TamperRules struct {
	MarkerFiles   []string `yaml:"marker_files"`
	SignatureKeys []string `yaml:"signature_keys"`
}

// DefaultTamperRules returns the markers checked when none are configured
func DefaultTamperRules() TamperRules {
	return TamperRules{
		MarkerFiles:   []string{"CrackerName"},
		SignatureKeys: []string{"SignerIdentity"},
	}
}

// Inspection is what the tamper check hands on to later stages so the
// archive listing and descriptor are read only once.
type Inspection struct {
	Root       string // e.g. Payload/MyApp.app, empty when not found
	Names      []string
	Descriptor *Descriptor
}

// FindAppRoot returns the application bundle directory of an IPA listing.
// It is the prefix up to the first ".app" segment of the first entry that
// has one and at least two path components. Resource fork entries under
// __MACOSX/ are skipped.
func FindAppRoot(names []string) string {
	for _, n := range names {
		if strings.HasPrefix(n, "__MACOSX/") {
			continue
		}
		idx := strings.Index(n, ".app/")
		if idx < 0 {
			continue
		}
		if len(strings.Split(strings.TrimSuffix(n, "/"), "/")) < 2 {
			continue
		}
		return n[:idx+len(".app")]
	}
	return ""
}

// Inspect runs the tamper check and parses the bundle descriptor.
//
// An archive with a marker file in its bundle root is rejected before the
// descriptor is read. An archive without a recognisable bundle root falls
// through to the descriptor read, which then fails with ErrMissingIdentity.
func Inspect(a *Archive, rules TamperRules) (*Inspection, error) {
	names := a.Names()
	root := FindAppRoot(names)

	for _, marker := range rules.MarkerFiles {
		if marker == "" {
			continue
		}
		if a.Has(path.Join(root, marker)) {
			return nil, fmt.Errorf("%w: marker file %s found in %s", ErrUnsafeArchive, marker, displayRoot(root))
		}
	}

	plistPath := path.Join(root, "Info.plist")
	data, err := a.ReadFile(plistPath, MaxDescriptorSize)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, fmt.Errorf("%w: Info.plist not found in %s", ErrMissingIdentity, displayRoot(root))
		}
		return nil, fmt.Errorf("%w: %v", ErrMissingIdentity, err)
	}

	info, err := parseInfoPlist(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingIdentity, plistPath, err)
	}

	// Signature keys are checked before the identity so a descriptor
	// lacking a bundle identifier is still classified as unsafe.
	for _, key := range rules.SignatureKeys {
		if _, ok := info[key]; ok && key != "" {
			return nil, fmt.Errorf("%w: Info.plist carries %s", ErrUnsafeArchive, key)
		}
	}

	desc, err := newDescriptor(info, plistPath)
	if err != nil {
		return nil, err
	}

	return &Inspection{Root: root, Names: names, Descriptor: desc}, nil
}

func displayRoot(root string) string {
	if root == "" {
		return "archive root"
	}
	return root
}
