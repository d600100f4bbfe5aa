package ipa

import (
	"path"
	"strings"
)

// IconRef is an icon file reference taken from the descriptor
type IconRef struct {
	Source string // descriptor key the reference came from
	Name   string // file name as written, often without extension or scale suffix
	Path   string // archive path when the reference names a file directly
}

type iconStrategy func(d *Descriptor) (IconRef, bool)

// iconStrategies are tried in order; the first hit wins.
var iconStrategies = []iconStrategy{
	primaryIconFiles("CFBundleIcons"),
	flatIconFiles,
	primaryIconFiles("CFBundleIcons~ipad"),
	singleIconFile,
}

// primaryIconFiles reads <key>.CFBundlePrimaryIcon.CFBundleIconFiles[0]
func primaryIconFiles(key string) iconStrategy {
	return func(d *Descriptor) (IconRef, bool) {
		v, ok := lookupPath(d.raw, key, "CFBundlePrimaryIcon", "CFBundleIconFiles")
		if !ok {
			return IconRef{}, false
		}
		name, ok := firstString(v)
		if !ok {
			return IconRef{}, false
		}
		return IconRef{Source: key + ".CFBundlePrimaryIcon.CFBundleIconFiles", Name: name}, true
	}
}

// flatIconFiles reads the legacy top-level CFBundleIconFiles list
func flatIconFiles(d *Descriptor) (IconRef, bool) {
	name, ok := firstString(d.raw["CFBundleIconFiles"])
	if !ok {
		return IconRef{}, false
	}
	return IconRef{Source: "CFBundleIconFiles", Name: name, Path: path.Join(d.Dir(), name)}, true
}

func singleIconFile(d *Descriptor) (IconRef, bool) {
	name := stringValue(d.raw, "CFBundleIconFile")
	if name == "" {
		return IconRef{}, false
	}
	return IconRef{Source: "CFBundleIconFile", Name: name, Path: path.Join(d.Dir(), name)}, true
}

// IconRef returns the highest priority icon reference, if any
func (d *Descriptor) IconRef() (IconRef, bool) {
	for _, strategy := range iconStrategies {
		if ref, ok := strategy(d); ok {
			return ref, true
		}
	}
	return IconRef{}, false
}

// IconEntry maps an icon reference to an entry in names. An exact path
// match wins; otherwise entries under root whose base name starts with the
// reference are ranked, preferring files directly in the bundle, PNGs and
// larger scale suffixes.
func IconEntry(names []string, root string, ref IconRef) (string, bool) {
	if ref.Path != "" {
		for _, n := range names {
			if n == ref.Path {
				return n, true
			}
		}
	}

	stem := strings.TrimSuffix(path.Base(ref.Name), ".png")
	if stem == "" || stem == "." {
		return "", false
	}
	prefix := ""
	if root != "" {
		prefix = root + "/"
	}

	best, bestScore := "", -1
	for _, n := range names {
		if !strings.HasPrefix(n, prefix) || strings.HasSuffix(n, "/") {
			continue
		}
		base := path.Base(n)
		if !strings.HasPrefix(base, stem) {
			continue
		}
		if score := iconScore(strings.TrimPrefix(n, prefix), base); score > bestScore {
			best, bestScore = n, score
		}
	}
	return best, bestScore >= 0
}

func iconScore(rel, base string) int {
	score := 0
	if !strings.Contains(rel, "/") {
		score += 100
	}
	if strings.HasSuffix(base, ".png") {
		score += 10
	}
	switch {
	case strings.Contains(base, "@3x"):
		score += 3
	case strings.Contains(base, "@2x"):
		score += 2
	}
	return score
}
