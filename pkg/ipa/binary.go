package ipa

import (
	"bytes"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/blacktop/go-macho"
)

// BinaryInfo summarises the main executable of an application bundle
type BinaryInfo struct {
	Path          string
	Architectures []string
	Encrypted     bool     // any slice still carries FairPlay encryption
	Libraries     []string // every linked dylib, de-duplicated
	Injected      []string // linked dylibs that live inside the bundle
}

// InspectBinary parses the bundle's main executable.
func InspectBinary(a *Archive, insp *Inspection) (*BinaryInfo, error) {
	if insp.Descriptor.Executable == "" {
		return nil, fmt.Errorf("CFBundleExecutable not found in Info.plist")
	}
	execPath := path.Join(insp.Root, insp.Descriptor.Executable)
	data, err := a.ReadFile(execPath, MaxExecutableSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read executable: %w", err)
	}
	if !isMachO(data) {
		return nil, fmt.Errorf("%s is not a Mach-O binary", execPath)
	}

	info := &BinaryInfo{Path: execPath}
	libs := make(map[string]struct{})

	m, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		// Try as fat binary
		if err := inspectFat(data, info, libs); err != nil {
			return nil, err
		}
	} else {
		defer m.Close()
		inspectThin(m, info, libs)
	}

	for lib := range libs {
		info.Libraries = append(info.Libraries, lib)
		if isBundledLibrary(lib) {
			info.Injected = append(info.Injected, lib)
		}
	}
	sort.Strings(info.Libraries)
	sort.Strings(info.Injected)
	return info, nil
}

func inspectFat(data []byte, info *BinaryInfo, libs map[string]struct{}) error {
	fat, err := macho.NewFatFile(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to parse as fat binary: %w", err)
	}
	defer fat.Close()

	for i, arch := range fat.Arches {
		end := uint64(arch.Offset) + uint64(arch.Size)
		if end > uint64(len(data)) {
			return fmt.Errorf("arch %d extends past end of file", i)
		}
		m, err := macho.NewFile(bytes.NewReader(data[arch.Offset:end]))
		if err != nil {
			return fmt.Errorf("failed to parse arch %d: %w", i, err)
		}
		inspectThin(m, info, libs)
		m.Close()
	}
	return nil
}

func inspectThin(m *macho.File, info *BinaryInfo, libs map[string]struct{}) {
	info.Architectures = append(info.Architectures, m.CPU.String())
	for _, lib := range m.ImportedLibraries() {
		libs[lib] = struct{}{}
	}
	for _, load := range m.Loads {
		switch enc := load.(type) {
		case *macho.EncryptionInfo:
			if enc.CryptID != 0 {
				info.Encrypted = true
			}
		case *macho.EncryptionInfo64:
			if enc.CryptID != 0 {
				info.Encrypted = true
			}
		}
	}
}

// isBundledLibrary reports whether a load path resolves inside the app
// bundle rather than to a system library.
func isBundledLibrary(lib string) bool {
	return strings.HasPrefix(lib, "@executable_path/") ||
		strings.HasPrefix(lib, "@loader_path/") ||
		(strings.HasPrefix(lib, "@rpath/") && !strings.Contains(lib, "libswift"))
}

func isMachO(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	magic := data[:4]
	// MH_MAGIC_64 = 0xfeedfacf (little endian: cf fa ed fe)
	// MH_MAGIC    = 0xfeedface (little endian: ce fa ed fe)
	// FAT_MAGIC   = 0xcafebabe (big endian: ca fe ba be)
	// FAT_MAGIC_64 = 0xcafebabf (big endian: ca fe ba bf)
	return bytes.Equal(magic, []byte{0xcf, 0xfa, 0xed, 0xfe}) ||
		bytes.Equal(magic, []byte{0xce, 0xfa, 0xed, 0xfe}) ||
		bytes.Equal(magic, []byte{0xca, 0xfe, 0xba, 0xbe}) ||
		bytes.Equal(magic, []byte{0xca, 0xfe, 0xba, 0xbf})
}
