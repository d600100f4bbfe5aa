// Package ipa reads iOS application archives without extracting them.
//
// An IPA is a zip file whose application bundle lives under
// Payload/<Name>.app. This package validates the container, checks it for
// markers left by known repackaging tools, and parses the bundle's
// Info.plist to recover the bundle identifier and icon references.
//
// # Basic Usage
//
//	archive, err := ipa.Open(path)
//	if err != nil {
//	    return err // errors.Is(err, ipa.ErrInvalidArchive)
//	}
//	defer archive.Close()
//
//	insp, err := ipa.Inspect(archive, ipa.DefaultTamperRules())
//	if err != nil {
//	    return err // ErrUnsafeArchive or ErrMissingIdentity
//	}
//	fmt.Println(insp.Descriptor.BundleID)
package ipa
