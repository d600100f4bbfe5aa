package ipa

import "errors"

var (
	// ErrInvalidArchive means the file is not a readable zip container.
	ErrInvalidArchive = errors.New("invalid archive")

	// ErrUnsafeArchive means the archive carries a repackaging marker.
	ErrUnsafeArchive = errors.New("unsafe archive")

	// ErrMissingIdentity means no usable bundle identifier could be read.
	ErrMissingIdentity = errors.New("missing bundle identifier")

	// ErrEntryNotFound is returned by ReadFile for names not in the archive.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrEntryTooLarge is returned by ReadFile when an entry exceeds its cap.
	ErrEntryTooLarge = errors.New("entry too large")
)
