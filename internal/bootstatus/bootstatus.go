// Package bootstatus defines the shared error taxonomy (spec §7) every
// component in steamcl returns through. Call sites wrap one of these
// sentinels with fmt.Errorf("...: %w", err) and callers compare with
// errors.Is; nothing in this repository uses panic for expected failures.
package bootstatus

import "errors"

var (
	// ErrNotFound covers a missing file, partition, protocol, or firmware
	// variable.
	ErrNotFound = errors.New("not found")

	// ErrInvalidParameter covers a bad caller-supplied argument (nil path,
	// out-of-range index, ...).
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidData covers a format violation: a bad PE header, a
	// malformed config line, an unparseable partset descriptor.
	ErrInvalidData = errors.New("invalid data")

	// ErrIO covers a read/write/stat/mount failure reported by the
	// platform.
	ErrIO = errors.New("i/o failure")

	// ErrOutOfResources covers an allocation failure or too-small buffer.
	ErrOutOfResources = errors.New("out of resources")

	// ErrAccessDenied covers a permissions failure or NV-variable write
	// rejection.
	ErrAccessDenied = errors.New("access denied")

	// ErrTimeout covers an expired wait (e.g. the menu's countdown).
	ErrTimeout = errors.New("timeout")

	// ErrVolumeCorrupted covers a storage-side fatal filesystem error.
	ErrVolumeCorrupted = errors.New("volume corrupted")

	// ErrEndOfMedia covers a short read against a file or device.
	ErrEndOfMedia = errors.New("end of media")
)
