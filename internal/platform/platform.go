// Package platform defines the thin contract this loader has over firmware
// boot services: filesystem enumeration, file I/O, firmware variables, and
// reset (spec.md §4.A). It cannot call the real UEFI boot-services ABI from
// portable Go, so the contract is expressed as an interface with a real
// implementation (internal/platform/linux, efivarfs-backed) and a simulated
// one (internal/platform/simfw) used by every test in this repository.
package platform

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// NodeType mirrors the coarse EFI_DEVICE_PATH node-type taxonomy this
// loader cares about; it is not a complete device-path implementation.
type NodeType byte

const (
	NodeHardware NodeType = iota
	NodeACPI
	NodeMessaging
	NodeMedia
	NodeEnd
)

// MediaSubtypeHardDrive is the subtype value identifying a HARDDRIVE media
// node, the node spec.md §4.C.2's "same physical device" walk anchors on.
const MediaSubtypeHardDrive = 0x01

// DevicePathNode is one typed, opaque node of a device path — the Go
// rendition of walking linked EFI_DEVICE_PATH_PROTOCOL structures node by
// node (original_source/chainloader/bootload.c:device_path_eq).
type DevicePathNode struct {
	Type    NodeType
	SubType byte
	Bytes   []byte
}

// DevicePath is an ordered sequence of nodes; Go slice length stands in for
// the original's END node sentinel.
type DevicePath []DevicePathNode

// IsHardDrive reports whether n is a MEDIA/HARDDRIVE node.
func (n DevicePathNode) IsHardDrive() bool {
	return n.Type == NodeMedia && n.SubType == MediaSubtypeHardDrive
}

// SameDevice implements spec.md §4.C.2's "same physical device" predicate:
// walk both paths node-for-node, requiring agreement on type, subtype and
// bytes up to and including the first HARDDRIVE node; differences after
// that point (partition index) are irrelevant. Returns false if either path
// ends before a HARDDRIVE node is reached.
func SameDevice(a, b DevicePath) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i].Type != b[i].Type || a[i].SubType != b[i].SubType {
			return false
		}
		if len(a[i].Bytes) != len(b[i].Bytes) {
			return false
		}
		for j := range a[i].Bytes {
			if a[i].Bytes[j] != b[i].Bytes[j] {
				return false
			}
		}
		if a[i].IsHardDrive() {
			return true
		}
	}
	return false
}

// Handle is an opaque platform-assigned identifier for one enumerated
// filesystem (spec.md §3 "partition handle").
type Handle struct {
	ID            string
	DevicePath    DevicePath
	PartitionUUID uuid.UUID
}

// FileInfo is the subset of stat(2) results this loader consults.
type FileInfo struct {
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// File is an open file handle: read/write/seek/stat/close, matching the
// EFI_FILE_PROTOCOL surface spec.md §4.A names.
type File interface {
	io.ReadWriteSeeker
	io.Closer
	Stat() (FileInfo, error)
}

// ResetType selects cold vs warm reset for Platform.Reset.
type ResetType int

const (
	ResetCold ResetType = iota
	ResetWarm
)

// OsIndicationsBootToFWUI is the additive OsIndications bit requesting the
// firmware setup UI on the next reset (spec.md §4.G).
const OsIndicationsBootToFWUI uint64 = 1 << 1

// VarAttr controls firmware-variable write durability.
type VarAttr int

const (
	// VarVolatile is lost across reboot.
	VarVolatile VarAttr = iota
	// VarNonVolatile survives reboot; spec.md §4.G marks a handful of
	// slots (notably ChainLoaderBootAttempts) NV.
	VarNonVolatile
)

// Platform is the façade every other component in this repository depends
// on instead of calling firmware directly (spec.md §4.A).
type Platform interface {
	// ListHandles enumerates every simple-file-system handle firmware
	// currently exposes.
	ListHandles() ([]Handle, error)

	// SelfHandle identifies the handle this loader binary was launched
	// from.
	SelfHandle() (Handle, error)

	// Mount returns the root Dir of the hierarchical filesystem behind h.
	Mount(h Handle) (Dir, error)

	// GetVariable reads a firmware variable; ok is false if it does not
	// exist (distinct from a zero-length value).
	GetVariable(name string, namespace uuid.UUID) (data []byte, attr VarAttr, ok bool, err error)

	// SetVariable writes (or, if data is nil, deletes) a firmware
	// variable.
	SetVariable(name string, namespace uuid.UUID, data []byte, attr VarAttr) error

	// DeleteVariable removes a firmware variable; a missing variable is
	// not an error.
	DeleteVariable(name string, namespace uuid.UUID) error

	// Stall blocks for at least d, yielding to firmware as appropriate.
	Stall(d time.Duration)

	// Reset requests a system reset; if toFirmwareUI is set, additively
	// requests the firmware setup UI via OsIndications first.
	Reset(kind ResetType, toFirmwareUI bool) error
}

// Dir is a mounted filesystem's root directory handle: open files,
// recursively create directories, and stat paths without opening them.
type Dir interface {
	// Open opens path for reading (and writing, if write is true),
	// relative to this root.
	Open(path string, write bool) (File, error)

	// Stat returns file info for path without opening it.
	Stat(path string) (FileInfo, error)

	// MkdirAll creates path and any missing parents.
	MkdirAll(path string) error

	// ReadDir lists the entries of the directory at path.
	ReadDir(path string) ([]string, error)
}
