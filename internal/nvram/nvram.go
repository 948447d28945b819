// Package nvram implements the firmware-variable surface of spec.md §4.G:
// loader identification, the boot-attempt counter, and entry overrides,
// across the "loader" and "chainloader" namespaces. UTF-16 encode/decode
// uses golang.org/x/text/encoding/unicode, grounded on
// cozystack-boot-to-talos/efi.go's byte-oriented UTF-16LE transforms for
// firmware variables.
package nvram

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"

	"github.com/steamos-efi/steamcl/internal/bootstatus"
	"github.com/steamos-efi/steamcl/internal/platform"
)

// LoaderNamespace is the well-known systemd-boot loader variable GUID,
// shared per spec.md §4.G.
var LoaderNamespace = uuid.MustParse("4a67b082-0a4c-41cf-b6c7-440b29bb8c4f")

// ChainloaderNamespace is this loader's own private variable GUID.
var ChainloaderNamespace = uuid.MustParse("f6a8b021-3f2e-4d63-9a1a-8f2c9f6d9b10")

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func encodeUTF16(s string) ([]byte, error) {
	enc := utf16le.NewEncoder()
	b, err := enc.Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("utf16 encode: %w", bootstatus.ErrInvalidData)
	}
	// NUL-terminate, matching the original loader's C-string variable
	// convention.
	return append(b, 0, 0), nil
}

func decodeUTF16(b []byte) (string, error) {
	// Trim a single trailing NUL pair if present.
	if len(b) >= 2 && b[len(b)-2] == 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-2]
	}
	dec := utf16le.NewDecoder()
	out, err := dec.Bytes(b)
	if err != nil {
		return "", fmt.Errorf("utf16 decode: %w", bootstatus.ErrInvalidData)
	}
	return string(out), nil
}

// Store reads/writes the named slots of spec.md §4.G through a
// platform.Platform.
type Store struct {
	p platform.Platform
}

// New wraps p as an nvram.Store.
func New(p platform.Platform) *Store {
	return &Store{p: p}
}

// --- loader namespace, write-only instrumentation ---

// SetLoaderTiming records one of the LoaderTime{Init,Exec,Menu}USec slots
// as a decimal microsecond string. These are write-only diagnostics
// (spec.md §4.G: "read: never") consumed only by external tools like
// bootctl status, never by this loader itself.
func (s *Store) SetLoaderTiming(slot string, usec uint64) error {
	return s.p.SetVariable(slot, LoaderNamespace, []byte(strconv.FormatUint(usec, 10)), platform.VarVolatile)
}

// PublishIdentity writes LoaderInfo/LoaderFirmwareInfo/LoaderFirmwareType
// (UTF-16) and LoaderFeatures (64-bit bitmask), once at orchestrator
// startup (spec.md §4.H step 4).
func (s *Store) PublishIdentity(info, firmwareInfo, firmwareType string, features uint64) error {
	for slot, v := range map[string]string{
		"LoaderInfo":         info,
		"LoaderFirmwareInfo": firmwareInfo,
		"LoaderFirmwareType": firmwareType,
	} {
		enc, err := encodeUTF16(v)
		if err != nil {
			return err
		}
		if err := s.p.SetVariable(slot, LoaderNamespace, enc, platform.VarVolatile); err != nil {
			return fmt.Errorf("publish %s: %w", slot, err)
		}
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, features)
	return s.p.SetVariable("LoaderFeatures", LoaderNamespace, buf, platform.VarVolatile)
}

// SetDevicePartUUID writes LoaderDevicePartUUID (UTF-16 UUID).
func (s *Store) SetDevicePartUUID(id uuid.UUID) error {
	enc, err := encodeUTF16(id.String())
	if err != nil {
		return err
	}
	return s.p.SetVariable("LoaderDevicePartUUID", LoaderNamespace, enc, platform.VarVolatile)
}

// entryName is the `auto-bootconf-<uuid>` form spec.md §4.G uses for
// LoaderEntries/Default/Selected.
func entryName(id uuid.UUID) string {
	return "auto-bootconf-" + strings.ToLower(id.String())
}

// SetEntries writes LoaderEntries as concatenated NUL-terminated UTF-16
// `auto-bootconf-<uuid>` strings, one per discovered candidate.
func (s *Store) SetEntries(ids []uuid.UUID) error {
	var buf []byte
	for _, id := range ids {
		enc, err := encodeUTF16(entryName(id))
		if err != nil {
			return err
		}
		buf = append(buf, enc...)
	}
	return s.p.SetVariable("LoaderEntries", LoaderNamespace, buf, platform.VarVolatile)
}

// SetEntryDefault writes LoaderEntryDefault at handoff time.
func (s *Store) SetEntryDefault(id uuid.UUID) error {
	enc, err := encodeUTF16(entryName(id))
	if err != nil {
		return err
	}
	return s.p.SetVariable("LoaderEntryDefault", LoaderNamespace, enc, platform.VarVolatile)
}

// SetEntrySelected writes LoaderEntrySelected at handoff time.
func (s *Store) SetEntrySelected(id uuid.UUID) error {
	enc, err := encodeUTF16(entryName(id))
	if err != nil {
		return err
	}
	return s.p.SetVariable("LoaderEntrySelected", LoaderNamespace, enc, platform.VarVolatile)
}

// ReadOneShot reads and deletes LoaderEntryOneShot atomically with the
// read (spec.md §4.D "one-shot override", §8 property 6). ok is false if
// the variable was absent; a present value that does not parse as a UUID
// yields (uuid.Nil, true).
func (s *Store) ReadOneShot() (id uuid.UUID, ok bool, err error) {
	data, _, present, err := s.p.GetVariable("LoaderEntryOneShot", LoaderNamespace)
	if err != nil {
		return uuid.UUID{}, false, fmt.Errorf("read one-shot: %w", err)
	}
	if !present {
		return uuid.UUID{}, false, nil
	}
	if delErr := s.p.DeleteVariable("LoaderEntryOneShot", LoaderNamespace); delErr != nil {
		return uuid.UUID{}, false, fmt.Errorf("delete one-shot: %w", delErr)
	}
	raw, decErr := decodeUTF16(data)
	if decErr != nil {
		return uuid.UUID{}, false, decErr
	}
	raw = strings.TrimPrefix(raw, "auto-")
	raw = strings.TrimPrefix(raw, "bootconf-")
	parsed, parseErr := uuid.Parse(raw)
	if parseErr != nil {
		return uuid.Nil, true, nil // present but unparsable: uuid.Nil matches no candidate, so the caller treats it as non-matching
	}
	return parsed, true, nil
}

// ReadConfigTimeout reads LoaderConfigTimeout (default 5 if unset,
// spec.md §4.D timeout policy table).
func (s *Store) ReadConfigTimeout() (int, error) {
	return s.readTimeout("LoaderConfigTimeout", 5, false)
}

// ReadConfigTimeoutOneShot reads LoaderConfigTimeoutOneShot, deleting it on
// read (spec.md §4.G).
func (s *Store) ReadConfigTimeoutOneShot(fallback int) (int, error) {
	return s.readTimeout("LoaderConfigTimeoutOneShot", fallback, true)
}

func (s *Store) readTimeout(slot string, fallback int, deleteOnRead bool) (int, error) {
	data, _, ok, err := s.p.GetVariable(slot, LoaderNamespace)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", slot, err)
	}
	if deleteOnRead && ok {
		if err := s.p.DeleteVariable(slot, LoaderNamespace); err != nil {
			return 0, fmt.Errorf("delete %s: %w", slot, err)
		}
	}
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fallback, nil
	}
	return n, nil
}

// --- chainloader namespace, written at handoff ---

// SetChainloaderEntry writes ChainLoaderDevicePartUUID,
// ChainLoaderImageIdentifier, and ChainLoaderEntryFlags at handoff.
func (s *Store) SetChainloaderEntry(partUUID uuid.UUID, imageID string, entryFlags uint64) error {
	encUUID, err := encodeUTF16(partUUID.String())
	if err != nil {
		return err
	}
	if err := s.p.SetVariable("ChainLoaderDevicePartUUID", ChainloaderNamespace, encUUID, platform.VarVolatile); err != nil {
		return fmt.Errorf("set chainloader part uuid: %w", err)
	}
	encID, err := encodeUTF16(imageID)
	if err != nil {
		return err
	}
	if err := s.p.SetVariable("ChainLoaderImageIdentifier", ChainloaderNamespace, encID, platform.VarVolatile); err != nil {
		return fmt.Errorf("set chainloader image id: %w", err)
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, entryFlags)
	if err := s.p.SetVariable("ChainLoaderEntryFlags", ChainloaderNamespace, buf, platform.VarVolatile); err != nil {
		return fmt.Errorf("set chainloader entry flags: %w", err)
	}
	return nil
}

// IncrementBootAttempts atomically increments ChainLoaderBootAttempts
// (non-volatile, read-modify-write) and returns the new value. Handoff
// calls this *before* transferring control so a crash during stage-two
// still records the attempt (spec.md §4.F step 5, §5 ordering guarantees).
func (s *Store) IncrementBootAttempts() (uint64, error) {
	data, _, ok, err := s.p.GetVariable("ChainLoaderBootAttempts", ChainloaderNamespace)
	if err != nil {
		return 0, fmt.Errorf("read boot attempts: %w", err)
	}
	var cur uint64
	if ok && len(data) == 8 {
		cur = binary.LittleEndian.Uint64(data)
	}
	cur++
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, cur)
	if err := s.p.SetVariable("ChainLoaderBootAttempts", ChainloaderNamespace, buf, platform.VarNonVolatile); err != nil {
		return 0, fmt.Errorf("write boot attempts: %w", err)
	}
	return cur, nil
}

// SetOsIndicationsBootToFWUI additively requests the firmware setup UI on
// the next reset (spec.md §4.G).
func (s *Store) SetOsIndicationsBootToFWUI() error {
	data, attr, ok, err := s.p.GetVariable("OsIndications", LoaderNamespace)
	if err != nil {
		return fmt.Errorf("read OsIndications: %w", err)
	}
	var cur uint64
	if ok && len(data) == 8 {
		cur = binary.LittleEndian.Uint64(data)
	}
	cur |= platform.OsIndicationsBootToFWUI
	if !ok {
		attr = platform.VarNonVolatile
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, cur)
	return s.p.SetVariable("OsIndications", LoaderNamespace, buf, attr)
}
