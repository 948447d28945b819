//go:build linux

// Package linux implements platform.Platform against a real Linux host: EFI
// variable access through efivarfs file I/O, and filesystem access through
// ordinary mount points. Grounded on cozystack-boot-to-talos/efi.go (raw
// efivarfs reads/writes via golang.org/x/sys/unix) and
// canonical-snapd/boot/setefibootvars_linux.go (GUID-suffixed
// `name-<guid>` efivarfs file naming convention).
package linux

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/steamos-efi/steamcl/internal/bootstatus"
	"github.com/steamos-efi/steamcl/internal/logger"
	"github.com/steamos-efi/steamcl/internal/platform"
)

const efivarfsRoot = "/sys/firmware/efi/efivars"

// efiVarAttrNonVolatile etc. mirror the EFI_VARIABLE_* attribute bits
// efivarfs prepends as a little-endian uint32 to every variable's file
// contents (cozystack-boot-to-talos/efi.go).
const (
	efiVarAttrNonVolatile       uint32 = 0x00000001
	efiVarAttrBootserviceAccess uint32 = 0x00000002
	efiVarAttrRuntimeAccess     uint32 = 0x00000004
)

// Linux is a platform.Platform backed by efivarfs and mounted directories.
type Linux struct {
	mu       sync.Mutex
	mounts   map[string]string // handle ID -> host mount point
	handles  []platform.Handle
	selfID   string
	efivarfs string
}

// New returns a Linux platform rooted at the given efivarfs mount (normally
// efivarfsRoot; overridable for tests run as non-root against a bind mount).
func New(efivarfsPath string) *Linux {
	if efivarfsPath == "" {
		efivarfsPath = efivarfsRoot
	}
	return &Linux{mounts: map[string]string{}, efivarfs: efivarfsPath}
}

// AddMount registers host directory dir as the mount behind handle h, the
// moral equivalent of the firmware already having mounted that simple file
// system for us.
func (l *Linux) AddMount(h platform.Handle, dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handles = append(l.handles, h)
	l.mounts[h.ID] = dir
}

// SetSelf marks which registered handle ID is this loader's own image.
func (l *Linux) SetSelf(id string) {
	l.selfID = id
}

func (l *Linux) ListHandles() ([]platform.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]platform.Handle(nil), l.handles...), nil
}

func (l *Linux) SelfHandle() (platform.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, h := range l.handles {
		if h.ID == l.selfID {
			return h, nil
		}
	}
	return platform.Handle{}, fmt.Errorf("self handle: %w", bootstatus.ErrNotFound)
}

func (l *Linux) Mount(h platform.Handle) (platform.Dir, error) {
	l.mu.Lock()
	dir, ok := l.mounts[h.ID]
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("mount %s: %w", h.ID, bootstatus.ErrNotFound)
	}
	return &hostDir{root: dir}, nil
}

func (l *Linux) Stall(d time.Duration) {
	time.Sleep(d)
}

func (l *Linux) Reset(kind platform.ResetType, toFirmwareUI bool) error {
	if toFirmwareUI {
		if err := l.setOsIndicationsBootToFWUI(); err != nil {
			logger.Logger().Warnw("failed to set OsIndications for firmware UI", "err", err)
		}
	}
	// Linux's reboot(2) does not distinguish cold/warm the way UEFI's
	// ResetSystem() does; both request LINUX_REBOOT_CMD_RESTART.
	_ = kind
	return unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART)
}

func (l *Linux) setOsIndicationsBootToFWUI() error {
	data, attr, ok, err := l.GetVariable("OsIndications", LoaderGUID)
	if err != nil {
		return err
	}
	var cur uint64
	if ok && len(data) == 8 {
		cur = binary.LittleEndian.Uint64(data)
	}
	cur |= platform.OsIndicationsBootToFWUI
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, cur)
	if !ok {
		attr = platform.VarNonVolatile
	}
	return l.SetVariable("OsIndications", LoaderGUID, buf, attr)
}

// LoaderGUID is the well-known systemd-boot loader namespace GUID,
// "4a67b082-0a4c-41cf-b6c7-440b29bb8c4f", shared per spec.md §4.G.
var LoaderGUID = uuid.MustParse("4a67b082-0a4c-41cf-b6c7-440b29bb8c4f")

func varFileName(name string, namespace uuid.UUID) string {
	return fmt.Sprintf("%s-%s", name, strings.ToLower(namespace.String()))
}

func (l *Linux) GetVariable(name string, namespace uuid.UUID) ([]byte, platform.VarAttr, bool, error) {
	path := filepath.Join(l.efivarfs, varFileName(name, namespace))
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, false, nil
		}
		return nil, 0, false, fmt.Errorf("read variable %s: %w", name, bootstatus.ErrIO)
	}
	if len(raw) < 4 {
		return nil, 0, false, fmt.Errorf("variable %s: %w", name, bootstatus.ErrInvalidData)
	}
	attrBits := binary.LittleEndian.Uint32(raw[:4])
	attr := platform.VarVolatile
	if attrBits&efiVarAttrNonVolatile != 0 {
		attr = platform.VarNonVolatile
	}
	return raw[4:], attr, true, nil
}

func (l *Linux) SetVariable(name string, namespace uuid.UUID, data []byte, attr platform.VarAttr) error {
	if data == nil {
		return l.DeleteVariable(name, namespace)
	}
	path := filepath.Join(l.efivarfs, varFileName(name, namespace))
	attrBits := efiVarAttrBootserviceAccess | efiVarAttrRuntimeAccess
	if attr == platform.VarNonVolatile {
		attrBits |= efiVarAttrNonVolatile
	}
	buf := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(buf[:4], attrBits)
	copy(buf[4:], data)

	// efivarfs rejects writes to an existing immutable variable; clear
	// the immutable attribute first if present (best-effort).
	_ = clearImmutable(path)
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("write variable %s: %w", name, bootstatus.ErrAccessDenied)
	}
	return nil
}

func (l *Linux) DeleteVariable(name string, namespace uuid.UUID) error {
	path := filepath.Join(l.efivarfs, varFileName(name, namespace))
	_ = clearImmutable(path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete variable %s: %w", name, bootstatus.ErrAccessDenied)
	}
	return nil
}

func clearImmutable(path string) error {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	attr, err := unix.IoctlGetInt(fd, unix.FS_IOC_GETFLAGS)
	if err != nil {
		return err
	}
	attr &^= unix.FS_IMMUTABLE_FL
	return unix.IoctlSetPointerInt(fd, unix.FS_IOC_SETFLAGS, attr)
}

// hostDir and hostFile adapt os.* calls to platform.Dir/platform.File.

type hostDir struct {
	root string
}

func (d *hostDir) resolve(path string) string {
	return filepath.Join(d.root, filepath.FromSlash(strings.ReplaceAll(path, `\`, "/")))
}

func (d *hostDir) Open(path string, write bool) (platform.File, error) {
	flag := os.O_RDONLY
	if write {
		flag = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(d.resolve(path), flag, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %s: %w", path, bootstatus.ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", path, bootstatus.ErrIO)
	}
	return &hostFile{f: f}, nil
}

func (d *hostDir) Stat(path string) (platform.FileInfo, error) {
	info, err := os.Stat(d.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return platform.FileInfo{}, fmt.Errorf("stat %s: %w", path, bootstatus.ErrNotFound)
		}
		return platform.FileInfo{}, fmt.Errorf("stat %s: %w", path, bootstatus.ErrIO)
	}
	return platform.FileInfo{Size: info.Size(), ModTime: info.ModTime(), IsDir: info.IsDir()}, nil
}

func (d *hostDir) MkdirAll(path string) error {
	if err := os.MkdirAll(d.resolve(path), 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, bootstatus.ErrIO)
	}
	return nil
}

func (d *hostDir) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(d.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("readdir %s: %w", path, bootstatus.ErrNotFound)
		}
		return nil, fmt.Errorf("readdir %s: %w", path, bootstatus.ErrIO)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

type hostFile struct {
	f *os.File
}

func (h *hostFile) Read(p []byte) (int, error)                 { return h.f.Read(p) }
func (h *hostFile) Write(p []byte) (int, error)                { return h.f.Write(p) }
func (h *hostFile) Seek(offset int64, whence int) (int64, error) { return h.f.Seek(offset, whence) }
func (h *hostFile) Close() error                                { return h.f.Close() }

func (h *hostFile) Stat() (platform.FileInfo, error) {
	info, err := h.f.Stat()
	if err != nil {
		return platform.FileInfo{}, fmt.Errorf("stat: %w", bootstatus.ErrIO)
	}
	return platform.FileInfo{Size: info.Size(), ModTime: info.ModTime(), IsDir: info.IsDir()}, nil
}
