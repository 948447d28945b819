// Package dirfs is a portable (non-Linux-specific) platform.Platform
// backed by ordinary host directories, standing in for mounted firmware
// filesystems. It has no firmware-variable backing (GetVariable/SetVariable
// are served from an in-memory map) and exists solely for steamclctl,
// which runs discovery/validation against a plain directory tree outside
// of boot services — the portable counterpart to internal/platform/linux's
// efivarfs-backed implementation.
package dirfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steamos-efi/steamcl/internal/bootstatus"
	"github.com/steamos-efi/steamcl/internal/platform"
)

type varKey struct {
	namespace uuid.UUID
	name      string
}

// Dirs is a directory-tree-backed platform.Platform.
type Dirs struct {
	mu      sync.Mutex
	roots   map[string]string
	handles []platform.Handle
	selfID  string
	vars    map[varKey][]byte
}

// New returns an empty Dirs platform.
func New() *Dirs {
	return &Dirs{roots: map[string]string{}, vars: map[varKey][]byte{}}
}

// AddRoot registers hostDir as the filesystem behind a synthetic handle
// with the given partition UUID.
func (d *Dirs) AddRoot(id string, partUUID uuid.UUID, hostDir string) platform.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := platform.Handle{ID: id, PartitionUUID: partUUID, DevicePath: platform.DevicePath{
		{Type: platform.NodeMedia, SubType: platform.MediaSubtypeHardDrive, Bytes: []byte(id)},
	}}
	d.handles = append(d.handles, h)
	d.roots[id] = hostDir
	return h
}

// SetSelf marks which registered handle ID is the loader's own ESP.
func (d *Dirs) SetSelf(id string) { d.selfID = id }

func (d *Dirs) ListHandles() ([]platform.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]platform.Handle(nil), d.handles...), nil
}

func (d *Dirs) SelfHandle() (platform.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range d.handles {
		if h.ID == d.selfID {
			return h, nil
		}
	}
	return platform.Handle{}, fmt.Errorf("self handle: %w", bootstatus.ErrNotFound)
}

func (d *Dirs) Mount(h platform.Handle) (platform.Dir, error) {
	d.mu.Lock()
	root, ok := d.roots[h.ID]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("mount %s: %w", h.ID, bootstatus.ErrNotFound)
	}
	return &dir{root: root}, nil
}

func (d *Dirs) GetVariable(name string, namespace uuid.UUID) ([]byte, platform.VarAttr, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.vars[varKey{namespace, name}]
	return append([]byte(nil), v...), platform.VarVolatile, ok, nil
}

func (d *Dirs) SetVariable(name string, namespace uuid.UUID, data []byte, _ platform.VarAttr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if data == nil {
		delete(d.vars, varKey{namespace, name})
		return nil
	}
	d.vars[varKey{namespace, name}] = append([]byte(nil), data...)
	return nil
}

func (d *Dirs) DeleteVariable(name string, namespace uuid.UUID) error {
	return d.SetVariable(name, namespace, nil, 0)
}

func (d *Dirs) Stall(dur time.Duration) {}

func (d *Dirs) Reset(platform.ResetType, bool) error {
	return fmt.Errorf("reset: %w", bootstatus.ErrAccessDenied)
}

type dir struct {
	root string
}

func (d *dir) resolve(p string) string {
	return filepath.Join(d.root, filepath.FromSlash(strings.ReplaceAll(p, `\`, "/")))
}

func (d *dir) Open(p string, write bool) (platform.File, error) {
	flag := os.O_RDONLY
	if write {
		flag = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(d.resolve(p), flag, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %s: %w", p, bootstatus.ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", p, bootstatus.ErrIO)
	}
	return &file{f: f}, nil
}

func (d *dir) Stat(p string) (platform.FileInfo, error) {
	info, err := os.Stat(d.resolve(p))
	if err != nil {
		if os.IsNotExist(err) {
			return platform.FileInfo{}, fmt.Errorf("stat %s: %w", p, bootstatus.ErrNotFound)
		}
		return platform.FileInfo{}, fmt.Errorf("stat %s: %w", p, bootstatus.ErrIO)
	}
	return platform.FileInfo{Size: info.Size(), ModTime: info.ModTime(), IsDir: info.IsDir()}, nil
}

func (d *dir) MkdirAll(p string) error {
	if err := os.MkdirAll(d.resolve(p), 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", p, bootstatus.ErrIO)
	}
	return nil
}

func (d *dir) ReadDir(p string) ([]string, error) {
	entries, err := os.ReadDir(d.resolve(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("readdir %s: %w", p, bootstatus.ErrNotFound)
		}
		return nil, fmt.Errorf("readdir %s: %w", p, bootstatus.ErrIO)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

type file struct {
	f *os.File
}

func (f *file) Read(p []byte) (int, error)                  { return f.f.Read(p) }
func (f *file) Write(p []byte) (int, error)                 { return f.f.Write(p) }
func (f *file) Seek(offset int64, whence int) (int64, error) { return f.f.Seek(offset, whence) }
func (f *file) Close() error                                 { return f.f.Close() }

func (f *file) Stat() (platform.FileInfo, error) {
	info, err := f.f.Stat()
	if err != nil {
		return platform.FileInfo{}, fmt.Errorf("stat: %w", bootstatus.ErrIO)
	}
	return platform.FileInfo{Size: info.Size(), ModTime: info.ModTime(), IsDir: info.IsDir()}, nil
}
