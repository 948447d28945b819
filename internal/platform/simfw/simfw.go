// Package simfw is an in-memory implementation of platform.Platform used by
// every unit test in this repository; none of them require root or real
// firmware. Grounded on the teacher's pattern of small, in-memory fakes
// standing in for an external system under test (imageinspect_test.go's
// stubbed disk reader).
package simfw

import (
	"bytes"
	"fmt"
	"io"
	"sort"
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

type variable struct {
	data []byte
	attr platform.VarAttr
}

type node struct {
	isDir    bool
	data     []byte
	modTime  time.Time
	children map[string]*node
}

func newDirNode() *node {
	return &node{isDir: true, children: map[string]*node{}}
}

// Volume is one simulated filesystem tree, addressable as a platform.Handle.
type Volume struct {
	mu     sync.Mutex
	handle platform.Handle
	root   *node
}

// FW is the simulated platform.Platform.
type FW struct {
	mu        sync.Mutex
	volumes   []*Volume
	self      uuid.UUID
	vars      map[varKey]variable
	resets    []resetCall
	stallTime time.Duration
}

type resetCall struct {
	kind         platform.ResetType
	toFirmwareUI bool
}

// New returns an empty simulated platform.
func New() *FW {
	return &FW{vars: map[varKey]variable{}}
}

// AddVolume registers a new, empty simulated filesystem and returns it for
// populating with AddFile.
func (f *FW) AddVolume(h platform.Handle) *Volume {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := &Volume{handle: h, root: newDirNode()}
	f.volumes = append(f.volumes, v)
	return v
}

// SetSelf marks which handle SelfHandle should report as this loader's own
// image; ListHandles still reports every volume, including that one.
func (f *FW) SetSelf(partitionUUID uuid.UUID) {
	f.self = partitionUUID
}

func splitPath(p string) []string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// AddFile writes data at path, creating intermediate directories.
func (v *Volume) AddFile(path string, data []byte, modTime time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	parts := splitPath(path)
	dir := v.root
	for _, p := range parts[:len(parts)-1] {
		child, ok := dir.children[p]
		if !ok || !child.isDir {
			child = newDirNode()
			dir.children[p] = child
		}
		dir = child
	}
	name := parts[len(parts)-1]
	dir.children[name] = &node{data: append([]byte(nil), data...), modTime: modTime}
}

func (v *Volume) lookup(path string) (*node, bool) {
	parts := splitPath(path)
	cur := v.root
	for _, p := range parts {
		child, ok := cur.children[p]
		if !ok {
			return nil, false
		}
		cur = child
	}
	return cur, true
}

// --- platform.Platform ---

func (f *FW) ListHandles() ([]platform.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]platform.Handle, 0, len(f.volumes))
	for _, v := range f.volumes {
		out = append(out, v.handle)
	}
	return out, nil
}

func (f *FW) SelfHandle() (platform.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.volumes {
		if v.handle.PartitionUUID == f.self {
			return v.handle, nil
		}
	}
	return platform.Handle{}, fmt.Errorf("self handle: %w", bootstatus.ErrNotFound)
}

func (f *FW) Mount(h platform.Handle) (platform.Dir, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.volumes {
		if v.handle.ID == h.ID {
			return &simDir{v: v}, nil
		}
	}
	return nil, fmt.Errorf("mount %s: %w", h.ID, bootstatus.ErrNotFound)
}

func (f *FW) GetVariable(name string, namespace uuid.UUID) ([]byte, platform.VarAttr, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vars[varKey{namespace, name}]
	if !ok {
		return nil, 0, false, nil
	}
	return append([]byte(nil), v.data...), v.attr, true, nil
}

func (f *FW) SetVariable(name string, namespace uuid.UUID, data []byte, attr platform.VarAttr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := varKey{namespace, name}
	if data == nil {
		delete(f.vars, k)
		return nil
	}
	f.vars[k] = variable{data: append([]byte(nil), data...), attr: attr}
	return nil
}

func (f *FW) DeleteVariable(name string, namespace uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vars, varKey{namespace, name})
	return nil
}

func (f *FW) Stall(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stallTime += d
}

// StallTotal reports the cumulative duration requested via Stall, for test
// assertions.
func (f *FW) StallTotal() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stallTime
}

func (f *FW) Reset(kind platform.ResetType, toFirmwareUI bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, resetCall{kind, toFirmwareUI})
	return nil
}

// Resets reports every Reset call made so far, for test assertions.
func (f *FW) Resets() []struct {
	Kind         platform.ResetType
	ToFirmwareUI bool
} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]struct {
		Kind         platform.ResetType
		ToFirmwareUI bool
	}, len(f.resets))
	for i, r := range f.resets {
		out[i].Kind = r.kind
		out[i].ToFirmwareUI = r.toFirmwareUI
	}
	return out
}

// --- platform.Dir / platform.File ---

type simDir struct {
	v *Volume
}

func (d *simDir) Open(path string, write bool) (platform.File, error) {
	d.v.mu.Lock()
	n, ok := d.v.lookup(path)
	d.v.mu.Unlock()
	if !ok {
		if !write {
			return nil, fmt.Errorf("open %s: %w", path, bootstatus.ErrNotFound)
		}
		d.v.AddFile(path, nil, time.Time{})
		d.v.mu.Lock()
		n, _ = d.v.lookup(path)
		d.v.mu.Unlock()
	}
	if n.isDir {
		return nil, fmt.Errorf("open %s: %w", path, bootstatus.ErrInvalidParameter)
	}
	return &simFile{v: d.v, n: n, buf: bytes.NewReader(append([]byte(nil), n.data...))}, nil
}

func (d *simDir) Stat(path string) (platform.FileInfo, error) {
	d.v.mu.Lock()
	defer d.v.mu.Unlock()
	n, ok := d.v.lookup(path)
	if !ok {
		return platform.FileInfo{}, fmt.Errorf("stat %s: %w", path, bootstatus.ErrNotFound)
	}
	return platform.FileInfo{Size: int64(len(n.data)), ModTime: n.modTime, IsDir: n.isDir}, nil
}

func (d *simDir) MkdirAll(path string) error {
	d.v.mu.Lock()
	defer d.v.mu.Unlock()
	parts := splitPath(path)
	cur := d.v.root
	for _, p := range parts {
		child, ok := cur.children[p]
		if !ok {
			child = newDirNode()
			cur.children[p] = child
		} else if !child.isDir {
			return fmt.Errorf("mkdir %s: %w", path, bootstatus.ErrInvalidData)
		}
		cur = child
	}
	return nil
}

func (d *simDir) ReadDir(path string) ([]string, error) {
	d.v.mu.Lock()
	defer d.v.mu.Unlock()
	n, ok := d.v.lookup(path)
	if !ok || !n.isDir {
		return nil, fmt.Errorf("readdir %s: %w", path, bootstatus.ErrNotFound)
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

type simFile struct {
	v       *Volume
	n       *node
	buf     *bytes.Reader
	written bool
	out     bytes.Buffer
}

func (f *simFile) Read(p []byte) (int, error) {
	return f.buf.Read(p)
}

func (f *simFile) Write(p []byte) (int, error) {
	f.written = true
	return f.out.Write(p)
}

func (f *simFile) Seek(offset int64, whence int) (int64, error) {
	return f.buf.Seek(offset, whence)
}

func (f *simFile) Close() error {
	if f.written {
		f.v.mu.Lock()
		f.n.data = append([]byte(nil), f.out.Bytes()...)
		f.v.mu.Unlock()
	}
	return nil
}

func (f *simFile) Stat() (platform.FileInfo, error) {
	f.v.mu.Lock()
	defer f.v.mu.Unlock()
	return platform.FileInfo{Size: int64(len(f.n.data)), ModTime: f.n.modTime}, nil
}

var _ io.ReadWriteSeeker = (*simFile)(nil)
