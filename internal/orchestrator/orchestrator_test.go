package orchestrator

import (
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/steamos-efi/steamcl/internal/handoff"
	"github.com/steamos-efi/steamcl/internal/menu"
	"github.com/steamos-efi/steamcl/internal/nvram"
	"github.com/steamos-efi/steamcl/internal/platform"
	"github.com/steamos-efi/steamcl/internal/platform/simfw"
)

type fakeLoader struct {
	loaded  string
	started bool
}

func (f *fakeLoader) LoadImage(devicePath string) (handoff.ImageHandle, error) {
	f.loaded = devicePath
	return handoff.ImageHandle{}, nil
}
func (f *fakeLoader) SetCommandLine(handoff.ImageHandle, string) error { return nil }
func (f *fakeLoader) StartImage(handoff.ImageHandle) error {
	f.started = true
	return nil
}
func (f *fakeLoader) UnloadImage(handoff.ImageHandle) error { return nil }

func validPEBytes() []byte {
	buf := make([]byte, 512)
	buf[0], buf[1] = 'M', 'Z'
	offset := uint32(0x80)
	buf[0x3c] = byte(offset)
	buf[offset+0] = 'P'
	buf[offset+1] = 'E'
	buf[offset+4] = 0x64
	buf[offset+5] = 0x86
	return buf
}

func TestRunHappyPath(t *testing.T) {
	fw := simfw.New()
	self := platform.Handle{ID: "esp", PartitionUUID: uuid.New()}
	fw.AddVolume(self)
	fw.SetSelf(self.PartitionUUID)

	partUUID := uuid.New()
	h := platform.Handle{ID: "disk0p2", PartitionUUID: partUUID}
	v := fw.AddVolume(h)
	v.AddFile("SteamOS/partsets/A", []byte("efi: "+partUUID.String()+"\n"), time.Now())
	v.AddFile("SteamOS/bootconf", []byte("title: Image A\n"), time.Now())
	v.AddFile("EFI/steamos/grubx64.efi", validPEBytes(), time.Now())

	loader := &fakeLoader{}
	ctx := Context{
		Platform: fw,
		Loader:   loader,
		NVRAM:    nvram.New(fw),
	}

	if err := Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !loader.started {
		t.Errorf("expected StartImage to be called")
	}
	if loader.loaded == "" {
		t.Errorf("expected LoadImage to receive a non-empty device path")
	}
}

func TestRunNoCandidatesStillCompletes(t *testing.T) {
	fw := simfw.New()
	self := platform.Handle{ID: "esp", PartitionUUID: uuid.New()}
	fw.AddVolume(self)
	fw.SetSelf(self.PartitionUUID)

	in := make(chan string, 1)
	in <- "esc"
	loader := &fakeLoader{}
	ctx := Context{
		Platform:    fw,
		Loader:      loader,
		NVRAM:       nvram.New(fw),
		MenuBackend: menu.NewTextBackend(io.Discard, in),
	}

	if err := Run(ctx); err != nil {
		t.Fatalf("Run with no candidates should still complete: %v", err)
	}
	if !loader.started {
		t.Errorf("expected StartImage to be called even with no candidates")
	}
}
