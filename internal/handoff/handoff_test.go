package handoff

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/steamos-efi/steamcl/internal/bootconf"
	"github.com/steamos-efi/steamcl/internal/discover"
	"github.com/steamos-efi/steamcl/internal/nvram"
	"github.com/steamos-efi/steamcl/internal/platform"
	"github.com/steamos-efi/steamcl/internal/platform/simfw"
	"github.com/steamos-efi/steamcl/internal/selection"
)

type fakeLoader struct {
	loaded    string
	cmdline   string
	startErr  error
	started   bool
	unloaded  bool
	onStart   func()
}

func (f *fakeLoader) LoadImage(devicePath string) (ImageHandle, error) {
	f.loaded = devicePath
	return ImageHandle{id: devicePath}, nil
}

func (f *fakeLoader) SetCommandLine(img ImageHandle, cmdline string) error {
	f.cmdline = cmdline
	return nil
}

func (f *fakeLoader) StartImage(img ImageHandle) error {
	if f.onStart != nil {
		f.onStart()
	}
	f.started = true
	return f.startErr
}

func (f *fakeLoader) UnloadImage(img ImageHandle) error {
	f.unloaded = true
	return nil
}

func newTestCandidate() discover.Candidate {
	dp := platform.DevicePath{
		{Type: platform.NodeMedia, SubType: platform.MediaSubtypeHardDrive, Bytes: []byte("disk0p2")},
	}
	return discover.Candidate{
		Handle:          platform.Handle{ID: "disk0p2", DevicePath: dp},
		DevicePath:      dp,
		PartitionUUID:   uuid.New(),
		LoaderPath:      `\EFI\steamos\grubx64.efi`,
		ImageIdentifier: "A",
		Config:          bootconf.New(),
	}
}

func TestRunIncrementsAttemptsBeforeStart(t *testing.T) {
	fw := simfw.New()
	nv := nvram.New(fw)
	loader := &fakeLoader{}
	c := newTestCandidate()
	var attemptsAtStart uint64
	loader.onStart = func() {
		data, _, ok, _ := fw.GetVariable("ChainLoaderBootAttempts", nvram.ChainloaderNamespace)
		if ok && len(data) == 8 {
			attemptsAtStart = binary.LittleEndian.Uint64(data)
		}
	}

	res, err := Run(loader, nv, c, selection.Result{}, "steamos-verbose")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if attemptsAtStart != 1 {
		t.Errorf("boot-attempts counter at StartImage = %d, want 1 (incremented before start)", attemptsAtStart)
	}
	if !loader.started {
		t.Errorf("StartImage was not called")
	}
	if !loader.unloaded {
		t.Errorf("UnloadImage was not called after normal return")
	}
	if loader.cmdline != "steamos-verbose" {
		t.Errorf("cmdline = %q, want steamos-verbose", loader.cmdline)
	}
	if !strings.Contains(loader.loaded, `\EFI\steamos\grubx64.efi`) {
		t.Errorf("devicePath = %q, want it to carry the loader's file-path node", loader.loaded)
	}
	if !strings.Contains(loader.loaded, "disk0p2") {
		t.Errorf("devicePath = %q, want it to carry the candidate's device path, not just the loader path", loader.loaded)
	}
}

func TestBuildDevicePathNormalisesLoaderPath(t *testing.T) {
	dp := platform.DevicePath{{Type: platform.NodeMedia, SubType: platform.MediaSubtypeHardDrive, Bytes: []byte("disk0p2")}}
	got := buildDevicePath(dp, "disk0p2", "EFI/steamos/grubx64.efi")
	if !strings.HasSuffix(got, `\EFI\steamos\grubx64.efi`) {
		t.Errorf("buildDevicePath = %q, want it to end with a rooted, backslash-separated file path", got)
	}
	if !strings.Contains(got, "disk0p2") {
		t.Errorf("buildDevicePath = %q, want it to carry the partition device path", got)
	}
}

func TestRunReturnsErrorOnStartFailure(t *testing.T) {
	fw := simfw.New()
	nv := nvram.New(fw)
	loader := &fakeLoader{startErr: errors.New("boom")}
	c := newTestCandidate()

	_, err := Run(loader, nv, c, selection.Result{}, "")
	if err == nil {
		t.Fatalf("expected error from failing StartImage")
	}
}
