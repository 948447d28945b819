package discover

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/steamos-efi/steamcl/internal/platform"
	"github.com/steamos-efi/steamcl/internal/platform/simfw"
)

func validPEBytes() []byte {
	buf := make([]byte, 512)
	buf[0], buf[1] = 'M', 'Z'
	offset := uint32(0x80)
	buf[0x3c] = byte(offset)
	buf[offset+0] = 'P'
	buf[offset+1] = 'E'
	buf[offset+4] = byte(MachineX86_64)
	buf[offset+5] = byte(MachineX86_64 >> 8)
	return buf
}

func setupCandidate(fw *simfw.FW, id, label string, requestedAt uint64) platform.Handle {
	partUUID := uuid.New()
	h := platform.Handle{
		ID:            id,
		PartitionUUID: partUUID,
		DevicePath: platform.DevicePath{
			{Type: platform.NodeMedia, SubType: platform.MediaSubtypeHardDrive, Bytes: []byte(id)},
		},
	}
	v := fw.AddVolume(h)
	v.AddFile("SteamOS/partsets/"+id, []byte("efi: "+partUUID.String()+"\n"), time.Now())
	v.AddFile("SteamOS/bootconf", []byte("title: "+label+"\nboot-requested-at: "+itoa(requestedAt)+"\n"), time.Now())
	v.AddFile("EFI/steamos/grubx64.efi", validPEBytes(), time.Now())
	return h
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}

func TestDiscoverAdmitsValidCandidate(t *testing.T) {
	fw := simfw.New()
	self := platform.Handle{ID: "esp", PartitionUUID: uuid.New()}
	fw.AddVolume(self)
	fw.SetSelf(self.PartitionUUID)

	setupCandidate(fw, "A", "Image A", 20240101000000)

	espDir, err := fw.Mount(self)
	if err != nil {
		t.Fatalf("mount self: %v", err)
	}
	cands, err := Discover(fw, self, espDir, false)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("len(candidates) = %d, want 1", len(cands))
	}
	if cands[0].Label != "Image A" {
		t.Errorf("Label = %q, want %q", cands[0].Label, "Image A")
	}
}

func TestDiscoverExcludesSelf(t *testing.T) {
	// spec.md §8 property 2.
	fw := simfw.New()
	self := platform.Handle{ID: "esp", PartitionUUID: uuid.New()}
	fw.AddVolume(self)
	fw.SetSelf(self.PartitionUUID)

	espDir, err := fw.Mount(self)
	if err != nil {
		t.Fatalf("mount self: %v", err)
	}
	cands, err := Discover(fw, self, espDir, false)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	for _, c := range cands {
		if c.PartitionUUID == self.PartitionUUID {
			t.Errorf("self handle admitted as candidate")
		}
	}
}

func TestDiscoverRejectsInvalidLoader(t *testing.T) {
	fw := simfw.New()
	self := platform.Handle{ID: "esp", PartitionUUID: uuid.New()}
	fw.AddVolume(self)
	fw.SetSelf(self.PartitionUUID)

	partUUID := uuid.New()
	h := platform.Handle{ID: "A", PartitionUUID: partUUID}
	v := fw.AddVolume(h)
	v.AddFile("SteamOS/partsets/A", []byte("efi: "+partUUID.String()+"\n"), time.Now())
	v.AddFile("SteamOS/bootconf", []byte("title: Image A\n"), time.Now())
	v.AddFile("EFI/steamos/grubx64.efi", []byte("not a pe file"), time.Now())

	espDir, err := fw.Mount(self)
	if err != nil {
		t.Fatalf("mount self: %v", err)
	}
	cands, err := Discover(fw, self, espDir, false)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("len(candidates) = %d, want 0 (invalid loader should be rejected)", len(cands))
	}
}

func TestDiscoverRestrictedModeRequiresSameDevice(t *testing.T) {
	fw := simfw.New()
	self := platform.Handle{
		ID:            "esp",
		PartitionUUID: uuid.New(),
		DevicePath: platform.DevicePath{
			{Type: platform.NodeMedia, SubType: platform.MediaSubtypeHardDrive, Bytes: []byte("disk0")},
		},
	}
	fw.AddVolume(self)
	fw.SetSelf(self.PartitionUUID)

	// Candidate on a different physical device.
	partUUID := uuid.New()
	h := platform.Handle{
		ID:            "A",
		PartitionUUID: partUUID,
		DevicePath: platform.DevicePath{
			{Type: platform.NodeMedia, SubType: platform.MediaSubtypeHardDrive, Bytes: []byte("disk1")},
		},
	}
	v := fw.AddVolume(h)
	v.AddFile("SteamOS/partsets/A", []byte("efi: "+partUUID.String()+"\n"), time.Now())
	v.AddFile("SteamOS/bootconf", []byte("title: Image A\n"), time.Now())
	v.AddFile("EFI/steamos/grubx64.efi", validPEBytes(), time.Now())

	espDir, err := fw.Mount(self)
	if err != nil {
		t.Fatalf("mount self: %v", err)
	}
	cands, err := Discover(fw, self, espDir, true)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("restricted mode should exclude candidates on other devices, got %d", len(cands))
	}
}

func TestDiscoverCapsAtMaxBootconfs(t *testing.T) {
	fw := simfw.New()
	self := platform.Handle{ID: "esp", PartitionUUID: uuid.New()}
	fw.AddVolume(self)
	fw.SetSelf(self.PartitionUUID)

	for i := 0; i < MaxBootconfs+5; i++ {
		setupCandidate(fw, "slot"+itoa(uint64(i)), "Image", uint64(20240101000000+i))
	}

	espDir, err := fw.Mount(self)
	if err != nil {
		t.Fatalf("mount self: %v", err)
	}
	cands, err := Discover(fw, self, espDir, false)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(cands) != MaxBootconfs {
		t.Fatalf("len(candidates) = %d, want %d", len(cands), MaxBootconfs)
	}
}
