// Package discover implements spec.md §4.C: for each filesystem handle
// enumerated from the platform, decide whether it is a bootable OS-image
// partition, locate its config, and build a candidate record.
package discover

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/steamos-efi/steamcl/internal/bootconf"
	"github.com/steamos-efi/steamcl/internal/bootstatus"
	"github.com/steamos-efi/steamcl/internal/logger"
	"github.com/steamos-efi/steamcl/internal/paths"
	"github.com/steamos-efi/steamcl/internal/platform"
)

// MaxBootconfs caps the number of admitted candidates (spec.md §4.C).
const MaxBootconfs = 16

// Candidate is the record discovery assembles per admitted image
// (spec.md §3).
type Candidate struct {
	Handle          platform.Handle
	DevicePath      platform.DevicePath
	PartitionUUID   uuid.UUID
	LoaderPath      string
	Label           string
	Config          *bootconf.Store
	Disabled        bool
	BootTimeStamp   uint64
	RequestedAt     uint64
	Tries           uint64
	ImageIdentifier string
}

// Discover walks every handle reported by p, admitting at most
// MaxBootconfs candidates (spec.md §4.C). restricted mirrors the
// `steamcl-restricted` flag file: when true, only handles on the same
// physical device as self are considered. espDir is the mounted ESP root
// (self's own volume); spec.md §4.C step 4 prefers a config migrated there
// over each candidate's legacy per-image config.
func Discover(p platform.Platform, self platform.Handle, espDir platform.Dir, restricted bool) ([]Candidate, error) {
	handles, err := p.ListHandles()
	if err != nil {
		return nil, fmt.Errorf("list handles: %w", err)
	}

	var out []Candidate
	for _, h := range handles {
		if len(out) >= MaxBootconfs {
			logger.Logger().Warnw("MAX_BOOTCONFS reached, dropping remaining handles", "max", MaxBootconfs)
			break
		}
		if h.PartitionUUID == self.PartitionUUID {
			continue // step 1: never admit our own ESP
		}
		if restricted && !platform.SameDevice(self.DevicePath, h.DevicePath) {
			continue // step 2
		}
		c, ok, err := evaluate(p, h, espDir)
		if err != nil {
			logger.Logger().Warnw("discovery rejected handle", "handle", h.ID, "err", err)
			continue
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// evaluate runs steps 3-6 of spec.md §4.C against a single handle.
func evaluate(p platform.Platform, h platform.Handle, espDir platform.Dir) (Candidate, bool, error) {
	dir, err := p.Mount(h)
	if err != nil {
		return Candidate{}, false, fmt.Errorf("mount: %w", err)
	}

	imageID, err := resolveImageIdentifier(dir, h.PartitionUUID)
	if err != nil {
		return Candidate{}, false, err
	}

	cfg, err := locateConfig(dir, espDir, imageID)
	if err != nil {
		return Candidate{}, false, err
	}

	loaderPath := cfg.GetStr("loader")
	if loaderPath == "" {
		loaderPath = paths.DefaultStageTwoLoader
	}

	loaderData, err := readFile(dir, loaderPath)
	if err != nil {
		return Candidate{}, false, fmt.Errorf("read loader %s: %w", loaderPath, err)
	}
	if !ValidImage(loaderData) {
		return Candidate{}, false, fmt.Errorf("loader %s: %w", loaderPath, bootstatus.ErrInvalidData)
	}

	label := cfg.GetStr("title")
	if label == "" {
		label = "Image " + imageID
	}

	c := Candidate{
		Handle:          h,
		DevicePath:      h.DevicePath,
		PartitionUUID:   h.PartitionUUID,
		LoaderPath:      loaderPath,
		Label:           label,
		Config:          cfg,
		Disabled:        cfg.GetUint("image-invalid") > 0,
		BootTimeStamp:   cfg.GetUint("boot-time"),
		RequestedAt:     cfg.GetUint("boot-requested-at"),
		Tries:           cfg.GetUint("boot-attempts"),
		ImageIdentifier: imageID,
	}
	return c, true, nil
}

// resolveImageIdentifier implements step 3: find the partset descriptor
// whose `efi: <uuid>` line matches h's partition UUID.
func resolveImageIdentifier(dir platform.Dir, partUUID uuid.UUID) (string, error) {
	names, err := dir.ReadDir(paths.PartsetDir)
	if err != nil {
		return "", fmt.Errorf("read partsets: %w", err)
	}
	want := strings.ToLower(partUUID.String())
	for _, name := range names {
		if paths.ReservedSlotNames[strings.ToLower(name)] {
			continue
		}
		data, err := readFile(dir, path.Join(paths.PartsetDir, name))
		if err != nil {
			continue
		}
		store, err := bootconf.Parse(bytes.NewReader(data))
		if err != nil {
			continue
		}
		if strings.ToLower(store.GetStr("efi")) == want {
			return name, nil
		}
	}
	return "", fmt.Errorf("no partset matches %s: %w", partUUID, bootstatus.ErrNotFound)
}

// locateConfig implements step 4: prefer the ESP-side config migrated there
// by Migrate(), fall back to the legacy per-image config on the candidate's
// own mounted volume.
func locateConfig(dir, espDir platform.Dir, imageID string) (*bootconf.Store, error) {
	preferred := path.Join(paths.ConfDir, imageID+".conf")
	if espDir != nil {
		if data, err := readFile(espDir, preferred); err == nil {
			return bootconf.Parse(bytes.NewReader(data))
		}
	}
	data, err := readFile(dir, paths.LegacyBootConf)
	if err != nil {
		return nil, fmt.Errorf("locate config: %w", bootstatus.ErrNotFound)
	}
	store, err := bootconf.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return store, nil
}

func readFile(dir platform.Dir, p string) ([]byte, error) {
	f, err := dir.Open(p, false)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, bootstatus.ErrIO)
	}
	return data, nil
}
