package discover

import (
	"bytes"
	"fmt"
	"io"
	"path"

	"github.com/steamos-efi/steamcl/internal/bootconf"
	"github.com/steamos-efi/steamcl/internal/logger"
	"github.com/steamos-efi/steamcl/internal/paths"
	"github.com/steamos-efi/steamcl/internal/platform"
)

// Migrate runs the one-shot config migration task (spec.md §4.C): for
// every non-ESP handle holding a legacy \SteamOS\bootconf file with a
// resolvable image identifier, copy it to \SteamOS\conf\<id>.conf on the
// ESP unless that file already exists and is newer. Copy failures are
// logged, never fatal (the boot proceeds regardless).
func Migrate(p platform.Platform, esp platform.Dir, self platform.Handle) error {
	handles, err := p.ListHandles()
	if err != nil {
		return fmt.Errorf("list handles: %w", err)
	}
	for _, h := range handles {
		if h.PartitionUUID == self.PartitionUUID {
			continue
		}
		dir, err := p.Mount(h)
		if err != nil {
			logger.Logger().Warnw("migrate: mount failed", "handle", h.ID, "err", err)
			continue
		}
		migrateOne(dir, esp, h)
	}
	return nil
}

func migrateOne(dir, esp platform.Dir, h platform.Handle) {
	legacyInfo, err := dir.Stat(paths.LegacyBootConf)
	if err != nil {
		return // no legacy file on this partition
	}

	imageID, err := resolveImageIdentifier(dir, h.PartitionUUID)
	if err != nil {
		return // unresolvable identifier: nothing to migrate to
	}

	newPath := path.Join(paths.ConfDir, imageID+".conf")
	if newInfo, err := esp.Stat(newPath); err == nil {
		if !newInfo.ModTime.Before(legacyInfo.ModTime) {
			return // new file already present and at least as fresh
		}
	}

	data, err := readFile(dir, paths.LegacyBootConf)
	if err != nil {
		logger.Logger().Warnw("migrate: read legacy config failed", "handle", h.ID, "err", err)
		return
	}
	if _, err := bootconf.Parse(bytes.NewReader(data)); err != nil {
		logger.Logger().Warnw("migrate: legacy config unparsable, skipping", "handle", h.ID, "err", err)
		return
	}

	if err := esp.MkdirAll(path.Dir(newPath)); err != nil {
		logger.Logger().Warnw("migrate: mkdir failed", "path", newPath, "err", err)
		return
	}
	dst, err := esp.Open(newPath, true)
	if err != nil {
		logger.Logger().Warnw("migrate: open destination failed", "path", newPath, "err", err)
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, bytes.NewReader(data)); err != nil {
		logger.Logger().Warnw("migrate: copy failed", "path", newPath, "err", err)
		return
	}
	logger.Logger().Infow("migrated legacy config", "identifier", imageID, "to", newPath)
}
