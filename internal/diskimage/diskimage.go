// Package diskimage reads real GPT/MBR-partitioned raw disk images with
// github.com/diskfs/go-diskfs, the same library and pattern the teacher's
// internal/image/imageinspect/imageinspect.go (DiskfsInspector,
// summarizePartitionTable) uses for disk-image inspection: partition
// table summaries and per-partition file reads. No steamclctl command
// calls this package; steamclctl discover runs only against directory
// trees standing in for mounted filesystems.
package diskimage

import (
	"fmt"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/google/uuid"

	"github.com/steamos-efi/steamcl/internal/bootstatus"
)

// PartitionSummary mirrors the teacher's PartitionTableSummary: one
// partition's index, size, and (GPT-only) type/partition GUIDs.
type PartitionSummary struct {
	Index         int
	StartSector   uint64
	SizeBytes     int64
	PartitionUUID uuid.UUID
	TypeGUID      uuid.UUID
}

// Inspector opens a raw disk image and reports its partition table,
// grounded on the teacher's DiskfsInspector abstraction.
type Inspector struct {
	disk *diskfs.Disk
}

// Open opens path as a raw disk image for read-only inspection.
func Open(path string) (*Inspector, error) {
	disk, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("open disk image %s: %w", path, bootstatus.ErrIO)
	}
	return &Inspector{disk: disk}, nil
}

// Close releases the underlying disk image file.
func (i *Inspector) Close() error {
	return i.disk.File.Close()
}

// PartitionTable implements the teacher's summarizePartitionTable pattern:
// read whichever partition scheme (GPT preferred, MBR fallback) the image
// uses and report a uniform summary list.
func (i *Inspector) PartitionTable() ([]PartitionSummary, error) {
	table, err := i.disk.GetPartitionTable()
	if err != nil {
		return nil, fmt.Errorf("read partition table: %w", bootstatus.ErrInvalidData)
	}
	return summarizePartitionTable(table)
}

// summarizePartitionTable maps a diskfs GPT or MBR table to the uniform
// PartitionSummary list steamclctl reports, skipping zero-size (empty)
// entries. Split out from PartitionTable so it can be exercised directly
// against hand-built *gpt.Table/*mbr.Table values in tests, the same way
// the teacher's summarizePartitionTable is tested independent of an opened
// disk image.
func summarizePartitionTable(table interface{}) ([]PartitionSummary, error) {
	switch t := table.(type) {
	case *gpt.Table:
		lbs := t.LogicalSectorSize
		if lbs == 0 {
			lbs = 512
		}
		out := make([]PartitionSummary, 0, len(t.Partitions))
		for idx, p := range t.Partitions {
			if p.Start == 0 && p.End == 0 {
				continue
			}
			partUUID, _ := uuid.Parse(p.GUID)
			typeUUID, _ := uuid.Parse(string(p.Type))
			out = append(out, PartitionSummary{
				Index:         idx + 1,
				StartSector:   uint64(p.Start),
				SizeBytes:     int64(p.End-p.Start+1) * int64(lbs),
				PartitionUUID: partUUID,
				TypeGUID:      typeUUID,
			})
		}
		return out, nil
	case *mbr.Table:
		lbs := t.LogicalSectorSize
		if lbs == 0 {
			lbs = 512
		}
		out := make([]PartitionSummary, 0, len(t.Partitions))
		for idx, p := range t.Partitions {
			if p.Size == 0 {
				continue
			}
			out = append(out, PartitionSummary{
				Index:       idx + 1,
				StartSector: uint64(p.Start),
				SizeBytes:   int64(p.Size) * int64(lbs),
			})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unrecognised partition table type: %w", bootstatus.ErrInvalidData)
	}
}

// ReadFile reads path from the filesystem on partition index (1-based),
// e.g. partset/config/loader files out of an ESP or image partition in a
// raw disk image.
func (i *Inspector) ReadFile(partitionIndex int, path string) ([]byte, error) {
	fs, err := i.disk.GetFilesystem(partitionIndex)
	if err != nil {
		return nil, fmt.Errorf("get filesystem on partition %d: %w", partitionIndex, bootstatus.ErrIO)
	}
	f, err := fs.OpenFile(path, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, bootstatus.ErrNotFound)
	}
	defer f.Close()
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := f.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	return buf, nil
}
