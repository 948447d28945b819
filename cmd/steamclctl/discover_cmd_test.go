package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func validPEBytes() []byte {
	buf := make([]byte, 512)
	buf[0], buf[1] = 'M', 'Z'
	offset := uint32(0x80)
	buf[0x3c] = byte(offset)
	buf[offset+0], buf[offset+1] = 'P', 'E'
	buf[offset+4], buf[offset+5] = 0x64, 0x86
	return buf
}

func TestDiscoverCmdTextOutput(t *testing.T) {
	esp := t.TempDir()
	img := t.TempDir()

	partUUID := uuid.New()
	writeFile(t, filepath.Join(img, "SteamOS", "partsets", "A"), []byte("efi: "+partUUID.String()+"\n"))
	writeFile(t, filepath.Join(img, "SteamOS", "bootconf"), []byte("title: Image A\n"))
	writeFile(t, filepath.Join(img, "EFI", "steamos", "grubx64.efi"), validPEBytes())

	cmd := newDiscoverCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{esp, img})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("Image A")) {
		t.Errorf("output missing candidate label, got: %s", out.String())
	}
}

func TestDiscoverCmdRejectsBadFormat(t *testing.T) {
	esp := t.TempDir()
	cmd := newDiscoverCmd()
	cmd.SetArgs([]string{esp, "--format", "xml"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
