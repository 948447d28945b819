package discover

import "testing"

func minimalPE(machine uint16) []byte {
	buf := make([]byte, 512)
	buf[0], buf[1] = 'M', 'Z'
	offset := uint32(0x80)
	buf[0x3c] = byte(offset)
	buf[offset+0] = 'P'
	buf[offset+1] = 'E'
	buf[offset+2] = 0
	buf[offset+3] = 0
	buf[offset+4] = byte(machine)
	buf[offset+5] = byte(machine >> 8)
	return buf
}

func TestValidImage(t *testing.T) {
	// spec.md §8 property 7.
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"valid x86_64", minimalPE(MachineX86_64), true},
		{"wrong machine", minimalPE(0x01c4), false},
		{"too short", []byte{'M', 'Z'}, false},
		{"bad magic", func() []byte { b := minimalPE(MachineX86_64); b[0] = 'X'; return b }(), false},
		{"offset too large", func() []byte { b := minimalPE(MachineX86_64); b[0x3c] = 0xff; b[0x3d] = 0x01; return b }(), false},
		{"bad pe sig", func() []byte { b := minimalPE(MachineX86_64); b[0x80] = 'X'; return b }(), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidImage(tc.data); got != tc.want {
				t.Errorf("ValidImage(%s) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}
