package cmd

import "testing"

func TestUintValue(t *testing.T) {
	tests := []struct {
		in      string
		bits    int
		want    uint64
		wantErr bool
	}{
		{"56", 10, 56, false},
		{"0x38", 10, 0x38, false},
		{"0x3ff", 10, 0x3FF, false},
		{"070", 10, 70, false},
		{"056", 10, 56, false},
		{"0", 10, 0, false},
		{"0X3ff", 10, 0, true},
		{"0x3_8", 10, 0, true},
		{"5_6", 10, 0, true},
		{"0x", 10, 0, true},
		{"0b2", 10, 0, true},
		{"0o70", 10, 56, false},
		{"0b111000", 10, 56, false},
		{"0x400", 10, 0, true},
		{"-1", 10, 0, true},
		{"abc", 10, 0, true},
		{"", 31, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var n uint64
			v := newUintValue(0, tt.bits, &n)
			err := v.Set(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && n != tt.want {
				t.Errorf("Set(%q) = %d, want %d", tt.in, n, tt.want)
			}
		})
	}
}

func TestUintValueString(t *testing.T) {
	var n uint64
	if got := newUintValue(0x38, 10, &n).String(); got != "0x38" {
		t.Errorf("address String() = %q, want 0x38", got)
	}
	if got := newUintValue(1, 31, &n).String(); got != "1" {
		t.Errorf("bus String() = %q, want 1", got)
	}
}

func TestParseOffset(t *testing.T) {
	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{"0", 0, false},
		{"0x1fc", 0x1FC, false},
		{"508", 0x1FC, false},
		{"0xffc", 0xFFC, false},
		{"0100", 100, false},
		{"0o774", 0x1FC, false},
		{"0x3_8", 0, true},
		{"0x1000", 0, true},
		{"0x3", 0, true},
		{"0x10000", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseOffset(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseOffset(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if uint16(got) != tt.want {
				t.Errorf("parseOffset(%q) = 0x%x, want 0x%x", tt.in, uint16(got), tt.want)
			}
		})
	}
}
