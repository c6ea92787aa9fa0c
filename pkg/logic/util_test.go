package logic

import (
	"testing"
	"time"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		value byte
		radix Radix
		want  string
	}{
		{"hex", 0x07, RadixHex, "0x07"},
		{"hex wide", 0xA5, RadixHex, "0xa5"},
		{"dec", 0x07, RadixDec, "7"},
		{"oct", 0x07, RadixOct, "07"},
		{"bin", 0x07, RadixBin, "0b111"},
		{"lowercase radix", 0x07, Radix("dec"), "7"},
		{"unknown radix falls back to hex", 0x07, Radix("roman"), "0x07"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.value, tt.radix); got != tt.want {
				t.Errorf("FormatValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBitrateToString(t *testing.T) {
	tests := []struct {
		bps  int
		want string
	}{
		{500, "500 bps"},
		{250000, "250.000 kbps"},
		{1000000, "1.000 Mbps"},
	}
	for _, tt := range tests {
		if got := BitrateToString(tt.bps); got != tt.want {
			t.Errorf("BitrateToString(%d) = %v, want %v", tt.bps, got, tt.want)
		}
	}
}

func TestSamplesToDuration(t *testing.T) {
	if got := SamplesToDuration(1000000, 500); got != 500*time.Microsecond {
		t.Errorf("SamplesToDuration() = %v, want %v", got, 500*time.Microsecond)
	}
}
