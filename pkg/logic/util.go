package logic

import (
	"fmt"
	"strings"
	"time"
)

// Radix selects the rendering of decoded byte values in annotations.
type Radix string

const (
	RadixHex Radix = "Hex"
	RadixDec Radix = "Dec"
	RadixOct Radix = "Oct"
	RadixBin Radix = "Bin"
)

// FormatValue renders a byte value in the given radix. Unknown radixes
// fall back to hex.
func FormatValue(value byte, radix Radix) string {
	switch strings.ToUpper(string(radix)) {
	case "DEC":
		return fmt.Sprintf("%d", value)
	case "OCT":
		return fmt.Sprintf("%#o", value)
	case "BIN":
		return fmt.Sprintf("%#b", value)
	default:
		return fmt.Sprintf("%#04x", value)
	}
}

// SamplesToDuration converts a sample count at the given rate to wall time.
func SamplesToDuration(sampleRate int, samples uint64) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

func BitrateToString(bps int) string {
	switch {
	case bps >= 1e6:
		return fmt.Sprintf("%0.3f Mbps", float64(bps)/1e6)
	case bps >= 1e3:
		return fmt.Sprintf("%0.3f kbps", float64(bps)/1e3)
	default:
		return fmt.Sprintf("%d bps", bps)
	}
}

func SampleRateToString(rate int) string {
	switch {
	case rate >= 1e6:
		return fmt.Sprintf("%0.4f MHz", float64(rate)/1e6)
	case rate >= 1e3:
		return fmt.Sprintf("%0.4f kHz", float64(rate)/1e3)
	default:
		return fmt.Sprintf("%d Hz", rate)
	}
}
