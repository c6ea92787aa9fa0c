package vcd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pulselab/strobe/pkg/logic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCapture = `$date today $end
$timescale 1 us $end
$scope module logic $end
$var wire 1 ! clk $end
$var wire 1 " dio $end
$upscope $end
$enddefinitions $end
#0
$dumpvars
1!
1"
$end
#10
0!
#20
1!
0"
#30
`

func replay(t *testing.T, contents string, sampleRate int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "capture.vcd")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	src, err := NewSource(path, sampleRate)
	require.NoError(t, err)
	defer src.Stop()

	segCh := make(chan *logic.Segment, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- src.Start(context.Background(), segCh)
	}()

	var got []byte
	for {
		select {
		case seg := <-segCh:
			got = append(got, seg.Data...)
		case err := <-errCh:
			require.NoError(t, err)
			for {
				select {
				case seg := <-segCh:
					got = append(got, seg.Data...)
				default:
					return got
				}
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for source")
		}
	}
}

func TestSourceRasterizesChanges(t *testing.T) {
	// 1 us timescale at 1 MHz: one sample per time unit.
	got := replay(t, testCapture, 1000000)
	require.Len(t, got, 31)

	// clk on channel 0, dio on channel 1 in declaration order.
	assert.Equal(t, byte(0b11), got[0])
	assert.Equal(t, byte(0b11), got[9])
	assert.Equal(t, byte(0b10), got[10])
	assert.Equal(t, byte(0b10), got[19])
	assert.Equal(t, byte(0b01), got[20])
	assert.Equal(t, byte(0b01), got[30])
}

func TestSourceScalesToSampleRate(t *testing.T) {
	// 2 MHz doubles the samples per time unit.
	got := replay(t, testCapture, 2000000)
	require.Len(t, got, 61)
	assert.Equal(t, byte(0b11), got[19])
	assert.Equal(t, byte(0b10), got[20])
}

func TestSourceRejectsCaptureWithoutWires(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.vcd")
	require.NoError(t, os.WriteFile(path, []byte("$enddefinitions $end\n#0\n"), 0o644))

	src, err := NewSource(path, 1000000)
	require.NoError(t, err)
	defer src.Stop()

	err = src.Start(context.Background(), make(chan *logic.Segment, 1))
	assert.Error(t, err)
}

func TestParseTimescale(t *testing.T) {
	tests := []struct {
		fields []string
		want   float64
		ok     bool
	}{
		{[]string{"1", "us"}, 1e-6, true},
		{[]string{"10ns"}, 1e-8, true},
		{[]string{"100", "ms"}, 0.1, true},
		{[]string{"1", "fortnight"}, 0, false},
	}
	for _, tt := range tests {
		got, err := parseTimescale(tt.fields)
		if tt.ok {
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, tt.want*1e-9)
		} else {
			assert.Error(t, err)
		}
	}
}
