package tmc

import (
	"context"
	"testing"
	"time"

	"github.com/pulselab/strobe/pkg/logic"
	"github.com/pulselab/strobe/pkg/util"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runProcessor(t *testing.T, packets []logic.Packet) *recorder {
	t.Helper()

	rec := &recorder{}
	ch := make(chan logic.Packet, len(packets))
	p := NewProcessor(1, ch, rec, &util.MockWriteAPI{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	for _, pkt := range packets {
		ch <- pkt
	}

	require.Eventually(t, func() bool {
		return len(ch) == 0
	}, time.Second, time.Millisecond)

	cancel()
	<-done
	return rec
}

func firstText(anns []logic.Annotation) string {
	if len(anns) == 0 || len(anns[0].Texts) == 0 {
		return ""
	}
	return anns[0].Texts[0]
}

func TestProcessorDataCommand(t *testing.T) {
	rec := runProcessor(t, []logic.Packet{
		{Type: logic.PacketStart},
		{Type: logic.PacketCommand, Value: 0x40},
	})

	infos := rec.byClass(logic.AnnInfo)
	require.Len(t, infos, 1)
	assert.Equal(t, "Data command: write display data, auto-increment address", firstText(infos))
}

func TestProcessorDataCommandTestMode(t *testing.T) {
	rec := runProcessor(t, []logic.Packet{
		{Type: logic.PacketStart},
		{Type: logic.PacketCommand, Value: 0x48},
	})

	warns := rec.byClass(logic.AnnWarn)
	require.Len(t, warns, 1)
	assert.Equal(t, "test mode enabled", firstText(warns))
}

func TestProcessorDisplayControl(t *testing.T) {
	tests := []struct {
		name  string
		value byte
		want  string
	}{
		{"on full brightness", 0x8F, "Display control: on, pulse width 14/16"},
		{"on with duty", 0x8A, "Display control: on, pulse width 4/16"},
		{"off", 0x80, "Display control: off"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := runProcessor(t, []logic.Packet{
				{Type: logic.PacketStart},
				{Type: logic.PacketCommand, Value: tt.value},
			})

			infos := rec.byClass(logic.AnnInfo)
			require.Len(t, infos, 1)
			assert.Equal(t, tt.want, firstText(infos))
		})
	}
}

func TestProcessorAddressCommand(t *testing.T) {
	rec := runProcessor(t, []logic.Packet{
		{Type: logic.PacketStart},
		{Type: logic.PacketCommand, Value: 0xC3},
	})

	infos := rec.byClass(logic.AnnInfo)
	require.Len(t, infos, 1)
	assert.Equal(t, "Address command: GRID4", firstText(infos))
}

func TestProcessorAddressOutOfRange(t *testing.T) {
	rec := runProcessor(t, []logic.Packet{
		{Type: logic.PacketStart},
		{Type: logic.PacketCommand, Value: 0xFF},
	})

	warns := rec.byClass(logic.AnnWarn)
	require.Len(t, warns, 1)
	assert.Contains(t, firstText(warns), "out of range")
}

func TestProcessorSegmentDataFollowsAddress(t *testing.T) {
	rec := runProcessor(t, []logic.Packet{
		{Type: logic.PacketStart},
		{Type: logic.PacketCommand, Value: 0x40},
		{Type: logic.PacketStop},
		{Type: logic.PacketStart},
		{Type: logic.PacketCommand, Value: 0xC0},
		{Type: logic.PacketData, Value: 0xFF},
		{Type: logic.PacketData, Value: 0x3C},
		{Type: logic.PacketStop},
	})

	infos := rec.byClass(logic.AnnInfo)
	require.Len(t, infos, 4)
	assert.Equal(t, "Address command: GRID1", infos[1].Texts[0])
	assert.Equal(t, "Segment data for GRID1", infos[2].Texts[0])
	assert.Equal(t, "Segment data for GRID2", infos[3].Texts[0])
}

func TestProcessorDataBeforeCommand(t *testing.T) {
	rec := runProcessor(t, []logic.Packet{
		{Type: logic.PacketStart},
		{Type: logic.PacketData, Value: 0x12},
	})

	warns := rec.byClass(logic.AnnWarn)
	require.Len(t, warns, 1)
	assert.Equal(t, "Data byte before any command", firstText(warns))
}

func TestProcessorNack(t *testing.T) {
	rec := runProcessor(t, []logic.Packet{
		{Type: logic.PacketStart},
		{Type: logic.PacketNack},
	})

	warns := rec.byClass(logic.AnnWarn)
	require.Len(t, warns, 1)
	assert.Equal(t, "NACK from device", firstText(warns))
}
