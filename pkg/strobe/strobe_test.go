package strobe

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/api/write"
	"github.com/pulselab/strobe/pkg/logic"
	"github.com/pulselab/strobe/pkg/strobe/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureWriteAPI records written points so tests can inspect metrics.
type captureWriteAPI struct {
	mu     sync.Mutex
	points []*write.Point
}

func (c *captureWriteAPI) WriteRecord(line string) {}

func (c *captureWriteAPI) WritePoint(p *write.Point) {
	c.mu.Lock()
	c.points = append(c.points, p)
	c.mu.Unlock()
}

func (c *captureWriteAPI) Flush() {}

func (c *captureWriteAPI) Close() {}

func (c *captureWriteAPI) Errors() <-chan error { return nil }

func (c *captureWriteAPI) skippedOutputs() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, p := range c.points {
		if p.Name() != "annotation.output" {
			continue
		}
		for _, f := range p.FieldList() {
			if f.Key != "skipped_outputs" {
				continue
			}
			switch v := f.Value.(type) {
			case int64:
				total += int(v)
			case int:
				total += v
			}
		}
	}
	return total
}

type fakeSource struct {
	rate     int
	segments []*logic.Segment
}

func (f *fakeSource) Start(ctx context.Context, segments chan *logic.Segment) error {
	for _, seg := range f.segments {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case segments <- seg:
		}
	}
	return nil
}

func (f *fakeSource) Stop() error { return nil }

func (f *fakeSource) SampleRate() int { return f.rate }

type collectOutput struct {
	mu       sync.Mutex
	recvChan chan *logic.Annotation
	anns     []*logic.Annotation
}

func newCollectOutput() *collectOutput {
	return &collectOutput{recvChan: make(chan *logic.Annotation, 256)}
}

func (o *collectOutput) Receive() chan<- *logic.Annotation { return o.recvChan }

func (o *collectOutput) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ann := <-o.recvChan:
			o.mu.Lock()
			o.anns = append(o.anns, ann)
			o.mu.Unlock()
		}
	}
}

func (o *collectOutput) annotations() []*logic.Annotation {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*logic.Annotation, len(o.anns))
	copy(out, o.anns)
	return out
}

// stuckOutput never drains its receive channel, so every fanout send to
// it must be skipped.
type stuckOutput struct {
	recvChan chan *logic.Annotation
}

func (o *stuckOutput) Receive() chan<- *logic.Annotation { return o.recvChan }

func (o *stuckOutput) Start(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// wire2Capture encodes a single-byte 2-wire transaction for a session
// with CLK on channel 0 and DIO on channel 1.
func wire2Capture(value byte) []byte {
	var buf []byte
	push := func(clk, dio byte) {
		buf = append(buf, clk|dio<<1)
	}

	push(1, 1)
	push(1, 0) // START
	for i := 0; i < 8; i++ {
		bit := (value >> uint(i)) & 1
		push(0, bit)
		push(1, bit)
	}
	push(0, 0)
	push(1, 0) // ACK slot
	push(0, 0)
	push(1, 0)
	push(1, 1) // STOP

	return buf
}

func TestEngineSkipsBlockedOutputs(t *testing.T) {
	const rate = 1000000

	metrics := &captureWriteAPI{}
	good := newCollectOutput()
	stuck := &stuckOutput{recvChan: make(chan *logic.Annotation)}

	source := &fakeSource{
		rate: rate,
		segments: []*logic.Segment{
			{SampleRate: rate, Number: 1, Data: wire2Capture(0x40)},
		},
	}

	engine, err := NewEngine(source, Options{
		SampleRate: rate,
		Decoders: []config.Decoder{{
			ID:       1,
			Type:     "tmc",
			Channels: map[string]int{"clk": 0, "dio": 1},
		}},
		Outputs: []AnnotationOutput{good, stuck},
	}, WithInfluxDB(metrics), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- engine.Start(context.Background())
	}()

	// Annotations must keep flowing to the healthy output even though
	// the stuck one never accepts a single send.
	require.Eventually(t, func() bool {
		return len(good.annotations()) > 0
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return metrics.skippedOutputs() > 0
	}, 5*time.Second, 10*time.Millisecond)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not wind down after the capture was replayed")
	}

	classes := make(map[logic.AnnClass]bool)
	for _, ann := range good.annotations() {
		classes[ann.Class] = true
	}
	assert.True(t, classes[logic.AnnCommand], "command annotation not delivered")
	assert.True(t, classes[logic.AnnStop], "stop annotation not delivered")
}

func TestNewEngineValidation(t *testing.T) {
	source := &fakeSource{rate: 1000000}

	_, err := NewEngine(source, Options{
		Decoders: []config.Decoder{{ID: 1, Type: "tmc"}},
	})
	assert.Error(t, err)

	_, err = NewEngine(source, Options{SampleRate: 1000000})
	assert.Error(t, err)
}
