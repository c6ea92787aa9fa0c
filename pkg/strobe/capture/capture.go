package capture

import (
	"context"

	"github.com/pulselab/strobe/pkg/logic"
)

// Source produces segments of logic samples at a fixed rate. A Source
// returning nil from Start signals the capture has been fully replayed.
type Source interface {
	Start(ctx context.Context, segments chan *logic.Segment) error
	Stop() error
	SampleRate() int
}
