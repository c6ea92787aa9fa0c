package decoder

import (
	"github.com/pulselab/strobe/pkg/logic"
)

// Decoder reconstructs protocol-level events from raw logic samples.
// Segments must be fed in capture order; a Decoder carries pin state and
// partial frames across segment boundaries.
type Decoder interface {
	// Reset returns the decoder to its initial state, dropping any
	// partially assembled frame.
	Reset()
	// Process consumes one segment of samples.
	Process(seg *logic.Segment) error
}

// Emitter receives annotations as a decoder produces them. Implementations
// are provided by the session owning the decoder.
type Emitter interface {
	Annotate(ann logic.Annotation)
}
