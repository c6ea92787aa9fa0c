package strobe

import (
	"context"

	"github.com/pulselab/strobe/pkg/logic"
)

// AnnotationOutput handles decoded annotations.
type AnnotationOutput interface {
	// Start receives a context and should run in a loop, terminating upon ctx closing or on any errors.
	Start(ctx context.Context) error
	// Receive returns a channel that receives annotation input.
	Receive() chan<- *logic.Annotation
}
