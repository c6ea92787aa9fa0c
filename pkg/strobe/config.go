package strobe

import (
	"github.com/pulselab/strobe/pkg/strobe/config"
)

type Options struct {
	SampleRate int
	Decoders   []config.Decoder
	Outputs    []AnnotationOutput
}
