package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pulselab/strobe/pkg/logic"
)

const annotationBufferLength = 64

// WriterOutput renders annotations as text lines, buffered and flushed in
// sample order so interleaved rows stay readable.
type WriterOutput struct {
	dest        io.Writer
	recvChan    chan *logic.Annotation
	flushEvery  time.Duration
	classFilter map[logic.AnnClass]struct{}
}

// NewWriterOutput writes annotation lines to dest. When classes is
// non-empty only those annotation classes are rendered.
func NewWriterOutput(dest io.Writer, classes []logic.AnnClass) *WriterOutput {
	ret := &WriterOutput{
		dest:        dest,
		recvChan:    make(chan *logic.Annotation, annotationBufferLength),
		flushEvery:  time.Second,
		classFilter: make(map[logic.AnnClass]struct{}),
	}

	for _, class := range classes {
		ret.classFilter[class] = struct{}{}
	}

	return ret
}

func (w *WriterOutput) Receive() chan<- *logic.Annotation {
	return w.recvChan
}

func (w *WriterOutput) Start(ctx context.Context) error {
	pending := make([]*logic.Annotation, 0, annotationBufferLength)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		sort.SliceStable(pending, func(i, j int) bool {
			return pending[i].Start < pending[j].Start
		})

		var b bytes.Buffer
		for _, ann := range pending {
			text := ""
			if len(ann.Texts) > 0 {
				text = ann.Texts[0]
			}
			fmt.Fprintf(&b, "%10d-%-10d %s/%d %-8s %s\n",
				ann.Start, ann.End, ann.Decoder, ann.SessionID, ann.ClassName, text)
		}
		pending = pending[:0]

		_, err := b.WriteTo(w.dest)
		return err
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()

		case <-time.After(w.flushEvery):
			if err := flush(); err != nil {
				return err
			}

		case ann := <-w.recvChan:
			if len(w.classFilter) > 0 {
				if _, ok := w.classFilter[ann.Class]; !ok {
					continue
				}
			}

			pending = append(pending, ann)
			if len(pending) == annotationBufferLength {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}
