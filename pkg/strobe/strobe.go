package strobe

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/pulselab/strobe/pkg/logic"
	"github.com/pulselab/strobe/pkg/strobe/capture"
	"github.com/pulselab/strobe/pkg/strobe/viz"
	"github.com/pulselab/strobe/pkg/util"
	"golang.org/x/sync/errgroup"
)

const annotationFanoutWorkers = 4

// Engine runs decode sessions over a capture source and fans resulting
// annotations out to outputs.
type Engine struct {
	source    capture.Source
	opts      Options
	writeAPI  api.WriteAPI
	segChan   chan *logic.Segment
	annChan   chan *logic.Annotation
	vizServer *viz.Server
	sessions  []*Session
	logger    zerolog.Logger

	cancel context.CancelFunc
	ctx    context.Context
}

type EngineOption func(e *Engine) error

func WithInfluxDB(writeAPI api.WriteAPI) EngineOption {
	return func(e *Engine) error {
		e.writeAPI = writeAPI
		return nil
	}
}

func WithVizServer(vizServer *viz.Server) EngineOption {
	return func(e *Engine) error {
		e.vizServer = vizServer
		return nil
	}
}

func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

func NewEngine(source capture.Source, options Options, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		source:   source,
		opts:     options,
		segChan:  make(chan *logic.Segment, 1),
		annChan:  make(chan *logic.Annotation, 64),
		writeAPI: &util.MockWriteAPI{}, // overwritten with option
		logger:   log.Logger,
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if e.opts.SampleRate == 0 {
		return nil, fmt.Errorf("must specify sample rate")
	}
	if len(e.opts.Decoders) == 0 {
		return nil, fmt.Errorf("must specify at least one decoder")
	}

	return e, nil
}

func (e *Engine) Stop() error {
	e.cancel()
	if e.vizServer != nil {
		e.vizServer.Stop(context.TODO())
	}
	return e.source.Stop()
}

func (e *Engine) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	e.ctx, e.cancel = context.WithCancel(ctx)

	for _, cfg := range e.opts.Decoders {
		sess, err := NewSession(e, cfg)
		if err != nil {
			return err
		}
		e.sessions = append(e.sessions, sess)
	}

	eg.Go(func() error {
		err := e.source.Start(e.ctx, e.segChan)
		// Source exhausted or failed; give in-flight annotations a
		// moment to drain, then wind the pipeline down.
		time.Sleep(500 * time.Millisecond)
		e.cancel()
		return err
	})

	if e.vizServer != nil {
		eg.Go(func() error {
			return e.vizServer.Run(e.ctx)
		})
	}

	for _, sess := range e.sessions {
		thisSess := sess
		eg.Go(func() error {
			return thisSess.proc.Start(e.ctx)
		})
	}

	for i := 0; i < annotationFanoutWorkers; i++ {
		eg.Go(e.fanoutAnnotations)
	}

	eg.Go(e.processSegments)

	for _, output := range e.opts.Outputs {
		thisOutput := output
		eg.Go(func() error {
			return thisOutput.Start(e.ctx)
		})
	}

	log.Info().
		Str("sample_rate", logic.SampleRateToString(e.opts.SampleRate)).
		Int("sessions", len(e.sessions)).
		Msg("Starting")

	if err := eg.Wait(); err != nil {
		return err
	}
	return nil
}

func (e *Engine) processSegments() error {
	for {
		select {
		case <-e.ctx.Done():
			return e.ctx.Err()
		case seg := <-e.segChan:

			eg, _ := errgroup.WithContext(e.ctx)

			for _, sess := range e.sessions {
				thisSess := sess
				eg.Go(func() error {
					return thisSess.Process(seg)
				})
			}

			if err := eg.Wait(); err != nil {
				return err
			}

			go e.writeAPI.WritePoint(influxdb2.NewPoint("segment.processed",
				map[string]string{
					"source": "capture",
				},
				map[string]interface{}{
					"samples":  len(seg.Data),
					"sessions": len(e.sessions),
				}, time.Now()))
		}
	}
}

func (e *Engine) fanoutAnnotations() error {
	for {
		select {
		case <-e.ctx.Done():
			return e.ctx.Err()
		case ann := <-e.annChan:

			skippedOutputs := 0
			for _, output := range e.opts.Outputs {
				select {
				case output.Receive() <- ann:
					// We will not wait on blocked channels.
				default:
					skippedOutputs++
				}
			}

			if skippedOutputs > 0 {
				go e.writeAPI.WritePoint(influxdb2.NewPoint("annotation.output",
					map[string]string{
						"decoder": ann.Decoder,
					},
					map[string]interface{}{
						"skipped_outputs": skippedOutputs,
					}, time.Now()))
			}
		}
	}
}

func (e *Engine) emitAnnotation(ann logic.Annotation) {
	select {
	case <-e.ctx.Done():
	case e.annChan <- &ann:
	}
}
