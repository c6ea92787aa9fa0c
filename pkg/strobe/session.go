package strobe

import (
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/pulselab/strobe/pkg/logic"
	"github.com/pulselab/strobe/pkg/logic/decoder"
	"github.com/pulselab/strobe/pkg/logic/decoder/tmc"
	"github.com/pulselab/strobe/pkg/logic/timing"
	"github.com/pulselab/strobe/pkg/strobe/config"
	"github.com/pulselab/strobe/pkg/strobe/viz"
	"github.com/pulselab/strobe/pkg/util"
	"github.com/rs/zerolog"
)

const clockPeriodWindow = 1024

// Session binds one configured decoder to the engine: channel mapping,
// annotation plumbing, clock timing collection and per-segment metrics.
type Session struct {
	ID          int
	Name        string
	DecoderType string

	engine     *Engine
	dec        decoder.Decoder
	proc       decoder.Processor
	packetChan chan logic.Packet
	collector  *timing.Collector
	plotter    *viz.TracePlotter
	sampleRate int
	logger     zerolog.Logger

	lastBitStart uint64
	haveBit      bool
}

func NewSession(e *Engine, cfg config.Decoder) (*Session, error) {
	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("%s-%d", cfg.Type, cfg.ID)
	}

	s := &Session{
		ID:          cfg.ID,
		Name:        name,
		DecoderType: cfg.Type,
		engine:      e,
		packetChan:  make(chan logic.Packet, 16),
		collector:   timing.NewCollector(clockPeriodWindow),
		sampleRate:  e.opts.SampleRate,
		logger:      e.logger,
	}

	switch cfg.Type {
	case "tmc":
		if err := s.initTMC(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown decoder type %s", cfg.Type)
	}

	if e.vizServer != nil {
		s.plotter = viz.NewTracePlotter("trace", channelCount(cfg.Channels), 4096)
		e.vizServer.Register(s.Name, s.plotter)
	}

	return s, nil
}

func (s *Session) initTMC(cfg config.Decoder) error {
	channel := func(name string) int {
		if ch, ok := cfg.Channels[name]; ok {
			return ch
		}
		return -1
	}

	dec, err := tmc.NewDecoder(s.engine.ctx, tmc.Options{
		SessionID:  cfg.ID,
		SampleRate: s.engine.opts.SampleRate,
		CLK:        channel("clk"),
		DIO:        channel("dio"),
		STB:        channel("stb"),
		Radix:      logic.Radix(cfg.Radix),
	}, s, s.packetChan, s.logger)
	if err != nil {
		return err
	}

	s.dec = dec
	s.proc = tmc.NewProcessor(cfg.ID, s.packetChan, s, s.engine.writeAPI, s.logger)
	return nil
}

func (s *Session) Process(seg *logic.Segment) error {
	if s.plotter != nil {
		s.plotter.AppendSamples(seg.Data)
	}

	var err error
	elapsed := util.TimeOperationMicroseconds(func() {
		err = s.dec.Process(seg)
	})

	go s.engine.writeAPI.WritePoint(influxdb2.NewPoint("session.segment",
		map[string]string{
			"session": s.Name,
			"decoder": s.DecoderType,
		},
		map[string]interface{}{
			"samples":     len(seg.Data),
			"duration_us": elapsed,
		}, time.Now()))

	return err
}

// Annotate implements decoder.Emitter. Bit annotations feed the clock
// period collector; stats report at the end of each transaction.
func (s *Session) Annotate(ann logic.Annotation) {
	switch ann.Class {
	case logic.AnnBit:
		if s.haveBit && ann.Start > s.lastBitStart {
			s.collector.Add(float64(ann.Start-s.lastBitStart) / float64(s.sampleRate))
		}
		s.lastBitStart = ann.Start
		s.haveBit = true

	case logic.AnnStop:
		s.reportClockStats()
		s.haveBit = false
	}

	s.engine.emitAnnotation(ann)
}

func (s *Session) reportClockStats() {
	stats := s.collector.Snapshot()
	if stats.Count == 0 {
		return
	}

	s.logger.Debug().
		Str("session", s.Name).
		Int("periods", stats.Count).
		Float64("mean_us", stats.Mean*1e6).
		Float64("stddev_us", stats.StdDev*1e6).
		Msg("clock timing")

	go s.engine.writeAPI.WritePoint(influxdb2.NewPoint("session.clock",
		map[string]string{
			"session": s.Name,
			"decoder": s.DecoderType,
		},
		map[string]interface{}{
			"periods":  stats.Count,
			"mean_s":   stats.Mean,
			"stddev_s": stats.StdDev,
			"min_s":    stats.Min,
			"max_s":    stats.Max,
		}, time.Now()))

	s.collector.Reset()
}

func channelCount(channels map[string]int) int {
	max := 0
	for _, ch := range channels {
		if ch+1 > max {
			max = ch + 1
		}
	}
	return max
}
