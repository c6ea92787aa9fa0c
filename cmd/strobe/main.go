package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/pulselab/strobe/pkg/strobe"
	"github.com/pulselab/strobe/pkg/strobe/capture"
	"github.com/pulselab/strobe/pkg/strobe/capture/binfile"
	"github.com/pulselab/strobe/pkg/strobe/capture/vcd"
	"github.com/pulselab/strobe/pkg/strobe/config"
	"github.com/pulselab/strobe/pkg/strobe/output"
	"github.com/pulselab/strobe/pkg/strobe/viz"
	"github.com/pulselab/strobe/pkg/version"
	"golang.org/x/sync/errgroup"
)

const fileReadDelay = time.Millisecond * 16

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", "strobe.yaml", "YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")

	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}

	configContents, err := os.ReadFile(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error reading config file")
	}
	var opts config.Config
	if err := yaml.Unmarshal(configContents, &opts); err != nil {
		log.Fatal().Err(err).Msg("error unmarshaling yaml file")
	}

	var source capture.Source

	switch opts.Source {
	case "vcd":
		log.Info().Str("source", "vcd").Str("capture", opts.CaptureLocation).Msg("initializing source...")
		source, err = vcd.NewSource(opts.CaptureLocation, opts.SampleRate)
		if err != nil {
			log.Fatal().Str("source", "vcd").Err(err).Msg("failed to open VCD capture")
		}
	default:
		log.Info().Str("source", "binfile").Str("capture", opts.CaptureLocation).Msg("initializing source...")
		source, err = binfile.NewSource(opts.CaptureLocation, opts.ReadChunkSize, opts.SampleRate, fileReadDelay)
		if err != nil {
			log.Fatal().Str("source", "binfile").Err(err).Msg("failed to open raw capture")
		}
	}

	outputs := []strobe.AnnotationOutput{
		output.NewWriterOutput(os.Stdout, nil),
	}

	engineOpts := []strobe.EngineOption{
		strobe.WithLogger(log.Logger),
	}

	if opts.InfluxDB.Host != "" {
		influxWriteAPI := influxdb2.NewClient(opts.InfluxDB.Host, "").WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket)
		engineOpts = append(engineOpts, strobe.WithInfluxDB(influxWriteAPI))
		if len(opts.OutputDestinations) > 0 {
			outputs = append(outputs, output.NewJSONUDPOutput(opts.OutputDestinations, influxWriteAPI))
		}
	}

	if opts.NATS.URL != "" {
		outputs = append(outputs, output.NewNATSOutput(opts.NATS.URL, opts.NATS.SubjectPrefix))
	}

	var vizServer *viz.Server
	if opts.VizServer.Port > 0 {
		vizServer = viz.NewServer(opts.VizServer.Port, opts.VizServer.UpdateInterval)
		engineOpts = append(engineOpts, strobe.WithVizServer(vizServer))
	}

	engine, err := strobe.NewEngine(source,
		strobe.Options{
			SampleRate: opts.SampleRate,
			Decoders:   opts.Decoders,
			Outputs:    outputs,
		}, engineOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create engine")
	}

	eg, ctx := errgroup.WithContext(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {

		select {
		case <-sigChan:
		case <-ctx.Done():
		}

		return engine.Stop()
	})

	eg.Go(func() error {
		return engine.Start(ctx)
	})

	if err := eg.Wait(); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("exited program")
	}
}
