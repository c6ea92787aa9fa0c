package config

import "time"

type Config struct {
	SampleRate         int                 `yaml:"sample_rate"`
	Source             string              `yaml:"source"`
	CaptureLocation    string              `yaml:"capture_location"`
	ReadChunkSize      int                 `yaml:"read_chunk_size"`
	Decoders           []Decoder           `yaml:"decoders"`
	OutputDestinations []OutputDestination `yaml:"output_destinations"`
	NATS               struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
	VizServer struct {
		Port           int           `yaml:"port"`
		UpdateInterval time.Duration `yaml:"update_interval_ms"`
	} `yaml:"viz_server"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	}
}

type OutputDestination struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Decoder configures one decode session. Channels maps the decoder's
// signal names (for TMC: clk, dio, stb) to capture channel indexes.
type Decoder struct {
	ID       int            `yaml:"id"`
	Type     string         `yaml:"type"`
	Name     string         `yaml:"name"`
	Channels map[string]int `yaml:"channels,flow"`
	Radix    string         `yaml:"radix"`
}
