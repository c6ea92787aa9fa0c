// Package vcd replays Value Change Dump captures. Declared 1-bit wires
// map to channel bit positions in declaration order; value changes are
// rasterized to fixed-rate logic segments.
package vcd

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pulselab/strobe/pkg/logic"
	"github.com/rs/zerolog/log"
)

const (
	defaultSegmentSize = 32768
	maxChannels        = 8
)

type Source struct {
	file        *os.File
	sampleRate  int
	segmentSize int
}

func NewSource(path string, sampleRate int) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	return &Source{
		file:        f,
		sampleRate:  sampleRate,
		segmentSize: defaultSegmentSize,
	}, nil
}

func (s *Source) Start(ctx context.Context, segments chan *logic.Segment) error {
	sc := bufio.NewScanner(s.file)
	sc.Split(bufio.ScanWords)

	perUnit, channels, err := parseHeader(sc)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		return fmt.Errorf("vcd: no 1-bit wires declared")
	}
	samplesPerUnit := perUnit * float64(s.sampleRate)

	w := &segWriter{
		segments: segments,
		rate:     s.sampleRate,
		size:     s.segmentSize,
	}

	var cur byte
	var curIdx uint64

	for sc.Scan() {
		tok := sc.Text()
		switch {
		case tok[0] == '#':
			t, err := strconv.ParseUint(tok[1:], 10, 64)
			if err != nil {
				return fmt.Errorf("vcd: bad timestamp %q: %w", tok, err)
			}
			idx := uint64(math.Round(float64(t) * samplesPerUnit))
			if idx > curIdx {
				if err := w.fill(ctx, idx-curIdx, cur); err != nil {
					return err
				}
				curIdx = idx
			}

		case tok[0] == '0' || tok[0] == '1':
			cur = applyChange(cur, channels, tok[1:], tok[0] == '1')

		case tok[0] == 'x' || tok[0] == 'X' || tok[0] == 'z' || tok[0] == 'Z':
			// Unknown and high-impedance states decode as low.
			cur = applyChange(cur, channels, tok[1:], false)

		case tok[0] == 'b' || tok[0] == 'B':
			value := tok[1:]
			if !sc.Scan() {
				return fmt.Errorf("vcd: vector change %q missing identifier", tok)
			}
			level := len(value) > 0 && value[len(value)-1] == '1'
			cur = applyChange(cur, channels, sc.Text(), level)

		case strings.HasPrefix(tok, "$"):
			// $dumpvars and friends carry value changes handled above;
			// the directive tokens themselves are noise.
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	// Make the final state visible for one sample.
	if err := w.fill(ctx, 1, cur); err != nil {
		return err
	}
	return w.flush(ctx)
}

func (s *Source) Stop() error {
	return s.file.Close()
}

func (s *Source) SampleRate() int {
	return s.sampleRate
}

func applyChange(cur byte, channels map[string]int, id string, level bool) byte {
	ch, ok := channels[id]
	if !ok {
		return cur
	}
	if level {
		return cur | 1<<uint(ch)
	}
	return cur &^ (1 << uint(ch))
}

// parseHeader consumes declarations up to $enddefinitions, returning
// seconds per VCD time unit and the wire identifier to channel mapping.
func parseHeader(sc *bufio.Scanner) (float64, map[string]int, error) {
	perUnit := 1e-9 // default when no $timescale is declared
	channels := make(map[string]int)

	for sc.Scan() {
		switch tok := sc.Text(); tok {
		case "$timescale":
			var err error
			perUnit, err = parseTimescale(collectUntilEnd(sc))
			if err != nil {
				return 0, nil, err
			}

		case "$var":
			fields := collectUntilEnd(sc)
			if len(fields) < 3 {
				return 0, nil, fmt.Errorf("vcd: malformed $var declaration %v", fields)
			}
			if fields[1] != "1" {
				log.Warn().Str("wire", fields[2]).Msg("vcd: ignoring multi-bit wire")
				continue
			}
			if len(channels) >= maxChannels {
				log.Warn().Str("wire", fields[2]).Msg("vcd: ignoring wire beyond channel capacity")
				continue
			}
			channels[fields[2]] = len(channels)

		case "$enddefinitions":
			collectUntilEnd(sc)
			return perUnit, channels, nil

		default:
			if strings.HasPrefix(tok, "$") && tok != "$end" {
				collectUntilEnd(sc)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return 0, nil, err
	}
	return 0, nil, fmt.Errorf("vcd: missing $enddefinitions")
}

func collectUntilEnd(sc *bufio.Scanner) []string {
	var fields []string
	for sc.Scan() {
		if sc.Text() == "$end" {
			break
		}
		fields = append(fields, sc.Text())
	}
	return fields
}

var timeUnits = map[string]float64{
	"s":  1,
	"ms": 1e-3,
	"us": 1e-6,
	"ns": 1e-9,
	"ps": 1e-12,
	"fs": 1e-15,
}

func parseTimescale(fields []string) (float64, error) {
	joined := strings.Join(fields, "")
	i := 0
	for i < len(joined) && joined[i] >= '0' && joined[i] <= '9' {
		i++
	}
	num, err := strconv.Atoi(joined[:i])
	if err != nil {
		return 0, fmt.Errorf("vcd: bad $timescale %q", joined)
	}
	unit, ok := timeUnits[joined[i:]]
	if !ok {
		return 0, fmt.Errorf("vcd: unknown time unit %q", joined[i:])
	}
	return float64(num) * unit, nil
}

type segWriter struct {
	segments chan *logic.Segment
	rate     int
	size     int
	buf      []byte
	next     uint64
	num      int
}

func (w *segWriter) fill(ctx context.Context, n uint64, val byte) error {
	for n > 0 {
		if w.buf == nil {
			w.buf = make([]byte, 0, w.size)
		}
		take := uint64(w.size - len(w.buf))
		if take > n {
			take = n
		}
		for i := uint64(0); i < take; i++ {
			w.buf = append(w.buf, val)
		}
		n -= take
		if len(w.buf) == w.size {
			if err := w.flush(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *segWriter) flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}
	w.num++
	seg := &logic.Segment{
		SampleRate: w.rate,
		Start:      w.next,
		Number:     w.num,
		Data:       w.buf,
	}
	w.next = seg.End()
	w.buf = nil

	select {
	case <-ctx.Done():
		return ctx.Err()
	case w.segments <- seg:
	}
	return nil
}
