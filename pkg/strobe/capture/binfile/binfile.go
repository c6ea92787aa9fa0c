// Package binfile replays packed raw logic dumps: one byte per sample,
// bit k carrying channel k, at a rate given by configuration.
package binfile

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/pulselab/strobe/pkg/logic"
)

const defaultReadSize = 65536

type Source struct {
	readFile    *os.File
	readSize    int
	timeBetween time.Duration
	sampleRate  int
	nextSample  uint64
	segNum      int
}

func NewSource(path string, readSize int, sampleRate int, timeBetween time.Duration) (*Source, error) {
	if readSize <= 0 {
		readSize = defaultReadSize
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	return &Source{
		readFile:    f,
		readSize:    readSize,
		timeBetween: timeBetween,
		sampleRate:  sampleRate,
	}, nil
}

func (s *Source) Start(ctx context.Context, segments chan *logic.Segment) error {
	tick := time.NewTicker(s.timeBetween)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			buf := make([]byte, s.readSize)
			n, err := s.readFile.Read(buf)
			if n > 0 {
				s.segNum++
				seg := &logic.Segment{
					SampleRate: s.sampleRate,
					Start:      s.nextSample,
					Number:     s.segNum,
					Data:       buf[:n],
				}
				s.nextSample = seg.End()

				select {
				case <-ctx.Done():
					return ctx.Err()
				case segments <- seg:
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
		}
	}
}

func (s *Source) Stop() error {
	return s.readFile.Close()
}

func (s *Source) SampleRate() int {
	return s.sampleRate
}
