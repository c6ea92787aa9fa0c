// Package timing accumulates clock period measurements for jitter
// reporting.
package timing

import (
	"sync"

	"gonum.org/v1/gonum/stat"
)

type Stats struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Collector keeps the most recent clock periods, in seconds.
type Collector struct {
	mu      sync.Mutex
	periods []float64
	size    int
}

func NewCollector(size int) *Collector {
	return &Collector{
		size: size,
	}
}

func (c *Collector) Add(period float64) {
	c.mu.Lock()
	c.periods = append(c.periods, period)
	if len(c.periods) > c.size {
		c.periods = c.periods[len(c.periods)-c.size:]
	}
	c.mu.Unlock()
}

func (c *Collector) Reset() {
	c.mu.Lock()
	c.periods = c.periods[:0]
	c.mu.Unlock()
}

func (c *Collector) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.periods) == 0 {
		return Stats{}
	}

	s := Stats{
		Count: len(c.periods),
		Mean:  stat.Mean(c.periods, nil),
		Min:   c.periods[0],
		Max:   c.periods[0],
	}
	if len(c.periods) > 1 {
		s.StdDev = stat.StdDev(c.periods, nil)
	}
	for _, p := range c.periods {
		if p < s.Min {
			s.Min = p
		}
		if p > s.Max {
			s.Max = p
		}
	}
	return s
}
