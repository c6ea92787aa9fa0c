package viz

import (
	"bytes"
	"fmt"
	"sync"

	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const channelSpacing = 1.5

// TracePlotter renders the most recent logic samples as stacked
// per-channel step traces.
type TracePlotter struct {
	mu          sync.Mutex
	buf         []byte
	size        int
	channels    int
	name        string
	plotOptions []PlotOptions
}

func NewTracePlotter(name string, channels, size int) *TracePlotter {
	return &TracePlotter{
		size:     size,
		channels: channels,
		name:     name,
	}
}

func (tp *TracePlotter) Name() string {
	return tp.name
}

func (tp *TracePlotter) AppendSamples(data []byte) {
	tp.mu.Lock()
	tp.buf = append(tp.buf, data...)

	if len(tp.buf) > tp.size {
		tp.buf = tp.buf[len(tp.buf)-tp.size:]
	}
	tp.mu.Unlock()
}

func (tp *TracePlotter) AddPlotOption(opt PlotOptions) {
	tp.plotOptions = append(tp.plotOptions, opt)
}

func (tp *TracePlotter) GetImage() *ImageContainer {
	tp.mu.Lock()
	buf := make([]byte, len(tp.buf))
	copy(buf, tp.buf)
	tp.mu.Unlock()

	if len(buf) < tp.size {
		return nil
	}

	p := plotWithDefaults()

	p.Title.Text = tp.name
	p.Y.Label.Text = "Channel"
	p.Y.Min = -0.5
	p.Y.Max = float64(tp.channels) * channelSpacing
	p.X.Label.Text = "sample"

	for _, opt := range tp.plotOptions {
		opt(p)
	}

	grid := plotter.NewGrid()
	p.Add(grid)

	args := make([]interface{}, 0, tp.channels*2)
	for ch := 0; ch < tp.channels; ch++ {
		xys := make(plotter.XYs, len(buf))
		for i, sample := range buf {
			level := float64((sample >> uint(ch)) & 1)
			xys[i] = plotter.XY{X: float64(i), Y: level + float64(ch)*channelSpacing}
		}
		args = append(args, fmt.Sprintf("ch%d", ch), xys)
	}

	if err := plotutil.AddLines(p, args...); err != nil {
		return nil
	}

	var imageData bytes.Buffer
	w, err := p.WriterTo(8*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		panic(err)
	}
	w.WriteTo(&imageData)
	return &ImageContainer{name: tp.name, data: imageData.Bytes()}
}
