// Package viz serves live waveform plots over HTTP.
package viz

import (
	"image/color"

	"gonum.org/v1/plot"
)

// PlotOptions mutates a plot before rendering.
type PlotOptions func(p *plot.Plot)

// plotWithDefaults builds a plot in the dark theme all traces share.
func plotWithDefaults() *plot.Plot {
	p := plot.New()
	p.BackgroundColor = color.Black

	fg := color.White
	p.Title.TextStyle.Color = fg
	p.Legend.TextStyle.Color = fg
	for _, axis := range []*plot.Axis{&p.X, &p.Y} {
		axis.Color = fg
		axis.Label.TextStyle.Color = fg
		axis.Tick.Color = fg
		axis.Tick.Label.Color = fg
	}

	return p
}
