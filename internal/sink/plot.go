package sink

import (
	"context"
	"math"
	"os"
	"path/filepath"

	"codeberg.org/frostwatch/freezerctl/internal/errors"
	"codeberg.org/frostwatch/freezerctl/internal/sensor"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot accumulates readings in a bounded window (strict FIFO, oldest
// evicted first) and periodically renders a temperature/humidity
// time-series chart to a PNG.
type Plot struct {
	path        string
	window      []sensor.Reading
	capacity    int
	renderEvery int
	sincePlot   int
}

// NewPlot returns a plot sink with a window of capacity readings that
// renders every renderEvery publishes.
func NewPlot(path string, capacity, renderEvery int) (*Plot, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, errors.Wrap(errors.ErrInitFailed, err)
	}
	return &Plot{
		path:        path,
		window:      make([]sensor.Reading, 0, capacity),
		capacity:    capacity,
		renderEvery: renderEvery,
	}, nil
}

func (p *Plot) Name() string {
	return "plot"
}

func (p *Plot) Publish(_ context.Context, r sensor.Reading) error {
	p.push(r)

	p.sincePlot++
	if p.sincePlot < p.renderEvery {
		return nil
	}
	p.sincePlot = 0

	if err := p.render(); err != nil {
		return errors.Wrap(errors.ErrSinkFailure, err)
	}

	return nil
}

func (p *Plot) push(r sensor.Reading) {
	if len(p.window) == p.capacity {
		copy(p.window, p.window[1:])
		p.window = p.window[:p.capacity-1]
	}
	p.window = append(p.window, r)
}

// Snapshot returns the buffered readings, oldest first.
func (p *Plot) Snapshot() []sensor.Reading {
	out := make([]sensor.Reading, len(p.window))
	copy(out, p.window)
	return out
}

func (p *Plot) render() error {
	pl := plot.New()
	pl.Title.Text = "Freezer"
	pl.X.Tick.Marker = plot.TimeTicks{Format: "15:04"}
	pl.Y.Label.Text = "°C / %RH"
	pl.Add(plotter.NewGrid())

	for _, q := range []string{sensor.Temperature, sensor.Humidity} {
		xys := p.series(q)
		if len(xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		pl.Add(line)
		pl.Legend.Add(q, line)
	}

	// Write to a temp file first so readers never see a torn image.
	tmp := p.path + ".tmp"
	if err := pl.Save(8*vg.Inch, 3*vg.Inch, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return err
	}

	return nil
}

func (p *Plot) series(quantity string) plotter.XYs {
	xys := make(plotter.XYs, 0, len(p.window))
	for _, r := range p.window {
		v, ok := r.Value(quantity)
		if !ok || math.IsNaN(v) {
			continue
		}
		xys = append(xys, plotter.XY{
			X: float64(r.Time.Unix()),
			Y: v,
		})
	}
	return xys
}

func (p *Plot) Close() error {
	if len(p.window) == 0 {
		return nil
	}
	if err := p.render(); err != nil {
		return errors.Wrap(errors.ErrShutdownFailed, err)
	}
	return nil
}
