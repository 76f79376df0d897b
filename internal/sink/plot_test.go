package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/frostwatch/freezerctl/internal/sensor"
)

// A window of N must hold exactly the N most recent readings after N+k
// publishes, oldest first.
func TestPlotWindowEvictsOldest(t *testing.T) {
	p, err := NewPlot(filepath.Join(t.TempDir(), "freezer.png"), 5, 1000)
	require.NoError(t, err)

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		r := reading("freezer", base.Add(time.Duration(i)*time.Minute), float64(-18-i), 60.0, false)
		require.NoError(t, p.Publish(context.Background(), r))
	}

	snap := p.Snapshot()
	require.Len(t, snap, 5)
	assert.Equal(t, base.Add(3*time.Minute), snap[0].Time)
	assert.Equal(t, base.Add(7*time.Minute), snap[4].Time)
}

func TestPlotSeriesSkipsNaN(t *testing.T) {
	p, err := NewPlot(filepath.Join(t.TempDir(), "freezer.png"), 10, 1000)
	require.NoError(t, err)

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), reading("freezer", base, -18.0, 60.0, false)))
	require.NoError(t, p.Publish(context.Background(), sensor.NewSentinel("freezer", base.Add(time.Minute))))
	require.NoError(t, p.Publish(context.Background(), reading("freezer", base.Add(2*time.Minute), -18.5, 60.0, false)))

	xys := p.series(sensor.Temperature)
	require.Len(t, xys, 2)
	assert.Equal(t, float64(base.Unix()), xys[0].X)
	assert.InDelta(t, -18.0, xys[0].Y, 0.01)
	assert.InDelta(t, -18.5, xys[1].Y, 0.01)
}

func TestPlotRendersEveryN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "freezer.png")
	p, err := NewPlot(path, 10, 3)
	require.NoError(t, err)

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		r := reading("freezer", base.Add(time.Duration(i)*time.Minute), -18.0, 60.0, false)
		require.NoError(t, p.Publish(context.Background(), r))
	}
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "rendered before the interval elapsed")

	r := reading("freezer", base.Add(2*time.Minute), -18.0, 60.0, false)
	require.NoError(t, p.Publish(context.Background(), r))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	// No stray temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestPlotCloseRendersFinalFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "freezer.png")
	p, err := NewPlot(path, 10, 1000)
	require.NoError(t, err)

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), reading("freezer", base, -18.0, 60.0, false)))
	require.NoError(t, p.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
