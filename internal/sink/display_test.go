package sink

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"codeberg.org/frostwatch/freezerctl/internal/errors"
	"codeberg.org/frostwatch/freezerctl/internal/sensor"
)

type fakePanel struct {
	bounds image.Rectangle
	frame  *image1bit.VerticalLSB
	drawn  int
	halted bool
	fail   bool
}

func newFakePanel() *fakePanel {
	return &fakePanel{bounds: image.Rect(0, 0, 128, 32)}
}

func (f *fakePanel) Draw(r image.Rectangle, src image.Image, _ image.Point) error {
	if f.fail {
		return errors.New(errors.ErrInternal)
	}
	f.frame = image1bit.NewVerticalLSB(r)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			f.frame.Set(x, y, src.At(x, y))
		}
	}
	f.drawn++
	return nil
}

func (f *fakePanel) Bounds() image.Rectangle { return f.bounds }

func (f *fakePanel) Halt() error {
	f.halted = true
	return nil
}

func lit(frame *image1bit.VerticalLSB, x, y int) bool {
	return frame.BitAt(x, y) == image1bit.On
}

func countLit(frame *image1bit.VerticalLSB) int {
	n := 0
	b := frame.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if lit(frame, x, y) {
				n++
			}
		}
	}
	return n
}

func TestDisplayRendersReading(t *testing.T) {
	panel := newFakePanel()
	d := newDisplayWithTarget(panel)

	r := reading("freezer", time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC), -18.2, 60.5, false)
	require.NoError(t, d.Publish(context.Background(), r))

	assert.Equal(t, 1, panel.drawn)
	assert.Positive(t, countLit(panel.frame))
	// No alert border on a normal reading.
	assert.False(t, lit(panel.frame, 0, 0))
}

func TestDisplayAlertBorder(t *testing.T) {
	panel := newFakePanel()
	d := newDisplayWithTarget(panel)

	r := reading("freezer", time.Now(), -10.0, 60.5, true)
	require.NoError(t, d.Publish(context.Background(), r))

	assert.True(t, lit(panel.frame, 0, 0))
	assert.True(t, lit(panel.frame, 127, 0))
	assert.True(t, lit(panel.frame, 0, 31))
	assert.True(t, lit(panel.frame, 127, 31))
}

// An alert frame must differ from the in-range frame for the same
// temperature formatting, so a breach is visible at a glance.
func TestDisplayAlertFrameDiffers(t *testing.T) {
	at := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	normal := newFakePanel()
	require.NoError(t, newDisplayWithTarget(normal).Publish(context.Background(),
		reading("freezer", at, -18.0, 60.0, false)))

	alerted := newFakePanel()
	require.NoError(t, newDisplayWithTarget(alerted).Publish(context.Background(),
		reading("freezer", at, -18.0, 60.0, true)))

	assert.Greater(t, countLit(alerted.frame), countLit(normal.frame))
}

func TestDisplaySentinelBody(t *testing.T) {
	d := newDisplayWithTarget(newFakePanel())
	body := d.formatBody(sensor.NewSentinel("freezer", time.Now()))
	assert.Equal(t, "T  --.-  RH  --.-", body)

	body = d.formatBody(reading("freezer", time.Now(), -18.25, 60.5, false))
	assert.Equal(t, "T -18.2C RH 60.5%", body)
}

func TestDisplayDrawFailure(t *testing.T) {
	panel := newFakePanel()
	panel.fail = true
	d := newDisplayWithTarget(panel)

	err := d.Publish(context.Background(), reading("freezer", time.Now(), -18.0, 60.0, false))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSinkFailure))
}

func TestDisplayCloseHaltsPanel(t *testing.T) {
	panel := newFakePanel()
	d := newDisplayWithTarget(panel)

	require.NoError(t, d.Close())
	assert.True(t, panel.halted)
}
