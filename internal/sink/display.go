package sink

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	"codeberg.org/frostwatch/freezerctl/internal/errors"
	"codeberg.org/frostwatch/freezerctl/internal/sensor"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// frameTarget is the part of the SSD1306 driver the display sink needs.
type frameTarget interface {
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Bounds() image.Rectangle
	Halt() error
}

// Display renders the latest reading to a small OLED. Each frame overwrites
// the previous one; alert readings get a border and a marker so they stand
// out on a 128x32 panel across the room.
type Display struct {
	dev  frameTarget
	face font.Face
}

// NewDisplay initializes the SSD1306 with the given panel geometry. The
// driver fixes the I2C address at 0x3C.
func NewDisplay(bus i2c.Bus, width, height int) (*Display, error) {
	opts := ssd1306.Opts{W: width, H: height, Sequential: true}
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInitFailed, err)
	}

	return &Display{dev: dev, face: basicfont.Face7x13}, nil
}

func newDisplayWithTarget(dev frameTarget) *Display {
	return &Display{dev: dev, face: basicfont.Face7x13}
}

func (d *Display) Name() string {
	return "display"
}

func (d *Display) Publish(_ context.Context, r sensor.Reading) error {
	bounds := d.dev.Bounds()
	img := image1bit.NewVerticalLSB(bounds)

	title := r.Source
	if r.Alert {
		title += " !"
	}

	body := d.formatBody(r)

	d.drawString(img, 2, 12, title)
	d.drawString(img, 2, 27, body)

	if r.Alert {
		drawBorder(img, bounds)
	}

	if err := d.dev.Draw(bounds, img, image.Point{}); err != nil {
		return errors.Wrap(errors.ErrSinkFailure, err)
	}

	return nil
}

func (d *Display) formatBody(r sensor.Reading) string {
	if r.Sentinel {
		return "T  --.-  RH  --.-"
	}

	t, _ := r.Value(sensor.Temperature)
	rh, _ := r.Value(sensor.Humidity)
	return fmt.Sprintf("T%6.1fC RH%5.1f%%", t, rh)
}

func (d *Display) drawString(img draw.Image, x, y int, s string) {
	drawer := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: d.face,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(s)
}

// Close blanks the panel.
func (d *Display) Close() error {
	if err := d.dev.Halt(); err != nil {
		return errors.Wrap(errors.ErrShutdownFailed, err)
	}
	return nil
}

func drawBorder(img draw.Image, bounds image.Rectangle) {
	for x := bounds.Min.X; x < bounds.Max.X; x++ {
		img.Set(x, bounds.Min.Y, image1bit.On)
		img.Set(x, bounds.Max.Y-1, image1bit.On)
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		img.Set(bounds.Min.X, y, image1bit.On)
		img.Set(bounds.Max.X-1, y, image1bit.On)
	}
}
