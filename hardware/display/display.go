// Package display is the pixel sink boundary. The render pipeline owns
// frame composition and double buffering; a Sink only knows how to push
// one complete frame to the panel. Transfer blocks for the duration of
// the hardware transaction, so the render pipeline calls it from its
// own goroutine, never from the main loop.
package display

import (
	"image"
	"image/color"

	"github.com/juju/errors"

	"github.com/m5lab/launcher/hardware/display/framebuffer"
)

type Sink interface {
	Size() image.Point
	Transfer(img *image.RGBA) error
}

// Fbdev streams frames to a Linux framebuffer device.
type Fbdev struct {
	fb  *framebuffer.Framebuffer
	pix []color.RGBA
}

var _ Sink = new(Fbdev)

func NewFbdev(dev string) (*Fbdev, error) {
	fb, err := framebuffer.New(dev)
	if err != nil {
		return nil, errors.Annotatef(err, "framebuffer device=%s", dev)
	}
	size := fb.Size()
	return &Fbdev{
		fb:  fb,
		pix: make([]color.RGBA, size.X*size.Y),
	}, nil
}

func (self *Fbdev) Size() image.Point { return self.fb.Size() }

func (self *Fbdev) Transfer(img *image.RGBA) error {
	size := self.fb.Size()
	if !img.Bounds().Size().Eq(size) {
		return errors.Errorf("fbdev transfer frame=%s display=%s", img.Bounds().Size(), size)
	}
	for y := 0; y < size.Y; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < size.X; x++ {
			o := x * 4
			self.pix[y*size.X+x] = color.RGBA{row[o], row[o+1], row[o+2], row[o+3]}
		}
	}
	if err := self.fb.Update(self.pix); err != nil {
		return errors.Annotate(err, "fbdev update")
	}
	return errors.Annotate(self.fb.Flush(), "fbdev flush")
}

func (self *Fbdev) Close() { self.fb.Close() }
