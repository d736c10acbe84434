package display

import (
	"image"
	"image/draw"
	"strings"
	"sync"
	"time"
)

// Mock is the test/simulator sink. It copies every transferred frame
// and exposes begin/end hooks so swapchain tests can assert that a
// buffer is never composed into while a transfer is reading it.
type Mock struct {
	TransferDelay time.Duration
	BeginHook     func(img *image.RGBA)
	EndHook       func(img *image.RGBA)

	size      image.Point
	mu        sync.Mutex
	last      *image.RGBA
	transfers int
}

var _ Sink = new(Mock)

func NewMock(size image.Point) *Mock { return &Mock{size: size} }

func (self *Mock) Size() image.Point { return self.size }

func (self *Mock) Transfer(img *image.RGBA) error {
	if self.BeginHook != nil {
		self.BeginHook(img)
	}
	if self.TransferDelay > 0 {
		time.Sleep(self.TransferDelay)
	}
	cp := image.NewRGBA(img.Bounds())
	draw.Draw(cp, cp.Bounds(), img, img.Bounds().Min, draw.Src)
	self.mu.Lock()
	self.last = cp
	self.transfers++
	self.mu.Unlock()
	if self.EndHook != nil {
		self.EndHook(img)
	}
	return nil
}

func (self *Mock) Transfers() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.transfers
}

func (self *Mock) LastFrame() *image.RGBA {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.last
}

// String2 renders the last frame as text, dark pixels blank, anything
// else filled. Handy in the dev simulator and for eyeballing tests.
func (self *Mock) String2() string {
	self.mu.Lock()
	img := self.last
	self.mu.Unlock()
	if img == nil {
		return ""
	}
	b := strings.Builder{}
	size := img.Bounds().Size()
	b.Grow((size.X + 1) * size.Y)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			o := img.PixOffset(x, y)
			if img.Pix[o] == 0 && img.Pix[o+1] == 0 && img.Pix[o+2] == 0 {
				b.WriteByte(' ')
			} else {
				b.WriteString("█")
			}
		}
		b.WriteRune('\n')
	}
	return b.String()
}
