package display

import (
	"image"

	"github.com/juju/errors"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"

	"github.com/m5lab/launcher/hardware/display/framebuffer"
)

// SPI streams RGB565 frames to a panel over a DMA-capable SPI port.
// Panel register init is done by the boot firmware before the launcher
// runs; this sink only pushes pixel data.
type SPI struct {
	port spi.PortCloser
	conn spi.Conn
	size image.Point
	line []byte // one row of RGB565, reused
}

var _ Sink = new(SPI)

type SPIConfig struct {
	Port   string // spireg name, e.g. "SPI0.0"
	HZ     int64
	Width  int
	Height int
}

func NewSPI(cfg SPIConfig) (*SPI, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Annotate(err, "periph host init")
	}
	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, errors.Annotatef(err, "spi open port=%s", cfg.Port)
	}
	conn, err := port.Connect(physic.Frequency(cfg.HZ)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, errors.Annotatef(err, "spi connect port=%s", cfg.Port)
	}
	return &SPI{
		port: port,
		conn: conn,
		size: image.Point{X: cfg.Width, Y: cfg.Height},
		line: make([]byte, cfg.Width*2),
	}, nil
}

func (self *SPI) Size() image.Point { return self.size }

func (self *SPI) Transfer(img *image.RGBA) error {
	if !img.Bounds().Size().Eq(self.size) {
		return errors.Errorf("spi transfer frame=%s display=%s", img.Bounds().Size(), self.size)
	}
	for y := 0; y < self.size.Y; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < self.size.X; x++ {
			o := x * 4
			word := framebuffer.Encode565FromBytes(row[o], row[o+1], row[o+2])
			self.line[x*2] = byte(word >> 8)
			self.line[x*2+1] = byte(word)
		}
		if err := self.conn.Tx(self.line, nil); err != nil {
			return errors.Annotatef(err, "spi tx row=%d", y)
		}
	}
	return nil
}

func (self *SPI) Close() error { return self.port.Close() }
