// Package framebuffer drives a Linux fbdev device in RGB565.
package framebuffer

import (
	"encoding/binary"
	"image"
	"image/color"
	"os"
	"unsafe"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

const (
	getVariableScreenInfo = 0x4600 // FBIOGET_VSCREENINFO
	getFixedScreenInfo    = 0x4602 // FBIOGET_FSCREENINFO
)

type bitField struct {
	Offset uint32
	Length uint32
	Right  uint32
}

type fixedScreenInfo struct {
	Id           [16]byte
	SmemStart    uint64
	SmemLen      uint32
	Type         uint32
	TypeAux      uint32
	Visual       uint32
	Xpanstep     uint16
	Ypanstep     uint16
	Ywrapstep    uint16
	LineLength   uint32
	MmioStart    uint64
	MmioLen      uint32
	Accel        uint32
	Capabilities uint16
	Reserved     [2]uint16
}

type variableScreenInfo struct {
	Xres         uint32
	Yres         uint32
	XresVirtual  uint32
	YresVirtual  uint32
	Xoffset      uint32
	Yoffset      uint32
	BitsPerPixel uint32
	Grayscale    uint32
	Red          bitField
	Green        bitField
	Blue         bitField
	Transp       bitField
	Nonstd       uint32
	Activate     uint32
	Height       uint32
	Width        uint32
	AccelFlags   uint32
	Pixclock     uint32
	LeftMargin   uint32
	RightMargin  uint32
	UpperMargin  uint32
	LowerMargin  uint32
	HsyncLen     uint32
	VsyncLen     uint32
	Sync         uint32
	Vmode        uint32
	Rotate       uint32
	Colorspace   uint32
	Reserved     [4]uint32
}

type Framebuffer struct {
	buf   []byte
	dev   *os.File
	finfo fixedScreenInfo
	vinfo variableScreenInfo
}

func New(dev string) (*Framebuffer, error) {
	devFile, err := os.OpenFile(dev, os.O_RDWR, os.ModeDevice)
	if err != nil {
		return nil, errors.Annotate(err, "open")
	}
	fb := &Framebuffer{dev: devFile}
	fd := fb.dev.Fd()

	if err = ioctl(fd, getFixedScreenInfo, uintptr(unsafe.Pointer(&fb.finfo))); err != nil {
		fb.dev.Close()
		return nil, errors.Annotate(err, "getFixedScreenInfo")
	}
	if err = ioctl(fd, getVariableScreenInfo, uintptr(unsafe.Pointer(&fb.vinfo))); err != nil {
		fb.dev.Close()
		return nil, errors.Annotate(err, "getVariableScreenInfo")
	}

	fb.buf = make([]byte, fb.vinfo.Xres*fb.vinfo.Yres*(fb.vinfo.BitsPerPixel/8))
	return fb, nil
}

func (fb *Framebuffer) Close() { fb.dev.Close() }

func (fb *Framebuffer) Flush() error {
	_, err := fb.dev.WriteAt(fb.buf, 0)
	return err
}

func (fb *Framebuffer) Size() image.Point {
	return image.Point{X: int(fb.vinfo.Xres), Y: int(fb.vinfo.Yres)}
}

// Update sets all pixels in the internal buffer, Flush() writes to hardware.
func (fb *Framebuffer) Update(cs []color.RGBA) error {
	cs = cs[:fb.vinfo.Xres*fb.vinfo.Yres]
	wordSize := fb.vinfo.BitsPerPixel / 8
	switch {
	case fb.vinfo.Red == rgb565.Red && fb.vinfo.Green == rgb565.Green && fb.vinfo.Blue == rgb565.Blue:
		for i, c := range cs {
			offset := uint32(i) * wordSize
			binary.BigEndian.PutUint16(fb.buf[offset:], Encode565(c))
		}
		return nil

	default:
		return errors.NotSupportedf("color model")
	}
}

var rgb565 = variableScreenInfo{
	Red:   bitField{Offset: 11, Length: 5, Right: 0},
	Green: bitField{Offset: 5, Length: 6, Right: 0},
	Blue:  bitField{Offset: 0, Length: 5, Right: 0},
}

func Encode565(c color.RGBA) uint16 {
	return Encode565FromBytes(c.R, c.G, c.B)
}

func Encode565FromBytes(r, g, b byte) uint16 {
	return (uint16(r) & 0xf8 << 8) | (uint16(g) & 0xfc << 3) | (uint16(b) & 0xf8 >> 3)
}

func ioctl(fd uintptr, cmd uintptr, data uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, cmd, data); errno != 0 {
		return os.NewSyscallError("ioctl", errno)
	}
	return nil
}
