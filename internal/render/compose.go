package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/juju/errors"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Composition helpers shared by the menu screens. All of them write
// into the caller's frame and touch nothing else, so drawing stays
// side-effect-free with respect to launcher state.

var (
	Black  = color.RGBA{A: 0xff}
	White  = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	Yellow = color.RGBA{R: 0xff, G: 0xff, A: 0xff}
	Red    = color.RGBA{R: 0xff, A: 0xff}
	Gray   = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
)

// RowHeight is the text line advance for the 7x13 face.
const RowHeight = 13

func Clear(img *image.RGBA, c color.RGBA) {
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// Text draws one line with its baseline at y.
func Text(img *image.RGBA, x, y int, c color.RGBA, s string) {
	d := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: c},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func FillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r.Intersect(img.Bounds()), &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func StrokeRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	FillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), c)
	FillRect(img, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), c)
	FillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), c)
	FillRect(img, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// ProgressBar draws an outlined bar filled proportionally to
// written/total. total=0 draws the outline only.
func ProgressBar(img *image.RGBA, r image.Rectangle, written, total uint32) {
	StrokeRect(img, r, White)
	if total == 0 {
		return
	}
	pct := uint64(written) * 100 / uint64(total)
	if pct > 100 {
		pct = 100
	}
	inner := r.Inset(1)
	filled := inner.Dx() * int(pct) / 100
	if filled > 0 {
		FillRect(img, image.Rect(inner.Min.X, inner.Min.Y, inner.Min.X+filled, inner.Max.Y), Yellow)
	}
}

// QR composes a QR code into the largest square that fits dst, anchored
// at dst.Min. Adapted from the vending display path.
func QR(img *image.RGBA, dst image.Rectangle, text string) error {
	qr, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return errors.Annotate(err, "QR")
	}
	qr.DisableBorder = true
	side := dst.Dx()
	if dst.Dy() < side {
		side = dst.Dy()
	}
	qimg := qr.Image(side)
	draw.Draw(img, image.Rectangle{Min: dst.Min, Max: dst.Min.Add(image.Pt(side, side))}.Intersect(img.Bounds()),
		qimg, qimg.Bounds().Min, draw.Src)
	return nil
}
