package ui

import (
	"fmt"
	"image"
	"time"

	"github.com/m5lab/launcher/hardware/flash"
	"github.com/m5lab/launcher/internal/catalog"
	"github.com/m5lab/launcher/internal/render"
)

// Status is the ambient line at the top of every screen.
type Status struct {
	Uptime     time.Duration
	Armed      flash.Slot
	ArmedValid bool
	StorageOK  bool
	WebURL     string // empty when the file drop server is off
}

const (
	headerHeight = render.RowHeight + 3
	footerHeight = render.RowHeight + 3
	charWidth    = 7 // basicfont.Face7x13 advance
)

// Draw composes the full frame for a state. It only writes into img, so
// it is safe against whatever frame the swapchain hands out.
func Draw(img *image.RGBA, s State, c *catalog.Catalog, st Status) {
	render.Clear(img, render.Black)
	drawHeader(img, st)

	switch s.Kind {
	case StateBrowsing:
		drawBrowsing(img, s, c, st)
	case StateConfirmLaunch:
		drawConfirm(img, s, c)
	case StateFlashing:
		drawFlashing(img, s, c)
	case StateError:
		drawError(img, s)
	case StateRebooting:
		drawRebooting(img, s)
	}
}

func drawHeader(img *image.RGBA, st Status) {
	w := img.Bounds().Dx()
	y := render.RowHeight - 2
	up := int(st.Uptime / time.Second)
	render.Text(img, 2, y, render.Gray, fmt.Sprintf("up %d:%02d", up/60, up%60))
	if !st.StorageOK {
		render.Text(img, w/2-3*charWidth, y, render.Red, "no SD")
	}
	slot := "-"
	if st.ArmedValid {
		slot = st.Armed.String()
	}
	label := "slot " + slot
	render.Text(img, w-len(label)*charWidth-2, y, render.Gray, label)
	render.FillRect(img, image.Rect(0, headerHeight-1, w, headerHeight), render.Gray)
}

func drawFooter(img *image.RGBA, text string) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	render.FillRect(img, image.Rect(0, h-footerHeight, w, h-footerHeight+1), render.Gray)
	render.Text(img, 2, h-4, render.Gray, text)
}

func drawBrowsing(img *image.RGBA, s State, c *catalog.Catalog, st Status) {
	if c.Len() == 0 {
		drawEmpty(img, c, st)
		return
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	rows := (h - headerHeight - footerHeight) / render.RowHeight
	if rows < 1 {
		rows = 1
	}
	// Scroll window keeping the selection visible.
	first := 0
	if s.Selected >= rows {
		first = s.Selected - rows + 1
	}
	for i := 0; i < rows && first+i < c.Len(); i++ {
		e := c.At(first + i)
		top := headerHeight + i*render.RowHeight
		fg := render.White
		if first+i == s.Selected {
			render.FillRect(img, image.Rect(0, top, w, top+render.RowHeight), render.Yellow)
			fg = render.Black
		}
		render.Text(img, 2, top+render.RowHeight-3, fg, e.DisplayName)
	}
	drawFooter(img, fmt.Sprintf("%d/%d  ENTER=launch", s.Selected+1, c.Len()))
}

func drawEmpty(img *image.RGBA, c *catalog.Catalog, st Status) {
	msg := "No apps found"
	if c.Unavailable {
		msg = "Storage unavailable"
	}
	render.Text(img, 2, headerHeight+render.RowHeight, render.White, msg)
	if st.WebURL == "" {
		drawFooter(img, "copy .bin files to the card")
		return
	}
	render.Text(img, 2, headerHeight+2*render.RowHeight, render.Gray, st.WebURL)
	side := img.Bounds().Dy() - headerHeight - 2*render.RowHeight - footerHeight - 6
	if side > 21 { // QR version 1 is 21 modules
		top := headerHeight + 2*render.RowHeight + 4
		_ = render.QR(img, image.Rect(2, top, 2+side, top+side), st.WebURL)
	}
	drawFooter(img, "upload over wifi or copy to card")
}

func drawConfirm(img *image.RGBA, s State, c *catalog.Catalog) {
	if s.Selected >= c.Len() {
		return
	}
	e := c.At(s.Selected)
	render.Text(img, 2, headerHeight+render.RowHeight, render.White, "Launch?")
	render.Text(img, 2, headerHeight+2*render.RowHeight+4, render.Yellow, e.DisplayName)
	render.Text(img, 2, headerHeight+3*render.RowHeight+4, render.Gray,
		fmt.Sprintf("%d KB", (e.SizeBytes+1023)/1024))
	drawFooter(img, "ENTER=yes  BKSP=no")
}

func drawFlashing(img *image.RGBA, s State, c *catalog.Catalog) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	name := ""
	if s.Selected < c.Len() {
		name = c.At(s.Selected).DisplayName
	}
	render.Text(img, 2, headerHeight+render.RowHeight, render.White, "Flashing "+name)
	mid := h / 2
	render.ProgressBar(img, image.Rect(4, mid-6, w-4, mid+6), s.Written, s.Total)
	pct := uint64(0)
	if s.Total > 0 {
		pct = uint64(s.Written) * 100 / uint64(s.Total)
	}
	render.Text(img, 2, mid+render.RowHeight+6, render.Gray,
		fmt.Sprintf("%d%%  %d/%d", pct, s.Written, s.Total))
	drawFooter(img, "do not power off")
}

func drawError(img *image.RGBA, s State) {
	render.Text(img, 2, headerHeight+render.RowHeight, render.Red, s.Message)
	drawFooter(img, "press any key")
}

func drawRebooting(img *image.RGBA, s State) {
	render.Text(img, 2, headerHeight+render.RowHeight, render.White,
		"Rebooting into slot "+s.Target.String())
}
