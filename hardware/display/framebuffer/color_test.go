package framebuffer

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncode565(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		c      color.RGBA
		expect uint16
	}{
		{"black", color.RGBA{0, 0, 0, 0xff}, 0x0000},
		{"white", color.RGBA{0xff, 0xff, 0xff, 0xff}, 0xffff},
		{"red", color.RGBA{0xff, 0, 0, 0xff}, 0xf800},
		{"green", color.RGBA{0, 0xff, 0, 0xff}, 0x07e0},
		{"blue", color.RGBA{0, 0, 0xff, 0xff}, 0x001f},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expect, Encode565(c.c))
		})
	}
}
