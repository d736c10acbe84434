package state

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m5lab/launcher/log2"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	c, err := ReadConfig(strings.NewReader(""), log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)
	assert.Equal(t, "/sdcard", c.Storage.AppRoot)
	assert.Equal(t, "/sdcard/apps", c.Storage.AppsDir)
	assert.Equal(t, 3<<20, c.Flash.SlotCapacity)
	assert.Equal(t, "fbdev", c.Display.Backend)
	assert.Equal(t, "/dev/fb0", c.Display.Device)
	assert.Equal(t, ":8080", c.Web.Listen)
	assert.NotEmpty(t, c.Persist.Root)
	assert.NotEmpty(t, c.Flash.Dir)
}

func TestConfigOverrides(t *testing.T) {
	t.Parallel()

	const conf = `
storage { app_root = "/mnt/sd" apps_dir = "/mnt/sd/apps" }
persist { root = "/var/lib/launcher" }
flash { slot_capacity = 1048576 }
display { backend = "spi" device = "SPI0.0" width = 240 height = 135 spi_hz = 40000000 }
input { evdev_device = "/dev/input/event2" }
recovery { gpio_chip = "/dev/gpiochip0" gpio_line = 4 active_low = true }
web { enable = true url = "http://192.168.4.1:8080" }
ui { tick_ms = 16 }
`
	c, err := ReadConfig(strings.NewReader(conf), log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)
	assert.Equal(t, "/mnt/sd", c.Storage.AppRoot)
	assert.Equal(t, "/var/lib/launcher", c.Persist.Root)
	assert.Equal(t, 1048576, c.Flash.SlotCapacity)
	assert.Equal(t, "spi", c.Display.Backend)
	assert.Equal(t, "SPI0.0", c.Display.Device)
	assert.Equal(t, 40000000, c.Display.SpiHz)
	assert.Equal(t, "/dev/input/event2", c.Input.EvdevDevice)
	assert.Equal(t, uint32(4), uint32(c.Recovery.GpioLine))
	assert.True(t, c.Recovery.ActiveLow)
	assert.True(t, c.Web.Enable)
	assert.Equal(t, "http://192.168.4.1:8080", c.Web.URL)
	assert.Equal(t, 16, c.UI.TickMs)
}

func TestConfigInvalidCapacity(t *testing.T) {
	t.Parallel()

	_, err := ReadConfig(strings.NewReader(`flash { slot_capacity = -1 }`),
		log2.NewTest(t, log2.LDebug))
	assert.Error(t, err)
}

func TestConfigBadSyntax(t *testing.T) {
	t.Parallel()

	_, err := ReadConfig(strings.NewReader(`storage { app_root = `),
		log2.NewTest(t, log2.LDebug))
	assert.Error(t, err)
}

func TestNewTestContext(t *testing.T) {
	t.Parallel()

	ctx, g := NewTestContext(t, `web { enable = true }`)
	assert.Same(t, g, GetGlobal(ctx))
	assert.True(t, g.Config.Web.Enable)
}
