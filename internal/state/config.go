package state

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"

	"github.com/m5lab/launcher/log2"
)

// Compile-time defaults; the config file only overrides what a
// particular board needs.
const (
	DefaultAppRoot      = "/sdcard"
	DefaultAppsDir      = "/sdcard/apps"
	DefaultSlotCapacity = 3 << 20
	DefaultWebListen    = ":8080"
)

type Config struct {
	Storage struct {
		AppRoot string `hcl:"app_root"`
		AppsDir string `hcl:"apps_dir"`
	} `hcl:"storage"`

	Persist struct {
		Root string `hcl:"root"`
	} `hcl:"persist"`

	Flash struct {
		// Dir holds the slot image files for the file-backed device.
		Dir          string `hcl:"dir"`
		SlotCapacity int    `hcl:"slot_capacity"`
	} `hcl:"flash"`

	Display struct {
		Backend string `hcl:"backend"` // fbdev|spi|mock
		Device  string `hcl:"device"`  // /dev/fb0 or spireg port name
		Width   int    `hcl:"width"`
		Height  int    `hcl:"height"`
		SpiHz   int    `hcl:"spi_hz"`
	} `hcl:"display"`

	Input struct {
		EvdevDevice string `hcl:"evdev_device"`
	} `hcl:"input"`

	Recovery struct {
		GpioChip  string `hcl:"gpio_chip"`
		GpioLine  int    `hcl:"gpio_line"`
		ActiveLow bool   `hcl:"active_low"`
		HoldMs    int    `hcl:"hold_ms"`
		WindowMs  int    `hcl:"window_ms"`
	} `hcl:"recovery"`

	Web struct {
		Enable bool   `hcl:"enable"`
		Listen string `hcl:"listen"`
		// URL is what the empty-catalog screen shows and encodes as QR;
		// the device cannot guess its own reachable address.
		URL string `hcl:"url"`
	} `hcl:"web"`

	UI struct {
		TickMs int `hcl:"tick_ms"`
	} `hcl:"ui"`
}

func (c *Config) setDefaults(log *log2.Log) error {
	if c.Storage.AppRoot == "" {
		c.Storage.AppRoot = DefaultAppRoot
	}
	if c.Storage.AppsDir == "" {
		c.Storage.AppsDir = DefaultAppsDir
	}
	if c.Persist.Root == "" {
		c.Persist.Root = "./launcher-db"
		log.Errorf("config: persist.root=empty changed=%s", c.Persist.Root)
	}
	if c.Flash.Dir == "" {
		c.Flash.Dir = filepath.Join(c.Persist.Root, "slots")
	}
	if c.Flash.SlotCapacity == 0 {
		c.Flash.SlotCapacity = DefaultSlotCapacity
	} else if c.Flash.SlotCapacity < 0 {
		return errors.NotValidf("config: flash.slot_capacity < 0")
	}
	if c.Display.Backend == "" {
		c.Display.Backend = "fbdev"
	}
	if c.Display.Device == "" && c.Display.Backend == "fbdev" {
		c.Display.Device = "/dev/fb0"
	}
	if c.Web.Listen == "" {
		c.Web.Listen = DefaultWebListen
	}
	return nil
}

func ReadConfig(r io.Reader, log *log2.Log) (*Config, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	c := new(Config)
	if err = hcl.Unmarshal(b, c); err != nil {
		return nil, errors.Annotate(err, "config parse")
	}
	if err = c.setDefaults(log); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadConfigFile tolerates a missing file: the launcher must boot on a
// factory-fresh device with nothing but defaults.
func ReadConfigFile(path string, log *log2.Log) (*Config, error) {
	if pathAbs, err := filepath.Abs(path); err != nil {
		log.Errorf("filepath.Abs(%s) error=%v", path, err)
	} else {
		path = pathAbs
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		log.Infof("config file %s absent, using defaults", path)
		c := new(Config)
		if err = c.setDefaults(log); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	log.Debugf("reading config file %s", path)
	return ReadConfig(f, log)
}

func MustReadConfig(r io.Reader, log *log2.Log) *Config {
	c, err := ReadConfig(r, log)
	if err != nil {
		log.Fatal(err)
	}
	return c
}

func MustReadConfigFile(path string, log *log2.Log) *Config {
	c, err := ReadConfigFile(path, log)
	if err != nil {
		log.Fatal(err)
	}
	return c
}
