// Package state wires configuration to hardware backends and carries
// the shared lifecycle through context.
package state

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"

	"github.com/m5lab/launcher/hardware/display"
	"github.com/m5lab/launcher/hardware/flash"
	"github.com/m5lab/launcher/hardware/input"
	"github.com/m5lab/launcher/internal/storage"
	"github.com/m5lab/launcher/log2"
)

const ContextKey = "run/state-global"

type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Config       *Config
	Log          *log2.Log

	Hardware struct {
		Input   *input.Dispatch
		Display display.Sink
		Flash   flash.Device
	}
	Storage storage.Access

	inputSources []input.Source
}

func NewContext(log *log2.Log) (context.Context, *Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}
	g := &Global{
		Alive: alive.NewAlive(),
		Log:   log,
	}
	ctx := context.Background()
	ctx = context.WithValue(ctx, log2.ContextKey, log)
	ctx = context.WithValue(ctx, ContextKey, g)
	return ctx, g
}

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// If Init fails, consider Global is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg
	g.Log.Infof("build version=%s", g.BuildVersion)

	g.Storage = storage.NewOS(cfg.Storage.AppRoot)

	if g.Hardware.Flash == nil {
		dev, err := flash.NewFileDevice(flash.FileDeviceConfig{
			Dir:         cfg.Flash.Dir,
			PersistRoot: cfg.Persist.Root,
			// The settings store lives under its own persist tag; wiping
			// it must not take the boot record with it.
			SettingsRoot: filepath.Join(cfg.Persist.Root, "settings"),
			SlotCapacity: uint32(cfg.Flash.SlotCapacity),
		}, g.Log)
		if err != nil {
			return errors.Annotate(err, "init flash")
		}
		g.Hardware.Flash = dev
	}

	if err := g.initDisplay(); err != nil {
		return errors.Annotate(err, "init display")
	}
	if err := g.initInput(); err != nil {
		return errors.Annotate(err, "init input")
	}
	return nil
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	if err := g.Init(ctx, cfg); err != nil {
		g.Log.Fatal(errors.ErrorStack(err))
	}
}

func (g *Global) initDisplay() error {
	if g.Hardware.Display != nil { // testing mode
		return nil
	}
	cfg := &g.Config.Display
	switch cfg.Backend {
	case "fbdev":
		d, err := display.NewFbdev(cfg.Device)
		if err != nil {
			return errors.Annotatef(err, "display backend=fbdev device=%s", cfg.Device)
		}
		g.Hardware.Display = d

	case "spi":
		d, err := display.NewSPI(display.SPIConfig{
			Port:   cfg.Device,
			HZ:     int64(cfg.SpiHz),
			Width:  cfg.Width,
			Height: cfg.Height,
		})
		if err != nil {
			return errors.Annotatef(err, "display backend=spi port=%s", cfg.Device)
		}
		g.Hardware.Display = d

	case "mock":
		g.Hardware.Display = display.NewMock(image.Point{X: cfg.Width, Y: cfg.Height})

	default:
		return errors.NotValidf("config: display.backend=%s valid: fbdev, spi, mock", cfg.Backend)
	}
	return nil
}

func (g *Global) initInput() error {
	if g.Hardware.Input != nil { // testing mode
		return nil
	}
	g.Hardware.Input = input.NewDispatch(g.Log, g.Alive.StopChan())
	if dev := g.Config.Input.EvdevDevice; dev != "" {
		src, err := input.NewDevInputEventSource(dev)
		if err != nil {
			return errors.Annotatef(err, "input evdev_device=%s", dev)
		}
		g.inputSources = append(g.inputSources, src)
	}
	go g.Hardware.Input.Run(g.inputSources)
	return nil
}

// AddInputSource registers a source before Init starts the dispatch.
func (g *Global) AddInputSource(src input.Source) {
	g.inputSources = append(g.inputSources, src)
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Error(err)
	}
}

func (g *Global) Fatal(err error, args ...interface{}) {
	if err != nil {
		g.Error(err, args...)
		g.StopWait(5 * time.Second)
		g.Log.Fatal(err)
	}
}

func (g *Global) Stop() { g.Alive.Stop() }

func (g *Global) StopWait(timeout time.Duration) bool {
	g.Alive.Stop()
	select {
	case <-g.Alive.WaitChan():
		return true
	case <-time.After(timeout):
		return false
	}
}

func NewTestContext(t testing.TB, confString string) (context.Context, *Global) {
	log := log2.NewTest(t, log2.LDebug)
	log.SetFlags(log2.LTestFlags)
	ctx, g := NewContext(log)
	g.BuildVersion = "test"
	cfg := MustReadConfig(strings.NewReader(confString), log)
	// Tests run on mocks; Init would open real devices.
	g.Config = cfg
	return ctx, g
}
