package main

import (
	"context"
	"flag"
	"path/filepath"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"

	"github.com/m5lab/launcher/cmd/launcher/subcmd"
	"github.com/m5lab/launcher/hardware/flash"
	"github.com/m5lab/launcher/helpers"
	"github.com/m5lab/launcher/internal/catalog"
	"github.com/m5lab/launcher/internal/chainload"
	"github.com/m5lab/launcher/internal/recovery"
	"github.com/m5lab/launcher/internal/render"
	"github.com/m5lab/launcher/internal/state"
	"github.com/m5lab/launcher/internal/storage"
	"github.com/m5lab/launcher/internal/ui"
	"github.com/m5lab/launcher/internal/web"
	"github.com/m5lab/launcher/log2"
)

func newFileDevice(cfg *state.Config, log *log2.Log) (*flash.FileDevice, error) {
	return flash.NewFileDevice(flash.FileDeviceConfig{
		Dir:          cfg.Flash.Dir,
		PersistRoot:  cfg.Persist.Root,
		SettingsRoot: filepath.Join(cfg.Persist.Root, "settings"),
		SlotCapacity: uint32(cfg.Flash.SlotCapacity),
	}, log)
}

func runMain(ctx context.Context, cfg *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, cfg)

	// Recovery decision comes before anything touches the boot record
	// or settings.
	if decideRecovery(g) == recovery.Recover {
		if err := recovery.Perform(g.Hardware.Flash, g.Log); err != nil {
			return errors.Trace(err)
		}
		// The init system restarts us into the factory image.
		return nil
	}

	settings, err := ui.NewSettings(cfg.Persist.Root, g.Log)
	if err != nil {
		g.Log.Errorf("settings init err=%v, running without", err)
		settings = nil
	}

	swap := render.NewSwapchain(g.Hardware.Display, g.Log)
	swap.Start()
	defer swap.Stop()

	webURL := ""
	if cfg.Web.Enable {
		ws := &web.Server{
			Log:      g.Log,
			Alive:    g.Alive,
			Dir:      cfg.Storage.AppsDir,
			Listen:   cfg.Web.Listen,
			MaxBytes: int64(cfg.Flash.SlotCapacity),
		}
		if err := ws.Start(); err != nil {
			g.Log.Errorf("web start err=%v, running without", err)
		} else {
			webURL = cfg.Web.URL
		}
	}

	u := &ui.UI{
		Log:    g.Log,
		Alive:  g.Alive,
		Inputs: g.Hardware.Input,
		Install: &chainload.Installer{
			Log:     g.Log,
			Flash:   g.Hardware.Flash,
			Storage: g.Storage,
		},
		Storage:  g.Storage,
		AppsDir:  cfg.Storage.AppsDir,
		Swap:     swap,
		Settings: settings,
		WebURL:   webURL,
		Reboot: func(slot flash.Slot) {
			g.Log.Infof("slot %s armed, restarting", slot)
			g.Stop()
		},
		Tick: helpers.IntMillisecondDefault(cfg.UI.TickMs, ui.DefaultTick),
	}

	subcmd.SdNotify(daemon.SdNotifyReady)
	g.Log.Infof("menu up")
	u.Loop()
	g.Alive.Wait()
	return nil
}

// decideRecovery samples the recovery key through the boot window. No
// configured key line means no window to wait out.
func decideRecovery(g *state.Global) recovery.Decision {
	cfg := &g.Config.Recovery
	if cfg.GpioChip == "" {
		return recovery.Proceed
	}
	line, err := recovery.NewGpioKey(recovery.GpioConfig{
		Chip:      cfg.GpioChip,
		Line:      uint32(cfg.GpioLine),
		ActiveLow: cfg.ActiveLow,
	})
	if err != nil {
		// A broken key line must not brick normal boot.
		g.Log.Errorf("recovery key err=%v", err)
		return recovery.Proceed
	}
	defer line.Close()

	sampler := &recovery.Sampler{
		Log:    g.Log,
		Line:   line,
		Hold:   helpers.IntMillisecondDefault(cfg.HoldMs, recovery.DefaultHold),
		Window: helpers.IntMillisecondDefault(cfg.WindowMs, recovery.DefaultWindow),
	}
	return sampler.Run()
}

// installMain chainloads one image from the command line, bypassing the
// menu. Useful over ssh and in provisioning scripts.
func installMain(ctx context.Context, cfg *state.Config) error {
	g := state.GetGlobal(ctx)
	g.Config = cfg
	path := flag.Arg(1)
	if path == "" {
		return errors.Errorf("syntax: launcher install PATH")
	}
	dev, err := newFileDevice(cfg, g.Log)
	if err != nil {
		return errors.Trace(err)
	}
	fs := storage.NewOS(cfg.Storage.AppRoot)
	size, err := fs.FileSize(path)
	if err != nil {
		return errors.Annotatef(err, "install path=%s", path)
	}
	ins := &chainload.Installer{Log: g.Log, Flash: dev, Storage: fs}
	slot, err := ins.Install(catalog.AppEntry{
		DisplayName: filepath.Base(path),
		StoragePath: path,
		SizeBytes:   size,
	}, nil)
	if err != nil {
		return errors.Trace(err)
	}
	g.Log.Infof("installed %s to slot %s", path, slot)
	return nil
}

func recoverMain(ctx context.Context, cfg *state.Config) error {
	g := state.GetGlobal(ctx)
	g.Config = cfg
	dev, err := newFileDevice(cfg, g.Log)
	if err != nil {
		return errors.Trace(err)
	}
	return recovery.Perform(dev, g.Log)
}
