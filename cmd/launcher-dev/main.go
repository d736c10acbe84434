// Menu simulator for development machines: mock display rendered as
// text in the terminal, keys from stdin. No flash, framebuffer or gpio
// required.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/m5lab/launcher/hardware/display"
	"github.com/m5lab/launcher/hardware/flash"
	"github.com/m5lab/launcher/hardware/input"
	"github.com/m5lab/launcher/internal/chainload"
	"github.com/m5lab/launcher/internal/render"
	"github.com/m5lab/launcher/internal/state"
	"github.com/m5lab/launcher/internal/types"
	"github.com/m5lab/launcher/internal/ui"
	"github.com/m5lab/launcher/internal/web"
	"github.com/m5lab/launcher/log2"
)

const usage = `keys: w=up s=down a=accept x=reject r=rescan q=quit (then enter)`

func main() {
	flagConfig := flag.String("config", "launcher-dev.hcl", "")
	flag.Parse()

	log := log2.NewStderr(log2.LDebug)
	log.SetFlags(log2.LInteractiveFlags)

	ctx, g := state.NewContext(log)
	g.BuildVersion = "dev"
	cfg := state.MustReadConfigFile(*flagConfig, log)

	// Simulator defaults: everything under a scratch dir, mock panel.
	if cfg.Storage.AppRoot == state.DefaultAppRoot {
		cfg.Storage.AppRoot = "./tmp-launcher-dev/sdcard"
		cfg.Storage.AppsDir = "./tmp-launcher-dev/sdcard/apps"
		cfg.Persist.Root = "./tmp-launcher-dev/db"
		cfg.Flash.Dir = "./tmp-launcher-dev/slots"
	}
	cfg.Display.Backend = "mock"
	if cfg.Display.Width == 0 {
		cfg.Display.Width = 240
		cfg.Display.Height = 135
	}
	if err := os.MkdirAll(cfg.Storage.AppsDir, 0755); err != nil {
		log.Fatal(err)
	}

	src := input.NewMockSource(16)
	g.AddInputSource(src)
	g.MustInit(ctx, cfg)
	mock := g.Hardware.Display.(*display.Mock)

	settings, err := ui.NewSettings(cfg.Persist.Root, log)
	if err != nil {
		log.Fatal(err)
	}

	swap := render.NewSwapchain(mock, log)
	swap.Start()
	defer swap.Stop()

	webURL := ""
	if cfg.Web.Enable {
		ws := &web.Server{Log: log, Alive: g.Alive, Dir: cfg.Storage.AppsDir,
			Listen: cfg.Web.Listen, MaxBytes: int64(cfg.Flash.SlotCapacity)}
		if err := ws.Start(); err != nil {
			log.Fatal(err)
		}
		webURL = cfg.Web.URL
		if webURL == "" {
			webURL = "http://127.0.0.1" + cfg.Web.Listen
		}
	}

	u := &ui.UI{
		Log:    log,
		Alive:  g.Alive,
		Inputs: g.Hardware.Input,
		Install: &chainload.Installer{
			Log:     log,
			Flash:   g.Hardware.Flash,
			Storage: g.Storage,
		},
		Storage:  g.Storage,
		AppsDir:  cfg.Storage.AppsDir,
		Swap:     swap,
		Settings: settings,
		WebURL:   webURL,
		Reboot: func(slot flash.Slot) {
			log.Infof("simulated reboot into slot %s", slot)
			g.Stop()
		},
	}
	go u.Loop()

	fmt.Println(usage)
	keys := map[byte]types.InputKey{
		'w': types.KeyUp,
		's': types.KeyDown,
		'a': types.KeyAccept,
		'x': types.KeyReject,
		'r': types.KeyRescan,
	}
	in := bufio.NewReader(os.Stdin)
	for g.Alive.IsRunning() {
		b, err := in.ReadByte()
		if err != nil {
			break
		}
		if b == 'q' {
			break
		}
		key, ok := keys[b]
		if !ok {
			continue
		}
		src.Push(key)
		time.Sleep(100 * time.Millisecond)
		fmt.Print("\033[H\033[2J") // clear terminal
		fmt.Println(mock.String2())
		fmt.Println(usage)
	}
	g.StopWait(3 * time.Second)
}
