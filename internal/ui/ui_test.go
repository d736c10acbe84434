package ui

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/alive/v2"

	"github.com/m5lab/launcher/hardware/display"
	"github.com/m5lab/launcher/hardware/flash"
	"github.com/m5lab/launcher/hardware/input"
	"github.com/m5lab/launcher/internal/catalog"
	"github.com/m5lab/launcher/internal/chainload"
	"github.com/m5lab/launcher/internal/render"
	"github.com/m5lab/launcher/internal/storage"
	"github.com/m5lab/launcher/internal/types"
	"github.com/m5lab/launcher/log2"
)

type uiEnv struct {
	alive    *alive.Alive
	src      *input.MockSource
	fs       *storage.Mock
	dev      *flash.MockDevice
	sink     *display.Mock
	swap     *render.Swapchain
	ui       *UI
	rebooted chan flash.Slot
}

// Logging goes to nil here: the loops outlive individual asserts and a
// test logger must not be written to after the test returns.
func newUIEnv(t *testing.T) *uiEnv {
	env := &uiEnv{
		alive:    alive.NewAlive(),
		src:      input.NewMockSource(32),
		fs:       storage.NewMock(),
		dev:      flash.NewMockDevice(1 << 20),
		sink:     display.NewMock(image.Point{X: 240, Y: 135}),
		rebooted: make(chan flash.Slot, 1),
	}
	var log *log2.Log
	env.swap = render.NewSwapchain(env.sink, log)
	env.swap.Start()

	dispatch := input.NewDispatch(log, env.alive.StopChan())
	go dispatch.Run([]input.Source{env.src})

	env.ui = &UI{
		Log:    log,
		Alive:  env.alive,
		Inputs: dispatch,
		Install: &chainload.Installer{
			Log:     log,
			Flash:   env.dev,
			Storage: env.fs,
		},
		Storage: env.fs,
		AppsDir: "apps",
		Swap:    env.swap,
		Reboot:  func(slot flash.Slot) { env.rebooted <- slot },
		Tick:    time.Millisecond,
	}
	t.Cleanup(func() {
		env.alive.Stop()
		env.alive.Wait()
		env.src.Close()
		env.swap.Stop()
	})
	return env
}

// waitDrawn blocks until the loop presented its first frame. The loop
// subscribes to input before it ever draws, so keys pushed after this
// cannot be dropped by the dispatch.
func (env *uiEnv) waitDrawn(t *testing.T) {
	deadline := time.Now().Add(5 * time.Second)
	for env.sink.Transfers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first frame timeout")
		}
		time.Sleep(time.Millisecond)
	}
}

func (env *uiEnv) addApp(path string, size int) {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i)
	}
	env.fs.AddFile(path, b)
}

func TestUILaunchFlow(t *testing.T) {
	t.Parallel()

	env := newUIEnv(t)
	env.addApp("apps/clock.bin", 3000)
	env.addApp("apps/weather.bin", 800000)
	env.dev.Record = flash.BootRecord{Target: flash.SlotA, Valid: true}

	go env.ui.Loop()
	env.waitDrawn(t)

	// down to weather.bin, confirm twice
	env.src.Push(types.KeyDown)
	env.src.Push(types.KeyAccept)
	env.src.Push(types.KeyAccept)

	select {
	case slot := <-env.rebooted:
		assert.Equal(t, flash.SlotB, slot)
	case <-time.After(5 * time.Second):
		t.Fatal("reboot timeout")
	}

	assert.Equal(t, []flash.Slot{flash.SlotB}, env.dev.Commits)
	assert.Equal(t, 800000, len(env.dev.Images[flash.SlotB]))
	target, valid := env.dev.BootTarget()
	assert.True(t, valid)
	assert.Equal(t, flash.SlotB, target)
	assert.True(t, env.sink.Transfers() > 0, "progress and final frames were presented")
}

func TestUIRejectKeepsRecord(t *testing.T) {
	t.Parallel()

	env := newUIEnv(t)
	env.addApp("apps/clock.bin", 100)
	env.dev.Record = flash.BootRecord{Target: flash.SlotA, Valid: true}

	go env.ui.Loop()
	env.waitDrawn(t)

	env.src.Push(types.KeyAccept)
	env.src.Push(types.KeyReject)
	time.Sleep(100 * time.Millisecond)

	select {
	case <-env.rebooted:
		t.Fatal("reject must not launch")
	default:
	}
	assert.Empty(t, env.dev.Erases)
	assert.Empty(t, env.dev.Commits)
}

func TestUIStaleEntrySurfacesError(t *testing.T) {
	t.Parallel()

	env := newUIEnv(t)
	env.addApp("apps/clock.bin", 100)
	env.dev.Record = flash.BootRecord{Target: flash.SlotB, Valid: true}

	go env.ui.Loop()
	env.waitDrawn(t)
	// File vanishes between scan and confirm.
	env.fs.Remove("apps/clock.bin")

	env.src.Push(types.KeyAccept)
	env.src.Push(types.KeyAccept)
	time.Sleep(200 * time.Millisecond)

	select {
	case <-env.rebooted:
		t.Fatal("stale entry must not launch")
	default:
	}
	target, valid := env.dev.BootTarget()
	assert.True(t, valid)
	assert.Equal(t, flash.SlotB, target, "record untouched on failure")
}

func TestRestoreSelected(t *testing.T) {
	t.Parallel()

	fs := storage.NewMock()
	fs.AddFile("apps/a.bin", make([]byte, 1))
	fs.AddFile("apps/b.bin", make([]byte, 1))
	fs.AddFile("apps/c.bin", make([]byte, 1))

	log := log2.NewTest(t, log2.LDebug)
	settings, err := NewSettings(t.TempDir(), log)
	require.NoError(t, err)
	settings.SetLastSelected("apps/b.bin")

	u := &UI{Log: log, Settings: settings}
	u.catalog = catalog.Scan(fs, "apps", log)
	assert.Equal(t, 1, u.restoreSelected())

	settings.SetLastSelected("apps/gone.bin")
	assert.Equal(t, 0, u.restoreSelected())

	var none *Settings
	u2 := &UI{Log: log, Settings: none}
	u2.catalog = u.catalog
	assert.Equal(t, 0, u2.restoreSelected())
}

func TestSettingsReload(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	dir := t.TempDir()

	s1, err := NewSettings(dir, log)
	require.NoError(t, err)
	s1.SetLastSelected("apps/weather.bin")

	s2, err := NewSettings(dir, log)
	require.NoError(t, err)
	assert.Equal(t, "apps/weather.bin", s2.LastSelected())
}

func TestDrawScreens(t *testing.T) {
	t.Parallel()

	fs := storage.NewMock()
	fs.AddFile("apps/a.bin", make([]byte, 2048))
	c := catalog.Scan(fs, "apps", nil)
	empty := catalog.Scan(storage.NewMock(), "apps", nil)

	img := image.NewRGBA(image.Rect(0, 0, 240, 135))
	st := Status{Uptime: 42 * time.Second, Armed: flash.SlotA, ArmedValid: true, StorageOK: true,
		WebURL: "http://192.168.4.1:8080"}

	states := []State{
		{Kind: StateBrowsing},
		{Kind: StateConfirmLaunch},
		{Kind: StateFlashing, Written: 1024, Total: 2048},
		{Kind: StateError, Message: "Flash failed, try again"},
		{Kind: StateRebooting, Target: flash.SlotB},
	}
	for _, s := range states {
		Draw(img, s, c, st)
		Draw(img, s, empty, st) // incl QR path on empty browsing
	}
	// Selection out of catalog range must not panic mid-rescan.
	Draw(img, State{Kind: StateConfirmLaunch, Selected: 9}, c, st)
	Draw(img, State{Kind: StateFlashing, Selected: 9}, c, st)
}
