package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m5lab/launcher/hardware/flash"
	"github.com/m5lab/launcher/internal/types"
)

func key(k types.InputKey) Event { return Event{Kind: EventKey, Key: k} }

func TestNavigationWraps(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		start  int
		n      int
		k      types.InputKey
		expect int
	}{
		{"down", 0, 3, types.KeyDown, 1},
		{"down-wrap", 2, 3, types.KeyDown, 0},
		{"up", 1, 3, types.KeyUp, 0},
		{"up-wrap", 0, 3, types.KeyUp, 2},
		{"single-down", 0, 1, types.KeyDown, 0},
		{"single-up", 0, 1, types.KeyUp, 0},
		{"empty-down", 0, 0, types.KeyDown, 0},
		{"empty-up", 0, 0, types.KeyUp, 0},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			s := State{Kind: StateBrowsing, Selected: c.start}
			next, eff := Transition(s, key(c.k), c.n)
			assert.Equal(t, StateBrowsing, next.Kind)
			assert.Equal(t, c.expect, next.Selected)
			assert.Equal(t, EffectNone, eff)
		})
	}
}

func TestConfirmTwoStep(t *testing.T) {
	t.Parallel()

	s := State{Kind: StateBrowsing, Selected: 1}
	s, eff := Transition(s, key(types.KeyAccept), 3)
	require.Equal(t, StateConfirmLaunch, s.Kind)
	require.Equal(t, EffectNone, eff, "first accept must not start anything")

	s2, eff := Transition(s, key(types.KeyReject), 3)
	assert.Equal(t, StateBrowsing, s2.Kind)
	assert.Equal(t, 1, s2.Selected, "reject keeps the selection")
	assert.Equal(t, EffectNone, eff)

	s3, eff := Transition(s, key(types.KeyUp), 3)
	assert.Equal(t, StateConfirmLaunch, s3.Kind, "only accept/reject act on confirm")
	assert.Equal(t, EffectNone, eff)

	s4, eff := Transition(s, key(types.KeyAccept), 3)
	assert.Equal(t, StateFlashing, s4.Kind)
	assert.Equal(t, 1, s4.Selected)
	assert.Equal(t, EffectStartChainload, eff)
}

func TestConfirmCarriesTotal(t *testing.T) {
	t.Parallel()

	s := State{Kind: StateConfirmLaunch, Selected: 1}
	e := Event{Kind: EventKey, Key: types.KeyAccept, Total: 800000}
	next, eff := Transition(s, e, 2)
	require.Equal(t, StateFlashing, next.Kind)
	assert.Equal(t, EffectStartChainload, eff)
	assert.Equal(t, uint32(0), next.Written)
	assert.Equal(t, uint32(800000), next.Total, "flashing starts with the entry size")
}

func TestConfirmNoopOnEmpty(t *testing.T) {
	t.Parallel()

	s := State{Kind: StateBrowsing}
	next, eff := Transition(s, key(types.KeyAccept), 0)
	assert.Equal(t, s, next)
	assert.Equal(t, EffectNone, eff)
}

func TestNavigateThenLaunch(t *testing.T) {
	t.Parallel()

	s := State{Kind: StateBrowsing}
	for _, e := range []Event{key(types.KeyDown), key(types.KeyDown), key(types.KeyAccept)} {
		s, _ = Transition(s, e, 3)
	}
	require.Equal(t, StateConfirmLaunch, s.Kind)
	require.Equal(t, 2, s.Selected)
	s, eff := Transition(s, key(types.KeyAccept), 3)
	assert.Equal(t, StateFlashing, s.Kind)
	assert.Equal(t, 2, s.Selected)
	assert.Equal(t, EffectStartChainload, eff)
}

func TestRenderTickNeverChangesState(t *testing.T) {
	t.Parallel()

	states := []State{
		{Kind: StateBrowsing, Selected: 2},
		{Kind: StateConfirmLaunch, Selected: 1},
		{Kind: StateFlashing, Selected: 1, Written: 5, Total: 10},
		{Kind: StateError, Message: "x"},
		{Kind: StateRebooting, Target: flash.SlotB},
	}
	for _, s := range states {
		next, eff := Transition(s, Event{Kind: EventRenderTick}, 3)
		assert.Equal(t, s, next, s.Kind.String())
		assert.Equal(t, EffectNone, eff)
	}
}

func TestFlashingIgnoresKeys(t *testing.T) {
	t.Parallel()

	s := State{Kind: StateFlashing, Selected: 0, Written: 1, Total: 2}
	for _, k := range []types.InputKey{types.KeyUp, types.KeyDown, types.KeyAccept, types.KeyReject, types.KeyRescan} {
		next, eff := Transition(s, key(k), 3)
		assert.Equal(t, s, next, "no cancel once flashing")
		assert.Equal(t, EffectNone, eff)
	}
}

func TestFlashingLifecycle(t *testing.T) {
	t.Parallel()

	s := State{Kind: StateFlashing, Selected: 1}
	s, _ = Transition(s, Event{Kind: EventFlashProgress, Written: 4096, Total: 8192}, 3)
	require.Equal(t, StateFlashing, s.Kind)
	assert.Equal(t, uint32(4096), s.Written)
	assert.Equal(t, uint32(8192), s.Total)

	done, eff := Transition(s, Event{Kind: EventFlashComplete, Slot: flash.SlotB}, 3)
	assert.Equal(t, StateRebooting, done.Kind)
	assert.Equal(t, flash.SlotB, done.Target)
	assert.Equal(t, EffectReboot, eff)

	failed, eff := Transition(s, Event{Kind: EventFlashFailed, Message: "File changed, rescan"}, 3)
	assert.Equal(t, StateError, failed.Kind)
	assert.Equal(t, "File changed, rescan", failed.Message)
	assert.Equal(t, EffectNone, eff)
}

func TestErrorAnyKeyReturnsToBrowsing(t *testing.T) {
	t.Parallel()

	s := State{Kind: StateError, Selected: 2, Message: "boom"}
	for _, k := range []types.InputKey{types.KeyUp, types.KeyAccept, types.KeyReject} {
		next, eff := Transition(s, key(k), 3)
		assert.Equal(t, StateBrowsing, next.Kind)
		assert.Equal(t, 2, next.Selected)
		assert.Equal(t, EffectNone, eff)
	}

	// Selection out of range after the failure clamps to 0.
	next, _ := Transition(s, key(types.KeyUp), 1)
	assert.Equal(t, 0, next.Selected)
}

func TestRescanClampsSelection(t *testing.T) {
	t.Parallel()

	s := State{Kind: StateBrowsing, Selected: 5}
	next, eff := Transition(s, Event{Kind: EventRescan}, 2)
	assert.Equal(t, StateBrowsing, next.Kind)
	assert.Equal(t, 0, next.Selected)
	assert.Equal(t, EffectNone, eff)

	kept, _ := Transition(State{Kind: StateBrowsing, Selected: 1}, Event{Kind: EventRescan}, 2)
	assert.Equal(t, 1, kept.Selected, "selection still in range survives rescan")

	confirm := State{Kind: StateConfirmLaunch, Selected: 1}
	back, _ := Transition(confirm, Event{Kind: EventRescan}, 2)
	assert.Equal(t, StateBrowsing, back.Kind, "pending confirmation refers to the old snapshot")
}

func TestRescanEffect(t *testing.T) {
	t.Parallel()

	s := State{Kind: StateBrowsing, Selected: 1}
	next, eff := Transition(s, key(types.KeyRescan), 3)
	assert.Equal(t, s, next)
	assert.Equal(t, EffectRescan, eff)
}

func TestRebootingTerminal(t *testing.T) {
	t.Parallel()

	s := State{Kind: StateRebooting, Target: flash.SlotA}
	events := []Event{
		key(types.KeyAccept),
		{Kind: EventFlashFailed, Message: "x"},
		{Kind: EventRescan},
		{Kind: EventRenderTick},
	}
	for _, e := range events {
		next, eff := Transition(s, e, 3)
		assert.Equal(t, s, next)
		assert.Equal(t, EffectNone, eff)
	}
}
