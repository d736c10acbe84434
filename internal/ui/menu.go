// Package ui is the launcher menu: a pure state machine over the app
// catalog, screen composition into swapchain frames, and the runtime
// loop tying input, chainload and rendering together.
package ui

import (
	"github.com/m5lab/launcher/hardware/flash"
	"github.com/m5lab/launcher/internal/types"
)

type StateKind uint8

const (
	StateInvalid StateKind = iota
	StateBrowsing
	StateConfirmLaunch
	StateFlashing
	StateError
	StateRebooting
)

func (k StateKind) String() string {
	switch k {
	case StateBrowsing:
		return "browsing"
	case StateConfirmLaunch:
		return "confirm-launch"
	case StateFlashing:
		return "flashing"
	case StateError:
		return "error"
	case StateRebooting:
		return "rebooting"
	default:
		return "invalid"
	}
}

// State is one menu screen. Kind selects the variant; the other fields
// are that variant's payload and are zero elsewhere.
type State struct {
	Kind     StateKind
	Selected int        // Browsing, ConfirmLaunch, Flashing, Error
	Written  uint32     // Flashing
	Total    uint32     // Flashing
	Message  string     // Error
	Target   flash.Slot // Rebooting
}

type EventKind uint8

const (
	EventInvalid EventKind = iota
	EventKey
	EventRenderTick
	EventFlashProgress
	EventFlashComplete
	EventFlashFailed
	EventRescan // catalog was replaced wholesale
)

type Event struct {
	Kind    EventKind
	Key     types.InputKey // EventKey, key-down only
	Written uint32         // EventFlashProgress
	Total   uint32         // EventFlashProgress; on EventKey the selected entry size
	Slot    flash.Slot     // EventFlashComplete
	Message string         // EventFlashFailed
}

type Effect uint8

const (
	EffectNone Effect = iota
	// EffectStartChainload installs the entry at state.Selected.
	EffectStartChainload
	// EffectRescan rebuilds the catalog, then the caller feeds
	// EventRescan back in so the selection is clamped against it.
	EffectRescan
	EffectReboot
)

// Transition is total and pure: every (state, event) pair yields a next
// state and at most one effect, no I/O happens here. catalogLen is the
// length of the catalog current at delivery time.
func Transition(s State, e Event, catalogLen int) (State, Effect) {
	switch e.Kind {
	case EventRenderTick:
		// Ticks drive redraw only, never state.
		return s, EffectNone

	case EventRescan:
		switch s.Kind {
		case StateBrowsing, StateConfirmLaunch:
			// Entries under the old index may be gone; any confirmation
			// in flight referred to the old snapshot.
			next := State{Kind: StateBrowsing, Selected: s.Selected}
			if next.Selected >= catalogLen {
				next.Selected = 0
			}
			return next, EffectNone
		}
		return s, EffectNone
	}

	switch s.Kind {
	case StateBrowsing:
		if e.Kind != EventKey {
			return s, EffectNone
		}
		switch e.Key {
		case types.KeyUp:
			return State{Kind: StateBrowsing, Selected: wrapIndex(s.Selected-1, catalogLen)}, EffectNone
		case types.KeyDown:
			return State{Kind: StateBrowsing, Selected: wrapIndex(s.Selected+1, catalogLen)}, EffectNone
		case types.KeyAccept:
			if catalogLen == 0 {
				return s, EffectNone
			}
			return State{Kind: StateConfirmLaunch, Selected: s.Selected}, EffectNone
		case types.KeyRescan:
			return s, EffectRescan
		}
		return s, EffectNone

	case StateConfirmLaunch:
		if e.Kind != EventKey {
			return s, EffectNone
		}
		switch e.Key {
		case types.KeyAccept:
			return State{Kind: StateFlashing, Selected: s.Selected, Total: e.Total}, EffectStartChainload
		case types.KeyReject:
			return State{Kind: StateBrowsing, Selected: s.Selected}, EffectNone
		}
		return s, EffectNone

	case StateFlashing:
		// Keys are ignored: once the erase started there is no cancel.
		switch e.Kind {
		case EventFlashProgress:
			return State{Kind: StateFlashing, Selected: s.Selected,
				Written: e.Written, Total: e.Total}, EffectNone
		case EventFlashComplete:
			return State{Kind: StateRebooting, Target: e.Slot}, EffectReboot
		case EventFlashFailed:
			return State{Kind: StateError, Selected: s.Selected, Message: e.Message}, EffectNone
		}
		return s, EffectNone

	case StateError:
		if e.Kind == EventKey {
			next := State{Kind: StateBrowsing, Selected: s.Selected}
			if next.Selected >= catalogLen {
				next.Selected = 0
			}
			return next, EffectNone
		}
		return s, EffectNone

	case StateRebooting:
		// Terminal: the device restarts out from under us.
		return s, EffectNone
	}
	return s, EffectNone
}

func wrapIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
