// Package types holds small shared types to break import cycles.
package types

import "fmt"

type InputKey uint16

// Logical launcher keys. Input sources translate their native codes
// (evdev scancodes, simulator bytes) into these.
const (
	KeyInvalid InputKey = 0
	KeyUp      InputKey = 103 // evdev KEY_UP
	KeyDown    InputKey = 108 // evdev KEY_DOWN
	KeyAccept  InputKey = 28  // evdev KEY_ENTER
	KeyReject  InputKey = 14  // evdev KEY_BACKSPACE
	KeyRescan  InputKey = 15  // evdev KEY_TAB
)

type InputEvent struct {
	Source string
	Key    InputKey
	Up     bool
}

func (e *InputEvent) IsZero() bool { return e.Key == 0 }

func (e InputEvent) String() string {
	return fmt.Sprintf("InputEvent(source=%s key=%d up=%t)", e.Source, e.Key, e.Up)
}
