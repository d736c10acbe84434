package ui

import (
	"sync"

	"github.com/juju/errors"

	"github.com/m5lab/launcher/internal/state/persist"
	"github.com/m5lab/launcher/log2"
)

const settingsMagic = 0x5e

// Settings is the small opaque store safe-mode recovery wipes wholesale.
// Only the last selected application path lives here today; the menu
// restores it best-effort at startup. A nil *Settings is a valid no-op.
type Settings struct {
	p   persist.Persist
	log *log2.Log

	mu           sync.Mutex
	lastSelected string
}

func NewSettings(root string, log *log2.Log) (*Settings, error) {
	self := &Settings{log: log}
	if err := self.p.Init("settings", self, root, log); err != nil {
		return nil, errors.Trace(err)
	}
	if err := self.p.Load(); err != nil {
		// Missing or wiped store just starts fresh.
		log.Debugf("settings load err=%v", err)
	}
	return self, nil
}

func (self *Settings) MarshalBinary() ([]byte, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	b := make([]byte, 1+len(self.lastSelected))
	b[0] = settingsMagic
	copy(b[1:], self.lastSelected)
	return b, nil
}

func (self *Settings) UnmarshalBinary(b []byte) error {
	if len(b) < 1 || b[0] != settingsMagic {
		return errors.NotValidf("settings blob len=%d", len(b))
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	self.lastSelected = string(b[1:])
	return nil
}

func (self *Settings) LastSelected() string {
	if self == nil {
		return ""
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.lastSelected
}

// SetLastSelected stores the path durably. Failure is logged, not
// propagated: losing the remembered selection never blocks a launch.
func (self *Settings) SetLastSelected(path string) {
	if self == nil {
		return
	}
	self.mu.Lock()
	self.lastSelected = path
	self.mu.Unlock()
	if err := self.p.Store(); err != nil {
		self.log.Errorf("settings store err=%v", err)
	}
}
