package input

import (
	"io"

	"github.com/m5lab/launcher/internal/types"
)

const MockSourceTag = "mock"

// MockSource replays a scripted event sequence, then blocks until
// closed. Used by package tests and cmd/launcher-dev.
type MockSource struct {
	events chan types.InputEvent
}

var _ Source = new(MockSource)

func NewMockSource(buffer int) *MockSource {
	return &MockSource{events: make(chan types.InputEvent, buffer)}
}

func (self *MockSource) String() string { return MockSourceTag }

func (self *MockSource) Push(key types.InputKey) {
	self.events <- types.InputEvent{Source: MockSourceTag, Key: key, Up: false}
	self.events <- types.InputEvent{Source: MockSourceTag, Key: key, Up: true}
}

func (self *MockSource) PushEvent(e types.InputEvent) { self.events <- e }

func (self *MockSource) Close() { close(self.events) }

func (self *MockSource) Read() (types.InputEvent, error) {
	e, ok := <-self.events
	if !ok {
		return types.InputEvent{}, io.EOF
	}
	return e, nil
}
