package recovery

import (
	"github.com/juju/errors"
	gpio "github.com/temoto/gpio-cdev-go"

	"github.com/m5lab/launcher/helpers"
)

type GpioConfig struct {
	Chip      string // gpiochip device, e.g. /dev/gpiochip0
	Line      uint32
	ActiveLow bool // key shorts the line to ground
}

// GpioKey reads the recovery key through the kernel gpiochip character
// device.
type GpioKey struct {
	chip  gpio.Chiper
	lines gpio.Lineser
}

var _ KeyLine = new(GpioKey)

func NewGpioKey(cfg GpioConfig) (*GpioKey, error) {
	chip, err := gpio.Open(cfg.Chip, "launcher")
	if err != nil {
		return nil, errors.Annotatef(err, "recovery key chip=%s", cfg.Chip)
	}
	flag := gpio.GPIOHANDLE_REQUEST_INPUT
	if cfg.ActiveLow {
		flag |= gpio.GPIOHANDLE_REQUEST_ACTIVE_LOW
	}
	lines, err := chip.OpenLines(flag, "recovery-key", cfg.Line)
	if err != nil {
		chip.Close()
		return nil, errors.Annotatef(err, "recovery key line=%d", cfg.Line)
	}
	return &GpioKey{chip: chip, lines: lines}, nil
}

func (self *GpioKey) Pressed() (bool, error) {
	data, err := self.lines.Read()
	if err != nil {
		return false, errors.Trace(err)
	}
	return data.Values[0] != 0, nil
}

func (self *GpioKey) Close() error {
	return helpers.FoldErrors([]error{self.lines.Close(), self.chip.Close()})
}

// MockKey drives the sampler in tests and the dev simulator.
type MockKey struct {
	PressedFunc func() (bool, error)
}

var _ KeyLine = new(MockKey)

func (self *MockKey) Pressed() (bool, error) { return self.PressedFunc() }
func (self *MockKey) Close() error           { return nil }
