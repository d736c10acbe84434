// Interactive shell over the file-backed flash device and app storage.
// Useful on the bench: inspect slots, arm boot targets, drive installs
// without the panel attached.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"

	"github.com/m5lab/launcher/hardware/flash"
	"github.com/m5lab/launcher/helpers/cli"
	"github.com/m5lab/launcher/internal/catalog"
	"github.com/m5lab/launcher/internal/chainload"
	"github.com/m5lab/launcher/internal/recovery"
	"github.com/m5lab/launcher/internal/state"
	"github.com/m5lab/launcher/internal/storage"
	"github.com/m5lab/launcher/log2"
)

const usage = `commands:
- scan              list .bin images on storage
- slots             show slot sizes and the armed boot target
- arm A|B|factory   set the boot target record
- install PATH      chainload install: erase, copy, arm
- recover           erase boot target and settings
- help`

type shell struct {
	log *log2.Log
	cfg *state.Config
	dev *flash.FileDevice
	fs  storage.Access
}

func main() {
	flagConfig := flag.String("config", "launcher.hcl", "")
	flag.Parse()

	log := log2.NewStderr(log2.LInfo)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(log2.LInteractiveFlags)
	} else {
		log.SetFlags(log2.LStdFlags)
	}

	cfg := state.MustReadConfigFile(*flagConfig, log)
	dev, err := flash.NewFileDevice(flash.FileDeviceConfig{
		Dir:          cfg.Flash.Dir,
		PersistRoot:  cfg.Persist.Root,
		SettingsRoot: filepath.Join(cfg.Persist.Root, "settings"),
		SlotCapacity: uint32(cfg.Flash.SlotCapacity),
	}, log)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}

	sh := &shell{log: log, cfg: cfg, dev: dev, fs: storage.NewOS(cfg.Storage.AppRoot)}
	cli.MainLoop("flash", sh.execute, sh.complete)
}

func (self *shell) execute(line string) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return
	}
	var err error
	switch words[0] {
	case "help", "/help":
		fmt.Println(usage)
	case "scan":
		err = self.cmdScan()
	case "slots":
		err = self.cmdSlots()
	case "arm":
		err = self.cmdArm(words[1:])
	case "install":
		err = self.cmdInstall(words[1:])
	case "recover":
		err = recovery.Perform(self.dev, self.log)
	default:
		err = errors.Errorf("unknown command=%s, try help", words[0])
	}
	if err != nil {
		self.log.Errorf("%s", errors.ErrorStack(err))
	}
}

func (self *shell) complete(d prompt.Document) []prompt.Suggest {
	suggests := []prompt.Suggest{
		{Text: "scan"}, {Text: "slots"}, {Text: "arm"},
		{Text: "install"}, {Text: "recover"}, {Text: "help"},
	}
	for _, e := range self.scan().Entries() {
		suggests = append(suggests, prompt.Suggest{Text: e.StoragePath})
	}
	return prompt.FilterFuzzy(suggests, d.GetWordBeforeCursor(), true)
}

func (self *shell) scan() *catalog.Catalog {
	return catalog.Scan(self.fs, self.cfg.Storage.AppsDir, self.log)
}

func (self *shell) cmdScan() error {
	c := self.scan()
	if c.Unavailable {
		fmt.Println("storage unavailable")
		return nil
	}
	for _, e := range c.Entries() {
		fmt.Printf("%8d  %s\n", e.SizeBytes, e.StoragePath)
	}
	fmt.Printf("total %d\n", c.Len())
	return nil
}

func (self *shell) cmdSlots() error {
	for _, slot := range []flash.Slot{flash.SlotA, flash.SlotB} {
		b, err := self.dev.SlotBytes(slot)
		if err != nil {
			return errors.Trace(err)
		}
		capacity, _ := self.dev.Capacity(slot)
		fmt.Printf("slot %s: %d/%d bytes\n", slot, len(b), capacity)
	}
	target, valid := self.dev.BootTarget()
	if valid {
		fmt.Printf("boot target: %s\n", target)
	} else {
		fmt.Println("boot target: invalid (factory fallback)")
	}
	return nil
}

func parseSlot(s string) (flash.Slot, error) {
	switch strings.ToLower(s) {
	case "a":
		return flash.SlotA, nil
	case "b":
		return flash.SlotB, nil
	case "factory":
		return flash.SlotFactory, nil
	}
	return flash.SlotInvalid, errors.NotValidf("slot=%s", s)
}

func (self *shell) cmdArm(args []string) error {
	if len(args) != 1 {
		return errors.Errorf("syntax: arm A|B|factory")
	}
	slot, err := parseSlot(args[0])
	if err != nil {
		return err
	}
	return self.dev.SetBootTarget(slot)
}

func (self *shell) cmdInstall(args []string) error {
	if len(args) != 1 {
		return errors.Errorf("syntax: install PATH")
	}
	path := args[0]
	size, err := self.fs.FileSize(path)
	if err != nil {
		return errors.Annotatef(err, "install path=%s", path)
	}
	entry := catalog.AppEntry{
		DisplayName: filepath.Base(path),
		StoragePath: path,
		SizeBytes:   size,
	}
	ins := &chainload.Installer{Log: self.log, Flash: self.dev, Storage: self.fs}
	lastPct := uint64(0)
	slot, err := ins.Install(entry, func(written uint32) {
		pct := uint64(written) * 100 / uint64(size)
		if pct != lastPct {
			lastPct = pct
			fmt.Printf("\r%3d%% %d/%d", pct, written, size)
		}
	})
	fmt.Println()
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Printf("armed slot %s\n", slot)
	return nil
}
