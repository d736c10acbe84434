// Package chainload copies a selected application image from storage
// into the alternate flash slot and arms it for the next boot. Every
// step is a checkpoint: failure anywhere before the final commit leaves
// the previously armed boot target byte-identical, so the device can
// always boot something.
package chainload

import (
	"fmt"
	"io"

	"github.com/juju/errors"

	"github.com/m5lab/launcher/hardware/flash"
	"github.com/m5lab/launcher/internal/catalog"
	"github.com/m5lab/launcher/internal/storage"
	"github.com/m5lab/launcher/log2"
)

// FlashChunkSize is the copy unit; each chunk emits one progress
// callback, so it is also the progress UI granularity.
const FlashChunkSize = 4096

type Reason uint8

const (
	ReasonInvalid Reason = iota
	ReasonTooLarge
	ReasonStale
	ReasonIo
)

func (r Reason) String() string {
	switch r {
	case ReasonTooLarge:
		return "too large"
	case ReasonStale:
		return "stale entry"
	case ReasonIo:
		return "io error"
	default:
		return "invalid"
	}
}

type InstallError struct {
	Reason Reason
	Offset uint32 // bytes written before the failure, 0 if before copy
	Err    error
}

func (e *InstallError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("install %s offset=%d", e.Reason, e.Offset)
	}
	return fmt.Sprintf("install %s offset=%d: %v", e.Reason, e.Offset, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// Message is the short user-visible form shown in the menu Error state.
func (e *InstallError) Message() string {
	switch e.Reason {
	case ReasonTooLarge:
		return "File too large for slot"
	case ReasonStale:
		return "File changed, rescan"
	default:
		return "Flash failed, try again"
	}
}

type Installer struct {
	Log     *log2.Log
	Flash   flash.Device
	Storage storage.Access
	// ChunkSize defaults to FlashChunkSize when zero.
	ChunkSize int
}

// Install writes entry into the slot not currently armed and commits
// the boot-target record last. The progress callback fires after every
// chunk with the running byte count; it runs on the caller's goroutine.
// Returns the slot armed on success.
func (self *Installer) Install(entry catalog.AppEntry, progress func(written uint32)) (flash.Slot, error) {
	armed, valid := self.Flash.BootTarget()
	target := armed.Alternate()
	if !valid {
		// Factory-fresh or recovery-erased record: defined path is A.
		target = flash.SlotA
	}

	capacity, err := self.Flash.Capacity(target)
	if err != nil {
		return flash.SlotInvalid, err // OutOfRange, programming invariant
	}
	// Checked again even though the catalog/UI may have filtered:
	// storage contents can change between scan and install.
	if entry.SizeBytes > capacity {
		return flash.SlotInvalid, &InstallError{Reason: ReasonTooLarge}
	}

	f, size, err := self.Storage.OpenRead(entry.StoragePath)
	if err != nil {
		if storage.IsNotFound(err) {
			return flash.SlotInvalid, &InstallError{Reason: ReasonStale, Err: err}
		}
		return flash.SlotInvalid, &InstallError{Reason: ReasonIo, Err: err}
	}
	defer f.Close()
	if size != entry.SizeBytes {
		return flash.SlotInvalid, &InstallError{Reason: ReasonStale,
			Err: errors.Errorf("size scan=%d open=%d", entry.SizeBytes, size)}
	}

	self.Log.Infof("chainload install path=%s size=%d target=%s", entry.StoragePath, size, target)
	if err = self.Flash.Erase(target); err != nil {
		return flash.SlotInvalid, &InstallError{Reason: ReasonIo, Err: err}
	}

	written, err := self.copy(f, target, size, progress)
	if err != nil {
		return flash.SlotInvalid, err
	}
	if written != size {
		// File shrank under the reader.
		return flash.SlotInvalid, &InstallError{Reason: ReasonStale, Offset: written,
			Err: errors.Errorf("short read want=%d got=%d", size, written)}
	}

	// The slot holds a complete image but is not yet armed; a power loss
	// here keeps the previous boot target and the image is overwritten
	// by the next install. The commit below is a single durable write.
	if err = self.Flash.SetBootTarget(target); err != nil {
		return flash.SlotInvalid, &InstallError{Reason: ReasonIo, Offset: written, Err: err}
	}
	self.Log.Infof("chainload armed slot=%s bytes=%d", target, written)
	return target, nil
}

func (self *Installer) copy(r io.Reader, target flash.Slot, size uint32, progress func(uint32)) (uint32, error) {
	chunkSize := self.ChunkSize
	if chunkSize == 0 {
		chunkSize = FlashChunkSize
	}
	buf := make([]byte, chunkSize)
	written := uint32(0)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if uint64(written)+uint64(n) > uint64(size) {
				// File grew under the reader.
				return written, &InstallError{Reason: ReasonStale, Offset: written,
					Err: errors.Errorf("read past expected size=%d", size)}
			}
			if werr := self.Flash.WriteSequential(target, buf[:n]); werr != nil {
				return written, &InstallError{Reason: ReasonIo, Offset: written, Err: werr}
			}
			written += uint32(n)
			if progress != nil {
				progress(written)
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, &InstallError{Reason: ReasonIo, Offset: written, Err: err}
		}
	}
}
