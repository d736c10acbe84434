package flash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m5lab/launcher/log2"
)

func TestSlotAlternate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SlotB, SlotA.Alternate())
	assert.Equal(t, SlotA, SlotB.Alternate())
	assert.Equal(t, SlotA, SlotFactory.Alternate())
	assert.Equal(t, SlotA, SlotInvalid.Alternate())
}

func TestBootRecordRoundTrip(t *testing.T) {
	t.Parallel()

	r := BootRecord{Target: SlotB, Valid: true}
	b, err := r.MarshalBinary()
	require.NoError(t, err)
	var r2 BootRecord
	require.NoError(t, r2.UnmarshalBinary(b))
	assert.Equal(t, r, r2)

	assert.Error(t, r2.UnmarshalBinary([]byte{0, 1, 2, 3}))
	assert.Error(t, r2.UnmarshalBinary(nil))
}

func TestFileDevice(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	dir := t.TempDir()
	dev, err := NewFileDevice(FileDeviceConfig{
		Dir:          dir + "/slots",
		PersistRoot:  dir + "/persist",
		SettingsRoot: dir + "/persist/settings",
		SlotCapacity: 64,
	}, log)
	require.NoError(t, err)

	_, valid := dev.BootTarget()
	assert.False(t, valid, "factory-fresh record must be invalid")

	require.Error(t, dev.WriteSequential(SlotA, []byte("x")), "write before erase")
	require.NoError(t, dev.Erase(SlotA))
	require.NoError(t, dev.WriteSequential(SlotA, []byte("hello ")))
	require.NoError(t, dev.WriteSequential(SlotA, []byte("world")))
	img, err := dev.SlotBytes(SlotA)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(img))

	require.NoError(t, dev.SetBootTarget(SlotA))
	slot, valid := dev.BootTarget()
	assert.True(t, valid)
	assert.Equal(t, SlotA, slot)

	// record survives reopen
	dev2, err := NewFileDevice(FileDeviceConfig{
		Dir:          dir + "/slots",
		PersistRoot:  dir + "/persist",
		SettingsRoot: dir + "/persist/settings",
		SlotCapacity: 64,
	}, log)
	require.NoError(t, err)
	slot, valid = dev2.BootTarget()
	assert.True(t, valid)
	assert.Equal(t, SlotA, slot)

	require.NoError(t, dev2.EraseBootTargetAndSettings())
	_, valid = dev2.BootTarget()
	assert.False(t, valid)
}

func TestFileDeviceCapacity(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	dir := t.TempDir()
	dev, err := NewFileDevice(FileDeviceConfig{
		Dir:          dir + "/slots",
		PersistRoot:  dir + "/persist",
		SlotCapacity: 8,
	}, log)
	require.NoError(t, err)
	require.NoError(t, dev.Erase(SlotB))
	require.NoError(t, dev.WriteSequential(SlotB, []byte("12345678")))
	assert.Error(t, dev.WriteSequential(SlotB, []byte("9")))
}

func TestOutOfRange(t *testing.T) {
	t.Parallel()

	dev := NewMockDevice(16)
	err := dev.Erase(SlotFactory)
	require.Error(t, err)
	assert.True(t, IsOutOfRange(err))
	_, err = dev.Capacity(SlotInvalid)
	assert.True(t, IsOutOfRange(err))
}
