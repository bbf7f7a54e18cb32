package voltx_modbus

import (
	"errors"
	"testing"

	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func deviceOverFake(wire *fakeWire) *deviceClient {
	return &deviceClient{
		session: &tcpSession{client: wire},
		catalog: DefaultCatalog(),
		logger:  zap.NewNop(),
	}
}

func loadFakeInverter(wire *fakeWire) {
	wire.regs[1308] = 1    // flg Normal
	wire.regs[1310] = 412  // tmp 41.2
	wire.regs[1358] = 2331 // vac 233.1
	wire.regs[1370] = 0xFFFF
	wire.regs[1371] = 0xFB90 // pac -1136
	wire.regs[1607] = 3      // bst Discharging
	wire.regs[1621] = 76     // soc
	wire.regs[1103] = 2      // work_mode Self-consumption
	wire.regs[1152] = 0xF63C // chpwr -2500
}

func TestReadSnapshotDecodesFullCatalog(t *testing.T) {
	wire := newFakeWire()
	loadFakeInverter(wire)
	dev := deviceOverFake(wire)

	snap, err := dev.ReadSnapshot()
	assert.Nil(t, err)
	assert.False(t, snap.Taken.IsZero())

	assert.Equal(t, "Normal", snap.Get("flg").Label)
	assert.InDelta(t, 41.2, snap.Get("tmp").Num, 0.001)
	assert.InDelta(t, -1136, snap.Get("pac").Num, 0.001)
	assert.Equal(t, "Discharging", snap.Get("bst").Label)
	assert.InDelta(t, -2500, snap.Get("chpwr").Num, 0.001)
	// every readable register appears, unset addresses decode from zero
	for _, key := range dev.catalog.Keys() {
		_, ok := snap.Values[key]
		assert.True(t, ok, key)
	}
}

func TestReadSnapshotTransportErrorFailsCycle(t *testing.T) {
	wire := newFakeWire()
	wire.blockErr = modbus.ErrRequestTimedOut
	dev := deviceOverFake(wire)

	_, err := dev.ReadSnapshot()
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestReadSnapshotHoleDecodesUnavailable(t *testing.T) {
	wire := newFakeWire()
	loadFakeInverter(wire)
	wire.blockErr = modbus.ErrIllegalDataAddress
	// the battery block refuses one word of the 2-word pb pair
	wire.regErr[1619] = modbus.ErrIllegalDataAddress
	dev := deviceOverFake(wire)

	snap, err := dev.ReadSnapshot()
	assert.Nil(t, err)
	assert.False(t, snap.Get("pb").Available())
	// neighbours still decode
	assert.Equal(t, float64(76), snap.Get("soc").Num)
	assert.Equal(t, "Discharging", snap.Get("bst").Label)
}

func TestReadKeysPartialRead(t *testing.T) {
	wire := newFakeWire()
	loadFakeInverter(wire)
	dev := deviceOverFake(wire)

	snap, err := dev.ReadKeys([]string{"chpwr", "soc"})
	assert.Nil(t, err)
	assert.Equal(t, 2, len(snap.Values))
	assert.InDelta(t, -2500, snap.Get("chpwr").Num, 0.001)

	_, err = dev.ReadKeys([]string{"bogus"})
	assert.True(t, errors.Is(err, ErrUnknownRegister))
}

func TestWriteValidatesBeforeIO(t *testing.T) {
	wire := newFakeWire()
	wire.writeErr = modbus.ErrRequestTimedOut
	dev := deviceOverFake(wire)

	// rejected values never reach the wire even though the wire would fail
	err := dev.Write("chpwr", 99999)
	assert.True(t, errors.Is(err, ErrOutOfRange))
	err = dev.Write("soc", 50)
	assert.True(t, errors.Is(err, ErrNotWritable))
	err = dev.Write("bogus", 1)
	assert.True(t, errors.Is(err, ErrUnknownRegister))

	wire.writeErr = nil
	err = dev.Write("soc_max", 95)
	assert.Nil(t, err)
	assert.Equal(t, uint16(9500), wire.writes[1153])
}

func TestSnapshotMergeMonotonicTimestamp(t *testing.T) {
	wire := newFakeWire()
	loadFakeInverter(wire)
	dev := deviceOverFake(wire)

	full, err := dev.ReadSnapshot()
	assert.Nil(t, err)
	wire.regs[1621] = 80
	partial, err := dev.ReadKeys([]string{"soc"})
	assert.Nil(t, err)

	merged := full.Merge(partial)
	assert.Equal(t, float64(80), merged.Get("soc").Num)
	assert.Equal(t, "Normal", merged.Get("flg").Label)
	assert.False(t, merged.Taken.Before(full.Taken))
	// source snapshots are untouched
	assert.Equal(t, float64(76), full.Get("soc").Num)
}

func TestTestDeviceClientMirrorsWrites(t *testing.T) {
	dev := CreateTestDeviceClient()
	assert.Nil(t, dev.Open())

	err := dev.Write("work_mode", 5)
	assert.Nil(t, err)
	snap, err := dev.ReadKeys([]string{"work_mode"})
	assert.Nil(t, err)
	assert.Equal(t, "Time of Use", snap.Get("work_mode").Label)
	assert.Equal(t, 1, len(dev.Writes()))
}
