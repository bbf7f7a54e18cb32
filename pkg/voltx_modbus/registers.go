package voltx_modbus

import (
	"fmt"
	"sort"
)

// Space selects one of the two disjoint register address spaces.
type Space uint8

const (
	InputRegister Space = iota
	HoldingRegister
)

func (s Space) String() string {
	switch s {
	case InputRegister:
		return "input"
	case HoldingRegister:
		return "holding"
	default:
		return fmt.Sprintf("space(%d)", uint8(s))
	}
}

// Encoding describes how raw register words map to a typed value.
type Encoding uint8

const (
	Unsigned16 Encoding = iota
	Signed16
	Unsigned32
	Signed32
	Enum16
	PackedASCII
)

// Access describes what operations a register supports.
type Access uint8

const (
	ReadOnly Access = iota
	// ReadWrite registers are polled and accept single-register writes.
	// The device mirrors the written value on the next read.
	ReadWrite
	// WriteOnly registers accept commands but never appear in polls.
	WriteOnly
)

// RawRange is the accepted raw integer interval for a writable register,
// expressed before scaling.
type RawRange struct {
	Min int64
	Max int64
}

// RegisterDescriptor is one immutable entry of the register catalog.
type RegisterDescriptor struct {
	Key      string
	Name     string
	Space    Space
	Address  uint16
	Words    uint16 // 1 or 2; 2-word values are big-endian word pairs
	Encoding Encoding
	Scale    float64 // multiplier applied after raw decode; 0 means 1
	Decimals uint
	Unit     string
	Access   Access
	// Sentinels are raw patterns meaning "not fitted / unavailable".
	// Checked before any other interpretation.
	Sentinels []uint32
	Enum      map[uint16]string
	Range     *RawRange
	// Reflects lists read-only registers the device updates as a side
	// effect of writing this one.
	Reflects []string
}

func (d RegisterDescriptor) Writable() bool {
	return d.Access == ReadWrite || d.Access == WriteOnly
}

func (d RegisterDescriptor) Readable() bool {
	return d.Access != WriteOnly
}

func (d RegisterDescriptor) scaleOr1() float64 {
	if d.Scale == 0 {
		return 1
	}
	return d.Scale
}

func (d RegisterDescriptor) endAddress() uint16 {
	return d.Address + d.Words - 1
}

// Catalog is the static register table. Built once at startup, read-only
// thereafter.
type Catalog struct {
	byKey   map[string]RegisterDescriptor
	bySpace map[Space][]RegisterDescriptor
}

// NewCatalog validates the table: unique keys, no overlapping words within
// an address space.
func NewCatalog(descriptors []RegisterDescriptor) (*Catalog, error) {
	cat := &Catalog{
		byKey:   make(map[string]RegisterDescriptor, len(descriptors)),
		bySpace: make(map[Space][]RegisterDescriptor),
	}
	for _, d := range descriptors {
		if d.Words != 1 && d.Words != 2 && d.Encoding != PackedASCII {
			return nil, fmt.Errorf("register %s: unsupported width %d", d.Key, d.Words)
		}
		if _, dup := cat.byKey[d.Key]; dup {
			return nil, fmt.Errorf("register %s: duplicate key", d.Key)
		}
		cat.byKey[d.Key] = d
		cat.bySpace[d.Space] = append(cat.bySpace[d.Space], d)
	}
	for space, regs := range cat.bySpace {
		sort.Slice(regs, func(i, j int) bool { return regs[i].Address < regs[j].Address })
		for i := 1; i < len(regs); i++ {
			if regs[i].Address <= regs[i-1].endAddress() {
				return nil, fmt.Errorf("%s registers %s and %s overlap", space, regs[i-1].Key, regs[i].Key)
			}
		}
	}
	return cat, nil
}

// Lookup returns the descriptor for key, or ErrUnknownRegister.
func (c *Catalog) Lookup(key string) (RegisterDescriptor, error) {
	d, ok := c.byKey[key]
	if !ok {
		return RegisterDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownRegister, key)
	}
	return d, nil
}

// Readable returns the pollable descriptors of a space in address order.
func (c *Catalog) Readable(space Space) []RegisterDescriptor {
	var out []RegisterDescriptor
	for _, d := range c.bySpace[space] {
		if d.Readable() {
			out = append(out, d)
		}
	}
	return out
}

// Keys returns every catalog key, input space first, in address order.
func (c *Catalog) Keys() []string {
	var keys []string
	for _, space := range []Space{InputRegister, HoldingRegister} {
		for _, d := range c.bySpace[space] {
			keys = append(keys, d.Key)
		}
	}
	return keys
}

// ReadRun is one contiguous block read covering a run of catalog registers.
type ReadRun struct {
	Space     Space
	Start     uint16
	Count     uint16
	Registers []RegisterDescriptor
}

// Registers less than planGapLimit words apart are fetched in one block
// read; the device answers reads spanning undocumented holes, so a few
// wasted words cost less than an extra request round-trip.
const planGapLimit = 50

// Plan groups the readable registers of a space into block-read runs,
// each within the protocol's per-request register limit.
func (c *Catalog) Plan(space Space) []ReadRun {
	regs := c.Readable(space)
	if len(regs) == 0 {
		return nil
	}
	var runs []ReadRun
	run := ReadRun{Space: space, Start: regs[0].Address, Registers: []RegisterDescriptor{regs[0]}}
	end := regs[0].endAddress()
	for _, d := range regs[1:] {
		gap := uint32(d.Address) - uint32(end) - 1
		span := uint32(d.endAddress()) - uint32(run.Start) + 1
		if gap > planGapLimit || span > MaxBlockRegisters {
			run.Count = end - run.Start + 1
			runs = append(runs, run)
			run = ReadRun{Space: space, Start: d.Address}
		}
		run.Registers = append(run.Registers, d)
		end = d.endAddress()
	}
	run.Count = end - run.Start + 1
	runs = append(runs, run)
	return runs
}

// Register map verified on a Solplanet/Voltx ASW010K-SH, firmware v2.
// Doc source: MB001_ASW GEN-Modbus-en_V2.1.5 (AISWEI), frame addressing
// (doc_addr - 30001 for input, doc_addr - 40001 for holding).
var voltxRegisters = []RegisterDescriptor{
	// input registers (FC04), inverter block
	{Key: "hto", Name: "Total working hours", Space: InputRegister, Address: 1307, Words: 1, Encoding: Unsigned16, Unit: "h"},
	{Key: "flg", Name: "Inverter status", Space: InputRegister, Address: 1308, Words: 1, Encoding: Enum16,
		Enum: map[uint16]string{0: "Waiting", 1: "Normal", 2: "Fault", 4: "Checking"}},
	{Key: "tmp", Name: "Inverter temperature", Space: InputRegister, Address: 1310, Words: 1, Encoding: Signed16,
		Scale: 0.1, Decimals: 1, Unit: "°C", Sentinels: []uint32{0x8000}},
	{Key: "vbus", Name: "DC bus voltage", Space: InputRegister, Address: 1316, Words: 1, Encoding: Unsigned16, Scale: 0.1, Decimals: 1, Unit: "V"},
	{Key: "vac", Name: "Grid voltage", Space: InputRegister, Address: 1358, Words: 1, Encoding: Unsigned16, Scale: 0.1, Decimals: 1, Unit: "V"},
	{Key: "iac", Name: "AC phase current", Space: InputRegister, Address: 1359, Words: 1, Encoding: Unsigned16, Scale: 0.1, Decimals: 1, Unit: "A"},
	{Key: "fac", Name: "Grid frequency", Space: InputRegister, Address: 1367, Words: 1, Encoding: Unsigned16, Scale: 0.01, Decimals: 2, Unit: "Hz"},
	{Key: "sac", Name: "Apparent power", Space: InputRegister, Address: 1368, Words: 2, Encoding: Signed32, Unit: "VA"},
	{Key: "pac", Name: "Inverter active power", Space: InputRegister, Address: 1370, Words: 2, Encoding: Signed32, Unit: "W"},
	{Key: "qac", Name: "Reactive power", Space: InputRegister, Address: 1372, Words: 2, Encoding: Signed32, Unit: "var"},
	{Key: "pf", Name: "Power factor", Space: InputRegister, Address: 1374, Words: 1, Encoding: Unsigned16, Scale: 0.01, Decimals: 2},
	// input registers, battery block
	{Key: "bcomm", Name: "Battery comm status", Space: InputRegister, Address: 1606, Words: 1, Encoding: Enum16,
		Enum: map[uint16]string{0x000A: "OK", 0x0005: "Error"}},
	{Key: "bst", Name: "Battery operating status", Space: InputRegister, Address: 1607, Words: 1, Encoding: Enum16,
		Enum: map[uint16]string{0: "N/A", 1: "Idle", 2: "Charging", 3: "Discharging", 4: "Error"}},
	{Key: "vb", Name: "Battery voltage", Space: InputRegister, Address: 1616, Words: 1, Encoding: Unsigned16, Scale: 0.01, Decimals: 2, Unit: "V"},
	{Key: "cb", Name: "Battery current", Space: InputRegister, Address: 1617, Words: 1, Encoding: Signed16, Scale: 0.1, Decimals: 1, Unit: "A"},
	{Key: "pb", Name: "Battery power", Space: InputRegister, Address: 1618, Words: 2, Encoding: Signed32, Unit: "W"},
	{Key: "tb", Name: "Battery temperature", Space: InputRegister, Address: 1620, Words: 1, Encoding: Signed16, Scale: 0.1, Decimals: 1, Unit: "°C"},
	{Key: "soc", Name: "Battery state of charge", Space: InputRegister, Address: 1621, Words: 1, Encoding: Unsigned16, Unit: "%"},
	{Key: "soh", Name: "Battery state of health", Space: InputRegister, Address: 1622, Words: 1, Encoding: Unsigned16, Unit: "%"},
	{Key: "cli", Name: "Charge current limit", Space: InputRegister, Address: 1623, Words: 1, Encoding: Unsigned16, Scale: 0.1, Decimals: 1, Unit: "A"},
	{Key: "clo", Name: "Discharge current limit", Space: InputRegister, Address: 1624, Words: 1, Encoding: Unsigned16, Scale: 0.1, Decimals: 1, Unit: "A"},
	{Key: "e_chg_today", Name: "Battery energy charged today", Space: InputRegister, Address: 1625, Words: 2, Encoding: Unsigned32, Scale: 0.1, Decimals: 1, Unit: "kWh"},
	{Key: "e_dis_today", Name: "Battery energy discharged today", Space: InputRegister, Address: 1627, Words: 2, Encoding: Unsigned32, Scale: 0.1, Decimals: 1, Unit: "kWh"},
	// holding registers (FC03), settings block
	{Key: "work_mode", Name: "Work mode", Space: HoldingRegister, Address: 1103, Words: 1, Encoding: Enum16, Access: ReadWrite,
		Enum: map[uint16]string{2: "Self-consumption", 3: "Reserve Power", 4: "Custom", 5: "Time of Use"}},
	{Key: "cloud_status", Name: "Cloud comm status", Space: HoldingRegister, Address: 1150, Words: 1, Encoding: Enum16,
		Enum: map[uint16]string{0x000A: "Online"}},
	// chflg is a status mirror maintained by the inverter; writes have no effect.
	{Key: "chflg", Name: "Charge/discharge flag", Space: HoldingRegister, Address: 1151, Words: 1, Encoding: Enum16,
		Enum: map[uint16]string{1: "Stop", 2: "Charging", 3: "Discharging"}},
	{Key: "chpwr", Name: "Battery charge/discharge power", Space: HoldingRegister, Address: 1152, Words: 1, Encoding: Signed16,
		Unit: "W", Access: ReadWrite, Range: &RawRange{Min: -10000, Max: 10000}, Reflects: []string{"chflg", "pb"}},
	{Key: "soc_max", Name: "Battery SOC max", Space: HoldingRegister, Address: 1153, Words: 1, Encoding: Unsigned16,
		Scale: 0.01, Unit: "%", Access: ReadWrite, Range: &RawRange{Min: 0, Max: 10000}},
	{Key: "soc_min", Name: "Battery SOC min", Space: HoldingRegister, Address: 1154, Words: 1, Encoding: Unsigned16,
		Scale: 0.01, Unit: "%", Access: ReadWrite, Range: &RawRange{Min: 0, Max: 10000}},
}

// DefaultCatalog returns the Voltx ASW register catalog.
func DefaultCatalog() *Catalog {
	cat, err := NewCatalog(voltxRegisters)
	if err != nil {
		// the table is a compile-time constant, an error here is a bug
		panic(err)
	}
	return cat
}
