package voltx_modbus

import (
	"sync"
	"time"
)

// TestDeviceClient is an in-memory device double for actor and server
// tests. Reads serve canned raw register words through the real codec;
// writes are recorded and applied, so a refresh after a write observes the
// new value just like the real inverter mirrors it. Every operation is
// traced in order, and reads can be slowed down, so tests can observe how
// callers sequence concurrent work against the device.
type TestDeviceClient struct {
	mu        sync.Mutex
	catalog   *Catalog
	raw       map[string][]uint16
	writes    []TestWrite
	ops       []string
	readDelay time.Duration
	openErr   error
	readErr   error
	writeErr  error
}

type TestWrite struct {
	Key   string
	Words []uint16
}

func CreateTestDeviceClient() *TestDeviceClient {
	c := &TestDeviceClient{
		catalog: DefaultCatalog(),
		raw:     make(map[string][]uint16),
	}
	// a plausible running system: inverter normal, battery charging
	c.SetRaw("hto", 1245)
	c.SetRaw("flg", 1)
	c.SetRaw("tmp", 412)
	c.SetRaw("vbus", 3850)
	c.SetRaw("vac", 2331)
	c.SetRaw("iac", 45)
	c.SetRaw("fac", 5002)
	c.SetRaw32("sac", 1060)
	c.SetRaw32("pac", 1050)
	c.SetRaw32("qac", 140)
	c.SetRaw("pf", 99)
	c.SetRaw("bcomm", 0x000A)
	c.SetRaw("bst", 2)
	c.SetRaw("vb", 5210)
	c.SetRaw("cb", 105)
	c.SetRaw32("pb", 540)
	c.SetRaw("tb", 251)
	c.SetRaw("soc", 76)
	c.SetRaw("soh", 99)
	c.SetRaw("cli", 250)
	c.SetRaw("clo", 250)
	c.SetRaw32("e_chg_today", 42)
	c.SetRaw32("e_dis_today", 31)
	c.SetRaw("work_mode", 2)
	c.SetRaw("cloud_status", 0x000A)
	c.SetRaw("chflg", 2)
	c.SetRaw("chpwr", 540)
	c.SetRaw("soc_max", 10000)
	c.SetRaw("soc_min", 1000)
	return c
}

func (c *TestDeviceClient) SetRaw(key string, word uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raw[key] = []uint16{word}
}

func (c *TestDeviceClient) SetRaw32(key string, raw int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := uint32(raw)
	c.raw[key] = []uint16{uint16(u >> 16), uint16(u)}
}

// ClearRaw makes a register read as unavailable.
func (c *TestDeviceClient) ClearRaw(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.raw, key)
}

// SetReadDelay stretches every snapshot and partial read, simulating a
// slow device so a test can overlap other work with an in-flight cycle.
func (c *TestDeviceClient) SetReadDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDelay = d
}

func (c *TestDeviceClient) FailOpen(err error)  { c.openErr = err }
func (c *TestDeviceClient) FailReads(err error) { c.readErr = err }
func (c *TestDeviceClient) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *TestDeviceClient) Writes() []TestWrite {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TestWrite, len(c.writes))
	copy(out, c.writes)
	return out
}

// Ops returns the device operation trace in arrival order. Snapshot and
// partial reads bracket themselves with start/end markers; applied writes
// appear as "write:<key>".
func (c *TestDeviceClient) Ops() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.ops))
	copy(out, c.ops)
	return out
}

// SnapshotReads counts how many full snapshot reads reached the device.
func (c *TestDeviceClient) SnapshotReads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, op := range c.ops {
		if op == "snapshot:start" {
			n++
		}
	}
	return n
}

func (c *TestDeviceClient) trace(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, op)
}

// sleepReadDelay sleeps outside the lock so a delayed read does not block
// trace or setup calls from the test goroutine.
func (c *TestDeviceClient) sleepReadDelay() {
	c.mu.Lock()
	d := c.readDelay
	c.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

func (c *TestDeviceClient) Open() error {
	return c.openErr
}

func (c *TestDeviceClient) Close() error {
	return nil
}

func (c *TestDeviceClient) Catalog() *Catalog {
	return c.catalog
}

func (c *TestDeviceClient) ReadSnapshot() (*Snapshot, error) {
	c.trace("snapshot:start")
	defer c.trace("snapshot:end")
	c.sleepReadDelay()
	return c.readValues(c.catalog.Keys())
}

func (c *TestDeviceClient) ReadKeys(keys []string) (*Snapshot, error) {
	c.trace("refresh:start")
	defer c.trace("refresh:end")
	c.sleepReadDelay()
	return c.readValues(keys)
}

func (c *TestDeviceClient) readValues(keys []string) (*Snapshot, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	values := make(map[string]Value, len(keys))
	for _, key := range keys {
		desc, err := c.catalog.Lookup(key)
		if err != nil {
			return nil, err
		}
		if !desc.Readable() {
			continue
		}
		words, ok := c.raw[key]
		if !ok {
			values[key] = UnavailableValue()
			continue
		}
		value, err := Decode(desc, words)
		if err != nil {
			return nil, err
		}
		values[key] = value
	}
	return NewSnapshot(time.Now(), values), nil
}

func (c *TestDeviceClient) Write(key string, physical float64) error {
	desc, err := c.catalog.Lookup(key)
	if err != nil {
		return err
	}
	words, err := Encode(desc, physical)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, TestWrite{Key: key, Words: words})
	c.ops = append(c.ops, "write:"+key)
	c.raw[key] = words
	return nil
}
