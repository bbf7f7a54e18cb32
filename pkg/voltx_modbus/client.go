package voltx_modbus

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DeviceClient is the high level read/write surface over one inverter.
type DeviceClient interface {
	Open() error
	Close() error
	Catalog() *Catalog
	// ReadSnapshot polls every readable register and returns one immutable
	// timestamped snapshot. Registers the device refuses to serve decode as
	// unavailable; the snapshot itself still succeeds.
	ReadSnapshot() (*Snapshot, error)
	// ReadKeys reads just the given registers, for out-of-cycle refreshes
	// after a write.
	ReadKeys(keys []string) (*Snapshot, error)
	// Write validates and writes one register. Multi-word writable
	// registers are not supported by the device's FC06-only write path.
	Write(key string, physical float64) error
}

type deviceClient struct {
	session Session
	catalog *Catalog
	logger  *zap.Logger
}

// CreateDeviceClient builds a device client over a Modbus TCP session.
func CreateDeviceClient(host string, port uint, unitID uint8, timeout time.Duration,
	catalog *Catalog, logger *zap.Logger, instrumentation *ModbusInstrument) (DeviceClient, error) {

	var inst []ModbusInstrument
	inst = append(inst, traceLoggerInstrumentation(logger.With(zap.String("target", "inverter"), zap.Uint8("unit_id", unitID))))
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	session, err := CreateTCPSession(host, port, unitID, timeout, inst)
	if err != nil {
		return nil, err
	}
	return &deviceClient{
		session: session,
		catalog: catalog,
		logger:  logger,
	}, nil
}

func traceLoggerInstrumentation(logger *zap.Logger) ModbusInstrument {
	return ModbusInstrument{
		RecordTime: func(fnName string, opTime time.Duration) {
			logger.Debug("modbus op", zap.String("fn", fnName), zap.Int64("millis", opTime.Milliseconds()))
		},
	}
}

func (c *deviceClient) Open() error {
	return c.session.Open()
}

func (c *deviceClient) Close() error {
	return c.session.Close()
}

func (c *deviceClient) Catalog() *Catalog {
	return c.catalog
}

func (c *deviceClient) ReadSnapshot() (*Snapshot, error) {
	values := make(map[string]Value)
	for _, space := range []Space{InputRegister, HoldingRegister} {
		for _, run := range c.catalog.Plan(space) {
			if err := c.readRun(run, values); err != nil {
				return nil, err
			}
		}
	}
	return NewSnapshot(time.Now(), values), nil
}

func (c *deviceClient) ReadKeys(keys []string) (*Snapshot, error) {
	values := make(map[string]Value)
	for _, key := range keys {
		desc, err := c.catalog.Lookup(key)
		if err != nil {
			return nil, err
		}
		if !desc.Readable() {
			continue
		}
		run := ReadRun{Space: desc.Space, Start: desc.Address, Count: desc.Words, Registers: []RegisterDescriptor{desc}}
		if err := c.readRun(run, values); err != nil {
			return nil, err
		}
	}
	return NewSnapshot(time.Now(), values), nil
}

// readRun executes one block read and decodes its registers into values.
// A register whose words the fallback could not fetch, or whose decode
// fails, is stored as unavailable.
func (c *deviceClient) readRun(run ReadRun, values map[string]Value) error {
	words, valid, err := c.session.ReadBlockWithFallback(run.Space, run.Start, run.Count)
	if err != nil {
		return err
	}
	for _, desc := range run.Registers {
		off := desc.Address - run.Start
		ok := true
		for i := uint16(0); i < desc.Words; i++ {
			if !valid[off+i] {
				ok = false
				break
			}
		}
		if !ok {
			values[desc.Key] = UnavailableValue()
			continue
		}
		value, err := Decode(desc, words[off:off+desc.Words])
		if err != nil {
			c.logger.Warn("register decode failed", zap.String("key", desc.Key), zap.Error(err))
			values[desc.Key] = UnavailableValue()
			continue
		}
		values[desc.Key] = value
	}
	return nil
}

func (c *deviceClient) Write(key string, physical float64) error {
	desc, err := c.catalog.Lookup(key)
	if err != nil {
		return err
	}
	words, err := Encode(desc, physical)
	if err != nil {
		return err
	}
	if len(words) != 1 {
		return fmt.Errorf("%w: %s needs a multi-register write", ErrNotWritable, key)
	}
	return c.session.WriteSingle(desc.Space, desc.Address, words[0])
}
