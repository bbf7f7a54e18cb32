package voltx_modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/simonvetter/modbus"
)

// MaxBlockRegisters is the Modbus protocol cap on registers per block read.
const MaxBlockRegisters = 125

// wireClient is the slice of the modbus library the session uses. Tests
// substitute a fake.
type wireClient interface {
	Open() error
	Close() error
	ReadRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error)
	ReadRegister(addr uint16, regType modbus.RegType) (uint16, error)
	WriteRegister(addr uint16, value uint16) error
}

// Session is a single Modbus TCP connection to the inverter. All operations
// are serialized; concurrent callers queue on the internal lock.
type Session interface {
	Open() error
	Close() error
	// ReadBlock reads count registers starting at addr in one request.
	ReadBlock(space Space, addr uint16, count uint16) ([]uint16, error)
	// ReadBlockWithFallback reads a block and, when the device answers the
	// block read with a protocol exception, degrades to per-register reads.
	// The validity mask marks which positions hold a real reading.
	ReadBlockWithFallback(space Space, addr uint16, count uint16) ([]uint16, []bool, error)
	// WriteSingle writes one holding register via function code 06.
	WriteSingle(space Space, addr uint16, value uint16) error
}

type ModbusInstrument struct {
	RecordTime func(fnName string, opTime time.Duration)
}

func RecordTimer(name string, instrument []ModbusInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

type tcpSession struct {
	mu         sync.Mutex
	client     wireClient
	instrument []ModbusInstrument
}

// CreateTCPSession builds a session over a Modbus TCP connection. The
// connection is not opened until Open is called.
func CreateTCPSession(host string, port uint, unitID uint8, timeout time.Duration, instrument []ModbusInstrument) (Session, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if unitID > 0 {
		if err := client.SetUnitId(unitID); err != nil {
			return nil, err
		}
	}
	return &tcpSession{client: client, instrument: instrument}, nil
}

func regType(space Space) modbus.RegType {
	if space == InputRegister {
		return modbus.INPUT_REGISTER
	}
	return modbus.HOLDING_REGISTER
}

func (s *tcpSession) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.client.Open(); err != nil {
		return classifyError(err)
	}
	return nil
}

func (s *tcpSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.Close()
}

func (s *tcpSession) ReadBlock(space Space, addr uint16, count uint16) ([]uint16, error) {
	if count == 0 || count > MaxBlockRegisters {
		return nil, fmt.Errorf("%w: block size %d", ErrProtocol, count)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer RecordTimer("ReadBlock", s.instrument)()
	words, err := s.client.ReadRegisters(addr, count, regType(space))
	if err != nil {
		return nil, classifyError(err)
	}
	return words, nil
}

func (s *tcpSession) ReadBlockWithFallback(space Space, addr uint16, count uint16) ([]uint16, []bool, error) {
	words, err := s.ReadBlock(space, addr, count)
	if err == nil {
		valid := make([]bool, count)
		for i := range valid {
			valid[i] = true
		}
		return words, valid, nil
	}
	// transport errors fail the whole block; a fresh request would hit the
	// same dead connection
	if !errors.Is(err, ErrProtocol) {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer RecordTimer("ReadBlockFallback", s.instrument)()
	words = make([]uint16, count)
	valid := make([]bool, count)
	for i := uint16(0); i < count; i++ {
		word, err := s.client.ReadRegister(addr+i, regType(space))
		if err != nil {
			err = classifyError(err)
			if errors.Is(err, ErrTransport) {
				return nil, nil, err
			}
			continue
		}
		words[i] = word
		valid[i] = true
	}
	return words, valid, nil
}

func (s *tcpSession) WriteSingle(space Space, addr uint16, value uint16) error {
	if space != HoldingRegister {
		return fmt.Errorf("%w: %s space", ErrNotWritable, space)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer RecordTimer("WriteSingle", s.instrument)()
	if err := s.client.WriteRegister(addr, value); err != nil {
		return classifyError(err)
	}
	return nil
}
