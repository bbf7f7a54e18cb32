package voltx_modbus

import (
	"errors"
	"fmt"

	"github.com/simonvetter/modbus"
)

// Error taxonomy. Callers discriminate with errors.Is.
var (
	// ErrUnknownRegister means the requested key is not in the catalog.
	ErrUnknownRegister = errors.New("unknown register")
	// ErrNotWritable means the register's access mode forbids writes.
	ErrNotWritable = errors.New("register is not writable")
	// ErrOutOfRange means the encoded raw value falls outside the register's valid range.
	ErrOutOfRange = errors.New("value out of range")
	// ErrInvalidEnum means the value does not map to any known enum state.
	ErrInvalidEnum = errors.New("invalid enum value")
	// ErrTransport covers connection-level failures: closed socket, timeout,
	// unreachable gateway. Recoverable on the next poll cycle.
	ErrTransport = errors.New("transport error")
	// ErrProtocol covers malformed or exception responses from the device.
	ErrProtocol = errors.New("protocol error")
)

// classifyError sorts raw modbus library errors into the transport/protocol
// taxonomy. Exception responses (the device answered, but refused) are
// protocol errors and trigger the per-register fallback; everything else,
// timeouts included, is a transport error.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, modbus.ErrIllegalFunction),
		errors.Is(err, modbus.ErrIllegalDataAddress),
		errors.Is(err, modbus.ErrIllegalDataValue),
		errors.Is(err, modbus.ErrServerDeviceFailure),
		errors.Is(err, modbus.ErrServerDeviceBusy),
		errors.Is(err, modbus.ErrMemoryParityError),
		errors.Is(err, modbus.ErrShortFrame),
		errors.Is(err, modbus.ErrBadUnitId),
		errors.Is(err, modbus.ErrBadTransactionId),
		errors.Is(err, modbus.ErrProtocolError):
		return fmt.Errorf("%w: %s", ErrProtocol, err)
	default:
		return fmt.Errorf("%w: %s", ErrTransport, err)
	}
}
