package voltx_modbus

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind discriminates decoded register values.
type ValueKind uint8

const (
	ValueUnavailable ValueKind = iota
	ValueNumeric
	ValueEnum
	ValueText
)

// Value is one decoded register reading.
type Value struct {
	Kind ValueKind
	// Num is the scaled physical quantity for numeric encodings.
	Num float64
	// Raw is the unscaled integer as read from the wire.
	Raw int64
	// Label is the symbolic enum state; empty when the raw value is not
	// in the enum map.
	Label string
	// Known reports whether Label was found in the enum map.
	Known bool
	// Text is the decoded string for packed ascii registers.
	Text string
}

func UnavailableValue() Value {
	return Value{Kind: ValueUnavailable}
}

func NumericValue(num float64, raw int64) Value {
	return Value{Kind: ValueNumeric, Num: num, Raw: raw}
}

func (v Value) Available() bool {
	return v.Kind != ValueUnavailable
}

func (v Value) String() string {
	switch v.Kind {
	case ValueNumeric:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueEnum:
		if v.Known {
			return v.Label
		}
		return fmt.Sprintf("unknown(%d)", v.Raw)
	case ValueText:
		return v.Text
	default:
		return "unavailable"
	}
}

// Decode maps raw register words to a typed value per the descriptor.
// Sentinel patterns win over every other interpretation. Unmapped enum
// raws decode to an unrecognized variant instead of failing, so
// undocumented device states survive a poll.
func Decode(d RegisterDescriptor, words []uint16) (Value, error) {
	if int(d.Words) != len(words) && d.Encoding != PackedASCII {
		return Value{}, fmt.Errorf("register %s: got %d words, want %d", d.Key, len(words), d.Words)
	}
	var raw uint32
	if d.Words == 2 {
		raw = uint32(words[0])<<16 | uint32(words[1])
	} else if len(words) > 0 {
		raw = uint32(words[0])
	}
	for _, s := range d.Sentinels {
		if raw == s {
			return UnavailableValue(), nil
		}
	}
	switch d.Encoding {
	case Unsigned16:
		return NumericValue(float64(uint16(raw))*d.scaleOr1(), int64(uint16(raw))), nil
	case Signed16:
		n := int16(uint16(raw))
		return NumericValue(float64(n)*d.scaleOr1(), int64(n)), nil
	case Unsigned32:
		return NumericValue(float64(raw)*d.scaleOr1(), int64(raw)), nil
	case Signed32:
		n := int32(raw)
		return NumericValue(float64(n)*d.scaleOr1(), int64(n)), nil
	case Enum16:
		label, known := d.Enum[uint16(raw)]
		return Value{Kind: ValueEnum, Raw: int64(uint16(raw)), Label: label, Known: known}, nil
	case PackedASCII:
		buf := make([]byte, 0, len(words)*2)
		for _, w := range words {
			buf = append(buf, byte(w>>8), byte(w))
		}
		return Value{Kind: ValueText, Text: strings.TrimRight(string(buf), "\x00")}, nil
	default:
		return Value{}, fmt.Errorf("register %s: unsupported encoding %d", d.Key, d.Encoding)
	}
}

// Encode maps a physical value back to raw register words, validating
// access mode and raw range before any I/O can happen.
func Encode(d RegisterDescriptor, physical float64) ([]uint16, error) {
	if !d.Writable() {
		return nil, fmt.Errorf("%w: %s", ErrNotWritable, d.Key)
	}
	switch d.Encoding {
	case Enum16:
		raw := uint16(physical)
		if float64(raw) != physical {
			return nil, fmt.Errorf("%w: %s=%v", ErrInvalidEnum, d.Key, physical)
		}
		if _, ok := d.Enum[raw]; !ok {
			return nil, fmt.Errorf("%w: %s=%d", ErrInvalidEnum, d.Key, raw)
		}
		return []uint16{raw}, nil
	case Unsigned16, Signed16, Unsigned32, Signed32:
		raw := int64(math.Round(physical / d.scaleOr1()))
		if err := checkRange(d, raw); err != nil {
			return nil, err
		}
		if d.Words == 2 {
			u := uint32(raw)
			return []uint16{uint16(u >> 16), uint16(u)}, nil
		}
		return []uint16{uint16(raw)}, nil
	default:
		return nil, fmt.Errorf("%w: %s has a non-writable encoding", ErrNotWritable, d.Key)
	}
}

func checkRange(d RegisterDescriptor, raw int64) error {
	r := d.Range
	if r == nil {
		r = encodingBounds(d)
	}
	if raw < r.Min || raw > r.Max {
		return fmt.Errorf("%w: %s raw %d outside %d..%d", ErrOutOfRange, d.Key, raw, r.Min, r.Max)
	}
	return nil
}

func encodingBounds(d RegisterDescriptor) *RawRange {
	switch d.Encoding {
	case Signed16:
		return &RawRange{Min: math.MinInt16, Max: math.MaxInt16}
	case Signed32:
		return &RawRange{Min: math.MinInt32, Max: math.MaxInt32}
	case Unsigned32:
		return &RawRange{Min: 0, Max: math.MaxUint32}
	default:
		return &RawRange{Min: 0, Max: math.MaxUint16}
	}
}
