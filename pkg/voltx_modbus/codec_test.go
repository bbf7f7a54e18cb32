package voltx_modbus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustLookup(t *testing.T, key string) RegisterDescriptor {
	t.Helper()
	d, err := DefaultCatalog().Lookup(key)
	assert.Nil(t, err)
	return d
}

func TestDecodeScaledUnsigned(t *testing.T) {
	v, err := Decode(mustLookup(t, "vac"), []uint16{2331})
	assert.Nil(t, err)
	assert.Equal(t, ValueNumeric, v.Kind)
	assert.InDelta(t, 233.1, v.Num, 0.001)
	assert.Equal(t, int64(2331), v.Raw)
}

func TestDecodeSignedNegative(t *testing.T) {
	// two's complement, -52 raw, x0.1 scale
	v, err := Decode(mustLookup(t, "cb"), []uint16{0xFFCC})
	assert.Nil(t, err)
	assert.InDelta(t, -5.2, v.Num, 0.001)
	assert.Equal(t, int64(-52), v.Raw)
}

func TestDecodeSigned32WordPair(t *testing.T) {
	// big-endian pair 0xFFFF 0xFB90 is -1136
	v, err := Decode(mustLookup(t, "pb"), []uint16{0xFFFF, 0xFB90})
	assert.Nil(t, err)
	assert.Equal(t, int64(-1136), v.Raw)
	assert.InDelta(t, -1136, v.Num, 0.001)
}

func TestDecodeSentinelWinsOverValue(t *testing.T) {
	// 0x8000 would be a valid signed reading but marks a missing probe
	v, err := Decode(mustLookup(t, "tmp"), []uint16{0x8000})
	assert.Nil(t, err)
	assert.Equal(t, ValueUnavailable, v.Kind)
	assert.False(t, v.Available())
}

func TestDecodeKnownEnum(t *testing.T) {
	v, err := Decode(mustLookup(t, "bst"), []uint16{2})
	assert.Nil(t, err)
	assert.Equal(t, ValueEnum, v.Kind)
	assert.True(t, v.Known)
	assert.Equal(t, "Charging", v.Label)
}

func TestDecodeUnrecognizedEnumSurvives(t *testing.T) {
	v, err := Decode(mustLookup(t, "chflg"), []uint16{9})
	assert.Nil(t, err)
	assert.Equal(t, ValueEnum, v.Kind)
	assert.False(t, v.Known)
	assert.Equal(t, int64(9), v.Raw)
	assert.Equal(t, "unknown(9)", v.String())
}

func TestDecodePackedASCII(t *testing.T) {
	d := RegisterDescriptor{Key: "serial", Words: 4, Encoding: PackedASCII}
	v, err := Decode(d, []uint16{0x4153, 0x5731, 0x3000, 0x0000})
	assert.Nil(t, err)
	assert.Equal(t, ValueText, v.Kind)
	assert.Equal(t, "ASW10", v.Text)
}

func TestDecodeWordCountMismatch(t *testing.T) {
	_, err := Decode(mustLookup(t, "pb"), []uint16{1})
	assert.NotNil(t, err)
}

func TestEncodeRejectsReadOnly(t *testing.T) {
	_, err := Encode(mustLookup(t, "soc"), 50)
	assert.True(t, errors.Is(err, ErrNotWritable))
}

func TestEncodeRangeCheck(t *testing.T) {
	_, err := Encode(mustLookup(t, "chpwr"), -15000)
	assert.True(t, errors.Is(err, ErrOutOfRange))

	words, err := Encode(mustLookup(t, "chpwr"), -2500)
	assert.Nil(t, err)
	assert.Equal(t, []uint16{0xF63C}, words)
}

func TestEncodeScaledValue(t *testing.T) {
	words, err := Encode(mustLookup(t, "soc_min"), 15)
	assert.Nil(t, err)
	assert.Equal(t, []uint16{1500}, words)
}

func TestEncodeEnum(t *testing.T) {
	words, err := Encode(mustLookup(t, "work_mode"), 5)
	assert.Nil(t, err)
	assert.Equal(t, []uint16{5}, words)

	_, err = Encode(mustLookup(t, "work_mode"), 7)
	assert.True(t, errors.Is(err, ErrInvalidEnum))

	_, err = Encode(mustLookup(t, "work_mode"), 2.5)
	assert.True(t, errors.Is(err, ErrInvalidEnum))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cat := DefaultCatalog()
	cases := map[string]float64{
		"chpwr":   -4200,
		"soc_max": 90,
		"soc_min": 12,
	}
	for key, physical := range cases {
		d, err := cat.Lookup(key)
		assert.Nil(t, err)
		words, err := Encode(d, physical)
		assert.Nil(t, err)
		v, err := Decode(d, words)
		assert.Nil(t, err)
		assert.InDelta(t, physical, v.Num, 0.001, key)
	}
}
