package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

/*
TKey is the typed, fixed-length value the whole engine trades in: record
columns, WHERE operands and B+ tree keys are all TKeys. The byte form is
exactly what sits in a block — int32 and float32 are 4 little-endian bytes,
char is the declared length, zero-padded. Comparison is numeric for the two
number families and bytewise over the full declared length for char.
*/

type TKey struct {
	Type DataType
	Len  int
	Data []byte
}

// NewTKey allocates a zero key of the given family. length is only honoured
// for char; int and float are always 4 bytes.
func NewTKey(dt DataType, length int) TKey {
	if dt != TypeChar {
		length = 4
	}
	return TKey{Type: dt, Len: length, Data: make([]byte, length)}
}

// ReadValue parses a literal into the key's byte form.
// A malformed number is a type mismatch; an over-long char value is a
// length overflow.
func (k *TKey) ReadValue(text string) error {
	switch k.Type {
	case TypeInt:
		v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
		if err != nil {
			return fmt.Errorf("%w: %q is not an int", ErrTypeMismatch, text)
		}
		binary.LittleEndian.PutUint32(k.Data, uint32(int32(v)))
	case TypeFloat:
		v, err := strconv.ParseFloat(strings.TrimSpace(text), 32)
		if err != nil {
			return fmt.Errorf("%w: %q is not a float", ErrTypeMismatch, text)
		}
		binary.LittleEndian.PutUint32(k.Data, math.Float32bits(float32(v)))
	case TypeChar:
		if len(text) > k.Len {
			return fmt.Errorf("%w: %q exceeds char(%d)", ErrValueLengthOverflow, text, k.Len)
		}
		for i := range k.Data {
			k.Data[i] = 0
		}
		copy(k.Data, text)
	default:
		return fmt.Errorf("%w: unknown data type %d", ErrTypeMismatch, k.Type)
	}
	return nil
}

// Int returns the int32 view of the key bytes.
func (k TKey) Int() int32 {
	return int32(binary.LittleEndian.Uint32(k.Data))
}

// Float returns the float32 view of the key bytes.
func (k TKey) Float() float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(k.Data))
}

// Compare orders two keys of the same family: -1, 0 or +1.
func (k TKey) Compare(o TKey) int {
	switch k.Type {
	case TypeInt:
		a, b := k.Int(), o.Int()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	case TypeFloat:
		a, b := k.Float(), o.Float()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	default:
		return bytes.Compare(k.Data, o.Data)
	}
}

// Satisfies reports whether k <op> o holds.
func (k TKey) Satisfies(op Operator, o TKey) bool {
	c := k.Compare(o)
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpGt:
		return c > 0
	case OpLe:
		return c <= 0
	case OpGe:
		return c >= 0
	}
	return false
}

// Clone returns a deep copy; block frames are recycled, so any key that
// outlives the borrow it was decoded from must be cloned.
func (k TKey) Clone() TKey {
	data := make([]byte, len(k.Data))
	copy(data, k.Data)
	return TKey{Type: k.Type, Len: k.Len, Data: data}
}

func (k TKey) String() string {
	switch k.Type {
	case TypeInt:
		return strconv.FormatInt(int64(k.Int()), 10)
	case TypeFloat:
		return strconv.FormatFloat(float64(k.Float()), 'g', -1, 32)
	default:
		return strings.TrimRight(string(k.Data), "\x00")
	}
}
