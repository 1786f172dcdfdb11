package pickle

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/butter-bot-machines/slskconf/pkg/value"
)

// Protocol is the stream version written by Encode. Version 2 keeps files
// readable by every client release that stores them.
const Protocol = 2

// Encode pickles v
func Encode(v value.Value) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{opProto, Protocol})
	encode(&buf, v)
	buf.WriteByte(opStop)
	return buf.Bytes()
}

// Write pickles v to w
func Write(w io.Writer, v value.Value) error {
	_, err := w.Write(Encode(v))
	return err
}

func encode(buf *bytes.Buffer, v value.Value) {
	switch v.Kind() {
	case value.KindNone:
		buf.WriteByte(opNone)
	case value.KindBoolean:
		if b, _ := v.Bool(); b {
			buf.WriteByte(opNewTrue)
		} else {
			buf.WriteByte(opNewFalse)
		}
	case value.KindNumber:
		if v.IsFloat() {
			f, _ := v.Float()
			buf.WriteByte(opBinFloat)
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], math.Float64bits(f))
			buf.Write(b[:])
			return
		}
		n, _ := v.Int()
		encodeInt(buf, n)
	case value.KindText:
		s, _ := v.Text()
		buf.WriteByte(opBinUnicode)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(len(s)))
		buf.Write(b[:])
		buf.WriteString(s)
	case value.KindList:
		buf.WriteByte(opEmptyList)
		items := v.Items()
		if len(items) == 0 {
			return
		}
		buf.WriteByte(opMark)
		for _, it := range items {
			encode(buf, it)
		}
		buf.WriteByte(opAppends)
	case value.KindPair:
		items := v.Items()
		switch len(items) {
		case 0:
			buf.WriteByte(opEmptyTuple)
		case 1, 2, 3:
			for _, it := range items {
				encode(buf, it)
			}
			buf.WriteByte(byte(opTuple1 + len(items) - 1))
		default:
			buf.WriteByte(opMark)
			for _, it := range items {
				encode(buf, it)
			}
			buf.WriteByte(opTuple)
		}
	case value.KindMapping:
		buf.WriteByte(opEmptyDict)
		keys := v.Keys()
		if len(keys) == 0 {
			return
		}
		buf.WriteByte(opMark)
		for _, k := range keys {
			e, _ := v.Get(k)
			encode(buf, value.Text(k))
			encode(buf, e)
		}
		buf.WriteByte(opSetItems)
	}
}

func encodeInt(buf *bytes.Buffer, n int64) {
	switch {
	case n >= 0 && n <= math.MaxUint8:
		buf.WriteByte(opBinInt1)
		buf.WriteByte(byte(n))
	case n >= 0 && n <= math.MaxUint16:
		buf.WriteByte(opBinInt2)
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(n))
		buf.Write(b[:])
	case n >= math.MinInt32 && n <= math.MaxInt32:
		buf.WriteByte(opBinInt)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(int32(n)))
		buf.Write(b[:])
	default:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(n))
		size := 8
		// trim redundant sign bytes
		for size > 1 {
			top, next := b[size-1], b[size-2]
			if (top == 0x00 && next&0x80 == 0) || (top == 0xff && next&0x80 != 0) {
				size--
				continue
			}
			break
		}
		buf.WriteByte(opLong1)
		buf.WriteByte(byte(size))
		buf.Write(b[:size])
	}
}
