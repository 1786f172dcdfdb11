// Package pickle reads and writes the pickle stream format for plain data:
// None, booleans, numbers, strings, lists, tuples, sets and dicts. Decoding
// works from an allow-list of opcodes; anything able to reference or build
// an object (globals, reduce, build, persistent ids, extensions) fails with
// a SecurityError wrapping ErrForbidden before it is acted upon.
package pickle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	perrors "github.com/butter-bot-machines/slskconf/pkg/errors"
	"github.com/butter-bot-machines/slskconf/pkg/value"
)

var (
	// ErrForbidden is returned for streams that reference code or classes
	ErrForbidden = errors.New("forbidden pickle construct")
	// ErrMalformed is returned for truncated or inconsistent streams
	ErrMalformed = errors.New("malformed pickle")
)

// HighestProtocol is the newest stream version the decoder accepts
const HighestProtocol = 5

const (
	opMark           = '('
	opStop           = '.'
	opPop            = '0'
	opPopMark        = '1'
	opDup            = '2'
	opFloat          = 'F'
	opInt            = 'I'
	opBinInt         = 'J'
	opBinInt1        = 'K'
	opLong           = 'L'
	opBinInt2        = 'M'
	opNone           = 'N'
	opPersID         = 'P'
	opBinPersID      = 'Q'
	opReduce         = 'R'
	opString         = 'S'
	opBinString      = 'T'
	opShortBinString = 'U'
	opUnicode        = 'V'
	opBinUnicode     = 'X'
	opAppend         = 'a'
	opBuild          = 'b'
	opGlobal         = 'c'
	opDict           = 'd'
	opEmptyDict      = '}'
	opAppends        = 'e'
	opGet            = 'g'
	opBinGet         = 'h'
	opInst           = 'i'
	opLongBinGet     = 'j'
	opList           = 'l'
	opEmptyList      = ']'
	opObj            = 'o'
	opPut            = 'p'
	opBinPut         = 'q'
	opLongBinPut     = 'r'
	opSetItem        = 's'
	opTuple          = 't'
	opEmptyTuple     = ')'
	opSetItems       = 'u'
	opBinFloat       = 'G'

	opProto    = 0x80
	opNewObj   = 0x81
	opExt1     = 0x82
	opExt2     = 0x83
	opExt4     = 0x84
	opTuple1   = 0x85
	opTuple2   = 0x86
	opTuple3   = 0x87
	opNewTrue  = 0x88
	opNewFalse = 0x89
	opLong1    = 0x8a
	opLong4    = 0x8b

	opBinBytes      = 'B'
	opShortBinBytes = 'C'

	opShortBinUnicode = 0x8c
	opBinUnicode8     = 0x8d
	opBinBytes8       = 0x8e
	opEmptySet        = 0x8f
	opAddItems        = 0x90
	opFrozenSet       = 0x91
	opNewObjEx        = 0x92
	opStackGlobal     = 0x93
	opMemoize         = 0x94
	opFrame           = 0x95

	opByteArray8     = 0x96
	opNextBuffer     = 0x97
	opReadOnlyBuffer = 0x98
)

var forbidden = map[byte]string{
	opPersID:         "persistent id",
	opBinPersID:      "persistent id",
	opReduce:         "reduce",
	opBuild:          "build",
	opInst:           "instance",
	opObj:            "object",
	opNewObj:         "new object",
	opNewObjEx:       "new object",
	opExt1:           "extension",
	opExt2:           "extension",
	opExt4:           "extension",
	opStackGlobal:    "global",
	opNextBuffer:     "out-of-band buffer",
	opReadOnlyBuffer: "out-of-band buffer",
}

// object is a mutable decoding node. Lists and dicts are shared by
// reference through the memo, so they stay mutable until the stream ends.
type object struct {
	kind    value.Kind
	scalar  value.Value
	items   []*object
	entries map[string]*object
}

var mark = &object{}

func scalar(v value.Value) *object { return &object{kind: v.Kind(), scalar: v} }

// Decode reads one pickled value from r
func Decode(r io.Reader) (value.Value, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return value.None(), err
	}
	return Unmarshal(data)
}

// Unmarshal decodes one pickled value
func Unmarshal(data []byte) (value.Value, error) {
	d := &decoder{data: data, memo: make(map[int]*object)}
	obj, err := d.run()
	if err != nil {
		return value.None(), err
	}
	return freeze(obj)
}

type decoder struct {
	data  []byte
	pos   int
	stack []*object
	memo  map[int]*object
}

func (d *decoder) malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w at offset %d: %s", ErrMalformed, d.pos, fmt.Sprintf(format, args...))
}

func (d *decoder) read(n int) ([]byte, error) {
	if n < 0 || n > len(d.data)-d.pos {
		return nil, d.malformed("unexpected end of data")
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readLine() (string, error) {
	i := bytes.IndexByte(d.data[d.pos:], '\n')
	if i < 0 {
		return "", d.malformed("unterminated line")
	}
	line := string(d.data[d.pos : d.pos+i])
	d.pos += i + 1
	return line, nil
}

func (d *decoder) readUint(n int) (uint64, error) {
	b, err := d.read(n)
	if err != nil {
		return 0, err
	}
	var out uint64
	for i := n - 1; i >= 0; i-- {
		out = out<<8 | uint64(b[i])
	}
	return out, nil
}

func (d *decoder) push(o *object) { d.stack = append(d.stack, o) }

func (d *decoder) pop() (*object, error) {
	if len(d.stack) == 0 {
		return nil, d.malformed("stack underflow")
	}
	o := d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]
	if o == mark {
		return nil, d.malformed("unexpected mark")
	}
	return o, nil
}

func (d *decoder) top() (*object, error) {
	if len(d.stack) == 0 || d.stack[len(d.stack)-1] == mark {
		return nil, d.malformed("stack underflow")
	}
	return d.stack[len(d.stack)-1], nil
}

// popMark returns the objects pushed since the last mark
func (d *decoder) popMark() ([]*object, error) {
	for i := len(d.stack) - 1; i >= 0; i-- {
		if d.stack[i] == mark {
			items := make([]*object, len(d.stack)-i-1)
			copy(items, d.stack[i+1:])
			d.stack = d.stack[:i]
			return items, nil
		}
	}
	return nil, d.malformed("missing mark")
}

func (d *decoder) run() (*object, error) {
	for {
		if d.pos >= len(d.data) {
			return nil, d.malformed("missing stop")
		}
		op := d.data[d.pos]
		d.pos++
		if what, bad := forbidden[op]; bad {
			return nil, perrors.SecurityError.Wrap(ErrForbidden, "%s opcode 0x%02x", what, op)
		}
		switch op {
		case opStop:
			return d.pop()
		case opProto:
			b, err := d.read(1)
			if err != nil {
				return nil, err
			}
			if b[0] > HighestProtocol {
				return nil, d.malformed("unsupported protocol %d", b[0])
			}
		case opFrame:
			if _, err := d.read(8); err != nil {
				return nil, err
			}
		case opGlobal:
			module, _ := d.readLine()
			name, _ := d.readLine()
			return nil, perrors.SecurityError.Wrap(ErrForbidden, "global '%s.%s'", module, name)
		case opMark:
			d.push(mark)
		case opPop:
			if len(d.stack) == 0 {
				return nil, d.malformed("stack underflow")
			}
			d.stack = d.stack[:len(d.stack)-1]
		case opPopMark:
			if _, err := d.popMark(); err != nil {
				return nil, err
			}
		case opDup:
			o, err := d.top()
			if err != nil {
				return nil, err
			}
			d.push(o)
		case opNone:
			d.push(scalar(value.None()))
		case opNewTrue:
			d.push(scalar(value.Bool(true)))
		case opNewFalse:
			d.push(scalar(value.Bool(false)))
		default:
			if err := d.dispatch(op); err != nil {
				return nil, err
			}
		}
	}
}

func (d *decoder) dispatch(op byte) error {
	switch op {
	case opInt, opLong, opFloat:
		return d.textNumber(op)
	case opBinInt:
		n, err := d.readUint(4)
		if err != nil {
			return err
		}
		d.push(scalar(value.Int(int64(int32(uint32(n))))))
	case opBinInt1:
		n, err := d.readUint(1)
		if err != nil {
			return err
		}
		d.push(scalar(value.Int(int64(n))))
	case opBinInt2:
		n, err := d.readUint(2)
		if err != nil {
			return err
		}
		d.push(scalar(value.Int(int64(n))))
	case opLong1, opLong4:
		size := 1
		if op == opLong4 {
			size = 4
		}
		n, err := d.readUint(size)
		if err != nil {
			return err
		}
		b, err := d.read(int(n))
		if err != nil {
			return err
		}
		v, err := decodeLong(b)
		if err != nil {
			return d.malformed("%v", err)
		}
		d.push(scalar(v))
	case opBinFloat:
		b, err := d.read(8)
		if err != nil {
			return err
		}
		d.push(scalar(value.Float(math.Float64frombits(binary.BigEndian.Uint64(b)))))
	case opString:
		line, err := d.readLine()
		if err != nil {
			return err
		}
		v, err := value.Parse(line)
		if err != nil || v.Kind() != value.KindText {
			return d.malformed("invalid string literal")
		}
		d.push(scalar(v))
	case opUnicode:
		line, err := d.readLine()
		if err != nil {
			return err
		}
		s, err := rawUnicodeEscape(line)
		if err != nil {
			return d.malformed("%v", err)
		}
		d.push(scalar(value.Text(s)))
	case opBinString, opShortBinString, opBinUnicode, opShortBinUnicode, opBinUnicode8,
		opBinBytes, opShortBinBytes, opBinBytes8, opByteArray8:
		return d.sized(op)
	case opEmptyList:
		d.push(&object{kind: value.KindList})
	case opEmptyTuple:
		d.push(&object{kind: value.KindPair})
	case opEmptyDict:
		d.push(&object{kind: value.KindMapping, entries: make(map[string]*object)})
	case opEmptySet:
		d.push(&object{kind: value.KindList})
	case opList:
		items, err := d.popMark()
		if err != nil {
			return err
		}
		d.push(&object{kind: value.KindList, items: items})
	case opTuple, opFrozenSet:
		items, err := d.popMark()
		if err != nil {
			return err
		}
		kind := value.KindPair
		if op == opFrozenSet {
			kind = value.KindList
		}
		d.push(&object{kind: kind, items: items})
	case opTuple1, opTuple2, opTuple3:
		n := int(op-opTuple1) + 1
		if len(d.stack) < n {
			return d.malformed("stack underflow")
		}
		items := make([]*object, n)
		copy(items, d.stack[len(d.stack)-n:])
		for _, it := range items {
			if it == mark {
				return d.malformed("unexpected mark")
			}
		}
		d.stack = d.stack[:len(d.stack)-n]
		d.push(&object{kind: value.KindPair, items: items})
	case opDict:
		items, err := d.popMark()
		if err != nil {
			return err
		}
		dict := &object{kind: value.KindMapping, entries: make(map[string]*object)}
		if err := d.setItems(dict, items); err != nil {
			return err
		}
		d.push(dict)
	case opAppend:
		item, err := d.pop()
		if err != nil {
			return err
		}
		return d.extend([]*object{item})
	case opAppends, opAddItems:
		items, err := d.popMark()
		if err != nil {
			return err
		}
		return d.extend(items)
	case opSetItem:
		v, err := d.pop()
		if err != nil {
			return err
		}
		k, err := d.pop()
		if err != nil {
			return err
		}
		dict, err := d.top()
		if err != nil {
			return err
		}
		return d.setItems(dict, []*object{k, v})
	case opSetItems:
		items, err := d.popMark()
		if err != nil {
			return err
		}
		dict, err := d.top()
		if err != nil {
			return err
		}
		return d.setItems(dict, items)
	case opPut, opBinPut, opLongBinPut, opMemoize:
		return d.put(op)
	case opGet, opBinGet, opLongBinGet:
		return d.get(op)
	default:
		return d.malformed("unknown opcode 0x%02x", op)
	}
	return nil
}

func (d *decoder) textNumber(op byte) error {
	line, err := d.readLine()
	if err != nil {
		return err
	}
	switch op {
	case opInt:
		// protocol 0 booleans
		switch line {
		case "00":
			d.push(scalar(value.Bool(false)))
			return nil
		case "01":
			d.push(scalar(value.Bool(true)))
			return nil
		}
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return d.malformed("invalid integer %q", line)
		}
		d.push(scalar(value.Int(n)))
	case opLong:
		n, err := strconv.ParseInt(strings.TrimSuffix(line, "L"), 10, 64)
		if err != nil {
			return d.malformed("invalid long %q", line)
		}
		d.push(scalar(value.Int(n)))
	case opFloat:
		f, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return d.malformed("invalid float %q", line)
		}
		d.push(scalar(value.Float(f)))
	}
	return nil
}

func (d *decoder) sized(op byte) error {
	var width int
	switch op {
	case opShortBinString, opShortBinUnicode, opShortBinBytes:
		width = 1
	case opBinString, opBinUnicode, opBinBytes:
		width = 4
	default:
		width = 8
	}
	n, err := d.readUint(width)
	if err != nil {
		return err
	}
	if n > uint64(len(d.data)) {
		return d.malformed("length %d exceeds data", n)
	}
	b, err := d.read(int(n))
	if err != nil {
		return err
	}
	switch op {
	case opBinUnicode, opShortBinUnicode, opBinUnicode8:
		if !utf8.Valid(b) {
			return d.malformed("invalid utf-8 in string")
		}
	}
	d.push(scalar(value.Text(string(b))))
	return nil
}

func (d *decoder) extend(items []*object) error {
	target, err := d.top()
	if err != nil {
		return err
	}
	if target.kind != value.KindList {
		return d.malformed("append to %s", target.kind)
	}
	target.items = append(target.items, items...)
	return nil
}

func (d *decoder) setItems(dict *object, items []*object) error {
	if dict.kind != value.KindMapping {
		return d.malformed("set item on %s", dict.kind)
	}
	if len(items)%2 != 0 {
		return d.malformed("odd number of dict items")
	}
	for i := 0; i < len(items); i += 2 {
		k := items[i]
		if k.items != nil || k.entries != nil || k.kind == value.KindList ||
			k.kind == value.KindPair || k.kind == value.KindMapping {
			return d.malformed("unsupported dict key of kind %s", k.kind)
		}
		key, err := value.MappingKey(k.scalar)
		if err != nil {
			return d.malformed("%v", err)
		}
		dict.entries[key] = items[i+1]
	}
	return nil
}

func (d *decoder) memoIndex(op byte) (int, error) {
	switch op {
	case opPut, opGet:
		line, err := d.readLine()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 0 {
			return 0, d.malformed("invalid memo index %q", line)
		}
		return n, nil
	case opBinPut, opBinGet:
		n, err := d.readUint(1)
		return int(n), err
	default:
		n, err := d.readUint(4)
		return int(n), err
	}
}

func (d *decoder) put(op byte) error {
	idx := len(d.memo)
	if op != opMemoize {
		var err error
		if idx, err = d.memoIndex(op); err != nil {
			return err
		}
	}
	o, err := d.top()
	if err != nil {
		return err
	}
	d.memo[idx] = o
	return nil
}

func (d *decoder) get(op byte) error {
	idx, err := d.memoIndex(op)
	if err != nil {
		return err
	}
	o, ok := d.memo[idx]
	if !ok {
		return d.malformed("memo index %d not found", idx)
	}
	d.push(o)
	return nil
}

// decodeLong reads a little-endian two's complement integer
func decodeLong(b []byte) (value.Value, error) {
	if len(b) == 0 {
		return value.Int(0), nil
	}
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	n := new(big.Int).SetBytes(be)
	if b[len(b)-1]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(8*len(b))))
	}
	if !n.IsInt64() {
		return value.None(), fmt.Errorf("integer out of range")
	}
	return value.Int(n.Int64()), nil
}

// rawUnicodeEscape decodes the protocol 0 unicode form: latin-1 text
// where only \uXXXX and \UXXXXXXXX are escapes.
func rawUnicodeEscape(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && (s[i+1] == 'u' || s[i+1] == 'U') {
			digits := 4
			if s[i+1] == 'U' {
				digits = 8
			}
			if i+2+digits > len(s) {
				return "", fmt.Errorf("truncated escape")
			}
			n, err := strconv.ParseUint(s[i+2:i+2+digits], 16, 32)
			if err != nil || n > utf8.MaxRune {
				return "", fmt.Errorf("invalid escape")
			}
			b.WriteRune(rune(n))
			i += 1 + digits
			continue
		}
		b.WriteRune(rune(c))
	}
	return b.String(), nil
}

// Limits on decoded values. Containers shared through the memo count once
// per reference.
const (
	MaxValues = 1 << 20
	MaxDepth  = 64
)

// freezer converts decoding nodes into immutable values. Self-referencing
// containers cannot be represented and are rejected.
type freezer struct {
	visiting map[*object]bool
	done     map[*object]frozen
	total    int
}

type frozen struct {
	v    value.Value
	size int
}

func freeze(o *object) (value.Value, error) {
	f := &freezer{visiting: make(map[*object]bool), done: make(map[*object]frozen)}
	v, _, err := f.freeze(o, 0)
	return v, err
}

func (f *freezer) count(n int) error {
	f.total += n
	if f.total > MaxValues {
		return fmt.Errorf("%w: expands to more than %d values", ErrMalformed, MaxValues)
	}
	return nil
}

func (f *freezer) freeze(o *object, depth int) (value.Value, int, error) {
	if o.kind != value.KindList && o.kind != value.KindPair && o.kind != value.KindMapping {
		return o.scalar, 1, f.count(1)
	}
	if fr, ok := f.done[o]; ok {
		return fr.v, fr.size, f.count(fr.size)
	}
	if f.visiting[o] {
		return value.None(), 0, fmt.Errorf("%w: recursive container", ErrMalformed)
	}
	if depth >= MaxDepth {
		return value.None(), 0, fmt.Errorf("%w: nested deeper than %d", ErrMalformed, MaxDepth)
	}
	f.visiting[o] = true
	defer delete(f.visiting, o)

	size := 1
	if err := f.count(1); err != nil {
		return value.None(), 0, err
	}
	var v value.Value
	if o.kind == value.KindMapping {
		entries := make(map[string]value.Value, len(o.entries))
		for k, e := range o.entries {
			ev, n, err := f.freeze(e, depth+1)
			if err != nil {
				return value.None(), 0, err
			}
			entries[k] = ev
			size += n
		}
		v = value.Mapping(entries)
	} else {
		items := make([]value.Value, len(o.items))
		for i, it := range o.items {
			iv, n, err := f.freeze(it, depth+1)
			if err != nil {
				return value.None(), 0, err
			}
			items[i] = iv
			size += n
		}
		if o.kind == value.KindPair {
			v = value.Pair(items...)
		} else {
			v = value.List(items...)
		}
	}
	f.done[o] = frozen{v: v, size: size}
	return v, size, nil
}
