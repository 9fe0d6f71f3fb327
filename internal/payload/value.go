// Package payload provides an order-preserving JSON value representation
// and the mutation strategies used to derive adversarial payload variants
// from known-good reference payloads.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the JSON type of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindObject
	KindArray
	KindString
	KindNumber
	KindBool
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Member is one key/value pair of an object. Objects are kept as ordered
// member slices so a mutated document serializes with the same key order
// as its reference document.
type Member struct {
	Key   string
	Value Value
}

// Value is a closed JSON value: exactly one of the payload carriers is
// meaningful for a given Kind. Mutation strategies switch exhaustively
// over Kind, which makes the bool-before-number distinction explicit
// rather than an accident of type-check ordering.
type Value struct {
	Kind    Kind
	Members []Member // KindObject
	Items   []Value  // KindArray
	Str     string   // KindString
	Num     float64  // KindNumber
	Bool    bool     // KindBool
}

// Constructors for each kind.

func Null() Value              { return Value{Kind: KindNull} }
func String(s string) Value    { return Value{Kind: KindString, Str: s} }
func Number(n float64) Value   { return Value{Kind: KindNumber, Num: n} }
func Bool(b bool) Value        { return Value{Kind: KindBool, Bool: b} }
func Array(items ...Value) Value {
	return Value{Kind: KindArray, Items: items}
}

// Object builds an object value from ordered members.
func Object(members ...Member) Value {
	return Value{Kind: KindObject, Members: members}
}

// M is a convenience constructor for an object member.
func M(key string, v Value) Member {
	return Member{Key: key, Value: v}
}

// Get returns the member value for key, or a null Value when absent.
func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.Members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Null(), false
}

// Keys returns the object keys in document order.
func (v Value) Keys() []string {
	keys := make([]string, len(v.Members))
	for i, m := range v.Members {
		keys[i] = m.Key
	}
	return keys
}

// Equal reports deep equality of two values. Numbers compare by value,
// so 1 and 1.0 are equal.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindObject:
		if len(v.Members) != len(o.Members) {
			return false
		}
		for i := range v.Members {
			if v.Members[i].Key != o.Members[i].Key {
				return false
			}
			if !v.Members[i].Value.Equal(o.Members[i].Value) {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.Items) != len(o.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(o.Items[i]) {
				return false
			}
		}
		return true
	case KindString:
		return v.Str == o.Str
	case KindNumber:
		return v.Num == o.Num || (math.IsInf(v.Num, 1) && math.IsInf(o.Num, 1)) ||
			(math.IsInf(v.Num, -1) && math.IsInf(o.Num, -1))
	case KindBool:
		return v.Bool == o.Bool
	default:
		return true
	}
}

// Parse decodes a JSON document into a Value, preserving object key
// order. encoding/json's map decoding would lose ordering, so this walks
// the token stream instead.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec)
	if err != nil {
		return Null(), err
	}

	// Reject trailing garbage.
	if _, err := dec.Token(); err != io.EOF {
		return Null(), fmt.Errorf("unexpected data after JSON document")
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Null(), err
	}
	return parseToken(dec, tok)
}

func parseToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		default:
			return Null(), fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return String(t), nil
	case json.Number:
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			// Out-of-range literals (the fuzz pool's 1e999) overflow to
			// +/-Inf; keep the overflow value.
			if errors.Is(err, strconv.ErrRange) {
				return Number(f), nil
			}
			return Null(), fmt.Errorf("invalid number %q: %w", t, err)
		}
		return Number(f), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	default:
		return Null(), fmt.Errorf("unexpected token %v", tok)
	}
}

func parseObject(dec *json.Decoder) (Value, error) {
	obj := Value{Kind: KindObject}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Null(), err
		}
		key, ok := keyTok.(string)
		if !ok {
			return Null(), fmt.Errorf("object key is not a string: %v", keyTok)
		}
		val, err := parseValue(dec)
		if err != nil {
			return Null(), err
		}
		obj.Members = append(obj.Members, Member{Key: key, Value: val})
	}
	// Consume closing '}'.
	if _, err := dec.Token(); err != nil {
		return Null(), err
	}
	return obj, nil
}

func parseArray(dec *json.Decoder) (Value, error) {
	arr := Value{Kind: KindArray, Items: []Value{}}
	for dec.More() {
		val, err := parseValue(dec)
		if err != nil {
			return Null(), err
		}
		arr.Items = append(arr.Items, val)
	}
	// Consume closing ']'.
	if _, err := dec.Token(); err != nil {
		return Null(), err
	}
	return arr, nil
}

// Encode serializes the value as indented JSON, keys in document order.
// Infinities are emitted as the bare literals 1e999 / -1e999 so the fuzz
// pool's boundary values survive serialization; standard parsers read
// them back as +Inf / -Inf overflow values.
func (v Value) Encode() []byte {
	var b bytes.Buffer
	encodeValue(&b, v, 0)
	b.WriteByte('\n')
	return b.Bytes()
}

const indentUnit = "  "

func encodeValue(b *bytes.Buffer, v Value, depth int) {
	switch v.Kind {
	case KindObject:
		if len(v.Members) == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteString("{\n")
		for i, m := range v.Members {
			b.WriteString(strings.Repeat(indentUnit, depth+1))
			key, _ := json.Marshal(m.Key)
			b.Write(key)
			b.WriteString(": ")
			encodeValue(b, m.Value, depth+1)
			if i < len(v.Members)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat(indentUnit, depth))
		b.WriteByte('}')
	case KindArray:
		if len(v.Items) == 0 {
			b.WriteString("[]")
			return
		}
		b.WriteString("[\n")
		for i, item := range v.Items {
			b.WriteString(strings.Repeat(indentUnit, depth+1))
			encodeValue(b, item, depth+1)
			if i < len(v.Items)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat(indentUnit, depth))
		b.WriteByte(']')
	case KindString:
		s, _ := json.Marshal(v.Str)
		b.Write(s)
	case KindNumber:
		b.WriteString(formatNumber(v.Num))
	case KindBool:
		b.WriteString(strconv.FormatBool(v.Bool))
	default:
		b.WriteString("null")
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "1e999"
	case math.IsInf(f, -1):
		return "-1e999"
	case f == math.Trunc(f) && math.Abs(f) <= 1e18:
		return strconv.FormatInt(int64(f), 10)
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}
