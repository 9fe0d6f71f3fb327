package payload

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"strings"
)

// Strategy names a structural mutation applied to a reference payload.
// Every strategy preserves object shape: keys are never added or removed,
// only leaf values change.
type Strategy string

const (
	// StrategyNoData empties every leaf: arrays -> [], strings -> "",
	// numbers -> -1, anything else -> null.
	StrategyNoData Strategy = "no_data"
	// StrategyInvalid substitutes sentinel invalid values: arrays ->
	// ["INVALID"], strings -> "INVALID", numbers -> -999, anything else
	// -> "INVALID".
	StrategyInvalid Strategy = "invalid"
	// StrategyWrongType swaps every leaf to a different JSON type.
	StrategyWrongType Strategy = "wrong_type"
	// StrategyFuzz substitutes leaves with adversarial values drawn from
	// fixed pools.
	StrategyFuzz Strategy = "fuzz"
)

// Strategies lists all strategies in generation order.
var Strategies = []Strategy{StrategyNoData, StrategyInvalid, StrategyWrongType, StrategyFuzz}

// Description returns a short human-readable summary of the strategy.
func (s Strategy) Description() string {
	switch s {
	case StrategyNoData:
		return "empty every leaf value"
	case StrategyInvalid:
		return "substitute sentinel invalid values"
	case StrategyWrongType:
		return "swap every leaf to a different JSON type"
	case StrategyFuzz:
		return "substitute adversarial values from fixed pools"
	default:
		return "unknown strategy"
	}
}

// Apply runs the strategy against v and returns the mutated value. All
// strategies are total: no input shape produces an error.
func (s Strategy) Apply(v Value) Value {
	switch s {
	case StrategyNoData:
		return NoData(v)
	case StrategyInvalid:
		return Invalid(v)
	case StrategyWrongType:
		return WrongType(v)
	case StrategyFuzz:
		return Fuzz(v)
	default:
		return Null()
	}
}

// Fixed adversarial pools. Tests assert membership, not exact picks.
var (
	// FuzzStrings holds the adversarial string pool: oversized input,
	// script injection, SQL injection, control bytes, non-ASCII.
	FuzzStrings = []string{
		strings.Repeat("A", 5000),
		"<script>alert(1)</script>",
		"' OR 1=1 --",
		"\x00\x01\x02",
		"漢字🚀",
	}

	// FuzzNumbers holds the adversarial numeric pool.
	FuzzNumbers = []float64{
		0,
		-1,
		999999999999999999,
		math.Inf(1),
		math.Inf(-1),
	}
)

// FuzzBoolLiteral replaces every boolean leaf under the fuzz strategy.
const FuzzBoolLiteral = "TRUEEEEE"

// NoData returns a same-shaped value with every leaf emptied.
func NoData(v Value) Value {
	switch v.Kind {
	case KindObject:
		return mapMembers(v, NoData)
	case KindArray:
		return Array()
	case KindString:
		return String("")
	case KindNumber, KindBool:
		// Booleans take the numeric mutation here, matching the
		// reference behavior where bool is a numeric subtype.
		return Number(-1)
	default:
		return Null()
	}
}

// Invalid returns a same-shaped value with every leaf replaced by a
// sentinel invalid value.
func Invalid(v Value) Value {
	switch v.Kind {
	case KindObject:
		return mapMembers(v, Invalid)
	case KindArray:
		return Array(String("INVALID"))
	case KindString:
		return String("INVALID")
	case KindNumber, KindBool:
		return Number(-999)
	default:
		return String("INVALID")
	}
}

// WrongType returns a same-shaped value with every leaf swapped to a
// different JSON type. Booleans are matched before numbers so they get
// their own mutation ("true" as a string) rather than the numeric one.
func WrongType(v Value) Value {
	switch v.Kind {
	case KindObject:
		return mapMembers(v, WrongType)
	case KindArray:
		return String("WRONG_TYPE")
	case KindBool:
		return String("true")
	case KindString:
		return Number(12345)
	case KindNumber:
		return String("NOT_A_NUMBER")
	default:
		return Null()
	}
}

// Fuzz returns a same-shaped value with every leaf drawn from the fixed
// adversarial pools. Arrays recurse into their first element only,
// wrapped as a single-element array; an empty array becomes [null].
func Fuzz(v Value) Value {
	switch v.Kind {
	case KindObject:
		return mapMembers(v, Fuzz)
	case KindArray:
		if len(v.Items) == 0 {
			return Array(Null())
		}
		return Array(Fuzz(v.Items[0]))
	case KindBool:
		return String(FuzzBoolLiteral)
	case KindString:
		return String(FuzzStrings[secureRandomInt(len(FuzzStrings))])
	case KindNumber:
		return Number(FuzzNumbers[secureRandomInt(len(FuzzNumbers))])
	default:
		return Null()
	}
}

func mapMembers(v Value, f func(Value) Value) Value {
	out := Value{Kind: KindObject, Members: make([]Member, len(v.Members))}
	for i, m := range v.Members {
		out.Members[i] = Member{Key: m.Key, Value: f(m.Value)}
	}
	return out
}

// secureRandomInt generates a cryptographically secure random number in [0, max).
func secureRandomInt(max int) int {
	if max <= 0 {
		return 0
	}

	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}

	n := binary.BigEndian.Uint64(b[:])
	return int(n % uint64(max))
}
