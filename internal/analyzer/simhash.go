// Package analyzer scores how far a response body has drifted from a
// batch baseline. Drift is informational: adversarial presets that
// return a body identical to the happy-path baseline are worth a second
// look, and so are happy-path presets that suddenly diverge.
package analyzer

import (
	"hash/fnv"
	"math/bits"
	"strings"
	"unicode"
)

// simHashBits is the width of the token simhash.
const simHashBits = 64

// SimHash is a locality-sensitive hash over response tokens: near
// documents produce near hashes, measured in Hamming distance.
type SimHash uint64

// ComputeSimHash tokenizes the body and folds token hashes into a
// 64-bit signature.
func ComputeSimHash(body []byte) SimHash {
	tokens := tokenize(string(body))
	if len(tokens) == 0 {
		return 0
	}

	var counts [simHashBits]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		v := h.Sum64()
		for bit := 0; bit < simHashBits; bit++ {
			if v&(1<<uint(bit)) != 0 {
				counts[bit]++
			} else {
				counts[bit]--
			}
		}
	}

	var out uint64
	for bit := 0; bit < simHashBits; bit++ {
		if counts[bit] > 0 {
			out |= 1 << uint(bit)
		}
	}
	return SimHash(out)
}

// Distance returns the Hamming distance between two signatures (0-64).
func (s SimHash) Distance(o SimHash) int {
	return bits.OnesCount64(uint64(s ^ o))
}

// tokenize splits on non-alphanumeric runes, lowercases, and drops pure
// numbers so ids and timestamps do not dominate the signature.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if isNumeric(f) {
			continue
		}
		out = append(out, strings.ToLower(f))
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
