package analyzer

import (
	"bytes"

	"github.com/glaslos/tlsh"
)

// tlshMinSize is the minimum body size TLSH needs for a meaningful hash.
const tlshMinSize = 50

// Drift is the result of comparing one response body against the
// baseline.
type Drift struct {
	// SimHashDistance is the Hamming distance between token simhashes
	// (0 = structurally identical tokens, 64 = unrelated).
	SimHashDistance int
	// TLSHDistance is the byte-level TLSH distance; -1 when either body
	// was too small for TLSH.
	TLSHDistance int
	// Identical means the bodies are byte-for-byte equal.
	Identical bool
}

// Similar reports whether the body is close enough to the baseline to
// be considered the same response shape.
func (d Drift) Similar(simHashThreshold int) bool {
	return d.Identical || d.SimHashDistance <= simHashThreshold
}

// Analyzer compares response bodies against a batch baseline. The zero
// value has no baseline; Compare reports full drift until one is set.
type Analyzer struct {
	baselineBody []byte
	baselineSim  SimHash
	baselineTLSH *tlsh.TLSH
}

// New creates an analyzer with no baseline.
func New() *Analyzer {
	return &Analyzer{}
}

// HasBaseline reports whether a baseline has been captured.
func (a *Analyzer) HasBaseline() bool {
	return a.baselineBody != nil
}

// SetBaseline captures the reference body, typically the first ok
// outcome of a batch.
func (a *Analyzer) SetBaseline(body []byte) {
	a.baselineBody = append([]byte(nil), body...)
	a.baselineSim = ComputeSimHash(body)

	a.baselineTLSH = nil
	if len(body) >= tlshMinSize {
		if h, err := tlsh.HashBytes(body); err == nil {
			a.baselineTLSH = h
		}
	}
}

// Compare scores body against the baseline.
func (a *Analyzer) Compare(body []byte) Drift {
	d := Drift{
		SimHashDistance: a.baselineSim.Distance(ComputeSimHash(body)),
		TLSHDistance:    -1,
		Identical:       a.baselineBody != nil && bytes.Equal(a.baselineBody, body),
	}

	if a.baselineTLSH != nil && len(body) >= tlshMinSize {
		if h, err := tlsh.HashBytes(body); err == nil {
			d.TLSHDistance = a.baselineTLSH.Diff(h)
		}
	}
	return d
}
