package knowledge

import "sync/atomic"

// Metrics counts how often the search path degraded and why. The
// external contract is uniformly "empty result"; these counters keep
// the degraded branches distinguishable for operators.
//
// Metrics is safe for concurrent use. A nil *Metrics is valid and
// counts nothing.
type Metrics struct {
	searches             atomic.Int64
	embeddingUnavailable atomic.Int64
	ladderExhausted      atomic.Int64
	storeErrors          atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Searches             int64
	EmbeddingUnavailable int64
	LadderExhausted      int64
	StoreErrors          int64
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Searches:             m.searches.Load(),
		EmbeddingUnavailable: m.embeddingUnavailable.Load(),
		LadderExhausted:      m.ladderExhausted.Load(),
		StoreErrors:          m.storeErrors.Load(),
	}
}

func (m *Metrics) incSearches() {
	if m != nil {
		m.searches.Add(1)
	}
}

func (m *Metrics) incEmbeddingUnavailable() {
	if m != nil {
		m.embeddingUnavailable.Add(1)
	}
}

func (m *Metrics) incLadderExhausted() {
	if m != nil {
		m.ladderExhausted.Add(1)
	}
}

func (m *Metrics) incStoreErrors() {
	if m != nil {
		m.storeErrors.Add(1)
	}
}
