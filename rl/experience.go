package rl

// Experience is one recorded environment transition for a protocol.
// The global vectors are concatenations of the per-field entries in the
// owning AgentArray's agent order. Records are read-only after creation;
// the only sanctioned mutation is the Weight annotation written by a
// prioritized sampler.
type Experience struct {
	Observations          map[string]Vector
	Actions               map[string]int
	Reward                float64
	NextObservations      map[string]Vector
	GlobalObservation     Vector
	GlobalNextObservation Vector
	GlobalActions         Vector
	Done                  bool

	// Weight is the importance-sampling correction attached at sample time.
	// Zero means the record has never been sampled; treat it as 1.
	Weight float64
}

// SampleWeight returns the importance weight, defaulting to 1 for records
// that were never annotated.
func (e *Experience) SampleWeight() float64 {
	if e.Weight == 0 {
		return 1.0
	}
	return e.Weight
}
