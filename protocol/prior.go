package protocol

// BuildActionPrior scores each action of a field's action space by how
// promising its mutation kind is for that kind of field, before any learning
// has happened. Flag fields lean toward invalid-flag injection, numeric
// fields toward boundary-value semantics, and length-bearing headers toward
// truncation and padding.
func BuildActionPrior(f FieldSpec) []float64 {
	prior := make([]float64, f.ActionDim)
	for i := range prior {
		kind, err := KindForAction(i, f.ActionDim)
		if err != nil {
			continue
		}
		score := 0.0
		switch kind {
		case KindFieldFlip:
			score += 0.5
		case KindFieldTruncate, KindFieldPad:
			score += 1.0
			if f.IsNumeric {
				score += 1.5
			}
		case KindInvalidFlag:
			if f.IsFlag {
				score += 4.0
			}
		case KindSemantic:
			if f.IsNumeric {
				score += 3.0
			}
		case KindFieldDelete:
			score += 0.5
		}
		prior[i] = score
	}
	return prior
}
