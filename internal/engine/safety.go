package engine

import "math"

// smooth applies exponential smoothing and integer rounding, the first
// stage of the safety pipeline (spec.md §4.5): v_i <- round(prev_i +
// alpha*(raw_i - prev_i)).
func smooth(raw []float64, prev []int, alpha float64) []int {
	out := make([]int, len(raw))
	for i, r := range raw {
		out[i] = int(math.Round(float64(prev[i]) + alpha*(r-float64(prev[i]))))
	}
	return out
}

// clampAbsolute enforces 0 <= v_i <= limitAbsolute in place, reporting
// whether any element was clamped.
func clampAbsolute(v []int, limitAbsolute int) bool {
	triggered := false
	for i := range v {
		if v[i] > limitAbsolute {
			v[i] = limitAbsolute
			triggered = true
		} else if v[i] < 0 {
			v[i] = 0
			triggered = true
		}
	}
	return triggered
}

// relationalBound implements b(a,c) = 1/2*(sqrt(4c^2 - 3a^2) - a) from
// spec.md's Relational limit definition, guarding the radicand against
// going negative.
func relationalBound(a, c float64) float64 {
	radicand := 4*c*c - 3*a*a
	if radicand < 0 {
		radicand = 0
	}
	return 0.5 * (math.Sqrt(radicand) - a)
}

// clampRelational enforces the neighbour-triple bound over a single pass
// against a snapshot of the pre-relational values, per spec.md's "do not
// read freshly written v_{i-1}" instruction.
func clampRelational(v []int, limitRelational int) bool {
	if len(v) < 3 {
		return false
	}
	snapshot := make([]int, len(v))
	copy(snapshot, v)
	c := float64(limitRelational)
	triggered := false
	for i := 1; i < len(v)-1; i++ {
		a1 := float64(snapshot[i-1])
		a2 := float64(snapshot[i+1])
		vi := float64(snapshot[i])
		b1 := relationalBound(a1, c)
		b2 := relationalBound(a2, c)
		if b1-vi < 0 || b2-vi < 0 {
			v[i] = int(math.Round(0.5 * math.Min(b1+vi, b2+vi)))
			triggered = true
		}
	}
	return triggered
}

// clampSpeed limits each step to limitSpeed/rateFPS and rounds the clamped
// step to the nearest integer, so |v_i - prev_i| <= ceil(limitSpeed/rateFPS).
func clampSpeed(v []int, prev []int, limitSpeed, rateFPS int) bool {
	if rateFPS <= 0 {
		return false
	}
	deltaMax := float64(limitSpeed) / float64(rateFPS)
	triggered := false
	for i := range v {
		diff := float64(v[i] - prev[i])
		clamped := diff
		if clamped > deltaMax {
			clamped = deltaMax
		} else if clamped < -deltaMax {
			clamped = -deltaMax
		}
		if clamped != diff {
			triggered = true
		}
		v[i] = prev[i] + int(math.Round(clamped))
	}
	return triggered
}

// tags holds which of the three safety limits triggered during a frame.
type tags struct {
	absolute, relational, speed bool
}

// String renders the [ABS][REL][SPE] tag mask of spec.md §4.5/§7, empty if
// nothing triggered.
func (t tags) String() string {
	s := ""
	if t.absolute {
		s += "[ABS]"
	}
	if t.relational {
		s += "[REL]"
	}
	if t.speed {
		s += "[SPE]"
	}
	return s
}

func (t tags) any() bool { return t.absolute || t.relational || t.speed }

// applySafety runs the full three-stage pipeline over raw, given the
// previous frame and configured limits, returning the filtered integer
// frame and which limits triggered.
func applySafety(raw []float64, prev []int, alpha float64, limitAbsolute, limitRelational, limitSpeed, rateFPS int) ([]int, tags) {
	v := smooth(raw, prev, alpha)
	var t tags
	t.absolute = clampAbsolute(v, limitAbsolute)
	t.relational = clampRelational(v, limitRelational)
	t.speed = clampSpeed(v, prev, limitSpeed, rateFPS)
	return v, t
}
