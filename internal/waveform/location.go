package waveform

import "math"

const epsilon = 1e-6

func guard(v float64) float64 {
	if v < epsilon {
		return epsilon
	}
	return v
}

// point3 is a cartesian triple; kept unexported since it never crosses a
// package boundary.
type point3 struct{ x, y, z float64 }

func (p point3) sub(o point3) point3 { return point3{p.x - o.x, p.y - o.y, p.z - o.z} }
func (p point3) norm() float64       { return math.Sqrt(p.x*p.x + p.y*p.y + p.z*p.z) }
func (p point3) scaled(s float64) point3 {
	if s == 0 {
		s = epsilon
	}
	return point3{p.x / s, p.y / s, p.z / s}
}
func (p point3) dot(o point3) float64 { return p.x*o.x + p.y*o.y + p.z*o.z }

// locationModel places N points on a unit-radius helix with num_turns =
// N/3 and reports, for each index, the distance to a notional observer and
// the dot product of the unit vectors from the origin to the point and to
// the observer, per spec.md §4.1.
func locationModel(n int, locationDegree, locationHeight float64) (distances, dots []float64) {
	if n <= 0 {
		return nil, nil
	}
	numTurns := float64(n) / 3.0
	obs := point3{
		x: math.Cos(2 * math.Pi * locationDegree),
		y: math.Sin(2 * math.Pi * locationDegree),
		z: 10 * locationHeight,
	}
	obsUnit := obs.scaled(guard(obs.norm()))

	distances = make([]float64, n)
	dots = make([]float64, n)
	for i := 0; i < n; i++ {
		frac := float64(i) / float64(n)
		theta := frac * numTurns * 2 * math.Pi
		z := frac * numTurns
		p := point3{x: math.Cos(theta), y: math.Sin(theta), z: z}
		distances[i] = p.sub(obs).norm()
		dots[i] = p.scaled(guard(p.norm())).dot(obsUnit)
	}
	return distances, dots
}
