// Package fourvec implements relativistic four-momentum arithmetic in the
// (px, py, pz, E) representation. Vectors are plain values; all operations
// return new vectors and never mutate their receivers.
package fourvec

import "math"

// Vec is a four-momentum in Cartesian components, in GeV.
type Vec struct {
	Px float64
	Py float64
	Pz float64
	E  float64
}

// PtEtaPhiM builds a four-momentum from transverse momentum, pseudorapidity,
// azimuthal angle, and rest mass. pt must be the momentum magnitude (callers
// strip any charge sign before constructing).
func PtEtaPhiM(pt, eta, phi, m float64) Vec {
	px := pt * math.Cos(phi)
	py := pt * math.Sin(phi)
	pz := pt * math.Sinh(eta)
	p2 := px*px + py*py + pz*pz
	return Vec{
		Px: px,
		Py: py,
		Pz: pz,
		E:  math.Sqrt(p2 + m*m),
	}
}

// Add returns the component-wise vector sum v + u.
func (v Vec) Add(u Vec) Vec {
	return Vec{
		Px: v.Px + u.Px,
		Py: v.Py + u.Py,
		Pz: v.Pz + u.Pz,
		E:  v.E + u.E,
	}
}

// Pt returns the transverse momentum magnitude.
func (v Vec) Pt() float64 {
	return math.Hypot(v.Px, v.Py)
}

// P returns the total momentum magnitude.
func (v Vec) P() float64 {
	return math.Sqrt(v.Px*v.Px + v.Py*v.Py + v.Pz*v.Pz)
}

// M returns the invariant mass. Small negative mass-squared values from
// floating point cancellation are clamped to zero.
func (v Vec) M() float64 {
	m2 := v.E*v.E - (v.Px*v.Px + v.Py*v.Py + v.Pz*v.Pz)
	if m2 < 0 {
		return 0
	}
	return math.Sqrt(m2)
}

// Eta returns the pseudorapidity. For a vector with zero transverse
// momentum the result is +/-Inf matching the sign of pz.
func (v Vec) Eta() float64 {
	pt := v.Pt()
	if pt == 0 {
		if v.Pz == 0 {
			return 0
		}
		return math.Copysign(math.Inf(1), v.Pz)
	}
	return math.Asinh(v.Pz / pt)
}

// Phi returns the azimuthal angle in (-pi, pi].
func (v Vec) Phi() float64 {
	return math.Atan2(v.Py, v.Px)
}
