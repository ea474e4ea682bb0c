package main

/* This file is the external physics layer of the demo driver: SPH kernels
for a Sedov-style blast, passed to the core as plain function values. The
decomposition core never inspects them; it only guarantees each one a valid
neighbor set when it asks for one. */

import (
	"math"

	"github.com/phil-mansfield/sphpart"
	"github.com/phil-mansfield/sphpart/sph"

	"gonum.org/v1/gonum/spatial/r3"
)

// Params collects the physics constants of a run. They are passed into each
// kernel explicitly rather than living as package globals, so the physics
// layer and the decomposition core share no ambient state.
type Params struct {
	Dt    float64
	Gamma float64
	// Alpha and Beta are the artificial viscosity coefficients.
	Alpha, Beta float64
}

// w evaluates the cubic spline kernel with support radius h, so the
// neighbor sets the core hands out (everything within the smoothing
// length) cover the kernel's support exactly.
func w(r, h float64) float64 {
	q := 2 * r / h
	sigma := 8 / (math.Pi * h * h * h)
	switch {
	case q < 1:
		return sigma * (1 - 1.5*q*q + 0.75*q*q*q)
	case q < 2:
		d := 2 - q
		return sigma * 0.25 * d * d * d
	}
	return 0
}

// gradW returns the gradient of w at separation rij = xi - xj.
func gradW(rij r3.Vec, h float64) r3.Vec {
	r := r3.Norm(rij)
	if r == 0 {
		return r3.Vec{}
	}
	q := 2 * r / h
	sigma := 8 / (math.Pi * h * h * h)
	dw := 0.0
	switch {
	case q < 1:
		dw = sigma * (-3*q + 2.25*q*q)
	case q < 2:
		d := 2 - q
		dw = -sigma * 0.75 * d * d
	}
	// dq/dr = 2/h
	return r3.Scale(dw*2/(h*r), rij)
}

// Density sums neighbor masses through the kernel.
func Density(p Params) sph.NeighborKernel {
	return func(b *sphpart.Body, neighbors []*sphpart.Body) error {
		rho := 0.0
		for _, n := range neighbors {
			rho += n.Mass * w(r3.Norm(r3.Sub(b.X, n.X)), b.H)
		}
		b.Density = rho
		return nil
	}
}

// Pressure applies the ideal gas equation of state.
func Pressure(p Params) sph.Kernel {
	return func(b *sphpart.Body) error {
		b.Pressure = (p.Gamma - 1) * b.Density * b.U
		return nil
	}
}

// SoundSpeed derives the adiabatic sound speed from the EOS state.
func SoundSpeed(p Params) sph.Kernel {
	return func(b *sphpart.Body) error {
		if b.Density > 0 {
			b.SoundSpeed = math.Sqrt(p.Gamma * b.Pressure / b.Density)
		}
		return nil
	}
}

// viscosity is the Monaghan artificial viscosity term for the pair (b, n).
func viscosity(p Params, b, n *sphpart.Body, rij, vij r3.Vec) float64 {
	dot := vij.X*rij.X + vij.Y*rij.Y + vij.Z*rij.Z
	if dot >= 0 {
		return 0
	}
	h := 0.5 * (b.H + n.H)
	rho := 0.5 * (b.Density + n.Density)
	c := 0.5 * (b.SoundSpeed + n.SoundSpeed)
	r2 := rij.X*rij.X + rij.Y*rij.Y + rij.Z*rij.Z
	mu := h * dot / (r2 + 0.01*h*h)
	return (-p.Alpha*c*mu + p.Beta*mu*mu) / rho
}

// Acceleration evaluates the SPH momentum equation with artificial
// viscosity.
func Acceleration(p Params) sph.NeighborKernel {
	return func(b *sphpart.Body, neighbors []*sphpart.Body) error {
		a := r3.Vec{}
		if b.Density == 0 {
			b.A = a
			return nil
		}
		for _, n := range neighbors {
			if n.ID == b.ID || n.Density == 0 {
				continue
			}
			rij := r3.Sub(b.X, n.X)
			vij := r3.Sub(b.V, n.V)
			pi := viscosity(p, b, n, rij, vij)
			term := b.Pressure/(b.Density*b.Density) +
				n.Pressure/(n.Density*n.Density) + pi
			a = r3.Sub(a, r3.Scale(n.Mass*term, gradW(rij, b.H)))
		}
		b.A = a
		return nil
	}
}

// EnergyRate evaluates du/dt from the pairwise compression work.
func EnergyRate(p Params) sph.NeighborKernel {
	return func(b *sphpart.Body, neighbors []*sphpart.Body) error {
		du := 0.0
		if b.Density == 0 {
			b.DUDt = 0
			return nil
		}
		for _, n := range neighbors {
			if n.ID == b.ID {
				continue
			}
			rij := r3.Sub(b.X, n.X)
			vij := r3.Sub(b.V, n.V)
			g := gradW(rij, b.H)
			dot := vij.X*g.X + vij.Y*g.Y + vij.Z*g.Z
			pi := viscosity(p, b, n, rij, vij)
			du += n.Mass * (b.Pressure/(b.Density*b.Density) + 0.5*pi) * dot
		}
		b.DUDt = du
		return nil
	}
}

// LeapfrogKick advances velocity and internal energy by half a step.
func LeapfrogKick(p Params) sph.Kernel {
	return func(b *sphpart.Body) error {
		b.V = r3.Add(b.V, r3.Scale(0.5*p.Dt, b.A))
		b.U += 0.5 * p.Dt * b.DUDt
		return nil
	}
}

// LeapfrogDrift advances positions by a full step using the half-stepped
// velocities. Bodies move here and nowhere else, so UpdateIteration is due
// right after.
func LeapfrogDrift(p Params) sph.Kernel {
	return func(b *sphpart.Body) error {
		b.X = r3.Add(b.X, r3.Scale(p.Dt, b.V))
		return nil
	}
}
