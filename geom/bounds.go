/*package geom contains the axis-aligned bounding boxes used to describe
rank domains, tree cells and ghost-exchange request regions.*/
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Bounds is an axis-aligned box. Both faces are inclusive: a degenerate
// Bounds whose Min and Max coincide is a valid box containing one point.
type Bounds struct {
	Min, Max r3.Vec
}

// NewBounds returns the tightest Bounds containing every point in pts. The
// second return value is false if pts is empty.
func NewBounds(pts []r3.Vec) (Bounds, bool) {
	if len(pts) == 0 {
		return Bounds{}, false
	}

	b := Bounds{pts[0], pts[0]}
	for _, p := range pts[1:] {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Min.Z = math.Min(b.Min.Z, p.Z)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
		b.Max.Z = math.Max(b.Max.Z, p.Z)
	}
	return b, true
}

// Contains returns true if p lies inside b.
func (b Bounds) Contains(p r3.Vec) bool {
	return b.Min.X <= p.X && p.X <= b.Max.X &&
		b.Min.Y <= p.Y && p.Y <= b.Max.Y &&
		b.Min.Z <= p.Z && p.Z <= b.Max.Z
}

// Intersects returns true if the two boxes overlap.
func (b Bounds) Intersects(o Bounds) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X &&
		b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y &&
		b.Min.Z <= o.Max.Z && o.Min.Z <= b.Max.Z
}

// IntersectsSphere returns true if the sphere at c with radius r overlaps b.
func (b Bounds) IntersectsSphere(c r3.Vec, r float64) bool {
	d2 := 0.0
	d2 += axisDist2(c.X, b.Min.X, b.Max.X)
	d2 += axisDist2(c.Y, b.Min.Y, b.Max.Y)
	d2 += axisDist2(c.Z, b.Min.Z, b.Max.Z)
	return d2 <= r*r
}

func axisDist2(x, lo, hi float64) float64 {
	if x < lo {
		return (lo - x) * (lo - x)
	} else if x > hi {
		return (x - hi) * (x - hi)
	}
	return 0
}

// Union returns the smallest Bounds containing both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		Min: r3.Vec{
			X: math.Min(b.Min.X, o.Min.X),
			Y: math.Min(b.Min.Y, o.Min.Y),
			Z: math.Min(b.Min.Z, o.Min.Z),
		},
		Max: r3.Vec{
			X: math.Max(b.Max.X, o.Max.X),
			Y: math.Max(b.Max.Y, o.Max.Y),
			Z: math.Max(b.Max.Z, o.Max.Z),
		},
	}
}

// Inflate grows b by d on every face. Negative d shrinks the box.
func (b Bounds) Inflate(d float64) Bounds {
	dv := r3.Vec{X: d, Y: d, Z: d}
	return Bounds{Min: r3.Sub(b.Min, dv), Max: r3.Add(b.Max, dv)}
}

// Center returns the midpoint of b.
func (b Bounds) Center() r3.Vec {
	return r3.Scale(0.5, r3.Add(b.Min, b.Max))
}

// Span returns the edge lengths of b.
func (b Bounds) Span() r3.Vec {
	return r3.Sub(b.Max, b.Min)
}

// Octant returns the i'th of the eight equal sub-boxes of b, with bit 0 of
// i selecting the upper half in x, bit 1 in y and bit 2 in z. This matches
// the bit layout of key.Key octant digits.
func (b Bounds) Octant(i int) Bounds {
	c := b.Center()
	o := b
	if i&1 == 0 {
		o.Max.X = c.X
	} else {
		o.Min.X = c.X
	}
	if i&2 == 0 {
		o.Max.Y = c.Y
	} else {
		o.Min.Y = c.Y
	}
	if i&4 == 0 {
		o.Max.Z = c.Z
	} else {
		o.Min.Z = c.Z
	}
	return o
}
