package geom

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func randVec(gen *rand.Rand, lo, hi float64) r3.Vec {
	return r3.Vec{
		X: lo + (hi-lo)*gen.Float64(),
		Y: lo + (hi-lo)*gen.Float64(),
		Z: lo + (hi-lo)*gen.Float64(),
	}
}

func TestNewBounds(t *testing.T) {
	gen := rand.New(rand.NewSource(42))

	pts := make([]r3.Vec, 100)
	for i := range pts {
		pts[i] = randVec(gen, -3, 5)
	}
	b, ok := NewBounds(pts)
	if !ok {
		t.Fatalf("NewBounds(100 points) not ok")
	}
	for i, p := range pts {
		if !b.Contains(p) {
			t.Errorf("point %d: %v not in its own bounds %v", i, p, b)
		}
	}

	if _, ok := NewBounds(nil); ok {
		t.Errorf("NewBounds(nil) ok = true")
	}

	// A single point gives a valid degenerate box.
	b, ok = NewBounds(pts[:1])
	if !ok || !b.Contains(pts[0]) {
		t.Errorf("degenerate bounds %v does not contain its point", b)
	}
}

func TestIntersects(t *testing.T) {
	unit := Bounds{r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}}
	tests := []struct {
		b   Bounds
		res bool
	}{
		{unit, true},
		{unit.Inflate(1), true},
		{unit.Inflate(-0.4), true},
		{Bounds{r3.Vec{X: 2, Y: 0, Z: 0}, r3.Vec{X: 3, Y: 1, Z: 1}}, false},
		// Face contact counts as overlap.
		{Bounds{r3.Vec{X: 1, Y: 0, Z: 0}, r3.Vec{X: 2, Y: 1, Z: 1}}, true},
		{Bounds{r3.Vec{X: 2, Y: 2, Z: 2}, r3.Vec{X: 3, Y: 3, Z: 3}}, false},
	}
	for i, test := range tests {
		if got := unit.Intersects(test.b); got != test.res {
			t.Errorf("%d) unit.Intersects(%v) = %v", i, test.b, got)
		}
		if got := test.b.Intersects(unit); got != test.res {
			t.Errorf("%d) %v.Intersects(unit) = %v", i, test.b, got)
		}
	}
}

func TestIntersectsSphere(t *testing.T) {
	unit := Bounds{r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}}
	tests := []struct {
		c   r3.Vec
		r   float64
		res bool
	}{
		{r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, 0.1, true},
		{r3.Vec{X: 2, Y: 0.5, Z: 0.5}, 0.5, false},
		{r3.Vec{X: 2, Y: 0.5, Z: 0.5}, 1.0, true},
		// Sphere near a corner: the box corner is sqrt(3*0.25) away from
		// (1.5, 1.5, 1.5), so r = 0.8 misses and r = 0.9 hits.
		{r3.Vec{X: 1.5, Y: 1.5, Z: 1.5}, 0.8, false},
		{r3.Vec{X: 1.5, Y: 1.5, Z: 1.5}, 0.9, true},
	}
	for i, test := range tests {
		if got := unit.IntersectsSphere(test.c, test.r); got != test.res {
			t.Errorf("%d) IntersectsSphere(%v, %g) = %v",
				i, test.c, test.r, got)
		}
	}
}

func TestOctant(t *testing.T) {
	b := Bounds{r3.Vec{}, r3.Vec{X: 2, Y: 2, Z: 2}}
	gen := rand.New(rand.NewSource(7))

	for trial := 0; trial < 100; trial++ {
		p := randVec(gen, 0, 2)
		n := 0
		for i := 0; i < 8; i++ {
			if b.Octant(i).Contains(p) {
				n++
			}
		}
		// Interior points away from the split planes lie in exactly one
		// octant; points on a plane may lie in more, but never zero.
		if n == 0 {
			t.Errorf("%v in no octant of %v", p, b)
		}
	}

	// Octant index bits select the upper halves in x, y, z order.
	o := b.Octant(5)
	want := Bounds{r3.Vec{X: 1, Y: 0, Z: 1}, r3.Vec{X: 2, Y: 1, Z: 2}}
	if o != want {
		t.Errorf("Octant(5) = %v, want %v", o, want)
	}
}

func TestUnionInflate(t *testing.T) {
	a := Bounds{r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}}
	b := Bounds{r3.Vec{X: -1, Y: 2, Z: 0}, r3.Vec{X: 0, Y: 3, Z: 4}}
	u := a.Union(b)
	want := Bounds{r3.Vec{X: -1, Y: 0, Z: 0}, r3.Vec{X: 1, Y: 3, Z: 4}}
	if u != want {
		t.Errorf("Union = %v, want %v", u, want)
	}

	in := a.Inflate(0.5)
	want = Bounds{
		r3.Vec{X: -0.5, Y: -0.5, Z: -0.5},
		r3.Vec{X: 1.5, Y: 1.5, Z: 1.5},
	}
	if in != want {
		t.Errorf("Inflate = %v, want %v", in, want)
	}
}
