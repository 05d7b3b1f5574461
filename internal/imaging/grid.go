package imaging

import (
	"errors"
	"math"
	"math/cmplx"
)

// wStackPlanes is the number of w planes used when w-stacking.
const wStackPlanes = 4

// gridded is one sample placed on the uv grid.
type gridded struct {
	idx    int
	weight float64
	iquv   [NumStokes]complex128
}

type gridder struct {
	n    int
	cell float64
	du   float64
}

func newGridder(n int, cell float64) *gridder {
	return &gridder{n: n, cell: cell, du: 1 / (float64(n) * cell)}
}

// index returns the grid cell of (u, v) with the origin at the centre.
func (g *gridder) index(u, v float64) (int, bool) {
	iu := int(math.Round(u/g.du)) + g.n/2
	iv := int(math.Round(v/g.du)) + g.n/2
	if iu < 0 || iu >= g.n || iv < 0 || iv >= g.n {
		return 0, false
	}
	return iv*g.n + iu, true
}

// invert grids the samples and transforms them to one dirty image per Stokes
// parameter plus the point spread function, all normalised by the gridded
// weight. Each sample is gridded together with its Hermitian conjugate so
// the images are real. Without twoD the samples are stacked into w planes
// and each plane is corrected for its w term before summing.
func invert(samples []stokesSample, n int, cell float64, twoD bool) ([][]float64, []float64, error) {
	g := newGridder(n, cell)

	bins := 1
	var wmax float64
	if !twoD {
		for _, s := range samples {
			wmax = math.Max(wmax, math.Abs(s.w))
		}
		if wmax > 0 {
			bins = wStackPlanes
		}
	}
	binOf := func(w float64) int {
		if bins == 1 {
			return 0
		}
		b := int((w + wmax) / (2 * wmax) * float64(bins))
		return min(max(b, 0), bins-1)
	}
	centre := func(b int) float64 {
		if bins == 1 {
			return 0
		}
		return -wmax + (float64(b)+0.5)*2*wmax/float64(bins)
	}

	stacks := make([][]gridded, bins)
	var sumW float64
	for _, s := range samples {
		if s.weight <= 0 {
			continue
		}
		if idx, ok := g.index(s.u, s.v); ok {
			stacks[binOf(s.w)] = append(stacks[binOf(s.w)], gridded{idx: idx, weight: s.weight, iquv: s.iquv})
			sumW += s.weight
		}
		if idx, ok := g.index(-s.u, -s.v); ok {
			var c [NumStokes]complex128
			for p := range c {
				c[p] = cmplx.Conj(s.iquv[p])
			}
			stacks[binOf(-s.w)] = append(stacks[binOf(-s.w)], gridded{idx: idx, weight: s.weight, iquv: c})
			sumW += s.weight
		}
	}
	if sumW == 0 {
		return nil, nil, errors.New("no samples fall on the uv grid")
	}

	acc := make([][]complex128, NumStokes+1)
	for p := range acc {
		acc[p] = make([]complex128, n*n)
	}
	grids := make([][]complex128, NumStokes+1)
	for p := range grids {
		grids[p] = make([]complex128, n*n)
	}

	for b, stack := range stacks {
		if len(stack) == 0 {
			continue
		}
		for p := range grids {
			clear(grids[p])
		}
		for _, s := range stack {
			for p := 0; p < NumStokes; p++ {
				grids[p][s.idx] += complex(s.weight, 0) * s.iquv[p]
			}
			grids[NumStokes][s.idx] += complex(s.weight, 0)
		}
		var screen []complex128
		if wc := centre(b); wc != 0 {
			screen = g.wScreen(wc)
		}
		for p := range grids {
			if err := toImage(grids[p], n); err != nil {
				return nil, nil, err
			}
			for i, v := range grids[p] {
				if screen != nil {
					v *= screen[i]
				}
				acc[p][i] += v
			}
		}
	}

	dirty := make([][]float64, NumStokes)
	for p := range dirty {
		dirty[p] = make([]float64, n*n)
		for i, v := range acc[p] {
			dirty[p][i] = real(v) / sumW
		}
	}
	psf := make([]float64, n*n)
	for i, v := range acc[NumStokes] {
		psf[i] = real(v) / sumW
	}
	return dirty, psf, nil
}

// wScreen returns exp(2πi·w·(n-1)) over the image plane.
func (g *gridder) wScreen(w float64) []complex128 {
	screen := make([]complex128, g.n*g.n)
	for y := 0; y < g.n; y++ {
		m := float64(y-g.n/2) * g.cell
		for x := 0; x < g.n; x++ {
			l := float64(x-g.n/2) * g.cell
			r2 := l*l + m*m
			if r2 >= 1 {
				continue
			}
			screen[y*g.n+x] = cmplx.Rect(1, 2*math.Pi*w*(math.Sqrt(1-r2)-1))
		}
	}
	return screen
}
