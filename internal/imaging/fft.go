package imaging

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

// fft2 transforms an n×n row-major grid in place, rows then columns.
// inverse selects the positive exponent; no 1/N scaling is applied.
func fft2(grid []complex128, n int, inverse bool) error {
	if n <= 1 || n&(n-1) != 0 || len(grid) != n*n {
		return fmt.Errorf("fft needs a square power-of-two grid, got %d values for side %d", len(grid), n)
	}
	t := fourier.NewCmplxFFT(n)
	apply := t.Coefficients
	if inverse {
		apply = t.Sequence
	}
	for y := 0; y < n; y++ {
		row := grid[y*n : (y+1)*n]
		apply(row, row)
	}
	col := make([]complex128, n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			col[y] = grid[y*n+x]
		}
		apply(col, col)
		for y := 0; y < n; y++ {
			grid[y*n+x] = col[y]
		}
	}
	return nil
}

// shift swaps quadrants so the zero frequency moves between the corner and
// the centre. For even n it is its own inverse.
func shift(grid []complex128, n int) {
	h := n / 2
	for y := 0; y < h; y++ {
		for x := 0; x < n; x++ {
			x2 := (x + h) % n
			i, j := y*n+x, (y+h)*n+x2
			grid[i], grid[j] = grid[j], grid[i]
		}
	}
}

// toImage turns a centred uv grid into a centred image plane.
func toImage(grid []complex128, n int) error {
	shift(grid, n)
	if err := fft2(grid, n, true); err != nil {
		return err
	}
	shift(grid, n)
	return nil
}
