package imaging

import "math"

// fwhmToSigma converts a Gaussian full width at half maximum to its standard
// deviation.
const fwhmToSigma = 2.35482004503

// CleanParams controls the Hogbom deconvolution.
type CleanParams struct {
	Iterations int
	Gain       float64
	Threshold  float64
}

// DefaultClean matches the deconvolution settings of the pipeline.
var DefaultClean = CleanParams{Iterations: 100, Gain: 0.1, Threshold: 0.001}

// hogbom deconvolves dirty with psf, whose peak is at the image centre. It
// returns the clean components and the residual.
func hogbom(dirty, psf []float64, n int, p CleanParams) (comp, residual []float64) {
	comp = make([]float64, n*n)
	residual = make([]float64, n*n)
	copy(residual, dirty)
	c := n / 2

	for it := 0; it < p.Iterations; it++ {
		peak := 0
		for i, v := range residual {
			if math.Abs(v) > math.Abs(residual[peak]) {
				peak = i
			}
		}
		val := residual[peak]
		if math.Abs(val) < p.Threshold {
			break
		}
		px, py := peak%n, peak/n
		scaled := p.Gain * val
		comp[peak] += scaled

		// Subtract the shifted PSF over the region where both overlap.
		dx, dy := px-c, py-c
		for y := max(0, dy); y < min(n, n+dy); y++ {
			row, prow := y*n, (y-dy)*n
			for x := max(0, dx); x < min(n, n+dx); x++ {
				residual[row+x] -= scaled * psf[prow+x-dx]
			}
		}
	}
	return comp, residual
}

// restore convolves the components with a unit-peak Gaussian of standard
// deviation sigma pixels and adds the residual.
func restore(comp, residual []float64, n int, sigma float64) []float64 {
	out := make([]float64, n*n)
	copy(out, residual)
	if sigma <= 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		for i, v := range comp {
			out[i] += v
		}
		return out
	}

	r := int(math.Ceil(4 * sigma))
	kernel := make([]float64, 2*r+1)
	for k := -r; k <= r; k++ {
		kernel[k+r] = math.Exp(-float64(k*k) / (2 * sigma * sigma))
	}
	for i, v := range comp {
		if v == 0 {
			continue
		}
		cx, cy := i%n, i/n
		for y := max(0, cy-r); y <= min(n-1, cy+r); y++ {
			ky := kernel[y-cy+r]
			for x := max(0, cx-r); x <= min(n-1, cx+r); x++ {
				out[y*n+x] += v * ky * kernel[x-cx+r]
			}
		}
	}
	return out
}

// restoringWidth converts a resolution in arcminutes (FWHM) to a Gaussian
// standard deviation in pixels of size cell radians.
func restoringWidth(fwhmArcmin, cell float64) float64 {
	return (((fwhmArcmin / fwhmToSigma) / 60.0) * math.Pi / 180.0) / cell
}
