package imaging

import (
	"fmt"
	"math"

	"github.com/vk/dprepgo/internal/instrument"
	"github.com/vk/dprepgo/internal/visibility"
	"github.com/vk/dprepgo/internal/workunit"
)

const speedOfLight = 299792458.0

// stokesSample is one visibility expressed as I, Q, U, V.
type stokesSample struct {
	u, v, w float64
	weight  float64
	iquv    [NumStokes]complex128
}

// toStokes converts the correlations of every sample. For circular feeds the
// four slots hold RR, RL, LR, LL.
func toStokes(ds *visibility.Dataset, frame string) ([]stokesSample, error) {
	out := make([]stokesSample, 0, ds.Len())
	for _, s := range ds.Samples {
		var c [visibility.NumCorrelations]complex128
		for k := range c {
			c[k] = complex(s.Re[k], s.Im[k])
		}
		st := stokesSample{u: s.U, v: s.V, w: s.W, weight: s.Weight}
		switch frame {
		case instrument.FrameLinear:
			st.iquv[StokesI] = (c[visibility.XX] + c[visibility.YY]) / 2
			st.iquv[StokesQ] = (c[visibility.XX] - c[visibility.YY]) / 2
			st.iquv[StokesU] = (c[visibility.XY] + c[visibility.YX]) / 2
			st.iquv[StokesV] = (c[visibility.XY] - c[visibility.YX]) / complex(0, 2)
		case instrument.FrameCircular:
			st.iquv[StokesI] = (c[visibility.XX] + c[visibility.YY]) / 2
			st.iquv[StokesV] = (c[visibility.XX] - c[visibility.YY]) / 2
			st.iquv[StokesQ] = (c[visibility.XY] + c[visibility.YX]) / 2
			st.iquv[StokesU] = (c[visibility.XY] - c[visibility.YX]) / complex(0, 2)
		default:
			return nil, fmt.Errorf("unsupported polarisation frame %q", frame)
		}
		out = append(out, st)
	}
	return out, nil
}

// derotate removes the Faraday rotation described by corr from Q and U.
// Each sample uses the table row whose time is nearest to its own, remapped
// through TimeIndices when present. The rotation measure of a row is
// averaged over stations.
func derotate(samples []stokesSample, ds *visibility.Dataset, corr *workunit.IonosphereCorrection) error {
	if corr == nil || len(corr.RM) == 0 {
		return nil
	}
	rows := make([]float64, len(corr.RM))
	for i, row := range corr.RM {
		if len(row) == 0 {
			continue
		}
		var sum float64
		for _, rm := range row {
			sum += rm
		}
		rows[i] = sum / float64(len(row))
	}

	for i := range samples {
		row := nearest(corr.Times, ds.Samples[i].Time)
		if row < len(corr.TimeIndices) {
			row = corr.TimeIndices[row]
		}
		if row < 0 || row >= len(rows) {
			return fmt.Errorf("sample %d maps to rotation-measure row %d of %d", i, row, len(rows))
		}
		freq := ds.Frequency(ds.Samples[i].Channel)
		if freq <= 0 {
			continue
		}
		lambda := speedOfLight / freq
		chi := rows[row] * lambda * lambda
		cos, sin := complex(math.Cos(2*chi), 0), complex(math.Sin(2*chi), 0)
		q, u := samples[i].iquv[StokesQ], samples[i].iquv[StokesU]
		samples[i].iquv[StokesQ] = q*cos + u*sin
		samples[i].iquv[StokesU] = -q*sin + u*cos
	}
	return nil
}

// nearest returns the index of the value in times closest to t, or 0.
func nearest(times []float64, t float64) int {
	best := 0
	for i, v := range times {
		if math.Abs(v-t) < math.Abs(times[best]-t) {
			best = i
		}
	}
	return best
}
