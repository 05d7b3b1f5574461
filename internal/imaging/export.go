package imaging

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/vk/dprepgo/internal/fits"
	"github.com/vk/dprepgo/internal/visibility"
)

// Export writes the image as a four-axis FITS cube (RA, Dec, Stokes, Freq).
func Export(im *Image, path string) error {
	cellDeg := im.Cell * 180 / math.Pi
	crpix := float64(im.NPixel/2 + 1)
	hdr := fits.Header{
		{Name: "CTYPE1", Value: "RA---SIN"},
		{Name: "CRVAL1", Value: im.PhaseCentre.RA},
		{Name: "CDELT1", Value: -cellDeg},
		{Name: "CRPIX1", Value: crpix},
		{Name: "CUNIT1", Value: "deg"},
		{Name: "CTYPE2", Value: "DEC--SIN"},
		{Name: "CRVAL2", Value: im.PhaseCentre.Dec},
		{Name: "CDELT2", Value: cellDeg},
		{Name: "CRPIX2", Value: crpix},
		{Name: "CUNIT2", Value: "deg"},
		{Name: "CTYPE3", Value: "STOKES"},
		{Name: "CRVAL3", Value: 1.0},
		{Name: "CDELT3", Value: 1.0},
		{Name: "CRPIX3", Value: 1.0},
		{Name: "CTYPE4", Value: "FREQ"},
		{Name: "CRVAL4", Value: im.Frequency},
		{Name: "CDELT4", Value: 1.0},
		{Name: "CRPIX4", Value: 1.0},
		{Name: "CUNIT4", Value: "Hz"},
		{Name: "BUNIT", Value: "JY/BEAM"},
		{Name: "CHANNEL", Value: im.Channel},
	}

	data := make([]float32, 0, NumStokes*im.NPixel*im.NPixel)
	for _, plane := range im.Planes {
		for _, v := range plane {
			data = append(data, float32(v))
		}
	}
	if err := fits.WriteFile(path, hdr, []int{im.NPixel, im.NPixel, len(im.Planes), 1}, data); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}

// writeCoverage stores the uv coverage of ds as CSV, including the mirrored
// points, for external plotting.
func writeCoverage(path string, ds *visibility.Dataset) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"u", "v", "uvdist"}); err != nil {
		return err
	}
	format := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, s := range ds.Samples {
		d := format(s.UVDistance())
		if err := w.Write([]string{format(s.U), format(s.V), d}); err != nil {
			return err
		}
		if err := w.Write([]string{format(-s.U), format(-s.V), d}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
