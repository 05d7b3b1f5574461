// Package fits writes and reads single-image FITS files with fitsio. Images
// are stored as IEEE single precision (BITPIX -32) in the primary HDU.
package fits

import (
	"fmt"
	"io"
	"os"

	"github.com/astrogo/fitsio"
)

// Bitpix is the pixel encoding of every image this package writes.
const Bitpix = -32

// Card is one header keyword.
type Card = fitsio.Card

// Header is an ordered list of cards. The mandatory SIMPLE, BITPIX and NAXIS
// cards are generated on write and must not be included.
type Header []Card

// Image is a decoded primary HDU.
type Image struct {
	Bitpix int
	// Axes lists the axis lengths fastest-varying first.
	Axes []int
	Keys map[string]any
	Data []float32
}

// Write encodes a primary HDU. shape lists the axis lengths fastest-varying
// first; data must hold their product.
func Write(w io.Writer, hdr Header, shape []int, data []float32) (err error) {
	n := 1
	for _, s := range shape {
		if s <= 0 {
			return fmt.Errorf("invalid axis length %d", s)
		}
		n *= s
	}
	if n != len(data) {
		return fmt.Errorf("shape %v needs %d values, got %d", shape, n, len(data))
	}
	for _, c := range hdr {
		if len(c.Name) > 8 {
			return fmt.Errorf("keyword %q is longer than 8 characters", c.Name)
		}
	}

	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	img := fitsio.NewImage(Bitpix, shape)
	defer img.Close()
	if err := img.Header().Append(hdr...); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	if err := img.Write(&data); err != nil {
		return fmt.Errorf("data: %w", err)
	}
	return f.Write(img)
}

// WriteFile writes the image to path, replacing any existing file.
func WriteFile(path string, hdr Header, shape []int, data []float32) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Write(f, hdr, shape, data)
}

// Read decodes the primary HDU of r.
func Read(r io.Reader) (*Image, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if len(f.HDUs()) == 0 {
		return nil, fmt.Errorf("no HDU found")
	}
	hdu := f.HDU(0)
	img, ok := hdu.(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("primary HDU is %T, not an image", hdu)
	}
	hdr := hdu.Header()
	if hdr.Bitpix() != Bitpix {
		return nil, fmt.Errorf("unsupported BITPIX %d", hdr.Bitpix())
	}

	out := &Image{
		Bitpix: hdr.Bitpix(),
		Axes:   hdr.Axes(),
		Keys:   make(map[string]any),
	}
	for _, k := range hdr.Keys() {
		if c := hdr.Get(k); c != nil {
			out.Keys[k] = c.Value
		}
	}
	n := 1
	for _, a := range out.Axes {
		n *= a
	}
	out.Data = make([]float32, n)
	if err := img.Read(&out.Data); err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	return out, nil
}

// ReadFile decodes the primary HDU of the file at path.
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
