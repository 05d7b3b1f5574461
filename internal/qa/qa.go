// Package qa reduces images to small quality-assessment summaries and defines
// how they are handed to a message queue.
package qa

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/vk/dprepgo/internal/imaging"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/floats"
)

// Publisher delivers opaque messages to a topic. Publish must return
// promptly once ctx ends.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

var stokesNames = [imaging.NumStokes]string{"I", "Q", "U", "V"}

// PlaneStats describes one Stokes plane.
type PlaneStats struct {
	Stokes    string  `msgpack:"stokes"`
	Max       float64 `msgpack:"max"`
	Min       float64 `msgpack:"min"`
	MaxAbs    float64 `msgpack:"maxabs"`
	RMS       float64 `msgpack:"rms"`
	Sum       float64 `msgpack:"sum"`
	Median    float64 `msgpack:"median"`
	MedianAbs float64 `msgpack:"medianabs"`
}

// Summary is the QA record of one channel image.
type Summary struct {
	Origin    string       `msgpack:"origin"`
	Channel   int          `msgpack:"channel"`
	Frequency float64      `msgpack:"frequency"`
	NPixel    int          `msgpack:"npixel"`
	Cell      float64      `msgpack:"cell"`
	Planes    []PlaneStats `msgpack:"planes"`
}

// Summarize computes the statistics of every plane of im.
func Summarize(origin string, im *imaging.Image) *Summary {
	s := &Summary{
		Origin:    origin,
		Channel:   im.Channel,
		Frequency: im.Frequency,
		NPixel:    im.NPixel,
		Cell:      im.Cell,
	}
	for p, plane := range im.Planes {
		name := fmt.Sprintf("%d", p)
		if p < len(stokesNames) {
			name = stokesNames[p]
		}
		s.Planes = append(s.Planes, planeStats(name, plane))
	}
	return s
}

func planeStats(name string, plane []float64) PlaneStats {
	st := PlaneStats{Stokes: name}
	if len(plane) == 0 {
		return st
	}
	sorted := slices.Clone(plane)
	abs := make([]float64, len(plane))
	for i, v := range plane {
		abs[i] = math.Abs(v)
	}
	st.Max = floats.Max(plane)
	st.Min = floats.Min(plane)
	st.Sum = floats.Sum(plane)
	st.MaxAbs = floats.Max(abs)
	st.RMS = floats.Norm(plane, 2) / math.Sqrt(float64(len(plane)))
	slices.Sort(sorted)
	slices.Sort(abs)
	st.Median = median(sorted)
	st.MedianAbs = median(abs)
	return st
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Encode serialises a summary for the queue.
func Encode(s *Summary) ([]byte, error) {
	b, err := msgpack.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode qa summary for channel %d: %w", s.Channel, err)
	}
	return b, nil
}

// Decode is the inverse of Encode.
func Decode(b []byte) (*Summary, error) {
	var s Summary
	if err := msgpack.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode qa summary: %w", err)
	}
	return &s, nil
}
