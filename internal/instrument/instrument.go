// Package instrument maps telescope names to the properties the pipeline needs
// before any data is read, currently the polarisation frame of the feeds.
package instrument

import (
	"fmt"
	"sort"
	"strings"
)

// Polarisation frames understood by the imaging stage.
const (
	FrameLinear   = "linear"
	FrameCircular = "circular"
)

var frames = map[string]string{
	"ASKAP":    FrameLinear,
	"LOFAR":    FrameLinear,
	"MWA":      FrameLinear,
	"SKA1-LOW": FrameLinear,
	"VLA":      FrameCircular,
}

// Init returns the polarisation frame for the named instrument.
func Init(name string) (string, error) {
	frame, ok := frames[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown instrument %q (known: %s)", name, strings.Join(Known(), ", "))
	}
	return frame, nil
}

// Known lists the supported instrument names in sorted order.
func Known() []string {
	names := make([]string, 0, len(frames))
	for name := range frames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
