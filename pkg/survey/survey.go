package survey

import (
	"errors"
	"fmt"
)

var (
	ErrIncompleteBundle = errors.New("incomplete survey bundle")
	ErrMalformedSurvey  = errors.New("malformed survey data")
	ErrUnknownFormat    = errors.New("unknown survey format")
)

// StationKind dispatches the station variants. An explicit tag, not runtime
// type inspection.
type StationKind string

const (
	// StationKindSubsurface cave station, carries the project-linked payload
	StationKindSubsurface = StationKind("subsurface")
	// StationKindSurface surface station, carries the network-linked payload
	StationKindSurface = StationKind("surface")
)

// SubsurfacePayload is the project-linked data of an underground station.
type SubsurfacePayload struct {
	Depth       float64 `json:"depth"`
	PassageName string  `json:"passage_name,omitempty"`
}

// SurfacePayload is the network-linked data of a surface station.
type SurfacePayload struct {
	NetworkID string `json:"network_id,omitempty"`
}

// Station is a survey station with relative coordinates in meters from the
// project origin. Exactly one variant payload is set, selected by Kind.
type Station struct {
	Name       string             `json:"name"`
	Kind       StationKind        `json:"kind"`
	X          float64            `json:"x"`
	Y          float64            `json:"y"`
	Z          float64            `json:"z"`
	Subsurface *SubsurfacePayload `json:"subsurface,omitempty"`
	Surface    *SurfacePayload    `json:"surface,omitempty"`
}

// Shot is a measured leg between two stations.
type Shot struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Network is the parsed survey: stations with resolved coordinates and the
// shots connecting them.
type Network struct {
	Stations []Station `json:"stations"`
	Shots    []Shot    `json:"shots"`
}

// ReadFileFunc reads a committed file by its working-copy path.
type ReadFileFunc func(path string) ([]byte, error)

// Format is a survey bundle family: how to validate an uploaded bundle,
// normalize it into the working-copy layout, recognize a complete committed
// bundle and parse it into a Network.
type Format interface {
	Name() string

	// ValidateBundle rejects a structurally incomplete upload bundle before
	// any mutation happens.
	ValidateBundle(files map[string][]byte) error

	// Layout normalizes an uploaded bundle into the working-copy file set.
	Layout(files map[string][]byte) (map[string][]byte, error)

	// IsComplete inspects a committed file list for the format's required
	// companion files.
	IsComplete(paths []string) bool

	// ParseNetwork builds the survey network from committed files.
	ParseNetwork(read ReadFileFunc, paths []string) (*Network, error)
}

var formats = map[string]Format{}

func register(f Format) {
	formats[f.Name()] = f
}

// ByName returns the registered format implementation.
func ByName(name string) (Format, error) {
	f, ok := formats[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return f, nil
}
