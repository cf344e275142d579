package survey

import (
	"fmt"
	"math"
	"sort"
)

// measuredShot is a raw leg measurement: length in meters, bearing and
// inclination in degrees.
type measuredShot struct {
	From        string
	To          string
	Length      float64
	Bearing     float64
	Inclination float64
}

const feetToMeters = 0.3048

func degToRad(d float64) float64 {
	return d * math.Pi / 180
}

// propagate resolves station coordinates from shot measurements. The first
// shot's origin station is placed at the project origin; remaining stations
// are placed by repeated relaxation so shot order does not matter. A shot
// whose endpoints never connect to the origin makes the survey malformed.
func propagate(shots []measuredShot, origin string) (*Network, error) {
	if len(shots) == 0 {
		return nil, fmt.Errorf("%w: no shots", ErrMalformedSurvey)
	}
	type coords struct{ x, y, z float64 }
	known := map[string]coords{origin: {}}

	resolved := true
	for resolved {
		resolved = false
		for _, s := range shots {
			from, fromOK := known[s.From]
			to, toOK := known[s.To]
			if fromOK == toOK {
				continue
			}
			horizontal := s.Length * math.Cos(degToRad(s.Inclination))
			dx := horizontal * math.Sin(degToRad(s.Bearing))
			dy := horizontal * math.Cos(degToRad(s.Bearing))
			dz := s.Length * math.Sin(degToRad(s.Inclination))
			if fromOK {
				known[s.To] = coords{from.x + dx, from.y + dy, from.z + dz}
			} else {
				known[s.From] = coords{to.x - dx, to.y - dy, to.z - dz}
			}
			resolved = true
		}
	}
	for _, s := range shots {
		if _, ok := known[s.From]; !ok {
			return nil, fmt.Errorf("%w: station %s disconnected from origin", ErrMalformedSurvey, s.From)
		}
		if _, ok := known[s.To]; !ok {
			return nil, fmt.Errorf("%w: station %s disconnected from origin", ErrMalformedSurvey, s.To)
		}
	}

	names := make([]string, 0, len(known))
	for name := range known {
		names = append(names, name)
	}
	sort.Strings(names)

	network := &Network{
		Stations: make([]Station, 0, len(names)),
		Shots:    make([]Shot, 0, len(shots)),
	}
	for _, name := range names {
		c := known[name]
		station := Station{
			Name: name,
			X:    c.x,
			Y:    c.y,
			Z:    c.z,
		}
		if c.z < 0 {
			station.Kind = StationKindSubsurface
			station.Subsurface = &SubsurfacePayload{Depth: -c.z}
		} else {
			station.Kind = StationKindSurface
			station.Surface = &SurfacePayload{}
		}
		network.Stations = append(network.Stations, station)
	}
	for _, s := range shots {
		network.Shots = append(network.Shots, Shot{From: s.From, To: s.To})
	}
	return network, nil
}
