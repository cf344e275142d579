package geojson

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/speleodb/speleodb/pkg/catalog"
	"github.com/speleodb/speleodb/pkg/survey"
)

// BuildFeatureCollection maps a parsed survey network to GeoJSON: stations
// become Point features, shots become LineString features connecting them.
// Coordinates are the network's relative planar coordinates; consumers
// georeference against the project's base location.
func BuildFeatureCollection(project *catalog.Project, sha string, network *survey.Network) *geojson.FeatureCollection {
	collection := geojson.NewFeatureCollection()
	collection.ExtraMembers = map[string]interface{}{
		"project":      project.ID,
		"project_name": project.Name,
		"commit":       sha,
	}

	stationPoint := make(map[string]orb.Point, len(network.Stations))
	for _, station := range network.Stations {
		point := orb.Point{station.X, station.Y}
		stationPoint[station.Name] = point

		feature := geojson.NewFeature(point)
		feature.Properties["feature_type"] = "station"
		feature.Properties["name"] = station.Name
		feature.Properties["kind"] = string(station.Kind)
		feature.Properties["elevation"] = station.Z
		switch station.Kind {
		case survey.StationKindSubsurface:
			feature.Properties["depth"] = station.Subsurface.Depth
			if station.Subsurface.PassageName != "" {
				feature.Properties["passage"] = station.Subsurface.PassageName
			}
		case survey.StationKindSurface:
			if station.Surface.NetworkID != "" {
				feature.Properties["network"] = station.Surface.NetworkID
			}
		}
		collection.Append(feature)
	}

	for _, shot := range network.Shots {
		from, fromOK := stationPoint[shot.From]
		to, toOK := stationPoint[shot.To]
		if !fromOK || !toOK {
			continue
		}
		feature := geojson.NewFeature(orb.LineString{from, to})
		feature.Properties["feature_type"] = "shot"
		feature.Properties["from"] = shot.From
		feature.Properties["to"] = shot.To
		collection.Append(feature)
	}
	return collection
}
