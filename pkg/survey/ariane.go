package survey

import (
	"encoding/xml"
	"fmt"
	"path"
	"strings"
)

// FormatAriane is the single-file Ariane family: one .tml or .tmlu XML
// document holding the whole survey.
const FormatAriane = "ariane"

var arianeExts = map[string]bool{
	".tml":  true,
	".tmlu": true,
}

//nolint:gochecknoinits
func init() {
	register(arianeFormat{})
}

type arianeFormat struct{}

func (arianeFormat) Name() string {
	return FormatAriane
}

func (arianeFormat) ValidateBundle(files map[string][]byte) error {
	count := 0
	for name := range files {
		if arianeExts[strings.ToLower(path.Ext(name))] {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("%w: ariane bundle requires exactly one .tml/.tmlu file, got %d", ErrIncompleteBundle, count)
	}
	return nil
}

func (arianeFormat) Layout(files map[string][]byte) (map[string][]byte, error) {
	layout := make(map[string][]byte, len(files))
	for name, content := range files {
		layout[strings.ToLower(path.Base(name))] = content
	}
	return layout, nil
}

func (arianeFormat) IsComplete(paths []string) bool {
	for _, p := range paths {
		if arianeExts[strings.ToLower(path.Ext(p))] {
			return true
		}
	}
	return false
}

// shot types in an ariane survey document
const (
	arianeShotStart = "START"
	arianeShotReal  = "REAL"
)

type arianeDocument struct {
	XMLName xml.Name     `xml:"CaveFile"`
	Name    string       `xml:"caveName"`
	Data    []arianeShot `xml:"Data>SurveyData"`
}

type arianeShot struct {
	Name        string  `xml:"Name"`
	FromName    string  `xml:"FromName"`
	Type        string  `xml:"Type"`
	Length      float64 `xml:"Length"`
	Azimut      float64 `xml:"Azimut"`
	Inclination float64 `xml:"Inclination"`
}

func (arianeFormat) ParseNetwork(read ReadFileFunc, paths []string) (*Network, error) {
	var surveyPath string
	for _, p := range paths {
		if arianeExts[strings.ToLower(path.Ext(p))] {
			surveyPath = p
			break
		}
	}
	if surveyPath == "" {
		return nil, fmt.Errorf("%w: no .tml/.tmlu file", ErrIncompleteBundle)
	}
	data, err := read(surveyPath)
	if err != nil {
		return nil, err
	}
	var doc arianeDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedSurvey, err)
	}

	var (
		origin string
		shots  []measuredShot
	)
	for _, s := range doc.Data {
		switch s.Type {
		case arianeShotStart:
			origin = s.Name
		case arianeShotReal:
			if s.FromName == "" {
				return nil, fmt.Errorf("%w: shot %s without origin station", ErrMalformedSurvey, s.Name)
			}
			shots = append(shots, measuredShot{
				From:        s.FromName,
				To:          s.Name,
				Length:      s.Length,
				Bearing:     s.Azimut,
				Inclination: s.Inclination,
			})
		default:
			return nil, fmt.Errorf("%w: unknown shot type %q", ErrMalformedSurvey, s.Type)
		}
	}
	if origin == "" {
		return nil, fmt.Errorf("%w: no START station", ErrMalformedSurvey)
	}
	if len(shots) == 0 {
		return nil, fmt.Errorf("%w: no shots in survey data", ErrMalformedSurvey)
	}
	return propagate(shots, origin)
}
