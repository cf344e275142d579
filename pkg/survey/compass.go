package survey

import (
	"bufio"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// FormatCompass is the multi-file Compass family: a .mak control file linking
// one or more .dat survey data files.
const FormatCompass = "compass"

const (
	makExt = ".mak"
	datExt = ".dat"
)

//nolint:gochecknoinits
func init() {
	register(compassFormat{})
}

type compassFormat struct{}

func (compassFormat) Name() string {
	return FormatCompass
}

func (compassFormat) ValidateBundle(files map[string][]byte) error {
	var mak, dat int
	for name := range files {
		switch strings.ToLower(path.Ext(name)) {
		case makExt:
			mak++
		case datExt:
			dat++
		}
	}
	if mak != 1 {
		return fmt.Errorf("%w: compass bundle requires exactly one %s control file, got %d", ErrIncompleteBundle, makExt, mak)
	}
	if dat == 0 {
		return fmt.Errorf("%w: compass bundle requires at least one %s survey file", ErrIncompleteBundle, datExt)
	}
	return nil
}

func (compassFormat) Layout(files map[string][]byte) (map[string][]byte, error) {
	layout := make(map[string][]byte, len(files))
	for name, content := range files {
		layout[strings.ToLower(path.Base(name))] = content
	}
	return layout, nil
}

func (compassFormat) IsComplete(paths []string) bool {
	var mak, dat bool
	for _, p := range paths {
		switch strings.ToLower(path.Ext(p)) {
		case makExt:
			mak = true
		case datExt:
			dat = true
		}
	}
	return mak && dat
}

func (f compassFormat) ParseNetwork(read ReadFileFunc, paths []string) (*Network, error) {
	var makPath string
	byBase := make(map[string]string, len(paths))
	for _, p := range paths {
		byBase[strings.ToLower(path.Base(p))] = p
		if strings.ToLower(path.Ext(p)) == makExt {
			makPath = p
		}
	}
	if makPath == "" {
		return nil, fmt.Errorf("%w: no %s control file", ErrIncompleteBundle, makExt)
	}
	makData, err := read(makPath)
	if err != nil {
		return nil, err
	}
	datFiles := parseMAK(string(makData))
	if len(datFiles) == 0 {
		return nil, fmt.Errorf("%w: control file links no survey files", ErrMalformedSurvey)
	}

	var shots []measuredShot
	for _, datFile := range datFiles {
		p, ok := byBase[strings.ToLower(datFile)]
		if !ok {
			return nil, fmt.Errorf("%w: linked survey file %s missing", ErrIncompleteBundle, datFile)
		}
		data, err := read(p)
		if err != nil {
			return nil, err
		}
		fileShots, err := parseDAT(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", datFile, err)
		}
		shots = append(shots, fileShots...)
	}
	if len(shots) == 0 {
		return nil, fmt.Errorf("%w: no shots in survey data", ErrMalformedSurvey)
	}
	return propagate(shots, shots[0].From)
}

// parseMAK extracts the linked .dat file names from a Compass project file.
// Entries are ';' terminated; '#' entries name data files, everything after a
// ',' in the entry is link-station parameters which do not matter here.
func parseMAK(content string) []string {
	var files []string
	for _, entry := range strings.Split(content, ";") {
		entry = strings.TrimSpace(entry)
		if !strings.HasPrefix(entry, "#") {
			continue
		}
		name := strings.TrimPrefix(entry, "#")
		if i := strings.IndexByte(name, ','); i >= 0 {
			name = name[:i]
		}
		name = strings.TrimSpace(name)
		if name != "" {
			files = append(files, name)
		}
	}
	return files
}

// parseDAT reads the shot rows of a Compass survey data file. Each survey
// section carries a header row starting with FROM/TO; data rows follow until
// the form-feed section terminator. Lengths are in feet.
func parseDAT(content string) ([]measuredShot, error) {
	var shots []measuredShot
	inData := false
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "\f") || strings.HasPrefix(line, "\x0c") {
			inData = false
			continue
		}
		fields := strings.Fields(line)
		if !inData {
			if len(fields) >= 2 && strings.EqualFold(fields[0], "FROM") && strings.EqualFold(fields[1], "TO") {
				inData = true
			}
			continue
		}
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 5 {
			return nil, fmt.Errorf("%w: short shot row %q", ErrMalformedSurvey, line)
		}
		length, err1 := strconv.ParseFloat(fields[2], 64)
		bearing, err2 := strconv.ParseFloat(fields[3], 64)
		inclination, err3 := strconv.ParseFloat(fields[4], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("%w: bad measurement in row %q", ErrMalformedSurvey, line)
		}
		shots = append(shots, measuredShot{
			From:        fields[0],
			To:          fields[1],
			Length:      length * feetToMeters,
			Bearing:     bearing,
			Inclination: inclination,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return shots, nil
}
