// Package points loads the observation point list from CSV.
package points

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/banshee-data/vegetation.report/internal/fsutil"
)

// Point is one observation site. The No label is opaque; uniqueness is
// not enforced.
type Point struct {
	No  string
	Lat float64
	Lon float64
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads a CSV of points with header columns No, Lat and Lon. A
// UTF-8 byte order mark is tolerated. Rows that fail to parse are logged
// and skipped; only an unreadable file or a missing header column is
// fatal.
func Load(fsys fsutil.FileSystem, path string) ([]Point, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("points: open %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("points: read header of %s: %w", path, err)
	}

	noCol, latCol, lonCol := -1, -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "No":
			noCol = i
		case "Lat":
			latCol = i
		case "Lon":
			lonCol = i
		}
	}
	if noCol < 0 || latCol < 0 || lonCol < 0 {
		return nil, fmt.Errorf("points: %s: header must contain No, Lat and Lon columns, got %v", path, header)
	}

	var pts []Point
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Printf("points: skipping malformed row: %v", err)
			continue
		}

		p, err := parseRow(row, noCol, latCol, lonCol)
		if err != nil {
			log.Printf("points: skipping row %v: %v", row, err)
			continue
		}
		pts = append(pts, p)
	}
	return pts, nil
}

func parseRow(row []string, noCol, latCol, lonCol int) (Point, error) {
	max := noCol
	if latCol > max {
		max = latCol
	}
	if lonCol > max {
		max = lonCol
	}
	if len(row) <= max {
		return Point{}, fmt.Errorf("too few columns: %d", len(row))
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(row[latCol]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("bad latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(row[lonCol]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("bad longitude: %w", err)
	}
	if lat < -90 || lat > 90 {
		return Point{}, fmt.Errorf("latitude %v outside [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return Point{}, fmt.Errorf("longitude %v outside [-180, 180]", lon)
	}

	no := strings.TrimSpace(row[noCol])
	if no == "" {
		return Point{}, fmt.Errorf("empty point label")
	}
	return Point{No: no, Lat: lat, Lon: lon}, nil
}
