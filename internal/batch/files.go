package batch

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/banshee-data/vegetation.report/internal/fsutil"
)

// UnknownDate marks a file whose name carries no recognisable date token.
const UnknownDate = "unknown"

// DateToken extracts the acquisition date from a raster file name: the
// first underscore-delimited segment of the base name that is exactly
// eight digits, read left to right. Returns UnknownDate when no segment
// qualifies.
func DateToken(path string) string {
	base := filepath.Base(path)
	for _, seg := range strings.Split(base, "_") {
		if len(seg) == 8 && allDigits(seg) {
			return seg
		}
	}
	return UnknownDate
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// ListRasterFiles returns the raster files in dir, matched by a
// case-insensitive .nc extension. Files whose date token parses as a
// calendar date sort ascending by date; undated files are returned, in
// name order, only when the directory holds no dated file at all.
func ListRasterFiles(fsys fsutil.FileSystem, dir string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("batch: list %s: %w", dir, err)
	}

	type datedFile struct {
		path string
		date string
	}
	var dated []datedFile
	var undated []string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.EqualFold(filepath.Ext(name), ".nc") {
			continue
		}
		path := filepath.Join(dir, name)

		tok := DateToken(name)
		if tok != UnknownDate {
			if _, err := time.Parse("20060102", tok); err == nil {
				dated = append(dated, datedFile{path: path, date: tok})
				continue
			}
		}
		undated = append(undated, path)
	}

	if len(dated) > 0 {
		sort.Slice(dated, func(i, j int) bool {
			if dated[i].date != dated[j].date {
				return dated[i].date < dated[j].date
			}
			return dated[i].path < dated[j].path
		})
		out := make([]string, len(dated))
		for i, f := range dated {
			out[i] = f.path
		}
		return out, nil
	}

	sort.Strings(undated)
	return undated, nil
}
