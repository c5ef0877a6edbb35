package marketcap

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sells-group/carbon-dashboard/internal/model"
)

// Reference is one row of the company code file.
type Reference struct {
	CompanyID   string
	CompanyName string
	Country     string
	Code        string
}

// ReferenceLookup is the parsed company code file. Version changes whenever
// the file changes, and takes a "missing:" form when the file is absent.
type ReferenceLookup struct {
	Version     string
	ByCompanyID map[string]Reference
	Rows        int
	MissingCode int
	InvalidCode int
}

// ParseLine splits one CSV line with RFC 4180 quoting and trims each field.
func ParseLine(line string) []string {
	fields, _ := parseLine(line)
	return fields
}

// parseLine is ParseLine that also reports whether the line parsed cleanly. A
// line that does not parse comes back as a single trimmed field.
func parseLine(line string) ([]string, bool) {
	fields, err := newCSVReader(strings.NewReader(line)).Read()
	if err != nil {
		return []string{strings.TrimSpace(line)}, false
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields, true
}

func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader
}

// readCSV parses data one line at a time, so a malformed quote damages only
// its own row. The first non-blank line is the header, with a UTF-8 byte
// order mark removed and names lower-cased. bad counts data lines that did
// not parse; they are not returned.
func readCSV(data []byte) (header []string, rows [][]string, bad int) {
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))

	var records [][]string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields, ok := parseLine(line)
		if !ok {
			if len(records) > 0 {
				bad++
			}
			continue
		}
		records = append(records, fields)
	}
	if len(records) == 0 {
		return nil, nil, bad
	}
	header = records[0]
	for i := range header {
		header[i] = strings.ToLower(header[i])
	}
	return header, records[1:], bad
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// parseReference builds a lookup from the company code file. The first row
// per company id wins. A header without company_id or any code column
// yields an empty lookup with every row counted as missing a code.
func parseReference(version string, data []byte) ReferenceLookup {
	lookup := ReferenceLookup{Version: version, ByCompanyID: map[string]Reference{}}

	header, rows, bad := readCSV(data)
	if header == nil {
		lookup.Version += ":empty"
		return lookup
	}
	if bad > 0 {
		zap.L().Warn("marketcap: skipped malformed reference rows", zap.String("version", version), zap.Int("rows", bad))
	}

	lookup.Rows = len(rows) + bad
	lookup.InvalidCode = bad
	idIdx := columnIndex(header, "company_id")
	nameIdx := columnIndex(header, "company_name")
	countryIdx := columnIndex(header, "country")
	codeIdx := columnIndex(header, "code")
	code6Idx := columnIndex(header, "code6_re")
	if idIdx < 0 || (codeIdx < 0 && code6Idx < 0) {
		lookup.Version += ":invalid-header"
		lookup.MissingCode = len(rows)
		lookup.InvalidCode = 0
		return lookup
	}

	for _, rec := range rows {
		id := field(rec, idIdx)
		if id == "" {
			continue
		}
		if _, seen := lookup.ByCompanyID[id]; seen {
			continue
		}
		country, _ := model.NormalizeCountry(field(rec, countryIdx))
		raw := field(rec, codeIdx)
		if raw == "" {
			raw = field(rec, code6Idx)
		}
		code := NormalizeCode(raw, country)
		switch {
		case raw == "":
			lookup.MissingCode++
		case code == "":
			lookup.InvalidCode++
		}
		lookup.ByCompanyID[id] = Reference{
			CompanyID:   id,
			CompanyName: field(rec, nameIdx),
			Country:     country,
			Code:        code,
		}
	}
	return lookup
}

// Overrides are static market caps keyed by company id.
type Overrides struct {
	Version     string
	ByCompanyID map[string]float64
	Rows        int
	Invalid     int
}

// parseOverrides reads a company_id,market_cap file. Non-positive or
// non-numeric values are counted as invalid and skipped.
func parseOverrides(version string, data []byte) Overrides {
	ov := Overrides{Version: version, ByCompanyID: map[string]float64{}}

	header, rows, bad := readCSV(data)
	idIdx := columnIndex(header, "company_id")
	capIdx := columnIndex(header, "market_cap")
	if idIdx < 0 || capIdx < 0 {
		ov.Version += ":invalid-header"
		return ov
	}

	ov.Rows = len(rows) + bad
	ov.Invalid = bad
	for _, rec := range rows {
		id := field(rec, idIdx)
		v, ok := parsePositive(field(rec, capIdx))
		if id == "" || !ok {
			ov.Invalid++
			continue
		}
		if _, seen := ov.ByCompanyID[id]; !seen {
			ov.ByCompanyID[id] = v
		}
	}
	return ov
}

// fileCache re-parses a file only when its modification time changes.
type fileCache[T any] struct {
	fs    afero.Fs
	parse func(version string, data []byte) T
	empty func(version string) T

	mu    sync.Mutex
	path  string
	mtime time.Time
	value T
	ok    bool
}

func newFileCache[T any](fs afero.Fs, parse func(string, []byte) T, empty func(string) T) *fileCache[T] {
	return &fileCache[T]{fs: fs, parse: parse, empty: empty}
}

// load returns the parsed file. A missing or unreadable file yields an empty
// value with a "missing:" version, which is not cached.
func (c *fileCache[T]) load(path string) T {
	if path == "" {
		return c.empty("missing:")
	}
	info, err := c.fs.Stat(path)
	if err != nil {
		return c.empty("missing:" + path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ok && c.path == path && c.mtime.Equal(info.ModTime()) {
		return c.value
	}

	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return c.empty("missing:" + path)
	}
	version := fmt.Sprintf("%s:%d", path, info.ModTime().UnixMilli())
	c.value = c.parse(version, data)
	c.path = path
	c.mtime = info.ModTime()
	c.ok = true
	return c.value
}

func emptyReference(version string) ReferenceLookup {
	return ReferenceLookup{Version: version, ByCompanyID: map[string]Reference{}}
}

func emptyOverrides(version string) Overrides {
	return Overrides{Version: version, ByCompanyID: map[string]float64{}}
}
