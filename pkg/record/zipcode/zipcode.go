// Package zipcode implements a concrete blockfile.Record/blockfile.Codec
// pair for a postal-code gazetteer: zip code, place name, two-letter state,
// county, and a latitude/longitude pair. It is the domain record loaded by
// the cmd/blockset-bulkload tool.
package zipcode

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dd0wney/blockset/pkg/blockfile"
)

// fieldSep separates a Record's fields in its serialized text form, chosen
// to never collide with the place/county names it carries.
const fieldSep = "\x1f"

// Record is one zip-code gazetteer entry.
type Record struct {
	ZipCode   uint32
	PlaceName string
	State     string
	County    string
	Latitude  float64
	Longitude float64
}

// PrimaryKey returns the zip code, the record's key field.
func (r Record) PrimaryKey() uint32 { return r.ZipCode }

// Serialize renders the record as a single unit-separator-delimited text
// line, matching the header's ASCII-text sizeFormat.
func (r Record) Serialize() ([]byte, error) {
	if len(r.State) != 2 {
		return nil, fmt.Errorf("zipcode: state must be a 2-character code, got %q", r.State)
	}
	fields := []string{
		strconv.FormatUint(uint64(r.ZipCode), 10),
		r.PlaceName,
		r.State,
		r.County,
		strconv.FormatFloat(r.Latitude, 'f', -1, 64),
		strconv.FormatFloat(r.Longitude, 'f', -1, 64),
	}
	return []byte(strings.Join(fields, fieldSep)), nil
}

// Codec deserializes zipcode.Record values out of block payloads.
type Codec struct{}

// Deserialize parses one Record out of data, in the format Serialize produces.
func (Codec) Deserialize(data []byte) (blockfile.Record, error) {
	fields := bytes.Split(data, []byte(fieldSep))
	if len(fields) != 6 {
		return nil, fmt.Errorf("zipcode: expected 6 fields, got %d", len(fields))
	}

	zip, err := strconv.ParseUint(string(fields[0]), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("zipcode: bad zip code: %w", err)
	}
	lat, err := strconv.ParseFloat(string(fields[4]), 64)
	if err != nil {
		return nil, fmt.Errorf("zipcode: bad latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(string(fields[5]), 64)
	if err != nil {
		return nil, fmt.Errorf("zipcode: bad longitude: %w", err)
	}
	state := string(fields[2])
	if len(state) != 2 {
		return nil, errors.New("zipcode: state must be a 2-character code")
	}

	return Record{
		ZipCode:   uint32(zip),
		PlaceName: string(fields[1]),
		State:     state,
		County:    string(fields[3]),
		Latitude:  lat,
		Longitude: lon,
	}, nil
}

// ParseCSVRecord parses one comma-separated source line of the form
// "zip,placeName,state,county,latitude,longitude" into a Record, validating
// each field the way the original gazetteer loader did. It is the entry
// point for bulk-loading a raw data file into a blocked sequence set.
func ParseCSVRecord(line string) (Record, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 6 {
		return Record{}, fmt.Errorf("zipcode: expected 6 comma-separated fields, got %d", len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	zip, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("zipcode: bad zip code %q: %w", fields[0], err)
	}
	state := fields[2]
	if len(state) != 2 {
		return Record{}, fmt.Errorf("zipcode: state %q must be a 2-character code", state)
	}
	lat, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return Record{}, fmt.Errorf("zipcode: bad latitude %q: %w", fields[4], err)
	}
	lon, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return Record{}, fmt.Errorf("zipcode: bad longitude %q: %w", fields[5], err)
	}

	return Record{
		ZipCode:   uint32(zip),
		PlaceName: fields[1],
		State:     state,
		County:    fields[3],
		Latitude:  lat,
		Longitude: lon,
	}, nil
}

// Schema is the blockfile.FieldDescriptor list this record type carries in
// the file header, ordered to match Record's fields.
func Schema() []blockfile.FieldDescriptor {
	return []blockfile.FieldDescriptor{
		{Name: "zip_code", Type: blockfile.FieldTypeUint32},
		{Name: "place_name", Type: blockfile.FieldTypeString},
		{Name: "state", Type: blockfile.FieldTypeString},
		{Name: "county", Type: blockfile.FieldTypeString},
		{Name: "latitude", Type: blockfile.FieldTypeString},
		{Name: "longitude", Type: blockfile.FieldTypeString},
	}
}
