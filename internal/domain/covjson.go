package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Area axis names.
const (
	AreaCountry = "country"
	AreaCluster = "cluster"
)

// timeAxis is the name of the CovJSON temporal axis.
const timeAxis = "t"

// Coverage is a CovJSON Coverage document filled from a template. The
// fields cover what the time series fill touches; every other member of the
// template is kept and written back in place.
type Coverage struct {
	Context    json.RawMessage
	Type       string
	Profile    string
	Domain     CoverageDomain
	Parameters *orderedmap.OrderedMap[string, json.RawMessage]
	Ranges     *orderedmap.OrderedMap[string, *NdArray]

	extra jsonObject
}

func (c *Coverage) members() []member {
	return []member{
		{key: "@context", ptr: &c.Context, omit: len(c.Context) == 0},
		{key: "type", ptr: &c.Type},
		{key: "profile", ptr: &c.Profile, omit: c.Profile == ""},
		{key: "domain", ptr: &c.Domain},
		{key: "parameters", ptr: &c.Parameters, omit: c.Parameters == nil},
		{key: "ranges", ptr: &c.Ranges},
	}
}

func (c *Coverage) UnmarshalJSON(data []byte) error { return c.extra.decode(data, c.members()) }
func (c Coverage) MarshalJSON() ([]byte, error) { return c.extra.encode(c.members()) }

// CoverageDomain holds the axes and their referencing.
type CoverageDomain struct {
	Type        string
	DomainType  string
	Axes        *orderedmap.OrderedMap[string, *Axis]
	Referencing []Referencing

	extra jsonObject
}

func (d *CoverageDomain) members() []member {
	return []member{
		{key: "type", ptr: &d.Type},
		{key: "domainType", ptr: &d.DomainType, omit: d.DomainType == ""},
		{key: "axes", ptr: &d.Axes},
		{key: "referencing", ptr: &d.Referencing, omit: len(d.Referencing) == 0},
	}
}

func (d *CoverageDomain) UnmarshalJSON(data []byte) error { return d.extra.decode(data, d.members()) }
func (d CoverageDomain) MarshalJSON() ([]byte, error) { return d.extra.encode(d.members()) }

// Axis is a CovJSON axis with explicit values.
type Axis struct {
	DataType string
	Values   []string

	extra jsonObject
}

func (a *Axis) members() []member {
	return []member{
		{key: "dataType", ptr: &a.DataType, omit: a.DataType == ""},
		{key: "values", ptr: &a.Values},
	}
}

func (a *Axis) UnmarshalJSON(data []byte) error { return a.extra.decode(data, a.members()) }
func (a Axis) MarshalJSON() ([]byte, error) { return a.extra.encode(a.members()) }

// Referencing connects axes to a reference system.
type Referencing struct {
	Coordinates []string
	System      ReferenceSystem

	extra jsonObject
}

func (r *Referencing) members() []member {
	return []member{
		{key: "coordinates", ptr: &r.Coordinates},
		{key: "system", ptr: &r.System},
	}
}

func (r *Referencing) UnmarshalJSON(data []byte) error { return r.extra.decode(data, r.members()) }
func (r Referencing) MarshalJSON() ([]byte, error) { return r.extra.encode(r.members()) }

// ReferenceSystem is a temporal or identifier reference system.
type ReferenceSystem struct {
	Type        string
	Calendar    string
	Label       I18n
	Identifiers *orderedmap.OrderedMap[string, Identifier]

	extra jsonObject
}

func (s *ReferenceSystem) members() []member {
	return []member{
		{key: "type", ptr: &s.Type},
		{key: "calendar", ptr: &s.Calendar, omit: s.Calendar == ""},
		{key: "label", ptr: &s.Label, omit: len(s.Label) == 0},
		{key: "identifiers", ptr: &s.Identifiers, omit: s.Identifiers == nil},
	}
}

func (s *ReferenceSystem) UnmarshalJSON(data []byte) error { return s.extra.decode(data, s.members()) }
func (s ReferenceSystem) MarshalJSON() ([]byte, error) { return s.extra.encode(s.members()) }

// Identifier labels one value of an identifier axis.
type Identifier struct {
	Label I18n

	extra jsonObject
}

func (i *Identifier) members() []member {
	return []member{{key: "label", ptr: &i.Label}}
}

func (i *Identifier) UnmarshalJSON(data []byte) error { return i.extra.decode(data, i.members()) }
func (i Identifier) MarshalJSON() ([]byte, error) { return i.extra.encode(i.members()) }

// NdArray holds range values; nil entries encode missing data.
type NdArray struct {
	Type      string
	DataType  string
	AxisNames []string
	Shape     []int
	Values    []*float64

	extra jsonObject
}

func (n *NdArray) members() []member {
	return []member{
		{key: "type", ptr: &n.Type},
		{key: "dataType", ptr: &n.DataType},
		{key: "axisNames", ptr: &n.AxisNames, omit: len(n.AxisNames) == 0},
		{key: "shape", ptr: &n.Shape},
		{key: "values", ptr: &n.Values},
	}
}

func (n *NdArray) UnmarshalJSON(data []byte) error { return n.extra.decode(data, n.members()) }
func (n NdArray) MarshalJSON() ([]byte, error) { return n.extra.encode(n.members()) }

// ParseCoverageTemplate decodes a CovJSON template.
func ParseCoverageTemplate(data []byte) (*Coverage, error) {
	var cov Coverage
	if err := json.Unmarshal(data, &cov); err != nil {
		return nil, fmt.Errorf("%w: decode coverage: %v", ErrTemplate, err)
	}
	if cov.Domain.Axes == nil {
		return nil, fmt.Errorf("%w: coverage has no domain axes", ErrTemplate)
	}
	if cov.Ranges == nil {
		cov.Ranges = orderedmap.New[string, *NdArray]()
	}
	return &cov, nil
}

// Timeseries is one parsed time-series CSV: a column per area code and a
// row per month.
type Timeseries struct {
	Codes  []string
	Times  []string
	Values [][]*float64
}

// ParseTimeseries reads "year,month,<code>..." rows. The first row is the header.
func ParseTimeseries(rows [][]string) (Timeseries, error) {
	if len(rows) == 0 {
		return Timeseries{}, fmt.Errorf("%w: empty time series", ErrMalformedRow)
	}
	header := rows[0]
	if len(header) < 3 {
		return Timeseries{}, fmt.Errorf("%w: header needs year, month and at least one code", ErrMalformedRow)
	}

	ts := Timeseries{Codes: make([]string, 0, len(header)-2)}
	for _, code := range header[2:] {
		ts.Codes = append(ts.Codes, strings.TrimSpace(code))
	}

	for i, row := range rows[1:] {
		line := i + 2
		if len(row) != len(header) {
			return Timeseries{}, fmt.Errorf("line %d: %w: want %d columns, got %d", line, ErrMalformedRow, len(header), len(row))
		}
		t, err := formatMonth(row[0], row[1])
		if err != nil {
			return Timeseries{}, fmt.Errorf("line %d: %w", line, err)
		}
		values := make([]*float64, 0, len(ts.Codes))
		for col, cell := range row[2:] {
			v, err := parseCell(cell)
			if err != nil {
				return Timeseries{}, fmt.Errorf("line %d, column %s: %w", line, ts.Codes[col], err)
			}
			values = append(values, v)
		}
		ts.Times = append(ts.Times, t)
		ts.Values = append(ts.Values, values)
	}
	return ts, nil
}

// formatMonth renders a year and month as "YYYY-MM".
func formatMonth(year, month string) (string, error) {
	year = strings.TrimSpace(year)
	month = strings.TrimSpace(month)
	if _, err := strconv.Atoi(year); err != nil {
		return "", fmt.Errorf("%w: year %q", ErrMalformedRow, year)
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return "", fmt.Errorf("%w: month %q", ErrMalformedRow, month)
	}
	if len(month) < 2 {
		month = "0" + month
	}
	return year + "-" + month, nil
}

// parseCell returns nil for missing values.
func parseCell(cell string) (*float64, error) {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "", "nan", "na":
		return nil, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: value %q", ErrMalformedRow, cell)
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	if math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: non-finite value %q", ErrMalformedRow, cell)
	}
	return &v, nil
}

// ParameterSeries pairs a range key with its data.
type ParameterSeries struct {
	Key    string
	Series Timeseries
}

// Labeler resolves an area code to its display label.
type Labeler func(code string) (I18n, bool)

// FillCoverage writes the series into the template: area and t axis values,
// identifier labels, and one range per parameter. All series must share the
// same codes and time steps.
func FillCoverage(cov *Coverage, area string, params []ParameterSeries, label Labeler) error {
	if len(params) == 0 {
		return fmt.Errorf("%w: no parameters", ErrTemplate)
	}
	first := params[0].Series
	for _, p := range params[1:] {
		if err := sameDomain(first, p.Series); err != nil {
			return fmt.Errorf("parameter %s: %w", p.Key, err)
		}
	}

	areaAxis, ok := cov.Domain.Axes.Get(area)
	if !ok || areaAxis == nil {
		return fmt.Errorf("%w: domain has no %q axis", ErrTemplate, area)
	}
	tAxis, ok := cov.Domain.Axes.Get(timeAxis)
	if !ok || tAxis == nil {
		return fmt.Errorf("%w: domain has no %q axis", ErrTemplate, timeAxis)
	}
	identifiers, err := identifierSystem(cov, area)
	if err != nil {
		return err
	}

	areaAxis.Values = append(areaAxis.Values, first.Codes...)
	for _, code := range first.Codes {
		l, ok := label(code)
		if !ok {
			return fmt.Errorf("%w: %s %q", ErrUnknownCode, area, code)
		}
		id, _ := identifiers.Get(code)
		id.Label = l
		identifiers.Set(code, id)
	}
	tAxis.Values = append(tAxis.Values, first.Times...)
	if tAxis.Values == nil {
		tAxis.Values = []string{}
	}

	for _, p := range params {
		rng, ok := cov.Ranges.Get(p.Key)
		if !ok || rng == nil {
			return fmt.Errorf("%w: no range for parameter %q", ErrTemplate, p.Key)
		}
		if rng.Values == nil {
			rng.Values = make([]*float64, 0, len(p.Series.Times)*len(p.Series.Codes))
		}
		for _, row := range p.Series.Values {
			rng.Values = append(rng.Values, row...)
		}
		rng.Shape = []int{len(p.Series.Times), len(p.Series.Codes)}
	}
	return nil
}

// identifierSystem finds the identifier map of the referencing entry that
// covers the area axis, creating it if the template left it out.
func identifierSystem(cov *Coverage, area string) (*orderedmap.OrderedMap[string, Identifier], error) {
	for i := range cov.Domain.Referencing {
		ref := &cov.Domain.Referencing[i]
		for _, c := range ref.Coordinates {
			if c != area {
				continue
			}
			if ref.System.Identifiers == nil {
				ref.System.Identifiers = orderedmap.New[string, Identifier]()
			}
			return ref.System.Identifiers, nil
		}
	}
	return nil, fmt.Errorf("%w: no referencing for %q axis", ErrTemplate, area)
}

func sameDomain(a, b Timeseries) error {
	if len(a.Codes) != len(b.Codes) {
		return fmt.Errorf("%w: %d codes, expected %d", ErrTableMismatch, len(b.Codes), len(a.Codes))
	}
	for i := range a.Codes {
		if a.Codes[i] != b.Codes[i] {
			return fmt.Errorf("%w: column %d is %q, expected %q", ErrTableMismatch, i+3, b.Codes[i], a.Codes[i])
		}
	}
	if len(a.Times) != len(b.Times) {
		return fmt.Errorf("%w: %d time steps, expected %d", ErrTableMismatch, len(b.Times), len(a.Times))
	}
	for i := range a.Times {
		if a.Times[i] != b.Times[i] {
			return fmt.Errorf("%w: time step %d is %s, expected %s", ErrTableMismatch, i+1, b.Times[i], a.Times[i])
		}
	}
	return nil
}

// MarshalCoverage serializes a coverage without whitespace.
func MarshalCoverage(cov *Coverage) ([]byte, error) {
	data, err := json.Marshal(cov)
	if err != nil {
		return nil, fmt.Errorf("serialize coverage: %w", err)
	}
	return data, nil
}
