package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const countryTemplate = `{
  "type": "Coverage",
  "domain": {
    "type": "Domain",
    "axes": {
      "t": {"values": []},
      "country": {"values": []}
    },
    "referencing": [
      {"coordinates": ["country"], "system": {"type": "IdentifierRS", "label": {"en": "Country"}, "identifiers": {}}},
      {"coordinates": ["t"], "system": {"type": "TemporalRS", "calendar": "Gregorian"}}
    ]
  },
  "parameters": {
    "TEMP": {"type": "Parameter", "observedProperty": {"label": {"en": "Temperature"}}}
  },
  "ranges": {
    "TEMP": {"type": "NdArray", "dataType": "float", "axisNames": ["t", "country"], "shape": [], "values": []}
  }
}`

func ptr(v float64) *float64 { return &v }

func TestParseTimeseries(t *testing.T) {
	t.Run("rows and missing values", func(t *testing.T) {
		ts, err := ParseTimeseries([][]string{
			{"year", "month", "AT", "DE"},
			{"1979", "1", "-1.5", "0.25"},
			{"1979", "12", "NaN", ""},
			{"1980", "02", "NA", "3"},
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"AT", "DE"}, ts.Codes)
		assert.Equal(t, []string{"1979-01", "1979-12", "1980-02"}, ts.Times)
		assert.Equal(t, [][]*float64{
			{ptr(-1.5), ptr(0.25)},
			{nil, nil},
			{nil, ptr(3)},
		}, ts.Values)
	})

	t.Run("header only", func(t *testing.T) {
		ts, err := ParseTimeseries([][]string{{"year", "month", "AT"}})
		require.NoError(t, err)
		assert.Empty(t, ts.Times)
	})

	errorCases := []struct {
		name string
		rows [][]string
		msg  string
	}{
		{"empty", nil, "empty time series"},
		{"no code columns", [][]string{{"year", "month"}}, "at least one code"},
		{"ragged row", [][]string{{"year", "month", "AT"}, {"1979", "1"}}, "line 2"},
		{"bad month", [][]string{{"year", "month", "AT"}, {"1979", "13", "1"}}, `month "13"`},
		{"bad year", [][]string{{"year", "month", "AT"}, {"x", "1", "1"}}, `year "x"`},
		{"bad value", [][]string{{"year", "month", "AT"}, {"1979", "1", "warm"}}, "column AT"},
		{"infinite value", [][]string{{"year", "month", "AT"}, {"1979", "1", "+Inf"}}, "non-finite"},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTimeseries(tt.rows)
			require.ErrorIs(t, err, ErrMalformedRow)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestFillCoverage(t *testing.T) {
	refs := testReferences(t)
	cov, err := ParseCoverageTemplate([]byte(countryTemplate))
	require.NoError(t, err)

	ts, err := ParseTimeseries([][]string{
		{"year", "month", "DE", "AT"},
		{"1979", "1", "1.5", "-2"},
		{"1979", "2", "", "0.5"},
	})
	require.NoError(t, err)

	err = FillCoverage(cov, AreaCountry, []ParameterSeries{{Key: "TEMP", Series: ts}}, refs.CountryLabel)
	require.NoError(t, err)

	data, err := MarshalCoverage(cov)
	require.NoError(t, err)

	expected := `{"type":"Coverage","domain":{"type":"Domain","axes":{"t":{"values":["1979-01","1979-02"]},"country":{"values":["DE","AT"]}},` +
		`"referencing":[{"coordinates":["country"],"system":{"type":"IdentifierRS","label":{"en":"Country"},` +
		`"identifiers":{"DE":{"label":{"en":"Germany"}},"AT":{"label":{"en":"Austria"}}}}},` +
		`{"coordinates":["t"],"system":{"type":"TemporalRS","calendar":"Gregorian"}}]},` +
		`"parameters":{"TEMP":{"type":"Parameter","observedProperty":{"label":{"en":"Temperature"}}}},` +
		`"ranges":{"TEMP":{"type":"NdArray","dataType":"float","axisNames":["t","country"],"shape":[2,2],"values":[1.5,-2,null,0.5]}}}`
	assert.JSONEq(t, expected, string(data))
	assert.Equal(t, expected, string(data), "key order must follow the template")
}

func TestFillCoverage_MultipleParameters(t *testing.T) {
	refs := testReferences(t)
	tmpl := `{"type":"Coverage","domain":{"type":"Domain","axes":{"t":{"values":[]},"cluster":{"values":[]}},
		"referencing":[{"coordinates":["cluster"],"system":{"type":"IdentifierRS"}}]},
		"ranges":{"TEMP":{"type":"NdArray","dataType":"float","shape":[],"values":[]},
		          "TEMP05":{"type":"NdArray","dataType":"float","shape":[],"values":[]}}}`
	cov, err := ParseCoverageTemplate([]byte(tmpl))
	require.NoError(t, err)

	mean, err := ParseTimeseries([][]string{{"y", "m", "31DE", "32DE"}, {"2050", "6", "20", "21"}})
	require.NoError(t, err)
	low, err := ParseTimeseries([][]string{{"y", "m", "31DE", "32DE"}, {"2050", "6", "18", "19"}})
	require.NoError(t, err)

	err = FillCoverage(cov, AreaCluster, []ParameterSeries{{Key: "TEMP", Series: mean}, {Key: "TEMP05", Series: low}}, refs.ClusterLabel)
	require.NoError(t, err)

	rng, ok := cov.Ranges.Get("TEMP05")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, rng.Shape)
	assert.Equal(t, []*float64{ptr(18), ptr(19)}, rng.Values)

	ids := cov.Domain.Referencing[0].System.Identifiers
	require.NotNil(t, ids)
	id, ok := ids.Get("32DE")
	require.True(t, ok)
	assert.Equal(t, "32DE (Germany)", id.Label["en"])
}

func TestFillCoverage_Errors(t *testing.T) {
	refs := testReferences(t)
	series := func(rows ...[]string) Timeseries {
		ts, err := ParseTimeseries(rows)
		require.NoError(t, err)
		return ts
	}
	base := series([]string{"y", "m", "AT"}, []string{"1979", "1", "1"})

	tests := []struct {
		name   string
		area   string
		params []ParameterSeries
		target error
		msg    string
	}{
		{"no parameters", AreaCountry, nil, ErrTemplate, "no parameters"},
		{"missing range", AreaCountry, []ParameterSeries{{Key: "WIND", Series: base}}, ErrTemplate, `"WIND"`},
		{"missing axis", AreaCluster, []ParameterSeries{{Key: "TEMP", Series: base}}, ErrTemplate, `"cluster" axis`},
		{
			"unknown code", AreaCountry,
			[]ParameterSeries{{Key: "TEMP", Series: series([]string{"y", "m", "XX"}, []string{"1979", "1", "1"})}},
			ErrUnknownCode, `"XX"`,
		},
		{
			"diverging codes", AreaCountry,
			[]ParameterSeries{
				{Key: "TEMP", Series: base},
				{Key: "TEMP", Series: series([]string{"y", "m", "DE"}, []string{"1979", "1", "1"})},
			},
			ErrTableMismatch, "column 3",
		},
		{
			"diverging times", AreaCountry,
			[]ParameterSeries{
				{Key: "TEMP", Series: base},
				{Key: "TEMP", Series: series([]string{"y", "m", "AT"}, []string{"1979", "2", "1"})},
			},
			ErrTableMismatch, "time step 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cov, err := ParseCoverageTemplate([]byte(countryTemplate))
			require.NoError(t, err)
			err = FillCoverage(cov, tt.area, tt.params, refs.CountryLabel)
			require.ErrorIs(t, err, tt.target)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseCoverageTemplate_Invalid(t *testing.T) {
	_, err := ParseCoverageTemplate([]byte("{not json"))
	require.ErrorIs(t, err, ErrTemplate)

	_, err = ParseCoverageTemplate([]byte(`{"type":"Coverage","domain":{"type":"Domain"}}`))
	require.ErrorIs(t, err, ErrTemplate)
	assert.Contains(t, err.Error(), "no domain axes")
}

func TestFillCoverage_KeepsTemplateMembers(t *testing.T) {
	refs := testReferences(t)
	tmpl := `{"type":"Coverage","domain":{"type":"Domain","domainType":"MultiPointSeries",
		"axes":{"t":{"values":[]},"country":{"dataType":"tuple","coordinates":["x","y"],"values":[]}},
		"referencing":[{"coordinates":["country"],"system":{"type":"IdentifierRS","id":"https://example.org/countries",
			"label":{"en":"Country"},"targetConcept":{"label":{"en":"Country"}},
			"identifiers":{"AT":{"label":{"en":"old"},"description":{"en":"Alpine"}}}}}]},
		"ranges":{"TEMP":{"type":"NdArray","dataType":"float","unit":{"symbol":"K"},"shape":[],"values":[]}}}`
	cov, err := ParseCoverageTemplate([]byte(tmpl))
	require.NoError(t, err)

	ts, err := ParseTimeseries([][]string{{"year", "month", "AT"}, {"1979", "1", "1"}})
	require.NoError(t, err)
	require.NoError(t, FillCoverage(cov, AreaCountry, []ParameterSeries{{Key: "TEMP", Series: ts}}, refs.CountryLabel))

	data, err := MarshalCoverage(cov)
	require.NoError(t, err)

	expected := `{"type":"Coverage","domain":{"type":"Domain","domainType":"MultiPointSeries",` +
		`"axes":{"t":{"values":["1979-01"]},"country":{"dataType":"tuple","coordinates":["x","y"],"values":["AT"]}},` +
		`"referencing":[{"coordinates":["country"],"system":{"type":"IdentifierRS","id":"https://example.org/countries",` +
		`"label":{"en":"Country"},"targetConcept":{"label":{"en":"Country"}},` +
		`"identifiers":{"AT":{"label":{"en":"Austria"},"description":{"en":"Alpine"}}}}}]},` +
		`"ranges":{"TEMP":{"type":"NdArray","dataType":"float","unit":{"symbol":"K"},"shape":[1,1],"values":[1]}}}`
	assert.Equal(t, expected, string(data))
}
