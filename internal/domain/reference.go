package domain

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Column positions in the reference tables.
const (
	countryNameCol = 1
	countryCodeCol = 2

	clusterCountryCol = 0
	clusterCodeCol    = 2
)

// I18n maps language codes to labels. Only "en" is produced today.
type I18n map[string]string

// Country is one row of the country names table.
type Country struct {
	Code string
	Name I18n
}

// Countries is the ordered country code -> Country table.
type Countries struct {
	byCode *orderedmap.OrderedMap[string, Country]
}

// ParseCountries builds the country table from raw rows. The first row is a
// header and is skipped.
func ParseCountries(rows [][]string) (*Countries, error) {
	c := &Countries{byCode: orderedmap.New[string, Country]()}
	for i, row := range skipHeader(rows) {
		line := i + 2
		if len(row) <= countryCodeCol {
			return nil, fmt.Errorf("country table line %d: %w: want at least %d columns, got %d",
				line, ErrMalformedRow, countryCodeCol+1, len(row))
		}
		code := strings.TrimSpace(row[countryCodeCol])
		if code == "" {
			return nil, fmt.Errorf("country table line %d: %w: empty country code", line, ErrMalformedRow)
		}
		country := Country{Code: code, Name: I18n{"en": strings.TrimSpace(row[countryNameCol])}}
		if _, dup := c.byCode.Set(code, country); dup {
			return nil, fmt.Errorf("country table line %d: %w: duplicate country code %q", line, ErrMalformedRow, code)
		}
	}
	return c, nil
}

// Len returns the number of countries.
func (c *Countries) Len() int { return c.byCode.Len() }

// Get looks up a country by code.
func (c *Countries) Get(code string) (Country, bool) {
	return c.byCode.Get(code)
}

// Codes returns country codes in table order.
func (c *Countries) Codes() []string {
	codes := make([]string, 0, c.byCode.Len())
	for pair := c.byCode.Oldest(); pair != nil; pair = pair.Next() {
		codes = append(codes, pair.Key)
	}
	return codes
}

// Names returns the ordered code -> label object published as countries.js.
func (c *Countries) Names() *orderedmap.OrderedMap[string, I18n] {
	names := orderedmap.New[string, I18n]()
	for pair := c.byCode.Oldest(); pair != nil; pair = pair.Next() {
		names.Set(pair.Key, pair.Value.Name)
	}
	return names
}

// Clusters maps cluster codes to their owning country, and countries to
// their clusters, both in table order.
type Clusters struct {
	owner     *orderedmap.OrderedMap[string, string]
	byCountry *orderedmap.OrderedMap[string, []string]
}

// ParseClusters builds the cluster table from raw rows (header skipped) and
// checks it against the country table: both must name the same number of
// countries and every owning country must be known.
func ParseClusters(rows [][]string, countries *Countries) (*Clusters, error) {
	c := &Clusters{
		owner:     orderedmap.New[string, string](),
		byCountry: orderedmap.New[string, []string](),
	}
	for i, row := range skipHeader(rows) {
		line := i + 2
		if len(row) <= clusterCodeCol {
			return nil, fmt.Errorf("cluster table line %d: %w: want at least %d columns, got %d",
				line, ErrMalformedRow, clusterCodeCol+1, len(row))
		}
		country := strings.TrimSpace(row[clusterCountryCol])
		cluster := strings.TrimSpace(row[clusterCodeCol])
		if country == "" || cluster == "" {
			return nil, fmt.Errorf("cluster table line %d: %w: empty code", line, ErrMalformedRow)
		}
		if _, ok := countries.Get(country); !ok {
			return nil, fmt.Errorf("cluster table line %d: %w: country %q of cluster %q", line, ErrUnknownCode, country, cluster)
		}
		if _, dup := c.owner.Set(cluster, country); dup {
			return nil, fmt.Errorf("cluster table line %d: %w: duplicate cluster code %q", line, ErrMalformedRow, cluster)
		}
		members, _ := c.byCountry.Get(country)
		c.byCountry.Set(country, append(members, cluster))
	}

	if c.byCountry.Len() != countries.Len() {
		return nil, fmt.Errorf("%w: %d countries in cluster table, %d in country table",
			ErrTableMismatch, c.byCountry.Len(), countries.Len())
	}
	return c, nil
}

// Len returns the number of clusters.
func (c *Clusters) Len() int { return c.owner.Len() }

// CountryOf returns the country owning a cluster.
func (c *Clusters) CountryOf(cluster string) (string, bool) {
	return c.owner.Get(cluster)
}

// Codes returns cluster codes in table order.
func (c *Clusters) Codes() []string {
	codes := make([]string, 0, c.owner.Len())
	for pair := c.owner.Oldest(); pair != nil; pair = pair.Next() {
		codes = append(codes, pair.Key)
	}
	return codes
}

// CountryCodes returns the owning countries in order of first appearance.
func (c *Clusters) CountryCodes() []string {
	codes := make([]string, 0, c.byCountry.Len())
	for pair := c.byCountry.Oldest(); pair != nil; pair = pair.Next() {
		codes = append(codes, pair.Key)
	}
	return codes
}

// ClustersOf returns the clusters of a country in table order.
func (c *Clusters) ClustersOf(country string) []string {
	members, _ := c.byCountry.Get(country)
	return members
}

// Owners returns the ordered cluster -> country object published as clusters.js.
func (c *Clusters) Owners() *orderedmap.OrderedMap[string, string] {
	owners := orderedmap.New[string, string]()
	for pair := c.owner.Oldest(); pair != nil; pair = pair.Next() {
		owners.Set(pair.Key, pair.Value)
	}
	return owners
}

// References bundles both tables; they are loaded once per run.
type References struct {
	Countries *Countries
	Clusters  *Clusters
}

// CountryLabel returns the label of a country code.
func (r *References) CountryLabel(code string) (I18n, bool) {
	country, ok := r.Countries.Get(code)
	if !ok {
		return nil, false
	}
	return country.Name, true
}

// ClusterLabel labels a cluster with its owning country, e.g. "31DE (Germany)".
func (r *References) ClusterLabel(code string) (I18n, bool) {
	owner, ok := r.Clusters.CountryOf(code)
	if !ok {
		return nil, false
	}
	country, ok := r.Countries.Get(owner)
	if !ok {
		return nil, false
	}
	return I18n{"en": fmt.Sprintf("%s (%s)", code, country.Name["en"])}, true
}

func skipHeader(rows [][]string) [][]string {
	if len(rows) == 0 {
		return nil
	}
	return rows[1:]
}
