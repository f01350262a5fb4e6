// Command genmock writes a synthetic monthly time-series CSV for every
// country or cluster in the reference tables, in the layout the timeseries
// step reads. Values follow a seasonal sine curve, so the output is the same
// on every run.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -area cluster \
//	  -from 1979 -to 2016 \
//	  -out data/timeseries/ERA_Tmean_clusters_mock.csv
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"

	"github.com/couchcryptid/ecem-data-etl/internal/adapter/tabular"
	"github.com/couchcryptid/ecem-data-etl/internal/config"
	"github.com/couchcryptid/ecem-data-etl/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	area := flag.String("area", config.AreaCountry, "area axis: country or cluster")
	from := flag.Int("from", 1979, "first year")
	to := flag.Int("to", 2016, "last year")
	out := flag.String("out", "", "output CSV path (required)")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return errors.New("missing required flag: -out")
	}
	if *from > *to {
		return fmt.Errorf("-from %d is after -to %d", *from, *to)
	}

	codes, err := areaCodes(cfg, *area)
	if err != nil {
		return err
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := writeSeries(f, codes, *from, *to); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", *out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("%s: %d %s columns, %d months", *out, len(codes), *area, (*to-*from+1)*12)
	return nil
}

func areaCodes(cfg *config.Config, area string) ([]string, error) {
	reader := tabular.NewReader()
	rows, err := reader.ReadTable(cfg.CountryNamesPath)
	if err != nil {
		return nil, err
	}
	countries, err := domain.ParseCountries(rows)
	if err != nil {
		return nil, err
	}

	switch area {
	case config.AreaCountry:
		return countries.Codes(), nil
	case config.AreaCluster:
		rows, err := reader.ReadTable(cfg.ClusterNamesPath)
		if err != nil {
			return nil, err
		}
		clusters, err := domain.ParseClusters(rows, countries)
		if err != nil {
			return nil, err
		}
		return clusters.Codes(), nil
	default:
		return nil, fmt.Errorf("unknown area %q", area)
	}
}

// writeSeries writes "year,month,<code>..." followed by one row per month.
func writeSeries(w io.Writer, codes []string, from, to int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"year", "month"}, codes...)); err != nil {
		return err
	}
	row := make([]string, len(codes)+2)
	for year := from; year <= to; year++ {
		for month := 1; month <= 12; month++ {
			row[0] = strconv.Itoa(year)
			row[1] = strconv.Itoa(month)
			for i := range codes {
				row[i+2] = strconv.FormatFloat(mockValue(i, year-from, month), 'f', 2, 64)
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// mockValue is a mean temperature in °C: a per-column baseline, a seasonal
// cycle peaking in July and a slow warming trend.
func mockValue(col, yearOffset, month int) float64 {
	base := 4 + float64(col%12)
	season := 9 * math.Sin(2*math.Pi*float64(month-4)/12)
	trend := 0.02 * float64(yearOffset)
	return base + season + trend
}
