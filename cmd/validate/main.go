// Command validate checks the published data files against the reference
// tables: the manifest matches the files on disk, the JS modules list exactly
// the table keys, the GeoJSON layers carry known codes and every CovJSON
// range has the shape of its axes.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -country-names data/ECEM_countrynames.csv \
//	  -cluster-names data/ECEM_cluster_names.csv \
//	  -app-data-dir public/app/data
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/ecem-data-etl/internal/adapter/tabular"
	"github.com/couchcryptid/ecem-data-etl/internal/config"
	"github.com/couchcryptid/ecem-data-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	countryNames := flag.String("country-names", cfg.CountryNamesPath, "country names table")
	clusterNames := flag.String("cluster-names", cfg.ClusterNamesPath, "cluster names table")
	appDataDir := flag.String("app-data-dir", cfg.AppDataDir, "directory holding the published data files")
	flag.Parse()

	os.Exit(run(os.Stdout, *countryNames, *clusterNames, *appDataDir))
}

func run(out io.Writer, countryNames, clusterNames, appDataDir string) int {
	fmt.Fprintln(out, "=== ECEM Data Integrity Validation ===")
	fmt.Fprintln(out)

	refs, err := loadReferences(countryNames, clusterNames)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load reference tables: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateManifest(appDataDir),
		validateJSModules(appDataDir, refs),
		validateLayers(appDataDir, refs),
		validateCoverages(appDataDir, refs),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "References: %d countries, %d clusters\n", refs.Countries.Len(), refs.Clusters.Len())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func loadReferences(countryNames, clusterNames string) (*domain.References, error) {
	reader := tabular.NewReader()
	rows, err := reader.ReadTable(countryNames)
	if err != nil {
		return nil, err
	}
	countries, err := domain.ParseCountries(rows)
	if err != nil {
		return nil, err
	}
	rows, err = reader.ReadTable(clusterNames)
	if err != nil {
		return nil, err
	}
	clusters, err := domain.ParseClusters(rows, countries)
	if err != nil {
		return nil, err
	}
	return &domain.References{Countries: countries, Clusters: clusters}, nil
}
