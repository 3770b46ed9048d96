package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ballotbox/internal/catalog"
	"ballotbox/internal/domain"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect catalog reference data",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Validate catalog YAML files",
	Long: `Loads and validates each catalog file concurrently and reports every
problem found. Without arguments the embedded default catalog is checked.`,
	RunE: runCatalogValidate,
}

type catalogResult struct {
	path    string
	catalog *domain.Catalog
	err     error
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		c := catalog.Default()
		fmt.Fprintf(out, "ok  (embedded) %s\n", describeCatalog(c))
		return nil
	}

	results := make([]catalogResult, len(args))
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			c, err := catalog.Load(path)
			results[i] = catalogResult{path: path, catalog: c, err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			logger.Warn("catalog rejected", zap.String("path", r.path), zap.Error(r.err))
			fmt.Fprintf(out, "FAIL %s: %v\n", r.path, r.err)
			continue
		}
		fmt.Fprintf(out, "ok  %s %s\n", r.path, describeCatalog(r.catalog))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d catalogs invalid", failed, len(args))
	}
	return nil
}

func describeCatalog(c *domain.Catalog) string {
	return fmt.Sprintf("(%d zones, %d ideology, %d vote bank, %d conspiracy, %d headline cards)",
		len(c.Zones), len(c.IdeologyCards), len(c.VoteBankCards), len(c.ConspiracyCards), len(c.HeadlineCards))
}
