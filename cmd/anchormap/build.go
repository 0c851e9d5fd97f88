package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/anchormap/anchormap/config"
)

func buildCMD(cfgPath *string) *cobra.Command {
	var fresh bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Crawl the sitemap and (re)build the link index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if fresh {
				cfg, err := config.LoadConfig(*cfgPath)
				if err != nil {
					return err
				}
				if err := removeIndexData(cfg); err != nil {
					return err
				}
			}

			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			summary, err := a.pipeline.Build(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("build %s finished in %s\n", summary.RunID, summary.Duration.Round(time.Second))
			fmt.Printf("  discovered: %d\n", summary.PagesDiscovered)
			fmt.Printf("  indexed:    %d\n", summary.PagesIndexed)
			fmt.Printf("  failed:     %d\n", summary.PagesFailed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "discard existing index data before building")
	return cmd
}

// removeIndexData clears the sqlite database and keyword index but
// leaves the data directory itself in place.
func removeIndexData(cfg *config.Config) error {
	for _, name := range []string{"anchormap.db", "anchormap.db-wal", "anchormap.db-shm", "keyword.bleve"} {
		if err := os.RemoveAll(filepath.Join(cfg.Storage.DataDir, name)); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}
