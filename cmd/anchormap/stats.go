package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/anchormap/anchormap/config"
	"github.com/anchormap/anchormap/internal/search"
	"github.com/anchormap/anchormap/internal/store"
)

func statsCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.Storage.DataDir, cfg.Embedding.Dimensions)
			if err != nil {
				return err
			}
			defer st.Close()
			idx, err := search.Open(indexPath(cfg))
			if err != nil {
				return err
			}
			defer idx.Close()

			n, err := st.Count(cmd.Context())
			if err != nil {
				return err
			}
			docs, err := idx.Count()
			if err != nil {
				return err
			}
			fmt.Printf("posts indexed:   %d\n", n)
			fmt.Printf("keyword docs:    %d\n", docs)
			fmt.Printf("embedding model: %s (%d dims)\n", cfg.Embedding.Model, cfg.Embedding.Dimensions)
			fmt.Printf("data dir:        %s\n", cfg.Storage.DataDir)

			run, err := st.LatestBuildRun(cmd.Context())
			if errors.Is(err, store.ErrNotFound) {
				fmt.Println("last build:      never")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("last build:      %s (%s, %d indexed, %d failed)\n",
				run.StartedAt.Format(time.RFC3339), run.Status, run.PagesIndexed, run.PagesFailed)
			return nil
		},
	}
}
