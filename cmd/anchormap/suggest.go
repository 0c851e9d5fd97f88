package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anchormap/anchormap/internal/suggest"
)

func suggestCMD(cfgPath *string) *cobra.Command {
	var find string
	var jsonPath string
	cmd := &cobra.Command{
		Use:   "suggest [post-url]",
		Short: "Suggest internal links for one post",
		Long:  "Suggest internal links for a post, addressed either by its URL or by title keywords via --find.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && find == "" {
				return fmt.Errorf("give a post URL or use --find with title keywords")
			}

			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			sourceURL := ""
			if len(args) == 1 {
				sourceURL = args[0]
			} else {
				hits, err := a.pipeline.FindPosts(cmd.Context(), find, 1)
				if err != nil {
					return err
				}
				if len(hits) == 0 {
					return fmt.Errorf("no indexed post matches %q", find)
				}
				sourceURL = hits[0].URL
				fmt.Printf("matched %q -> %s\n\n", find, sourceURL)
			}

			suggestions, err := a.pipeline.Suggest(cmd.Context(), sourceURL)
			if err != nil {
				return err
			}

			if jsonPath != "" {
				if err := suggest.ExportFile(jsonPath, suggestions); err != nil {
					return err
				}
				fmt.Printf("wrote %d suggestions to %s\n", len(suggestions), jsonPath)
				return nil
			}
			suggest.Render(os.Stdout, suggestions)
			return nil
		},
	}
	cmd.Flags().StringVar(&find, "find", "", "locate the source post by title keywords instead of URL")
	cmd.Flags().StringVar(&jsonPath, "json", "", "write suggestions to this file as JSON instead of printing")
	return cmd
}
