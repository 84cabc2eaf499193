package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maltedev/feed-image-extractor/internal/app"
	"github.com/maltedev/feed-image-extractor/internal/feed"
	"github.com/maltedev/feed-image-extractor/internal/models"
	"github.com/maltedev/feed-image-extractor/internal/storage"
)

var (
	parseFile      string
	parseStorePath string
	parseJSON      bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [url]",
	Short: "Parse a product feed from a URL or a local file",
	Long: `Parse fetches the feed (direct request first, then the public proxy
relays) or reads it from --file, extracts products and image URLs, and saves
the result to the snapshot store for a later download.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVarP(&parseFile, "file", "f", "", "read feed content from a local file instead of a URL")
	parseCmd.Flags().StringVar(&parseStorePath, "store", defaultStorePath, "snapshot store file")
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "print the parsed feed as JSON")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	if (len(args) == 0) == (parseFile == "") {
		return fmt.Errorf("provide either a feed URL or --file")
	}

	ctx, cancel := signalContext()
	defer cancel()

	pipeline := app.NewPipeline(cfg, log)
	defer pipeline.Close()

	bar := stderrProgress()

	var (
		result *models.ParsedFeed
		source string
		err    error
	)
	if parseFile != "" {
		content, readErr := os.ReadFile(parseFile)
		if readErr != nil {
			return fmt.Errorf("failed to read feed file: %w", readErr)
		}
		if source, err = filepath.Abs(parseFile); err != nil {
			source = parseFile
		}
		bar.onScope(feed.InitialScope(string(content)))
		result, err = pipeline.Feeds.ParseText(ctx, string(content), bar.onProgress)
	} else {
		source = args[0]
		result, err = pipeline.Feeds.ParseURL(ctx, source, bar.onScope, bar.onProgress)
	}
	bar.finish()
	if err != nil {
		return err
	}

	if len(result.Products) == 0 {
		return feed.ErrNoProducts
	}

	store, err := storage.NewSnapshotStore(parseStorePath)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	if err := store.Save(source, result); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	out := cmd.OutOrStdout()
	if parseJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.FeedTitle != "" {
		fmt.Fprintf(out, "%s\n", result.FeedTitle)
	}
	fmt.Fprintf(out, "Parsed %d products with %d images from %s\n", result.TotalCount, result.ImageCount(), source)
	for _, p := range result.Products {
		fmt.Fprintf(out, "  %-12s %3d images  %s\n", p.ID, len(p.Images), p.Title)
	}
	return nil
}
