package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maltedev/feed-image-extractor/internal/storage"
)

var listStore string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show parsed feeds kept in the snapshot store",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listStore, "store", defaultStorePath, "snapshot store file")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := storage.NewSnapshotStore(listStore)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}

	snapshots := store.List()
	if len(snapshots) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No parsed feeds stored")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSTATUS\tPRODUCTS\tIMAGES\tUPDATED")
	for _, s := range snapshots {
		products, images := 0, 0
		if s.Feed != nil {
			products, images = s.Feed.TotalCount, s.Feed.ImageCount()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			s.Source, s.Status, products, images, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	stats := store.GetStats()
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d feeds: %d parsed, %d downloaded, %d failed\n",
		stats["total"], stats[storage.StatusParsed], stats[storage.StatusDownloaded], stats[storage.StatusFailed])
	return nil
}
