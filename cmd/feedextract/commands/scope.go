package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maltedev/feed-image-extractor/internal/feed"
)

var scopeFile string

var scopeCmd = &cobra.Command{
	Use:   "scope",
	Short: "Estimate the number of products and images in a feed file",
	Long: `Scope counts item and image tags without parsing. The product figure
is an upper bound and can exceed the real item count.`,
	RunE: runScope,
}

func init() {
	scopeCmd.Flags().StringVarP(&scopeFile, "file", "f", "", "feed file (required)")
	scopeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(scopeCmd)
}

func runScope(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(scopeFile)
	if err != nil {
		return fmt.Errorf("failed to read feed file: %w", err)
	}

	scope := feed.InitialScope(string(content))
	fmt.Fprintf(cmd.OutOrStdout(), "~%d products, ~%d images\n", scope.Products, scope.Images)
	return nil
}
