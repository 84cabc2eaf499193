package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/maltedev/feed-image-extractor/internal/app"
	"github.com/maltedev/feed-image-extractor/internal/archive"
	"github.com/maltedev/feed-image-extractor/internal/downloader"
	"github.com/maltedev/feed-image-extractor/internal/storage"
)

var (
	downloadStorePath string
	downloadSource    string
	downloadProducts  []string
	downloadImages    []string
	downloadFolders   bool
	downloadFolder    string
	downloadOut       string
	downloadS3Bucket  string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the images of a parsed feed into a ZIP bundle",
	Long: `Download takes a feed saved by "parse", fetches the selected images one
at a time and writes them into a ZIP file. With --s3-bucket the bundle is
also uploaded and a temporary download link is printed.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVar(&downloadStorePath, "store", defaultStorePath, "snapshot store file")
	downloadCmd.Flags().StringVar(&downloadSource, "source", "", "feed source to use (default: most recently parsed)")
	downloadCmd.Flags().StringSliceVar(&downloadProducts, "product", nil, "product id to include (repeatable, default: all)")
	downloadCmd.Flags().StringSliceVar(&downloadImages, "image", nil, "image URL to include (repeatable, default: all)")
	downloadCmd.Flags().BoolVar(&downloadFolders, "folders", false, "group images into one folder per product")
	downloadCmd.Flags().StringVar(&downloadFolder, "folder", "", "put every image into this folder")
	downloadCmd.Flags().StringVarP(&downloadOut, "out", "o", "", "output ZIP path (default: generated name in the current directory)")
	downloadCmd.Flags().StringVar(&downloadS3Bucket, "s3-bucket", "", "upload the bundle to this S3 bucket")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, err := storage.NewSnapshotStore(downloadStorePath)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}

	var (
		snapshot *storage.Snapshot
		ok       bool
	)
	if downloadSource != "" {
		snapshot, ok = store.Get(downloadSource)
	} else {
		snapshot, ok = store.Latest()
	}
	if !ok {
		return storage.ErrSnapshotNotFound
	}

	items := downloader.PlanDownloads(snapshot.Feed.Products, downloader.Selection{
		ProductIDs: downloadProducts,
		ImageURLs:  downloadImages,
	})
	if len(items) == 0 {
		return fmt.Errorf("no images match the selection")
	}

	log.Info("downloading images", "source", snapshot.Source, "count", len(items))

	result, err := app.NewDownloader(cfg, log).Download(ctx, items, downloader.Options{
		UseFolders:   downloadFolders,
		CustomFolder: downloadFolder,
	})
	if err != nil {
		if statusErr := store.UpdateStatus(snapshot.Source, storage.StatusFailed, err.Error()); statusErr != nil {
			log.Warn("failed to update snapshot status", "error", statusErr)
		}
		return err
	}

	var buf bytes.Buffer
	if err := downloader.WriteBundle(&buf, archive.NewZipArchiver(), result.Entries); err != nil {
		return err
	}

	name := archive.ArchiveName(time.Now())
	out := downloadOut
	if out == "" {
		out = name
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s\n", result.Summary())
	fmt.Fprintf(w, "Saved %s\n", out)

	bucket := downloadS3Bucket
	if bucket == "" {
		bucket = cfg.Archive.S3Bucket
	}
	if bucket != "" {
		s3Store, err := archive.NewS3StoreFromEnv(ctx, cfg.Archive.S3Region, bucket, cfg.Archive.S3Prefix, log)
		if err != nil {
			return err
		}
		key, err := s3Store.Upload(ctx, filepath.Base(out), bytes.NewReader(buf.Bytes()))
		if err != nil {
			return err
		}
		link, err := s3Store.PresignedURL(ctx, key)
		if err != nil {
			log.Warn("failed to sign download link", "error", err)
			fmt.Fprintf(w, "Uploaded s3://%s/%s\n", bucket, key)
		} else {
			fmt.Fprintf(w, "Uploaded s3://%s/%s\n%s\n", bucket, key, link)
		}
	}

	if err := store.UpdateStatus(snapshot.Source, storage.StatusDownloaded, ""); err != nil {
		log.Warn("failed to update snapshot status", "error", err)
	}
	return nil
}
