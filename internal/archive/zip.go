package archive

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/maltedev/feed-image-extractor/internal/models"
)

const namePrefix = "FileConverterBuddyDownload"

// ArchiveName returns the bundle filename for t, e.g.
// "FileConverterBuddyDownload - 2024-05-01 14:30.zip".
func ArchiveName(t time.Time) string {
	return fmt.Sprintf("%s - %s.zip", namePrefix, t.Format("2006-01-02 15:04"))
}

// ZipArchiver writes bundle entries as zip members named folder/name.
// Already-compressed image formats are stored, everything else is deflated.
type ZipArchiver struct {
	now func() time.Time
}

func NewZipArchiver() *ZipArchiver {
	return &ZipArchiver{now: time.Now}
}

func (a *ZipArchiver) Write(w io.Writer, entries []models.BundleEntry) error {
	zw := zip.NewWriter(w)
	modified := a.now()

	for _, entry := range entries {
		name := entry.Name
		if entry.Folder != "" {
			name = path.Join(entry.Folder, entry.Name)
		}

		header := &zip.FileHeader{
			Name:     name,
			Method:   compressionMethod(entry),
			Modified: modified,
		}

		fw, err := zw.CreateHeader(header)
		if err != nil {
			zw.Close()
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
		if _, err := fw.Write(entry.Data); err != nil {
			zw.Close()
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func compressionMethod(entry models.BundleEntry) uint16 {
	ct := strings.ToLower(entry.ContentType)
	switch {
	case strings.Contains(ct, "svg"), strings.Contains(ct, "bmp"), strings.Contains(ct, "tiff"):
		return zip.Deflate
	case strings.HasPrefix(ct, "image/"):
		return zip.Store
	}

	switch strings.ToLower(path.Ext(entry.Name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif":
		return zip.Store
	}
	return zip.Deflate
}
