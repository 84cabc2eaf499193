package downloader

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

const (
	MaxFolderNameLength = 50
	MaxEntryNameLength  = 255

	fallbackName = "untitled"
)

var (
	illegalNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\s]`)
	repeatedUnder    = regexp.MustCompile(`_+`)
)

// SanitizeFilename turns name into a safe archive entry or folder name:
// illegal characters and whitespace become underscores, runs of underscores
// collapse, leading and trailing underscores and dots are trimmed and the
// result is capped at maxLen runes.
func SanitizeFilename(name string, maxLen int) string {
	cleaned := illegalNameChars.ReplaceAllString(name, "_")
	cleaned = repeatedUnder.ReplaceAllString(cleaned, "_")
	cleaned = strings.Trim(cleaned, "_.")

	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			cleaned = strings.TrimRight(string(runes[:maxLen]), "_.")
		}
	}

	if cleaned == "" {
		return fallbackName
	}
	return cleaned
}

// sanitizeEntryName keeps the extension when the base name has to be cut.
func sanitizeEntryName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if len(ext) > 6 || illegalNameChars.MatchString(ext) {
		ext = ""
	}
	base := strings.TrimSuffix(name, path.Ext(name))
	if ext == "" {
		base = name
	}

	return SanitizeFilename(base, MaxEntryNameLength-len(ext)) + ext
}

// uniqueName appends _2, _3 and so on until name is unused.
func uniqueName(name string, used map[string]struct{}) string {
	if _, ok := used[name]; !ok {
		used[name] = struct{}{}
		return name
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := base + "_" + strconv.Itoa(i) + ext
		if _, ok := used[candidate]; !ok {
			used[candidate] = struct{}{}
			return candidate
		}
	}
}
