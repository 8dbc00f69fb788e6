package constants

import "strings"

// Document formats for the format tag on RawDocument and extraction jobs.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	CSV   = "CSV"
)

// AllowedExtensions holds the file extensions accepted by the loader.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"csv":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns the format tag for a normalized extension,
// or "" if the extension is not supported.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png":
		return IMAGE
	case "csv":
		return CSV
	default:
		return ""
	}
}
