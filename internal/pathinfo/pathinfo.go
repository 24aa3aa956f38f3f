// Package pathinfo holds the pure string classification used by the
// upload pipeline: storage-path parsing, extension extraction and the
// coarse display kind. It carries no state and touches no services.
package pathinfo

import "strings"

// Kind is the coarse file category reported to users. It is display
// metadata only; admission into the pipeline is decided by a separate
// allow-list and the two deliberately do not agree (a .png classifies
// as IMAGE here yet is never admitted).
type Kind string

const (
	KindPDF         Kind = "PDF"
	KindImage       Kind = "IMAGE"
	KindUnsupported Kind = "UNSUPPORTED"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".webp": true,
}

// UserID extracts the user id from a storage path of the form
// /{container}/{userId}/{fileName}. Paths with fewer segments fall back
// to "unknown".
func UserID(filePath string) string {
	parts := strings.Split(filePath, "/")
	if len(parts) >= 3 {
		return parts[len(parts)-2]
	}
	return "unknown"
}

// FileName extracts the file name from a storage path, falling back to
// the last segment (or "unknown") when the path shape deviates.
func FileName(filePath string) string {
	parts := strings.Split(filePath, "/")
	if len(parts) == 0 {
		return "unknown"
	}
	return parts[len(parts)-1]
}

// Extension returns the lowercased extension of fileName including the
// leading dot, or "" when the name has no dot.
func Extension(fileName string) string {
	if !strings.Contains(fileName, ".") {
		return ""
	}
	parts := strings.Split(fileName, ".")
	return "." + strings.ToLower(parts[len(parts)-1])
}

// DetectKind maps an extension to its coarse display kind.
func DetectKind(extension string) Kind {
	switch {
	case extension == ".pdf":
		return KindPDF
	case imageExtensions[extension]:
		return KindImage
	default:
		return KindUnsupported
	}
}
