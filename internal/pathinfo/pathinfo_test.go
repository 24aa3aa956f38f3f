package pathinfo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserID(t *testing.T) {
	require.Equal(t, "user123", UserID("/user-documents/user123/report.pdf"))
	require.Equal(t, "user123", UserID("user-documents/user123/report.pdf"))
	require.Equal(t, "unknown", UserID("report.pdf"))
	require.Equal(t, "unknown", UserID(""))
}

func TestFileName(t *testing.T) {
	require.Equal(t, "report.pdf", FileName("/user-documents/user123/report.pdf"))
	require.Equal(t, "report.pdf", FileName("report.pdf"))
	require.Equal(t, "", FileName(""))
}

func TestExtension(t *testing.T) {
	require.Equal(t, ".pdf", Extension("report.pdf"))
	require.Equal(t, ".pdf", Extension("Report.PDF"))
	require.Equal(t, ".gz", Extension("archive.tar.gz"))
	require.Equal(t, "", Extension("Makefile"))
}

func TestDetectKind(t *testing.T) {
	require.Equal(t, KindPDF, DetectKind(".pdf"))
	require.Equal(t, KindImage, DetectKind(".png"))
	require.Equal(t, KindImage, DetectKind(".webp"))
	require.Equal(t, KindUnsupported, DetectKind(".docx"))
	require.Equal(t, KindUnsupported, DetectKind(".exe"))
	require.Equal(t, KindUnsupported, DetectKind(""))
}
