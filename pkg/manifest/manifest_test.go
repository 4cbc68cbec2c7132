package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/radar/internal/models"
)

func testFiles() []models.DocumentMetadata {
	return []models.DocumentMetadata{
		{
			FileID:     "nike__10k__2025-07-25__sec_edgar__en__doc.htm",
			CompanyID:  "nike",
			DocType:    models.DocType10K,
			SourceType: models.SourcePrimary,
			SHA256:     strings.Repeat("ab", 32),
		},
		{
			FileID:     "inditex__annual_report__2025-03-12__ir__en__report.pdf",
			CompanyID:  "inditex",
			DocType:    models.DocTypeAnnualReport,
			SourceType: models.SourcePrimary,
			SHA256:     strings.Repeat("cd", 32),
		},
		{
			FileID:     "inditex__press_release__2025-09-10__ir__en__q.html",
			CompanyID:  "inditex",
			DocType:    models.DocTypePressRelease,
			SourceType: models.SourcePrimary,
			SHA256:     strings.Repeat("ef", 32),
		},
	}
}

func TestNewStampsBuildEnvironment(t *testing.T) {
	m := New(testFiles(), BuildInfo{
		AsOf:         "2025-12-31",
		Since:        "2025-01-01",
		PeerSet:      "fashion_global_8",
		BuildVersion: "0.1.0",
	})

	assert.Equal(t, "fashion_global_8", m.Package.PeerSet)
	assert.Equal(t, "2025-12-31", m.Package.AsOf)
	assert.NotEmpty(t, m.Package.GoVersion)
	assert.Len(t, m.Files, 3)
}

func TestWriteAndReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	m := New(testFiles(), BuildInfo{AsOf: "2025-12-31", PeerSet: "fashion_global_8"})
	require.NoError(t, Write(m, path))

	// No temp file may remain after an atomic write.
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, m.Package.AsOf, loaded.Package.AsOf)
	require.Len(t, loaded.Files, 3)
	assert.Equal(t, m.Files[0].FileID, loaded.Files[0].FileID)
}

func TestWriteChecksumsFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checksums.txt")

	m := &models.Manifest{Files: testFiles()}
	require.NoError(t, WriteChecksums(m, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Repeat("ab", 32)+"  nike__10k__2025-07-25__sec_edgar__en__doc.htm", lines[0])
	assert.True(t, strings.HasSuffix(string(content), "\n"))
}

func TestWriteChecksumsEmptyBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checksums.txt")

	require.NoError(t, WriteChecksums(&models.Manifest{}, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\n", string(content))
}

func TestVerifyChecksums(t *testing.T) {
	root := t.TempDir()
	docDir := filepath.Join(root, "companies", "nike", "sec_edgar")
	require.NoError(t, os.MkdirAll(docDir, 0o755))

	body := []byte("<html>filing</html>")
	sum := sha256.Sum256(body)

	good := models.DocumentMetadata{
		FileID: "nike__10k__2025-07-25__sec_edgar__en__doc.htm",
		SHA256: hex.EncodeToString(sum[:]),
	}
	missing := models.DocumentMetadata{
		FileID: "nike__10q__2025-04-01__sec_edgar__en__q.htm",
		SHA256: hex.EncodeToString(sum[:]),
	}
	require.NoError(t, os.WriteFile(filepath.Join(docDir, good.FileID), body, 0o644))

	failed, err := VerifyChecksums(&models.Manifest{Files: []models.DocumentMetadata{good, missing}}, root)
	require.NoError(t, err)
	assert.Equal(t, []string{missing.FileID}, failed)
}

func TestWriteReadmeCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README.md")

	m := New(testFiles(), BuildInfo{
		AsOf:         "2025-12-31",
		PeerSet:      "fashion_global_8",
		LicenseNotes: "All documents are public disclosures.",
	})
	require.NoError(t, WriteReadme(m, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, "Peer set: fashion_global_8")
	assert.Contains(t, text, "Documents: 3")
	assert.Contains(t, text, "- 10k: 1")
	assert.Contains(t, text, "- annual_report: 1")
	assert.Contains(t, text, "- press_release: 1")
	assert.Contains(t, text, "- primary: 3")
	assert.Contains(t, text, "All documents are public disclosures.")
}
