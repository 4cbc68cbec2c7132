// Package manifest writes the build artifacts that index a data package:
// manifest.json, checksums.txt, and a human-readable README.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/xhad/radar/internal/models"
)

// BuildInfo carries the run parameters recorded in package metadata.
type BuildInfo struct {
	AsOf         string
	Since        string
	PeerSet      string
	BuildVersion string
	LicenseNotes string
}

// New assembles a manifest from fetched document records and build
// parameters, stamping in the build environment.
func New(files []models.DocumentMetadata, info BuildInfo) *models.Manifest {
	host, _ := os.Hostname()

	return &models.Manifest{
		Package: models.PackageMetadata{
			AsOf:         info.AsOf,
			Since:        info.Since,
			PeerSet:      info.PeerSet,
			BuildVersion: info.BuildVersion,
			BuildHost:    host,
			GoVersion:    runtime.Version(),
			GitCommit:    GitCommit(),
			LicenseNotes: info.LicenseNotes,
		},
		Files: files,
	}
}

// Write serializes the manifest as indented JSON. The write is atomic: a
// temp file in the same directory is renamed over the target, so a crashed
// build never leaves a truncated manifest.
func Write(manifest *models.Manifest, path string) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Read loads a previously written manifest.
func Read(path string) (*models.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var manifest models.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return &manifest, nil
}

// WriteChecksums writes one "{sha256}  {file_id}" line per document, in
// manifest order, with a trailing newline. An empty build still produces
// the file, containing just the newline.
func WriteChecksums(manifest *models.Manifest, path string) error {
	lines := make([]string, 0, len(manifest.Files))
	for _, file := range manifest.Files {
		lines = append(lines, fmt.Sprintf("%s  %s", file.SHA256, file.FileID))
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

// VerifyChecksums recomputes the hash of every document under rootDir and
// compares it to the manifest record. Returns the file ids that failed.
func VerifyChecksums(manifest *models.Manifest, rootDir string) ([]string, error) {
	var failed []string
	for _, file := range manifest.Files {
		path, err := findDocument(rootDir, file.FileID)
		if err != nil {
			failed = append(failed, file.FileID)
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			failed = append(failed, file.FileID)
			continue
		}

		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != file.SHA256 {
			failed = append(failed, file.FileID)
		}
	}
	return failed, nil
}

func findDocument(rootDir, fileID string) (string, error) {
	var found string
	err := filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == fileID {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("document %s not found under %s", fileID, rootDir)
	}
	return found, nil
}

// WriteReadme writes a summary of the package: build parameters plus
// document counts by type and source.
func WriteReadme(manifest *models.Manifest, path string) error {
	byDocType := map[string]int{}
	bySourceType := map[string]int{}
	for _, file := range manifest.Files {
		byDocType[file.DocType]++
		bySourceType[file.SourceType]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Disclosure Data Package\n\n")
	fmt.Fprintf(&b, "Peer set: %s\n", manifest.Package.PeerSet)
	fmt.Fprintf(&b, "As of: %s\n", manifest.Package.AsOf)
	fmt.Fprintf(&b, "Window since: %s\n", manifest.Package.Since)
	fmt.Fprintf(&b, "Build version: %s\n", manifest.Package.BuildVersion)
	fmt.Fprintf(&b, "Built: %s\n\n", time.Now().UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "Documents: %d\n\n", len(manifest.Files))

	fmt.Fprintf(&b, "## By document type\n\n")
	for _, k := range sortedKeys(byDocType) {
		fmt.Fprintf(&b, "- %s: %d\n", k, byDocType[k])
	}

	fmt.Fprintf(&b, "\n## By source type\n\n")
	for _, k := range sortedKeys(bySourceType) {
		fmt.Fprintf(&b, "- %s: %d\n", k, bySourceType[k])
	}

	if manifest.Package.LicenseNotes != "" {
		fmt.Fprintf(&b, "\n## License notes\n\n%s\n", manifest.Package.LicenseNotes)
	}

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GitCommit returns the short commit hash of the working tree, or "" when
// not built from a checkout.
func GitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
