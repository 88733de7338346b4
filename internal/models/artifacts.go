package models

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Artifact file names shared by the pipeline steps and the reporting API.
const (
	DatasetFile         = "finaldata.csv"
	ManifestFile        = "ingestedfiles.txt"
	ScoreFile           = "latestscore.txt"
	ModelFile           = "trainedmodel.gob"
	TestDataFile        = "testdata.csv"
	ReportFile          = "apireturns.txt"
	ConfusionMatrixFile = "confusionmatrix.txt"
)

// Manifest lists the source filenames folded into the consolidated dataset.
type Manifest []string

// Contains reports whether name was ingested.
func (m Manifest) Contains(name string) bool {
	for _, f := range m {
		if f == name {
			return true
		}
	}
	return false
}

// NewFiles returns the entries of current that the manifest does not list,
// preserving their order. Only names are compared.
func (m Manifest) NewFiles(current []string) []string {
	known := make(map[string]struct{}, len(m))
	for _, f := range m {
		known[f] = struct{}{}
	}
	fresh := make([]string, 0)
	for _, f := range current {
		if _, ok := known[f]; !ok {
			fresh = append(fresh, f)
		}
	}
	return fresh
}

// ReadManifest parses a newline-delimited manifest, ignoring blank lines.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	manifest := Manifest{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			manifest = append(manifest, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan manifest: %w", err)
	}
	return manifest, nil
}

// WriteManifest writes one filename per line.
func WriteManifest(path string, m Manifest) error {
	var buf bytes.Buffer
	for _, f := range m {
		buf.WriteString(f)
		buf.WriteByte('\n')
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// ReadScore parses a score record.
func ReadScore(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse score %s: %w", path, err)
	}
	return v, nil
}

// FormatScore renders a score record: the value followed by a newline.
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64) + "\n"
}

// WriteScore persists a score record.
func WriteScore(path string, v float64) error {
	return os.WriteFile(path, []byte(FormatScore(v)), 0o644)
}
