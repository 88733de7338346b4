package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/miradorstack/mirador-drift/internal/dataset"
	"github.com/miradorstack/mirador-drift/internal/models"
	"github.com/miradorstack/mirador-drift/internal/utils"
)

// Result describes one ingestion pass.
type Result struct {
	Dataset      *dataset.Dataset
	Files        models.Manifest
	DatasetPath  string
	ManifestPath string
}

// Ingester consolidates every file of an input folder into one dataset.
type Ingester struct {
	logger    *slog.Logger
	inputDir  string
	outputDir string
}

// NewIngester constructs an Ingester reading inputDir and writing outputDir.
func NewIngester(logger *slog.Logger, inputDir, outputDir string) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{logger: logger, inputDir: inputDir, outputDir: outputDir}
}

// InputDir returns the folder being ingested.
func (i *Ingester) InputDir() string { return i.inputDir }

// DatasetPath returns where the consolidated dataset is written.
func (i *Ingester) DatasetPath() string { return filepath.Join(i.outputDir, models.DatasetFile) }

// ManifestPath returns where the ingestion manifest is written.
func (i *Ingester) ManifestPath() string { return filepath.Join(i.outputDir, models.ManifestFile) }

// Merge reads every file in the input folder, concatenates and deduplicates
// the rows, and writes the consolidated dataset plus the manifest of source
// files in directory-listing order.
func (i *Ingester) Merge(ctx context.Context) (Result, error) {
	i.logger.Info("starting data ingestion", slog.String("input", i.inputDir))

	files, err := ListFiles(i.inputDir)
	if err != nil {
		return Result{}, utils.NewAppError("ingestion", "list input folder", err)
	}
	if len(files) == 0 {
		return Result{}, utils.NewAppError("ingestion", fmt.Sprintf("no files in %s", i.inputDir), nil)
	}

	parts := make([]*dataset.Dataset, 0, len(files))
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		ds, err := dataset.ReadFile(filepath.Join(i.inputDir, name))
		if err != nil {
			return Result{}, utils.NewAppError("ingestion", "read "+name, err)
		}
		i.logger.Debug("read source file", slog.String("file", name), slog.Int("rows", ds.Len()))
		parts = append(parts, ds)
	}
	merged := dataset.Merge(parts...)

	if err := os.MkdirAll(i.outputDir, 0o755); err != nil {
		return Result{}, utils.NewAppError("ingestion", "create output folder", err)
	}
	if err := dataset.WriteFile(i.DatasetPath(), merged); err != nil {
		return Result{}, utils.NewAppError("ingestion", "write consolidated dataset", err)
	}
	manifest := models.Manifest(files)
	if err := models.WriteManifest(i.ManifestPath(), manifest); err != nil {
		return Result{}, utils.NewAppError("ingestion", "write manifest", err)
	}

	i.logger.Info("ingestion complete",
		slog.Int("files", len(files)),
		slog.Int("rows", merged.Len()),
		slog.String("manifest", i.ManifestPath()),
	)
	return Result{
		Dataset:      merged,
		Files:        manifest,
		DatasetPath:  i.DatasetPath(),
		ManifestPath: i.ManifestPath(),
	}, nil
}

// ListFiles returns the regular files of dir in directory order (unsorted).
func ListFiles(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
