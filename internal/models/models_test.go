package models

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestManifestNewFiles(t *testing.T) {
	m := Manifest{"dataset1.csv", "dataset2.csv"}
	fresh := m.NewFiles([]string{"dataset3.csv", "dataset1.csv", "dataset2.csv", "dataset4.csv"})
	if !reflect.DeepEqual(fresh, []string{"dataset3.csv", "dataset4.csv"}) {
		t.Fatalf("unexpected new files %v", fresh)
	}
	if len(m.NewFiles([]string{"dataset2.csv"})) != 0 {
		t.Fatalf("a listed filename must never count as new")
	}
}

func TestManifestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestFile)
	if err := os.WriteFile(path, []byte("a.csv\n\nb.csv\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(m, Manifest{"a.csv", "b.csv"}) {
		t.Fatalf("unexpected manifest %v", m)
	}
	if err := WriteManifest(path, m); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "a.csv\nb.csv\n" {
		t.Fatalf("unexpected encoding %q", data)
	}
}

func TestScoreRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), ScoreFile)
	if err := WriteScore(path, 0.5714285714285715); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "0.5714285714285715\n" {
		t.Fatalf("unexpected score record %q", data)
	}
	v, err := ReadScore(path)
	if err != nil || v != 0.5714285714285715 {
		t.Fatalf("unexpected score %v (%v)", v, err)
	}
}

func TestModelSaveLoadPredict(t *testing.T) {
	m := &Model{Features: []string{"a", "b"}, Weights: []float64{1, -1}, Intercept: 0.5}
	path := filepath.Join(t.TempDir(), ModelFile)
	if err := SaveModel(path, m); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadModel(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := loaded.Predict([][]float64{{2, 1}, {0, 3}})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !reflect.DeepEqual(got, []int{1, 0}) {
		t.Fatalf("unexpected predictions %v", got)
	}
	if _, err := loaded.Predict([][]float64{{1}}); err == nil {
		t.Fatalf("expected feature count error")
	}
}

func TestStateName(t *testing.T) {
	if StateName(Undeployed{}) != "undeployed" || StateName(Deployed{}) != "deployed" {
		t.Fatalf("unexpected state names")
	}
}
