package model

import (
	"os"
	"path/filepath"
	"testing"
)

func writeLabels(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labels.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadLabels(t *testing.T) {
	path := writeLabels(t, "background\nperson\ncat\ndog\n")

	labels, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("LoadLabels failed: %v", err)
	}

	want := []string{"background", "person", "cat", "dog"}
	if len(labels) != len(want) {
		t.Fatalf("got %d labels, want %d", len(labels), len(want))
	}
	for i, l := range want {
		if labels[i] != l {
			t.Errorf("label %d = %q, want %q", i, labels[i], l)
		}
	}
}

func TestLoadLabelsKeepsInteriorBlanks(t *testing.T) {
	path := writeLabels(t, "zero\n\ntwo\n\n\n")

	labels, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("LoadLabels failed: %v", err)
	}
	if len(labels) != 3 {
		t.Fatalf("got %d labels, want 3 (interior blank kept, trailing dropped)", len(labels))
	}
	if labels[1] != "" || labels[2] != "two" {
		t.Errorf("labels = %q, class IDs misaligned", labels)
	}
}

func TestLoadLabelsCRLF(t *testing.T) {
	path := writeLabels(t, "one\r\ntwo\r\n")

	labels, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("LoadLabels failed: %v", err)
	}
	if labels[0] != "one" || labels[1] != "two" {
		t.Errorf("labels = %q, want carriage returns stripped", labels)
	}
}

func TestLoadLabelsMissingFile(t *testing.T) {
	if _, err := LoadLabels("/nonexistent/labels.txt"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadLabelsEmptyFile(t *testing.T) {
	path := writeLabels(t, "")
	if _, err := LoadLabels(path); err == nil {
		t.Fatal("expected error for empty labels file")
	}
}
