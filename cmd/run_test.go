package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/timvw/shapeqa/internal/dataset"
	"github.com/timvw/shapeqa/internal/scene"
	"github.com/timvw/shapeqa/internal/ui"
	"github.com/timvw/shapeqa/internal/vision"
)

// writeDataset writes a one-row dataset whose image does not exist.
func writeDataset(t *testing.T) (csvPath, imagesDir string) {
	t.Helper()
	dir := t.TempDir()
	imagesDir = filepath.Join(dir, "images")
	csvPath = filepath.Join(dir, "dataset.csv")
	content := "Image,question,answer\nmissing_scene,What color is the square?,red\n"
	if err := os.WriteFile(csvPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return csvPath, imagesDir
}

func TestShowSample_MissingImagePrintsCard(t *testing.T) {
	csvPath, imagesDir := writeDataset(t)
	ds, err := dataset.Load(csvPath, imagesDir, zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)

	detector := vision.NewDetector(vision.DefaultThresholds(), nil)
	if err := showSample(c, ds, detector, 0, ui.DarkTheme(), zap.NewNop()); err != nil {
		t.Fatalf("showSample: got error %v, want nil", err)
	}

	for _, sub := range []string{"Sample 0", "What color is the square?", "red", scene.NoObjects} {
		if !strings.Contains(out.String(), sub) {
			t.Errorf("card missing %q:\n%s", sub, out.String())
		}
	}
}

func TestShowSample_IndexOutOfRange(t *testing.T) {
	csvPath, imagesDir := writeDataset(t)
	ds, err := dataset.Load(csvPath, imagesDir, zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	c := &cobra.Command{}
	c.SetOut(&bytes.Buffer{})
	err = showSample(c, ds, vision.NewDetector(vision.DefaultThresholds(), nil), 5, ui.DarkTheme(), zap.NewNop())
	if err == nil {
		t.Error("expected error for out-of-range sample index")
	}
}

func TestRunCommand_ShowSampleMissingImage(t *testing.T) {
	csvPath, imagesDir := writeDataset(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(home)
	for _, key := range []string{"SHAPEQA_MODE", "SHAPEQA_PROVIDER", "SHAPEQA_DATASET_PATH", "SHAPEQA_IMAGES_DIR"} {
		t.Setenv(key, "")
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"run",
		"--mode", "show_sample",
		"--sample_index", "0",
		"--dataset", csvPath,
		"--images-dir", imagesDir,
		"--log-path", filepath.Join(home, "eval.log"),
	})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("run --mode show_sample: got error %v, want nil", err)
	}
	if !strings.Contains(out.String(), "What color is the square?") || !strings.Contains(out.String(), scene.NoObjects) {
		t.Errorf("expected sample card with empty scene, got:\n%s", out.String())
	}
}
