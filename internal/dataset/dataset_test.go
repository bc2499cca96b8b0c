package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/timvw/shapeqa/internal/model"
)

func TestParse(t *testing.T) {
	csvData := "Image,question,answer\n" +
		"img_001,What color is the square?,red\n" +
		"img_002.jpg,\"Is the circle left, or right?\",left\n"

	got, err := Parse(strings.NewReader(csvData), "/data/images")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	want := []model.Sample{
		{ID: "0", ImageRef: "img_001", ImagePath: filepath.Join("/data/images", "img_001.png"), Question: "What color is the square?", GroundTruth: "red"},
		{ID: "1", ImageRef: "img_002.jpg", ImagePath: filepath.Join("/data/images", "img_002.jpg"), Question: "Is the circle left, or right?", GroundTruth: "left"},
	}
	if len(got) != len(want) {
		t.Fatalf("rows: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d:\n  got  %+v\n  want %+v", i, got[i], want[i])
		}
	}
}

func TestParse_IDColumnAndHeaderCase(t *testing.T) {
	csvData := "\ufeffid,image,Question,Answer\nq-7,a,What shape?,circle\n,b,What shape?,square\n"

	got, err := Parse(strings.NewReader(csvData), "imgs")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got[0].ID != "q-7" {
		t.Errorf("row 0 id: got %q, want %q", got[0].ID, "q-7")
	}
	if got[1].ID != "1" {
		t.Errorf("empty id should fall back to row index, got %q", got[1].ID)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "empty", input: "", wantErr: "empty file"},
		{name: "missing column", input: "Image,question\na,b\n", wantErr: `missing column "answer"`},
		{name: "blank question", input: "Image,question,answer\na,,red\n", wantErr: "row 0"},
		{name: "ragged row", input: "Image,question,answer\na,b\n", wantErr: "row 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input), "")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(csvPath, []byte("Image,question,answer\na,q1,red\nb,q2,blue\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ds, err := Load(csvPath, filepath.Join(dir, "images"), nil)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if ds.Len() != 2 {
		t.Errorf("Len: got %d, want 2", ds.Len())
	}

	s, err := ds.Sample(1)
	if err != nil {
		t.Fatalf("Sample(1) error: %v", err)
	}
	if s.GroundTruth != "blue" {
		t.Errorf("Sample(1).GroundTruth: got %q, want blue", s.GroundTruth)
	}

	for _, idx := range []int{-1, 2} {
		if _, err := ds.Sample(idx); err == nil {
			t.Errorf("Sample(%d): expected out-of-bounds error", idx)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.csv"), "", nil); err == nil {
		t.Error("expected error for missing dataset")
	}
}

func TestImagePath(t *testing.T) {
	tests := []struct {
		dir, ref, want string
	}{
		{"imgs", "a", filepath.Join("imgs", "a.png")},
		{"imgs", "a.jpeg", filepath.Join("imgs", "a.jpeg")},
		{"imgs", "/abs/a.png", "/abs/a.png"},
		{"", "a", "a.png"},
	}
	for _, tt := range tests {
		if got := ImagePath(tt.dir, tt.ref); got != tt.want {
			t.Errorf("ImagePath(%q, %q): got %q, want %q", tt.dir, tt.ref, got, tt.want)
		}
	}
}
