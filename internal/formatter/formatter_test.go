package formatter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harmonia-sh/harmonia/internal/models"
)

func testExport() *AlbumExport {
	return &AlbumExport{
		Album: &models.Album{
			ID:          "album-1",
			Name:        "Blue Train",
			ArtistName:  "John Coltrane",
			Source:      models.SourceHybrid,
			ReleaseDate: "1958-01-15",
		},
		Tracks: []*models.Track{
			{Title: "Blue Train", ArtistName: "John Coltrane", TrackNumber: 1, DurationMS: 643000, ISRC: "USBN10300001", Source: models.SourceSpotify},
			{Title: "Moment's Notice", ArtistName: "John Coltrane", TrackNumber: 2, DurationMS: 550000, Source: models.SourceDeezer},
		},
	}
}

func TestAlbumExportCSV(t *testing.T) {
	data, err := testExport().ToCSV()
	if err != nil {
		t.Fatalf("failed to export csv: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}
	if records[0][0] != "Number" || records[0][4] != "ISRC" {
		t.Errorf("unexpected header %v", records[0])
	}
	if records[1][1] != "Blue Train" || records[1][3] != "10:43" {
		t.Errorf("unexpected first row %v", records[1])
	}
	if records[2][4] != "" {
		t.Errorf("expected empty ISRC column, got %q", records[2][4])
	}
}

func TestAlbumExportMarkdown(t *testing.T) {
	data, err := testExport().ToMarkdown()
	if err != nil {
		t.Fatalf("failed to export markdown: %v", err)
	}
	out := string(data)

	for _, want := range []string{
		"# Blue Train",
		"**Artist**: John Coltrane",
		"**Released**: 1958-01-15",
		"**Tracks**: 2",
		"1. Blue Train [10:43]",
		"2. Moment's Notice [9:10]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestAlbumExportText(t *testing.T) {
	data, err := testExport().ToText()
	if err != nil {
		t.Fatalf("failed to export text: %v", err)
	}
	out := string(data)

	if !strings.Contains(out, "Album: Blue Train") {
		t.Errorf("text missing album line:\n%s", out)
	}
	if !strings.Contains(out, "2. Moment's Notice") {
		t.Errorf("text missing track line:\n%s", out)
	}
}

func TestAlbumExportWrite(t *testing.T) {
	dir := t.TempDir()

	t.Run("writes the requested format", func(t *testing.T) {
		path := filepath.Join(dir, "out.md")
		got, err := testExport().Write("markdown", path)
		if err != nil {
			t.Fatalf("failed to write export: %v", err)
		}
		if got != path {
			t.Errorf("expected path %s, got %s", path, got)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read export: %v", err)
		}
		if !strings.Contains(string(data), "# Blue Train") {
			t.Error("file does not contain the markdown export")
		}
	})

	t.Run("defaults the path to album id plus extension", func(t *testing.T) {
		wd, _ := os.Getwd()
		if err := os.Chdir(dir); err != nil {
			t.Fatalf("failed to chdir: %v", err)
		}
		t.Cleanup(func() { os.Chdir(wd) })

		got, err := testExport().Write("csv", "")
		if err != nil {
			t.Fatalf("failed to write export: %v", err)
		}
		if got != "album-1.csv" {
			t.Errorf("expected default path album-1.csv, got %s", got)
		}
		if _, err := os.Stat(filepath.Join(dir, "album-1.csv")); err != nil {
			t.Errorf("export file not created: %v", err)
		}
	})

	t.Run("rejects unknown formats", func(t *testing.T) {
		if _, err := testExport().Write("xml", ""); err == nil {
			t.Error("expected an error for an unknown format")
		}
	})
}
