// package formatter exports catalog data to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/harmonia-sh/harmonia/internal/models"
	"github.com/harmonia-sh/harmonia/internal/shared"
)

// AlbumExport bundles an album with its resolved track list for export.
type AlbumExport struct {
	Album  *models.Album
	Tracks []*models.Track
}

// ToCSV converts an album export to CSV with columns: Number, Title, Artist, Duration, ISRC, Source
func (e *AlbumExport) ToCSV() ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Number", "Title", "Artist", "Duration", "ISRC", "Source"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range e.Tracks {
		record := []string{
			strconv.Itoa(track.TrackNumber),
			track.Title,
			track.ArtistName,
			shared.FormatDuration(track.DurationMS),
			track.ISRC,
			string(track.Source),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ToMarkdown converts an album export to Markdown with a metadata header and
// numbered track list.
func (e *AlbumExport) ToMarkdown() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", e.Album.Name))

	if e.Album.ArtistName != "" {
		buf.WriteString(fmt.Sprintf("**Artist**: %s\n", e.Album.ArtistName))
	}
	if e.Album.ReleaseDate != "" {
		buf.WriteString(fmt.Sprintf("**Released**: %s\n", e.Album.ReleaseDate))
	}
	buf.WriteString(fmt.Sprintf("**Source**: %s\n", e.Album.Source))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(e.Tracks)))

	buf.WriteString("## Tracks\n\n")
	for _, track := range e.Tracks {
		duration := shared.FormatDuration(track.DurationMS)
		buf.WriteString(fmt.Sprintf("%d. %s [%s]\n", track.TrackNumber, track.Title, duration))
	}

	return buf.Bytes(), nil
}

// ToText converts an album export to plain text.
func (e *AlbumExport) ToText() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Album: %s\n", e.Album.Name))
	if e.Album.ArtistName != "" {
		buf.WriteString(fmt.Sprintf("Artist: %s\n", e.Album.ArtistName))
	}
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(e.Tracks)))

	for _, track := range e.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s\n", track.TrackNumber, track.Title))
	}

	return buf.Bytes(), nil
}

// Write renders the export in the named format ("csv", "markdown" or "text")
// and writes it to path, defaulting the path to the album id plus extension.
// Returns the path written.
func (e *AlbumExport) Write(format, path string) (string, error) {
	var (
		data []byte
		err  error
		ext  string
	)

	switch format {
	case "csv":
		data, err = e.ToCSV()
		ext = ".csv"
	case "markdown", "md":
		data, err = e.ToMarkdown()
		ext = ".md"
	case "text", "txt":
		data, err = e.ToText()
		ext = ".txt"
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return "", err
	}

	if path == "" {
		path = e.Album.ID + ext
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}
