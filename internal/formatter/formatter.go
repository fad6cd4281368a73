// package formatter renders finished game results as CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/scoreboard"
	"github.com/desertthunder/doowops/internal/shared"
)

// Format names an export format.
type Format string

const (
	CSV      Format = "csv"
	Markdown Format = "md"
	Text     Format = "txt"
)

// ParseFormat accepts a format name or a file extension. Empty selects [Text].
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "", "txt", "text":
		return Text, nil
	case "csv":
		return CSV, nil
	case "md", "markdown":
		return Markdown, nil
	default:
		return "", fmt.Errorf("%w: export format %q", shared.ErrInvalidArgument, s)
	}
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv; charset=utf-8"
	case Markdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Export renders view in format f.
func Export(view scoreboard.View, f Format) ([]byte, error) {
	switch f {
	case CSV:
		return ExportToCSV(view)
	case Markdown:
		return ExportToMarkdown(view)
	case Text:
		return ExportToText(view)
	default:
		return nil, fmt.Errorf("%w: export format %q", shared.ErrInvalidArgument, f)
	}
}

// ExportToCSV converts a scoreboard to CSV with columns: Player, Name, Round, Title, Artists, Album, Duration, URI, Scored
func ExportToCSV(view scoreboard.View) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Player", "Name", "Round", "Title", "Artists", "Album", "Duration", "URI", "Scored"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, p := range models.Players {
		for i, track := range view.Picks[p] {
			record := []string{
				strconv.Itoa(int(p)),
				view.Names[p],
				strconv.Itoa(i + 1),
				track.Name,
				track.ArtistLine(),
				track.Album,
				FormatDuration(track.DurationMS),
				track.URI,
				strconv.FormatBool(slices.Contains(view.Selected[p], i)),
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a scoreboard to Markdown with a section per player
func ExportToMarkdown(view scoreboard.View) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s vs %s\n\n", view.Names[models.PlayerOne], view.Names[models.PlayerTwo]))
	buf.WriteString(fmt.Sprintf("**Result**: %s\n\n", outcome(view)))

	for _, p := range models.Players {
		buf.WriteString(fmt.Sprintf("## %s (%d)\n\n", view.Names[p], view.Scores[p]))
		for i, track := range view.Picks[p] {
			mark := " "
			if slices.Contains(view.Selected[p], i) {
				mark = "x"
			}
			albumPart := ""
			if track.Album != "" {
				albumPart = fmt.Sprintf(" (%s)", track.Album)
			}
			buf.WriteString(fmt.Sprintf("- [%s] %s - %s%s [%s]\n", mark, track.ArtistLine(), track.Name, albumPart, FormatDuration(track.DurationMS)))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts a scoreboard to plain text
func ExportToText(view scoreboard.View) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Result: %s\n", outcome(view)))
	for _, p := range models.Players {
		buf.WriteString(fmt.Sprintf("\n%s: %d points\n", view.Names[p], view.Scores[p]))
		for i, track := range view.Picks[p] {
			buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, track.ArtistLine(), track.Name))
		}
	}

	return buf.Bytes(), nil
}

// WriteExport writes view to path, choosing the format from the file extension.
func WriteExport(view scoreboard.View, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("doowops_%s.txt", time.Now().Format("20060102_150405"))
	}

	f, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return "", err
	}
	data, err := Export(view, f)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", f, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(ms int) string {
	if ms <= 0 {
		return "0:00"
	}
	seconds := ms / 1000
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func outcome(view scoreboard.View) string {
	if view.Winner == 0 {
		return fmt.Sprintf("tie at %d", view.Scores[models.PlayerOne])
	}
	return fmt.Sprintf("%s wins %d to %d", view.Names[view.Winner], view.Scores[view.Winner], view.Scores[view.Winner.Other()])
}
