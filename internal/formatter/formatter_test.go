package formatter

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/doowops/internal/models"
	"github.com/desertthunder/doowops/internal/scoreboard"
	"github.com/desertthunder/doowops/internal/shared"
	th "github.com/desertthunder/doowops/internal/testing"
)

func testView() scoreboard.View {
	result := models.GameResult{
		Names: map[models.Player]string{models.PlayerOne: "Ana", models.PlayerTwo: "Ben"},
		Picks: map[models.Player][]models.Track{
			models.PlayerOne: {
				{ID: "track1", URI: "spotify:track:track1", Name: "Song One", Artists: []string{"Artist One"}, Album: "Album One", DurationMS: 180000},
				{ID: "track2", URI: "spotify:track:track2", Name: "Song Two", Artists: []string{"Artist Two", "Guest"}, DurationMS: 240000},
			},
			models.PlayerTwo: {
				{ID: "track3", URI: "spotify:track:track3", Name: "Song Three", Artists: []string{"Artist Three"}, Album: "Album Three", DurationMS: 61000},
				{ID: "track4", URI: "spotify:track:track4", Name: "Song Four", Artists: []string{"Artist Four"}},
			},
		},
	}
	board := scoreboard.New(result)
	board.Toggle(models.PlayerOne, 0)
	board.Toggle(models.PlayerOne, 1)
	board.Toggle(models.PlayerTwo, 1)
	return board.View()
}

func TestExporters(t *testing.T) {
	view := testView()

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(view)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Player,Name,Round,Title,Artists,Album,Duration,URI,Scored") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "1,Ana,1,Song One,Artist One,Album One,3:00,spotify:track:track1,true") {
			t.Errorf("CSV missing first pick, got: %s", output)
		}
		if !strings.Contains(output, `1,Ana,2,Song Two,"Artist Two, Guest",,4:00,spotify:track:track2,true`) {
			t.Errorf("CSV should quote joined artists, got: %s", output)
		}
		if !strings.Contains(output, "2,Ben,1,Song Three,Artist Three,Album Three,1:01,spotify:track:track3,false") {
			t.Errorf("CSV missing unscored pick, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(view)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Ana vs Ben",
			"**Result**: Ana wins 2 to 1",
			"## Ana (2)",
			"- [x] Artist One - Song One (Album One) [3:00]",
			"- [x] Artist Two, Guest - Song Two [4:00]",
			"## Ben (1)",
			"- [ ] Artist Three - Song Three (Album Three) [1:01]",
			"- [x] Artist Four - Song Four [0:00]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(view)
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Ana: 2 points") || !strings.Contains(output, "Ben: 1 points") {
			t.Errorf("Text missing scores, got: %s", output)
		}
		if !strings.Contains(output, "2. Artist Four - Song Four") {
			t.Errorf("Text missing pick, got: %s", output)
		}
	})

	t.Run("tie", func(t *testing.T) {
		board := scoreboard.New(models.GameResult{Names: view.Names, Picks: view.Picks})
		data, _ := ExportToText(board.View())
		if !strings.Contains(string(data), "Result: tie at 0") {
			t.Errorf("expected a tie, got: %s", data)
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"", Text},
		{".txt", Text},
		{"CSV", CSV},
		{".md", Markdown},
		{"markdown", Markdown},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q): expected %s, got %s (%v)", tt.input, tt.want, got, err)
		}
	}

	if _, err := ParseFormat(".pdf"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestWriteExport(t *testing.T) {
	view := testView()

	t.Run("format from extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "results", "game.csv")

		written, err := WriteExport(view, path)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if written != path {
			t.Errorf("expected %s, got %s", path, written)
		}
		th.AssertFileExists(t, path)
		if !strings.HasPrefix(th.MustReadFile(t, path), "Player,Name") {
			t.Error("expected CSV content")
		}
	})

	t.Run("unknown extension", func(t *testing.T) {
		if _, err := WriteExport(view, filepath.Join(t.TempDir(), "game.pdf")); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int
		want string
	}{
		{0, "0:00"},
		{-5, "0:00"},
		{59000, "0:59"},
		{61000, "1:01"},
		{3600000, "60:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.ms); got != tt.want {
			t.Errorf("FormatDuration(%d): expected %s, got %s", tt.ms, tt.want, got)
		}
	}
}
