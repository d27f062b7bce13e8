// package formatter renders availability reports as JSON, CSV, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
)

// Format is an output rendering of a [models.ShelfReport].
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// Formats lists every supported rendering.
var Formats = []Format{FormatText, FormatJSON, FormatCSV, FormatMarkdown}

// ParseFormat resolves a --format value. "md" and "txt" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: format %q (want text, json, csv or markdown)", shared.ErrInvalidFlag, s)
}

// Ext is the file extension used by [WriteFile].
func (f Format) Ext() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	default:
		return ".txt"
	}
}

// Label describes one library result for a reader. A failed lookup reads
// "could not check (<kind>)" and is never confused with "not available".
func Label(r models.AvailabilityResult) string {
	if r.Failed() {
		return fmt.Sprintf("could not check (%s)", shared.ErrorKind(r.Err))
	}

	switch r.Status {
	case models.StatusAvailable:
		return "available"
	case models.StatusHoldable:
		if r.HoldPosition != nil {
			return fmt.Sprintf("holdable (#%d in line)", *r.HoldPosition)
		}
		return "holdable"
	case models.StatusUnavailable:
		return "not available"
	}

	switch r.MatchReason {
	case models.ReasonNoMatch:
		return "not in catalog"
	case models.ReasonUnrecognizedAvailability:
		return "could not check (unrecognized availability)"
	}
	return "unknown"
}

// OverallLabel describes an entry's aggregated status.
func OverallLabel(e models.ShelfReportEntry) string {
	switch e.OverallStatus {
	case models.StatusAvailable:
		return "available"
	case models.StatusHoldable:
		return "holdable"
	case models.StatusUnavailable:
		return "not available"
	}
	for _, r := range e.PerLibraryResults {
		if r.Failed() {
			return "could not check"
		}
	}
	return "not found"
}

// ExportToJSON renders the full report, including per-library errors and their kinds.
func ExportToJSON(report *models.ShelfReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := shared.EncodeJSON(&buf, report); err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return buf.Bytes(), nil
}

var csvHeaders = []string{
	"Book ID", "Title", "Author", "ISBN", "Overall",
	"Library ID", "Library", "Status", "Label", "Formats",
	"Hold Position", "Match", "Score", "Attempts", "Error Kind", "Error",
}

// ExportToCSV writes one row per book and library, in report order.
func ExportToCSV(report *models.ShelfReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range report.Entries {
		for _, r := range e.PerLibraryResults {
			hold := ""
			if r.HoldPosition != nil {
				hold = strconv.Itoa(*r.HoldPosition)
			}
			errMsg := ""
			if r.Err != nil {
				errMsg = r.Err.Error()
			}
			record := []string{
				e.Book.ID,
				e.Book.Title,
				e.Book.Author,
				e.Book.ISBN,
				e.OverallStatus.String(),
				r.LibraryID,
				report.TargetName(r.LibraryID),
				r.Status.String(),
				Label(r),
				formatList(r.MatchedFormats),
				hold,
				string(r.MatchReason),
				strconv.FormatFloat(r.Score, 'f', 3, 64),
				strconv.Itoa(r.Attempts),
				shared.ErrorKind(r.Err),
				errMsg,
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

// ExportToMarkdown renders a summary followed by a book-by-library table.
func ExportToMarkdown(report *models.ShelfReport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Availability Report\n\n")
	buf.WriteString(fmt.Sprintf("**Run**: %s\n", report.RunID))
	buf.WriteString(fmt.Sprintf("**Checked**: %s (%s)\n", report.StartedAt.Format(time.RFC1123), elapsed(report)))
	buf.WriteString(fmt.Sprintf("**Books**: %d\n\n", len(report.Entries)))

	buf.WriteString("## Summary\n\n")
	summary := report.Summary()
	for _, s := range []models.Status{models.StatusAvailable, models.StatusHoldable, models.StatusUnavailable, models.StatusUnknown} {
		buf.WriteString(fmt.Sprintf("- %s: %d\n", s, summary[s]))
	}
	buf.WriteString("\n## Books\n\n")

	if len(report.Entries) == 0 {
		buf.WriteString("_No books were checked._\n")
		return buf.Bytes(), nil
	}

	header := []string{"#", "Title", "Author", "Overall"}
	for _, t := range report.Targets {
		header = append(header, t.Name)
	}
	buf.WriteString("| " + strings.Join(header, " | ") + " |\n")
	buf.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")

	for i, e := range report.Entries {
		row := []string{strconv.Itoa(i + 1), escapeCell(e.Book.Title), escapeCell(e.Book.Author), OverallLabel(e)}
		for _, t := range report.Targets {
			cell := "-"
			if r, ok := e.Result(t.ID); ok {
				cell = Label(r)
			}
			row = append(row, cell)
		}
		buf.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}

	return buf.Bytes(), nil
}

// ExportToText renders a list of books with an indented line per library.
// When styled is true statuses are colored with lipgloss.
func ExportToText(report *models.ShelfReport, styled bool) ([]byte, error) {
	var buf bytes.Buffer
	p := newPalette(styled)

	buf.WriteString(p.title.Render(fmt.Sprintf("Availability for %d books across %d libraries", len(report.Entries), len(report.Targets))))
	buf.WriteString("\n\n")

	for i, e := range report.Entries {
		line := fmt.Sprintf("%d. %s", i+1, e.Book.Title)
		if e.Book.Author != "" {
			line += " - " + e.Book.Author
		}
		buf.WriteString(fmt.Sprintf("%s [%s]\n", line, p.status(e.OverallStatus, false).Render(OverallLabel(e))))

		for _, r := range e.PerLibraryResults {
			buf.WriteString(fmt.Sprintf("   %s: %s\n", report.TargetName(r.LibraryID), p.status(r.Status, r.Failed()).Render(Label(r))))
		}
	}

	summary := report.Summary()
	buf.WriteString("\n")
	buf.WriteString(p.help.Render(fmt.Sprintf("%d available, %d holdable, %d not available, %d unknown in %s",
		summary[models.StatusAvailable], summary[models.StatusHoldable], summary[models.StatusUnavailable], summary[models.StatusUnknown], elapsed(report))))
	buf.WriteString("\n")

	return buf.Bytes(), nil
}

// Export renders report in the given format.
func Export(report *models.ShelfReport, f Format, styled bool) ([]byte, error) {
	switch f {
	case FormatJSON:
		return ExportToJSON(report)
	case FormatCSV:
		return ExportToCSV(report)
	case FormatMarkdown:
		return ExportToMarkdown(report)
	case FormatText:
		return ExportToText(report, styled)
	}
	return nil, fmt.Errorf("%w: format %q", shared.ErrInvalidFlag, f)
}

// Write renders report to w.
func Write(w io.Writer, report *models.ShelfReport, f Format, styled bool) error {
	data, err := Export(report, f, styled)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// WriteFile renders report to path without styling.
//
// Defaults to availability_{run id}{ext} as the filename.
func WriteFile(report *models.ShelfReport, path string, f Format) (string, error) {
	if path == "" {
		path = "availability_" + report.RunID + f.Ext()
	}

	data, err := Export(report, f, false)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

// formatList renders matched formats in priority order, e.g. "ebook=available;audiobook=holdable".
func formatList(formats map[models.Format]models.Status) string {
	if len(formats) == 0 {
		return ""
	}

	rank := make(map[models.Format]int, len(models.DefaultFormatPriority))
	for i, f := range models.DefaultFormatPriority {
		rank[f] = i
	}

	keys := make([]models.Format, 0, len(formats))
	for f := range formats {
		keys = append(keys, f)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iok := rank[keys[i]]
		rj, jok := rank[keys[j]]
		if iok != jok {
			return iok
		}
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})

	parts := make([]string, len(keys))
	for i, f := range keys {
		parts[i] = string(f) + "=" + formats[f].String()
	}
	return strings.Join(parts, ";")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func elapsed(report *models.ShelfReport) time.Duration {
	if report.FinishedAt.IsZero() || report.FinishedAt.Before(report.StartedAt) {
		return 0
	}
	return report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)
}

type palette struct {
	title       lipgloss.Style
	help        lipgloss.Style
	available   lipgloss.Style
	holdable    lipgloss.Style
	unavailable lipgloss.Style
	failed      lipgloss.Style
	unknown     lipgloss.Style
}

func newPalette(styled bool) palette {
	if !styled {
		plain := lipgloss.NewStyle()
		return palette{plain, plain, plain, plain, plain, plain, plain}
	}
	return palette{
		title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F2F2F2")),
		help:        lipgloss.NewStyle().Foreground(lipgloss.Color("#909090")),
		available:   lipgloss.NewStyle().Foreground(lipgloss.Color("#7FD99A")),
		holdable:    lipgloss.NewStyle().Foreground(lipgloss.Color("#F2C14E")),
		unavailable: lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0")),
		failed:      lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		unknown:     lipgloss.NewStyle().Foreground(lipgloss.Color("#909090")),
	}
}

func (p palette) status(s models.Status, failed bool) lipgloss.Style {
	if failed {
		return p.failed
	}
	switch s {
	case models.StatusAvailable:
		return p.available
	case models.StatusHoldable:
		return p.holdable
	case models.StatusUnavailable:
		return p.unavailable
	}
	return p.unknown
}
