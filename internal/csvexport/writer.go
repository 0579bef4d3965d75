package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"clinsight/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// metaColumns precede one column per analysis section.
var metaColumns = []string{
	"Analysis ID",
	"Title",
	"Created At",
	"Case Text",
	"Transcript",
	"Had Audio",
	"Image Count",
	"Reasoning Model",
	"Research Model",
	"Reference Count",
	"References",
	"Warnings",
}

// Columns returns the full header row: metadata, then sections in contract order.
func Columns() []string {
	cols := make([]string, 0, len(metaColumns)+domain.SectionCount)
	cols = append(cols, metaColumns...)
	for _, id := range domain.SectionOrder {
		cols = append(cols, domain.SectionTitles[id])
	}
	return cols
}

// Writer wraps csv.Writer for exporting analysis history as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(Columns())
}

// WriteRecords converts a batch of analyses to CSV rows and writes them.
func (w *Writer) WriteRecords(records []domain.AnalysisRecord) error {
	for i := range records {
		if err := w.csv.Write(recordToRow(&records[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// recordToRow flattens one analysis. Section cells are matched by ID so a
// record with a missing section still lines up with the header.
func recordToRow(r *domain.AnalysisRecord) []string {
	row := make([]string, 0, len(metaColumns)+domain.SectionCount)

	refs := make([]string, 0, len(r.References))
	for _, ref := range r.References {
		label := ref.Label()
		if ref.URL != "" && ref.URL != label {
			label += " <" + ref.URL + ">"
		}
		refs = append(refs, label)
	}

	row = append(row,
		r.ID.String(),
		r.Title,
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.CaseText,
		r.Transcript,
		formatBool(r.HadAudio),
		strconv.Itoa(len(r.Images)),
		r.Models.Reasoning,
		r.Models.Research,
		strconv.Itoa(len(r.References)),
		strings.Join(refs, "\n"),
		strings.Join(r.Warnings, "\n"),
	)

	byID := make(map[domain.SectionID]string, len(r.Sections))
	for _, s := range r.Sections {
		byID[s.ID] = s.Content
	}
	for _, id := range domain.SectionOrder {
		row = append(row, byID[id])
	}
	return row
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns {sanitized_prefix}_{YYYY-MM-DD}.csv for the given day.
func BuildFilename(prefix string, day time.Time) string {
	sanitized := SanitizeFilename(prefix)
	if sanitized == "" {
		sanitized = "analyses"
	}
	return fmt.Sprintf("%s_%s.csv", sanitized, day.Format("2006-01-02"))
}
