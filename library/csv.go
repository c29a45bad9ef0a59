package library

import (
	"strings"
	"time"
)

// The import dialect is deliberately simple: comma separators, double quotes
// toggling a quoted mode in which commas are literal, no escaped quotes.
// encoding/csv implements RFC 4180 (doubled quotes, bare-quote errors) and
// would reject or reinterpret files this dialect accepts, so the tokenizer is
// written by hand.

// parseCSVLine splits one raw line into its fields. A double quote toggles
// quoted mode; an unterminated quote consumes the rest of the line. The
// trailing field is always emitted, so an empty line yields one empty field —
// callers skip blank lines before parsing.
func parseCSVLine(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	for _, c := range line {
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// csvFormat is the outcome of sniffing an import file's header row.
type csvFormat int

const (
	formatUnknown csvFormat = iota
	formatCatalog
	formatBorrows
)

// containsFold reports whether s contains substr, ignoring case. Every header
// lookup and identity comparison in the import engine folds case through this
// helper or strings.EqualFold, never ad hoc.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func headerHas(header []string, name string) bool {
	return headerIndex(header, name) >= 0
}

// headerIndex returns the position of the first header field containing name
// (ignoring case), or -1.
func headerIndex(header []string, name string) int {
	for i, h := range header {
		if containsFold(h, name) {
			return i
		}
	}
	return -1
}

// classifyHeader decides which import format a header row announces and
// whether the file carries return-outcome columns. A field containing "Title"
// but not "BookTitle" marks a catalog file; "Borrower" or "BookTitle" marks a
// borrow/return file. Catalog wins when both patterns match.
func classifyHeader(header []string) (format csvFormat, hasReturnData bool) {
	hasReturnData = headerHas(header, "ReturnDate") || headerHas(header, "IsReturned")

	for _, h := range header {
		if containsFold(h, "Title") && !containsFold(h, "BookTitle") {
			return formatCatalog, hasReturnData
		}
	}
	if headerHas(header, "Borrower") || headerHas(header, "BookTitle") {
		return formatBorrows, hasReturnData
	}
	return formatUnknown, hasReturnData
}

// cleanField trims whitespace and surrounding quote characters from a field.
func cleanField(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

// splitLines breaks a whole file into lines, tolerating CRLF endings and
// dropping the trailing newline so a header-only file counts as one line.
func splitLines(data string) []string {
	data = strings.ReplaceAll(data, "\r\n", "\n")
	data = strings.TrimSuffix(data, "\n")
	if data == "" {
		return nil
	}
	return strings.Split(data, "\n")
}

// dateLayouts lists the timestamp shapes the importer accepts, most common
// first. Export writes the first layout, so exported files re-import cleanly.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
}

// parseDate parses a cell as a timestamp, reporting whether any known layout
// matched.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
