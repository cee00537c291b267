package bot

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// escapeHTML sanitizes free-text cell values before they are embedded into
// rich-text renders.
func escapeHTML(text string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#039;",
	)
	return r.Replace(text)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// parseRowToken decodes the row number embedded in an action token.
func parseRowToken(raw string) (int, bool) {
	row, err := strconv.Atoi(raw)
	if err != nil || row < 2 {
		return 0, false
	}
	return row, true
}

// rowSuffix extracts the trailing "[#N]" row marker from a list label.
func rowSuffix(text string) (int, bool) {
	open := strings.LastIndex(text, "[#")
	if open == -1 || !strings.HasSuffix(text, "]") {
		return 0, false
	}
	row, err := strconv.Atoi(text[open+2 : len(text)-1])
	if err != nil {
		return 0, false
	}
	return row, true
}

// isNameLetter reports whether the rune belongs to the alphabet the letter
// index is built from (upper-case Latin or Cyrillic).
func isNameLetter(r rune) bool {
	return (r >= 'А' && r <= 'Я') || (r >= 'A' && r <= 'Z')
}

// firstLetter returns the case-folded initial of a name, or empty when the
// initial falls outside the indexed alphabets.
func firstLetter(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if size == 0 {
		return ""
	}
	upper := unicode.ToUpper(r)
	if !isNameLetter(upper) {
		return ""
	}
	return string(upper)
}

// indexOf finds a header's column position, -1 when absent.
func indexOf(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	return -1
}

// cellAt returns the trimmed cell value, tolerating short rows.
func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// chunkButtons groups buttons into keyboard rows of the given width.
func chunkButtons(buttons []Button, perRow int) [][]Button {
	var rows [][]Button
	for len(buttons) > 0 {
		n := min(perRow, len(buttons))
		rows = append(rows, buttons[:n])
		buttons = buttons[n:]
	}
	return rows
}
