package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// render writes data as indented JSON, or calls text for the human format
func render(w io.Writer, format string, data interface{}, text func(io.Writer)) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	text(w)
	return nil
}

// table writes fixed-width rows. The last cell is never padded.
type table struct {
	w      io.Writer
	widths []int
}

func newTable(w io.Writer, widths ...int) *table {
	return &table{w: w, widths: widths}
}

func (t *table) row(cells ...string) {
	var b strings.Builder
	for i, c := range cells {
		if i < len(cells)-1 && i < len(t.widths) {
			fmt.Fprintf(&b, "%-*s ", t.widths[i], truncate(c, t.widths[i]))
			continue
		}
		b.WriteString(c)
	}
	fmt.Fprintln(t.w, strings.TrimRight(b.String(), " "))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
