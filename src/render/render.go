// Package render formats analysis results and glossary entries for the
// clipboard, the terminal and machine consumers.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"cad-lingo/src/analysis"
	"cad-lingo/src/glossary"
)

const (
	DictionaryMarker = "[từ điển]"

	emptyResults  = "Chưa có dữ liệu phân tích"
	emptyGlossary = "Dictionary is empty. Add your own terms to improve translation accuracy."
)

var (
	accent = lipgloss.Color("#0696D7")
	muted  = lipgloss.Color("#6B7280")
	danger = lipgloss.Color("#E53935")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	mutedStyle  = lipgloss.NewStyle().Foreground(muted)
	badgeStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(muted)
	viStyle     = lipgloss.NewStyle().Bold(true).Foreground(accent)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1)
	matchCardStyle = cardStyle.
			BorderForeground(accent).
			Border(lipgloss.ThickBorder())
	errorStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(danger).
			Foreground(danger).
			Padding(0, 1)
)

// Text renders results as plain EN/VI blocks separated by blank lines.
func Text(results []analysis.Result) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		en := "EN: " + r.Original
		if r.IsDictionaryMatch {
			en += " " + DictionaryMarker
		}
		blocks = append(blocks, en+"\nVI: "+r.Translated)
	}
	return strings.Join(blocks, "\n\n")
}

// Styled renders the results panel for a terminal.
func Styled(results []analysis.Result) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render("KẾT QUẢ DỊCH THUẬT"))
	sb.WriteString("\n")
	if len(results) == 0 {
		sb.WriteString(mutedStyle.Render(emptyResults))
		sb.WriteString("\n")
		return sb.String()
	}
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("Tìm thấy %d mục", len(results))))
	sb.WriteString("\n")

	for _, r := range results {
		head := labelStyle.Render("EN") + " " + r.Original
		if r.IsDictionaryMatch {
			head += "  " + badgeStyle.Render("TỪ ĐIỂN RIÊNG")
		}
		body := lipgloss.JoinVertical(lipgloss.Left,
			head,
			labelStyle.Render("VI")+" "+viStyle.Render(r.Translated),
		)
		style := cardStyle
		if r.IsDictionaryMatch {
			style = matchCardStyle
		}
		sb.WriteString(style.Render(body))
		sb.WriteString("\n")
	}
	return sb.String()
}

// Error renders an analysis failure with a hint about the usual causes.
func Error(err error) string {
	msg := "LỖI PHÂN TÍCH\nVui lòng kiểm tra API Key hoặc kết nối mạng và thử lại."
	if err != nil {
		msg += "\n" + err.Error()
	}
	return errorStyle.Render(msg)
}

// Glossary renders entries as an aligned table.
func Glossary(entries []glossary.Entry) string {
	if len(entries) == 0 {
		return mutedStyle.Render(emptyGlossary) + "\n"
	}

	headers := []string{"ID", "TERM", "TRANSLATION", "CATEGORY"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.ID, e.Term, e.Translation, string(e.Category)})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string, style lipgloss.Style) {
		for i, cell := range cells {
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(style.Width(widths[i]).Render(cell))
		}
		sb.WriteString("\n")
	}
	writeRow(headers, headerStyle)
	for _, row := range rows {
		writeRow(row, lipgloss.NewStyle())
	}
	return sb.String()
}

// Meta describes how a result set was produced.
type Meta struct {
	Source   string
	Engine   string
	Duration time.Duration
}

// Envelope is the --json output document.
type Envelope struct {
	Source    string            `json:"source"`
	Engine    string            `json:"engine,omitempty"`
	Timestamp string            `json:"timestamp"`
	Duration  float64           `json:"duration_seconds"`
	Count     int               `json:"item_count"`
	Items     []analysis.Result `json:"items"`
}

// JSON writes results wrapped in an Envelope, indented.
func JSON(w io.Writer, results []analysis.Result, meta Meta) error {
	if results == nil {
		results = []analysis.Result{}
	}
	env := Envelope{
		Source:    meta.Source,
		Engine:    meta.Engine,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  meta.Duration.Seconds(),
		Count:     len(results),
		Items:     results,
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(env); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
