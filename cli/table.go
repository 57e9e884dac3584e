package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const columnGap = 2

// RenderTable lays out rows under headers without borders. The last column
// is truncated so each line fits width; width <= 0 disables truncation.
func RenderTable(headers []string, rows [][]string, width int) string {
	if width > 0 && len(headers) > 0 {
		rows = fitLastColumn(headers, rows, width)
	}

	header := lipgloss.NewStyle().Bold(true).Foreground(DefaultTheme.Colors.Orange).PaddingRight(columnGap)
	cell := lipgloss.NewStyle().PaddingRight(columnGap)

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	return t.String() + "\n"
}

func fitLastColumn(headers []string, rows [][]string, width int) [][]string {
	last := len(headers) - 1
	widths := make([]int, last)
	for i := range widths {
		widths[i] = lipgloss.Width(headers[i])
		for _, row := range rows {
			if i < len(row) && lipgloss.Width(row[i]) > widths[i] {
				widths[i] = lipgloss.Width(row[i])
			}
		}
	}
	room := width
	for _, w := range widths {
		room -= w + columnGap
	}
	if room < 4 {
		return rows
	}

	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
		if last < len(row) {
			out[i][last] = truncate(row[last], room)
		}
	}
	return out
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
