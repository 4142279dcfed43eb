package tui

import (
	"fmt"
	"strings"
)

// rowHeight is the number of lines a rendered row takes
const rowHeight = 2

// View renders the entire UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(RenderTitle(m.context))
	b.WriteString("\n")
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	switch {
	case len(m.kinds) == 0:
		b.WriteString(RenderWarning("No kinds are being mirrored"))
	case m.loading && m.total == 0:
		b.WriteString(m.spinner.View())
		b.WriteString(fmt.Sprintf(" Loading %s...", m.Kind()))
	case m.total == 0:
		b.WriteString(RenderInfo(fmt.Sprintf("No %s found%s", m.Kind(), m.scopeSuffix())))
	case len(m.rows) == 0:
		b.WriteString(RenderInfo(fmt.Sprintf("No %s match %q", m.Kind(), m.filter)))
	default:
		b.WriteString(m.renderRows())
	}

	b.WriteString("\n\n")
	if m.filtering {
		b.WriteString(m.filterInput.View())
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) scopeSuffix() string {
	if m.namespace == "" {
		return ""
	}
	return " in " + m.namespace
}

// renderHeader renders the kind, namespace and sync state line
func (m Model) renderHeader() string {
	if len(m.kinds) == 0 {
		return ""
	}
	k := m.kinds[m.kindIdx]

	ns := "all"
	if !k.Namespaced {
		ns = "-"
	} else if m.namespace != "" {
		ns = m.namespace
	}

	parts := []string{
		highlightStyle.Render(k.Name) + dimStyle.Render(fmt.Sprintf(" (%d/%d)", m.kindIdx+1, len(m.kinds))),
		"namespace: " + highlightStyle.Render(ns),
	}

	count := fmt.Sprintf("%d", m.total)
	if m.filter != "" {
		count = fmt.Sprintf("%d/%d", len(m.rows), m.total)
	}
	parts = append(parts, "items: "+count)

	if m.loading {
		parts = append(parts, statusPendingStyle.Render("syncing"))
	} else {
		parts = append(parts, statusReadyStyle.Render("synced"))
	}
	if m.filter != "" && !m.filtering {
		parts = append(parts, "filter: "+highlightStyle.Render(m.filter))
	}
	return strings.Join(parts, dimStyle.Render("  │  "))
}

// renderRows renders the window of rows around the cursor
func (m Model) renderRows() string {
	visible := len(m.rows)
	if m.height > 0 {
		visible = max(GetMaxHeight(m.height)/rowHeight, 1)
	}

	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := min(start+visible, len(m.rows))

	var b strings.Builder
	for i := start; i < end; i++ {
		item := m.rows[i]
		b.WriteString(RenderStatus(item.Status()))
		b.WriteString(RenderListItem(item.Title, item.Description, i == m.cursor))
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	if end < len(m.rows) {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("  ... %d more", len(m.rows)-end)))
	}
	return b.String()
}
