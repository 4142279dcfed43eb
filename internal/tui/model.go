package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"
	"github.com/tapcraft-io/kubemirror/internal/k8s"
	"github.com/tapcraft-io/kubemirror/pkg/types"
)

// Source is what the browser reads from. *k8s.Registry satisfies it.
type Source interface {
	Kinds() []k8s.Kind
	Rows(kind, namespace string) []types.ListItem
	IsLoading(kind string) bool
	Namespaces() []string
}

// Model represents the application state
type Model struct {
	// UI Components
	filterInput textinput.Model
	spinner     spinner.Model
	help        help.Model
	keys        KeyMap

	width  int
	height int

	// Cluster State
	source    Source
	context   string
	kinds     []k8s.Kind
	kindIdx   int
	namespace string // empty means all namespaces

	// Rows of the selected kind after namespace and filter
	rows    []types.ListItem
	total   int
	loading bool
	cursor  int

	filtering bool
	filter    string

	refresh  time.Duration
	quitting bool
}

// NewModel creates a browser over source, refreshing every refresh
func NewModel(source Source, context string, refresh time.Duration) Model {
	ti := textinput.New()
	ti.Placeholder = "filter by name"
	ti.Prompt = "/ "
	ti.CharLimit = 100

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	m := Model{
		filterInput: ti,
		spinner:     s,
		help:        help.New(),
		keys:        DefaultKeyMap(),
		source:      source,
		context:     context,
		kinds:       source.Kinds(),
		refresh:     refresh,
	}
	m.reload()
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tick(m.refresh),
	)
}

type tickMsg time.Time

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Kind returns the name of the kind being browsed
func (m Model) Kind() string {
	if len(m.kinds) == 0 {
		return ""
	}
	return m.kinds[m.kindIdx].Name
}

// Rows returns the rows currently shown
func (m Model) Rows() []types.ListItem {
	return m.rows
}

// reload pulls the selected kind from the source and applies the filter.
// Readers never see a half-applied snapshot, so this is safe on every tick.
func (m *Model) reload() {
	kind := m.Kind()
	if kind == "" {
		m.rows, m.total, m.loading = nil, 0, false
		return
	}

	all := m.source.Rows(kind, m.namespace)
	m.total = len(all)
	m.loading = m.source.IsLoading(kind)

	if m.filter == "" {
		m.rows = all
	} else {
		matches := fuzzy.FindFrom(m.filter, rowTitles(all))
		m.rows = lo.Map(matches, func(match fuzzy.Match, _ int) types.ListItem {
			return all[match.Index]
		})
	}

	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
}

// rowTitles adapts rows to fuzzy.Source
type rowTitles []types.ListItem

func (r rowTitles) String(i int) string { return r[i].FilterValue() }
func (r rowTitles) Len() int            { return len(r) }

func (m *Model) nextKind(step int) {
	if len(m.kinds) == 0 {
		return
	}
	m.kindIdx = (m.kindIdx + step + len(m.kinds)) % len(m.kinds)
	m.cursor = 0
	m.reload()
}

// nextNamespace cycles all -> each cached namespace -> all
func (m *Model) nextNamespace() {
	namespaces := m.source.Namespaces()
	if len(namespaces) == 0 {
		m.namespace = ""
	} else if m.namespace == "" {
		m.namespace = namespaces[0]
	} else {
		idx := lo.IndexOf(namespaces, m.namespace)
		if idx < 0 || idx == len(namespaces)-1 {
			m.namespace = ""
		} else {
			m.namespace = namespaces[idx+1]
		}
	}
	m.cursor = 0
	m.reload()
}
