package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapcraft-io/kubemirror/internal/k8s"
	"github.com/tapcraft-io/kubemirror/pkg/types"
)

type fakeSource struct {
	kinds      []k8s.Kind
	rows       map[string][]types.ListItem
	loading    map[string]bool
	namespaces []string
}

func (f *fakeSource) Kinds() []k8s.Kind { return f.kinds }

func (f *fakeSource) Rows(kind, namespace string) []types.ListItem {
	return lo.Filter(f.rows[kind], func(item types.ListItem, _ int) bool {
		return namespace == "" || item.Metadata["namespace"] == namespace
	})
}

func (f *fakeSource) IsLoading(kind string) bool { return f.loading[kind] }

func (f *fakeSource) Namespaces() []string { return f.namespaces }

func row(namespace, name string) types.ListItem {
	return types.ListItem{
		Title:       name,
		Description: "Status: Running",
		Metadata:    map[string]string{"namespace": namespace, "status": "Running"},
	}
}

func newFakeSource(t *testing.T) *fakeSource {
	t.Helper()
	kinds := lo.Map([]string{"pods", "nodes", "deployments"}, func(name string, _ int) k8s.Kind {
		k, ok := k8s.LookupKind(name)
		require.True(t, ok)
		return k
	})
	return &fakeSource{
		kinds: kinds,
		rows: map[string][]types.ListItem{
			"pods": {row("a", "nginx-1"), row("a", "redis-1"), row("b", "nginx-2")},
		},
		loading:    map[string]bool{"deployments": true},
		namespaces: []string{"a", "b"},
	}
}

func press(t *testing.T, m Model, msgs ...tea.KeyMsg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func titles(m Model) []string {
	return lo.Map(m.Rows(), func(item types.ListItem, _ int) string { return item.Title })
}

func TestModel_InitialRows(t *testing.T) {
	m := NewModel(newFakeSource(t), "kind-dev", time.Second)

	assert.Equal(t, "pods", m.Kind())
	assert.Equal(t, []string{"nginx-1", "redis-1", "nginx-2"}, titles(m))
	assert.Contains(t, m.View(), "kind-dev")
	assert.Contains(t, m.View(), "synced")
}

func TestModel_LoadingIsNotEmpty(t *testing.T) {
	src := newFakeSource(t)
	m := NewModel(src, "ctx", time.Second)

	// nodes: synced with nothing in it
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "nodes", m.Kind())
	assert.Contains(t, m.View(), "No nodes found")
	assert.NotContains(t, m.View(), "Loading")

	// deployments: still bootstrapping
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "deployments", m.Kind())
	assert.Contains(t, m.View(), "Loading deployments")
	assert.NotContains(t, m.View(), "No deployments found")
}

func TestModel_KindCycleWraps(t *testing.T) {
	m := NewModel(newFakeSource(t), "ctx", time.Second)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, "deployments", m.Kind())
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "pods", m.Kind())
}

func TestModel_NamespaceCycle(t *testing.T) {
	m := NewModel(newFakeSource(t), "ctx", time.Second)

	m = press(t, m, runes("n"))
	assert.Equal(t, []string{"nginx-1", "redis-1"}, titles(m))
	m = press(t, m, runes("n"))
	assert.Equal(t, []string{"nginx-2"}, titles(m))
	m = press(t, m, runes("n"))
	assert.Len(t, m.Rows(), 3)
}

func TestModel_FuzzyFilter(t *testing.T) {
	m := NewModel(newFakeSource(t), "ctx", time.Second)

	m = press(t, m, runes("/"), runes("n"), runes("g"), runes("x"))
	assert.ElementsMatch(t, []string{"nginx-1", "nginx-2"}, titles(m))

	// enter keeps the filter, esc clears it
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Len(t, m.Rows(), 2)
	assert.Contains(t, m.View(), "filter: ")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Len(t, m.Rows(), 3)
}

func TestModel_FilterWithoutMatches(t *testing.T) {
	m := NewModel(newFakeSource(t), "ctx", time.Second)

	m = press(t, m, runes("/"), runes("z"), runes("z"), runes("z"))
	assert.Empty(t, m.Rows())
	assert.Contains(t, m.View(), `No pods match "zzz"`)
}

func TestModel_TickReloads(t *testing.T) {
	src := newFakeSource(t)
	m := NewModel(src, "ctx", time.Second)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, "deployments", m.Kind())

	src.rows["deployments"] = []types.ListItem{row("a", "api")}
	src.loading["deployments"] = false

	next, cmd := m.Update(tickMsg(time.Now()))
	m = next.(Model)
	assert.NotNil(t, cmd, "tick must reschedule itself")
	assert.Equal(t, []string{"api"}, titles(m))
	assert.Contains(t, m.View(), "synced")
}

func TestModel_CursorStaysInRange(t *testing.T) {
	src := newFakeSource(t)
	m := NewModel(src, "ctx", time.Second)

	m = press(t, m, runes("G"))
	assert.Equal(t, 2, m.cursor)
	m = press(t, m, runes("j"))
	assert.Equal(t, 2, m.cursor)

	src.rows["pods"] = src.rows["pods"][:1]
	next, _ := m.Update(tickMsg(time.Now()))
	m = next.(Model)
	assert.Equal(t, 0, m.cursor)

	m = press(t, m, runes("k"))
	assert.Equal(t, 0, m.cursor)
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(newFakeSource(t), "ctx", time.Second)

	next, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Empty(t, next.(Model).View())
}
