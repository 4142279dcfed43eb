package k8s

import (
	"fmt"
	"strings"
	"time"

	"github.com/tapcraft-io/kubemirror/internal/watchcache"
	"github.com/tapcraft-io/kubemirror/pkg/types"
	"k8s.io/apimachinery/pkg/util/duration"
)

// Resource is the cache entry for every tracked kind. Fields holds the
// kind-specific columns produced by the kind's converter; Spans holds the
// columns that depend on the current time and are formatted when read.
type Resource struct {
	ID         watchcache.Identity
	Created    time.Time
	Labels     map[string]string
	Status     string
	Fields     map[string]string
	Spans      map[string]Span
	Containers []string

	// Usage is owned by the usage probe; the watch feed never sets it
	Usage *Usage
}

// Usage is a point-in-time resource consumption sample
type Usage struct {
	CPUMilli    int64
	MemoryBytes int64
	ObservedAt  time.Time
}

// CPU formats CPU usage in millicores
func (u Usage) CPU() string {
	return fmt.Sprintf("%dm", u.CPUMilli)
}

// Memory formats memory usage in mebibytes
func (u Usage) Memory() string {
	return fmt.Sprintf("%dMi", u.MemoryBytes/(1024*1024))
}

// Span is an elapsed-time column. A zero End means the span is still running.
type Span struct {
	Start time.Time
	End   time.Time
}

// Format renders the span as of now
func (s Span) Format(now time.Time) string {
	if s.Start.IsZero() {
		return "<none>"
	}
	end := s.End
	if end.IsZero() {
		end = now
	}
	return duration.HumanDuration(end.Sub(s.Start))
}

// column returns the rendered value of a kind column
func (r Resource) column(col string, now time.Time) (string, bool) {
	if v, ok := r.Fields[col]; ok {
		return v, true
	}
	if span, ok := r.Spans[col]; ok {
		return span.Format(now), true
	}
	return "", false
}

func resourceIdentity(r Resource) watchcache.Identity {
	return r.ID
}

// carryUsage keeps the probe-owned usage across a feed upsert so the result
// does not depend on which of the two wrote last.
func carryUsage(prev, next Resource) Resource {
	if next.Usage == nil {
		next.Usage = prev.Usage
	}
	return next
}

// mergeUsage returns a merge function that installs u unless the entry
// already holds a newer sample.
func mergeUsage(u Usage) func(Resource) (Resource, bool) {
	return func(r Resource) (Resource, bool) {
		if r.Usage != nil && !u.ObservedAt.After(r.Usage.ObservedAt) {
			return r, false
		}
		r.Usage = &u
		return r, true
	}
}

// Age returns the human readable age of the resource
func (r Resource) Age(now time.Time) string {
	if r.Created.IsZero() {
		return "<unknown>"
	}
	return duration.HumanDuration(now.Sub(r.Created))
}

// ListItem renders the resource as a presentation row using the kind's
// column order.
func (r Resource) ListItem(k Kind, now time.Time) types.ListItem {
	age := r.Age(now)
	parts := make([]string, 0, len(k.Columns)+4)
	if r.Status != "" {
		parts = append(parts, "Status: "+r.Status)
	}
	for _, col := range k.Columns {
		if v, ok := r.column(col, now); ok && v != "" {
			parts = append(parts, col+": "+v)
		}
	}
	if r.Usage != nil {
		parts = append(parts, "CPU: "+r.Usage.CPU(), "Mem: "+r.Usage.Memory())
	}
	parts = append(parts, "Age: "+age)
	if r.ID.Namespace != "" {
		parts = append(parts, "NS: "+r.ID.Namespace)
	}

	metadata := make(map[string]string, len(r.Fields)+len(r.Spans)+4)
	for key, v := range r.Fields {
		metadata[key] = v
	}
	for key, span := range r.Spans {
		metadata[key] = span.Format(now)
	}
	metadata["age"] = age
	if r.Status != "" {
		metadata["status"] = r.Status
	}
	if r.ID.Namespace != "" {
		metadata["namespace"] = r.ID.Namespace
	}
	if r.Usage != nil {
		metadata["cpu"] = r.Usage.CPU()
		metadata["memory"] = r.Usage.Memory()
	}

	return types.ListItem{
		Title:       r.ID.Name,
		Description: strings.Join(parts, " | "),
		Metadata:    metadata,
	}
}
