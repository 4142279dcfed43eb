package k8s

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tapcraft-io/kubemirror/internal/watchcache"
	"github.com/tapcraft-io/kubemirror/pkg/types"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/dynamic"
)

// warmParallelism bounds the concurrent listings of the warm start
const warmParallelism = 4

type tracked struct {
	kind Kind
	sync *watchcache.Synchronizer[*unstructured.Unstructured, Resource]
	feed *WatchFeed
}

// Registry holds one synchronized cache per tracked kind. Kinds are
// independent: nothing orders updates across them.
type Registry struct {
	kinds   []Kind
	tracked map[string]*tracked
	log     logrus.FieldLogger

	// WarmStart lists every kind once, concurrently, before the watch
	// snapshots land.
	WarmStart bool
}

// NewRegistry creates a synchronizer and feed for every kind. Nothing runs
// until Start.
func NewRegistry(client dynamic.Interface, kinds []Kind, opts FeedOptions, log logrus.FieldLogger) *Registry {
	r := &Registry{
		kinds:     kinds,
		tracked:   make(map[string]*tracked, len(kinds)),
		log:       log,
		WarmStart: true,
	}
	for _, k := range kinds {
		r.tracked[k.Name] = &tracked{
			kind: k,
			sync: watchcache.New(watchcache.Options[*unstructured.Unstructured, Resource]{
				Kind:        k.Name,
				Convert:     k.Convert,
				Identity:    resourceIdentity,
				RawIdentity: k.Identity,
				Carry:       carryUsage,
				Log:         log,
			}),
			feed: NewWatchFeed(client, k, opts, log),
		}
	}
	return r
}

// Start launches one synchronizer per kind. They run until ctx is done.
func (r *Registry) Start(ctx context.Context) {
	for _, k := range r.kinds {
		t := r.tracked[k.Name]
		go t.sync.Run(ctx, t.feed.Open(ctx))
	}
	if r.WarmStart {
		go r.warm(ctx)
	}
	r.log.WithField("kinds", len(r.kinds)).Info("registry started")
}

// warm lists every kind once. Failures are ignored: the watch feed fills
// the cache regardless.
func (r *Registry) warm(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(warmParallelism)
	for _, k := range r.kinds {
		t := r.tracked[k.Name]
		g.Go(func() error {
			items, err := t.feed.List(ctx)
			if err != nil {
				r.log.WithError(err).WithField("kind", t.kind.Name).Debug("warm listing failed")
				return nil
			}
			t.sync.Warm(items)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Registry) lookup(name string) (*tracked, bool) {
	if t, ok := r.tracked[name]; ok {
		return t, true
	}
	k, ok := LookupKind(name)
	if !ok {
		return nil, false
	}
	t, ok := r.tracked[k.Name]
	return t, ok
}

// Kinds returns the tracked kinds in table order
func (r *Registry) Kinds() []Kind {
	return append([]Kind(nil), r.kinds...)
}

// Kind resolves a tracked kind by name or alias
func (r *Registry) Kind(name string) (Kind, bool) {
	t, ok := r.lookup(name)
	if !ok {
		return Kind{}, false
	}
	return t.kind, true
}

// Read returns a copy of the current entries of a kind. Unknown kinds
// return nil.
func (r *Registry) Read(kind string) []Resource {
	t, ok := r.lookup(kind)
	if !ok {
		return nil
	}
	return t.sync.Read()
}

// IsLoading reports whether a kind is still bootstrapping
func (r *Registry) IsLoading(kind string) bool {
	t, ok := r.lookup(kind)
	if !ok {
		return false
	}
	return t.sync.IsLoading()
}

// Ready reports whether every kind has published a snapshot
func (r *Registry) Ready() bool {
	return lo.EveryBy(r.kinds, func(k Kind) bool {
		return !r.tracked[k.Name].sync.IsLoading()
	})
}

// Cache exposes a kind's cache to side channels that merge into it
func (r *Registry) Cache(kind string) (*watchcache.Cache[Resource], bool) {
	t, ok := r.lookup(kind)
	if !ok {
		return nil, false
	}
	return t.sync.Cache(), true
}

// Rows returns presentation rows for a kind, sorted by namespace and name.
// An empty namespace selects all namespaces.
func (r *Registry) Rows(kind, namespace string) []types.ListItem {
	t, ok := r.lookup(kind)
	if !ok {
		return []types.ListItem{}
	}
	resources := t.sync.Read()
	if namespace != "" && t.kind.Namespaced {
		resources = lo.Filter(resources, func(res Resource, _ int) bool {
			return res.ID.Namespace == namespace
		})
	}
	sort.Slice(resources, func(i, j int) bool {
		a, b := resources[i].ID, resources[j].ID
		if a.Namespace != b.Namespace {
			return a.Namespace < b.Namespace
		}
		return a.Name < b.Name
	})

	now := time.Now()
	return lo.Map(resources, func(res Resource, _ int) types.ListItem {
		return res.ListItem(t.kind, now)
	})
}

// Namespaces returns the sorted names of the cached namespaces
func (r *Registry) Namespaces() []string {
	names := lo.Map(r.Read("namespaces"), func(res Resource, _ int) string { return res.ID.Name })
	sort.Strings(names)
	return names
}

// Containers returns the container names of a pod or workload
func (r *Registry) Containers(kind, namespace, name string) []string {
	t, ok := r.lookup(kind)
	if !ok {
		return nil
	}
	id := watchcache.Identity{Kind: t.kind.Name, Name: name}
	if t.kind.Namespaced {
		id.Namespace = namespace
	}
	res, ok := t.sync.Cache().Get(id)
	if !ok {
		return nil
	}
	return append([]string(nil), res.Containers...)
}
