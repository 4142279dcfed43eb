package k8s

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapcraft-io/kubemirror/internal/watchcache"
	"github.com/tapcraft-io/kubemirror/pkg/types"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/dynamic"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	clienttesting "k8s.io/client-go/testing"
)

func demoClient(t *testing.T) *dynamicfake.FakeDynamicClient {
	t.Helper()
	objects, err := demoObjects()
	require.NoError(t, err)
	return newFakeDynamicClient(objects...)
}

// signalWatches forwards watches to the tracker and reports each one once
// it is registered, so writes after the signal are guaranteed to be seen.
func signalWatches(client *dynamicfake.FakeDynamicClient, resource string) <-chan struct{} {
	registered := make(chan struct{}, 8)
	k, _ := LookupKind(resource)
	client.PrependWatchReactor(resource, func(action clienttesting.Action) (bool, watch.Interface, error) {
		w, err := client.Tracker().Watch(k.GVR, action.GetNamespace())
		select {
		case registered <- struct{}{}:
		default:
		}
		return true, w, err
	})
	return registered
}

func startRegistry(t *testing.T, client dynamic.Interface, names ...string) *Registry {
	t.Helper()
	kinds, unknown := SelectKinds(names)
	require.Empty(t, unknown)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := NewRegistry(client, kinds, testFeedOptions(), testLogger())
	r.Start(ctx)
	require.Eventually(t, r.Ready, 5*time.Second, 10*time.Millisecond)
	return r
}

func TestRegistry_SyncsDemoCluster(t *testing.T) {
	r := startRegistry(t, demoClient(t), "pods", "namespaces", "deployments", "endpoints")

	assert.Len(t, r.Read("pods"), 8)
	assert.Equal(t, []string{"default", "development", "kube-public", "kube-system", "production", "staging"}, r.Namespaces())

	rows := r.Rows("po", "production")
	titles := lo.Map(rows, func(item types.ListItem, _ int) string { return item.Title })
	assert.Equal(t, []string{"database-primary-4d5e6f", "my-app-prod-1a2b3c-abc", "my-app-prod-1a2b3c-xyz"}, titles)

	assert.Equal(t, []string{"api", "sidecar"}, r.Containers("pods", "default", "backend-api-6b5c4d-xyz56"))
	assert.Nil(t, r.Containers("pods", "default", "missing"))

	deployments := lo.Map(r.Rows("deployments", ""), func(item types.ListItem, _ int) string {
		return item.Metadata["namespace"] + "/" + item.Title
	})
	assert.Equal(t, []string{"default/backend-api", "default/frontend-web", "default/nginx-app", "production/my-app-prod"}, deployments)
}

func TestRegistry_EmptyIsNotLoading(t *testing.T) {
	client := demoClient(t)
	kinds, _ := SelectKinds([]string{"endpoints"})
	r := NewRegistry(client, kinds, testFeedOptions(), testLogger())

	assert.True(t, r.IsLoading("endpoints"))
	assert.False(t, r.Ready())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	require.Eventually(t, func() bool { return !r.IsLoading("ep") }, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, r.Read("endpoints"))
	assert.Empty(t, r.Rows("endpoints", ""))
}

func TestRegistry_FollowsWatchEvents(t *testing.T) {
	client := demoClient(t)
	registered := signalWatches(client, "pods")
	r := startRegistry(t, client, "pods")

	select {
	case <-registered:
	case <-time.After(5 * time.Second):
		t.Fatal("watch never registered")
	}

	pods := client.Resource(mustKind(t, "pods").GVR).Namespace("staging")
	_, err := pods.Create(context.Background(), mustUnstructured(t, "pods", &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "canary", Namespace: "staging"},
		Status:     corev1.PodStatus{Phase: corev1.PodPending},
	}), metav1.CreateOptions{})
	require.NoError(t, err)

	id := watchcache.Identity{Kind: "pods", Namespace: "staging", Name: "canary"}
	cache, ok := r.Cache("pods")
	require.True(t, ok)
	require.Eventually(t, func() bool {
		_, ok := cache.Get(id)
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, pods.Delete(context.Background(), "canary", metav1.DeleteOptions{}))
	require.Eventually(t, func() bool {
		_, ok := cache.Get(id)
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRegistry_UnknownKind(t *testing.T) {
	r := NewRegistry(demoClient(t), nil, testFeedOptions(), testLogger())

	assert.Nil(t, r.Read("widgets"))
	assert.False(t, r.IsLoading("widgets"))
	assert.Empty(t, r.Rows("widgets", ""))
	_, ok := r.Kind("widgets")
	assert.False(t, ok)
	_, ok = r.Cache("widgets")
	assert.False(t, ok)
}

// seed drives a kind's synchronizer through one snapshot directly
func seed(t *testing.T, r *Registry, kind string, objects ...*unstructured.Unstructured) {
	t.Helper()
	tr, ok := r.lookup(kind)
	require.True(t, ok)
	tr.sync.Apply(watchcache.InitNotification[*unstructured.Unstructured]())
	for _, obj := range objects {
		tr.sync.Apply(watchcache.ItemNotification(obj))
	}
	tr.sync.Apply(watchcache.InitDoneNotification[*unstructured.Unstructured]())
}

func TestRegistry_RowsFilterByNamespace(t *testing.T) {
	kinds, _ := SelectKinds([]string{"pods", "nodes"})
	r := NewRegistry(demoClient(t), kinds, testFeedOptions(), testLogger())
	seed(t, r, "pods",
		testPod(t, "b", "z"),
		testPod(t, "a", "y"),
		testPod(t, "a", "x"),
	)
	seed(t, r, "nodes", mustUnstructured(t, "nodes", &corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "node-1"}}))

	all := lo.Map(r.Rows("pods", ""), func(item types.ListItem, _ int) string {
		return item.Metadata["namespace"] + "/" + item.Title
	})
	assert.Equal(t, []string{"a/x", "a/y", "b/z"}, all)
	assert.Len(t, r.Rows("pods", "a"), 2)

	// Cluster-scoped kinds ignore the namespace filter
	assert.Len(t, r.Rows("nodes", "a"), 1)
	assert.True(t, r.Ready())
}

func TestRunDemoChurn_CreatesWorkers(t *testing.T) {
	client := demoClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunDemoChurn(ctx, client, 5*time.Millisecond, testLogger())

	pods := client.Resource(lookupGVR("pods")).Namespace("default")
	require.Eventually(t, func() bool {
		list, err := pods.List(ctx, metav1.ListOptions{})
		if err != nil {
			return false
		}
		return lo.ContainsBy(list.Items, func(u unstructured.Unstructured) bool {
			return strings.HasPrefix(u.GetName(), "batch-worker-")
		})
	}, 5*time.Second, 5*time.Millisecond)
}
