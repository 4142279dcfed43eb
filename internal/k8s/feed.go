package k8s

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tapcraft-io/kubemirror/internal/watchcache"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/dynamic"
)

// Notification is a change notification carrying a raw cluster object
type Notification = watchcache.Notification[*unstructured.Unstructured]

// FeedOptions tunes how a WatchFeed reconnects
type FeedOptions struct {
	// Backoff is stepped after a failed list or watch. It is reset once a
	// watch has proven healthy.
	Backoff wait.Backoff
	// RelistDelay is waited after a healthy watch ends cleanly before relisting
	RelistDelay time.Duration
	// MinWatchDuration is how long a watch must stay open to count as
	// healthy when it delivered no events
	MinWatchDuration time.Duration
	// Buffer is the capacity of the notification channel
	Buffer int
}

// DefaultFeedOptions returns the reconnect settings used against a live cluster
func DefaultFeedOptions() FeedOptions {
	return FeedOptions{
		Backoff: wait.Backoff{
			Duration: time.Second,
			Factor:   2,
			Jitter:   0.1,
			Steps:    8,
			Cap:      30 * time.Second,
		},
		RelistDelay:      time.Second,
		MinWatchDuration: 30 * time.Second,
		Buffer:           64,
	}
}

// WatchFeed is the change feed for one kind. Each connection starts with a
// full listing delivered as Init, InitItem..., InitDone and continues with
// the watch stream from the listing's resource version. Any disconnect leads
// to a fresh listing.
type WatchFeed struct {
	client dynamic.Interface
	kind   Kind
	opts   FeedOptions
	log    logrus.FieldLogger
}

// NewWatchFeed creates a feed for kind
func NewWatchFeed(client dynamic.Interface, kind Kind, opts FeedOptions, log logrus.FieldLogger) *WatchFeed {
	return &WatchFeed{
		client: client,
		kind:   kind,
		opts:   opts,
		log:    log.WithField("kind", kind.Name),
	}
}

// List fetches the current objects once
func (f *WatchFeed) List(ctx context.Context) ([]*unstructured.Unstructured, error) {
	items, _, err := f.list(ctx)
	return items, err
}

func (f *WatchFeed) list(ctx context.Context) ([]*unstructured.Unstructured, string, error) {
	list, err := f.client.Resource(f.kind.GVR).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to list %s: %w", f.kind.Name, err)
	}
	items := make([]*unstructured.Unstructured, len(list.Items))
	for i := range list.Items {
		items[i] = &list.Items[i]
	}
	return items, list.GetResourceVersion(), nil
}

// Open starts the feed. The channel is closed once ctx is done.
func (f *WatchFeed) Open(ctx context.Context) <-chan Notification {
	out := make(chan Notification, f.opts.Buffer)
	go f.run(ctx, out)
	return out
}

func (f *WatchFeed) run(ctx context.Context, out chan<- Notification) {
	defer close(out)

	backoff := f.opts.Backoff
	for ctx.Err() == nil {
		healthy := false
		rv, err := f.snapshot(ctx, out)
		if err == nil {
			started := time.Now()
			var delivered bool
			delivered, err = f.watch(ctx, out, rv)
			healthy = delivered || time.Since(started) >= f.opts.MinWatchDuration
		}
		if ctx.Err() != nil {
			return
		}
		if healthy {
			backoff = f.opts.Backoff
		}

		delay := f.opts.RelistDelay
		switch {
		case err != nil:
			if !f.send(ctx, out, watchcache.ErrorNotification[*unstructured.Unstructured](err)) {
				return
			}
			delay = backoff.Step()
		case !healthy:
			delay = max(delay, backoff.Step())
		}
		if !sleep(ctx, delay) {
			return
		}
	}
}

// snapshot lists the collection and emits it as one Init...InitDone run.
// Nothing is emitted when the listing fails.
func (f *WatchFeed) snapshot(ctx context.Context, out chan<- Notification) (string, error) {
	items, rv, err := f.list(ctx)
	if err != nil {
		return "", err
	}

	f.log.WithField("items", len(items)).Debug("snapshot listed")
	if !f.send(ctx, out, watchcache.InitNotification[*unstructured.Unstructured]()) {
		return "", ctx.Err()
	}
	for _, item := range items {
		if !f.send(ctx, out, watchcache.ItemNotification(item)) {
			return "", ctx.Err()
		}
	}
	if !f.send(ctx, out, watchcache.InitDoneNotification[*unstructured.Unstructured]()) {
		return "", ctx.Err()
	}
	return rv, nil
}

// watch forwards watch events until the stream ends and reports whether any
// event was delivered. A nil error means the stream closed or expired and a
// relist is due.
func (f *WatchFeed) watch(ctx context.Context, out chan<- Notification, rv string) (bool, error) {
	w, err := f.client.Resource(f.kind.GVR).Watch(ctx, metav1.ListOptions{
		ResourceVersion:     rv,
		AllowWatchBookmarks: true,
	})
	if err != nil {
		return false, fmt.Errorf("failed to watch %s: %w", f.kind.Name, err)
	}
	defer w.Stop()

	delivered := false
	for {
		select {
		case <-ctx.Done():
			return delivered, nil
		case event, ok := <-w.ResultChan():
			if !ok {
				f.log.Debug("watch closed, relisting")
				return delivered, nil
			}

			var n Notification
			switch event.Type {
			case watch.Added, watch.Modified:
				obj, ok := event.Object.(*unstructured.Unstructured)
				if !ok {
					continue
				}
				n = watchcache.UpsertNotification(obj)
			case watch.Deleted:
				obj, ok := event.Object.(*unstructured.Unstructured)
				if !ok {
					continue
				}
				n = watchcache.DeleteNotification(obj)
			case watch.Error:
				err := apierrors.FromObject(event.Object)
				if apierrors.IsResourceExpired(err) || apierrors.IsGone(err) {
					f.log.WithError(err).Debug("watch expired, relisting")
					return delivered, nil
				}
				return delivered, fmt.Errorf("watch %s: %w", f.kind.Name, err)
			default:
				continue
			}

			if !f.send(ctx, out, n) {
				return delivered, nil
			}
			delivered = true
		}
	}
}

func (f *WatchFeed) send(ctx context.Context, out chan<- Notification, n Notification) bool {
	select {
	case out <- n:
		return true
	case <-ctx.Done():
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
