package k8s

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tapcraft-io/kubemirror/internal/watchcache"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

// UsageProbe periodically fetches pod and node usage from the metrics API
// and merges it into entries already present in the registry. It never
// creates entries.
type UsageProbe struct {
	client   metricsclient.Interface
	registry *Registry
	interval time.Duration
	log      logrus.FieldLogger
}

// NewUsageProbe creates a probe that runs every interval
func NewUsageProbe(client metricsclient.Interface, registry *Registry, interval time.Duration, log logrus.FieldLogger) *UsageProbe {
	return &UsageProbe{
		client:   client,
		registry: registry,
		interval: interval,
		log:      log.WithField("component", "usage-probe"),
	}
}

// Run probes immediately and then on every tick until ctx is done
func (p *UsageProbe) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Probe(ctx); err != nil {
			p.log.WithError(err).Debug("usage probe failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Probe runs one fetch-and-merge cycle
func (p *UsageProbe) Probe(ctx context.Context) error {
	var errs []error
	if cache, ok := p.registry.Cache("pods"); ok {
		if err := p.probePods(ctx, cache); err != nil {
			errs = append(errs, err)
		}
	}
	if cache, ok := p.registry.Cache("nodes"); ok {
		if err := p.probeNodes(ctx, cache); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *UsageProbe) probePods(ctx context.Context, cache *watchcache.Cache[Resource]) error {
	list, err := p.client.MetricsV1beta1().PodMetricses(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list pod metrics: %w", err)
	}
	for _, m := range list.Items {
		var u Usage
		for _, c := range m.Containers {
			u.add(c.Usage)
		}
		u.ObservedAt = m.Timestamp.Time

		id := watchcache.Identity{Kind: "pods", Namespace: m.Namespace, Name: m.Name}
		watchcache.ObserveMerge("pods", cache.Merge(id, mergeUsage(u)))
	}
	return nil
}

// Nodes are cluster-scoped, so matching by name alone is exact.
func (p *UsageProbe) probeNodes(ctx context.Context, cache *watchcache.Cache[Resource]) error {
	list, err := p.client.MetricsV1beta1().NodeMetricses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list node metrics: %w", err)
	}
	for _, m := range list.Items {
		var u Usage
		u.add(m.Usage)
		u.ObservedAt = m.Timestamp.Time

		id := watchcache.Identity{Kind: "nodes", Name: m.Name}
		watchcache.ObserveMerge("nodes", cache.Merge(id, mergeUsage(u)))
	}
	return nil
}

func (u *Usage) add(list corev1.ResourceList) {
	if cpu, ok := list[corev1.ResourceCPU]; ok {
		u.CPUMilli += cpu.MilliValue()
	}
	if mem, ok := list[corev1.ResourceMemory]; ok {
		u.MemoryBytes += mem.Value()
	}
}
