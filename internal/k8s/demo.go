package k8s

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	clienttesting "k8s.io/client-go/testing"
	"k8s.io/client-go/tools/cache"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
	metricsfake "k8s.io/metrics/pkg/client/clientset/versioned/fake"
)

// NewDemoClient returns an in-memory dynamic client seeded with a small
// sample cluster. Every kind in the table can be listed and watched.
func NewDemoClient() (dynamic.Interface, error) {
	objects, err := demoObjects()
	if err != nil {
		return nil, err
	}
	return newFakeDynamicClient(objects...), nil
}

func newFakeDynamicClient(objects ...runtime.Object) *dynamicfake.FakeDynamicClient {
	listKinds := make(map[schema.GroupVersionResource]string, len(Kinds))
	for _, k := range Kinds {
		listKinds[k.GVR] = k.ListKind()
	}
	return dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), listKinds, objects...)
}

// toUnstructured converts a typed object of the given kind
func toUnstructured(kindName string, obj runtime.Object) (*unstructured.Unstructured, error) {
	k, ok := LookupKind(kindName)
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", kindName)
	}
	content, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s: %w", kindName, err)
	}
	u := &unstructured.Unstructured{Object: content}
	u.SetAPIVersion(k.GVR.GroupVersion().String())
	u.SetKind(k.ObjectKind)
	return u, nil
}

func demoObjects() ([]runtime.Object, error) {
	oneHourAgo := metav1.NewTime(time.Now().Add(-1 * time.Hour))
	oneDayAgo := metav1.NewTime(time.Now().Add(-24 * time.Hour))
	replicas := int32(2)
	completions := int32(1)

	meta := func(name, namespace string, created metav1.Time) metav1.ObjectMeta {
		return metav1.ObjectMeta{Name: name, Namespace: namespace, CreationTimestamp: created}
	}
	running := func(name, namespace, node string, containers ...string) *corev1.Pod {
		pod := &corev1.Pod{
			ObjectMeta: meta(name, namespace, oneHourAgo),
			Spec:       corev1.PodSpec{NodeName: node},
			Status:     corev1.PodStatus{Phase: corev1.PodRunning},
		}
		for _, c := range containers {
			pod.Spec.Containers = append(pod.Spec.Containers, corev1.Container{Name: c, Image: c + ":latest"})
			pod.Status.ContainerStatuses = append(pod.Status.ContainerStatuses, corev1.ContainerStatus{Name: c, Ready: true})
		}
		return pod
	}
	readyNode := func(name string) *corev1.Node {
		return &corev1.Node{
			ObjectMeta: metav1.ObjectMeta{Name: name, CreationTimestamp: oneDayAgo, Labels: map[string]string{"node-role.kubernetes.io/worker": ""}},
			Status: corev1.NodeStatus{
				Conditions: []corev1.NodeCondition{{Type: corev1.NodeReady, Status: corev1.ConditionTrue}},
				NodeInfo:   corev1.NodeSystemInfo{KubeletVersion: "v1.31.0"},
			},
		}
	}

	typed := map[string][]runtime.Object{
		"namespaces": lo.Map([]string{"default", "kube-system", "kube-public", "production", "staging", "development"},
			func(name string, _ int) runtime.Object {
				return &corev1.Namespace{ObjectMeta: meta(name, "", oneDayAgo), Status: corev1.NamespaceStatus{Phase: corev1.NamespaceActive}}
			}),
		"nodes": {readyNode("node-1"), readyNode("node-2"), readyNode("node-3")},
		"pods": {
			running("nginx-app-7d8f9c-abc12", "default", "node-1", "nginx"),
			running("nginx-app-7d8f9c-def34", "default", "node-2", "nginx"),
			running("backend-api-6b5c4d-xyz56", "default", "node-1", "api", "sidecar"),
			running("frontend-web-8a7f2e-qrs78", "default", "node-3", "web"),
			running("redis-cache-5c9d3a-mno90", "default", "node-2", "redis"),
			running("my-app-prod-1a2b3c-xyz", "production", "node-1", "app"),
			running("my-app-prod-1a2b3c-abc", "production", "node-3", "app"),
			running("database-primary-4d5e6f", "production", "node-2", "postgres"),
		},
		"deployments": lo.Map([]string{"default/nginx-app", "default/backend-api", "default/frontend-web", "production/my-app-prod"},
			func(key string, _ int) runtime.Object {
				ns, name, _ := cache.SplitMetaNamespaceKey(key)
				return &appsv1.Deployment{
					ObjectMeta: meta(name, ns, oneHourAgo),
					Spec:       appsv1.DeploymentSpec{Replicas: &replicas},
					Status:     appsv1.DeploymentStatus{ReadyReplicas: 2, UpdatedReplicas: 2, AvailableReplicas: 2},
				}
			}),
		"services": {
			&corev1.Service{ObjectMeta: meta("nginx-service", "default", oneHourAgo), Spec: corev1.ServiceSpec{Type: corev1.ServiceTypeClusterIP, ClusterIP: "10.0.0.10", Ports: []corev1.ServicePort{{Port: 80, Protocol: corev1.ProtocolTCP}}}},
			&corev1.Service{ObjectMeta: meta("backend-api-service", "default", oneHourAgo), Spec: corev1.ServiceSpec{Type: corev1.ServiceTypeClusterIP, ClusterIP: "10.0.0.11", Ports: []corev1.ServicePort{{Port: 8080, Protocol: corev1.ProtocolTCP}}}},
			&corev1.Service{ObjectMeta: meta("frontend-web-service", "default", oneHourAgo), Spec: corev1.ServiceSpec{Type: corev1.ServiceTypeLoadBalancer, ClusterIP: "10.0.0.12", Ports: []corev1.ServicePort{{Port: 443, NodePort: 30443, Protocol: corev1.ProtocolTCP}}}},
		},
		"statefulsets": {
			&appsv1.StatefulSet{ObjectMeta: meta("redis-cluster", "default", oneHourAgo), Spec: appsv1.StatefulSetSpec{Replicas: &replicas}, Status: appsv1.StatefulSetStatus{ReadyReplicas: 2}},
		},
		"daemonsets": {
			&appsv1.DaemonSet{ObjectMeta: meta("kube-proxy", "kube-system", oneDayAgo), Status: appsv1.DaemonSetStatus{NumberReady: 3, DesiredNumberScheduled: 3, CurrentNumberScheduled: 3, NumberAvailable: 3}},
			&appsv1.DaemonSet{ObjectMeta: meta("fluentd", "kube-system", oneDayAgo), Status: appsv1.DaemonSetStatus{NumberReady: 3, DesiredNumberScheduled: 3, CurrentNumberScheduled: 3, NumberAvailable: 3}},
		},
		"configmaps": {
			&corev1.ConfigMap{ObjectMeta: meta("app-config", "default", oneHourAgo), Data: map[string]string{"key1": "value1", "key2": "value2"}},
			&corev1.ConfigMap{ObjectMeta: meta("nginx-config", "default", oneHourAgo), Data: map[string]string{"nginx.conf": "server {}"}},
		},
		"secrets": {
			&corev1.Secret{ObjectMeta: meta("db-credentials", "default", oneHourAgo), Type: corev1.SecretTypeOpaque, Data: map[string][]byte{"username": []byte("admin"), "password": []byte("secret")}},
			&corev1.Secret{ObjectMeta: meta("api-keys", "default", oneHourAgo), Type: corev1.SecretTypeOpaque, Data: map[string][]byte{"api-key": []byte("abc123")}},
		},
		"jobs": {
			&batchv1.Job{ObjectMeta: meta("data-migration-job", "default", oneHourAgo), Spec: batchv1.JobSpec{Completions: &completions}, Status: batchv1.JobStatus{Succeeded: 1}},
		},
		"cronjobs": {
			&batchv1.CronJob{ObjectMeta: meta("backup-cronjob", "default", oneHourAgo), Spec: batchv1.CronJobSpec{Schedule: "0 2 * * *"}},
			&batchv1.CronJob{ObjectMeta: meta("cleanup-cronjob", "default", oneHourAgo), Spec: batchv1.CronJobSpec{Schedule: "0 */6 * * *"}},
		},
		"ingresses": {
			&networkingv1.Ingress{
				ObjectMeta: meta("main-ingress", "default", oneHourAgo),
				Spec:       networkingv1.IngressSpec{Rules: []networkingv1.IngressRule{{Host: "example.com"}, {Host: "api.example.com"}}},
			},
		},
	}

	var objects []runtime.Object
	for _, k := range Kinds {
		for _, obj := range typed[k.Name] {
			u, err := toUnstructured(k.Name, obj)
			if err != nil {
				return nil, err
			}
			objects = append(objects, u)
		}
	}
	return objects, nil
}

// NewDemoMetricsClient returns a metrics client that reports synthetic usage
// for whatever pods and nodes the demo cluster currently holds.
func NewDemoMetricsClient(cluster dynamic.Interface) metricsclient.Interface {
	client := metricsfake.NewSimpleClientset()
	client.PrependReactor("list", "pods", func(action clienttesting.Action) (bool, runtime.Object, error) {
		list := &metricsv1beta1.PodMetricsList{}
		pods, err := cluster.Resource(lookupGVR("pods")).List(context.Background(), metav1.ListOptions{})
		if err != nil {
			return true, nil, err
		}
		now := metav1.Now()
		for _, pod := range pods.Items {
			list.Items = append(list.Items, metricsv1beta1.PodMetrics{
				ObjectMeta: metav1.ObjectMeta{Name: pod.GetName(), Namespace: pod.GetNamespace()},
				Timestamp:  now,
				Window:     metav1.Duration{Duration: 30 * time.Second},
				Containers: []metricsv1beta1.ContainerMetrics{{
					Name:  "main",
					Usage: syntheticUsage(pod.GetName(), now.Time, 250, 512),
				}},
			})
		}
		return true, list, nil
	})
	client.PrependReactor("list", "nodes", func(action clienttesting.Action) (bool, runtime.Object, error) {
		list := &metricsv1beta1.NodeMetricsList{}
		nodes, err := cluster.Resource(lookupGVR("nodes")).List(context.Background(), metav1.ListOptions{})
		if err != nil {
			return true, nil, err
		}
		now := metav1.Now()
		for _, node := range nodes.Items {
			list.Items = append(list.Items, metricsv1beta1.NodeMetrics{
				ObjectMeta: metav1.ObjectMeta{Name: node.GetName()},
				Timestamp:  now,
				Window:     metav1.Duration{Duration: 30 * time.Second},
				Usage:      syntheticUsage(node.GetName(), now.Time, 2000, 8192),
			})
		}
		return true, list, nil
	})
	return client
}

// syntheticUsage derives a stable base from the name and wobbles it over
// time so the demo shows changing numbers.
func syntheticUsage(name string, now time.Time, maxCPUMilli, maxMemMi int64) corev1.ResourceList {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	base := int64(h.Sum32())
	wobble := now.Unix() % 10
	cpu := (base%maxCPUMilli)/2 + wobble*maxCPUMilli/40
	mem := (base%maxMemMi)/2 + wobble*maxMemMi/40
	return corev1.ResourceList{
		corev1.ResourceCPU:    *resource.NewMilliQuantity(cpu, resource.DecimalSI),
		corev1.ResourceMemory: *resource.NewQuantity(mem*1024*1024, resource.BinarySI),
	}
}

func lookupGVR(name string) schema.GroupVersionResource {
	k, _ := LookupKind(name)
	return k.GVR
}

// RunDemoChurn periodically creates and deletes a pod in the demo cluster so
// the watch feeds have something to deliver.
func RunDemoChurn(ctx context.Context, cluster dynamic.Interface, interval time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pods := cluster.Resource(lookupGVR("pods")).Namespace("default")
	var last string
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if last != "" {
			if err := pods.Delete(ctx, last, metav1.DeleteOptions{}); err != nil {
				log.WithError(err).Debug("demo churn delete failed")
			}
			last = ""
			continue
		}

		name := fmt.Sprintf("batch-worker-%d", i)
		u, err := toUnstructured("pods", &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default", CreationTimestamp: metav1.Now()},
			Spec:       corev1.PodSpec{Containers: []corev1.Container{{Name: "worker", Image: "busybox"}}},
			Status:     corev1.PodStatus{Phase: corev1.PodPending},
		})
		if err != nil {
			log.WithError(err).Debug("demo churn convert failed")
			continue
		}
		if _, err := pods.Create(ctx, u, metav1.CreateOptions{}); err != nil {
			log.WithError(err).Debug("demo churn create failed")
			continue
		}
		last = name
	}
}
