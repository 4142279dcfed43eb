package k8s

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapcraft-io/kubemirror/internal/watchcache"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

func mustUnstructured(t *testing.T, kind string, obj runtime.Object) *unstructured.Unstructured {
	t.Helper()
	u, err := toUnstructured(kind, obj)
	require.NoError(t, err)
	return u
}

func mustKind(t *testing.T, name string) Kind {
	t.Helper()
	k, ok := LookupKind(name)
	require.True(t, ok, "kind %s", name)
	return k
}

func TestConvert_Pod(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "web-0", Namespace: "default", Labels: map[string]string{"app": "web"}},
		Spec: corev1.PodSpec{
			NodeName:       "node-1",
			InitContainers: []corev1.Container{{Name: "init"}},
			Containers:     []corev1.Container{{Name: "web"}, {Name: "sidecar"}},
		},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			PodIP: "10.1.0.4",
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: "web", Ready: true, RestartCount: 2},
				{Name: "sidecar", Ready: false, RestartCount: 1},
			},
		},
	}

	res, ok := mustKind(t, "pods").Convert(mustUnstructured(t, "pods", pod))
	require.True(t, ok)

	assert.Equal(t, watchcache.Identity{Kind: "pods", Namespace: "default", Name: "web-0"}, res.ID)
	assert.Equal(t, "Running", res.Status)
	assert.Equal(t, map[string]string{"app": "web"}, res.Labels)
	assert.Equal(t, []string{"init", "web", "sidecar"}, res.Containers)
	if diff := cmp.Diff(map[string]string{
		"Ready":    "1/2",
		"Restarts": "3",
		"Node":     "node-1",
		"IP":       "10.1.0.4",
	}, res.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, res.Usage)
}

func TestConvert_PodWaitingReasonWins(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "crash", Namespace: "default"},
		Spec:       corev1.PodSpec{Containers: []corev1.Container{{Name: "app"}}},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{{
				Name:  "app",
				State: corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{Reason: "CrashLoopBackOff"}},
			}},
		},
	}

	res, ok := mustKind(t, "pods").Convert(mustUnstructured(t, "pods", pod))
	require.True(t, ok)
	assert.Equal(t, "CrashLoopBackOff", res.Status)
}

func TestConvert_Terminating(t *testing.T) {
	deleted := metav1.NewTime(time.Now())
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "old", Namespace: "default", DeletionTimestamp: &deleted},
		Status:     corev1.PodStatus{Phase: corev1.PodRunning},
	}

	res, ok := mustKind(t, "pods").Convert(mustUnstructured(t, "pods", pod))
	require.True(t, ok)
	assert.Equal(t, "Terminating", res.Status)
}

func TestConvert_Node(t *testing.T) {
	node := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: "node-1", Labels: map[string]string{
			"node-role.kubernetes.io/control-plane": "",
			"node-role.kubernetes.io/worker":        "",
		}},
		Spec: corev1.NodeSpec{Unschedulable: true},
		Status: corev1.NodeStatus{
			Conditions: []corev1.NodeCondition{{Type: corev1.NodeReady, Status: corev1.ConditionTrue}},
			NodeInfo:   corev1.NodeSystemInfo{KubeletVersion: "v1.31.0"},
			Addresses:  []corev1.NodeAddress{{Type: corev1.NodeInternalIP, Address: "192.168.1.10"}},
		},
	}

	res, ok := mustKind(t, "nodes").Convert(mustUnstructured(t, "nodes", node))
	require.True(t, ok)
	assert.Equal(t, watchcache.Identity{Kind: "nodes", Name: "node-1"}, res.ID)
	assert.Equal(t, "Ready,SchedulingDisabled", res.Status)
	assert.Equal(t, "control-plane,worker", res.Fields["Roles"])
	assert.Equal(t, "v1.31.0", res.Fields["Version"])
	assert.Equal(t, "192.168.1.10", res.Fields["Internal-IP"])
}

func TestConvert_Deployment(t *testing.T) {
	replicas := int32(3)
	dep := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "api", Namespace: "prod"},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Template: corev1.PodTemplateSpec{Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "api"}}}},
		},
		Status: appsv1.DeploymentStatus{ReadyReplicas: 2, UpdatedReplicas: 3, AvailableReplicas: 2},
	}

	res, ok := mustKind(t, "deploy").Convert(mustUnstructured(t, "deployments", dep))
	require.True(t, ok)
	assert.Equal(t, "2/3", res.Fields["Ready"])
	assert.Equal(t, "3", res.Fields["Up-to-date"])
	assert.Equal(t, "2", res.Fields["Available"])
	assert.Equal(t, []string{"api"}, res.Containers)
}

func TestConvert_Service(t *testing.T) {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"},
		Spec: corev1.ServiceSpec{
			Type:      corev1.ServiceTypeLoadBalancer,
			ClusterIP: "10.0.0.12",
			Ports:     []corev1.ServicePort{{Port: 443, NodePort: 30443, Protocol: corev1.ProtocolTCP}},
		},
		Status: corev1.ServiceStatus{LoadBalancer: corev1.LoadBalancerStatus{
			Ingress: []corev1.LoadBalancerIngress{{Hostname: "lb.example.com"}},
		}},
	}

	res, ok := mustKind(t, "svc").Convert(mustUnstructured(t, "services", svc))
	require.True(t, ok)
	assert.Equal(t, "LoadBalancer", res.Fields["Type"])
	assert.Equal(t, "lb.example.com", res.Fields["External-IP"])
	assert.Equal(t, "443:30443/TCP", res.Fields["Ports"])
}

func TestConvert_JobIsStable(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	job := mustUnstructured(t, "jobs", &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "migrate", Namespace: "default"},
		Status:     batchv1.JobStatus{StartTime: &metav1.Time{Time: start}, Active: 1},
	})
	k := mustKind(t, "jobs")

	first, ok := k.Convert(job)
	require.True(t, ok)
	second, ok := k.Convert(job)
	require.True(t, ok)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Convert() not stable (-first +second):\n%s", diff)
	}

	// A running job keeps counting at read time
	assert.Equal(t, "60s", first.ListItem(k, start.Add(time.Minute)).Metadata["Duration"])
	assert.Equal(t, "5m", first.ListItem(k, start.Add(5*time.Minute)).Metadata["Duration"])
}

func TestConvert_CompletedJobDurationIsFixed(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	job := mustUnstructured(t, "jobs", &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "migrate", Namespace: "default"},
		Status: batchv1.JobStatus{
			StartTime:      &metav1.Time{Time: start},
			CompletionTime: &metav1.Time{Time: start.Add(90 * time.Second)},
			Succeeded:      1,
		},
	})
	k := mustKind(t, "jobs")

	res, ok := k.Convert(job)
	require.True(t, ok)
	assert.Equal(t, "90s", res.ListItem(k, start.Add(time.Hour)).Metadata["Duration"])
	assert.Equal(t, "1/1", res.Fields["Completions"])
}

func TestConvert_CronJobLastSchedule(t *testing.T) {
	last := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	k := mustKind(t, "cronjobs")

	scheduled, ok := k.Convert(mustUnstructured(t, "cronjobs", &batchv1.CronJob{
		ObjectMeta: metav1.ObjectMeta{Name: "backup", Namespace: "default"},
		Spec:       batchv1.CronJobSpec{Schedule: "0 * * * *"},
		Status:     batchv1.CronJobStatus{LastScheduleTime: &metav1.Time{Time: last}},
	}))
	require.True(t, ok)
	assert.Equal(t, "30s", scheduled.ListItem(k, last.Add(30*time.Second)).Metadata["Last-Schedule"])

	never, ok := k.Convert(mustUnstructured(t, "cronjobs", &batchv1.CronJob{
		ObjectMeta: metav1.ObjectMeta{Name: "report", Namespace: "default"},
		Spec:       batchv1.CronJobSpec{Schedule: "0 0 * * *"},
	}))
	require.True(t, ok)
	assert.Equal(t, "<none>", never.ListItem(k, last).Metadata["Last-Schedule"])
}

func TestConvert_RejectsMissingIdentity(t *testing.T) {
	tests := []struct {
		name string
		kind string
		obj  *unstructured.Unstructured
	}{
		{
			name: "nil object",
			kind: "pods",
		},
		{
			name: "pod without name",
			kind: "pods",
			obj: &unstructured.Unstructured{Object: map[string]any{
				"apiVersion": "v1", "kind": "Pod",
				"metadata": map[string]any{"namespace": "default"},
			}},
		},
		{
			name: "pod without namespace",
			kind: "pods",
			obj: &unstructured.Unstructured{Object: map[string]any{
				"apiVersion": "v1", "kind": "Pod",
				"metadata": map[string]any{"name": "orphan"},
			}},
		},
		{
			name: "undecodable spec",
			kind: "pods",
			obj: &unstructured.Unstructured{Object: map[string]any{
				"apiVersion": "v1", "kind": "Pod",
				"metadata": map[string]any{"name": "bad", "namespace": "default"},
				"spec":     "not-an-object",
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := mustKind(t, tt.kind).Convert(tt.obj)
			assert.False(t, ok)
		})
	}
}

func TestKinds_TableIsConsistent(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range Kinds {
		for _, name := range append([]string{k.Name}, k.Aliases...) {
			assert.False(t, seen[name], "duplicate kind name or alias %q", name)
			seen[name] = true
		}
		assert.Equal(t, k.Name, k.GVR.Resource)
		assert.NotNil(t, k.convert, "kind %s has no converter", k.Name)
	}
}

func TestSelectKinds(t *testing.T) {
	kinds, unknown := SelectKinds([]string{"po", "deployments", "widgets"})
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.Name
	}
	assert.Equal(t, []string{"pods", "deployments"}, names)
	assert.Equal(t, []string{"widgets"}, unknown)
}

func TestResource_ListItem(t *testing.T) {
	now := time.Now()
	res := Resource{
		ID:      watchcache.Identity{Kind: "pods", Namespace: "default", Name: "web-0"},
		Created: now.Add(-2 * time.Hour),
		Status:  "Running",
		Fields:  map[string]string{"Ready": "1/1", "Restarts": "0", "Node": "node-1", "IP": ""},
		Usage:   &Usage{CPUMilli: 125, MemoryBytes: 256 * 1024 * 1024},
	}

	item := res.ListItem(mustKind(t, "pods"), now)
	assert.Equal(t, "web-0", item.Title)
	assert.Equal(t, "Status: Running | Ready: 1/1 | Restarts: 0 | Node: node-1 | CPU: 125m | Mem: 256Mi | Age: 120m | NS: default", item.Description)
	assert.Equal(t, "125m", item.Metadata["cpu"])
	assert.Equal(t, "256Mi", item.Metadata["memory"])
	assert.Equal(t, "default", item.Metadata["namespace"])
}

func TestMergeUsage_KeepsNewerSample(t *testing.T) {
	t0 := time.Now()
	res := Resource{Usage: &Usage{CPUMilli: 10, ObservedAt: t0}}

	_, applied := mergeUsage(Usage{CPUMilli: 5, ObservedAt: t0.Add(-time.Second)})(res)
	assert.False(t, applied)

	merged, applied := mergeUsage(Usage{CPUMilli: 20, ObservedAt: t0.Add(time.Second)})(res)
	require.True(t, applied)
	assert.Equal(t, int64(20), merged.Usage.CPUMilli)
}

func TestCarryUsage(t *testing.T) {
	prev := Resource{Status: "Pending", Usage: &Usage{CPUMilli: 7}}
	next := Resource{Status: "Running"}

	got := carryUsage(prev, next)
	assert.Equal(t, "Running", got.Status)
	require.NotNil(t, got.Usage)
	assert.Equal(t, int64(7), got.Usage.CPUMilli)
}
