package k8s

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	policyv1 "k8s.io/api/policy/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	storagev1 "k8s.io/api/storage/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

// typed builds a converter that decodes the raw object into T and lets fill
// derive the kind-specific columns.
func typed[T any](fill func(*T, *Resource)) func(Kind, *unstructured.Unstructured) (Resource, bool) {
	return func(k Kind, u *unstructured.Unstructured) (Resource, bool) {
		id, ok := k.Identity(u)
		if !ok {
			return Resource{}, false
		}
		var obj T
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.UnstructuredContent(), &obj); err != nil {
			return Resource{}, false
		}
		r := Resource{
			ID:      id,
			Created: u.GetCreationTimestamp().Time,
			Labels:  u.GetLabels(),
			Fields:  make(map[string]string),
			Spans:   make(map[string]Span),
		}
		fill(&obj, &r)
		if u.GetDeletionTimestamp() != nil {
			r.Status = "Terminating"
		}
		return r, true
	}
}

func namespaceFields(ns *corev1.Namespace, r *Resource) {
	r.Status = string(ns.Status.Phase)
}

func nodeFields(node *corev1.Node, r *Resource) {
	status := "Unknown"
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			status = "NotReady"
			if cond.Status == corev1.ConditionTrue {
				status = "Ready"
			}
			break
		}
	}
	if node.Spec.Unschedulable {
		status += ",SchedulingDisabled"
	}
	r.Status = status

	var roles []string
	for label := range node.Labels {
		if role, ok := strings.CutPrefix(label, "node-role.kubernetes.io/"); ok && role != "" {
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	r.Fields["Roles"] = orNone(strings.Join(roles, ","))
	r.Fields["Version"] = node.Status.NodeInfo.KubeletVersion
	for _, addr := range node.Status.Addresses {
		if addr.Type == corev1.NodeInternalIP {
			r.Fields["Internal-IP"] = addr.Address
			break
		}
	}
}

func podFields(pod *corev1.Pod, r *Resource) {
	r.Status = podStatus(pod)

	ready := 0
	restarts := int32(0)
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.Ready {
			ready++
		}
		restarts += cs.RestartCount
	}
	r.Fields["Ready"] = fmt.Sprintf("%d/%d", ready, len(pod.Spec.Containers))
	r.Fields["Restarts"] = fmt.Sprintf("%d", restarts)
	r.Fields["Node"] = pod.Spec.NodeName
	r.Fields["IP"] = pod.Status.PodIP
	r.Containers = containerNames(pod.Spec)
}

// podStatus mirrors the reason kubectl shows: a waiting or terminated
// container reason wins over the pod phase.
func podStatus(pod *corev1.Pod) string {
	status := string(pod.Status.Phase)
	if pod.Status.Reason != "" {
		status = pod.Status.Reason
	}
	for _, cs := range pod.Status.ContainerStatuses {
		switch {
		case cs.State.Waiting != nil && cs.State.Waiting.Reason != "":
			return cs.State.Waiting.Reason
		case cs.State.Terminated != nil && cs.State.Terminated.Reason != "" && pod.Status.Phase != corev1.PodSucceeded:
			status = cs.State.Terminated.Reason
		}
	}
	return status
}

func containerNames(spec corev1.PodSpec) []string {
	names := lo.Map(spec.InitContainers, func(c corev1.Container, _ int) string { return c.Name })
	names = append(names, lo.Map(spec.Containers, func(c corev1.Container, _ int) string { return c.Name })...)
	return lo.Uniq(names)
}

func deploymentFields(dep *appsv1.Deployment, r *Resource) {
	desired := lo.FromPtrOr(dep.Spec.Replicas, 1)
	r.Fields["Ready"] = fmt.Sprintf("%d/%d", dep.Status.ReadyReplicas, desired)
	r.Fields["Up-to-date"] = fmt.Sprintf("%d", dep.Status.UpdatedReplicas)
	r.Fields["Available"] = fmt.Sprintf("%d", dep.Status.AvailableReplicas)
	r.Containers = containerNames(dep.Spec.Template.Spec)
}

func replicaSetFields(rs *appsv1.ReplicaSet, r *Resource) {
	r.Fields["Desired"] = fmt.Sprintf("%d", lo.FromPtrOr(rs.Spec.Replicas, 1))
	r.Fields["Current"] = fmt.Sprintf("%d", rs.Status.Replicas)
	r.Fields["Ready"] = fmt.Sprintf("%d", rs.Status.ReadyReplicas)
}

func statefulSetFields(sts *appsv1.StatefulSet, r *Resource) {
	r.Fields["Ready"] = fmt.Sprintf("%d/%d", sts.Status.ReadyReplicas, lo.FromPtrOr(sts.Spec.Replicas, 1))
	r.Containers = containerNames(sts.Spec.Template.Spec)
}

func daemonSetFields(ds *appsv1.DaemonSet, r *Resource) {
	r.Fields["Desired"] = fmt.Sprintf("%d", ds.Status.DesiredNumberScheduled)
	r.Fields["Current"] = fmt.Sprintf("%d", ds.Status.CurrentNumberScheduled)
	r.Fields["Ready"] = fmt.Sprintf("%d", ds.Status.NumberReady)
	r.Fields["Available"] = fmt.Sprintf("%d", ds.Status.NumberAvailable)
	r.Containers = containerNames(ds.Spec.Template.Spec)
}

func jobFields(job *batchv1.Job, r *Resource) {
	r.Status = "Running"
	for _, cond := range job.Status.Conditions {
		if cond.Status != corev1.ConditionTrue {
			continue
		}
		switch cond.Type {
		case batchv1.JobComplete:
			r.Status = "Complete"
		case batchv1.JobFailed:
			r.Status = "Failed"
		case batchv1.JobSuspended:
			r.Status = "Suspended"
		}
	}
	r.Fields["Completions"] = fmt.Sprintf("%d/%d", job.Status.Succeeded, lo.FromPtrOr(job.Spec.Completions, 1))
	if job.Status.StartTime != nil {
		span := Span{Start: job.Status.StartTime.Time}
		if job.Status.CompletionTime != nil {
			span.End = job.Status.CompletionTime.Time
		}
		r.Spans["Duration"] = span
	}
	r.Containers = containerNames(job.Spec.Template.Spec)
}

func cronJobFields(cj *batchv1.CronJob, r *Resource) {
	r.Fields["Schedule"] = cj.Spec.Schedule
	r.Fields["Suspend"] = fmt.Sprintf("%t", lo.FromPtr(cj.Spec.Suspend))
	r.Fields["Active"] = fmt.Sprintf("%d", len(cj.Status.Active))
	r.Spans["Last-Schedule"] = sinceSpan(cj.Status.LastScheduleTime)
}

func serviceFields(svc *corev1.Service, r *Resource) {
	r.Fields["Type"] = string(svc.Spec.Type)
	r.Fields["Cluster-IP"] = orNone(svc.Spec.ClusterIP)

	external := append([]string{}, svc.Spec.ExternalIPs...)
	for _, ing := range svc.Status.LoadBalancer.Ingress {
		external = append(external, lo.Ternary(ing.IP != "", ing.IP, ing.Hostname))
	}
	r.Fields["External-IP"] = orNone(strings.Join(external, ","))

	ports := lo.Map(svc.Spec.Ports, func(p corev1.ServicePort, _ int) string {
		if p.NodePort != 0 {
			return fmt.Sprintf("%d:%d/%s", p.Port, p.NodePort, p.Protocol)
		}
		return fmt.Sprintf("%d/%s", p.Port, p.Protocol)
	})
	r.Fields["Ports"] = orNone(strings.Join(ports, ","))
}

func endpointsFields(ep *corev1.Endpoints, r *Resource) {
	var addrs []string
	for _, subset := range ep.Subsets {
		for _, addr := range subset.Addresses {
			for _, port := range subset.Ports {
				addrs = append(addrs, fmt.Sprintf("%s:%d", addr.IP, port.Port))
			}
			if len(subset.Ports) == 0 {
				addrs = append(addrs, addr.IP)
			}
		}
	}
	r.Fields["Endpoints"] = orNone(strings.Join(addrs, ","))
}

func ingressFields(ing *networkingv1.Ingress, r *Resource) {
	r.Fields["Class"] = orNone(lo.FromPtr(ing.Spec.IngressClassName))
	hosts := lo.FilterMap(ing.Spec.Rules, func(rule networkingv1.IngressRule, _ int) (string, bool) {
		return rule.Host, rule.Host != ""
	})
	r.Fields["Hosts"] = lo.Ternary(len(hosts) > 0, strings.Join(hosts, ","), "*")
	addrs := lo.Map(ing.Status.LoadBalancer.Ingress, func(lb networkingv1.IngressLoadBalancerIngress, _ int) string {
		return lo.Ternary(lb.IP != "", lb.IP, lb.Hostname)
	})
	r.Fields["Address"] = strings.Join(addrs, ",")
}

func ingressClassFields(ic *networkingv1.IngressClass, r *Resource) {
	r.Fields["Controller"] = ic.Spec.Controller
}

func networkPolicyFields(np *networkingv1.NetworkPolicy, r *Resource) {
	r.Fields["Pod-Selector"] = orNone(metav1.FormatLabelSelector(&np.Spec.PodSelector))
}

func configMapFields(cm *corev1.ConfigMap, r *Resource) {
	r.Fields["Data"] = fmt.Sprintf("%d keys", len(cm.Data)+len(cm.BinaryData))
}

func secretFields(s *corev1.Secret, r *Resource) {
	r.Fields["Type"] = string(s.Type)
	r.Fields["Data"] = fmt.Sprintf("%d keys", len(s.Data)+len(s.StringData))
}

func serviceAccountFields(sa *corev1.ServiceAccount, r *Resource) {
	r.Fields["Secrets"] = fmt.Sprintf("%d", len(sa.Secrets))
}

func pvcFields(pvc *corev1.PersistentVolumeClaim, r *Resource) {
	r.Status = string(pvc.Status.Phase)
	r.Fields["Volume"] = pvc.Spec.VolumeName
	if q, ok := pvc.Status.Capacity[corev1.ResourceStorage]; ok {
		r.Fields["Capacity"] = q.String()
	}
	r.Fields["Access-Modes"] = accessModes(pvc.Spec.AccessModes)
	r.Fields["Storage-Class"] = lo.FromPtr(pvc.Spec.StorageClassName)
}

func pvFields(pv *corev1.PersistentVolume, r *Resource) {
	r.Status = string(pv.Status.Phase)
	if q, ok := pv.Spec.Capacity[corev1.ResourceStorage]; ok {
		r.Fields["Capacity"] = q.String()
	}
	r.Fields["Access-Modes"] = accessModes(pv.Spec.AccessModes)
	r.Fields["Reclaim-Policy"] = string(pv.Spec.PersistentVolumeReclaimPolicy)
	if ref := pv.Spec.ClaimRef; ref != nil {
		r.Fields["Claim"] = ref.Namespace + "/" + ref.Name
	}
	r.Fields["Storage-Class"] = pv.Spec.StorageClassName
}

func accessModes(modes []corev1.PersistentVolumeAccessMode) string {
	short := map[corev1.PersistentVolumeAccessMode]string{
		corev1.ReadWriteOnce:    "RWO",
		corev1.ReadOnlyMany:     "ROX",
		corev1.ReadWriteMany:    "RWX",
		corev1.ReadWriteOncePod: "RWOP",
	}
	return strings.Join(lo.Map(modes, func(m corev1.PersistentVolumeAccessMode, _ int) string {
		return lo.ValueOr(short, m, string(m))
	}), ",")
}

func storageClassFields(sc *storagev1.StorageClass, r *Resource) {
	r.Fields["Provisioner"] = sc.Provisioner
	if sc.ReclaimPolicy != nil {
		r.Fields["Reclaim-Policy"] = string(*sc.ReclaimPolicy)
	}
	if sc.VolumeBindingMode != nil {
		r.Fields["Binding-Mode"] = string(*sc.VolumeBindingMode)
	}
}

func roleFields(role *rbacv1.Role, r *Resource) {
	r.Fields["Rules"] = fmt.Sprintf("%d", len(role.Rules))
}

func clusterRoleFields(role *rbacv1.ClusterRole, r *Resource) {
	r.Fields["Rules"] = fmt.Sprintf("%d", len(role.Rules))
}

func roleBindingFields(rb *rbacv1.RoleBinding, r *Resource) {
	r.Fields["Role"] = rb.RoleRef.Kind + "/" + rb.RoleRef.Name
	r.Fields["Subjects"] = fmt.Sprintf("%d", len(rb.Subjects))
}

func clusterRoleBindingFields(crb *rbacv1.ClusterRoleBinding, r *Resource) {
	r.Fields["Role"] = crb.RoleRef.Kind + "/" + crb.RoleRef.Name
	r.Fields["Subjects"] = fmt.Sprintf("%d", len(crb.Subjects))
}

func hpaFields(hpa *autoscalingv2.HorizontalPodAutoscaler, r *Resource) {
	ref := hpa.Spec.ScaleTargetRef
	r.Fields["Reference"] = ref.Kind + "/" + ref.Name
	r.Fields["Min"] = fmt.Sprintf("%d", lo.FromPtrOr(hpa.Spec.MinReplicas, 1))
	r.Fields["Max"] = fmt.Sprintf("%d", hpa.Spec.MaxReplicas)
	r.Fields["Replicas"] = fmt.Sprintf("%d", hpa.Status.CurrentReplicas)
}

func pdbFields(pdb *policyv1.PodDisruptionBudget, r *Resource) {
	r.Fields["Min-Available"] = "N/A"
	if pdb.Spec.MinAvailable != nil {
		r.Fields["Min-Available"] = pdb.Spec.MinAvailable.String()
	}
	r.Fields["Max-Unavailable"] = "N/A"
	if pdb.Spec.MaxUnavailable != nil {
		r.Fields["Max-Unavailable"] = pdb.Spec.MaxUnavailable.String()
	}
	r.Fields["Allowed-Disruptions"] = fmt.Sprintf("%d", pdb.Status.DisruptionsAllowed)
}

func resourceQuotaFields(rq *corev1.ResourceQuota, r *Resource) {
	names := make([]string, 0, len(rq.Status.Hard))
	for name := range rq.Status.Hard {
		names = append(names, string(name))
	}
	sort.Strings(names)
	used := lo.Map(names, func(name string, _ int) string {
		hard := rq.Status.Hard[corev1.ResourceName(name)]
		u := rq.Status.Used[corev1.ResourceName(name)]
		return fmt.Sprintf("%s: %s/%s", name, u.String(), hard.String())
	})
	r.Fields["Used"] = orNone(strings.Join(used, ", "))
}

func limitRangeFields(lr *corev1.LimitRange, r *Resource) {
	r.Fields["Limits"] = fmt.Sprintf("%d", len(lr.Spec.Limits))
}

func eventFields(ev *corev1.Event, r *Resource) {
	r.Status = ev.Type
	r.Fields["Reason"] = ev.Reason
	r.Fields["Object"] = strings.ToLower(ev.InvolvedObject.Kind) + "/" + ev.InvolvedObject.Name
	r.Fields["Count"] = fmt.Sprintf("%d", max(ev.Count, 1))
	r.Fields["Message"] = ev.Message
}

func sinceSpan(t *metav1.Time) Span {
	if t == nil {
		return Span{}
	}
	return Span{Start: t.Time}
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}
