package k8s

import (
	"github.com/samber/lo"
	"github.com/tapcraft-io/kubemirror/internal/watchcache"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Kind describes one tracked resource collection
type Kind struct {
	// Name is the plural resource name, e.g. "pods"
	Name    string
	Aliases []string

	GVR        schema.GroupVersionResource
	ObjectKind string
	Namespaced bool

	// Columns lists the Fields keys shown for this kind, in order
	Columns []string

	convert func(Kind, *unstructured.Unstructured) (Resource, bool)
}

// ListKind is the kind name of a list of this resource
func (k Kind) ListKind() string {
	return k.ObjectKind + "List"
}

// Matches reports whether name is the kind's name or one of its aliases
func (k Kind) Matches(name string) bool {
	return k.Name == name || lo.Contains(k.Aliases, name)
}

// Convert maps a raw object to a Resource. It returns false when the object
// lacks a name (or namespace, for namespaced kinds) or does not decode.
func (k Kind) Convert(u *unstructured.Unstructured) (Resource, bool) {
	if u == nil || k.convert == nil {
		return Resource{}, false
	}
	return k.convert(k, u)
}

// Identity extracts the identity of a raw object without decoding it
func (k Kind) Identity(u *unstructured.Unstructured) (watchcache.Identity, bool) {
	if u == nil || u.GetName() == "" {
		return watchcache.Identity{}, false
	}
	id := watchcache.Identity{Kind: k.Name, Name: u.GetName()}
	if k.Namespaced {
		if u.GetNamespace() == "" {
			return watchcache.Identity{}, false
		}
		id.Namespace = u.GetNamespace()
	}
	return id, true
}

func gvr(group, version, resource string) schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: group, Version: version, Resource: resource}
}

// Kinds is the table of tracked kinds
var Kinds = []Kind{
	{
		Name: "namespaces", Aliases: []string{"namespace", "ns"},
		GVR: gvr("", "v1", "namespaces"), ObjectKind: "Namespace",
		convert: typed(namespaceFields),
	},
	{
		Name: "nodes", Aliases: []string{"node", "no"},
		GVR: gvr("", "v1", "nodes"), ObjectKind: "Node",
		Columns: []string{"Roles", "Version", "Internal-IP"},
		convert: typed(nodeFields),
	},
	{
		Name: "pods", Aliases: []string{"pod", "po"},
		GVR: gvr("", "v1", "pods"), ObjectKind: "Pod", Namespaced: true,
		Columns: []string{"Ready", "Restarts", "Node", "IP"},
		convert: typed(podFields),
	},
	{
		Name: "deployments", Aliases: []string{"deployment", "deploy"},
		GVR: gvr("apps", "v1", "deployments"), ObjectKind: "Deployment", Namespaced: true,
		Columns: []string{"Ready", "Up-to-date", "Available"},
		convert: typed(deploymentFields),
	},
	{
		Name: "replicasets", Aliases: []string{"replicaset", "rs"},
		GVR: gvr("apps", "v1", "replicasets"), ObjectKind: "ReplicaSet", Namespaced: true,
		Columns: []string{"Desired", "Current", "Ready"},
		convert: typed(replicaSetFields),
	},
	{
		Name: "statefulsets", Aliases: []string{"statefulset", "sts"},
		GVR: gvr("apps", "v1", "statefulsets"), ObjectKind: "StatefulSet", Namespaced: true,
		Columns: []string{"Ready"},
		convert: typed(statefulSetFields),
	},
	{
		Name: "daemonsets", Aliases: []string{"daemonset", "ds"},
		GVR: gvr("apps", "v1", "daemonsets"), ObjectKind: "DaemonSet", Namespaced: true,
		Columns: []string{"Desired", "Current", "Ready", "Available"},
		convert: typed(daemonSetFields),
	},
	{
		Name: "jobs", Aliases: []string{"job"},
		GVR: gvr("batch", "v1", "jobs"), ObjectKind: "Job", Namespaced: true,
		Columns: []string{"Completions", "Duration"},
		convert: typed(jobFields),
	},
	{
		Name: "cronjobs", Aliases: []string{"cronjob", "cj"},
		GVR: gvr("batch", "v1", "cronjobs"), ObjectKind: "CronJob", Namespaced: true,
		Columns: []string{"Schedule", "Suspend", "Active", "Last-Schedule"},
		convert: typed(cronJobFields),
	},
	{
		Name: "services", Aliases: []string{"service", "svc"},
		GVR: gvr("", "v1", "services"), ObjectKind: "Service", Namespaced: true,
		Columns: []string{"Type", "Cluster-IP", "External-IP", "Ports"},
		convert: typed(serviceFields),
	},
	{
		Name: "endpoints", Aliases: []string{"endpoint", "ep"},
		GVR: gvr("", "v1", "endpoints"), ObjectKind: "Endpoints", Namespaced: true,
		Columns: []string{"Endpoints"},
		convert: typed(endpointsFields),
	},
	{
		Name: "ingresses", Aliases: []string{"ingress", "ing"},
		GVR: gvr("networking.k8s.io", "v1", "ingresses"), ObjectKind: "Ingress", Namespaced: true,
		Columns: []string{"Class", "Hosts", "Address"},
		convert: typed(ingressFields),
	},
	{
		Name: "ingressclasses", Aliases: []string{"ingressclass"},
		GVR: gvr("networking.k8s.io", "v1", "ingressclasses"), ObjectKind: "IngressClass",
		Columns: []string{"Controller"},
		convert: typed(ingressClassFields),
	},
	{
		Name: "networkpolicies", Aliases: []string{"networkpolicy", "netpol"},
		GVR: gvr("networking.k8s.io", "v1", "networkpolicies"), ObjectKind: "NetworkPolicy", Namespaced: true,
		Columns: []string{"Pod-Selector"},
		convert: typed(networkPolicyFields),
	},
	{
		Name: "configmaps", Aliases: []string{"configmap", "cm"},
		GVR: gvr("", "v1", "configmaps"), ObjectKind: "ConfigMap", Namespaced: true,
		Columns: []string{"Data"},
		convert: typed(configMapFields),
	},
	{
		Name: "secrets", Aliases: []string{"secret"},
		GVR: gvr("", "v1", "secrets"), ObjectKind: "Secret", Namespaced: true,
		Columns: []string{"Type", "Data"},
		convert: typed(secretFields),
	},
	{
		Name: "serviceaccounts", Aliases: []string{"serviceaccount", "sa"},
		GVR: gvr("", "v1", "serviceaccounts"), ObjectKind: "ServiceAccount", Namespaced: true,
		Columns: []string{"Secrets"},
		convert: typed(serviceAccountFields),
	},
	{
		Name: "persistentvolumeclaims", Aliases: []string{"persistentvolumeclaim", "pvc"},
		GVR: gvr("", "v1", "persistentvolumeclaims"), ObjectKind: "PersistentVolumeClaim", Namespaced: true,
		Columns: []string{"Volume", "Capacity", "Access-Modes", "Storage-Class"},
		convert: typed(pvcFields),
	},
	{
		Name: "persistentvolumes", Aliases: []string{"persistentvolume", "pv"},
		GVR: gvr("", "v1", "persistentvolumes"), ObjectKind: "PersistentVolume",
		Columns: []string{"Capacity", "Access-Modes", "Reclaim-Policy", "Claim", "Storage-Class"},
		convert: typed(pvFields),
	},
	{
		Name: "storageclasses", Aliases: []string{"storageclass", "sc"},
		GVR: gvr("storage.k8s.io", "v1", "storageclasses"), ObjectKind: "StorageClass",
		Columns: []string{"Provisioner", "Reclaim-Policy", "Binding-Mode"},
		convert: typed(storageClassFields),
	},
	{
		Name: "roles", Aliases: []string{"role"},
		GVR: gvr("rbac.authorization.k8s.io", "v1", "roles"), ObjectKind: "Role", Namespaced: true,
		Columns: []string{"Rules"},
		convert: typed(roleFields),
	},
	{
		Name: "rolebindings", Aliases: []string{"rolebinding"},
		GVR: gvr("rbac.authorization.k8s.io", "v1", "rolebindings"), ObjectKind: "RoleBinding", Namespaced: true,
		Columns: []string{"Role", "Subjects"},
		convert: typed(roleBindingFields),
	},
	{
		Name: "clusterroles", Aliases: []string{"clusterrole"},
		GVR: gvr("rbac.authorization.k8s.io", "v1", "clusterroles"), ObjectKind: "ClusterRole",
		Columns: []string{"Rules"},
		convert: typed(clusterRoleFields),
	},
	{
		Name: "clusterrolebindings", Aliases: []string{"clusterrolebinding"},
		GVR: gvr("rbac.authorization.k8s.io", "v1", "clusterrolebindings"), ObjectKind: "ClusterRoleBinding",
		Columns: []string{"Role", "Subjects"},
		convert: typed(clusterRoleBindingFields),
	},
	{
		Name: "horizontalpodautoscalers", Aliases: []string{"horizontalpodautoscaler", "hpa"},
		GVR: gvr("autoscaling", "v2", "horizontalpodautoscalers"), ObjectKind: "HorizontalPodAutoscaler", Namespaced: true,
		Columns: []string{"Reference", "Min", "Max", "Replicas"},
		convert: typed(hpaFields),
	},
	{
		Name: "poddisruptionbudgets", Aliases: []string{"poddisruptionbudget", "pdb"},
		GVR: gvr("policy", "v1", "poddisruptionbudgets"), ObjectKind: "PodDisruptionBudget", Namespaced: true,
		Columns: []string{"Min-Available", "Max-Unavailable", "Allowed-Disruptions"},
		convert: typed(pdbFields),
	},
	{
		Name: "resourcequotas", Aliases: []string{"resourcequota", "quota"},
		GVR: gvr("", "v1", "resourcequotas"), ObjectKind: "ResourceQuota", Namespaced: true,
		Columns: []string{"Used"},
		convert: typed(resourceQuotaFields),
	},
	{
		Name: "limitranges", Aliases: []string{"limitrange", "limits"},
		GVR: gvr("", "v1", "limitranges"), ObjectKind: "LimitRange", Namespaced: true,
		Columns: []string{"Limits"},
		convert: typed(limitRangeFields),
	},
	{
		Name: "events", Aliases: []string{"event", "ev"},
		GVR: gvr("", "v1", "events"), ObjectKind: "Event", Namespaced: true,
		Columns: []string{"Reason", "Object", "Count", "Message"},
		convert: typed(eventFields),
	},
}

// LookupKind resolves a kind by name or alias
func LookupKind(name string) (Kind, bool) {
	return lo.Find(Kinds, func(k Kind) bool { return k.Matches(name) })
}

// SelectKinds resolves names to kinds, preserving table order. An empty
// list selects every kind.
func SelectKinds(names []string) ([]Kind, []string) {
	if len(names) == 0 {
		return Kinds, nil
	}
	var unknown []string
	selected := make(map[string]bool, len(names))
	for _, name := range names {
		k, ok := LookupKind(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		selected[k.Name] = true
	}
	return lo.Filter(Kinds, func(k Kind, _ int) bool { return selected[k.Name] }), unknown
}
