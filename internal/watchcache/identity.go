package watchcache

// Identity names one live entry within one kind's cache. Namespace is empty
// for cluster-scoped kinds.
type Identity struct {
	Kind      string
	Namespace string
	Name      string
}

func (id Identity) String() string {
	if id.Namespace == "" {
		return id.Kind + "/" + id.Name
	}
	return id.Kind + "/" + id.Namespace + "/" + id.Name
}
