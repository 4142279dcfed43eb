package watchcache

// NotificationType tags a Notification
type NotificationType int

const (
	// Init marks the start of a (re)sync snapshot
	Init NotificationType = iota
	// InitItem carries one item of the snapshot in progress
	InitItem
	// InitDone marks the snapshot as complete
	InitDone
	// Upsert is a post-snapshot create-or-update
	Upsert
	// Delete removes the entry identified by the payload
	Delete
	// Error reports a transient feed failure
	Error
)

func (t NotificationType) String() string {
	switch t {
	case Init:
		return "init"
	case InitItem:
		return "init_item"
	case InitDone:
		return "init_done"
	case Upsert:
		return "upsert"
	case Delete:
		return "delete"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Notification is one change from a feed. Object is set for InitItem, Upsert
// and Delete; Err is set for Error.
type Notification[R any] struct {
	Type   NotificationType
	Object R
	Err    error
}

func InitNotification[R any]() Notification[R] {
	return Notification[R]{Type: Init}
}

func ItemNotification[R any](obj R) Notification[R] {
	return Notification[R]{Type: InitItem, Object: obj}
}

func InitDoneNotification[R any]() Notification[R] {
	return Notification[R]{Type: InitDone}
}

func UpsertNotification[R any](obj R) Notification[R] {
	return Notification[R]{Type: Upsert, Object: obj}
}

func DeleteNotification[R any](obj R) Notification[R] {
	return Notification[R]{Type: Delete, Object: obj}
}

func ErrorNotification[R any](err error) Notification[R] {
	return Notification[R]{Type: Error, Err: err}
}
