package types

// ListItem represents one row shown for a mirrored resource
type ListItem struct {
	Title       string
	Description string
	Metadata    map[string]string
}

func (i ListItem) FilterValue() string {
	return i.Title
}

// Status returns the status recorded in the row's metadata, if any
func (i ListItem) Status() string {
	return i.Metadata["status"]
}
