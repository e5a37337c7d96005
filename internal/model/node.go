package model

// XML element and attribute names of the routing configuration document.
const (
	TagConfig                = "Config"
	TagServerCluster         = "ServerCluster"
	TagServer                = "Server"
	TagPrimaryServers        = "PrimaryServers"
	TagBackupServers         = "BackupServers"
	TagVirtualHostGroup      = "VirtualHostGroup"
	TagVirtualHost           = "VirtualHost"
	TagURIGroup              = "UriGroup"
	TagURI                   = "Uri"
	TagRoute                 = "Route"
	TagIntelligentManagement = "IntelligentManagement"

	AttrName             = "Name"
	AttrURIGroup         = "UriGroup"
	AttrVirtualHostGroup = "VirtualHostGroup"
	AttrServerCluster    = "ServerCluster"
)

type Attr struct {
	Key   string
	Value string
}

// Node is a detached copy of one configuration element.
//
// Attribute order is preserved so the output keeps the generator's layout.
// Node values are treated as immutable once built: setters return a copy and
// never write through to slices shared with the receiver.
type Node struct {
	Tag      string
	Attrs    []Attr
	Text     string
	Children []Node
}

func (n Node) Attr(key string) string {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

func (n Node) HasAttr(key string) bool {
	for _, a := range n.Attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

// WithAttr returns a copy of n with key set to value. A new attribute is
// appended after the existing ones.
func (n Node) WithAttr(key, value string) Node {
	attrs := make([]Attr, 0, len(n.Attrs)+1)
	found := false
	for _, a := range n.Attrs {
		if a.Key == key {
			a.Value = value
			found = true
		}
		attrs = append(attrs, a)
	}
	if !found {
		attrs = append(attrs, Attr{Key: key, Value: value})
	}
	n.Attrs = attrs
	n.Children = cloneNodes(n.Children)
	return n
}

// Shallow returns a copy of n without children.
func (n Node) Shallow() Node {
	return Node{Tag: n.Tag, Attrs: append([]Attr(nil), n.Attrs...), Text: n.Text}
}

func (n Node) Clone() Node {
	n.Attrs = append([]Attr(nil), n.Attrs...)
	n.Children = cloneNodes(n.Children)
	return n
}

func cloneNodes(in []Node) []Node {
	if in == nil {
		return nil
	}
	out := make([]Node, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}
