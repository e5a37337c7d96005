package model

// Server is one cluster member. Its Node keeps nested Transport elements.
type Server struct{ Node }

func (s Server) Name() string { return s.Attr(AttrName) }

func (s Server) Renamed(name string) Server { return Server{s.WithAttr(AttrName, name)} }

func (s Server) Clone() Server { return Server{s.Node.Clone()} }

// ServerCluster keeps its attributes and any non-server children in Node;
// Server members live in Servers. Hint blocks found in the input are lifted
// into per-run name lists by the loader. PrimaryServers/BackupServers hold
// the partition computed for output.
type ServerCluster struct {
	Node
	Servers []Server

	PrimaryServers []string
	BackupServers  []string
}

func (c ServerCluster) Name() string { return c.Attr(AttrName) }

func (c ServerCluster) Renamed(name string) ServerCluster {
	out := c.Clone()
	out.Node = out.WithAttr(AttrName, name)
	return out
}

func (c ServerCluster) Clone() ServerCluster {
	out := ServerCluster{
		Node:           c.Node.Clone(),
		PrimaryServers: append([]string(nil), c.PrimaryServers...),
		BackupServers:  append([]string(nil), c.BackupServers...),
	}
	if c.Servers != nil {
		out.Servers = make([]Server, len(c.Servers))
		for i, s := range c.Servers {
			out.Servers[i] = s.Clone()
		}
	}
	return out
}

// Template returns a member-less copy carrying only the cluster attributes.
func (c ServerCluster) Template() ServerCluster {
	return ServerCluster{Node: c.Node.Shallow()}
}

type VirtualHost struct{ Node }

func (v VirtualHost) Name() string { return v.Attr(AttrName) }

func (v VirtualHost) Clone() VirtualHost { return VirtualHost{v.Node.Clone()} }

type VirtualHostGroup struct {
	Node
	Hosts []VirtualHost
}

func (g VirtualHostGroup) Name() string { return g.Attr(AttrName) }

func (g VirtualHostGroup) Renamed(name string) VirtualHostGroup {
	out := g.Clone()
	out.Node = out.WithAttr(AttrName, name)
	return out
}

func (g VirtualHostGroup) Clone() VirtualHostGroup {
	out := VirtualHostGroup{Node: g.Node.Clone()}
	if g.Hosts != nil {
		out.Hosts = make([]VirtualHost, len(g.Hosts))
		for i, h := range g.Hosts {
			out.Hosts[i] = h.Clone()
		}
	}
	return out
}

// Template returns a host-less copy carrying only the group attributes.
func (g VirtualHostGroup) Template() VirtualHostGroup {
	return VirtualHostGroup{Node: g.Node.Shallow()}
}

type URI struct{ Node }

func (u URI) Name() string { return u.Attr(AttrName) }

func (u URI) Clone() URI { return URI{u.Node.Clone()} }

type URIGroup struct {
	Node
	URIs []URI
}

func (g URIGroup) Name() string { return g.Attr(AttrName) }

func (g URIGroup) Renamed(name string) URIGroup {
	out := g.Clone()
	out.Node = out.WithAttr(AttrName, name)
	return out
}

func (g URIGroup) Clone() URIGroup {
	out := URIGroup{Node: g.Node.Clone()}
	if g.URIs != nil {
		out.URIs = make([]URI, len(g.URIs))
		for i, u := range g.URIs {
			out.URIs[i] = u.Clone()
		}
	}
	return out
}

func (g URIGroup) Template() URIGroup {
	return URIGroup{Node: g.Node.Shallow()}
}

// Route binds one UriGroup to one VirtualHostGroup and one ServerCluster, by name.
type Route struct{ Node }

func NewRoute(serverCluster, uriGroup, virtualHostGroup string) Route {
	return Route{Node{
		Tag: TagRoute,
		Attrs: []Attr{
			{Key: AttrServerCluster, Value: serverCluster},
			{Key: AttrURIGroup, Value: uriGroup},
			{Key: AttrVirtualHostGroup, Value: virtualHostGroup},
		},
	}}
}

func (r Route) URIGroup() string         { return r.Attr(AttrURIGroup) }
func (r Route) VirtualHostGroup() string { return r.Attr(AttrVirtualHostGroup) }
func (r Route) ServerCluster() string    { return r.Attr(AttrServerCluster) }

func (r Route) With(key, value string) Route { return Route{r.WithAttr(key, value)} }

func (r Route) Clone() Route { return Route{r.Node.Clone()} }
