package merge

import (
	"strconv"

	"github.com/John-Robertt/plugincfg-merge/internal/model"
	"github.com/John-Robertt/plugincfg-merge/internal/plugincfg"
)

// Plugin is the unshared view of one input: the entries no other input
// has claimed yet.
type Plugin struct {
	Seq    int
	Source string

	entries map[Key]*AppInfo

	// uris and apps record everything the input contained, including
	// entries later promoted to a shared group.
	uris map[string]struct{}
	apps map[string]struct{}
}

func (p *Plugin) suffix(name string) string { return name + "_" + strconv.Itoa(p.Seq) }

// newPlugin normalizes one input. ServerCluster and VirtualHostGroup names
// get the input's "_<seq>" suffix; UriGroup names are kept.
func newPlugin(r *run, seq int, doc *plugincfg.Document) *Plugin {
	p := &Plugin{
		Seq:     seq,
		Source:  doc.Source,
		entries: make(map[Key]*AppInfo),
		uris:    make(map[string]struct{}),
		apps:    make(map[string]struct{}),
	}

	clusters := make(map[string]model.ServerCluster, len(doc.Clusters))
	for _, c := range doc.Clusters {
		clusters[c.Name()] = c.Renamed(p.suffix(c.Name()))
	}
	vhgs := make(map[string]model.VirtualHostGroup, len(doc.VhostGroups))
	for _, g := range doc.VhostGroups {
		vhgs[g.Name()] = g
	}
	routes := make(map[string]model.Route, len(doc.Routes))
	for _, rt := range doc.Routes {
		routes[rt.URIGroup()] = rt
	}

	groups := lastByName(doc.URIGroups, func(g model.URIGroup) string { return g.Name() })
	for _, g := range groups {
		app := r.appName(g.Name())
		p.apps[app] = struct{}{}

		rt, ok := routes[g.Name()]
		if !ok {
			r.log.Warn("Skipping UriGroup because it does not have a corresponding Route definition",
				"file", p.Source, "uriGroup", g.Name())
			continue
		}
		sc, ok := clusters[rt.ServerCluster()]
		if !ok {
			r.log.Warn("Skipping UriGroup because its Route names an unknown ServerCluster",
				"file", p.Source, "uriGroup", g.Name(), "serverCluster", rt.ServerCluster())
			continue
		}
		vhg, ok := vhgs[rt.VirtualHostGroup()]
		if !ok {
			r.log.Warn("Skipping UriGroup because its Route names an unknown VirtualHostGroup",
				"file", p.Source, "uriGroup", g.Name(), "virtualHostGroup", rt.VirtualHostGroup())
			continue
		}

		route := rt.
			With(model.AttrServerCluster, p.suffix(rt.ServerCluster())).
			With(model.AttrVirtualHostGroup, p.suffix(rt.VirtualHostGroup()))
		groupTmpl := g.Template()
		vhgTmpl := vhg.Template().Renamed(p.suffix(vhg.Name()))

		hosts := lastByName(vhg.Hosts, func(h model.VirtualHost) string { return h.Name() })
		for _, u := range lastByName(g.URIs, func(u model.URI) string { return u.Name() }) {
			p.uris[u.Name()] = struct{}{}
			for _, h := range hosts {
				key := r.mode.Key(u.Name(), app, vhg.Name(), h.Name())
				p.entries[key] = &AppInfo{
					App:        app,
					URIGroup:   groupTmpl,
					Route:      route,
					Cluster:    sc,
					VhostGroup: vhgTmpl,
					URI:        u.Clone(),
					VHost:      h.Clone(),
				}
			}
		}
	}
	r.log.Debug("Normalized input", "file", p.Source, "seq", seq, "entries", len(p.entries))
	return p
}

type routeKey struct{ cluster, uriGroup, vhostGroup string }

// build assembles the input's leftover entries. Entries flagged by the
// uniqueness pass get their own "_<seq>" UriGroup and VirtualHostGroup.
func (p *Plugin) build(r *run) Sections {
	var (
		groups       = newOrdered[model.URIGroup]()
		uniqueGroups = newOrdered[model.URIGroup]()
		vhgs         = newOrdered[model.VirtualHostGroup]()
		uniqueVhgs   = newOrdered[model.VirtualHostGroup]()
		clusters     = newOrdered[model.ServerCluster]()
		routes       []model.Route
		seenRoutes   = make(map[routeKey]struct{})
	)

	for _, key := range sortedKeys(p.entries) {
		info := p.entries[key]
		route := info.Route

		groupName := info.URIGroup.Name()
		vhgName := info.VhostGroup.Name()
		if info.UniqueVhostGroupNeeded {
			// vhgName already carries the input suffix, so a literal input
			// group named "<vhg>_<seq>" can end up with the same name.
			// Result.Check rejects that collision.
			groupName = p.suffix(groupName)
			vhgName = p.suffix(vhgName)
			addURI(uniqueGroups, info.URIGroup.Name(), info.URIGroup.Renamed(groupName), info.URI)
			addVHost(uniqueVhgs, info.VhostGroup.Name(), info.VhostGroup.Renamed(vhgName), info.VHost)
			route = route.With(model.AttrURIGroup, groupName).With(model.AttrVirtualHostGroup, vhgName)
		} else {
			addURI(groups, groupName, info.URIGroup, info.URI)
			addVHost(vhgs, vhgName, info.VhostGroup, info.VHost)
		}

		if _, ok := clusters.get(info.Cluster.Name()); !ok {
			clusters.set(info.Cluster.Name(), r.withFailover(info.Cluster, identity))
		}

		rk := routeKey{route.ServerCluster(), route.URIGroup(), route.VirtualHostGroup()}
		if _, ok := seenRoutes[rk]; !ok {
			seenRoutes[rk] = struct{}{}
			routes = append(routes, route)
		}
	}

	return Sections{
		Clusters:    clusters.values(),
		VhostGroups: append(vhgs.values(), uniqueVhgs.values()...),
		URIGroups:   append(groups.values(), uniqueGroups.values()...),
		Routes:      routes,
	}
}

func addURI(into *ordered[model.URIGroup], key string, tmpl model.URIGroup, u model.URI) {
	g, ok := into.get(key)
	if !ok {
		g = tmpl.Clone()
	}
	for _, have := range g.URIs {
		if have.Name() == u.Name() {
			return
		}
	}
	g.URIs = append(g.URIs, u.Clone())
	into.set(key, g)
}

func addVHost(into *ordered[model.VirtualHostGroup], key string, tmpl model.VirtualHostGroup, h model.VirtualHost) {
	g, ok := into.get(key)
	if !ok {
		g = tmpl.Clone()
	}
	for _, have := range g.Hosts {
		if have.Name() == h.Name() {
			return
		}
	}
	g.Hosts = append(g.Hosts, h.Clone())
	into.set(key, g)
}
