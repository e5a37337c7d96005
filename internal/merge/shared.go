package merge

import (
	"sort"
	"strconv"
	"strings"

	"github.com/John-Robertt/plugincfg-merge/internal/model"
)

// SharedPlugin collects the entries found in two or more inputs. Each entry
// accumulates the servers of every input that routes it.
type SharedPlugin struct {
	Seq int

	// template supplies the attributes of every shared cluster this group emits.
	template model.ServerCluster

	entries map[Key]*AppInfo
	vhosts  map[string]model.VirtualHost
	servers map[string]model.Server
}

func newSharedPlugin(seq int, cluster model.ServerCluster) *SharedPlugin {
	return &SharedPlugin{
		Seq:      seq,
		template: cluster.Template(),
		entries:  make(map[Key]*AppInfo),
		vhosts:   make(map[string]model.VirtualHost),
		servers:  make(map[string]model.Server),
	}
}

func (s *SharedPlugin) sharedName(name string) string {
	return "/cell/sharedCell_" + strconv.Itoa(s.Seq) + "/" + name
}

// addMatch records key as served by both inputs.
func (s *SharedPlugin) addMatch(r *run, key Key, p1 *Plugin, info1 *AppInfo, p2 *Plugin, info2 *AppInfo) {
	info, ok := s.entries[key]
	if !ok {
		info = &AppInfo{App: info1.App}
		s.entries[key] = info
	}
	info.URI = info1.URI.Clone()
	info.VHost = info1.VHost.Clone()
	s.vhosts[info1.VHost.Name()] = info1.VHost.Clone()

	s.addServers(r, p1, info1.Cluster, info)
	s.addServers(r, p2, info2.Cluster, info)
	r.log.Debug("Shared routing entry", "uid", key.String(), "group", s.Seq, "files", []string{p1.Source, p2.Source})
}

// addServers adds the members of sc, renamed "<name>_<seq>", to info.
func (s *SharedPlugin) addServers(r *run, p *Plugin, sc model.ServerCluster, info *AppInfo) {
	if len(sc.Servers) == 0 {
		if _, warned := r.emptyClusters[sc.Name()]; !warned {
			r.emptyClusters[sc.Name()] = struct{}{}
			r.log.Warn("ServerCluster does not contain any Server elements",
				"serverCluster", unsuffixed(sc.Name()), "file", p.Source)
		}
		return
	}
	for _, srv := range sc.Servers {
		renamed := srv.Renamed(srv.Name() + "_" + strconv.Itoa(p.Seq))
		info.addServer(renamed.Name(), renamed)
		s.servers[renamed.Name()] = renamed
	}
}

type sharedCluster struct {
	names   []string
	cluster model.ServerCluster
}

// build consolidates the group: one cluster per distinct server set, one
// VirtualHostGroup per distinct vhost set, one UriGroup and Route per app.
func (s *SharedPlugin) build(r *run) Sections {
	keys := sortedKeys(s.entries)

	clusters := s.buildClusters(keys)
	scopeVhg, vhgs := s.buildVhostGroups(keys)

	groups := newOrdered[model.URIGroup]()
	var routes []model.Route
	for _, key := range keys {
		info := s.entries[key]
		if g, ok := groups.get(info.App); ok {
			groups.set(info.App, withURI(g, info.URI))
			continue
		}

		names := info.ServerNames()
		var match *sharedCluster
		for i := range clusters {
			if len(clusters[i].names) == len(names) && containsAll(clusters[i].names, names) {
				match = &clusters[i]
				break
			}
		}
		if match == nil {
			r.log.Warn("Unable to find a matching ServerCluster definition, skipping shared entry",
				"uid", key.String(), "app", info.App)
			continue
		}

		g := model.URIGroup{Node: model.Node{Tag: model.TagURIGroup}}
		g.Node = g.WithAttr(model.AttrName, s.sharedName("application/"+info.App))
		g.URIs = []model.URI{info.URI.Clone()}
		groups.set(info.App, g)
		routes = append(routes, model.NewRoute(match.cluster.Name(), g.Name(), scopeVhg[key.Scope]))
	}

	out := Sections{VhostGroups: vhgs, URIGroups: groups.values(), Routes: routes}
	for _, c := range clusters {
		out.Clusters = append(out.Clusters, r.withFailover(c.cluster, unsuffixed))
	}
	return out
}

// buildClusters buckets server sets by size and keeps one cluster per
// distinct set, smallest sets first.
func (s *SharedPlugin) buildClusters(keys []Key) []sharedCluster {
	bySize := make(map[int][][]string)
	for _, key := range keys {
		names := s.entries[key].ServerNames()
		bySize[len(names)] = append(bySize[len(names)], names)
	}
	sizes := make([]int, 0, len(bySize))
	for n := range bySize {
		sizes = append(sizes, n)
	}
	sort.Ints(sizes)

	var out []sharedCluster
	for _, n := range sizes {
		sets := bySize[n]
		for i := 0; i < len(sets)-1; i++ {
			for j := i + 1; j < len(sets); j++ {
				if containsAll(sets[i], sets[j]) {
					sets[j] = nil
				}
			}
		}
		for _, names := range sets {
			if len(names) == 0 {
				continue
			}
			c := s.template.Clone()
			c.Node = c.WithAttr(model.AttrName, "Shared_"+strconv.Itoa(s.Seq)+"_Cluster_"+strconv.Itoa(len(out)))
			for _, name := range names {
				c.Servers = append(c.Servers, s.servers[name].Clone())
			}
			out = append(out, sharedCluster{names: names, cluster: c})
		}
	}
	return out
}

// buildVhostGroups gives every key scope a VirtualHostGroup, reusing one
// already built for an equal vhost set.
func (s *SharedPlugin) buildVhostGroups(keys []Key) (map[string]string, []model.VirtualHostGroup) {
	scopes := newOrdered[[]string]()
	for _, key := range keys {
		hosts, _ := scopes.get(key.Scope)
		scopes.set(key.Scope, append(hosts, key.VHost))
	}

	type built struct {
		hosts []string
		name  string
	}
	bySize := make(map[int][]built)
	scopeVhg := make(map[string]string, len(scopes.keys))
	var vhgs []model.VirtualHostGroup
	for _, scope := range scopes.keys {
		hosts, _ := scopes.get(scope)
		hosts = dedupSorted(hosts)

		found := ""
		for _, b := range bySize[len(hosts)] {
			if containsAll(b.hosts, hosts) {
				found = b.name
				break
			}
		}
		if found == "" {
			found = s.sharedName("vHostGroup/shared_host_" + strconv.Itoa(len(vhgs)))
			g := model.VirtualHostGroup{Node: model.Node{Tag: model.TagVirtualHostGroup}}
			g.Node = g.WithAttr(model.AttrName, found)
			for _, h := range hosts {
				g.Hosts = append(g.Hosts, s.vhosts[h].Clone())
			}
			vhgs = append(vhgs, g)
			bySize[len(hosts)] = append(bySize[len(hosts)], built{hosts: hosts, name: found})
		}
		scopeVhg[scope] = found
	}
	return scopeVhg, vhgs
}

func withURI(g model.URIGroup, u model.URI) model.URIGroup {
	for _, have := range g.URIs {
		if have.Name() == u.Name() {
			return g
		}
	}
	g.URIs = append(g.URIs, u.Clone())
	return g
}

func dedupSorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	w := 0
	for i, v := range out {
		if i > 0 && v == out[w-1] {
			continue
		}
		out[w] = v
		w++
	}
	return out[:w]
}

// describe is used in debug logs.
func (s *SharedPlugin) describe() string {
	keys := sortedKeys(s.entries)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, ",")
}
