package merge

import (
	"sort"

	"github.com/John-Robertt/plugincfg-merge/internal/model"
)

// AppInfo bundles the elements one routing entry refers to.
//
// Group-level fields (URIGroup, VhostGroup) carry attributes only; URI and
// VHost are the entry's own members. Servers is filled for shared entries
// only and is keyed by the suffixed server name.
type AppInfo struct {
	App        string
	URIGroup   model.URIGroup
	Route      model.Route
	Cluster    model.ServerCluster
	VhostGroup model.VirtualHostGroup
	URI        model.URI
	VHost      model.VirtualHost

	// UniqueVhostGroupNeeded is set by the uniqueness pass: the entry must be
	// emitted under its own suffixed UriGroup/VirtualHostGroup.
	UniqueVhostGroupNeeded bool

	servers map[string]model.Server
}

// addServer records a contributing server; it reports false when the name
// was already known.
func (a *AppInfo) addServer(name string, s model.Server) bool {
	if a.servers == nil {
		a.servers = make(map[string]model.Server)
	}
	_, seen := a.servers[name]
	a.servers[name] = s.Clone()
	return !seen
}

// ServerNames returns the contributing server names in lexical order.
func (a *AppInfo) ServerNames() []string {
	names := make([]string, 0, len(a.servers))
	for n := range a.servers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
