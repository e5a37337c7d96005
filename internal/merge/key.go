package merge

import (
	"regexp"
	"sort"
)

// KeyMode selects how a routing entry's identity is built. It is resolved
// once per run and applied to every input.
type KeyMode int

const (
	// KeyURIVhost identifies an entry by (uri, virtual host).
	KeyURIVhost KeyMode = iota
	// KeyURIAppVhost adds the application name derived from the UriGroup.
	KeyURIAppVhost
	// KeyURIVhostGroupVhost adds the input's VirtualHostGroup name.
	KeyURIVhostGroupVhost
)

func (m KeyMode) String() string {
	switch m {
	case KeyURIVhost:
		return "uri+vhost"
	case KeyURIAppVhost:
		return "uri+app+vhost"
	case KeyURIVhostGroupVhost:
		return "uri+vhostGroup+vhost"
	default:
		return "unknown"
	}
}

// Key is the RoutingKey of one (uri, vhost) entry. Scope is everything but
// the virtual host; entries sharing a Scope are served by one shared
// VirtualHostGroup.
type Key struct {
	Scope string
	VHost string
}

func (k Key) String() string { return k.Scope + "/vHost/" + k.VHost }

// Key builds the routing key of one uri/vhost pair under mode m.
func (m KeyMode) Key(uri, app, vhostGroup, vhost string) Key {
	scope := "/uri/" + uri
	switch m {
	case KeyURIAppVhost:
		scope += "/app/" + app
	case KeyURIVhostGroupVhost:
		scope += "/vhostGrp/" + vhostGroup
	}
	return Key{Scope: scope, VHost: vhost}
}

func sortedKeys(m map[Key]*AppInfo) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

var generatedURIGroup = regexp.MustCompile(`/cell/.+?/application/`)

// GeneratedAppName extracts <app> from a generator-style UriGroup name
// ".../cell/<cell>/application/<app>".
func GeneratedAppName(uriGroup string) (string, bool) {
	loc := generatedURIGroup.FindStringIndex(uriGroup)
	if loc == nil {
		return "", false
	}
	app := uriGroup[loc[1]:]
	if next := generatedURIGroup.FindStringIndex(app); next != nil {
		app = app[:next[0]]
	}
	if app == "" {
		return "", false
	}
	return app, true
}
