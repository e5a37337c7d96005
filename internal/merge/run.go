package merge

import (
	"io"
	"log/slog"
	"strings"

	"github.com/John-Robertt/plugincfg-merge/internal/model"
	"github.com/John-Robertt/plugincfg-merge/internal/plugincfg"
)

type Options struct {
	// SortVhostGroup adds the input VirtualHostGroup name to the RoutingKey.
	SortVhostGroup bool

	// MatchURIAppVhost requests (uri, app, vhost) matching explicitly. Unlike
	// MatchAppName it survives inputs whose UriGroup names are not
	// generator-style.
	MatchURIAppVhost bool

	// MatchAppName is the environment default for (uri, app, vhost) matching.
	MatchAppName bool

	// Precedence discards duplicates by input order instead of sharing them.
	Precedence bool

	Logger *slog.Logger
}

// run is the per-invocation state. Nothing in it outlives one Merge call.
type run struct {
	opt  Options
	log  *slog.Logger
	mode KeyMode

	// generated is true when every UriGroup name of every input follows the
	// generator pattern, so app names can be extracted from it.
	generated bool

	primary map[string]struct{}
	backup  map[string]struct{}

	emptyClusters map[string]struct{}

	nextSeq int
}

func newRun(docs []*plugincfg.Document, opt Options) *run {
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &run{
		opt:           opt,
		log:           log,
		primary:       make(map[string]struct{}),
		backup:        make(map[string]struct{}),
		emptyClusters: make(map[string]struct{}),
		nextSeq:       len(docs),
	}
	for _, d := range docs {
		for _, n := range d.PrimaryServers {
			r.primary[n] = struct{}{}
		}
		for _, n := range d.BackupServers {
			r.backup[n] = struct{}{}
		}
	}
	r.resolveMode(docs)
	return r
}

func (r *run) resolveMode(docs []*plugincfg.Document) {
	r.generated = true
scan:
	for _, d := range docs {
		for _, g := range d.URIGroups {
			if _, ok := GeneratedAppName(g.Name()); !ok {
				r.generated = false
				r.log.Info("Merging a non-generated plugin configuration", "file", d.Source, "uriGroup", g.Name())
				break scan
			}
		}
	}

	matchApp := r.opt.MatchAppName || r.opt.MatchURIAppVhost
	if !r.generated {
		if matchApp && !r.opt.MatchURIAppVhost {
			r.log.Warn("Cannot match based on uri app vhost for non-generated plugin configurations, app name matching disabled")
		}
		matchApp = r.opt.MatchURIAppVhost
	}

	switch {
	case matchApp:
		r.mode = KeyURIAppVhost
	case r.opt.SortVhostGroup:
		r.mode = KeyURIVhostGroupVhost
	default:
		r.mode = KeyURIVhost
	}
	r.log.Debug("RoutingKey mode resolved", "mode", r.mode.String())
}

func (r *run) appName(uriGroup string) string {
	if r.generated {
		if app, ok := GeneratedAppName(uriGroup); ok {
			return app
		}
	}
	return uriGroup
}

// isPrimary classifies a server by its unsuffixed name.
func (r *run) isPrimary(name string) bool {
	if _, ok := r.primary[name]; ok {
		return true
	}
	if len(r.primary) == 0 {
		_, isBackup := r.backup[name]
		return !isBackup
	}
	return false
}

// withFailover returns a copy of c whose members are partitioned into
// PrimaryServers/BackupServers. base maps a member name to the name the
// hint lists use.
func (r *run) withFailover(c model.ServerCluster, base func(string) string) model.ServerCluster {
	out := c.Clone()
	out.PrimaryServers = nil
	out.BackupServers = nil
	for _, s := range out.Servers {
		name := s.Name()
		if r.isPrimary(base(name)) {
			out.PrimaryServers = append(out.PrimaryServers, name)
		} else {
			out.BackupServers = append(out.BackupServers, name)
		}
	}
	return out
}

func identity(name string) string { return name }

// unsuffixed strips the trailing "_<seq>" added to shared server names.
func unsuffixed(name string) string {
	if i := strings.LastIndex(name, "_"); i >= 0 {
		return name[:i]
	}
	return name
}
