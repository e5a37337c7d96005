package merge

import (
	"context"
	"fmt"

	"github.com/John-Robertt/plugincfg-merge/internal/model"
	"github.com/John-Robertt/plugincfg-merge/internal/plugincfg"
)

// Sections are the routing elements of one part of the output, each slice
// in emission order.
type Sections struct {
	Clusters    []model.ServerCluster
	VhostGroups []model.VirtualHostGroup
	URIGroups   []model.URIGroup
	Routes      []model.Route
}

func (s *Sections) append(o Sections) {
	s.Clusters = append(s.Clusters, o.Clusters...)
	s.VhostGroups = append(s.VhostGroups, o.VhostGroups...)
	s.URIGroups = append(s.URIGroups, o.URIGroups...)
	s.Routes = append(s.Routes, o.Routes...)
}

// Stats counts routing keys and emitted elements for one merge.
type Stats struct {
	Inputs       int
	SharedGroups int
	SharedKeys   int
	UnsharedKeys int
	UniqueKeys   int

	// Emitted element counts, shared and unshared together.
	Clusters    int
	VhostGroups int
	URIGroups   int
	Routes      int
}

// Result holds the shared and unshared sections of a merge.
type Result struct {
	Mode     KeyMode
	Shared   Sections
	Unshared Sections
	Stats    Stats
}

type MergeError struct {
	AppError model.AppError
	Cause    error
}

func (e *MergeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *MergeError) Unwrap() error { return e.Cause }

const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeInconsistent    = "INCONSISTENT_OUTPUT"
)

// Merge combines parsed inputs into shared and unshared routing sections.
// Inputs are numbered by position; that number is the "_<seq>" suffix
// carried by their clusters, virtual host groups and servers.
func Merge(ctx context.Context, docs []*plugincfg.Document, opt Options) (*Result, error) {
	if len(docs) == 0 {
		return nil, &MergeError{
			AppError: model.AppError{
				Code:    CodeInvalidArgument,
				Message: "at least one input is required",
				Stage:   model.StageMerge,
			},
		}
	}

	r := newRun(docs, opt)
	plugins := make([]*Plugin, len(docs))
	for i, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		plugins[i] = newPlugin(r, i, d)
	}

	var shared []*SharedPlugin
	if opt.Precedence {
		r.pMerge(plugins)
	} else {
		shared = r.lfMerge(plugins)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Mode: r.mode, Stats: Stats{Inputs: len(docs), SharedGroups: len(shared)}}
	for _, sp := range shared {
		res.Stats.SharedKeys += len(sp.entries)
		res.Shared.append(sp.build(r))
	}
	for _, p := range plugins {
		res.Stats.UnsharedKeys += len(p.entries)
		for _, info := range p.entries {
			if info.UniqueVhostGroupNeeded {
				res.Stats.UniqueKeys++
			}
		}
		res.Unshared.append(p.build(r))
	}

	if err := res.Check(); err != nil {
		return nil, err
	}
	res.Stats.Clusters = len(res.Shared.Clusters) + len(res.Unshared.Clusters)
	res.Stats.VhostGroups = len(res.Shared.VhostGroups) + len(res.Unshared.VhostGroups)
	res.Stats.URIGroups = len(res.Shared.URIGroups) + len(res.Unshared.URIGroups)
	res.Stats.Routes = len(res.Shared.Routes) + len(res.Unshared.Routes)
	r.log.Info("Merge complete",
		"inputs", res.Stats.Inputs,
		"mode", r.mode.String(),
		"precedence", opt.Precedence,
		"sharedGroups", res.Stats.SharedGroups,
		"sharedKeys", res.Stats.SharedKeys,
		"unsharedKeys", res.Stats.UnsharedKeys,
		"routes", res.Stats.Routes)
	return res, nil
}

// Check verifies that cluster and virtual host group names are unique and
// that every route resolves inside the result.
func (res *Result) Check() error {
	clusters := make(map[string]struct{})
	for _, c := range append(append([]model.ServerCluster(nil), res.Shared.Clusters...), res.Unshared.Clusters...) {
		if _, dup := clusters[c.Name()]; dup {
			return inconsistent("duplicate ServerCluster name", c.Name())
		}
		clusters[c.Name()] = struct{}{}
	}
	vhgs := make(map[string]struct{})
	for _, g := range append(append([]model.VirtualHostGroup(nil), res.Shared.VhostGroups...), res.Unshared.VhostGroups...) {
		if _, dup := vhgs[g.Name()]; dup {
			return inconsistent("duplicate VirtualHostGroup name", g.Name())
		}
		vhgs[g.Name()] = struct{}{}
	}
	groups := make(map[string]struct{})
	for _, g := range append(append([]model.URIGroup(nil), res.Shared.URIGroups...), res.Unshared.URIGroups...) {
		groups[g.Name()] = struct{}{}
	}
	for _, rt := range append(append([]model.Route(nil), res.Shared.Routes...), res.Unshared.Routes...) {
		if _, ok := clusters[rt.ServerCluster()]; !ok {
			return inconsistent("Route references an unknown ServerCluster", rt.ServerCluster())
		}
		if _, ok := vhgs[rt.VirtualHostGroup()]; !ok {
			return inconsistent("Route references an unknown VirtualHostGroup", rt.VirtualHostGroup())
		}
		if _, ok := groups[rt.URIGroup()]; !ok {
			return inconsistent("Route references an unknown UriGroup", rt.URIGroup())
		}
	}
	return nil
}

func inconsistent(msg, name string) error {
	return &MergeError{
		AppError: model.AppError{
			Code:    CodeInconsistent,
			Message: msg,
			Stage:   model.StageMerge,
			Snippet: name,
		},
	}
}
