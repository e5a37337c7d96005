package merge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/plugincfg-merge/internal/model"
	"github.com/John-Robertt/plugincfg-merge/internal/plugincfg"
)

// input describes a single-route configuration document.
type input struct {
	cluster string
	servers []string
	vhg     string
	hosts   []string
	group   string
	uris    []string
	primary []string
	backup  []string
	noRoute bool
}

func (in input) xml() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<Config>\n")
	fmt.Fprintf(&b, "<VirtualHostGroup Name=%q>", in.vhg)
	for _, h := range in.hosts {
		fmt.Fprintf(&b, "<VirtualHost Name=%q/>", h)
	}
	b.WriteString("</VirtualHostGroup>\n")
	fmt.Fprintf(&b, "<ServerCluster LoadBalance=\"Round Robin\" Name=%q>", in.cluster)
	for _, s := range in.servers {
		fmt.Fprintf(&b, "<Server Name=%q><Transport Hostname=\"h\" Port=\"9080\" Protocol=\"http\"/></Server>", s)
	}
	if len(in.primary) > 0 {
		b.WriteString("<PrimaryServers>")
		for _, s := range in.primary {
			fmt.Fprintf(&b, "<Server Name=%q/>", s)
		}
		b.WriteString("</PrimaryServers>")
	}
	if len(in.backup) > 0 {
		b.WriteString("<BackupServers>")
		for _, s := range in.backup {
			fmt.Fprintf(&b, "<Server Name=%q/>", s)
		}
		b.WriteString("</BackupServers>")
	}
	b.WriteString("</ServerCluster>\n")
	fmt.Fprintf(&b, "<UriGroup Name=%q>", in.group)
	for _, u := range in.uris {
		fmt.Fprintf(&b, "<Uri Name=%q/>", u)
	}
	b.WriteString("</UriGroup>\n")
	if !in.noRoute {
		fmt.Fprintf(&b, "<Route ServerCluster=%q UriGroup=%q VirtualHostGroup=%q/>\n", in.cluster, in.group, in.vhg)
	}
	b.WriteString("</Config>\n")
	return b.String()
}

func parseInputs(t *testing.T, ins ...input) []*plugincfg.Document {
	t.Helper()
	docs := make([]*plugincfg.Document, len(ins))
	for i, in := range ins {
		d, err := plugincfg.Parse(fmt.Sprintf("in%d.xml", i), []byte(in.xml()))
		require.NoError(t, err)
		docs[i] = d
	}
	return docs
}

func names[T interface{ Name() string }](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name()
	}
	return out
}

func TestMerge_DisjointServersShareOneCluster(t *testing.T) {
	docs := parseInputs(t,
		input{cluster: "c1", servers: []string{"s1"}, vhg: "default_host", hosts: []string{"*:80"}, group: "grpA", uris: []string{"/app/hello"}},
		input{cluster: "c2", servers: []string{"s2"}, vhg: "default_host", hosts: []string{"*:80"}, group: "grpB", uris: []string{"/app/hello"}},
	)

	res, err := Merge(context.Background(), docs, Options{})
	require.NoError(t, err)

	require.Len(t, res.Shared.Clusters, 1)
	sc := res.Shared.Clusters[0]
	assert.Equal(t, "Shared_2_Cluster_0", sc.Name())
	assert.Equal(t, "Round Robin", sc.Attr("LoadBalance"))
	assert.Equal(t, []string{"s1_0", "s2_1"}, names(sc.Servers))
	assert.Equal(t, []string{"s1_0", "s2_1"}, sc.PrimaryServers)
	assert.Empty(t, sc.BackupServers)

	require.Len(t, res.Shared.VhostGroups, 1)
	vhg := res.Shared.VhostGroups[0]
	assert.Equal(t, "/cell/sharedCell_2/vHostGroup/shared_host_0", vhg.Name())
	assert.Equal(t, []string{"*:80"}, names(vhg.Hosts))

	require.Len(t, res.Shared.URIGroups, 1)
	grp := res.Shared.URIGroups[0]
	assert.Equal(t, "/cell/sharedCell_2/application/grpA", grp.Name())
	assert.Equal(t, []string{"/app/hello"}, names(grp.URIs))

	want := []model.Route{model.NewRoute(sc.Name(), grp.Name(), vhg.Name())}
	if diff := cmp.Diff(want, res.Shared.Routes); diff != "" {
		t.Fatalf("shared routes mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, res.Unshared.Clusters)
	assert.Empty(t, res.Unshared.Routes)
	assert.Equal(t, Stats{Inputs: 2, SharedGroups: 1, SharedKeys: 1, Clusters: 1, VhostGroups: 1, URIGroups: 1, Routes: 1}, res.Stats)
}

func TestMerge_SharedURIsJoinOneGroup(t *testing.T) {
	docs := parseInputs(t,
		input{cluster: "c1", servers: []string{"s1"}, vhg: "vh", hosts: []string{"*:80", "*:443"}, group: "grp", uris: []string{"/a", "/b"}},
		input{cluster: "c1", servers: []string{"s1"}, vhg: "vh", hosts: []string{"*:443", "*:80"}, group: "grp", uris: []string{"/b", "/a"}},
	)

	res, err := Merge(context.Background(), docs, Options{})
	require.NoError(t, err)

	require.Len(t, res.Shared.Clusters, 1)
	require.Len(t, res.Shared.VhostGroups, 1, "both uris have the same vhost set")
	assert.ElementsMatch(t, []string{"*:80", "*:443"}, names(res.Shared.VhostGroups[0].Hosts))
	require.Len(t, res.Shared.URIGroups, 1)
	assert.ElementsMatch(t, []string{"/a", "/b"}, names(res.Shared.URIGroups[0].URIs))
	require.Len(t, res.Shared.Routes, 1)
	assert.Equal(t, 4, res.Stats.SharedKeys)
}

func TestMerge_UniqueURIFlagged(t *testing.T) {
	docs := parseInputs(t,
		input{cluster: "c1", servers: []string{"s1"}, vhg: "vh", hosts: []string{"*:80"}, group: "grpA", uris: []string{"/a", "/b"}},
		input{cluster: "c2", servers: []string{"s2"}, vhg: "vh", hosts: []string{"*:80"}, group: "grpB", uris: []string{"/a"}},
	)

	r := newRun(docs, Options{})
	plugins := []*Plugin{newPlugin(r, 0, docs[0]), newPlugin(r, 1, docs[1])}
	shared := r.lfMerge(plugins)

	require.Len(t, shared, 1)
	require.Len(t, plugins[0].entries, 1)
	info := plugins[0].entries[KeyURIVhost.Key("/b", "", "", "*:80")]
	require.NotNil(t, info)
	assert.True(t, info.UniqueVhostGroupNeeded)
	assert.Empty(t, plugins[1].entries)

	res, err := Merge(context.Background(), docs, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"grpA_0"}, names(res.Unshared.URIGroups))
	assert.Equal(t, []string{"vh_0_0"}, names(res.Unshared.VhostGroups))
	assert.Equal(t, []string{"c1_0"}, names(res.Unshared.Clusters))
	want := []model.Route{model.NewRoute("c1_0", "grpA_0", "vh_0_0")}
	if diff := cmp.Diff(want, res.Unshared.Routes); diff != "" {
		t.Fatalf("unshared routes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, res.Stats.UniqueKeys)
}

func TestMerge_CommonEntriesKeepGroupNames(t *testing.T) {
	// /b differs only by vhost, so it is not flagged and keeps the input's names.
	docs := parseInputs(t,
		input{cluster: "c1", servers: []string{"s1"}, vhg: "vh", hosts: []string{"*:80", "*:8080"}, group: "grpA", uris: []string{"/b"}},
		input{cluster: "c2", servers: []string{"s2"}, vhg: "vh", hosts: []string{"*:80"}, group: "grpB", uris: []string{"/b"}},
	)

	res, err := Merge(context.Background(), docs, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"grpA"}, names(res.Unshared.URIGroups))
	assert.Equal(t, []string{"vh_0"}, names(res.Unshared.VhostGroups))
	assert.Equal(t, []string{"*:8080"}, names(res.Unshared.VhostGroups[0].Hosts))
	require.Len(t, res.Unshared.Routes, 1)
	assert.Equal(t, "grpA", res.Unshared.Routes[0].URIGroup())
}

func TestMerge_UniquenessInvariant(t *testing.T) {
	ins := []input{
		{cluster: "c", servers: []string{"s1"}, vhg: "vh", hosts: []string{"*:80", "*:443"}, group: "g", uris: []string{"/a", "/b"}},
		{cluster: "c", servers: []string{"s2"}, vhg: "vh", hosts: []string{"*:80"}, group: "g", uris: []string{"/a", "/c"}},
		{cluster: "c", servers: []string{"s3"}, vhg: "vh", hosts: []string{"*:443", "*:80"}, group: "g", uris: []string{"/b", "/c", "/d"}},
	}
	docs := parseInputs(t, ins...)

	r := newRun(docs, Options{})
	var plugins []*Plugin
	all := make(map[Key]struct{})
	for i, d := range docs {
		p := newPlugin(r, i, d)
		for k := range p.entries {
			all[k] = struct{}{}
		}
		plugins = append(plugins, p)
	}
	shared := r.lfMerge(plugins)

	for k := range all {
		n := 0
		for _, sp := range shared {
			if _, ok := sp.entries[k]; ok {
				n++
			}
		}
		for _, p := range plugins {
			if _, ok := p.entries[k]; ok {
				n++
			}
		}
		assert.Equal(t, 1, n, "key %s", k)
	}

	// /b on *:443 is routed by inputs 0 and 2.
	var got []string
	for _, sp := range shared {
		if info, ok := sp.entries[KeyURIVhost.Key("/b", "", "", "*:443")]; ok {
			got = info.ServerNames()
		}
	}
	assert.Equal(t, []string{"s1_0", "s3_2"}, got)
}

func TestMerge_ThirdInputJoinsExistingGroup(t *testing.T) {
	in := input{cluster: "c", vhg: "vh", hosts: []string{"*:80"}, group: "g", uris: []string{"/a"}}
	a, b, c := in, in, in
	a.servers, b.servers, c.servers = []string{"s1"}, []string{"s2"}, []string{"s3"}

	res, err := Merge(context.Background(), parseInputs(t, a, b, c), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.SharedGroups)
	require.Len(t, res.Shared.Clusters, 1)
	assert.Equal(t, []string{"s1_0", "s2_1", "s3_2"}, names(res.Shared.Clusters[0].Servers))
	assert.Equal(t, "Shared_3_Cluster_0", res.Shared.Clusters[0].Name())
}

func TestMerge_Precedence(t *testing.T) {
	docs := parseInputs(t,
		input{cluster: "c1", servers: []string{"s1"}, vhg: "vh", hosts: []string{"*:80"}, group: "grpA", uris: []string{"/a"}},
		input{cluster: "c2", servers: []string{"s2"}, vhg: "vh", hosts: []string{"*:80"}, group: "grpB", uris: []string{"/a", "/z"}},
	)

	res, err := Merge(context.Background(), docs, Options{Precedence: true})
	require.NoError(t, err)

	assert.Empty(t, res.Shared.Clusters)
	assert.Equal(t, 0, res.Stats.SharedGroups)
	assert.Equal(t, []string{"c1_0", "c2_1"}, names(res.Unshared.Clusters))
	require.Len(t, res.Unshared.URIGroups, 2)
	assert.Equal(t, []string{"/a"}, names(res.Unshared.URIGroups[0].URIs))
	assert.Equal(t, []string{"/z"}, names(res.Unshared.URIGroups[1].URIs))
	assert.Equal(t, "grpB_1", res.Unshared.URIGroups[1].Name(), "/z is unknown to the first input")
}

func TestMerge_PrimaryBackupPartition(t *testing.T) {
	docs := parseInputs(t,
		input{cluster: "c1", servers: []string{"s1", "s2"}, primary: []string{"s1"}, backup: []string{"s2"}, vhg: "vh", hosts: []string{"*:80"}, group: "g", uris: []string{"/a", "/only0"}},
		input{cluster: "c2", servers: []string{"s3"}, vhg: "vh", hosts: []string{"*:80"}, group: "g", uris: []string{"/a"}},
	)

	res, err := Merge(context.Background(), docs, Options{})
	require.NoError(t, err)

	require.Len(t, res.Shared.Clusters, 1)
	sc := res.Shared.Clusters[0]
	assert.Equal(t, []string{"s1_0"}, sc.PrimaryServers)
	assert.Equal(t, []string{"s2_0", "s3_1"}, sc.BackupServers)

	require.Len(t, res.Unshared.Clusters, 1)
	uc := res.Unshared.Clusters[0]
	assert.Equal(t, []string{"s1"}, uc.PrimaryServers)
	assert.Equal(t, []string{"s2"}, uc.BackupServers)

	for _, c := range append(res.Shared.Clusters, res.Unshared.Clusters...) {
		assert.ElementsMatch(t, names(c.Servers), append(append([]string(nil), c.PrimaryServers...), c.BackupServers...), c.Name())
	}
}

func TestMerge_OrderIndependentSharing(t *testing.T) {
	a := input{cluster: "ca", servers: []string{"s1", "s2"}, vhg: "vh", hosts: []string{"*:80"},
		group: "/cell/c1/application/shop", uris: []string{"/shop/*", "/cart"}}
	b := input{cluster: "cb", servers: []string{"s9"}, vhg: "vh", hosts: []string{"*:80", "*:443"},
		group: "/cell/c2/application/shop", uris: []string{"/shop/*", "/admin"}}

	membership := func(docs []*plugincfg.Document) map[string][]string {
		r := newRun(docs, Options{MatchURIAppVhost: true})
		require.Equal(t, KeyURIAppVhost, r.mode)
		plugins := []*Plugin{newPlugin(r, 0, docs[0]), newPlugin(r, 1, docs[1])}
		out := make(map[string][]string)
		for _, sp := range r.lfMerge(plugins) {
			for k, info := range sp.entries {
				var base []string
				for _, n := range info.ServerNames() {
					base = append(base, unsuffixed(n))
				}
				sort.Strings(base)
				out[k.String()] = base
			}
		}
		return out
	}

	ab := membership(parseInputs(t, a, b))
	ba := membership(parseInputs(t, b, a))
	require.NotEmpty(t, ab)
	if diff := cmp.Diff(ab, ba); diff != "" {
		t.Fatalf("shared membership depends on input order (-ab +ba):\n%s", diff)
	}
	assert.Equal(t, []string{"s1", "s2", "s9"}, ab["/uri//shop/*/app/shop/vHost/*:80"])
}

func TestMerge_SkipsGroupWithoutRoute(t *testing.T) {
	docs := parseInputs(t,
		input{cluster: "c1", servers: []string{"s1"}, vhg: "vh", hosts: []string{"*:80"}, group: "g", uris: []string{"/a"}, noRoute: true},
	)
	res, err := Merge(context.Background(), docs, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Unshared.URIGroups)
	assert.Empty(t, res.Unshared.Routes)
}

func TestMerge_EmptyClusterIsNotShared(t *testing.T) {
	docs := parseInputs(t,
		input{cluster: "c1", vhg: "vh", hosts: []string{"*:80"}, group: "g", uris: []string{"/a"}},
		input{cluster: "c2", vhg: "vh", hosts: []string{"*:80"}, group: "g", uris: []string{"/a"}},
	)
	res, err := Merge(context.Background(), docs, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Shared.Clusters)
	assert.Empty(t, res.Shared.Routes)
	assert.Equal(t, 1, res.Stats.SharedKeys)
}

func TestMerge_NoInputs(t *testing.T) {
	_, err := Merge(context.Background(), nil, Options{})
	var me *MergeError
	require.True(t, errors.As(err, &me), "expected *MergeError, got %T: %v", err, err)
	assert.Equal(t, CodeInvalidArgument, me.AppError.Code)
}

func TestMerge_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	docs := parseInputs(t, input{cluster: "c", vhg: "vh", group: "g"})
	_, err := Merge(ctx, docs, Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestResolveMode(t *testing.T) {
	generated := input{cluster: "c", vhg: "vh", group: "/cell/c1/application/app1"}
	plain := input{cluster: "c", vhg: "vh", group: "default_host_c_URIs"}

	cases := []struct {
		name string
		ins  []input
		opt  Options
		want KeyMode
	}{
		{"default", []input{plain}, Options{}, KeyURIVhost},
		{"sortVhostGrp", []input{plain}, Options{SortVhostGroup: true}, KeyURIVhostGroupVhost},
		{"flag on plain names", []input{plain}, Options{MatchURIAppVhost: true}, KeyURIAppVhost},
		{"property on generated names", []input{generated}, Options{MatchAppName: true}, KeyURIAppVhost},
		{"property dropped on plain names", []input{generated, plain}, Options{MatchAppName: true}, KeyURIVhost},
		{"app match wins over vhost group", []input{generated}, Options{MatchAppName: true, SortVhostGroup: true}, KeyURIAppVhost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRun(parseInputs(t, tc.ins...), tc.opt)
			assert.Equal(t, tc.want, r.mode)
		})
	}
}

func TestGeneratedAppName(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/cell/c1/application/shop", "shop", true},
		{"prefix/cell/c1/application/shop", "shop", true},
		{"/cell/a/application/b/cell/c/application/d", "b", true},
		{"/cell/c1/application/", "", false},
		{"default_host_cluster1_URIs", "", false},
		{"/cell//application/x", "", false},
	}
	for _, tc := range cases {
		got, ok := GeneratedAppName(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("GeneratedAppName(%q)=(%q,%v), want=(%q,%v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestResultCheck(t *testing.T) {
	res := &Result{
		Unshared: Sections{
			Clusters: []model.ServerCluster{{Node: model.Node{Tag: model.TagServerCluster, Attrs: []model.Attr{{Key: "Name", Value: "c"}}}}},
			Routes:   []model.Route{model.NewRoute("c", "g", "missing")},
		},
	}
	err := res.Check()
	var me *MergeError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, CodeInconsistent, me.AppError.Code)
	assert.Equal(t, "missing", me.AppError.Snippet)
}

func TestMerge_DistinctServerSetsGetTheirOwnClusters(t *testing.T) {
	// The third input matches /a against the first and /b against the
	// second, so both keys land in one shared group with equal-size sets.
	docs := parseInputs(t,
		input{cluster: "c0", servers: []string{"s0"}, vhg: "vh", hosts: []string{"*:80"}, group: "ga", uris: []string{"/a"}},
		input{cluster: "c1", servers: []string{"s1"}, vhg: "vh", hosts: []string{"*:80"}, group: "gb", uris: []string{"/b"}},
		input{cluster: "c2", servers: []string{"s2"}, vhg: "vh", hosts: []string{"*:80"}, group: "gc", uris: []string{"/a", "/b"}},
	)

	res, err := Merge(context.Background(), docs, Options{})
	require.NoError(t, err)

	require.Len(t, res.Shared.Clusters, 2)
	assert.Equal(t, "Shared_3_Cluster_0", res.Shared.Clusters[0].Name())
	assert.Equal(t, []string{"s0_0", "s2_2"}, names(res.Shared.Clusters[0].Servers))
	assert.Equal(t, "Shared_3_Cluster_1", res.Shared.Clusters[1].Name())
	assert.Equal(t, []string{"s1_1", "s2_2"}, names(res.Shared.Clusters[1].Servers))

	require.Len(t, res.Shared.VhostGroups, 1, "both scopes have the same vhost set")
	vhg := "/cell/sharedCell_3/vHostGroup/shared_host_0"
	assert.Equal(t, vhg, res.Shared.VhostGroups[0].Name())

	assert.Equal(t, []string{"/cell/sharedCell_3/application/ga", "/cell/sharedCell_3/application/gb"}, names(res.Shared.URIGroups))
	want := []model.Route{
		model.NewRoute("Shared_3_Cluster_0", "/cell/sharedCell_3/application/ga", vhg),
		model.NewRoute("Shared_3_Cluster_1", "/cell/sharedCell_3/application/gb", vhg),
	}
	if diff := cmp.Diff(want, res.Shared.Routes); diff != "" {
		t.Fatalf("shared routes mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, res.Unshared.Routes)
	assert.Equal(t, 1, res.Stats.SharedGroups)
	assert.Equal(t, 2, res.Stats.SharedKeys)
}

func TestMerge_DistinctVhostSetsGetTheirOwnGroups(t *testing.T) {
	docs := parseInputs(t,
		input{cluster: "c0", servers: []string{"s0"}, vhg: "vh", hosts: []string{"*:80", "*:443"}, group: "ga", uris: []string{"/a"}},
		input{cluster: "c1", servers: []string{"s1"}, vhg: "vh", hosts: []string{"*:80"}, group: "gb", uris: []string{"/b"}},
		input{cluster: "c2", servers: []string{"s2"}, vhg: "vh", hosts: []string{"*:80", "*:443"}, group: "gc", uris: []string{"/a", "/b"}},
	)

	res, err := Merge(context.Background(), docs, Options{})
	require.NoError(t, err)

	hostA := "/cell/sharedCell_3/vHostGroup/shared_host_0"
	hostB := "/cell/sharedCell_3/vHostGroup/shared_host_1"
	require.Len(t, res.Shared.VhostGroups, 2)
	assert.Equal(t, hostA, res.Shared.VhostGroups[0].Name())
	assert.Equal(t, []string{"*:443", "*:80"}, names(res.Shared.VhostGroups[0].Hosts))
	assert.Equal(t, hostB, res.Shared.VhostGroups[1].Name())
	assert.Equal(t, []string{"*:80"}, names(res.Shared.VhostGroups[1].Hosts))

	assert.Equal(t, []string{"Shared_3_Cluster_0", "Shared_3_Cluster_1"}, names(res.Shared.Clusters))
	want := []model.Route{
		model.NewRoute("Shared_3_Cluster_0", "/cell/sharedCell_3/application/ga", hostA),
		model.NewRoute("Shared_3_Cluster_1", "/cell/sharedCell_3/application/gb", hostB),
	}
	if diff := cmp.Diff(want, res.Shared.Routes); diff != "" {
		t.Fatalf("shared routes mismatch (-want +got):\n%s", diff)
	}

	// Only the third input serves /b on *:443.
	assert.Equal(t, []string{"vh_2"}, names(res.Unshared.VhostGroups))
	assert.Equal(t, []string{"*:443"}, names(res.Unshared.VhostGroups[0].Hosts))
	assert.Equal(t, []model.Route{model.NewRoute("c2_2", "gc", "vh_2")}, res.Unshared.Routes)
}

func TestMerge_SortVhostGroupKeepsGroupsApart(t *testing.T) {
	docs := parseInputs(t,
		input{cluster: "c1", servers: []string{"s1"}, vhg: "vhA", hosts: []string{"*:80"}, group: "g", uris: []string{"/a"}},
		input{cluster: "c2", servers: []string{"s2"}, vhg: "vhB", hosts: []string{"*:80"}, group: "g", uris: []string{"/a"}},
	)

	res, err := Merge(context.Background(), docs, Options{})
	require.NoError(t, err)
	assert.Equal(t, KeyURIVhost, res.Mode)
	assert.Equal(t, 1, res.Stats.SharedKeys)

	res, err = Merge(context.Background(), docs, Options{SortVhostGroup: true})
	require.NoError(t, err)
	assert.Equal(t, KeyURIVhostGroupVhost, res.Mode)
	assert.Empty(t, res.Shared.Clusters)
	assert.Equal(t, 0, res.Stats.SharedKeys)
	assert.Equal(t, 2, res.Stats.UnsharedKeys)
	assert.Equal(t, 0, res.Stats.UniqueKeys)
	assert.Equal(t, []string{"c1_0", "c2_1"}, names(res.Unshared.Clusters))
	assert.Equal(t, []string{"vhA_0", "vhB_1"}, names(res.Unshared.VhostGroups))
	want := []model.Route{model.NewRoute("c1_0", "g", "vhA_0"), model.NewRoute("c2_1", "g", "vhB_1")}
	if diff := cmp.Diff(want, res.Unshared.Routes); diff != "" {
		t.Fatalf("unshared routes mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_AppModeFlagsOtherApps(t *testing.T) {
	docs := parseInputs(t,
		input{cluster: "c1", servers: []string{"s1"}, vhg: "vh", hosts: []string{"*:80"}, group: "/cell/c/application/shop", uris: []string{"/a"}},
		input{cluster: "c2", servers: []string{"s2"}, vhg: "vh", hosts: []string{"*:80"}, group: "/cell/c/application/cart", uris: []string{"/a"}},
	)

	res, err := Merge(context.Background(), docs, Options{MatchURIAppVhost: true})
	require.NoError(t, err)
	assert.Equal(t, KeyURIAppVhost, res.Mode)
	assert.Empty(t, res.Shared.Clusters)

	// Both inputs route /a, but for a different app, so each entry is unique.
	assert.Equal(t, 2, res.Stats.UniqueKeys)
	assert.Equal(t, []string{"/cell/c/application/shop_0", "/cell/c/application/cart_1"}, names(res.Unshared.URIGroups))
	assert.Equal(t, []string{"vh_0_0", "vh_1_1"}, names(res.Unshared.VhostGroups))
	want := []model.Route{
		model.NewRoute("c1_0", "/cell/c/application/shop_0", "vh_0_0"),
		model.NewRoute("c2_1", "/cell/c/application/cart_1", "vh_1_1"),
	}
	if diff := cmp.Diff(want, res.Unshared.Routes); diff != "" {
		t.Fatalf("unshared routes mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_SuffixedNameCollisionRejected(t *testing.T) {
	// The unique copy of "vh" becomes vh_0_0, which is also the common
	// name of the input's literal "vh_0".
	a := `<Config>` +
		`<VirtualHostGroup Name="vh"><VirtualHost Name="*:80"/></VirtualHostGroup>` +
		`<VirtualHostGroup Name="vh_0"><VirtualHost Name="*:80"/></VirtualHostGroup>` +
		`<ServerCluster Name="c"><Server Name="s"/></ServerCluster>` +
		`<UriGroup Name="g1"><Uri Name="/u"/></UriGroup>` +
		`<UriGroup Name="g2"><Uri Name="/v"/></UriGroup>` +
		`<Route ServerCluster="c" UriGroup="g1" VirtualHostGroup="vh"/>` +
		`<Route ServerCluster="c" UriGroup="g2" VirtualHostGroup="vh_0"/></Config>`
	b := `<Config>` +
		`<VirtualHostGroup Name="w"><VirtualHost Name="*:81"/></VirtualHostGroup>` +
		`<ServerCluster Name="d"><Server Name="t"/></ServerCluster>` +
		`<UriGroup Name="g3"><Uri Name="/v"/></UriGroup>` +
		`<Route ServerCluster="d" UriGroup="g3" VirtualHostGroup="w"/></Config>`
	var docs []*plugincfg.Document
	for i, text := range []string{a, b} {
		d, err := plugincfg.Parse(fmt.Sprintf("in%d.xml", i), []byte(text))
		require.NoError(t, err)
		docs = append(docs, d)
	}

	_, err := Merge(context.Background(), docs, Options{})
	var me *MergeError
	require.True(t, errors.As(err, &me), "got %v", err)
	assert.Equal(t, CodeInconsistent, me.AppError.Code)
	assert.Equal(t, "vh_0_0", me.AppError.Snippet)
}
