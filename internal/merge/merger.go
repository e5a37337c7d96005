package merge

// lfMerge promotes every key found in more than one input to a shared
// group. Inputs are taken in order; input i is first reconciled against the
// groups already built, then compared with each earlier input.
func (r *run) lfMerge(plugins []*Plugin) []*SharedPlugin {
	var shared []*SharedPlugin
	for i := 1; i < len(plugins); i++ {
		p2 := plugins[i]

		for _, sp := range shared {
			for _, key := range sortedKeys(sp.entries) {
				info2, ok := p2.entries[key]
				if !ok {
					continue
				}
				r.log.Debug("Adding routing entry to existing shared group", "uid", key.String(), "group", sp.Seq, "file", p2.Source)
				sp.addServers(r, p2, info2.Cluster, sp.entries[key])
				delete(p2.entries, key)
			}
		}

		var fresh *SharedPlugin
		for j := 0; j < i; j++ {
			p1 := plugins[j]
			for _, key := range sortedKeys(p1.entries) {
				info2, ok := p2.entries[key]
				if !ok {
					continue
				}
				info1 := p1.entries[key]
				if fresh == nil {
					fresh = newSharedPlugin(r.nextSeq, info1.Cluster)
					r.nextSeq++
				}
				fresh.addMatch(r, key, p1, info1, p2, info2)
				delete(p1.entries, key)
				delete(p2.entries, key)
			}
			r.markUniqueness(p1, p2)
			r.markUniqueness(p2, p1)
		}
		if fresh != nil {
			r.log.Debug("Created shared group", "group", fresh.Seq, "uids", fresh.describe())
			shared = append(shared, fresh)
		}
	}
	return shared
}

// pMerge keeps the first input's copy of every duplicated key and drops
// the rest. No shared groups are built.
func (r *run) pMerge(plugins []*Plugin) {
	for i := 1; i < len(plugins); i++ {
		p2 := plugins[i]
		for j := 0; j < i; j++ {
			p1 := plugins[j]
			for key := range p1.entries {
				if _, ok := p2.entries[key]; ok {
					r.log.Debug("Discarding duplicate routing entry", "uid", key.String(), "file", p2.Source, "keptFrom", p1.Source)
					delete(p2.entries, key)
				}
			}
			r.markUniqueness(p1, p2)
			r.markUniqueness(p2, p1)
		}
	}
}

// markUniqueness flags the entries left in target that other never
// contained, by uri or (when app matching is active) by app name.
func (r *run) markUniqueness(other, target *Plugin) {
	for _, info := range target.entries {
		if _, ok := other.uris[info.URI.Name()]; !ok {
			info.UniqueVhostGroupNeeded = true
			continue
		}
		if r.mode == KeyURIAppVhost {
			if _, ok := other.apps[info.App]; !ok {
				info.UniqueVhostGroupNeeded = true
				continue
			}
		}
		info.UniqueVhostGroupNeeded = false
	}
}
