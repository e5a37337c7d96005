package merge

// ordered is a string-keyed map that remembers first-insertion order.
type ordered[V any] struct {
	keys []string
	m    map[string]V
}

func newOrdered[V any]() *ordered[V] {
	return &ordered[V]{m: make(map[string]V)}
}

func (o *ordered[V]) get(k string) (V, bool) {
	v, ok := o.m[k]
	return v, ok
}

func (o *ordered[V]) set(k string, v V) {
	if _, ok := o.m[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.m[k] = v
}

func (o *ordered[V]) values() []V {
	out := make([]V, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, o.m[k])
	}
	return out
}

// lastByName collapses same-named items: the first occurrence fixes the
// position, the last occurrence supplies the value.
func lastByName[T any](items []T, name func(T) string) []T {
	o := newOrdered[T]()
	for _, it := range items {
		o.set(name(it), it)
	}
	return o.values()
}

func set(names ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// containsAll reports whether every element of sub is in super.
func containsAll(super, sub []string) bool {
	if len(sub) > len(super) {
		return false
	}
	s := set(super...)
	for _, n := range sub {
		if _, ok := s[n]; !ok {
			return false
		}
	}
	return true
}
