package bpath

// DepthFirstDeepestFirst orders paths by descending depth, and within
// equal depth compares component-wise from the root using Atom byte
// order. Iterating entries in this order finalizes children before
// their parents.
func DepthFirstDeepestFirst(a, b *Path) bool {
	if a.depth != b.depth {
		return a.depth > b.depth
	}
	return compareComponents(a, b) < 0
}

// TarFriendly orders paths the way they should appear inside a tar: at
// the common ancestor depth d, the shallower of the two diverging
// ancestors sorts first (so a directory precedes its own contents), and
// otherwise siblings compare by name so that content and subdirectories
// interleave in a stable, deterministic order.
func TarFriendly(a, b *Path) bool {
	d := a.depth
	if b.depth < d {
		d = b.depth
	}
	pa := a.ParentAtDepth(d)
	pb := b.ParentAtDepth(d)
	if pa == pb {
		// One is an ancestor of (or equal to) the other: shorter (the
		// ancestor/directory) sorts first.
		return a.depth < b.depth
	}
	return compareComponents(pa, pb) < 0
}

// compareComponents compares a and b's full component chains
// byte-lexicographically, component by component from the root.
func compareComponents(a, b *Path) int {
	ca := a.components()
	cb := b.components()
	n := len(ca)
	if len(cb) < n {
		n = len(cb)
	}
	for i := 0; i < n; i++ {
		sa, sb := ca[i].String(), cb[i].String()
		if sa != sb {
			if sa < sb {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ca) < len(cb):
		return -1
	case len(ca) > len(cb):
		return 1
	default:
		return 0
	}
}
