// internal/store/branch.go
package store

// activeBranch walks parent pointers backward from the leaf and returns the
// set of uuids on the active conversation path. A dangling parent reference
// terminates the walk as if it were a root. The walk is bounded by the index
// size so a cyclic chain cannot loop forever.
func activeBranch(agg *aggregation, explicitLeaf string) map[string]struct{} {
	active := make(map[string]struct{})

	leaf := agg.leafUUID
	if explicitLeaf != "" {
		if _, ok := agg.index[explicitLeaf]; ok {
			leaf = explicitLeaf
		}
	}
	if leaf == "" {
		return active
	}

	current := leaf
	for steps := 0; steps <= len(agg.index); steps++ {
		if _, seen := active[current]; seen {
			break
		}
		e, ok := agg.index[current]
		if !ok {
			break
		}
		active[current] = struct{}{}
		if e.ParentUUID == nil {
			break
		}
		current = *e.ParentUUID
	}

	return active
}

// resolveInjected picks the injection candidates whose parent is on the
// active branch but which are not themselves part of the linear chain.
func resolveInjected(agg *aggregation, active map[string]struct{}) map[string]struct{} {
	injected := make(map[string]struct{})
	for _, e := range agg.injectedCandidates {
		if e.UUID == "" || e.ParentUUID == nil {
			continue
		}
		if _, onBranch := active[e.UUID]; onBranch {
			continue
		}
		if _, parentOnBranch := active[*e.ParentUUID]; parentOnBranch {
			injected[e.UUID] = struct{}{}
		}
	}
	return injected
}
