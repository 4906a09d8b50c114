package asset

// Dependency edges model C8: every TypeRecord tracks which other records it
// references (out-edges) and which reference it (in-edges), split by
// strength. Edges are maintained symmetrically — adding a strong out-edge
// from A to B also adds a strong in-edge on B pointing back to A — so that a
// record can answer "who depends on me" in O(1) instead of scanning the
// whole domain.
//
// Callers must hold both records' write locks before mutating edges; when
// locking two records, callers must acquire them in a stable order (e.g. by
// Path string) to avoid deadlock.

// AddStrongEdge records that r strongly references dep (r must outlive
// having dep Deleted while the edge exists). Caller holds both locks.
func (r *TypeRecord) AddStrongEdge(dep *TypeRecord) {
	r.strongOut[dep] = struct{}{}
	dep.strongIn[r] = struct{}{}
}

// AddWeakEdge records a weak (non-lifetime-affecting) reference from r to
// dep. Caller holds both locks.
func (r *TypeRecord) AddWeakEdge(dep *TypeRecord) {
	r.weakOut[dep] = struct{}{}
	dep.weakIn[r] = struct{}{}
}

// RemoveEdge removes any strong or weak edge from r to dep, in both
// directions. Caller holds both locks.
func (r *TypeRecord) RemoveEdge(dep *TypeRecord) {
	delete(r.strongOut, dep)
	delete(r.weakOut, dep)
	delete(dep.strongIn, r)
	delete(dep.weakIn, r)
}

// StrongOutDegree returns the number of records r strongly depends on.
// Caller holds at least the read lock.
func (r *TypeRecord) StrongOutDegree() int { return len(r.strongOut) }

// StrongInDegree returns the number of records that strongly depend on r.
// A positive count means Delete must be refused: removing r
// would leave a dangling strong reference.
func (r *TypeRecord) StrongInDegree() int { return len(r.strongIn) }

// WeakInDegree returns the number of records that weakly depend on r. Weak
// in-edges do not block Delete; holders are expected to re-resolve and
// observe NotFound.
func (r *TypeRecord) WeakInDegree() int { return len(r.weakIn) }

// StrongOutEdges returns a snapshot slice of r's strong dependencies. Caller
// holds at least the read lock.
func (r *TypeRecord) StrongOutEdges() []*TypeRecord {
	out := make([]*TypeRecord, 0, len(r.strongOut))
	for dep := range r.strongOut {
		out = append(out, dep)
	}
	return out
}

// WeakOutEdges returns a snapshot slice of r's weak dependencies. Caller
// holds at least the read lock.
func (r *TypeRecord) WeakOutEdges() []*TypeRecord {
	out := make([]*TypeRecord, 0, len(r.weakOut))
	for dep := range r.weakOut {
		out = append(out, dep)
	}
	return out
}

// HasStrongPath reports whether target is reachable from r by following
// strong out-edges, which lets a caller reject a strong-edge insertion that
// would create a cycle. PublishLoad and Instantiate do not call it;
// AddStrongEdge itself performs no cycle check.
func HasStrongPath(r, target *TypeRecord) bool {
	if r == target {
		return true
	}
	visited := map[*TypeRecord]bool{r: true}
	stack := []*TypeRecord{r}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		for dep := range cur.strongOut {
			if dep == target {
				return true
			}
			if !visited[dep] {
				visited[dep] = true
				stack = append(stack, dep)
			}
		}
	}
	return false
}
