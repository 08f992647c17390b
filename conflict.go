package bdispatch

// detectConflicts reports every pair of routes with overlapping methods whose patterns have the same
// shape. The matcher orders literals before parameters before wildcards, so patterns that only differ
// in parameter names are the only ones it cannot order.
func detectConflicts(routes []routeData) *ConflictError {
	byShape := map[string][]int{}
	for i, rd := range routes {
		byShape[rd.pat.shape()] = append(byShape[rd.pat.shape()], i)
	}

	var pairs []ConflictPair
	for i, rd := range routes {
		for _, j := range byShape[rd.pat.shape()] {
			if j <= i || !rd.methods.overlaps(routes[j].methods) {
				continue
			}

			pairs = append(pairs, ConflictPair{First: rd.info, Second: routes[j].info})
		}
	}

	if len(pairs) < 1 {
		return nil
	}

	return &ConflictError{Pairs: pairs}
}
