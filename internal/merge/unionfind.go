package merge

// unionFind is a classic disjoint-set with path compression and union by
// rank, used to compute connected components over the similarity graph.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}

	for i := range uf.parent {
		uf.parent[i] = i
	}

	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}

	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}

	switch {
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
	}
}

// components groups indices by their root, returning only groups of
// size > 1.
func (uf *unionFind) components() [][]int {
	groups := make(map[int][]int)

	for i := range uf.parent {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}

	var result [][]int

	for _, members := range groups {
		if len(members) > 1 {
			result = append(result, members)
		}
	}

	return result
}
