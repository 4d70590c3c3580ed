package engine

// UnionFind is a disjoint-set over event ids with path compression and
// union by size. Clusters are flat parent-pointer rows, which keeps
// persistence trivial and avoids object reference cycles. Not safe for
// concurrent use; callers serialize mutations (see service.ClusterService).
type UnionFind struct {
	parent map[int64]int64
	size   map[int64]int
}

func NewUnionFind() *UnionFind {
	return &UnionFind{
		parent: make(map[int64]int64),
		size:   make(map[int64]int),
	}
}

// Add registers an event id as its own singleton set. No-op if known.
func (u *UnionFind) Add(id int64) {
	if _, ok := u.parent[id]; ok {
		return
	}
	u.parent[id] = id
	u.size[id] = 1
}

// Find returns the set representative for id, compressing the path.
// Unknown ids are registered as singletons first.
func (u *UnionFind) Find(id int64) int64 {
	u.Add(id)
	root := id
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[id] != root {
		u.parent[id], id = root, u.parent[id]
	}
	return root
}

// Union merges the sets containing a and b and returns the surviving
// representative. Amortized O(α).
func (u *UnionFind) Union(a, b int64) int64 {
	ra, rb := u.Find(a), u.Find(b)
	if ra == rb {
		return ra
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
	delete(u.size, rb)
	return ra
}

// Members returns every id whose representative matches id's.
func (u *UnionFind) Members(id int64) []int64 {
	root := u.Find(id)
	var members []int64
	for k := range u.parent {
		if u.Find(k) == root {
			members = append(members, k)
		}
	}
	return members
}

// Parents exposes the compressed parent pointers for persistence.
func (u *UnionFind) Parents() map[int64]int64 {
	out := make(map[int64]int64, len(u.parent))
	for k := range u.parent {
		out[k] = u.Find(k)
	}
	return out
}

// Load rebuilds the structure from persisted parent pointers.
func Load(parents map[int64]int64) *UnionFind {
	u := NewUnionFind()
	for id, root := range parents {
		u.Add(id)
		u.Add(root)
		u.Union(root, id)
	}
	return u
}
