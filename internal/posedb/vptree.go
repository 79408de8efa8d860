package posedb

import (
	"container/heap"
	"math"
	"sort"
)

// VPTree is a vantage point tree over the feature rows of an index, using
// the weighted euclidean distance.
type VPTree struct {
	nodes   []vpNode
	root    int
	values  []float32
	dim     int
	weights []float32
}

type vpNode struct {
	pose    int
	radius  float64
	inside  int
	outside int
}

// BuildVPTree builds a tree over len(values)/dim rows.
func BuildVPTree(values []float32, dim int, weights []float32) *VPTree {
	n := len(values) / dim
	t := &VPTree{values: values, dim: dim, weights: weights, root: -1}
	poses := make([]int, n)
	for i := range poses {
		poses[i] = i
	}
	t.nodes = make([]vpNode, 0, n)
	t.root = t.build(poses)
	return t
}

func (t *VPTree) build(poses []int) int {
	if len(poses) == 0 {
		return -1
	}

	// the lowest pose index is the vantage point, keeping builds deterministic
	vantage := poses[0]
	rest := poses[1:]
	node := len(t.nodes)
	t.nodes = append(t.nodes, vpNode{pose: vantage, inside: -1, outside: -1})
	if len(rest) == 0 {
		return node
	}

	dists := make(map[int]float64, len(rest))
	for _, p := range rest {
		dists[p] = t.distance(t.row(vantage), t.row(p))
	}
	sort.SliceStable(rest, func(i, j int) bool {
		di, dj := dists[rest[i]], dists[rest[j]]
		if di != dj {
			return di < dj
		}
		return rest[i] < rest[j]
	})

	mid := len(rest) / 2
	radius := dists[rest[mid]]

	inside := append([]int(nil), rest[:mid]...)
	outside := append([]int(nil), rest[mid:]...)
	sort.Ints(inside)
	sort.Ints(outside)

	in := t.build(inside)
	out := t.build(outside)
	t.nodes[node].radius = radius
	t.nodes[node].inside = in
	t.nodes[node].outside = out
	return node
}

func (t *VPTree) row(pose int) []float32 {
	return t.values[pose*t.dim : (pose+1)*t.dim]
}

func (t *VPTree) distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += float64(t.weights[i]) * d * d
	}
	return math.Sqrt(sum)
}

// Len returns the number of indexed rows.
func (t *VPTree) Len() int { return len(t.nodes) }

// Nearest returns up to k pose indexes closest to query, in ascending pose order.
func (t *VPTree) Nearest(query []float32, k int) []int {
	return t.NearestFiltered(query, k, nil)
}

// NearestFiltered is Nearest over the poses for which skip returns false.
// A nil skip keeps every pose.
func (t *VPTree) NearestFiltered(query []float32, k int, skip func(pose int) bool) []int {
	if k <= 0 || t.root < 0 || len(query) != t.dim {
		return nil
	}

	h := &neighborHeap{}
	tau := math.Inf(1)

	var visit func(n int)
	visit = func(n int) {
		if n < 0 {
			return
		}
		node := t.nodes[n]
		d := t.distance(query, t.row(node.pose))
		switch {
		case skip != nil && skip(node.pose):
			// skipped poses still split the search space
		case h.Len() < k:
			heap.Push(h, neighbor{pose: node.pose, dist: d})
			if h.Len() == k {
				tau = (*h)[0].dist
			}
		case d < tau || (d == tau && node.pose < (*h)[0].pose):
			heap.Pop(h)
			heap.Push(h, neighbor{pose: node.pose, dist: d})
			tau = (*h)[0].dist
		}

		if d < node.radius {
			if d-tau <= node.radius {
				visit(node.inside)
			}
			if d+tau >= node.radius {
				visit(node.outside)
			}
		} else {
			if d+tau >= node.radius {
				visit(node.outside)
			}
			if d-tau <= node.radius {
				visit(node.inside)
			}
		}
	}
	visit(t.root)

	out := make([]int, 0, h.Len())
	for _, nb := range *h {
		out = append(out, nb.pose)
	}
	sort.Ints(out)
	return out
}

type neighbor struct {
	pose int
	dist float64
}

// neighborHeap is a max-heap on distance (ties: highest pose first).
type neighborHeap []neighbor

func (h neighborHeap) Len() int { return len(h) }
func (h neighborHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist > h[j].dist
	}
	return h[i].pose > h[j].pose
}
func (h neighborHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *neighborHeap) Push(x any)   { *h = append(*h, x.(neighbor)) }
func (h *neighborHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
