package cache

import "container/heap"

// entryHeap is a container/heap min-heap ordered by ttl-key (earliest
// expiration first), giving O(log n) eviction-of-earliest and O(log n)
// removal of an arbitrary entry during duplicate-merge or lazy purge.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	return h[i].key().less(h[j].key())
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.heapIndex = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIndex = -1
	*h = old[:n-1]
	return e
}

var _ heap.Interface = (*entryHeap)(nil)
