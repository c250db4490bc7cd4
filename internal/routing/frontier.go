package routing

// frontierEntry is one candidate in the Dijkstra priority queue: the
// vertex and the best known time to reach it.
type frontierEntry struct {
	vertex int
	time   float64
	index  int // maintained by container/heap
}

// frontier is a binary min-heap over frontierEntry.time, grounded on
// the same heap.Interface shape as the teacher's A* open set.
type frontier []*frontierEntry

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool { return f[i].time < f[j].time }

func (f frontier) Swap(i, j int) {
	f[i], f[j] = f[j], f[i]
	f[i].index = i
	f[j].index = j
}

func (f *frontier) Push(x interface{}) {
	e := x.(*frontierEntry)
	e.index = len(*f)
	*f = append(*f, e)
}

func (f *frontier) Pop() interface{} {
	old := *f
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*f = old[:n-1]
	return e
}
