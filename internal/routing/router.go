// Package routing builds the doubled-vertex graph used to answer
// fastest-itinerary queries: every stop gets a "wait" vertex and a
// "ride" vertex one index above it, so that boarding delay is paid
// for by a dedicated edge rather than folded into ride edges.
package routing

import (
	"container/heap"
	"errors"
	"math"

	"github.com/antigravity/transitcat/internal/catalogue"
)

// ErrUnknownStop is returned by GetRouteInfo when either endpoint
// names a stop the router never indexed (i.e. a stop no bus passes
// through).
var ErrUnknownStop = errors.New("routing: unknown stop")

// ErrNoRoute is returned by GetRouteInfo when the destination is
// unreachable from the origin.
var ErrNoRoute = errors.New("routing: no route")

// ItemKind distinguishes a waiting segment from a riding segment in a
// RouteResult.
type ItemKind int

const (
	ItemWait ItemKind = iota
	ItemBus
)

// Item is one leg of an itinerary: either waiting at a stop for a bus,
// or riding a bus across one or more stops.
type Item struct {
	Kind      ItemKind
	StopName  string // set for ItemWait
	BusName   string // set for ItemBus
	SpanCount int    // set for ItemBus: number of ride-edges folded into this leg
	Time      float64
}

// RouteResult is the answer to a fastest-itinerary query.
type RouteResult struct {
	TotalTime float64
	Items     []Item
}

// Router answers fastest-itinerary queries over a frozen Catalogue. It
// is built once; its graph is append-only.
type Router struct {
	graph       *graph
	stopToRide  map[string]int
	rideToStop  []string
	busWaitTime float64
}

// Settings configures the per-stop wait penalty and bus speed used
// when weighting ride edges.
type Settings struct {
	BusWaitTimeMinutes float64
	BusVelocityKMH     float64
}

// Build constructs a Router from a frozen catalogue: one wait/ride
// vertex pair per stop that belongs to at least one bus, a wait edge
// per stop, and ride edges for every bus's expanded stop sequence.
func Build(cat *catalogue.Catalogue, settings Settings) *Router {
	stopNames := cat.UniqueStops()
	g := newGraph(2 * len(stopNames))

	stopToRide := make(map[string]int, len(stopNames))
	rideToStop := make([]string, len(stopNames))
	for i, name := range stopNames {
		ride := i*2 + 1
		stopToRide[name] = ride
		rideToStop[i] = name
		g.addEdge(ride-1, edge{to: ride, time: settings.BusWaitTimeMinutes})
	}

	timeCoef := 60.0 / (settings.BusVelocityKMH * 1000.0)
	for _, busName := range cat.UniqueBuses() {
		_, bus, _ := cat.GetBus(busName)
		addBusEdges(g, cat, stopToRide, bus, timeCoef)
	}

	return &Router{
		graph:       g,
		stopToRide:  stopToRide,
		rideToStop:  rideToStop,
		busWaitTime: settings.BusWaitTimeMinutes,
	}
}

// addStopEdges ports the source's AddStopEdges template: it emits one
// edge from the ride vertex of stops[startIdx] to the wait vertex of
// every stops[k] for startIdx < k < endIdx, with a cumulative time and
// span count.
func addStopEdges(g *graph, cat *catalogue.Catalogue, stopToRide map[string]int, stops []catalogue.StopID, startIdx, endIdx int, busName string, timeCoef float64) {
	if startIdx+1 >= endIdx {
		return
	}
	startName := cat.Stop(stops[startIdx]).Name
	fromVertex := stopToRide[startName]

	weightSum := 0
	spanCounter := 0
	for i := startIdx; i+1 < endIdx; i++ {
		lhs, rhs := stops[i], stops[i+1]
		spanCounter++
		weightSum += cat.Distance(lhs, rhs)
		edgeTime := float64(weightSum) * timeCoef

		rhsName := cat.Stop(rhs).Name
		toVertex := stopToRide[rhsName] - 1 // wait vertex of rhs
		g.addEdge(fromVertex, edge{to: toVertex, time: edgeTime, spanCount: spanCounter, busName: busName})
	}
}

// addBusEdges generates ride edges for a single bus's expanded stop
// sequence. Non-roundtrip buses emit edges in two ranges, split at the
// palindrome's midpoint, so no single edge crosses the turnaround
// (riders must get off and re-board at the terminus).
func addBusEdges(g *graph, cat *catalogue.Catalogue, stopToRide map[string]int, bus *catalogue.Bus, timeCoef float64) {
	stops := bus.Stops
	n := len(stops)
	if n == 0 {
		return
	}
	if bus.IsRoundtrip {
		for i := 0; i < n-1; i++ {
			addStopEdges(g, cat, stopToRide, stops, i, n, bus.Name, timeCoef)
		}
		return
	}
	half := n / 2
	for i := 0; i < half; i++ {
		addStopEdges(g, cat, stopToRide, stops, i, n-half, bus.Name, timeCoef)
	}
	for i := half; i < n-1; i++ {
		addStopEdges(g, cat, stopToRide, stops, i, n, bus.Name, timeCoef)
	}
}

// GetRouteInfo finds the fastest itinerary from the stop named from to
// the stop named to, starting and ending at their wait vertices so the
// very first leg of any non-trivial route is the initial wait.
func (r *Router) GetRouteInfo(from, to string) (RouteResult, error) {
	fromRide, ok := r.stopToRide[from]
	if !ok {
		return RouteResult{}, ErrUnknownStop
	}
	toRide, ok := r.stopToRide[to]
	if !ok {
		return RouteResult{}, ErrUnknownStop
	}
	source := fromRide - 1
	target := toRide - 1

	dist, prevEdge, prevVertex := r.dijkstra(source)
	if math.IsInf(dist[target], 1) {
		return RouteResult{}, ErrNoRoute
	}

	var edges []edge
	for v := target; v != source; v = prevVertex[v] {
		edges = append(edges, prevEdge[v])
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}

	items := make([]Item, len(edges))
	for i, e := range edges {
		items[i] = r.itemFromEdge(e)
	}
	return RouteResult{TotalTime: dist[target], Items: items}, nil
}

func (r *Router) itemFromEdge(e edge) Item {
	if e.busName == "" {
		return Item{Kind: ItemWait, StopName: r.stopName(e.to), Time: e.time}
	}
	return Item{Kind: ItemBus, BusName: e.busName, SpanCount: e.spanCount, Time: e.time}
}

func (r *Router) stopName(vertex int) string {
	return r.rideToStop[vertex/2]
}

// dijkstra computes single-source shortest times from source over the
// router's graph. prevEdge[v] and prevVertex[v] let the caller walk
// the shortest path back from any reached vertex to source.
func (r *Router) dijkstra(source int) (dist []float64, prevEdge []edge, prevVertex []int) {
	n := len(r.graph.adjacency)
	dist = make([]float64, n)
	prevEdge = make([]edge, n)
	prevVertex = make([]int, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		prevVertex[i] = -1
	}
	dist[source] = 0

	f := &frontier{}
	heap.Init(f)
	heap.Push(f, &frontierEntry{vertex: source, time: 0})

	visited := make([]bool, n)
	for f.Len() > 0 {
		cur := heap.Pop(f).(*frontierEntry)
		if visited[cur.vertex] {
			continue
		}
		visited[cur.vertex] = true

		for _, e := range r.graph.adjacency[cur.vertex] {
			if visited[e.to] {
				continue
			}
			nd := dist[cur.vertex] + e.time
			if nd < dist[e.to] {
				dist[e.to] = nd
				prevEdge[e.to] = e
				prevVertex[e.to] = cur.vertex
				heap.Push(f, &frontierEntry{vertex: e.to, time: nd})
			}
		}
	}
	return dist, prevEdge, prevVertex
}
