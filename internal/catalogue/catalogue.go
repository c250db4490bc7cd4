// Package catalogue holds the in-memory dataset of stops and buses
// that every query in the system answers against. Stops and buses are
// append-only and addressed by stable integer ids rather than
// pointers, so the routing graph built on top of a Catalogue can hold
// those ids without aliasing the catalogue's own storage.
package catalogue

import (
	"errors"
	"fmt"
	"sort"

	"github.com/antigravity/transitcat/internal/geo"
)

// ErrDuplicateStop is returned by AddStop when the name is already
// registered.
var ErrDuplicateStop = errors.New("catalogue: duplicate stop")

// ErrDuplicateBus is returned by AddBus when the name is already
// registered.
var ErrDuplicateBus = errors.New("catalogue: duplicate bus")

// ErrUnknownStop is returned by AddBus when a referenced stop name was
// never registered.
var ErrUnknownStop = errors.New("catalogue: unknown stop")

// StopID addresses a Stop in a Catalogue's backing storage.
type StopID int

// BusID addresses a Bus in a Catalogue's backing storage.
type BusID int

// Stop is a named geographic point.
type Stop struct {
	Name        string
	Coordinates geo.Coordinates
}

// Bus is a named ordered sequence of stops. Stops holds the expanded
// sequence: for a non-roundtrip bus this is the palindrome doubling of
// the declared stops, matching how every other operation (route
// length, stop counts, ride-edge generation) consumes it.
type Bus struct {
	Name        string
	Stops       []StopID
	IsRoundtrip bool
}

type distanceKey struct {
	from, to StopID
}

// Catalogue is the append-only stop/bus dataset. The zero value is not
// usable; construct with New.
type Catalogue struct {
	stops   []Stop
	buses   []Bus
	stopIDs map[string]StopID
	busIDs  map[string]BusID

	distances map[distanceKey]int
	stopBuses map[StopID]map[string]struct{}
}

// New returns an empty Catalogue.
func New() *Catalogue {
	return &Catalogue{
		stopIDs:   make(map[string]StopID),
		busIDs:    make(map[string]BusID),
		distances: make(map[distanceKey]int),
		stopBuses: make(map[StopID]map[string]struct{}),
	}
}

// AddStop registers a new stop and returns its id. name must not
// already be registered.
func (c *Catalogue) AddStop(name string, coords geo.Coordinates) (StopID, error) {
	if _, ok := c.stopIDs[name]; ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateStop, name)
	}
	id := StopID(len(c.stops))
	c.stops = append(c.stops, Stop{Name: name, Coordinates: coords})
	c.stopIDs[name] = id
	c.stopBuses[id] = make(map[string]struct{})
	return id, nil
}

// AddDistance records the directed road distance, in meters, from the
// stop named from to the stop named to. A later call for the same
// ordered pair overwrites the earlier value. Both stops must already
// be registered.
func (c *Catalogue) AddDistance(from, to string, meters int) error {
	fromID, ok := c.stopIDs[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStop, from)
	}
	toID, ok := c.stopIDs[to]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStop, to)
	}
	c.distances[distanceKey{fromID, toID}] = meters
	return nil
}

// AddBus registers a new bus. stopNames is the declared (not expanded)
// stop sequence; if !isRoundtrip it is palindrome-expanded before
// storage. Every referenced stop must already be registered.
func (c *Catalogue) AddBus(name string, stopNames []string, isRoundtrip bool) (BusID, error) {
	if _, ok := c.busIDs[name]; ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateBus, name)
	}
	ids := make([]StopID, len(stopNames))
	for i, sn := range stopNames {
		id, ok := c.stopIDs[sn]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownStop, sn)
		}
		ids[i] = id
	}
	if !isRoundtrip {
		ids = expandPalindrome(ids)
	}

	id := BusID(len(c.buses))
	c.buses = append(c.buses, Bus{Name: name, Stops: ids, IsRoundtrip: isRoundtrip})
	c.busIDs[name] = id

	seen := make(map[StopID]struct{}, len(ids))
	for _, sid := range ids {
		if _, dup := seen[sid]; dup {
			continue
		}
		seen[sid] = struct{}{}
		c.stopBuses[sid][name] = struct{}{}
	}
	return id, nil
}

func expandPalindrome(ids []StopID) []StopID {
	if len(ids) == 0 {
		return ids
	}
	expanded := make([]StopID, 0, 2*len(ids)-1)
	expanded = append(expanded, ids...)
	for i := len(ids) - 2; i >= 0; i-- {
		expanded = append(expanded, ids[i])
	}
	return expanded
}

// GetStop looks up a stop by name.
func (c *Catalogue) GetStop(name string) (StopID, *Stop, bool) {
	id, ok := c.stopIDs[name]
	if !ok {
		return 0, nil, false
	}
	return id, &c.stops[id], true
}

// GetBus looks up a bus by name.
func (c *Catalogue) GetBus(name string) (BusID, *Bus, bool) {
	id, ok := c.busIDs[name]
	if !ok {
		return 0, nil, false
	}
	return id, &c.buses[id], true
}

// Stop returns the stop stored at id.
func (c *Catalogue) Stop(id StopID) *Stop { return &c.stops[id] }

// Bus returns the bus stored at id.
func (c *Catalogue) Bus(id BusID) *Bus { return &c.buses[id] }

// Distance returns the road distance from stop a to stop b: the
// forward row if declared, else the reverse row, else 0.
func (c *Catalogue) Distance(a, b StopID) int {
	if d, ok := c.distances[distanceKey{a, b}]; ok {
		return d
	}
	if d, ok := c.distances[distanceKey{b, a}]; ok {
		return d
	}
	return 0
}

// RouteLength sums the road distance along bus's expanded stop
// sequence.
func (c *Catalogue) RouteLength(bus *Bus) int {
	total := 0
	for i := 1; i < len(bus.Stops); i++ {
		total += c.Distance(bus.Stops[i-1], bus.Stops[i])
	}
	return total
}

// GeoLength sums the great-circle distance along bus's expanded stop
// sequence.
func (c *Catalogue) GeoLength(bus *Bus) float64 {
	total := 0.0
	for i := 1; i < len(bus.Stops); i++ {
		total += geo.Distance(c.stops[bus.Stops[i-1]].Coordinates, c.stops[bus.Stops[i]].Coordinates)
	}
	return total
}

// RouteInfo is the statistics reply for a Bus query.
type RouteInfo struct {
	StopsCount      int
	UniqueStopsCount int
	RouteLength     int
	Curvature       float64
}

// RouteInfo computes statistics for the named bus.
func (c *Catalogue) RouteInfo(name string) (RouteInfo, bool) {
	_, bus, ok := c.GetBus(name)
	if !ok {
		return RouteInfo{}, false
	}
	unique := make(map[StopID]struct{}, len(bus.Stops))
	for _, sid := range bus.Stops {
		unique[sid] = struct{}{}
	}
	routeLen := c.RouteLength(bus)
	geoLen := c.GeoLength(bus)
	curvature := 0.0
	if geoLen != 0 {
		curvature = float64(routeLen) / geoLen
	}
	return RouteInfo{
		StopsCount:       len(bus.Stops),
		UniqueStopsCount: len(unique),
		RouteLength:      routeLen,
		Curvature:        curvature,
	}, true
}

// StopInfo is the per-stop bus set reply for a Stop query.
type StopInfo struct {
	Buses []string
}

// StopInfo returns the sorted set of bus names passing through the
// named stop.
func (c *Catalogue) StopInfo(name string) (StopInfo, bool) {
	id, _, ok := c.GetStop(name)
	if !ok {
		return StopInfo{}, false
	}
	names := make([]string, 0, len(c.stopBuses[id]))
	for n := range c.stopBuses[id] {
		names = append(names, n)
	}
	sort.Strings(names)
	return StopInfo{Buses: names}, true
}

// UniqueBuses returns every registered bus name, sorted.
func (c *Catalogue) UniqueBuses() []string {
	names := make([]string, len(c.buses))
	for i, b := range c.buses {
		names[i] = b.Name
	}
	sort.Strings(names)
	return names
}

// UniqueStops returns the name of every stop that belongs to at least
// one bus, sorted.
func (c *Catalogue) UniqueStops() []string {
	seen := make(map[string]struct{})
	for _, b := range c.buses {
		for _, sid := range b.Stops {
			seen[c.stops[sid].Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AllStops returns every registered stop, in insertion order.
func (c *Catalogue) AllStops() []Stop { return c.stops }

// AllBuses returns every registered bus, in insertion order.
func (c *Catalogue) AllBuses() []Bus { return c.buses }
