package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antigravity/transitcat/internal/catalogue"
	"github.com/antigravity/transitcat/internal/geo"
)

func TestRouteFastestPath(t *testing.T) {
	cat := catalogue.New()
	_, err := cat.AddStop("A", geo.Coordinates{})
	require.NoError(t, err)
	_, err = cat.AddStop("B", geo.Coordinates{})
	require.NoError(t, err)
	_, err = cat.AddStop("C", geo.Coordinates{})
	require.NoError(t, err)
	require.NoError(t, cat.AddDistance("A", "B", 6000))
	require.NoError(t, cat.AddDistance("B", "C", 6000))
	_, err = cat.AddBus("1", []string{"A", "B", "C"}, true)
	require.NoError(t, err)

	r := Build(cat, Settings{BusWaitTimeMinutes: 6, BusVelocityKMH: 40})
	result, err := r.GetRouteInfo("A", "C")
	require.NoError(t, err)

	assert.InDelta(t, 24.0, result.TotalTime, 1e-9)
	require.Len(t, result.Items, 2)
	assert.Equal(t, ItemWait, result.Items[0].Kind)
	assert.Equal(t, "A", result.Items[0].StopName)
	assert.InDelta(t, 6.0, result.Items[0].Time, 1e-9)
	assert.Equal(t, ItemBus, result.Items[1].Kind)
	assert.Equal(t, 2, result.Items[1].SpanCount)
	assert.InDelta(t, 18.0, result.Items[1].Time, 1e-9)
}

func TestRouteWithTransfer(t *testing.T) {
	cat := catalogue.New()
	for _, name := range []string{"A", "B", "C"} {
		_, err := cat.AddStop(name, geo.Coordinates{})
		require.NoError(t, err)
	}
	require.NoError(t, cat.AddDistance("A", "B", 1000))
	require.NoError(t, cat.AddDistance("B", "C", 1000))

	_, err := cat.AddBus("L1", []string{"A", "B"}, true)
	require.NoError(t, err)
	_, err = cat.AddBus("L2", []string{"B", "C"}, true)
	require.NoError(t, err)

	r := Build(cat, Settings{BusWaitTimeMinutes: 2, BusVelocityKMH: 60})
	result, err := r.GetRouteInfo("A", "C")
	require.NoError(t, err)

	assert.InDelta(t, 6.0, result.TotalTime, 1e-9)
	require.Len(t, result.Items, 4)
	assert.Equal(t, ItemWait, result.Items[0].Kind)
	assert.Equal(t, "A", result.Items[0].StopName)
	assert.Equal(t, ItemBus, result.Items[1].Kind)
	assert.Equal(t, "L1", result.Items[1].BusName)
	assert.Equal(t, ItemWait, result.Items[2].Kind)
	assert.Equal(t, "B", result.Items[2].StopName)
	assert.Equal(t, ItemBus, result.Items[3].Kind)
	assert.Equal(t, "L2", result.Items[3].BusName)
}

func TestSameStopRouteIsZero(t *testing.T) {
	cat := catalogue.New()
	_, err := cat.AddStop("A", geo.Coordinates{})
	require.NoError(t, err)
	_, err = cat.AddStop("B", geo.Coordinates{})
	require.NoError(t, err)
	require.NoError(t, cat.AddDistance("A", "B", 500))
	_, err = cat.AddBus("1", []string{"A", "B"}, true)
	require.NoError(t, err)

	r := Build(cat, Settings{BusWaitTimeMinutes: 3, BusVelocityKMH: 30})
	result, err := r.GetRouteInfo("A", "A")
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.TotalTime)
	assert.Empty(t, result.Items)
}

func TestUnknownStopAndNoRoute(t *testing.T) {
	cat := catalogue.New()
	_, err := cat.AddStop("A", geo.Coordinates{})
	require.NoError(t, err)
	_, err = cat.AddStop("B", geo.Coordinates{})
	require.NoError(t, err)
	_, err = cat.AddStop("Isolated", geo.Coordinates{})
	require.NoError(t, err)
	require.NoError(t, cat.AddDistance("A", "B", 500))
	_, err = cat.AddBus("1", []string{"A", "B"}, true)
	require.NoError(t, err)
	_, err = cat.AddBus("lonely", []string{"Isolated"}, true)
	require.NoError(t, err)

	r := Build(cat, Settings{BusWaitTimeMinutes: 1, BusVelocityKMH: 10})

	_, err = r.GetRouteInfo("A", "Nowhere")
	assert.ErrorIs(t, err, ErrUnknownStop)

	_, err = r.GetRouteInfo("A", "Isolated")
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestNonRoundtripNoEdgeCrossesFold(t *testing.T) {
	cat := catalogue.New()
	for _, name := range []string{"A", "B", "C"} {
		_, err := cat.AddStop(name, geo.Coordinates{})
		require.NoError(t, err)
	}
	require.NoError(t, cat.AddDistance("A", "B", 100))
	require.NoError(t, cat.AddDistance("B", "C", 200))
	require.NoError(t, cat.AddDistance("C", "B", 150))
	require.NoError(t, cat.AddDistance("B", "A", 250))
	_, err := cat.AddBus("2", []string{"A", "B", "C"}, false)
	require.NoError(t, err)

	r := Build(cat, Settings{BusWaitTimeMinutes: 1, BusVelocityKMH: 60})
	result, err := r.GetRouteInfo("A", "A")
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.TotalTime)

	// The expanded sequence is A,B,C,B,A; each direction covers two
	// hops, so an edge spanning more than two stops would cross the fold.
	for _, edges := range r.graph.adjacency {
		for _, e := range edges {
			assert.LessOrEqual(t, e.spanCount, 2)
		}
	}
}
