package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antigravity/transitcat/internal/geo"
	"github.com/antigravity/transitcat/internal/jsonval"
)

const renderSettingsJSON = `
	"render_settings": {
		"width": 600,
		"height": 400,
		"padding": 50,
		"line_width": 14,
		"stop_radius": 5,
		"bus_label_font_size": 20,
		"bus_label_offset": [7, 15],
		"stop_label_font_size": 18,
		"stop_label_offset": [7, -3],
		"underlayer_color": [255, 255, 255, 0.85],
		"underlayer_width": 3,
		"color_palette": ["green", [255, 160, 0], "red"]
	}`

func mustReplyArray(t *testing.T, doc string) []*jsonval.Object {
	t.Helper()
	v, err := jsonval.ParseString(doc)
	require.NoError(t, err)
	reply, err := Run(v)
	require.NoError(t, err)
	arr, err := reply.Array()
	require.NoError(t, err)
	objs := make([]*jsonval.Object, len(arr))
	for i, e := range arr {
		o, err := e.Object()
		require.NoError(t, err)
		objs[i] = o
	}
	return objs
}

func getStr(t *testing.T, o *jsonval.Object, key string) string {
	t.Helper()
	v, ok := o.Get(key)
	require.True(t, ok, "missing key %q", key)
	s, err := v.Str()
	require.NoError(t, err)
	return s
}

func getInt(t *testing.T, o *jsonval.Object, key string) int64 {
	t.Helper()
	v, ok := o.Get(key)
	require.True(t, ok, "missing key %q", key)
	i, err := v.Int()
	require.NoError(t, err)
	return i
}

func getReal(t *testing.T, o *jsonval.Object, key string) float64 {
	t.Helper()
	v, ok := o.Get(key)
	require.True(t, ok, "missing key %q", key)
	f, err := v.Real()
	require.NoError(t, err)
	return f
}

// TestSingleCyclicBus covers spec scenario 1: a roundtrip bus over two
// stops reports route_length as the sum of both declared directions
// and curvature as route_length over twice the great-circle A-B
// distance (about 0.78 here, since the declared road distances are
// shorter than the geometry).
func TestSingleCyclicBus(t *testing.T) {
	doc := `{
		"base_requests": [
			{"type": "Stop", "name": "A", "latitude": 55.6, "longitude": 37.2,
				"road_distances": {"B": 1000}},
			{"type": "Stop", "name": "B", "latitude": 55.61, "longitude": 37.21,
				"road_distances": {"A": 1000}},
			{"type": "Bus", "name": "1", "stops": ["A", "B", "A"], "is_roundtrip": true}
		],` + renderSettingsJSON + `,
		"routing_settings": {"bus_wait_time": 6, "bus_velocity": 40},
		"stat_requests": [
			{"id": 1, "type": "Bus", "name": "1"}
		]
	}`

	replies := mustReplyArray(t, doc)
	require.Len(t, replies, 1)
	r := replies[0]
	assert.EqualValues(t, 1, getInt(t, r, "request_id"))
	assert.EqualValues(t, 3, getInt(t, r, "stop_count"))
	assert.EqualValues(t, 2, getInt(t, r, "unique_stop_count"))
	assert.EqualValues(t, 2000, getInt(t, r, "route_length"))
	geoAB := geo.Distance(geo.Coordinates{Lat: 55.6, Lng: 37.2}, geo.Coordinates{Lat: 55.61, Lng: 37.21})
	assert.InDelta(t, 2000/(2*geoAB), getReal(t, r, "curvature"), 1e-9)
}

// TestNonRoundtripExpansion covers spec scenario 2: a three-stop,
// non-roundtrip bus is palindrome-expanded and its route_length sums
// both directions' distances.
func TestNonRoundtripExpansion(t *testing.T) {
	doc := `{
		"base_requests": [
			{"type": "Stop", "name": "A", "latitude": 55.6, "longitude": 37.2,
				"road_distances": {"B": 100}},
			{"type": "Stop", "name": "B", "latitude": 55.61, "longitude": 37.21,
				"road_distances": {"C": 200, "A": 150}},
			{"type": "Stop", "name": "C", "latitude": 55.62, "longitude": 37.22,
				"road_distances": {"B": 250}},
			{"type": "Bus", "name": "2", "stops": ["A", "B", "C"], "is_roundtrip": false}
		],` + renderSettingsJSON + `,
		"routing_settings": {"bus_wait_time": 1, "bus_velocity": 40},
		"stat_requests": [
			{"id": 2, "type": "Bus", "name": "2"}
		]
	}`

	replies := mustReplyArray(t, doc)
	require.Len(t, replies, 1)
	r := replies[0]
	assert.EqualValues(t, 5, getInt(t, r, "stop_count"))
	assert.EqualValues(t, 3, getInt(t, r, "unique_stop_count"))
	assert.EqualValues(t, 700, getInt(t, r, "route_length"))
}

// TestStopWithoutBuses covers spec scenario 3: a registered stop with
// no buses through it answers an empty bus list, and a Stop query
// naming an unregistered stop folds to not-found.
func TestStopWithoutBuses(t *testing.T) {
	doc := `{
		"base_requests": [
			{"type": "Stop", "name": "X", "latitude": 10, "longitude": 10},
			{"type": "Stop", "name": "A", "latitude": 11, "longitude": 11},
			{"type": "Stop", "name": "B", "latitude": 12, "longitude": 12,
				"road_distances": {"A": 500}},
			{"type": "Bus", "name": "1", "stops": ["A", "B", "A"], "is_roundtrip": true}
		],` + renderSettingsJSON + `,
		"routing_settings": {"bus_wait_time": 1, "bus_velocity": 40},
		"stat_requests": [
			{"id": 10, "type": "Stop", "name": "X"},
			{"id": 11, "type": "Stop", "name": "Y"}
		]
	}`

	replies := mustReplyArray(t, doc)
	require.Len(t, replies, 2)

	xReply := replies[0]
	busesV, ok := xReply.Get("buses")
	require.True(t, ok)
	buses, err := busesV.Array()
	require.NoError(t, err)
	assert.Empty(t, buses)

	yReply := replies[1]
	assert.Equal(t, "not found", getStr(t, yReply, "error_message"))
}

// TestRouteFastestPath covers spec scenario 4.
func TestRouteFastestPath(t *testing.T) {
	doc := `{
		"base_requests": [
			{"type": "Stop", "name": "A", "latitude": 0, "longitude": 0,
				"road_distances": {"B": 6000}},
			{"type": "Stop", "name": "B", "latitude": 0, "longitude": 0.01,
				"road_distances": {"C": 6000}},
			{"type": "Stop", "name": "C", "latitude": 0, "longitude": 0.02},
			{"type": "Bus", "name": "1", "stops": ["A", "B", "C"], "is_roundtrip": true}
		],` + renderSettingsJSON + `,
		"routing_settings": {"bus_wait_time": 6, "bus_velocity": 40},
		"stat_requests": [
			{"id": 1, "type": "Route", "from": "A", "to": "C"}
		]
	}`

	replies := mustReplyArray(t, doc)
	require.Len(t, replies, 1)
	r := replies[0]
	assert.InDelta(t, 24.0, getReal(t, r, "total_time"), 1e-9)

	itemsV, ok := r.Get("items")
	require.True(t, ok)
	items, err := itemsV.Array()
	require.NoError(t, err)
	require.Len(t, items, 2)

	wait, err := items[0].Object()
	require.NoError(t, err)
	assert.Equal(t, "Wait", getStr(t, wait, "type"))
	assert.Equal(t, "A", getStr(t, wait, "stop_name"))
	assert.InDelta(t, 6.0, getReal(t, wait, "time"), 1e-9)

	ride, err := items[1].Object()
	require.NoError(t, err)
	assert.Equal(t, "Bus", getStr(t, ride, "type"))
	assert.EqualValues(t, 2, getInt(t, ride, "span_count"))
	assert.InDelta(t, 18.0, getReal(t, ride, "time"), 1e-9)
}

// TestRouteWithTransfer covers spec scenario 5.
func TestRouteWithTransfer(t *testing.T) {
	doc := `{
		"base_requests": [
			{"type": "Stop", "name": "A", "latitude": 0, "longitude": 0,
				"road_distances": {"B": 1000}},
			{"type": "Stop", "name": "B", "latitude": 0, "longitude": 0.01,
				"road_distances": {"C": 1000}},
			{"type": "Stop", "name": "C", "latitude": 0, "longitude": 0.02},
			{"type": "Bus", "name": "L1", "stops": ["A", "B"], "is_roundtrip": true},
			{"type": "Bus", "name": "L2", "stops": ["B", "C"], "is_roundtrip": true}
		],` + renderSettingsJSON + `,
		"routing_settings": {"bus_wait_time": 2, "bus_velocity": 60},
		"stat_requests": [
			{"id": 1, "type": "Route", "from": "A", "to": "C"}
		]
	}`

	replies := mustReplyArray(t, doc)
	require.Len(t, replies, 1)
	r := replies[0]
	assert.InDelta(t, 6.0, getReal(t, r, "total_time"), 1e-9)

	itemsV, _ := r.Get("items")
	items, err := itemsV.Array()
	require.NoError(t, err)
	require.Len(t, items, 4)

	kinds := make([]string, len(items))
	for i, it := range items {
		o, err := it.Object()
		require.NoError(t, err)
		kinds[i] = getStr(t, o, "type")
	}
	assert.Equal(t, []string{"Wait", "Bus", "Wait", "Bus"}, kinds)
}

// TestMapDeterminism covers spec scenario 6: two independent runs
// against the same document produce byte-identical SVG payloads.
func TestMapDeterminism(t *testing.T) {
	doc := `{
		"base_requests": [
			{"type": "Stop", "name": "A", "latitude": 55.6, "longitude": 37.2,
				"road_distances": {"B": 1000}},
			{"type": "Stop", "name": "B", "latitude": 55.61, "longitude": 37.21,
				"road_distances": {"A": 1000}},
			{"type": "Bus", "name": "1", "stops": ["A", "B", "A"], "is_roundtrip": true}
		],` + renderSettingsJSON + `,
		"routing_settings": {"bus_wait_time": 6, "bus_velocity": 40},
		"stat_requests": [
			{"id": 1, "type": "Map"}
		]
	}`

	firstReplies := mustReplyArray(t, doc)
	secondReplies := mustReplyArray(t, doc)
	require.Len(t, firstReplies, 1)
	require.Len(t, secondReplies, 1)
	assert.Equal(t, getStr(t, firstReplies[0], "map"), getStr(t, secondReplies[0], "map"))
}

// TestUnknownBusAndUnreachableRouteFoldToNotFound exercises the
// non-fatal per-query failure path for both Bus and Route queries.
func TestUnknownBusAndUnreachableRouteFoldToNotFound(t *testing.T) {
	doc := `{
		"base_requests": [
			{"type": "Stop", "name": "A", "latitude": 0, "longitude": 0},
			{"type": "Stop", "name": "Lonely", "latitude": 5, "longitude": 5},
			{"type": "Bus", "name": "1", "stops": ["A"], "is_roundtrip": true}
		],` + renderSettingsJSON + `,
		"routing_settings": {"bus_wait_time": 1, "bus_velocity": 10},
		"stat_requests": [
			{"id": 1, "type": "Bus", "name": "ghost"},
			{"id": 2, "type": "Route", "from": "A", "to": "Nowhere"}
		]
	}`

	replies := mustReplyArray(t, doc)
	require.Len(t, replies, 2)
	assert.Equal(t, "not found", getStr(t, replies[0], "error_message"))
	assert.Equal(t, "not found", getStr(t, replies[1], "error_message"))
}

// TestMalformedRequestIsFatal exercises the batch-level fatal path:
// a base_requests entry missing a required field aborts the whole run
// rather than producing a partial reply array.
func TestMalformedRequestIsFatal(t *testing.T) {
	doc := `{
		"base_requests": [
			{"type": "Stop", "name": "A"}
		],` + renderSettingsJSON + `,
		"routing_settings": {"bus_wait_time": 1, "bus_velocity": 10},
		"stat_requests": []
	}`

	v, err := jsonval.ParseString(doc)
	require.NoError(t, err)
	_, err = Run(v)
	assert.ErrorIs(t, err, ErrMalformedRequest)
}
