// Package dispatch binds a parsed JSON request document to the
// catalogue, map renderer, and router: it populates the catalogue from
// base_requests, builds the renderer and router from their settings
// objects, and answers stat_requests with a reply array.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/antigravity/transitcat/internal/catalogue"
	"github.com/antigravity/transitcat/internal/geo"
	"github.com/antigravity/transitcat/internal/jsonbuilder"
	"github.com/antigravity/transitcat/internal/jsonval"
	"github.com/antigravity/transitcat/internal/mapview"
	"github.com/antigravity/transitcat/internal/routing"
	"github.com/antigravity/transitcat/internal/svg"
)

// ErrMalformedRequest reports a request document missing a field the
// dispatcher requires, or holding it under the wrong JSON kind. It is
// always fatal: construction errors abort the whole batch.
var ErrMalformedRequest = errors.New("dispatch: malformed request")

const notFoundMessage = "not found"

// Handler owns the catalogue, renderer, and router built from a single
// request document, and answers stat_requests against them.
type Handler struct {
	cat      *catalogue.Catalogue
	renderer *mapview.Renderer
	router   *routing.Router
}

// Run parses doc as a full request document, builds a Handler from its
// base_requests/render_settings/routing_settings, answers every entry
// in stat_requests, and returns the reply array as a jsonval.Value.
// Any error it returns is fatal to the whole batch; per-query failures
// are folded into {error_message: "not found"} reply objects instead.
func Run(doc jsonval.Value) (jsonval.Value, error) {
	root, err := doc.Object()
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("%w: root is not an object: %w", ErrMalformedRequest, err)
	}

	cat := catalogue.New()
	if err := LoadBaseRequests(cat, root); err != nil {
		return jsonval.Value{}, err
	}

	renderSettings, err := parseRenderSettings(root)
	if err != nil {
		return jsonval.Value{}, err
	}
	routingSettings, err := parseRoutingSettings(root)
	if err != nil {
		return jsonval.Value{}, err
	}

	h := &Handler{
		cat:      cat,
		renderer: mapview.New(renderSettings),
		router:   routing.Build(cat, routingSettings),
	}

	return h.answerStatRequests(root)
}

func getField(obj *jsonval.Object, key string) (jsonval.Value, error) {
	v, ok := obj.Get(key)
	if !ok {
		return jsonval.Value{}, fmt.Errorf("%w: missing field %q", ErrMalformedRequest, key)
	}
	return v, nil
}

func getObjectField(obj *jsonval.Object, key string) (*jsonval.Object, error) {
	v, err := getField(obj, key)
	if err != nil {
		return nil, err
	}
	o, err := v.Object()
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %w", ErrMalformedRequest, key, err)
	}
	return o, nil
}

func getArrayField(obj *jsonval.Object, key string) ([]jsonval.Value, error) {
	v, err := getField(obj, key)
	if err != nil {
		return nil, err
	}
	arr, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %w", ErrMalformedRequest, key, err)
	}
	return arr, nil
}

func getStringField(obj *jsonval.Object, key string) (string, error) {
	v, err := getField(obj, key)
	if err != nil {
		return "", err
	}
	s, err := v.Str()
	if err != nil {
		return "", fmt.Errorf("%w: field %q: %w", ErrMalformedRequest, key, err)
	}
	return s, nil
}

func getRealField(obj *jsonval.Object, key string) (float64, error) {
	v, err := getField(obj, key)
	if err != nil {
		return 0, err
	}
	f, err := v.Real()
	if err != nil {
		return 0, fmt.Errorf("%w: field %q: %w", ErrMalformedRequest, key, err)
	}
	return f, nil
}

func getIntField(obj *jsonval.Object, key string) (int64, error) {
	v, err := getField(obj, key)
	if err != nil {
		return 0, err
	}
	i, err := v.Int()
	if err != nil {
		return 0, fmt.Errorf("%w: field %q: %w", ErrMalformedRequest, key, err)
	}
	return i, nil
}

func getBoolField(obj *jsonval.Object, key string) (bool, error) {
	v, err := getField(obj, key)
	if err != nil {
		return false, err
	}
	b, err := v.Bool()
	if err != nil {
		return false, fmt.Errorf("%w: field %q: %w", ErrMalformedRequest, key, err)
	}
	return b, nil
}

// LoadBaseRequests registers every stop, then every distance row, then
// every bus, matching the insertion-order invariant: a bus or a
// distance row may reference only stops that are already registered.
func LoadBaseRequests(cat *catalogue.Catalogue, root *jsonval.Object) error {
	entries, err := getArrayField(root, "base_requests")
	if err != nil {
		return err
	}

	objects := make([]*jsonval.Object, len(entries))
	for i, e := range entries {
		o, err := e.Object()
		if err != nil {
			return fmt.Errorf("%w: base_requests[%d]: %w", ErrMalformedRequest, i, err)
		}
		objects[i] = o
	}

	for i, o := range objects {
		typ, err := getStringField(o, "type")
		if err != nil {
			return fmt.Errorf("base_requests[%d]: %w", i, err)
		}
		if typ != "Stop" {
			continue
		}
		name, err := getStringField(o, "name")
		if err != nil {
			return fmt.Errorf("base_requests[%d]: %w", i, err)
		}
		lat, err := getRealField(o, "latitude")
		if err != nil {
			return fmt.Errorf("base_requests[%d]: %w", i, err)
		}
		lng, err := getRealField(o, "longitude")
		if err != nil {
			return fmt.Errorf("base_requests[%d]: %w", i, err)
		}
		if _, err := cat.AddStop(name, geo.Coordinates{Lat: lat, Lng: lng}); err != nil {
			return fmt.Errorf("base_requests[%d]: %w", i, err)
		}
	}

	for i, o := range objects {
		typ, _ := getStringField(o, "type")
		if typ != "Stop" {
			continue
		}
		name, _ := getStringField(o, "name")
		distV, ok := o.Get("road_distances")
		if !ok {
			continue
		}
		distances, err := distV.Object()
		if err != nil {
			return fmt.Errorf("%w: base_requests[%d].road_distances: %w", ErrMalformedRequest, i, err)
		}
		for _, other := range distances.Keys() {
			mv, _ := distances.Get(other)
			meters, err := mv.Int()
			if err != nil {
				return fmt.Errorf("%w: base_requests[%d].road_distances[%q]: %w", ErrMalformedRequest, i, other, err)
			}
			if err := cat.AddDistance(name, other, int(meters)); err != nil {
				return fmt.Errorf("base_requests[%d]: %w", i, err)
			}
		}
	}

	for i, o := range objects {
		typ, err := getStringField(o, "type")
		if err != nil {
			return fmt.Errorf("base_requests[%d]: %w", i, err)
		}
		if typ != "Bus" {
			continue
		}
		name, err := getStringField(o, "name")
		if err != nil {
			return fmt.Errorf("base_requests[%d]: %w", i, err)
		}
		stopVals, err := getArrayField(o, "stops")
		if err != nil {
			return fmt.Errorf("base_requests[%d]: %w", i, err)
		}
		stopNames := make([]string, len(stopVals))
		for j, sv := range stopVals {
			s, err := sv.Str()
			if err != nil {
				return fmt.Errorf("%w: base_requests[%d].stops[%d]: %w", ErrMalformedRequest, i, j, err)
			}
			stopNames[j] = s
		}
		isRoundtrip, err := getBoolField(o, "is_roundtrip")
		if err != nil {
			return fmt.Errorf("base_requests[%d]: %w", i, err)
		}
		if _, err := cat.AddBus(name, stopNames, isRoundtrip); err != nil {
			return fmt.Errorf("base_requests[%d]: %w", i, err)
		}
	}

	return nil
}

func parseOffset(obj *jsonval.Object, key string) (svg.Point, error) {
	arr, err := getArrayField(obj, key)
	if err != nil {
		return svg.Point{}, err
	}
	if len(arr) != 2 {
		return svg.Point{}, fmt.Errorf("%w: field %q: expected 2 elements, got %d", ErrMalformedRequest, key, len(arr))
	}
	x, err := arr[0].Real()
	if err != nil {
		return svg.Point{}, fmt.Errorf("%w: field %q[0]: %w", ErrMalformedRequest, key, err)
	}
	y, err := arr[1].Real()
	if err != nil {
		return svg.Point{}, fmt.Errorf("%w: field %q[1]: %w", ErrMalformedRequest, key, err)
	}
	return svg.Point{X: x, Y: y}, nil
}

func parseColor(v jsonval.Value) (svg.Color, error) {
	switch v.Kind() {
	case jsonval.KindString:
		s, _ := v.Str()
		return svg.NamedColor(s), nil
	case jsonval.KindArray:
		arr, _ := v.Array()
		switch len(arr) {
		case 3:
			r, g, b, err := parseRGBTriple(arr)
			if err != nil {
				return svg.Color{}, err
			}
			return svg.RGB(r, g, b), nil
		case 4:
			r, g, b, err := parseRGBTriple(arr[:3])
			if err != nil {
				return svg.Color{}, err
			}
			a, err := arr[3].Real()
			if err != nil {
				return svg.Color{}, fmt.Errorf("%w: color opacity: %w", ErrMalformedRequest, err)
			}
			return svg.RGBA(r, g, b, a), nil
		default:
			return svg.Color{}, fmt.Errorf("%w: color array must have 3 or 4 elements, got %d", ErrMalformedRequest, len(arr))
		}
	default:
		return svg.Color{}, fmt.Errorf("%w: color must be a string or array, got %s", ErrMalformedRequest, v.Kind())
	}
}

func parseRGBTriple(arr []jsonval.Value) (r, g, b uint8, err error) {
	vals := make([]uint8, 3)
	for i, v := range arr {
		n, err := v.Int()
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%w: color component %d: %w", ErrMalformedRequest, i, err)
		}
		vals[i] = uint8(n)
	}
	return vals[0], vals[1], vals[2], nil
}

func parseRenderSettings(root *jsonval.Object) (mapview.Settings, error) {
	obj, err := getObjectField(root, "render_settings")
	if err != nil {
		return mapview.Settings{}, err
	}

	var s mapview.Settings
	if s.Width, err = getRealField(obj, "width"); err != nil {
		return mapview.Settings{}, err
	}
	if s.Height, err = getRealField(obj, "height"); err != nil {
		return mapview.Settings{}, err
	}
	if s.Padding, err = getRealField(obj, "padding"); err != nil {
		return mapview.Settings{}, err
	}
	if s.LineWidth, err = getRealField(obj, "line_width"); err != nil {
		return mapview.Settings{}, err
	}
	if s.StopRadius, err = getRealField(obj, "stop_radius"); err != nil {
		return mapview.Settings{}, err
	}
	busFontSize, err := getIntField(obj, "bus_label_font_size")
	if err != nil {
		return mapview.Settings{}, err
	}
	s.BusLabelFontSize = int(busFontSize)
	if s.BusLabelOffset, err = parseOffset(obj, "bus_label_offset"); err != nil {
		return mapview.Settings{}, err
	}
	stopFontSize, err := getIntField(obj, "stop_label_font_size")
	if err != nil {
		return mapview.Settings{}, err
	}
	s.StopLabelFontSize = int(stopFontSize)
	if s.StopLabelOffset, err = parseOffset(obj, "stop_label_offset"); err != nil {
		return mapview.Settings{}, err
	}
	underlayer, err := getField(obj, "underlayer_color")
	if err != nil {
		return mapview.Settings{}, err
	}
	if s.UnderlayerColor, err = parseColor(underlayer); err != nil {
		return mapview.Settings{}, err
	}
	if s.UnderlayerWidth, err = getRealField(obj, "underlayer_width"); err != nil {
		return mapview.Settings{}, err
	}
	palette, err := getArrayField(obj, "color_palette")
	if err != nil {
		return mapview.Settings{}, err
	}
	s.ColorPalette = make([]svg.Color, len(palette))
	for i, cv := range palette {
		c, err := parseColor(cv)
		if err != nil {
			return mapview.Settings{}, fmt.Errorf("color_palette[%d]: %w", i, err)
		}
		s.ColorPalette[i] = c
	}
	return s, nil
}

func parseRoutingSettings(root *jsonval.Object) (routing.Settings, error) {
	obj, err := getObjectField(root, "routing_settings")
	if err != nil {
		return routing.Settings{}, err
	}
	waitTime, err := getRealField(obj, "bus_wait_time")
	if err != nil {
		return routing.Settings{}, err
	}
	velocity, err := getRealField(obj, "bus_velocity")
	if err != nil {
		return routing.Settings{}, err
	}
	return routing.Settings{BusWaitTimeMinutes: waitTime, BusVelocityKMH: velocity}, nil
}

func (h *Handler) answerStatRequests(root *jsonval.Object) (jsonval.Value, error) {
	requests, err := getArrayField(root, "stat_requests")
	if err != nil {
		return jsonval.Value{}, err
	}

	b := jsonbuilder.New().StartArray()
	for i, req := range requests {
		obj, err := req.Object()
		if err != nil {
			return jsonval.Value{}, fmt.Errorf("%w: stat_requests[%d]: %w", ErrMalformedRequest, i, err)
		}
		reply, err := h.answerOne(obj)
		if err != nil {
			return jsonval.Value{}, fmt.Errorf("stat_requests[%d]: %w", i, err)
		}
		b.Value(reply)
	}
	return b.EndArray().Build()
}

func (h *Handler) answerOne(obj *jsonval.Object) (jsonval.Value, error) {
	id, err := getIntField(obj, "id")
	if err != nil {
		return jsonval.Value{}, err
	}
	typ, err := getStringField(obj, "type")
	if err != nil {
		return jsonval.Value{}, err
	}

	switch typ {
	case "Bus":
		name, err := getStringField(obj, "name")
		if err != nil {
			return jsonval.Value{}, err
		}
		return h.answerBus(id, name)
	case "Stop":
		name, err := getStringField(obj, "name")
		if err != nil {
			return jsonval.Value{}, err
		}
		return h.answerStop(id, name)
	case "Map":
		return h.answerMap(id)
	case "Route":
		from, err := getStringField(obj, "from")
		if err != nil {
			return jsonval.Value{}, err
		}
		to, err := getStringField(obj, "to")
		if err != nil {
			return jsonval.Value{}, err
		}
		return h.answerRoute(id, from, to)
	default:
		return jsonval.Value{}, fmt.Errorf("%w: unknown stat_request type %q", ErrMalformedRequest, typ)
	}
}

func notFoundReply(id int64) (jsonval.Value, error) {
	return jsonbuilder.New().
		StartDict().
		Key("request_id").Value(jsonval.Int(id)).
		Key("error_message").Value(jsonval.String(notFoundMessage)).
		EndDict().
		Build()
}

func (h *Handler) answerBus(id int64, name string) (jsonval.Value, error) {
	info, ok := h.cat.RouteInfo(name)
	if !ok {
		return notFoundReply(id)
	}
	return jsonbuilder.New().
		StartDict().
		Key("request_id").Value(jsonval.Int(id)).
		Key("curvature").Value(jsonval.Real(info.Curvature)).
		Key("route_length").Value(jsonval.Int(int64(info.RouteLength))).
		Key("stop_count").Value(jsonval.Int(int64(info.StopsCount))).
		Key("unique_stop_count").Value(jsonval.Int(int64(info.UniqueStopsCount))).
		EndDict().
		Build()
}

func (h *Handler) answerStop(id int64, name string) (jsonval.Value, error) {
	info, ok := h.cat.StopInfo(name)
	if !ok {
		return notFoundReply(id)
	}
	buses := make([]jsonval.Value, len(info.Buses))
	for i, b := range info.Buses {
		buses[i] = jsonval.String(b)
	}
	return jsonbuilder.New().
		StartDict().
		Key("request_id").Value(jsonval.Int(id)).
		Key("buses").Value(jsonval.Array(buses)).
		EndDict().
		Build()
}

func (h *Handler) answerMap(id int64) (jsonval.Value, error) {
	doc := h.renderer.Render(h.cat)
	return jsonbuilder.New().
		StartDict().
		Key("request_id").Value(jsonval.Int(id)).
		Key("map").Value(jsonval.String(doc.RenderString())).
		EndDict().
		Build()
}

func (h *Handler) answerRoute(id int64, from, to string) (jsonval.Value, error) {
	result, err := h.router.GetRouteInfo(from, to)
	if err != nil {
		if errors.Is(err, routing.ErrUnknownStop) || errors.Is(err, routing.ErrNoRoute) {
			return notFoundReply(id)
		}
		return jsonval.Value{}, err
	}

	items := make([]jsonval.Value, len(result.Items))
	for i, item := range result.Items {
		items[i] = routeItemToValue(item)
	}
	return jsonbuilder.New().
		StartDict().
		Key("request_id").Value(jsonval.Int(id)).
		Key("total_time").Value(jsonval.Real(result.TotalTime)).
		Key("items").Value(jsonval.Array(items)).
		EndDict().
		Build()
}

func routeItemToValue(item routing.Item) jsonval.Value {
	b := jsonbuilder.New().StartDict()
	if item.Kind == routing.ItemWait {
		b.Key("type").Value(jsonval.String("Wait")).
			Key("stop_name").Value(jsonval.String(item.StopName)).
			Key("time").Value(jsonval.Real(item.Time))
	} else {
		b.Key("type").Value(jsonval.String("Bus")).
			Key("bus").Value(jsonval.String(item.BusName)).
			Key("span_count").Value(jsonval.Int(int64(item.SpanCount))).
			Key("time").Value(jsonval.Real(item.Time))
	}
	v, _ := b.EndDict().Build()
	return v
}
