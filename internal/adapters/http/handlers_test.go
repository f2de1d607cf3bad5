package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/vehiclenav/internal/adapters/http"
	"github.com/samirrijal/vehiclenav/internal/core/domain"
	"github.com/samirrijal/vehiclenav/internal/core/usecases"
)

// ---- Mocks ----

type mockCompositor struct {
	requestTilesFn func(ctx context.Context, center domain.Coordinate, zoom domain.Zoom) (*image.RGBA, error)
}

func (m *mockCompositor) RequestTiles(ctx context.Context, center domain.Coordinate, zoom domain.Zoom) (*image.RGBA, error) {
	return m.requestTilesFn(ctx, center, zoom)
}

type mockConn struct{ connected bool }

func (m mockConn) IsConnected() bool { return m.connected }

// ---- Helpers ----

const (
	testWidth  = 64
	testHeight = 48
)

var testCenter = domain.NewCoordinate(47.453551, -116.788118)

func solidCompositor() *mockCompositor {
	return &mockCompositor{requestTilesFn: func(context.Context, domain.Coordinate, domain.Zoom) (*image.RGBA, error) {
		img := image.NewRGBA(image.Rect(0, 0, testWidth, testHeight))
		for y := 0; y < testHeight; y++ {
			for x := 0; x < testWidth; x++ {
				img.SetRGBA(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
			}
		}
		return img, nil
	}}
}

func newDriver(t *testing.T, comp *mockCompositor) *usecases.Driver {
	t.Helper()
	ctx := context.Background()
	tiles, tilesH := usecases.StartMapTileService(ctx, comp, usecases.MapTileOptions{})
	route, routeH := usecases.StartRouteTransformService(ctx, usecases.RouteOptions{
		Width: testWidth, Height: testHeight, Scale: domain.ScaleOne,
	})
	vp, err := usecases.NewDisplay("test", testWidth, testHeight).Claim()
	if err != nil {
		t.Fatal(err)
	}
	d := usecases.NewDriver(vp, tiles, tilesH, route, routeH, usecases.DriverOptions{
		View: usecases.View{Center: testCenter, Zoom: domain.NewZoom(11)},
	})
	t.Cleanup(func() { _ = d.Shutdown() })
	return d
}

// tickUntil drives the loop by hand until cond holds.
func tickUntil(t *testing.T, d *usecases.Driver, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		_ = d.Tick()
		time.Sleep(time.Millisecond)
	}
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(t *testing.T, opts ...func(*handler.Dependencies)) *handler.Dependencies {
	d := &handler.Dependencies{Driver: newDriver(t, solidCompositor())}
	for _, o := range opts {
		o(d)
	}
	return d
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, data)
		}
	}
	return resp.StatusCode, out
}

func viewOf(t *testing.T, body map[string]any) (lat, lon float64, zoom int) {
	t.Helper()
	center, ok := body["center"].(map[string]any)
	if !ok {
		t.Fatalf("no center in %v", body)
	}
	return center["lat"].(float64), center["lon"].(float64), int(body["zoom"].(float64))
}

// ---- Health ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body := doJSON(t, app, "GET", "/v1/health", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}
	if body["version"] != "dev" {
		t.Errorf("version = %v, want dev", body["version"])
	}
}

func TestReady_ServicesRunning(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body := doJSON(t, app, "GET", "/v1/ready", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	checks := body["checks"].(map[string]any)
	if checks[usecases.MapTileWorkerName] != "ok" || checks[usecases.RouteWorkerName] != "ok" {
		t.Errorf("service checks = %v", checks)
	}
	if checks["nats"] != "not configured" {
		t.Errorf("nats check = %v", checks["nats"])
	}
}

func TestReady_NATSDisconnected(t *testing.T) {
	app := setupApp(makeDeps(t, func(d *handler.Dependencies) {
		d.NATS = mockConn{connected: false}
	}))

	status, body := doJSON(t, app, "GET", "/v1/ready", "")
	if status != 503 {
		t.Fatalf("expected 503, got %d", status)
	}
	if body["checks"].(map[string]any)["nats"] != "disconnected" {
		t.Errorf("checks = %v", body["checks"])
	}
}

func TestReady_StoppedService(t *testing.T) {
	comp := &mockCompositor{requestTilesFn: func(context.Context, domain.Coordinate, domain.Zoom) (*image.RGBA, error) {
		return nil, errors.New("tile server down")
	}}
	d := newDriver(t, comp)
	app := setupApp(&handler.Dependencies{Driver: d})

	tickUntil(t, d, func() bool {
		for _, s := range d.Services() {
			if s.Name == usecases.MapTileWorkerName && !s.Running {
				return true
			}
		}
		return false
	})

	status, body := doJSON(t, app, "GET", "/v1/ready", "")
	if status != 503 {
		t.Fatalf("expected 503, got %d", status)
	}
	check, _ := body["checks"].(map[string]any)[usecases.MapTileWorkerName].(string)
	if !strings.HasPrefix(check, "stopped") || !strings.Contains(check, "tile server down") {
		t.Errorf("map tile check = %q", check)
	}
}

// ---- View ----

func TestGetView(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body := doJSON(t, app, "GET", "/v1/view", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	lat, lon, zoom := viewOf(t, body)
	if lat != testCenter.Latitude.Get() || lon != testCenter.Longitude.Get() || zoom != 11 {
		t.Errorf("view = %v,%v z%d", lat, lon, zoom)
	}
}

func TestPutView(t *testing.T) {
	deps := makeDeps(t)
	app := setupApp(deps)

	status, body := doJSON(t, app, "PUT", "/v1/view", `{"lat":43.26,"lon":-2.93,"zoom":25}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	lat, lon, zoom := viewOf(t, body)
	if lat != 43.26 || lon != -2.93 {
		t.Errorf("center = %v,%v", lat, lon)
	}
	if zoom != 18 {
		t.Errorf("zoom = %d, want clamped 18", zoom)
	}
	if deps.Driver.View().Zoom != domain.MaxZoom {
		t.Errorf("driver zoom = %d", deps.Driver.View().Zoom)
	}
}

func TestPutView_PoleClampsToMercatorLimit(t *testing.T) {
	deps := makeDeps(t)
	app := setupApp(deps)

	status, body := doJSON(t, app, "PUT", "/v1/view", `{"lat":90,"lon":0}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	if lat, _, _ := viewOf(t, body); lat != domain.MaxMercatorLatitude {
		t.Errorf("lat = %v, want %v", lat, domain.MaxMercatorLatitude)
	}

	status, _ = doJSON(t, app, "POST", "/v1/route/points", `{"lat":90,"lon":0}`)
	if status != 202 {
		t.Fatalf("route point: expected 202, got %d", status)
	}
	tickUntil(t, deps.Driver, func() bool {
		frame, _, ok := deps.Driver.RouteFrame()
		return ok && len(frame.Points) == 1 && frame.Center == deps.Driver.View().Center
	})
	frame, _, _ := deps.Driver.RouteFrame()
	if p := frame.Points[0]; p.X != testWidth/2 || p.Y != testHeight/2 {
		t.Errorf("polar point = %+v, want viewport center", p)
	}
}

func TestPutView_KeepsZoomWhenOmitted(t *testing.T) {
	app := setupApp(makeDeps(t))

	_, body := doJSON(t, app, "PUT", "/v1/view", `{"lat":1,"lon":2}`)
	if _, _, zoom := viewOf(t, body); zoom != 11 {
		t.Errorf("zoom = %d, want 11", zoom)
	}
}

func TestPutView_Invalid(t *testing.T) {
	app := setupApp(makeDeps(t))

	tests := []struct {
		name string
		body string
	}{
		{"lat out of range", `{"lat":91,"lon":0}`},
		{"lon out of range", `{"lat":0,"lon":-181}`},
		{"missing lon", `{"lat":0}`},
		{"bad json", `{"lat":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, app, "PUT", "/v1/view", tt.body)
			if status != 400 {
				t.Fatalf("expected 400, got %d", status)
			}
			if body["code"] != "bad_request" {
				t.Errorf("code = %v", body["code"])
			}
		})
	}
}

func TestPan(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body := doJSON(t, app, "POST", "/v1/view/pan/north", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	lat, lon, _ := viewOf(t, body)
	if lat <= testCenter.Latitude.Get() {
		t.Errorf("lat %v did not move north of %v", lat, testCenter.Latitude)
	}
	if lon != testCenter.Longitude.Get() {
		t.Errorf("lon moved to %v", lon)
	}

	_, body = doJSON(t, app, "POST", "/v1/view/pan/west", "")
	if _, lon, _ := viewOf(t, body); lon >= testCenter.Longitude.Get() {
		t.Errorf("lon %v did not move west", lon)
	}
}

func TestPan_BadDirection(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, _ := doJSON(t, app, "POST", "/v1/view/pan/sideways", "")
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestZoom(t *testing.T) {
	app := setupApp(makeDeps(t))

	_, body := doJSON(t, app, "POST", "/v1/view/zoom/in", "")
	if _, _, zoom := viewOf(t, body); zoom != 12 {
		t.Errorf("zoom in = %d, want 12", zoom)
	}
	doJSON(t, app, "POST", "/v1/view/zoom/out", "")
	_, body = doJSON(t, app, "POST", "/v1/view/zoom/out", "")
	if _, _, zoom := viewOf(t, body); zoom != 10 {
		t.Errorf("zoom out = %d, want 10", zoom)
	}

	status, _ := doJSON(t, app, "POST", "/v1/view/zoom/sideways", "")
	if status != 400 {
		t.Errorf("expected 400 for bad zoom direction, got %d", status)
	}
}

// ---- Images ----

func TestMapImage_NotReady(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body := doJSON(t, app, "GET", "/v1/map.png", "")
	if status != 503 {
		t.Fatalf("expected 503, got %d", status)
	}
	if body["code"] != "unavailable" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestMapImage(t *testing.T) {
	deps := makeDeps(t)
	app := setupApp(deps)
	tickUntil(t, deps.Driver, func() bool { _, ok := deps.Driver.Canvas(); return ok })

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/map.png", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if z := resp.Header.Get("X-Map-Zoom"); z != "11" {
		t.Errorf("X-Map-Zoom = %q", z)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != testWidth || img.Bounds().Dy() != testHeight {
		t.Errorf("image bounds = %v", img.Bounds())
	}
	r, g, b, _ := img.At(5, 5).RGBA()
	if r>>8 != 10 || g>>8 != 20 || b>>8 != 30 {
		t.Errorf("pixel = %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestMapImage_ETagNotModified(t *testing.T) {
	deps := makeDeps(t)
	app := setupApp(deps)
	tickUntil(t, deps.Driver, func() bool { _, ok := deps.Driver.Canvas(); return ok })

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/map.png", nil), -1)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}

	req := httptest.NewRequest("GET", "/v1/map.png", nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

func TestFrameImage(t *testing.T) {
	deps := makeDeps(t)
	app := setupApp(deps)

	// Renders the background alone before anything arrived.
	resp, err := app.Test(httptest.NewRequest("GET", "/v1/frame.png", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	img, err := png.Decode(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, testWidth, testHeight) {
		t.Errorf("frame bounds = %v", img.Bounds())
	}

	fix := &domain.PositionFix{VehicleID: "bus-1", Coordinate: testCenter, Heading: 90}
	if err := deps.Driver.HandlePosition(context.Background(), fix); err != nil {
		t.Fatal(err)
	}
	tickUntil(t, deps.Driver, func() bool {
		_, ok := deps.Driver.Canvas()
		frame, _, fok := deps.Driver.RouteFrame()
		return ok && fok && len(frame.Points) == 1
	})

	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/frame.png", nil), -1)
	img, err = png.Decode(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	// The corner shows the map; the center is covered by the marker.
	r, g, b, _ := img.At(1, 1).RGBA()
	if r>>8 != 10 || g>>8 != 20 || b>>8 != 30 {
		t.Errorf("corner pixel = %d,%d,%d, want map color", r>>8, g>>8, b>>8)
	}
	cr, cg, cb, _ := img.At(testWidth/2, testHeight/2).RGBA()
	if cr>>8 == 10 && cg>>8 == 20 && cb>>8 == 30 {
		t.Error("center pixel shows bare map, expected marker")
	}
}

// ---- Route ----

func TestRoute_NotReady(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, _ := doJSON(t, app, "GET", "/v1/route", "")
	if status != 503 {
		t.Fatalf("expected 503, got %d", status)
	}
}

func TestRoutePoints(t *testing.T) {
	deps := makeDeps(t)
	app := setupApp(deps)

	status, body := doJSON(t, app, "POST", "/v1/route/points",
		`[{"lat":47.453551,"lon":-116.788118},{"lat":47.46,"lon":-116.78}]`)
	if status != 202 {
		t.Fatalf("expected 202, got %d (%v)", status, body)
	}
	if body["accepted"] != float64(2) {
		t.Errorf("accepted = %v", body["accepted"])
	}

	status, _ = doJSON(t, app, "POST", "/v1/route/points", `{"lat":47.47,"lon":-116.77}`)
	if status != 202 {
		t.Fatalf("single point: expected 202, got %d", status)
	}

	tickUntil(t, deps.Driver, func() bool {
		frame, _, ok := deps.Driver.RouteFrame()
		return ok && len(frame.Points) == 3
	})

	status, body = doJSON(t, app, "GET", "/v1/route", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	points := body["points"].([]any)
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}
	first := points[0].(map[string]any)
	if first["x"] != float64(testWidth/2) || first["y"] != float64(testHeight/2) {
		t.Errorf("first point = %v, want viewport center", first)
	}
	if body["seq"].(float64) < 1 {
		t.Errorf("seq = %v", body["seq"])
	}
	if body["length_meters"].(float64) <= 0 {
		t.Errorf("length_meters = %v", body["length_meters"])
	}
}

func TestRoutePoints_Invalid(t *testing.T) {
	app := setupApp(makeDeps(t))

	for _, body := range []string{
		`[]`,
		`{"lat":100,"lon":0}`,
		`[{"lat":0,"lon":0},{"lat":0,"lon":200}]`,
		`not json`,
		``,
	} {
		status, _ := doJSON(t, app, "POST", "/v1/route/points", body)
		if status != 400 {
			t.Errorf("body %q: expected 400, got %d", body, status)
		}
	}
}

// ---- Position ----

func TestPosition(t *testing.T) {
	deps := makeDeps(t)
	app := setupApp(deps)

	status, _ := doJSON(t, app, "GET", "/v1/position", "")
	if status != 404 {
		t.Fatalf("expected 404 before any fix, got %d", status)
	}

	fix := &domain.PositionFix{VehicleID: "bus-7", Coordinate: domain.NewCoordinate(1, 2), Speed: 3}
	if err := deps.Driver.HandlePosition(context.Background(), fix); err != nil {
		t.Fatal(err)
	}
	status, body := doJSON(t, app, "GET", "/v1/position", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["vehicle_id"] != "bus-7" {
		t.Errorf("vehicle_id = %v", body["vehicle_id"])
	}
}

func TestServices(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body := doJSON(t, app, "GET", "/v1/services", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if n := len(body["data"].([]any)); n != 2 {
		t.Errorf("got %d services, want 2", n)
	}
}

// ---- GraphQL ----

func graphQL(t *testing.T, app *fiber.App, query string) map[string]any {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"query": query})
	req := httptest.NewRequest("POST", "/graphql", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestGraphQL_View(t *testing.T) {
	app := setupApp(makeDeps(t))

	out := graphQL(t, app, `{ view { center { lat lon } zoom } route { seq } }`)
	if out["errors"] != nil {
		t.Fatalf("errors: %v", out["errors"])
	}
	data := out["data"].(map[string]any)
	lat, _, zoom := viewOf(t, data["view"].(map[string]any))
	if lat != testCenter.Latitude.Get() || zoom != 11 {
		t.Errorf("view = %v z%d", lat, zoom)
	}
	if data["route"] != nil {
		t.Errorf("route = %v, want null before the first frame", data["route"])
	}
}

func TestGraphQL_Mutations(t *testing.T) {
	deps := makeDeps(t)
	app := setupApp(deps)

	out := graphQL(t, app, `mutation { zoomIn { zoom } }`)
	zoom := out["data"].(map[string]any)["zoomIn"].(map[string]any)["zoom"]
	if zoom != float64(12) {
		t.Errorf("zoomIn = %v, want 12", zoom)
	}

	out = graphQL(t, app, `mutation { setView(lat: 10, lon: 20, zoom: 3) { center { lat lon } zoom } }`)
	if out["errors"] != nil {
		t.Fatalf("errors: %v", out["errors"])
	}
	if v := deps.Driver.View(); v.Center != domain.NewCoordinate(10, 20) || v.Zoom != 3 {
		t.Errorf("driver view = %+v", v)
	}

	out = graphQL(t, app, `mutation { pan(direction: "sideways") { zoom } }`)
	if out["errors"] == nil {
		t.Error("expected an error for an unknown direction")
	}

	out = graphQL(t, app, `mutation { addRoutePoint(lat: 10, lon: 20) }`)
	if out["data"].(map[string]any)["addRoutePoint"] != true {
		t.Errorf("addRoutePoint = %v", out)
	}
}

// ---- Misc ----

func TestMetricsEndpoint(t *testing.T) {
	app := setupApp(makeDeps(t))
	doJSON(t, app, "GET", "/v1/health", "")

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "vehiclenav_http_requests_total") {
		t.Error("metrics output missing request counter")
	}
}

func TestCachingAndSecurityHeaders(t *testing.T) {
	app := setupApp(makeDeps(t))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/view", nil), -1)
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("view Cache-Control = %q", cc)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("missing request id")
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/health", nil), -1)
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=10" {
		t.Errorf("health Cache-Control = %q", cc)
	}
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	app := setupApp(makeDeps(t))

	resp, _ := app.Test(httptest.NewRequest("GET", "/ws", nil), -1)
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("expected 426, got %d", resp.StatusCode)
	}
}

func TestDocs(t *testing.T) {
	app := setupApp(makeDeps(t))

	resp, _ := app.Test(httptest.NewRequest("GET", "/docs", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("content type = %q", resp.Header.Get("Content-Type"))
	}
}
