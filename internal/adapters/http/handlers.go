package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
	"github.com/samirrijal/vehiclenav/internal/core/render"
	"github.com/samirrijal/vehiclenav/internal/core/usecases"
)

// viewBody is the PUT /v1/view payload. Zoom keeps the current level when
// omitted.
type viewBody struct {
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
	Zoom *int     `json:"zoom"`
}

// pointBody is one route coordinate.
type pointBody struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RouteFrame is a projected route plus its driver sequence number.
type RouteFrame struct {
	usecases.RouteResponse
	Seq uint64 `json:"seq"`
}

// parseCoordinate rejects values outside the WGS 84 ranges instead of
// clamping them, so that a typo does not silently move the map.
func parseCoordinate(lat, lon float64) (domain.Coordinate, error) {
	if math.IsNaN(lat) || lat < float64(domain.MinLatitude) || lat > float64(domain.MaxLatitude) {
		return domain.Coordinate{}, fmt.Errorf("lat %v out of range [-90, 90]", lat)
	}
	if math.IsNaN(lon) || lon < float64(domain.MinLongitude) || lon > float64(domain.MaxLongitude) {
		return domain.Coordinate{}, fmt.Errorf("lon %v out of range [-180, 180]", lon)
	}
	return domain.NewCoordinate(lat, lon), nil
}

// serviceError maps a driver error to a response.
func serviceError(c *fiber.Ctx, err error) error {
	if domain.IsDisconnected(err) {
		return errUnavailable(c, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errUnavailable(c, "timed out waiting for the route service")
	}
	return errInternal(c, err.Error())
}

// GetViewHandler returns the current center and zoom.
func GetViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Driver.View())
	}
}

// PutViewHandler moves the view to an absolute center and zoom.
func PutViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body viewBody
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if body.Lat == nil || body.Lon == nil {
			return errBadRequest(c, "lat and lon are required")
		}
		center, err := parseCoordinate(*body.Lat, *body.Lon)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		v := deps.Driver.View()
		v.Center = center
		if body.Zoom != nil {
			v.Zoom = domain.NewZoom(*body.Zoom)
		}
		deps.Driver.SetView(v)
		return c.JSON(deps.Driver.View())
	}
}

// PanHandler moves the view one step in the :dir direction.
func PanHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dir, err := usecases.ParseDirection(c.Params("dir"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		deps.Driver.Pan(dir)
		return c.JSON(deps.Driver.View())
	}
}

// ZoomHandler zooms in or out by one level.
func ZoomHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Params("dir") {
		case "in", "+":
			deps.Driver.ZoomIn()
		case "out", "-":
			deps.Driver.ZoomOut()
		default:
			return errBadRequest(c, "zoom direction must be in or out")
		}
		return c.JSON(deps.Driver.View())
	}
}

// MapImageHandler serves the latest composited canvas as PNG. The headers
// carry the view the canvas was made for, which may lag the current view.
func MapImageHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp, ok := deps.Driver.Canvas()
		if !ok {
			return errUnavailable(c, "no map canvas yet")
		}
		var buf bytes.Buffer
		if err := render.EncodePNG(&buf, resp.Canvas); err != nil {
			return errInternal(c, err.Error())
		}
		setViewHeaders(c, resp.Center, resp.Zoom)
		c.Type("png")
		return c.Send(buf.Bytes())
	}
}

// FrameImageHandler renders the map, the route and the vehicle marker into
// one PNG the size of the viewport.
func FrameImageHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var layers []render.Drawer
		if resp, ok := deps.Driver.Canvas(); ok {
			layers = append(layers, render.MapLayer{Canvas: resp.Canvas})
		}
		if frame, _, ok := deps.Driver.RouteFrame(); ok {
			layers = append(layers, render.RouteLayer{Points: frame.Points})
		}
		if fix, ok := deps.Driver.Position(); ok {
			layers = append(layers, render.MarkerLayer{
				Point:   deps.Driver.Project(fix.Coordinate),
				Heading: fix.Heading,
			})
		}

		img := render.Frame(deps.Driver.Viewport(), layers...)
		var buf bytes.Buffer
		if err := render.EncodePNG(&buf, img); err != nil {
			return errInternal(c, err.Error())
		}
		v := deps.Driver.View()
		setViewHeaders(c, v.Center, v.Zoom)
		c.Type("png")
		return c.Send(buf.Bytes())
	}
}

func setViewHeaders(c *fiber.Ctx, center domain.Coordinate, zoom domain.Zoom) {
	c.Set("X-Map-Center", center.String())
	c.Set("X-Map-Zoom", strconv.Itoa(zoom.Get()))
}

// GetRouteHandler returns the latest projected route frame.
func GetRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		frame, seq, ok := deps.Driver.RouteFrame()
		if !ok {
			return errUnavailable(c, "no route frame yet")
		}
		if frame.Points == nil {
			frame.Points = []domain.PixelPoint{}
		}
		return c.JSON(RouteFrame{RouteResponse: frame, Seq: seq})
	}
}

// AddRoutePointsHandler appends one coordinate or an array of coordinates
// to the route, in order.
func AddRoutePointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		points, err := parsePoints(c.Body())
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		coords := make([]domain.Coordinate, len(points))
		for i, p := range points {
			coord, err := parseCoordinate(p.Lat, p.Lon)
			if err != nil {
				return errBadRequest(c, fmt.Sprintf("point %d: %v", i, err))
			}
			coords[i] = coord
		}

		for i, coord := range coords {
			if err := deps.Driver.PushCoordinate(c.UserContext(), coord); err != nil {
				LoggerFromCtx(c.UserContext()).Warn("route push failed", "accepted", i, "error", err)
				return serviceError(c, err)
			}
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": len(coords)})
	}
}

func parsePoints(body []byte) ([]pointBody, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	if body[0] == '[' {
		var pts []pointBody
		if err := json.Unmarshal(body, &pts); err != nil {
			return nil, errors.New("invalid point list")
		}
		if len(pts) == 0 {
			return nil, errors.New("empty point list")
		}
		return pts, nil
	}
	var p pointBody
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, errors.New("invalid point")
	}
	return []pointBody{p}, nil
}

// PositionHandler returns the last GPS fix.
func PositionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fix, ok := deps.Driver.Position()
		if !ok {
			return errNotFound(c, "no position received")
		}
		return c.JSON(fix)
	}
}

// ServicesHandler reports the state of both background services.
func ServicesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"data": deps.Driver.Services()})
	}
}
