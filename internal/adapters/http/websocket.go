package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
	"github.com/samirrijal/vehiclenav/internal/core/usecases"
	"github.com/samirrijal/vehiclenav/internal/pkg/metrics"
)

const (
	wsPollInterval = 100 * time.Millisecond
	wsPingInterval = 30 * time.Second
)

// wsMessage is a control message from the client.
//
//	{"action":"pan","direction":"north"}
//	{"action":"zoom","direction":"in"}
//	{"action":"set_view","lat":47.45,"lon":-116.79,"zoom":11}
type wsMessage struct {
	Action    string   `json:"action"`
	Direction string   `json:"direction"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Zoom      *int     `json:"zoom"`
}

// wsEvent is pushed to the client whenever the view or route changes.
type wsEvent struct {
	Type  string         `json:"type"` // view | route | error
	View  *usecases.View `json:"view,omitempty"`
	Route *RouteFrame    `json:"route,omitempty"`
	Error string         `json:"error,omitempty"`
}

// WebSocketHandler streams view and route frame changes to the client and
// accepts pan/zoom controls.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		log := slog.Default().With("remote", c.RemoteAddr().String())
		log.Info("ws client connected")

		var mu sync.Mutex
		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		done := make(chan struct{})
		go streamFrames(deps.Driver, writeJSON, done)
		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(wsEvent{Type: "error", Error: "invalid JSON"})
				continue
			}
			if err := applyControl(deps.Driver, m); err != nil {
				_ = writeJSON(wsEvent{Type: "error", Error: err.Error()})
			}
		}

		close(done)
		log.Info("ws client disconnected")
	}
}

// streamFrames polls the driver and writes every new view and route frame.
func streamFrames(d *usecases.Driver, write func(any) error, done <-chan struct{}) {
	ticker := time.NewTicker(wsPollInterval)
	defer ticker.Stop()

	var (
		lastView usecases.View
		lastSeq  uint64
		sent     bool
	)
	for {
		if v := d.View(); !sent || v != lastView {
			if err := write(wsEvent{Type: "view", View: &v}); err != nil {
				return
			}
			lastView, sent = v, true
		}
		if frame, seq, ok := d.RouteFrame(); ok && seq != lastSeq {
			if err := write(wsEvent{Type: "route", Route: &RouteFrame{RouteResponse: frame, Seq: seq}}); err != nil {
				return
			}
			lastSeq = seq
		}

		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

func applyControl(d *usecases.Driver, m wsMessage) error {
	switch m.Action {
	case "pan":
		dir, err := usecases.ParseDirection(m.Direction)
		if err != nil {
			return err
		}
		d.Pan(dir)
	case "zoom":
		switch m.Direction {
		case "in", "+":
			d.ZoomIn()
		case "out", "-":
			d.ZoomOut()
		default:
			return errors.New("zoom direction must be in or out")
		}
	case "set_view":
		if m.Lat == nil || m.Lon == nil {
			return errors.New("lat and lon are required")
		}
		center, err := parseCoordinate(*m.Lat, *m.Lon)
		if err != nil {
			return err
		}
		v := d.View()
		v.Center = center
		if m.Zoom != nil {
			v.Zoom = domain.NewZoom(*m.Zoom)
		}
		d.SetView(v)
	default:
		return fmt.Errorf("unknown action %q", m.Action)
	}
	return nil
}
