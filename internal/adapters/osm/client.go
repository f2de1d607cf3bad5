// Package osm fetches slippy map tiles from an OSM-style tile server
// (osmscout-server, tileserver-gl and friends) over HTTP.
package osm

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/valyala/fasthttp"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "vehiclenav/1.0 (+https://github.com/samirrijal/vehiclenav)"
)

// Client implements ports.TileSource. Configure it with the setters before
// sharing it between goroutines.
type Client struct {
	http      *fasthttp.Client
	base      string
	query     url.Values
	timeout   time.Duration
	userAgent string

	scale    domain.Scale
	daylight *domain.Daylight
}

// NewClient validates serverURL and returns a client for it. Tiles are
// requested as <serverURL>/<z>/<x>/<y>.png; a query string on serverURL is
// kept and sent with every tile.
func NewClient(serverURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, domain.NewError(domain.KindConfig, "parse tile server url", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.NewError(domain.KindConfig, fmt.Sprintf("tile server url %q must be absolute http(s)", serverURL), nil)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	// Query and fragment are split off so the tile path joins onto the path.
	query := u.Query()
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	base := u.String()
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	slog.Debug("created tile client", "url", base, "timeout", timeout)
	return &Client{
		http: &fasthttp.Client{
			Name:                     DefaultUserAgent,
			MaxConnsPerHost:          32,
			ReadTimeout:              timeout,
			WriteTimeout:             timeout,
			NoDefaultUserAgentHeader: true,
		},
		base:      base,
		query:     query,
		timeout:   timeout,
		userAgent: DefaultUserAgent,
	}, nil
}

// SetScale adds scale=<n> to every request.
func (c *Client) SetScale(s domain.Scale) { c.scale = s }

// SetDaylight adds daylight=<0|1> to every request.
func (c *Client) SetDaylight(d domain.Daylight) { c.daylight = &d }

func (c *Client) SetUserAgent(ua string) { c.userAgent = ua }

// TileURL returns the request URL for tile. Zoom is clamped to the range
// tile servers accept.
func (c *Client) TileURL(tile maptile.Tile) string {
	z := domain.NewZoom(int(tile.Z))
	var b strings.Builder
	fmt.Fprintf(&b, "%s%d/%d/%d.png", c.base, z, tile.X, tile.Y)

	q := url.Values{}
	for k, v := range c.query {
		q[k] = append([]string(nil), v...)
	}
	if c.scale != 0 {
		q.Set("scale", c.scale.QueryValue())
	}
	if c.daylight != nil {
		q.Set("daylight", c.daylight.QueryValue())
	}
	if len(q) > 0 {
		b.WriteByte('?')
		b.WriteString(q.Encode())
	}
	return b.String()
}

// FetchTile downloads one tile. Non-2xx responses are transport errors.
func (c *Client) FetchTile(ctx context.Context, tile maptile.Tile) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := c.TileURL(tile)
	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderUserAgent, c.userAgent)
	req.Header.Set(fasthttp.HeaderAccept, "image/png,image/webp,image/jpeg,*/*")

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	slog.Debug("sending tile request", "url", uri)
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, domain.NewError(domain.KindTransport, fmt.Sprintf("get %s", uri), err)
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return nil, domain.NewError(domain.KindTransport, fmt.Sprintf("get %s: status %d", uri, status), nil)
	}

	body := append([]byte(nil), resp.Body()...)
	slog.Debug("received tile response", "url", uri, "status", status, "bytes", len(body))
	return body, nil
}
