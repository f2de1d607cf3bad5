package ports

import (
	"context"
	"image"

	"github.com/paulmach/orb/maptile"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
)

// TileSource fetches the encoded image of one slippy tile. Calls block on
// the network; retries are the implementation's business.
type TileSource interface {
	FetchTile(ctx context.Context, tile maptile.Tile) ([]byte, error)
}

// ImageDecoder decodes tile bytes into pixels.
type ImageDecoder interface {
	Decode(data []byte) (image.Image, error)
}

// TileCompositor produces one canvas covering the viewport around center.
type TileCompositor interface {
	RequestTiles(ctx context.Context, center domain.Coordinate, zoom domain.Zoom) (*image.RGBA, error)
}

// PositionPublisher publishes GPS fixes to a message broker.
type PositionPublisher interface {
	PublishPosition(ctx context.Context, fix *domain.PositionFix) error
}

// PositionSubscriber delivers GPS fixes from a message broker.
type PositionSubscriber interface {
	SubscribePositions(ctx context.Context, handler func(ctx context.Context, fix *domain.PositionFix) error) error
	Close()
}
