package sources

import (
	"context"

	"github.com/keshon/lapis-music/internal/music/track"
)

type Source interface {
	// Match reports whether this source handles the query. It must not do I/O.
	Match(query string) bool

	// Resolve turns the query into playable track metadata.
	Resolve(ctx context.Context, query string) (track.Info, error)

	// SourceName returns the string identifier ("youtube", "radio", etc.)
	SourceName() string
}
