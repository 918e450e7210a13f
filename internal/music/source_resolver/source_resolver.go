package source_resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/keshon/lapis-music/internal/music/sources"
	"github.com/keshon/lapis-music/internal/music/sources/radio"
	"github.com/keshon/lapis-music/internal/music/sources/search"
	"github.com/keshon/lapis-music/internal/music/sources/youtube"
	"github.com/keshon/lapis-music/internal/music/sources/ytdlp"
	"github.com/keshon/lapis-music/internal/music/track"
)

const DefaultTimeout = 30 * time.Second

var ErrNoSource = errors.New("no matching source found")

// ResolutionError wraps any failure to turn a query into a track.
type ResolutionError struct {
	Query string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve %q: %v", e.Query, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// SourceResolver picks the first matching source, in order, for a query.
type SourceResolver struct {
	sources []sources.Source
	timeout time.Duration
	log     *zap.Logger
}

// New wires the default chain: YouTube links, direct streams, any other link
// through yt-dlp, and free text through search.
func New(proxy string, timeout time.Duration, log *zap.Logger) *SourceResolver {
	if log == nil {
		log = zap.NewNop()
	}
	yt := youtube.New(proxy, log)
	dl := ytdlp.New(proxy, log)
	return NewWithSources(timeout, log,
		yt,
		radio.New(log),
		dl,
		search.New(search.YouTubeFinder{}, yt, dl, log),
	)
}

func NewWithSources(timeout time.Duration, log *zap.Logger, srcs ...sources.Source) *SourceResolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SourceResolver{sources: srcs, timeout: timeout, log: log.Named("resolver")}
}

// Resolve turns a link or free text into a track requested by requester.
func (r *SourceResolver) Resolve(ctx context.Context, query string, requester track.Requester) (*track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ResolutionError{Query: query, Err: errors.New("empty query")}
	}

	src := r.match(query)
	if src == nil {
		return nil, &ResolutionError{Query: query, Err: ErrNoSource}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	info, err := src.Resolve(ctx, query)
	if err != nil {
		r.log.Warn("Failed to resolve", zap.String("query", query), zap.String("source", src.SourceName()), zap.Error(err))
		return nil, &ResolutionError{Query: query, Err: err}
	}
	if info.StreamLocator == "" {
		return nil, &ResolutionError{Query: query, Err: sources.ErrNoStreamURL}
	}
	if info.SourceName == "" {
		info.SourceName = src.SourceName()
	}

	r.log.Info("Resolved",
		zap.String("query", query),
		zap.String("source", info.SourceName),
		zap.String("title", info.Title),
		zap.Duration("took", time.Since(start)),
	)
	return track.New(info, requester), nil
}

func (r *SourceResolver) match(query string) sources.Source {
	for _, s := range r.sources {
		if s.Match(query) {
			return s
		}
	}
	return nil
}
