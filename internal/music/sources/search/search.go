package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ppalone/ytsearch"
	"go.uber.org/zap"

	"github.com/keshon/lapis-music/internal/music/sources"
	"github.com/keshon/lapis-music/internal/music/track"
)

const SourceSearch = sources.SourceSearch

// Finder maps free text to a video link.
type Finder interface {
	FirstVideoURL(ctx context.Context, query string) (string, error)
}

// Fallback resolves free text on its own, used when the finder path fails.
type Fallback interface {
	Search(ctx context.Context, query string) (track.Info, error)
}

// SearchSource resolves free-text queries: find a video, then resolve it
// through the video source. Any failure on that path goes to the fallback.
type SearchSource struct {
	finder   Finder
	video    sources.Source
	fallback Fallback
	log      *zap.Logger
}

func New(finder Finder, video sources.Source, fallback Fallback, log *zap.Logger) *SearchSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &SearchSource{finder: finder, video: video, fallback: fallback, log: log.Named("search")}
}

// Match accepts anything that is not a link.
func (s *SearchSource) Match(input string) bool {
	input = strings.TrimSpace(input)
	return input != "" && !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://")
}

func (s *SearchSource) Resolve(ctx context.Context, query string) (track.Info, error) {
	query = strings.TrimSpace(query)

	info, err := s.viaFinder(ctx, query)
	if err == nil {
		return info, nil
	}
	if ctx.Err() != nil || s.fallback == nil {
		return track.Info{}, err
	}

	s.log.Info("Search failed, falling back", zap.String("query", query), zap.Error(err))
	info, ferr := s.fallback.Search(ctx, query)
	if ferr != nil {
		return track.Info{}, errors.Join(err, ferr)
	}
	return info, nil
}

func (s *SearchSource) viaFinder(ctx context.Context, query string) (track.Info, error) {
	if s.finder == nil || s.video == nil {
		return track.Info{}, errors.New("search is not configured")
	}
	link, err := s.finder.FirstVideoURL(ctx, query)
	if err != nil {
		return track.Info{}, err
	}
	return s.video.Resolve(ctx, link)
}

func (s *SearchSource) SourceName() string {
	return SourceSearch
}

// YouTubeFinder searches YouTube through ytsearch.
type YouTubeFinder struct{}

func (YouTubeFinder) FirstVideoURL(ctx context.Context, query string) (string, error) {
	res, err := ytsearch.NewClient(nil).Search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("youtube search: %w", err)
	}
	for _, r := range res.Results {
		if r.VideoID != "" {
			return "https://www.youtube.com/watch?v=" + r.VideoID, nil
		}
	}
	return "", sources.ErrNoResults
}
