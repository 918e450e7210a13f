package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"

	"github.com/keshon/lapis-music/internal/music/sources"
	"github.com/keshon/lapis-music/internal/music/track"
)

const SourceYTDLP = sources.SourceYTDLP

// printTemplate yields one tab separated line per entry.
const printTemplate = "%(title)s\t%(webpage_url)s\t%(duration)s\t%(thumbnail)s\t%(url)s"

var errMalformedOutput = errors.New("malformed yt-dlp output")

// YTDLPSource resolves any link yt-dlp understands, and "ytsearch1:" queries.
type YTDLPSource struct {
	proxy string
	log   *zap.Logger
}

func New(proxy string, log *zap.Logger) *YTDLPSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &YTDLPSource{proxy: proxy, log: log.Named("ytdlp")}
}

// Match accepts every http(s) link; this source is the fallback for URLs.
func (s *YTDLPSource) Match(input string) bool {
	input = strings.TrimSpace(input)
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

func (s *YTDLPSource) Resolve(ctx context.Context, input string) (track.Info, error) {
	cmd := ytdlp.New().
		Print(printTemplate).
		Format("bestaudio/best").
		NoPlaylist().
		PlaylistItems("1").
		NoWarnings().
		IgnoreConfig().
		Quiet()
	if s.proxy != "" {
		cmd.Proxy(s.proxy)
	}

	res, err := cmd.Run(ctx, strings.TrimSpace(input))
	if err != nil {
		return track.Info{}, fmt.Errorf("yt-dlp error: %w", err)
	}

	info, err := parseLine(res.Stdout)
	if err != nil {
		return track.Info{}, err
	}
	s.log.Debug("Resolved", zap.String("title", info.Title), zap.String("url", info.URL))
	return info, nil
}

// Search resolves the first search hit for query.
func (s *YTDLPSource) Search(ctx context.Context, query string) (track.Info, error) {
	return s.Resolve(ctx, "ytsearch1:"+query)
}

func (s *YTDLPSource) SourceName() string {
	return SourceYTDLP
}

// parseLine reads the first complete line produced by printTemplate.
func parseLine(stdout string) (track.Info, error) {
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		parts := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(parts) < 5 {
			continue
		}
		locator := strings.TrimSpace(parts[4])
		if locator == "" || locator == "NA" {
			return track.Info{}, sources.ErrNoStreamURL
		}
		return track.Info{
			Title:           naToEmpty(parts[0]),
			URL:             naToEmpty(parts[1]),
			DurationSeconds: parseSeconds(parts[2]),
			ThumbnailURL:    naToEmpty(parts[3]),
			StreamLocator:   locator,
			SourceName:      SourceYTDLP,
		}, nil
	}
	if strings.TrimSpace(stdout) == "" {
		return track.Info{}, sources.ErrNoResults
	}
	return track.Info{}, errMalformedOutput
}

// naToEmpty maps yt-dlp's placeholder for missing fields to "".
func naToEmpty(s string) string {
	s = strings.TrimSpace(s)
	if s == "NA" {
		return ""
	}
	return s
}

func parseSeconds(s string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f)
}
