package youtube

import (
	"context"
	"fmt"
	"strings"

	youtube "github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"github.com/keshon/lapis-music/internal/music/sources"
	"github.com/keshon/lapis-music/internal/music/track"
)

const SourceYouTube = sources.SourceYouTube

type YouTubeSource struct {
	client *youtube.Client
	log    *zap.Logger
}

func New(proxy string, log *zap.Logger) *YouTubeSource {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("youtube")
	return &YouTubeSource{client: NewClient(proxy, log), log: log}
}

// Match accepts single-video links only; playlists go to the generic extractor.
func (y *YouTubeSource) Match(input string) bool {
	return isYouTubeVideoURL(strings.TrimSpace(input))
}

func (y *YouTubeSource) Resolve(ctx context.Context, input string) (track.Info, error) {
	link := CleanVideoURL(strings.TrimSpace(input))

	video, err := y.client.GetVideoContext(ctx, link)
	if err != nil {
		return track.Info{}, fmt.Errorf("youtube client error: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if audioOnly := formats.Type("audio"); len(audioOnly) > 0 {
		formats = audioOnly
	}
	if len(formats) == 0 {
		return track.Info{}, sources.ErrNoStreamURL
	}

	streamURL, err := y.client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return track.Info{}, fmt.Errorf("get stream URL error: %w", err)
	}

	var thumbnail string
	if n := len(video.Thumbnails); n > 0 {
		thumbnail = video.Thumbnails[n-1].URL
	}

	y.log.Debug("Resolved video", zap.String("id", video.ID), zap.String("title", video.Title))
	return track.Info{
		Title:           video.Title,
		URL:             "https://www.youtube.com/watch?v=" + video.ID,
		DurationSeconds: int(video.Duration.Seconds()),
		ThumbnailURL:    thumbnail,
		StreamLocator:   streamURL,
		SourceName:      SourceYouTube,
	}, nil
}

func (y *YouTubeSource) SourceName() string {
	return SourceYouTube
}
