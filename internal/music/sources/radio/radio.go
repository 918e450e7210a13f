package radio

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/keshon/lapis-music/internal/music/sources"
	"github.com/keshon/lapis-music/internal/music/track"
)

const SourceRadio = sources.SourceRadio

var streamExtensions = map[string]bool{
	".mp3": true, ".aac": true, ".ogg": true, ".opus": true, ".flac": true,
	".m3u": true, ".m3u8": true, ".pls": true, ".xspf": true, ".asx": true,
}

// RadioSource plays direct audio links and internet radio streams.
type RadioSource struct {
	resolver *RadioResolver
	log      *zap.Logger
}

func New(log *zap.Logger) *RadioSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &RadioSource{resolver: NewRadioResolver(), log: log.Named("radio")}
}

// Match looks at the link shape only: a known audio extension or a typical
// stream mount path.
func (r *RadioSource) Match(input string) bool {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if streamExtensions[strings.ToLower(path.Ext(u.Path))] {
		return true
	}
	p := strings.ToLower(strings.TrimSuffix(u.Path, "/"))
	return strings.HasSuffix(p, "/stream") || strings.HasSuffix(p, "/listen") || strings.HasSuffix(p, "/live")
}

func (r *RadioSource) Resolve(ctx context.Context, input string) (track.Info, error) {
	input = strings.TrimSpace(input)
	probe, err := r.resolver.Probe(ctx, input)
	if err != nil {
		return track.Info{}, err
	}
	if !probe.Playable {
		return track.Info{}, fmt.Errorf("invalid stream content-type: %q, url: %s", probe.ContentType, probe.FinalURL)
	}

	title := probe.StationName
	if title == "" {
		title = path.Base(strings.TrimSuffix(probe.FinalURL, "/"))
	}
	r.log.Debug("Resolved stream", zap.String("url", probe.FinalURL), zap.String("content_type", probe.ContentType))
	return track.Info{
		Title:         title,
		URL:           input,
		StreamLocator: probe.FinalURL,
		SourceName:    SourceRadio,
	}, nil
}

func (r *RadioSource) SourceName() string {
	return SourceRadio
}
