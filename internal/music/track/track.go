package track

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxTitleLength is the display-safe title limit, counted in runes.
	MaxTitleLength = 100
	// UnknownTitle replaces empty titles.
	UnknownTitle = "Unknown Title"
)

// Requester identifies the user who asked for a track. It is owned by the chat platform.
type Requester struct {
	ID   string
	Name string
}

// Mention renders the requester as a Discord mention, falling back to the name.
func (r Requester) Mention() string {
	if r.ID == "" {
		if r.Name == "" {
			return "unknown"
		}
		return r.Name
	}
	return "<@" + r.ID + ">"
}

// Info is the raw metadata produced by a source before it becomes a Track.
type Info struct {
	Title           string
	URL             string
	DurationSeconds int
	ThumbnailURL    string
	StreamLocator   string
	SourceName      string
}

// Track is one resolved song. It is immutable after New.
type Track struct {
	title           string
	canonicalURL    string
	durationSeconds int
	thumbnailURL    string
	requester       Requester
	streamLocator   string
	sourceName      string
}

// New builds a Track from resolved metadata.
func New(info Info, requester Requester) *Track {
	canonical := strings.TrimSpace(info.URL)
	if canonical == "" {
		canonical = info.StreamLocator
	}
	duration := info.DurationSeconds
	if duration < 0 {
		duration = 0
	}
	return &Track{
		title:           cleanTitle(info.Title),
		canonicalURL:    canonical,
		durationSeconds: duration,
		thumbnailURL:    strings.TrimSpace(info.ThumbnailURL),
		requester:       requester,
		streamLocator:   info.StreamLocator,
		sourceName:      info.SourceName,
	}
}

func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return UnknownTitle
	}
	if utf8.RuneCountInString(title) <= MaxTitleLength {
		return title
	}
	runes := []rune(title)
	return string(runes[:MaxTitleLength])
}

func (t *Track) Title() string         { return t.title }
func (t *Track) URL() string           { return t.canonicalURL }
func (t *Track) DurationSeconds() int  { return t.durationSeconds }
func (t *Track) ThumbnailURL() string  { return t.thumbnailURL }
func (t *Track) Requester() Requester  { return t.requester }
func (t *Track) StreamLocator() string { return t.streamLocator }
func (t *Track) SourceName() string    { return t.sourceName }

// Duration returns the track length, zero when unknown.
func (t *Track) Duration() time.Duration {
	return time.Duration(t.durationSeconds) * time.Second
}

// DisplayDuration formats the length as m:ss or h:mm:ss, "live" when unknown.
func (t *Track) DisplayDuration() string {
	if t.durationSeconds == 0 {
		return "live"
	}
	h := t.durationSeconds / 3600
	m := (t.durationSeconds % 3600) / 60
	s := t.durationSeconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func (t *Track) String() string {
	return fmt.Sprintf("%q (%s)", t.title, t.canonicalURL)
}
