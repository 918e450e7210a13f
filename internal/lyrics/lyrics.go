package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/keshon/lapis-music/pkg/retrylimit"
)

const (
	DefaultAPIBase = "https://api.genius.com"
	MaxLength      = 1900
)

var (
	ErrUnavailable = errors.New("lyrics service unavailable")
	ErrNotFound    = errors.New("lyrics not found")
)

var (
	noisePattern   = regexp.MustCompile(`(?i)\([^)]*\)|\[[^\]]*\]|\bMV\b|\bOfficial Video\b`)
	headerPattern  = regexp.MustCompile(`(?m)^\s*\[[^\]]*\]\s*$\n?`)
	spacePattern   = regexp.MustCompile(`\s{2,}`)
	blankLinesExpr = regexp.MustCompile(`\n{3,}`)
)

type Song struct {
	Title  string
	Artist string
	URL    string
	Lyrics string
}

// Client looks songs up on Genius and scrapes the lyrics page.
type Client struct {
	token   string
	apiBase string
	http    *http.Client
	limiter *retrylimit.AdaptiveLimiter
	retry   retrylimit.RetryConfig
	log     *zap.Logger
}

type Option func(*Client)

func WithAPIBase(base string) Option {
	return func(c *Client) { c.apiBase = strings.TrimRight(base, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithRetryConfig(cfg retrylimit.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

func New(token string, log *zap.Logger, opts ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		token:   token,
		apiBase: DefaultAPIBase,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: retrylimit.NewAdaptiveLimiter(2, 1, 5, 0.5, 0.5),
		retry:   retrylimit.DefaultRetryConfig(),
		log:     log.Named("lyrics"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.Logger = c.log
	return c
}

// Available reports whether a token is configured.
func (c *Client) Available() bool {
	return c != nil && c.token != ""
}

// CleanTitle strips bracketed notes and video markers from a track title.
func CleanTitle(title string) string {
	title = noisePattern.ReplaceAllString(title, "")
	return strings.TrimSpace(spacePattern.ReplaceAllString(title, " "))
}

// Search finds lyrics for a track title.
func (c *Client) Search(ctx context.Context, title string) (*Song, error) {
	if !c.Available() {
		return nil, ErrUnavailable
	}
	query := CleanTitle(title)
	if query == "" {
		return nil, ErrNotFound
	}

	hit, err := c.searchHit(ctx, query)
	if err != nil {
		return nil, err
	}

	text, err := c.scrape(ctx, hit.URL)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrNotFound
	}

	c.log.Debug("Lyrics found", zap.String("query", query), zap.String("url", hit.URL))
	return &Song{Title: hit.Title, Artist: hit.PrimaryArtist.Name, URL: hit.URL, Lyrics: text}, nil
}

// Format renders a song as a chat message, truncated like the original bot.
func Format(s *Song) string {
	body := s.Lyrics
	if r := []rune(body); len(r) > MaxLength {
		body = string(r[:MaxLength]) + "..."
	}
	return fmt.Sprintf("**%s**\n\n%s", s.Title, body)
}

type searchResponse struct {
	Response struct {
		Hits []struct {
			Type   string     `json:"type"`
			Result songResult `json:"result"`
		} `json:"hits"`
	} `json:"response"`
}

type songResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	PrimaryArtist struct {
		Name string `json:"name"`
	} `json:"primary_artist"`
}

type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string   { return fmt.Sprintf("GET %s: status %d", e.url, e.code) }
func (e *statusError) StatusCode() int { return e.code }

func (c *Client) searchHit(ctx context.Context, query string) (*songResult, error) {
	endpoint := c.apiBase + "/search?q=" + url.QueryEscape(query)

	var parsed searchResponse
	err := c.get(ctx, endpoint, true, func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&parsed)
	})
	if err != nil {
		return nil, err
	}

	for _, h := range parsed.Response.Hits {
		if h.Type == "song" && h.Result.URL != "" {
			res := h.Result
			return &res, nil
		}
	}
	return nil, ErrNotFound
}

func (c *Client) scrape(ctx context.Context, pageURL string) (string, error) {
	var text string
	err := c.get(ctx, pageURL, false, func(resp *http.Response) error {
		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return &retrylimit.FatalError{Err: err}
		}
		text = extractLyrics(doc)
		return nil
	})
	return text, err
}

// extractLyrics joins all lyric containers, keeping line breaks and dropping
// section headers such as "[Chorus]".
func extractLyrics(doc *goquery.Document) string {
	var parts []string
	doc.Find(`div[data-lyrics-container="true"]`).Each(func(_ int, s *goquery.Selection) {
		s.Find("br").ReplaceWithHtml("\n")
		s.Find(`[data-exclude-from-selection="true"]`).Remove()
		parts = append(parts, s.Text())
	})
	text := strings.Join(parts, "\n")
	text = headerPattern.ReplaceAllString(text, "")
	text = blankLinesExpr.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func (c *Client) get(ctx context.Context, target string, auth bool, decode func(*http.Response) error) error {
	err := retrylimit.WithRetryConfig(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return &retrylimit.FatalError{Err: err}
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")
		if auth {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return &retrylimit.FatalError{Err: ErrNotFound}
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return &retrylimit.FatalError{Err: fmt.Errorf("%w: %w", ErrUnavailable, &statusError{code: resp.StatusCode, url: target})}
		case resp.StatusCode >= 400:
			return &statusError{code: resp.StatusCode, url: target}
		}
		return decode(resp)
	}, c.limiter, c.retry)
	if err != nil {
		var fatal *retrylimit.FatalError
		if errors.As(err, &fatal) {
			return fatal.Err
		}
		return err
	}
	return nil
}
