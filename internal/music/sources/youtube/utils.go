package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var youtubeURLPattern = regexp.MustCompile(`^(?:https?://)?(?:www\.|music\.|m\.)?(youtube\.com|youtu\.be)/\S+`)

func isYouTubeURL(input string) bool {
	return youtubeURLPattern.MatchString(input)
}

func isYouTubeVideoURL(s string) bool {
	if !isYouTubeURL(s) {
		return false
	}
	return strings.Contains(s, "/watch?v=") ||
		strings.Contains(s, "youtu.be/") ||
		strings.Contains(s, "/shorts/")
}

// CleanVideoURL strips everything but the video id from a watch link.
func CleanVideoURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	host := u.Hostname()

	switch host {
	case "youtu.be":
		vid := strings.Trim(u.Path, "/")
		if vid == "" {
			return raw
		}
		return fmt.Sprintf("https://youtu.be/%s", vid)

	case "www.youtube.com", "youtube.com", "music.youtube.com", "m.youtube.com":
		if u.Path == "/watch" {
			if vid := u.Query().Get("v"); vid != "" {
				return fmt.Sprintf("https://%s/watch?v=%s", host, vid)
			}
		}
		if strings.HasPrefix(u.Path, "/shorts/") {
			if vid := strings.TrimPrefix(u.Path, "/shorts/"); vid != "" {
				return fmt.Sprintf("https://www.youtube.com/watch?v=%s", strings.Trim(vid, "/"))
			}
		}
		return raw

	default:
		return raw
	}
}
