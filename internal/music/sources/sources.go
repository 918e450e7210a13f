package sources

import "errors"

const (
	SourceYouTube = "youtube"
	SourceRadio   = "radio"
	SourceYTDLP   = "ytdlp"
	SourceSearch  = "search"
)

var (
	ErrNoResults   = errors.New("no results found")
	ErrNoStreamURL = errors.New("no playable audio stream")
)
