package storage

import "time"

type TrackHistoryRecord struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	RequesterID string    `json:"requester_id"`
	PlayedAt    time.Time `json:"played_at"`
}

// AppendTrackToHistory records a played track, keeping the newest 12.
func (s *Storage) AppendTrackToHistory(guildID string, t TrackHistoryRecord) error {
	return s.update(guildID, func(r *Record) {
		r.TracksHistoryList = appendBounded(r.TracksHistoryList, t, tracksHistoryLimit)
	})
}

// FetchTrackHistory returns played tracks, oldest first.
func (s *Storage) FetchTrackHistory(guildID string) ([]TrackHistoryRecord, error) {
	record, err := s.read(guildID)
	if err != nil {
		return nil, err
	}
	return record.TracksHistoryList, nil
}

func (s *Storage) SetVolume(guildID string, fraction float64) error {
	return s.update(guildID, func(r *Record) {
		r.Volume = &fraction
	})
}

// Volume returns the saved volume fraction, if one was ever set.
func (s *Storage) Volume(guildID string) (float64, bool, error) {
	record, err := s.read(guildID)
	if err != nil {
		return 0, false, err
	}
	if record.Volume == nil {
		return 0, false, nil
	}
	return *record.Volume, true, nil
}
