package storage

import "time"

type CommandHistoryRecord struct {
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Command   string    `json:"command"`
	Param     string    `json:"param"`
	Datetime  time.Time `json:"datetime"`
}

// AppendCommandToHistory records a command, keeping the newest 20.
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	return s.update(guildID, func(r *Record) {
		r.CommandsHistoryList = appendBounded(r.CommandsHistoryList, command, commandHistoryLimit)
	})
}

func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	record, err := s.read(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistoryList, nil
}

// CommandHashes returns the definition hashes of the slash commands last
// registered in the guild, keyed by command name.
func (s *Storage) CommandHashes(guildID string) (map[string]string, error) {
	record, err := s.read(guildID)
	if err != nil {
		return nil, err
	}
	hashes := make(map[string]string, len(record.CommandHashes))
	for k, v := range record.CommandHashes {
		hashes[k] = v
	}
	return hashes, nil
}

func (s *Storage) SetCommandHashes(guildID string, hashes map[string]string) error {
	return s.update(guildID, func(r *Record) {
		r.CommandHashes = hashes
	})
}

func appendBounded[T any](list []T, item T, limit int) []T {
	list = append(list, item)
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list
}
