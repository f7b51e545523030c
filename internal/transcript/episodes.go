package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/aiwargamer/sitroom/internal/models"
)

var episodeNumberRe = regexp.MustCompile(`E(\d+)`)

// EpisodeGroup holds the entries tagged with one episode identifier.
type EpisodeGroup struct {
	Episode string
	Entries []models.TranscriptEntry
}

// GroupByEpisode buckets entries by their episode tag, keeping first-seen
// order for both groups and entries. Untagged entries are returned separately.
func GroupByEpisode(entries []models.TranscriptEntry) (groups []EpisodeGroup, untagged []models.TranscriptEntry) {
	index := map[string]int{}
	for _, e := range entries {
		if e.Episode == "" {
			untagged = append(untagged, e)
			continue
		}
		i, ok := index[e.Episode]
		if !ok {
			i = len(groups)
			index[e.Episode] = i
			groups = append(groups, EpisodeGroup{Episode: e.Episode})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	return groups, untagged
}

// EpisodeFilename maps an episode identifier such as "S2E3" to its split file
// name. It returns false when the identifier carries no episode number.
func EpisodeFilename(episode string) (string, bool) {
	m := episodeNumberRe.FindStringSubmatch(episode)
	if m == nil {
		return "", false
	}
	return fmt.Sprintf("clean_transcript_s2e%s.json", m[1]), true
}

type splitRecord struct {
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text,omitempty"`
	Content string `json:"content,omitempty"`
	Episode string `json:"episode"`
}

// WriteEpisodes writes each group to dir as its own transcript file and
// returns the paths written. Groups whose identifier has no episode number
// are logged and skipped.
func WriteEpisodes(dir string, groups []EpisodeGroup) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var written []string
	for _, g := range groups {
		name, ok := EpisodeFilename(g.Episode)
		if !ok {
			slog.Warn("Could not parse episode number, skipping", "episode", g.Episode)
			continue
		}

		records := make([]splitRecord, 0, len(g.Entries))
		for _, e := range g.Entries {
			if e.Narration {
				records = append(records, splitRecord{Content: e.Content, Episode: e.Episode})
				continue
			}
			records = append(records, splitRecord{Speaker: e.Speaker, Text: e.Content, Episode: e.Episode})
		}

		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return written, fmt.Errorf("marshaling episode %s: %w", g.Episode, err)
		}

		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", path, err)
		}
		slog.Info("Wrote episode transcript", "path", path, "entries", len(records))
		written = append(written, path)
	}
	return written, nil
}
