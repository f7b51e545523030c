// Package transcript loads war-game transcript files and builds the context
// blob that grounds every generation call.
package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aiwargamer/sitroom/internal/models"
	"github.com/aiwargamer/sitroom/internal/tokens"
	"github.com/go-viper/mapstructure/v2"
)

// EpisodeMarker is appended after the entries of each loaded file.
const EpisodeMarker = "--- END OF EPISODE ---"

// ErrNoData is returned by callers that require at least one transcript entry
// when every configured file was missing or empty.
var ErrNoData = errors.New("no transcript data found")

// LoadError describes a transcript file that could not be read or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading transcript %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Corpus is the result of a load: the ordered entries plus the derived context blob.
type Corpus struct {
	Entries []models.TranscriptEntry
	// Files lists the files that were read successfully, in load order.
	Files []string
	// Skipped holds one LoadError per file that was missing or unparseable.
	Skipped []*LoadError

	Blob   string
	Chars  int
	Words  int
	Tokens int
}

// Empty reports whether no transcript data was found at all.
func (c *Corpus) Empty() bool {
	return len(c.Entries) == 0
}

// Loader reads a fixed list of transcript files.
type Loader struct {
	paths        []string
	fallbackDirs []string
	counter      tokens.Counter
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFallbackDirs makes the loader look for a missing file's base name in each dir, in order.
func WithFallbackDirs(dirs ...string) LoaderOption {
	return func(l *Loader) {
		l.fallbackDirs = dirs
	}
}

// WithTokenCounter replaces the default token estimator.
func WithTokenCounter(c tokens.Counter) LoaderOption {
	return func(l *Loader) {
		l.counter = c
	}
}

// NewLoader creates a loader for the given file paths.
func NewLoader(paths []string, opts ...LoaderOption) *Loader {
	l := &Loader{
		paths:   paths,
		counter: tokens.NewEstimatingCounter(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load reads every configured file. Missing and malformed files are logged
// and skipped; they never fail the load. When nothing could be read the
// returned corpus is Empty with an empty blob.
func (l *Loader) Load(ctx context.Context) (*Corpus, error) {
	corpus := &Corpus{}
	var blob strings.Builder

	for _, p := range l.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path, ok := l.locate(p)
		if !ok {
			loadErr := &LoadError{Path: p, Err: os.ErrNotExist}
			slog.Warn("Transcript file not found, skipping", "path", p)
			corpus.Skipped = append(corpus.Skipped, loadErr)
			continue
		}

		entries, err := ReadFile(path)
		if err != nil {
			loadErr := &LoadError{Path: path, Err: err}
			slog.Warn("Failed to load transcript, skipping", "path", path, "error", err)
			corpus.Skipped = append(corpus.Skipped, loadErr)
			continue
		}

		slog.Debug("Loaded transcript", "path", path, "entries", len(entries))
		corpus.Files = append(corpus.Files, path)
		corpus.Entries = append(corpus.Entries, entries...)

		for _, e := range entries {
			blob.WriteString(e.Line())
			blob.WriteByte('\n')
		}
		blob.WriteString("\n" + EpisodeMarker + "\n")
	}

	if corpus.Empty() {
		return corpus, nil
	}

	corpus.Blob = blob.String()
	corpus.Chars = len(corpus.Blob)
	corpus.Words = len(strings.Fields(corpus.Blob))
	corpus.Tokens = l.counter.Count(corpus.Blob)
	return corpus, nil
}

func (l *Loader) locate(p string) (string, bool) {
	if _, err := os.Stat(p); err == nil {
		return p, true
	}
	for _, dir := range l.fallbackDirs {
		candidate := filepath.Join(dir, filepath.Base(p))
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// ReadFile parses a single transcript file.
func ReadFile(path string) ([]models.TranscriptEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	entries, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Source = path
	}
	return entries, nil
}

// Parse accepts either a JSON array of records or a JSON object holding such
// an array under any key; for objects, the first array-valued field wins.
func Parse(data []byte) ([]models.TranscriptEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty file")
	}

	var records []any
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("parsing transcript array: %w", err)
		}
	case '{':
		raw, err := firstArrayField(trimmed)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("parsing nested transcript array: %w", err)
		}
	default:
		return nil, errors.New("transcript must be a JSON array or object")
	}

	entries := make([]models.TranscriptEntry, 0, len(records))
	for i, r := range records {
		entry, ok, err := decodeRecord(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// firstArrayField walks the top-level object in document order and returns the
// raw value of the first field holding an array.
func firstArrayField(data []byte) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil { // opening brace
		return nil, fmt.Errorf("parsing transcript object: %w", err)
	}

	for dec.More() {
		if _, err := dec.Token(); err != nil { // key
			return nil, fmt.Errorf("parsing transcript object: %w", err)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("parsing transcript object: %w", err)
		}
		if v := bytes.TrimSpace(value); len(v) > 0 && v[0] == '[' {
			return value, nil
		}
	}

	return nil, errors.New("transcript object has no array field")
}

type record struct {
	Text    *string `mapstructure:"text"`
	Content *string `mapstructure:"content"`
	Speaker string  `mapstructure:"speaker"`
	Type    string  `mapstructure:"type"`
	Episode string  `mapstructure:"episode"`
}

// decodeRecord normalizes one record. Records carrying neither text nor
// content are dropped (ok == false).
func decodeRecord(r any) (models.TranscriptEntry, bool, error) {
	if s, isString := r.(string); isString {
		return models.TranscriptEntry{Speaker: models.UnknownSpeaker, Content: s, Narration: true}, true, nil
	}

	var rec record
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &rec,
	})
	if err != nil {
		return models.TranscriptEntry{}, false, err
	}
	if err := dec.Decode(r); err != nil {
		return models.TranscriptEntry{}, false, err
	}

	speaker := strings.TrimSpace(rec.Speaker)
	if speaker == "" && rec.Type != "" {
		speaker = "[" + strings.ToUpper(strings.TrimSpace(rec.Type)) + "]"
	}

	switch {
	case rec.Text != nil:
		if speaker == "" {
			speaker = models.UnknownSpeaker
		}
		return models.TranscriptEntry{Speaker: speaker, Content: *rec.Text, Episode: rec.Episode}, true, nil
	case rec.Content != nil:
		entry := models.TranscriptEntry{Speaker: speaker, Content: *rec.Content, Episode: rec.Episode}
		if speaker == "" {
			entry.Speaker = models.UnknownSpeaker
			entry.Narration = true
		}
		return entry, true, nil
	default:
		return models.TranscriptEntry{}, false, nil
	}
}
