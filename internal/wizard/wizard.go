// Package wizard provides the interactive manual-override editor for cached reports.
package wizard

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/aiwargamer/sitroom/internal/cache"
	"github.com/aiwargamer/sitroom/internal/catalog"
	"github.com/aiwargamer/sitroom/internal/models"
	"github.com/aiwargamer/sitroom/internal/orchestration"
	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ErrAborted is returned when the user declines to save the override.
var ErrAborted = errors.New("override aborted")

// Override is the result of the editor: one cache key and its new value.
type Override struct {
	Key   string
	Value string
}

// KeyOption is one selectable cache key.
type KeyOption struct {
	Label string
	Key   string
}

// KeyOptions lists the catalog tasks first, then any other keys present in entries.
func KeyOptions(cat *catalog.Catalog, entries map[string]string) []KeyOption {
	var opts []KeyOption
	known := map[string]bool{}
	for _, t := range cat.Tasks() {
		key := t.ID.CacheKey()
		known[key] = true
		content, ok := cache.Lookup(entries, key)
		opts = append(opts, KeyOption{Label: optionLabel(t.Icon, t.ID.String(), content, ok), Key: key})
	}

	var extra []string
	for key := range entries {
		if known[key] {
			continue
		}
		if id, err := models.ParseCacheKey(key); err == nil && known[id.CacheKey()] {
			continue
		}
		extra = append(extra, key)
	}
	sort.Strings(extra)
	for _, key := range extra {
		opts = append(opts, KeyOption{Label: optionLabel("•", key, entries[key], true), Key: key})
	}
	return opts
}

func optionLabel(icon, name, content string, present bool) string {
	status := "missing"
	switch {
	case present && orchestration.IsFailurePlaceholder(content):
		status = "failed"
	case present:
		status = fmt.Sprintf("%d chars", len(content))
	}
	return fmt.Sprintf("%s %s (%s)", icon, name, status)
}

// EditOverride prompts for a key (unless initialKey is set) and its new content, then
// asks for confirmation. The editor is prefilled with the current value.
func EditOverride(in io.Reader, out io.Writer, cat *catalog.Catalog, entries map[string]string, initialKey string) (*Override, error) {
	key := strings.TrimSpace(initialKey)
	if key == "" {
		opts := KeyOptions(cat, entries)
		if len(opts) == 0 {
			return nil, fmt.Errorf("no reports to edit")
		}
		options := make([]huh.Option[string], 0, len(opts))
		for _, o := range opts {
			options = append(options, huh.NewOption(o.Label, o.Key))
		}
		pick := newForm(in, out, huh.NewGroup(
			huh.NewSelect[string]().
				Title("Report to override").
				Options(options...).
				Value(&key),
		))
		if err := pick.Run(); err != nil {
			return nil, fmt.Errorf("wizard failed: %w", err)
		}
	}

	value, _ := cache.Lookup(entries, key)
	confirmed := true
	edit := newForm(in, out, huh.NewGroup(
		huh.NewText().
			Title("Content for "+key).
			Description("Markdown. Status tags like [BOLD RED: text] are rendered as colored badges.").
			CharLimit(0).
			Lines(20).
			Value(&value).
			Validate(validateContent),
		huh.NewConfirm().
			Title("Save override?").
			Affirmative("Save").
			Negative("Cancel").
			Value(&confirmed),
	))
	if err := edit.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}
	if !confirmed {
		return nil, ErrAborted
	}
	return &Override{Key: key, Value: value}, nil
}

func validateContent(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("content is required")
	}
	return nil
}

func newForm(in io.Reader, out io.Writer, groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}
	return form
}
