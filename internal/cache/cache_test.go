package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "data", "intelligence_analysis.json"))
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	entries := map[string]string{
		"report_Sitrep":        "# Sitrep\n\n* Blue holds the bridge.",
		"briefing_Red_Teamer":  "Unicode 😈 and \"quotes\"",
		"report_Uncertainties": "",
		"notes":                "free-form keys survive",
	}
	require.NoError(t, s.Save(entries))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestStore_SaveEmpty(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(nil))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_SaveRejectsInvalidUTF8(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]string{"report_Sitrep": "good sitrep"}))

	for name, entries := range map[string]map[string]string{
		"value": {"report_Sitrep": "a\xffb"},
		"key":   {"report_\xff": "body"},
	} {
		t.Run(name, func(t *testing.T) {
			err := s.Save(entries)
			require.ErrorIs(t, err, ErrInvalidUTF8)
			var ioErr *IOError
			require.ErrorAs(t, err, &ioErr)
			assert.Equal(t, "write", ioErr.Op)

			got, err := s.Load()
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"report_Sitrep": "good sitrep"}, got)
		})
	}

	require.ErrorIs(t, s.Edit("report_Sitrep", "a\xffb"), ErrInvalidUTF8)
}

func TestStore_LoadAbsentIsNotAnIOError(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load()
	require.ErrorIs(t, err, ErrNotFound)

	var ioErr *IOError
	assert.False(t, errors.As(err, &ioErr))
}

func TestStore_LoadParseFailure(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "truncated", content: `{"report_Sitrep": "# Sit`},
		{name: "array", content: `["report_Sitrep"]`},
		{name: "non-string value", content: `{"report_Sitrep": 42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0755))
			require.NoError(t, os.WriteFile(s.Path(), []byte(tt.content), 0644))

			_, err := s.Load()
			require.Error(t, err)
			assert.False(t, errors.Is(err, ErrNotFound))

			var ioErr *IOError
			require.True(t, errors.As(err, &ioErr))
			assert.Equal(t, "parse", ioErr.Op)
			assert.Equal(t, s.Path(), ioErr.Path)
		})
	}
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]string{"report_Sitrep": "a"}))
	require.NoError(t, s.Save(map[string]string{"report_Sitrep": "b"}))

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "intelligence_analysis.json", entries[0].Name())
}

func TestStore_EditOverridesOneKey(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]string{
		"report_Sitrep":       "original sitrep",
		"report_Sigacts":      "sigacts body",
		"briefing_Red_Teamer": "red body",
	}))

	require.NoError(t, s.Edit("report_Sitrep", "analyst rewrite"))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "analyst rewrite", got["report_Sitrep"])
	assert.Equal(t, "sigacts body", got["report_Sigacts"])
	assert.Equal(t, "red body", got["briefing_Red_Teamer"])
	assert.Len(t, got, 3)
}

func TestStore_EditLeavesSiblingsByteIdentical(t *testing.T) {
	s := newTestStore(t)
	sigacts := "line one\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\ttabbed & <escaped>"
	require.NoError(t, s.Save(map[string]string{
		"report_Sitrep":  "old",
		"report_Sigacts": sigacts,
	}))

	require.NoError(t, s.Edit("report_Sitrep", "new"))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []byte(sigacts), []byte(got["report_Sigacts"]))
}

func TestStore_EditAcceptsDisplayKey(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]string{"briefing_Red_Teamer": "old"}))

	require.NoError(t, s.Edit("briefing_Red Teamer", "new"))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"briefing_Red_Teamer": "new"}, got)
}

func TestStore_EditLegacyDisplayKeyInPlace(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]string{"briefing_Red Teamer": "old"}))

	require.NoError(t, s.Edit("briefing_Red_Teamer", "new"))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"briefing_Red Teamer": "new"}, got)
}

func TestStore_EditWithoutCache(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Edit("report_Sitrep", "hand written"))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"report_Sitrep": "hand written"}, got)
}

func TestStore_EditCorruptCache(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("not json"), 0644))

	err := s.Edit("report_Sitrep", "x")
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "not json", string(data))
}

func TestStore_EditRejectsEmptyKey(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.Edit("  ", "x"))
}

func TestStore_Get(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]string{"briefing_Military_Historian": "history"}))

	v, err := s.Get("briefing_Military Historian")
	require.NoError(t, err)
	assert.Equal(t, "history", v)

	_, err = s.Get("report_Sitrep")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestStore_Merge(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]string{
		"report_Sitrep":  "old sitrep",
		"report_Sigacts": "keep me",
	}))

	merged, err := s.Merge(map[string]string{"report_Sitrep": "new sitrep", "report_ORBAT": "orbat"})
	require.NoError(t, err)

	want := map[string]string{
		"report_Sitrep":  "new sitrep",
		"report_Sigacts": "keep me",
		"report_ORBAT":   "orbat",
	}
	assert.Equal(t, want, merged)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]string{"report_Sitrep": "a", "report_Sigacts": "b"}))

	require.NoError(t, s.Delete("report_Sitrep"))
	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"report_Sigacts": "b"}, got)

	assert.ErrorIs(t, s.Delete("report_Sitrep"), ErrKeyNotFound)
}

func TestStore_DeleteWithoutCache(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.Delete("report_Sitrep"), ErrNotFound)
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]string{"report_Sitrep": "a"}))

	require.NoError(t, s.Clear())
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	// Clearing an absent cache is a no-op.
	assert.NoError(t, s.Clear())
}

func TestStore_Clear_SafetyChecks(t *testing.T) {
	t.Run("refuses a directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "cache.json")
		require.NoError(t, os.MkdirAll(dir, 0755))

		err := NewStore(dir).Clear()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "refusing to delete")
		assert.DirExists(t, dir)
	})

	t.Run("refuses a non-json file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))

		err := NewStore(path).Clear()
		require.Error(t, err)
		assert.FileExists(t, path)
	})

	t.Run("refuses a file that is not a report cache", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "package.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"name": "x", "version": 1}`), 0644))

		err := NewStore(path).Clear()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "refusing to delete")
		assert.FileExists(t, path)
	})
}

func TestLookup(t *testing.T) {
	entries := map[string]string{
		"report_Sitrep":            "sitrep",
		"briefing_Red Teamer":      "legacy",
		"briefing_Citizen's_Voice": "voice",
	}

	tests := []struct {
		key  string
		want string
		ok   bool
	}{
		{key: "report_Sitrep", want: "sitrep", ok: true},
		{key: "briefing_Red_Teamer", want: "legacy", ok: true},
		{key: "briefing_Red Teamer", want: "legacy", ok: true},
		{key: "briefing_Citizen's Voice", want: "voice", ok: true},
		{key: "report_ORBAT", ok: false},
		{key: "garbage", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := Lookup(entries, tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeys(t *testing.T) {
	keys := Keys(map[string]string{"report_b": "", "briefing_a": "", "report_a": ""})
	assert.Equal(t, []string{"briefing_a", "report_a", "report_b"}, keys)
}

func TestStore_ConcurrentOperations(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]string{}))

	numGoroutines := 10
	numOperations := 20

	t.Run("concurrent edits on different keys", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					key := fmt.Sprintf("report_K%d_%d", id, j)
					assert.NoError(t, s.Edit(key, strings.Repeat("x", j)))
				}
			}(i)
		}
		wg.Wait()

		got, err := s.Load()
		require.NoError(t, err)
		assert.Len(t, got, numGoroutines*numOperations)
	})

	t.Run("readers never see a partial file", func(t *testing.T) {
		big := strings.Repeat("intel ", 20000)
		require.NoError(t, s.Save(map[string]string{"report_Sitrep": big}))

		var wg sync.WaitGroup
		for i := 0; i < numGoroutines; i++ {
			wg.Add(2)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					assert.NoError(t, s.Save(map[string]string{"report_Sitrep": big, "report_Writer": fmt.Sprint(id)}))
				}
			}(i)
			go func() {
				defer wg.Done()
				other := NewStore(s.Path())
				for j := 0; j < numOperations; j++ {
					got, err := other.Load()
					if assert.NoError(t, err) {
						assert.Equal(t, big, got["report_Sitrep"])
					}
				}
			}()
		}
		wg.Wait()
	})
}
