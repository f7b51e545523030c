package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, s *Store) *Watcher {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0755))

	w, err := NewWatcher(s)
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
	return w
}

func TestWatcher_InitialSnapshot(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]string{"report_Sitrep": "first"}))

	w := startWatcher(t, s)
	assert.Equal(t, map[string]string{"report_Sitrep": "first"}, w.Current())
}

func TestWatcher_EmptyWhenAbsent(t *testing.T) {
	w := startWatcher(t, newTestStore(t))
	assert.Empty(t, w.Current())
}

func TestWatcher_FollowsOutOfBandSave(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]string{"report_Sitrep": "first"}))
	w := startWatcher(t, s)

	var notified atomic.Int32
	w.OnChange(func(entries map[string]string) {
		if entries["report_Sitrep"] == "second" {
			notified.Add(1)
		}
	})

	other := NewStore(s.Path())
	require.NoError(t, other.Edit("report_Sitrep", "second"))

	assert.Eventually(t, func() bool {
		return w.Current()["report_Sitrep"] == "second"
	}, 5*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool { return notified.Load() > 0 }, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_KeepsLastGoodMappingOnCorruptWrite(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]string{"report_Sitrep": "good"}))
	w := startWatcher(t, s)

	require.NoError(t, os.WriteFile(s.Path(), []byte("{broken"), 0644))
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, "good", w.Current()["report_Sitrep"])
}

func TestWatcher_CurrentIsACopy(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]string{"report_Sitrep": "a"}))
	w := startWatcher(t, s)

	snap := w.Current()
	snap["report_Sitrep"] = "mutated"
	assert.Equal(t, "a", w.Current()["report_Sitrep"])
}

func TestWatcher_ReloadPicksUpWriteImmediately(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]string{"report_Sitrep": "X"}))
	w, err := NewWatcher(s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, s.Edit("report_Sitrep", "Y"))
	assert.Equal(t, "X", w.Current()["report_Sitrep"])
	w.Reload()
	assert.Equal(t, "Y", w.Current()["report_Sitrep"])
}
