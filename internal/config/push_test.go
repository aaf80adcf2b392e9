package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/TsubakiDev/btr/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const pushYAML = `enabled: true
bark_token: bark-1
dingtalk_token: ding-1
gotify:
  url: push.example.com
  token: got-1
smtp:
  server: mail.example.com
  from: a@example.com
  to: b@example.com
`

func TestLoadPush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "push.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pushYAML), 0o600))

	cfg, err := LoadPush(path)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "bark-1", cfg.BarkToken)
	assert.Equal(t, "ding-1", cfg.DingTalkToken)
	assert.Equal(t, "push.example.com", cfg.Gotify.URL)
	assert.Equal(t, "got-1", cfg.Gotify.Token)
	assert.Equal(t, "mail.example.com", cfg.SMTP.Server)
	assert.False(t, cfg.Empty())
}

func TestLoadPushMissingFileDisablesNotifications(t *testing.T) {
	cfg, err := LoadPush(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.True(t, cfg.Empty())
}

func TestLoadPushRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "push.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: [broken"), 0o600))

	_, err := LoadPush(path)
	assert.Error(t, err)
}

func TestWatchPushAppliesFreshCopies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "push.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: true\nbark_token: v1\n"), 0o600))

	var (
		mu      sync.Mutex
		applied []notify.Config
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = WatchPush(ctx, path, zap.NewNop(), func(cfg notify.Config) {
			mu.Lock()
			applied = append(applied, cfg)
			mu.Unlock()
		})
	}()

	// Give the watcher time to install before rewriting the file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("enabled: true\nbark_token: v2\n"), 0o600))

	deadline := time.Now().Add(3 * time.Second)
	for {
		mu.Lock()
		n := len(applied)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("reload never observed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	last := applied[len(applied)-1]
	mu.Unlock()
	assert.Equal(t, "v2", last.BarkToken)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("watcher did not stop on context cancellation")
	}
}

func TestWatchPushIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "push.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: true\nbark_token: v1\n"), 0o600))

	var applies int32
	var mu sync.Mutex
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = WatchPush(ctx, path, zap.NewNop(), func(notify.Config) {
			mu.Lock()
			applies++
			mu.Unlock()
		})
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o600))
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, applies, "writes to sibling files must not trigger a reload")
}
