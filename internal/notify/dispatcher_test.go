package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hitCounter records every request path hitting the test server.
type hitCounter struct {
	mu    sync.Mutex
	paths []string
	body  map[string]json.RawMessage
}

func (h *hitCounter) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&payload)
		h.mu.Lock()
		h.paths = append(h.paths, r.URL.Path)
		h.body = payload
		h.mu.Unlock()
		w.WriteHeader(status)
	}
}

func (h *hitCounter) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.paths)
}

// redirectEndpoints points every channel template at base and restores the
// real endpoints when the test finishes.
func redirectEndpoints(t *testing.T, base string) {
	t.Helper()
	origBark, origPlus, origChan, origDing, origCom :=
		barkEndpoint, pushPlusEndpoint, serverChanEndpoint, dingTalkEndpoint, weComEndpoint
	barkEndpoint = base + "/bark/%s/"
	pushPlusEndpoint = base + "/pushplus"
	serverChanEndpoint = base + "/serverchan/%s.send"
	dingTalkEndpoint = base + "/dingtalk?access_token=%s"
	weComEndpoint = base + "/wecom?key=%s"
	t.Cleanup(func() {
		barkEndpoint, pushPlusEndpoint, serverChanEndpoint, dingTalkEndpoint, weComEndpoint =
			origBark, origPlus, origChan, origDing, origCom
	})
}

func TestDispatchNoChannelsConfigured(t *testing.T) {
	hc := &hitCounter{}
	srv := httptest.NewServer(hc.handler(http.StatusOK))
	defer srv.Close()
	redirectEndpoints(t, srv.URL)

	ok, summary := Dispatch(context.Background(), Message{Title: "t"}, Config{Enabled: true})
	assert.False(t, ok)
	assert.Equal(t, "no channels configured", summary)
	assert.Zero(t, hc.count(), "unconfigured dispatch must not touch the network")
}

func TestDispatchSingleChannelSuccess(t *testing.T) {
	hc := &hitCounter{}
	srv := httptest.NewServer(hc.handler(http.StatusOK))
	defer srv.Close()
	redirectEndpoints(t, srv.URL)

	cfg := Config{Enabled: true, BarkToken: "tok123"}
	ok, summary := Dispatch(context.Background(), Message{Title: "grab done", Body: "order placed"}, cfg)

	require.True(t, ok)
	assert.Equal(t, "all 1 channels succeeded", summary)
	require.Equal(t, 1, hc.count())
	assert.Equal(t, "/bark/tok123/", hc.paths[0])

	var title string
	require.NoError(t, json.Unmarshal(hc.body["title"], &title))
	assert.Equal(t, "grab done", title)
}

func TestDispatchSingleChannelFailure(t *testing.T) {
	hc := &hitCounter{}
	srv := httptest.NewServer(hc.handler(http.StatusBadGateway))
	defer srv.Close()
	redirectEndpoints(t, srv.URL)

	cfg := Config{Enabled: true, PushPlusToken: "p"}
	ok, summary := Dispatch(context.Background(), Message{Title: "t"}, cfg)

	assert.False(t, ok)
	assert.Contains(t, summary, "0 succeeded / 1 failed")
	assert.Contains(t, summary, "pushplus")
	assert.Contains(t, summary, "502")
}

func TestDispatchPartialFailure(t *testing.T) {
	// bark succeeds, dingtalk fails; both must be attempted.
	hc := &hitCounter{}
	mux := http.NewServeMux()
	mux.Handle("/bark/", hc.handler(http.StatusOK))
	mux.Handle("/dingtalk", hc.handler(http.StatusInternalServerError))
	srv := httptest.NewServer(mux)
	defer srv.Close()
	redirectEndpoints(t, srv.URL)

	cfg := Config{Enabled: true, BarkToken: "b", DingTalkToken: "d"}
	ok, summary := Dispatch(context.Background(), Message{Title: "t", Body: "b"}, cfg)

	assert.True(t, ok, "partial failure still counts as delivered")
	assert.Contains(t, summary, "1 succeeded / 1 failed")
	assert.Contains(t, summary, "dingtalk")
	assert.NotContains(t, summary, "bark:")
	assert.Equal(t, 2, hc.count())
}

func TestDispatchSMTPUnimplementedNoNetwork(t *testing.T) {
	hc := &hitCounter{}
	srv := httptest.NewServer(hc.handler(http.StatusOK))
	defer srv.Close()
	redirectEndpoints(t, srv.URL)

	cfg := Config{Enabled: true, SMTP: SMTPConfig{Server: "mail.example.com", From: "a@b", To: "c@d"}}
	ok, summary := Dispatch(context.Background(), Message{Title: "t"}, cfg)

	assert.False(t, ok)
	assert.Contains(t, summary, "smtp")
	assert.Contains(t, summary, "not implemented")
	assert.Zero(t, hc.count())
}

func TestDispatchSurvivesCallerCancellation(t *testing.T) {
	hc := &hitCounter{}
	srv := httptest.NewServer(hc.handler(http.StatusOK))
	defer srv.Close()
	redirectEndpoints(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already-cancelled caller: sends still go out

	cfg := Config{Enabled: true, BarkToken: "b"}
	ok, summary := Dispatch(ctx, Message{Title: "t"}, cfg)

	assert.True(t, ok, summary)
	assert.Equal(t, 1, hc.count())
}

func TestGotifySchemeAndAuth(t *testing.T) {
	var gotAuth string
	var gotPath string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// Host without scheme must be usable.
	host := strings.TrimPrefix(srv.URL, "http://")
	cfg := Config{Enabled: true, Gotify: GotifyConfig{URL: host, Token: "gt-token"}}

	err := gotifyChannel{}.Send(context.Background(), Message{Title: "t", Body: "b"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "Bearer gt-token", gotAuth)
	assert.Equal(t, "/message", gotPath)
	assert.EqualValues(t, 9, payload["priority"])

	extras, ok := payload["extras"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fmt.Sprint(extras), "bilibili://mall/web")
}

func TestConfigEmpty(t *testing.T) {
	assert.True(t, Config{Enabled: true}.Empty())
	assert.False(t, Config{Enabled: true, WeComToken: "x"}.Empty())
	assert.False(t, Config{Gotify: GotifyConfig{Token: "x"}}.Empty())
}
