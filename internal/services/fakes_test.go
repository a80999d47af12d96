package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boukath/cina/services/push_service/internal/credentials"
	"github.com/boukath/cina/services/push_service/internal/oauth"
	"github.com/boukath/cina/services/push_service/internal/testutil"
	"github.com/boukath/cina/services/push_service/pkg/logger"
	"github.com/boukath/cina/services/push_service/pkg/metrics"
)

// upstream fakes both the token endpoint and the FCM send endpoint.
type upstream struct {
	tokenCalls atomic.Int32
	pushCalls  atomic.Int32

	mu          sync.Mutex
	authHeaders []string
	messages    []map[string]interface{}

	tokenStatus int
	tokenBody   string
	pushStatus  int
	pushBody    string

	tokenSrv *httptest.Server
	pushSrv  *httptest.Server
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{
		tokenStatus: http.StatusOK,
		tokenBody:   `{"access_token":"AT1","expires_in":3600,"token_type":"Bearer"}`,
		pushStatus:  http.StatusOK,
		pushBody:    `{"name":"projects/proj-1/messages/1"}`,
	}
	u.tokenSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(u.tokenStatus)
		_, _ = io.WriteString(w, u.tokenBody)
	}))
	u.pushSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.pushCalls.Add(1)
		var msg map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&msg)
		u.mu.Lock()
		u.authHeaders = append(u.authHeaders, r.Header.Get("Authorization"))
		u.messages = append(u.messages, msg)
		u.mu.Unlock()
		if r.URL.Path != "/v1/projects/proj-1/messages:send" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(u.pushStatus)
		_, _ = io.WriteString(w, u.pushBody)
	}))
	t.Cleanup(u.tokenSrv.Close)
	t.Cleanup(u.pushSrv.Close)
	return u
}

func (u *upstream) lastMessage() map[string]interface{} {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.messages) == 0 {
		return nil
	}
	return u.messages[len(u.messages)-1]
}

func testCredential(t *testing.T) *credentials.ServiceAccountCredential {
	t.Helper()
	cred, err := credentials.Parse(testutil.ServiceAccountJSON(t, "svc@example.com", "proj-1"))
	require.NoError(t, err)
	return cred
}

type dispatcherFixture struct {
	up         *upstream
	dispatcher *NotificationDispatcher
	metrics    *metrics.Metrics
}

func newDispatcherFixture(t *testing.T, cached bool, opts ...DispatcherOption) *dispatcherFixture {
	t.Helper()
	up := newUpstream(t)
	log := logger.Discard()
	m := metrics.New()

	var tokens oauth.TokenProvider = oauth.NewExchanger(up.tokenSrv.URL, time.Second, log, oauth.WithRecorder(m))
	if cached {
		tokens = oauth.NewCache(tokens, log, oauth.WithHitRecorder(m))
	}
	provider := NewFCMProvider(up.pushSrv.URL, "proj-1", time.Second, log)
	opts = append([]DispatcherOption{WithWebLink("https://salon.example/admin")}, opts...)

	return &dispatcherFixture{
		up:         up,
		dispatcher: NewNotificationDispatcher(testCredential(t), tokens, provider, m, log, opts...),
		metrics:    m,
	}
}

type memorySuppressor struct {
	mu         sync.Mutex
	suppressed map[string]bool
	err        error
}

func newMemorySuppressor() *memorySuppressor {
	return &memorySuppressor{suppressed: map[string]bool{}}
}

func (m *memorySuppressor) IsTokenSuppressed(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suppressed[token], m.err
}

func (m *memorySuppressor) SuppressToken(_ context.Context, token string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppressed[token] = true
	return nil
}
