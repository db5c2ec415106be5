package client_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/layer-3/apiclient/adapters/store"
	"github.com/layer-3/apiclient/client"
	"github.com/layer-3/apiclient/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const refreshPath = "/auth/token/refresh/"

// fakeBackend accepts exactly one access token and renews it on refreshPath
type fakeBackend struct {
	t *testing.T

	mu          sync.Mutex
	validToken  string
	nextAccess  string
	nextRefresh string
	hits        map[string]int

	refreshCalls   atomic.Int32
	refreshAuth    []string
	refreshBodies  []string
	refreshStatus  int
	refreshPayload string

	// gate holds the renewal response until it returns true
	gate func() bool
}

func newFakeBackend(t *testing.T, valid string) *fakeBackend {
	return &fakeBackend{
		t:           t,
		validToken:  valid,
		nextAccess:  "fresh",
		nextRefresh: "r2",
		hits:        make(map[string]int),
	}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == refreshPath {
		b.serveRefresh(w, r)
		return
	}

	b.mu.Lock()
	b.hits[r.URL.Path]++
	valid := b.validToken
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == "/always-401" || r.Header.Get("Authorization") != "Bearer "+valid {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Given token not valid for any token type"}`)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"path": r.URL.Path})
}

func (b *fakeBackend) serveRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.refreshAuth = append(b.refreshAuth, r.Header.Get("Authorization"))
	b.refreshBodies = append(b.refreshBodies, string(body))
	b.mu.Unlock()

	if gate := b.gateFunc(); gate != nil {
		deadline := time.Now().Add(2 * time.Second)
		for !gate() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if b.refreshStatus != 0 {
		w.WriteHeader(b.refreshStatus)
		_, _ = io.WriteString(w, b.refreshPayload)
		return
	}

	b.mu.Lock()
	b.validToken = b.nextAccess
	b.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]string{"access": b.nextAccess, "refresh": b.nextRefresh})
}

func (b *fakeBackend) setGate(gate func() bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate = gate
}

func (b *fakeBackend) gateFunc() func() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gate
}

func (b *fakeBackend) hitCount(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

type countingHandler struct {
	calls atomic.Int32
}

func (h *countingHandler) SessionExpired(context.Context) error {
	h.calls.Add(1)
	return nil
}

func newClient(t *testing.T, serverURL string, credential core.Credential, opts ...client.Option) (*client.Client, *store.CredentialStore) {
	t.Helper()
	s := store.NewCredentialStore(store.NewMemoryMedium(), zerolog.Nop())
	if !credential.IsZero() {
		s.Set(context.Background(), credential)
	}
	opts = append([]client.Option{client.WithRefreshPath(refreshPath)}, opts...)
	c, err := client.New(serverURL, s, opts...)
	require.NoError(t, err)
	return c, s
}

func TestConcurrentUnauthorizedRequestsShareOneRenewal(t *testing.T) {
	backend := newFakeBackend(t, "not-old")
	server := httptest.NewServer(backend)
	defer server.Close()

	c, s := newClient(t, server.URL, core.Credential{AccessToken: "old", RefreshToken: "r1"})
	backend.setGate(func() bool { return c.Coordinator().Waiting() == 3 })

	paths := []string{"/a", "/b", "/c"}
	type result struct {
		path string
		body map[string]string
		err  error
	}
	results := make(chan result, len(paths))
	for _, path := range paths {
		go func(path string) {
			var body map[string]string
			err := c.DoJSON(context.Background(), &core.Request{Method: http.MethodGet, Path: path}, &body)
			results <- result{path: path, body: body, err: err}
		}(path)
	}

	for range paths {
		r := <-results
		require.NoError(t, r.err, r.path)
		assert.Equal(t, r.path, r.body["path"])
	}

	assert.Equal(t, int32(1), backend.refreshCalls.Load())
	for _, path := range paths {
		assert.Equal(t, 2, backend.hitCount(path), "%s is sent once and resubmitted once", path)
	}

	backend.mu.Lock()
	assert.Equal(t, []string{""}, backend.refreshAuth, "renewal must not carry the expired access token")
	assert.JSONEq(t, `{"refresh":"r1"}`, backend.refreshBodies[0])
	backend.mu.Unlock()

	got, _ := s.Get(context.Background())
	assert.Equal(t, core.Credential{AccessToken: "fresh", RefreshToken: "r2"}, got)
}

func TestSecondUnauthorizedIsTerminal(t *testing.T) {
	backend := newFakeBackend(t, "old")
	server := httptest.NewServer(backend)
	defer server.Close()

	c, _ := newClient(t, server.URL, core.Credential{AccessToken: "old", RefreshToken: "r1"})

	_, err := c.Get(context.Background(), "/always-401", nil)

	var normalized *core.Error
	require.ErrorAs(t, err, &normalized)
	assert.Equal(t, http.StatusUnauthorized, normalized.Status)
	assert.Equal(t, "Given token not valid for any token type", normalized.Message)
	assert.Equal(t, 2, backend.hitCount("/always-401"))
	assert.Equal(t, int32(1), backend.refreshCalls.Load())
}

func TestMissingRefreshCredentialFailsWithoutRenewal(t *testing.T) {
	backend := newFakeBackend(t, "valid")
	server := httptest.NewServer(backend)
	defer server.Close()

	expired := &countingHandler{}
	c, s := newClient(t, server.URL, core.Credential{AccessToken: "old"}, client.WithSessionExpiredHandler(expired))

	_, err := c.Get(context.Background(), "/orders", nil)

	var normalized *core.Error
	require.ErrorAs(t, err, &normalized)
	assert.ErrorIs(t, err, core.ErrSessionExpired)
	assert.Zero(t, backend.refreshCalls.Load())
	assert.Equal(t, 1, backend.hitCount("/orders"))
	assert.Equal(t, int32(1), expired.calls.Load())

	_, ok := s.Get(context.Background())
	assert.False(t, ok)
}

func TestRenewalFailureFansOut(t *testing.T) {
	backend := newFakeBackend(t, "not-old")
	backend.refreshStatus = http.StatusUnauthorized
	backend.refreshPayload = `{"detail":"Token is invalid or expired","code":"token_not_valid"}`
	server := httptest.NewServer(backend)
	defer server.Close()

	expired := &countingHandler{}
	c, s := newClient(t, server.URL, core.Credential{AccessToken: "old", RefreshToken: "r1"}, client.WithSessionExpiredHandler(expired))
	backend.setGate(func() bool { return c.Coordinator().Waiting() == 3 })

	errs := make(chan error, 3)
	for _, path := range []string{"/a", "/b", "/c"} {
		go func(path string) {
			_, err := c.Get(context.Background(), path, nil)
			errs <- err
		}(path)
	}

	var first error
	for i := 0; i < 3; i++ {
		err := <-errs
		require.Error(t, err)
		if first == nil {
			first = err
		}
		assert.Same(t, first, err)
	}

	var normalized *core.Error
	require.ErrorAs(t, first, &normalized)
	assert.Equal(t, "Token is invalid or expired", normalized.Message)
	assert.ErrorIs(t, first, core.ErrSessionExpired)

	assert.Equal(t, int32(1), expired.calls.Load())
	assert.Equal(t, int32(1), backend.refreshCalls.Load())

	_, ok := s.Get(context.Background())
	assert.False(t, ok)
}

func TestAuthorizationHeaderInjection(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	anonymous, _ := newClient(t, server.URL, core.Credential{})
	_, err := anonymous.Get(context.Background(), "/public", nil)
	require.NoError(t, err)

	authed, _ := newClient(t, server.URL, core.Credential{AccessToken: "tok", RefreshToken: "r"})
	_, err = authed.Get(context.Background(), "/private", nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "Bearer tok"}, seen)
}

func TestHeadersQueryAndRequestID(t *testing.T) {
	captured := make(chan *http.Request, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured <- r.Clone(context.Background())
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, _ := newClient(t, server.URL+"/api/", core.Credential{},
		client.WithDefaultHeader("X-Currency", "USD"),
		client.WithDefaultHeader("X-Site", "portfolio"))

	header := http.Header{}
	header.Set("X-Currency", "EUR")
	resp, err := c.Do(context.Background(), &core.Request{
		Method: http.MethodGet,
		Path:   "blog/posts?tag=go",
		Query:  url.Values{"page": {"2"}},
		Header: header,
	})
	require.NoError(t, err)
	got := <-captured

	assert.Equal(t, "/api/blog/posts", got.URL.Path)
	assert.Equal(t, "go", got.URL.Query().Get("tag"))
	assert.Equal(t, "2", got.URL.Query().Get("page"))
	assert.Equal(t, "EUR", got.Header.Get("X-Currency"))
	assert.Equal(t, "portfolio", got.Header.Get("X-Site"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.NotEmpty(t, got.Header.Get(client.RequestIDHeader))
	assert.Equal(t, got.Header.Get(client.RequestIDHeader), resp.RequestID)
}

func TestMultipartBoundaryIsNegotiatedOnEveryAttempt(t *testing.T) {
	var attempts atomic.Int32
	var mu sync.Mutex
	var titles, files []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == refreshPath {
			_, _ = io.WriteString(w, `{"access":"fresh"}`)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"detail":"`+err.Error()+`"}`)
			return
		}
		file, header, err := r.FormFile("attachment")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		content, _ := io.ReadAll(file)

		mu.Lock()
		titles = append(titles, r.FormValue("title"))
		files = append(files, header.Filename+":"+string(content))
		mu.Unlock()

		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c, _ := newClient(t, server.URL, core.Credential{AccessToken: "old", RefreshToken: "r1"})

	form := (&core.Multipart{}).AddField("title", "Logo redesign")
	form.Files = append(form.Files, core.FormFile{Field: "attachment", FileName: "brief.txt", ContentType: "text/plain", Data: []byte("hello")})

	header := http.Header{}
	header.Set("Content-Type", "multipart/form-data")
	resp, err := c.Do(context.Background(), &core.Request{Method: http.MethodPost, Path: "/services/requests", Header: header, Multipart: form})

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Logo redesign", "Logo redesign"}, titles)
	assert.Equal(t, []string{"brief.txt:hello", "brief.txt:hello"}, files)
}

func TestBackendErrorIsNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"non_field_errors":["Payment declined"],"detail":"Card expired"}`)
	}))
	defer server.Close()

	c, _ := newClient(t, server.URL, core.Credential{AccessToken: "a", RefreshToken: "r"})

	_, err := c.Post(context.Background(), "/payments", map[string]int{"amount": 10})

	var normalized *core.Error
	require.ErrorAs(t, err, &normalized)
	assert.Equal(t, "Card expired", normalized.Message)
	assert.Equal(t, http.StatusBadRequest, normalized.Status)
	assert.NotNil(t, normalized.Data)
}

func TestTimeoutIsNotAnAuthorizationFailure(t *testing.T) {
	var refreshes atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == refreshPath {
			refreshes.Add(1)
		}
		<-release
	}))
	defer server.Close()
	defer close(release)

	c, _ := newClient(t, server.URL, core.Credential{AccessToken: "a", RefreshToken: "r"}, client.WithTimeout(50*time.Millisecond))

	_, err := c.Get(context.Background(), "/slow", nil)

	var normalized *core.Error
	require.ErrorAs(t, err, &normalized)
	assert.Equal(t, core.MessageTimedOut, normalized.Message)
	assert.False(t, normalized.HasStatus())
	assert.Zero(t, refreshes.Load())
}

func TestConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	target := server.URL
	server.Close()

	c, _ := newClient(t, target, core.Credential{})

	_, err := c.Get(context.Background(), "/anything", nil)

	var normalized *core.Error
	require.ErrorAs(t, err, &normalized)
	assert.Equal(t, core.MessageUnreachable, normalized.Message)
}

func TestNewValidatesArguments(t *testing.T) {
	s := store.NewCredentialStore(store.NewMemoryMedium(), zerolog.Nop())

	_, err := client.New("not a url", s)
	assert.Error(t, err)

	_, err = client.New("http://localhost:8000", nil)
	assert.Error(t, err)

	_, err = client.New("http://localhost:8000", s, client.WithHTTPClient(nil))
	assert.Error(t, err)
}

func TestTimeoutDoesNotModifyCallerHTTPClient(t *testing.T) {
	s := store.NewCredentialStore(store.NewMemoryMedium(), zerolog.Nop())
	shared := &http.Client{Timeout: time.Minute}

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	c, err := client.New(server.URL, s, client.WithHTTPClient(shared), client.WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/slow", nil)

	var normalized *core.Error
	require.ErrorAs(t, err, &normalized)
	assert.Equal(t, core.MessageTimedOut, normalized.Message)
	assert.Equal(t, time.Minute, shared.Timeout)
}
