package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/porttfolio/internal/client"
	"github.com/hitoshi/porttfolio/internal/guard"
	"github.com/hitoshi/porttfolio/internal/identity"
	"github.com/hitoshi/porttfolio/internal/middleware"
	"github.com/hitoshi/porttfolio/internal/registration"
	"github.com/hitoshi/porttfolio/internal/storage"
)

// --- モック定義 ---

// fakeProvider はidentity.Providerのモック。
// 成功した操作は実際のIdPと同様にリスナーへ通知する。
type fakeProvider struct {
	mu        sync.Mutex
	current   *identity.Identity
	silent    bool // trueの場合、購読時に通知しない（復元中のまま）
	listeners []identity.AuthStateListener

	verifyFn    func(email, password string) (*identity.Identity, error)
	createFn    func(email, password string) (*identity.Identity, error)
	federatedFn func(code string) (*identity.Identity, error)
	signOutErr  error
}

func (p *fakeProvider) CreateAccount(_ context.Context, email, password string) (*identity.Identity, error) {
	if p.createFn == nil {
		return nil, errors.New("createFn not set")
	}
	ident, err := p.createFn(email, password)
	if err == nil {
		p.publish(ident)
	}
	return ident, err
}

func (p *fakeProvider) VerifyCredentials(_ context.Context, email, password string) (*identity.Identity, error) {
	if p.verifyFn == nil {
		return nil, errors.New("verifyFn not set")
	}
	ident, err := p.verifyFn(email, password)
	if err == nil {
		p.publish(ident)
	}
	return ident, err
}

func (p *fakeProvider) FederatedLoginURL(state string) string {
	return "https://accounts.google.com/o/oauth2/v2/auth?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) CompleteFederatedSignIn(_ context.Context, code string) (*identity.Identity, error) {
	if code == "" {
		return nil, &identity.Error{Code: identity.CodePopupClosedByUser, Message: "The sign-in was cancelled."}
	}
	if p.federatedFn == nil {
		return nil, errors.New("federatedFn not set")
	}
	ident, err := p.federatedFn(code)
	if err == nil {
		p.publish(ident)
	}
	return ident, err
}

func (p *fakeProvider) SignOut(context.Context) error {
	if p.signOutErr != nil {
		return p.signOutErr
	}
	p.publish(nil)
	return nil
}

func (p *fakeProvider) OnAuthStateChanged(fn identity.AuthStateListener) func() {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	current, silent := p.current, p.silent
	p.mu.Unlock()
	if !silent {
		fn(current)
	}
	return func() {}
}

func (p *fakeProvider) publish(ident *identity.Identity) {
	p.mu.Lock()
	p.current = ident
	listeners := append([]identity.AuthStateListener(nil), p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(ident)
	}
}

var _ identity.Provider = (*fakeProvider)(nil)

// recorderSpy はRecorderのモック。
type recorderSpy struct {
	mu       sync.Mutex
	signIns  []string
	signUps  []string
	signOuts []string
}

func (r *recorderSpy) RecordSignIn(method, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signIns = append(r.signIns, method+":"+result)
}

func (r *recorderSpy) RecordSignUp(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signUps = append(r.signUps, result)
}

func (r *recorderSpy) RecordSignOut(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signOuts = append(r.signOuts, result)
}

var _ Recorder = (*recorderSpy)(nil)

// sinkSpy はregistration.ProfileSinkのモック。
type sinkSpy struct {
	mu       sync.Mutex
	profiles []registration.Profile
}

func (s *sinkSpy) Save(_ context.Context, _ *identity.Identity, p registration.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = append(s.profiles, p)
	return nil
}

// pingerStub はHealthCheckerのモック。
type pingerStub struct {
	err error
}

func (p pingerStub) PingContext(context.Context) error { return p.err }

// --- テスト環境 ---

const (
	testClientID  = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	testCSRFToken = "test-csrf-token"
)

type testEnv struct {
	router   http.Handler
	provider *fakeProvider
	registry *client.Registry
	backend  *storage.MemoryBackend
	recorder *recorderSpy
	sink     *sinkSpy
}

// newTestEnv は全クライアントが同じfakeProviderを使うルーターを構築する。
func newTestEnv(t *testing.T, provider *fakeProvider) *testEnv {
	t.Helper()

	env := &testEnv{
		provider: provider,
		backend:  storage.NewMemoryBackend(),
		recorder: &recorderSpy{},
		sink:     &sinkSpy{},
	}
	env.registry = client.NewRegistry(
		func(string) identity.Provider { return provider },
		env.backend,
		client.Options{IdleTimeout: time.Hour},
	)

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	env.router = NewRouter(&RouterDeps{
		Clients:     env.registry,
		CORS:        middleware.CORSConfig{AllowedOrigin: "http://localhost:3000"},
		RateLimiter: rl,
		Logger:      discardLogger(),
		Guard:       guard.Options{SuspendTimeout: 50 * time.Millisecond},
		Handler: Config{
			ProfileSink: env.sink,
			Recorder:    env.recorder,
		},
	})
	return env
}

// do はテスト用クライアントのCookieとCSRFトークンを付けてリクエストを送る。
func (e *testEnv) do(t *testing.T, method, path string, form url.Values) *http.Response {
	t.Helper()

	var body io.Reader
	if form != nil {
		form.Set(middleware.CSRFFormField, testCSRFToken)
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.AddCookie(&http.Cookie{Name: "client_id", Value: testClientID})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w.Result()
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(b)
}

func assertRedirect(t *testing.T, resp *http.Response, status int, location string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("status = %d, want %d", resp.StatusCode, status)
	}
	if got := resp.Header.Get("Location"); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}

func testIdentity() *identity.Identity {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &identity.Identity{
		ID:           "account-1",
		Email:        "trader@example.com",
		CreatedAt:    created,
		LastSignInAt: created.Add(time.Hour),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
