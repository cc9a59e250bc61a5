package middleware

import (
	"context"
	"sync"

	"github.com/hitoshi/porttfolio/internal/client"
	"github.com/hitoshi/porttfolio/internal/identity"
	"github.com/hitoshi/porttfolio/internal/session"
)

// --- モック定義 ---

// fixedProvider は購読時に固定の認証状態を通知するidentity.Provider。
type fixedProvider struct {
	ident *identity.Identity
}

func (p *fixedProvider) CreateAccount(context.Context, string, string) (*identity.Identity, error) {
	return nil, nil
}
func (p *fixedProvider) VerifyCredentials(context.Context, string, string) (*identity.Identity, error) {
	return nil, nil
}
func (p *fixedProvider) FederatedLoginURL(string) string { return "" }
func (p *fixedProvider) CompleteFederatedSignIn(context.Context, string) (*identity.Identity, error) {
	return nil, nil
}
func (p *fixedProvider) SignOut(context.Context) error { return nil }
func (p *fixedProvider) OnAuthStateChanged(fn identity.AuthStateListener) func() {
	fn(p.ident)
	return func() {}
}

// newTestClient は認証状態が確定済みのクライアントを生成する。
func newTestClient(id string, ident *identity.Identity) *client.Client {
	return &client.Client{
		ID:      id,
		Session: session.NewStore(&fixedProvider{ident: ident}),
	}
}

// mockResolver はClientResolverのモック。
type mockResolver struct {
	mu      sync.Mutex
	clients map[string]*client.Client
	calls   []string
}

func newMockResolver() *mockResolver {
	return &mockResolver{clients: make(map[string]*client.Client)}
}

func (m *mockResolver) Get(_ context.Context, id string) *client.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, id)
	c, ok := m.clients[id]
	if !ok {
		c = newTestClient(id, nil)
		m.clients[id] = c
	}
	return c
}

var _ ClientResolver = (*mockResolver)(nil)

// validClientID は形式上有効なクライアントID。
const validClientID = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
