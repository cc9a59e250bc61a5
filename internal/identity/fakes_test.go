package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/porttfolio/internal/model"
	"github.com/hitoshi/porttfolio/internal/repository"
)

// --- モック定義 ---

// fakeRepos はアカウント・紐付け・セッションのリポジトリをメモリ上で実装する。
// *Errフィールドを設定すると対応する操作が失敗する。
type fakeRepos struct {
	mu         sync.Mutex
	accounts   map[string]*model.Account
	hashes     map[string]string
	identities []*model.LinkedIdentity
	sessions   map[string]*model.ProviderSession

	createErr   error
	findErr     error
	upsertErr   error
	deleteErr   error
	sessionFind func(ctx context.Context, clientID string) (*model.ProviderSession, error)
}

func newFakeRepos() *fakeRepos {
	return &fakeRepos{
		accounts: make(map[string]*model.Account),
		hashes:   make(map[string]string),
		sessions: make(map[string]*model.ProviderSession),
	}
}

func (f *fakeRepos) FindByID(_ context.Context, id string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	if a, ok := f.accounts[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeRepos) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, a := range f.accounts {
		if strings.EqualFold(a.Email, email) {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRepos) insertLocked(account *model.Account) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, a := range f.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return repository.ErrDuplicate
		}
	}
	copied := *account
	f.accounts[account.ID] = &copied
	return nil
}

func (f *fakeRepos) CreateWithCredential(_ context.Context, account *model.Account, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.insertLocked(account); err != nil {
		return err
	}
	f.hashes[account.ID] = hash
	return nil
}

func (f *fakeRepos) CreateWithIdentity(_ context.Context, account *model.Account, identity *model.LinkedIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.insertLocked(account); err != nil {
		return err
	}
	f.identities = append(f.identities, identity)
	return nil
}

func (f *fakeRepos) PasswordHash(_ context.Context, accountID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hashes[accountID], nil
}

func (f *fakeRepos) TouchLastSignIn(_ context.Context, accountID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.accounts[accountID]; ok {
		a.LastSignInAt = at
	}
	return nil
}

// identityRepo はIdentityRepositoryとしてのビューを返す。
func (f *fakeRepos) identityRepo() *fakeIdentityRepo { return &fakeIdentityRepo{f} }

// sessionRepo はProviderSessionRepositoryとしてのビューを返す。
func (f *fakeRepos) sessionRepo() *fakeSessionRepo { return &fakeSessionRepo{f} }

type fakeIdentityRepo struct{ f *fakeRepos }

func (r *fakeIdentityRepo) FindByProviderAndProviderUserID(_ context.Context, provider, providerUserID string) (*model.LinkedIdentity, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, li := range r.f.identities {
		if li.Provider == provider && li.ProviderUserID == providerUserID {
			return li, nil
		}
	}
	return nil, nil
}

func (r *fakeIdentityRepo) Create(_ context.Context, identity *model.LinkedIdentity) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	r.f.identities = append(r.f.identities, identity)
	return nil
}

type fakeSessionRepo struct{ f *fakeRepos }

func (r *fakeSessionRepo) Upsert(_ context.Context, session *model.ProviderSession) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.upsertErr != nil {
		return r.f.upsertErr
	}
	copied := *session
	r.f.sessions[session.ClientID] = &copied
	return nil
}

func (r *fakeSessionRepo) FindByClientID(ctx context.Context, clientID string) (*model.ProviderSession, error) {
	if r.f.sessionFind != nil {
		return r.f.sessionFind(ctx, clientID)
	}
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	s, ok := r.f.sessions[clientID]
	if !ok || !s.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return s, nil
}

func (r *fakeSessionRepo) DeleteByClientID(_ context.Context, clientID string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.deleteErr != nil {
		return r.f.deleteErr
	}
	delete(r.f.sessions, clientID)
	return nil
}

func (f *fakeRepos) hasSession(clientID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[clientID]
	return ok
}

// plainHasher はテスト高速化のためのハッシュ実装。
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (plainHasher) Verify(password, hash string) (bool, error) {
	return hash == "hashed:"+password, nil
}

type mockFederated struct {
	authCodeURLFn func(state string) string
	exchangeFn    func(ctx context.Context, code string) (*FederatedUser, error)
}

func (m *mockFederated) AuthCodeURL(state string) string {
	if m.authCodeURLFn != nil {
		return m.authCodeURLFn(state)
	}
	return "https://accounts.example.com/auth?state=" + state
}

func (m *mockFederated) Exchange(ctx context.Context, code string) (*FederatedUser, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code)
	}
	return nil, nil
}

// --- compile-time interface checks ---
var _ repository.AccountRepository = (*fakeRepos)(nil)
var _ repository.IdentityRepository = (*fakeIdentityRepo)(nil)
var _ repository.ProviderSessionRepository = (*fakeSessionRepo)(nil)
var _ PasswordHasher = plainHasher{}
var _ FederatedAuthenticator = (*mockFederated)(nil)

// newTestService はメモリ上のリポジトリを使うServiceを生成する。
func newTestService(repos *fakeRepos, fed *mockFederated) *Service {
	if fed == nil {
		fed = &mockFederated{}
	}
	return NewService(repos, repos.identityRepo(), repos.sessionRepo(), fed, plainHasher{},
		ServiceConfig{SessionMaxAge: 3600, MinPasswordLength: 6, RestoreTimeout: time.Second})
}
