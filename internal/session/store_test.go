package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/porttfolio/internal/identity"
)

// --- モック定義 ---

// mockProvider はidentity.Providerのモック。
// emitで登録済みリスナーへ任意の状態を通知できる。
type mockProvider struct {
	mu           sync.Mutex
	listeners    []identity.AuthStateListener
	subscribed   int
	unsubscribed int

	createFn    func(ctx context.Context, email, password string) (*identity.Identity, error)
	verifyFn    func(ctx context.Context, email, password string) (*identity.Identity, error)
	federatedFn func(ctx context.Context, code string) (*identity.Identity, error)
	signOutFn   func(ctx context.Context) error
}

func (m *mockProvider) CreateAccount(ctx context.Context, email, password string) (*identity.Identity, error) {
	if m.createFn != nil {
		return m.createFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockProvider) VerifyCredentials(ctx context.Context, email, password string) (*identity.Identity, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockProvider) FederatedLoginURL(state string) string {
	return "https://idp.example.com/consent?state=" + state
}

func (m *mockProvider) CompleteFederatedSignIn(ctx context.Context, code string) (*identity.Identity, error) {
	if m.federatedFn != nil {
		return m.federatedFn(ctx, code)
	}
	return nil, nil
}

func (m *mockProvider) SignOut(ctx context.Context) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx)
	}
	return nil
}

func (m *mockProvider) OnAuthStateChanged(fn identity.AuthStateListener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed++
	m.listeners = append(m.listeners, fn)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.unsubscribed++
		m.listeners = nil
	}
}

func (m *mockProvider) emit(ident *identity.Identity) {
	m.mu.Lock()
	listeners := append([]identity.AuthStateListener(nil), m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(ident)
	}
}

// compile-time interface check
var _ identity.Provider = (*mockProvider)(nil)

var testIdentity = &identity.Identity{
	ID:           "acc-1",
	Email:        "a@b.com",
	CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	LastSignInAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
}

// --- テスト ---

// 生成直後はロード中で未確定
func TestNewStore_InitiallyLoading(t *testing.T) {
	p := &mockProvider{}
	s := NewStore(p)
	defer s.Close()

	st := s.State()
	if !st.IsLoading {
		t.Error("IsLoading should be true right after construction")
	}
	if st.Identity != nil {
		t.Error("Identity should be absent right after construction")
	}
	if st.Authenticated() {
		t.Error("loading state must not be authenticated")
	}
	if p.subscribed != 1 {
		t.Errorf("provider subscriptions = %d, want exactly 1", p.subscribed)
	}
}

// IdPの通知で確定し、ログアウトで未ログインに戻る
func TestStore_StateTransitions(t *testing.T) {
	p := &mockProvider{}
	s := NewStore(p)
	defer s.Close()

	p.emit(testIdentity)
	st := s.State()
	if st.IsLoading || st.Identity == nil || st.Identity.ID != "acc-1" {
		t.Fatalf("after sign-in state = %+v", st)
	}

	p.emit(nil)
	st = s.State()
	if st.IsLoading {
		t.Error("IsLoading must never return to true")
	}
	if st.Identity != nil {
		t.Error("Identity should be absent after sign-out")
	}
}

func TestStore_SubscribeCalledImmediatelyAndOnChange(t *testing.T) {
	p := &mockProvider{}
	s := NewStore(p)
	defer s.Close()

	var got []State
	unsubscribe := s.Subscribe(func(st State) { got = append(got, st) })

	if len(got) != 1 || !got[0].IsLoading {
		t.Fatalf("initial callback = %+v, want one loading state", got)
	}

	p.emit(testIdentity)
	p.emit(nil)
	if len(got) != 3 {
		t.Fatalf("callbacks = %d, want 3", len(got))
	}
	if got[1].Identity == nil || got[2].Identity != nil {
		t.Errorf("unexpected sequence %+v", got)
	}

	unsubscribe()
	p.emit(testIdentity)
	if len(got) != 3 {
		t.Errorf("callback invoked after unsubscribe")
	}
}

func TestStore_SnapshotChannelClosesOnChange(t *testing.T) {
	p := &mockProvider{}
	s := NewStore(p)
	defer s.Close()

	_, changed := s.Snapshot()
	select {
	case <-changed:
		t.Fatal("channel must stay open until a change")
	default:
	}

	p.emit(nil)
	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("channel was not closed after change")
	}
}

func TestStore_Wait(t *testing.T) {
	t.Run("確定まで待機する", func(t *testing.T) {
		p := &mockProvider{}
		s := NewStore(p)
		defer s.Close()

		go func() {
			time.Sleep(20 * time.Millisecond)
			p.emit(testIdentity)
		}()

		st, err := s.Wait(context.Background())
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if !st.Authenticated() {
			t.Errorf("Wait() state = %+v, want authenticated", st)
		}
	})

	t.Run("コンテキスト終了でロード中の状態を返す", func(t *testing.T) {
		s := NewStore(&mockProvider{})
		defer s.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		st, err := s.Wait(ctx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
		}
		if !st.IsLoading {
			t.Error("state should still be loading")
		}
	})
}

func TestStore_Close(t *testing.T) {
	p := &mockProvider{}
	s := NewStore(p)

	calls := 0
	s.Subscribe(func(State) { calls++ })

	s.Close()
	s.Close()

	if p.unsubscribed != 1 {
		t.Errorf("provider unsubscribed %d times, want 1", p.unsubscribed)
	}
	p.emit(testIdentity)
	if calls != 1 {
		t.Errorf("listener called %d times after Close, want only the initial call", calls)
	}
}

func TestSignInWithCredentials_ErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind AuthenticationErrorKind
	}{
		{"invalid-credential", &identity.Error{Code: identity.CodeInvalidCredential, Message: "bad"}, KindInvalidCredential},
		{"network", &identity.Error{Code: identity.CodeNetworkRequestFailed, Message: "offline"}, KindNetwork},
		{"invalid-emailはunknown", &identity.Error{Code: identity.CodeInvalidEmail, Message: "bad email"}, KindUnknown},
		{"IdP以外のエラーはunknown", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProvider{verifyFn: func(ctx context.Context, email, password string) (*identity.Identity, error) {
				return nil, tt.err
			}}
			s := NewStore(p)
			defer s.Close()

			_, err := s.SignInWithCredentials(context.Background(), "a@b.com", "pw")
			var authErr *AuthenticationError
			if !errors.As(err, &authErr) {
				t.Fatalf("error = %v, want *AuthenticationError", err)
			}
			if authErr.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", authErr.Kind, tt.wantKind)
			}
			if !errors.Is(err, tt.err) {
				t.Error("AuthenticationError should wrap the provider error")
			}
		})
	}
}

func TestSignInWithCredentials_PassesCredentials(t *testing.T) {
	var gotEmail, gotPassword string
	p := &mockProvider{verifyFn: func(ctx context.Context, email, password string) (*identity.Identity, error) {
		gotEmail, gotPassword = email, password
		return testIdentity, nil
	}}
	s := NewStore(p)
	defer s.Close()

	ident, err := s.SignInWithCredentials(context.Background(), "a@b.com", "right")
	if err != nil {
		t.Fatalf("SignInWithCredentials() error = %v", err)
	}
	if ident != testIdentity {
		t.Error("identity should be returned as-is")
	}
	if gotEmail != "a@b.com" || gotPassword != "right" {
		t.Errorf("provider got (%q, %q)", gotEmail, gotPassword)
	}
}

func TestSignUpWithCredentials_ReasonVerbatim(t *testing.T) {
	p := &mockProvider{createFn: func(ctx context.Context, email, password string) (*identity.Identity, error) {
		return nil, &identity.Error{Code: identity.CodeEmailAlreadyInUse, Message: "The email address is already in use by another account."}
	}}
	s := NewStore(p)
	defer s.Close()

	_, err := s.SignUpWithCredentials(context.Background(), "a@b.com", "secret1")
	var createErr *AccountCreationError
	if !errors.As(err, &createErr) {
		t.Fatalf("error = %v, want *AccountCreationError", err)
	}
	if createErr.Reason != identity.CodeEmailAlreadyInUse {
		t.Errorf("Reason = %q", createErr.Reason)
	}
	if createErr.Message != "The email address is already in use by another account." {
		t.Errorf("Message = %q", createErr.Message)
	}
}

func TestSignInWithFederatedProvider_IsNewAccount(t *testing.T) {
	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		lastSignIn time.Time
		wantNew    bool
	}{
		{"同一時刻は新規", created, true},
		{"同じ1秒以内は新規とみなす", created.Add(400 * time.Millisecond), true},
		{"1秒以上後は既存", created.Add(2 * time.Second), false},
		{"翌日は既存", created.Add(24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ident := &identity.Identity{ID: "g", Email: "g@b.com", CreatedAt: created, LastSignInAt: tt.lastSignIn}
			p := &mockProvider{federatedFn: func(ctx context.Context, code string) (*identity.Identity, error) {
				return ident, nil
			}}
			s := NewStore(p)
			defer s.Close()

			res, err := s.SignInWithFederatedProvider(context.Background(), "code")
			if err != nil {
				t.Fatalf("SignInWithFederatedProvider() error = %v", err)
			}
			if res.IsNewAccount != tt.wantNew {
				t.Errorf("IsNewAccount = %v, want %v", res.IsNewAccount, tt.wantNew)
			}
			if res.Identity != ident {
				t.Error("identity should be returned")
			}
		})
	}
}

func TestSignInWithFederatedProvider_Cancelled(t *testing.T) {
	p := &mockProvider{federatedFn: func(ctx context.Context, code string) (*identity.Identity, error) {
		return nil, &identity.Error{Code: identity.CodePopupClosedByUser, Message: "cancelled"}
	}}
	s := NewStore(p)
	defer s.Close()

	_, err := s.SignInWithFederatedProvider(context.Background(), "")
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) || authErr.Kind != KindUnknown {
		t.Fatalf("error = %v, want AuthenticationError{unknown}", err)
	}
	if authErr.Code != identity.CodePopupClosedByUser {
		t.Errorf("Code = %q", authErr.Code)
	}
}

func TestSignOut(t *testing.T) {
	t.Run("成功", func(t *testing.T) {
		s := NewStore(&mockProvider{})
		defer s.Close()
		if err := s.SignOut(context.Background()); err != nil {
			t.Errorf("SignOut() error = %v", err)
		}
	})

	t.Run("失敗はSignOutError", func(t *testing.T) {
		p := &mockProvider{signOutFn: func(ctx context.Context) error {
			return &identity.Error{Code: identity.CodeInternalError, Message: "An internal error has occurred."}
		}}
		s := NewStore(p)
		defer s.Close()

		err := s.SignOut(context.Background())
		var soErr *SignOutError
		if !errors.As(err, &soErr) {
			t.Fatalf("error = %v, want *SignOutError", err)
		}
	})
}

func TestIsNewAccount_Nil(t *testing.T) {
	if IsNewAccount(nil) {
		t.Error("nil identity must not be a new account")
	}
}

func TestFederatedLoginURL_Delegates(t *testing.T) {
	s := NewStore(&mockProvider{})
	defer s.Close()
	if got := s.FederatedLoginURL("st"); got != "https://idp.example.com/consent?state=st" {
		t.Errorf("FederatedLoginURL() = %q", got)
	}
}
