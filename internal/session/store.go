// Package session はクライアントごとの認証状態（Session）を保持するストアを提供する。
//
// StoreはIdPの認証状態通知を唯一の書き込み元とし、状態は常に丸ごと置き換える。
// 生成直後はIsLoading=trueで、IdPが最初の状態を通知するまで利用者は
// Identityの有無で分岐してはならない。
package session

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/porttfolio/internal/identity"
)

// State はある時点の認証状態。
type State struct {
	Identity  *identity.Identity
	IsLoading bool
}

// Authenticated はログイン状態が確定しており、ログイン済みであればtrueを返す。
func (s State) Authenticated() bool {
	return !s.IsLoading && s.Identity != nil
}

// Listener は状態変化を受け取るコールバック。
type Listener func(State)

// FederatedSignIn はGoogleログインの結果。
type FederatedSignIn struct {
	Identity     *identity.Identity
	IsNewAccount bool
}

// Store は1クライアントの認証状態を保持する。
type Store struct {
	provider    identity.Provider
	unsubscribe func()

	// notifyMu はリスナーへの通知を直列化する
	notifyMu sync.Mutex

	mu        sync.Mutex
	state     State
	changed   chan struct{}
	listeners map[uint64]Listener
	nextID    uint64
	closed    bool
}

// NewStore はStoreを生成し、IdPの認証状態通知を購読する。
// 購読はCloseが呼ばれるまで1つだけ保持される。
func NewStore(provider identity.Provider) *Store {
	s := &Store{
		provider:  provider,
		state:     State{IsLoading: true},
		changed:   make(chan struct{}),
		listeners: make(map[uint64]Listener),
	}
	s.unsubscribe = provider.OnAuthStateChanged(s.onAuthStateChanged)
	return s
}

// onAuthStateChanged はIdPからの通知で状態を置き換える。
func (s *Store) onAuthStateChanged(ident *identity.Identity) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state = State{Identity: ident, IsLoading: false}
	close(s.changed)
	s.changed = make(chan struct{})
	state := s.state
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

// State は現在の状態を返す。
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot は現在の状態と、次に状態が変わったときに閉じられるチャネルを返す。
func (s *Store) Snapshot() (State, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.changed
}

// Wait は状態が確定するまで待機する。ctxが終了した場合はその時点の状態とctx.Err()を返す。
func (s *Store) Wait(ctx context.Context) (State, error) {
	for {
		state, changed := s.Snapshot()
		if !state.IsLoading {
			return state, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Subscribe はリスナーを登録し、登録解除関数を返す。
// リスナーは現在の状態で即座に一度呼ばれ、その後は状態が変わるたびに呼ばれる。
func (s *Store) Subscribe(fn Listener) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	state := s.state
	s.mu.Unlock()

	fn(state)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// SignUpWithCredentials はアカウントを作成する。
// 成功時の状態更新はIdPの通知経由で行われる。
func (s *Store) SignUpWithCredentials(ctx context.Context, email, password string) (*identity.Identity, error) {
	ident, err := s.provider.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, newAccountCreationError(err)
	}
	return ident, nil
}

// SignInWithCredentials はメールアドレスとパスワードでログインする。
func (s *Store) SignInWithCredentials(ctx context.Context, email, password string) (*identity.Identity, error) {
	ident, err := s.provider.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, newAuthenticationError(err)
	}
	return ident, nil
}

// FederatedLoginURL はGoogleの同意画面URLを返す。
func (s *Store) FederatedLoginURL(state string) string {
	return s.provider.FederatedLoginURL(state)
}

// SignInWithFederatedProvider は同意画面から戻った認可コードでGoogleログインを完了する。
// codeが空の場合は利用者によるキャンセルとして失敗する。
func (s *Store) SignInWithFederatedProvider(ctx context.Context, code string) (*FederatedSignIn, error) {
	ident, err := s.provider.CompleteFederatedSignIn(ctx, code)
	if err != nil {
		return nil, newAuthenticationError(err)
	}
	return &FederatedSignIn{
		Identity:     ident,
		IsNewAccount: IsNewAccount(ident),
	}, nil
}

// SignOut はログアウトする。
func (s *Store) SignOut(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		return newSignOutError(err)
	}
	return nil
}

// Close はIdPの購読を解除し、以降の通知を無視する。複数回呼んでもよい。
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.listeners = make(map[uint64]Listener)
	s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// IsNewAccount はアカウントが今回初めてログインしたものかを推定する。
//
// 作成日時と最終ログイン日時がIdPの精度（1秒）で一致すれば新規とみなす。
// 作成と同じ1秒以内に再ログインしたアカウントは新規と誤判定される。
// 確実な判定にはIdP側で新規作成フラグを返す必要がある。
func IsNewAccount(ident *identity.Identity) bool {
	if ident == nil {
		return false
	}
	return ident.CreatedAt.Truncate(time.Second).Equal(ident.LastSignInAt.Truncate(time.Second))
}
