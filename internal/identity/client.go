package identity

import (
	"context"
	"log/slog"
	"sync"
)

// Client は1つのクライアント（ブラウザ）に対応する認証ハンドル。
//
// 最初のリスナー登録時に永続化されたログイン状態の復元を非同期に開始する。
// 復元が終わるまでは新しいリスナーへの初回通知も保留され、復元完了時にまとめて通知される。
// ログイン・ログアウトの成功時は呼び出し元のゴルーチンで全リスナーへ通知してから戻る。
// リスナーの中からOnAuthStateChangedを呼んではならない。
type Client struct {
	id  string
	svc *Service

	// notifyMu はリスナーへの通知を直列化する
	notifyMu sync.Mutex

	mu        sync.Mutex
	current   *Identity
	resolved  bool
	restoring bool
	listeners map[uint64]AuthStateListener
	nextID    uint64
}

func newClient(id string, svc *Service) *Client {
	return &Client{
		id:        id,
		svc:       svc,
		listeners: make(map[uint64]AuthStateListener),
	}
}

// ID はクライアントIDを返す。
func (c *Client) ID() string {
	return c.id
}

// CreateAccount はアカウントを作成してログインする。
func (c *Client) CreateAccount(ctx context.Context, email, password string) (*Identity, error) {
	ident, err := c.svc.createAccount(ctx, c.id, email, password)
	if err != nil {
		return nil, err
	}
	c.publish(ident)
	return ident, nil
}

// VerifyCredentials はメールアドレスとパスワードでログインする。
func (c *Client) VerifyCredentials(ctx context.Context, email, password string) (*Identity, error) {
	ident, err := c.svc.verifyCredentials(ctx, c.id, email, password)
	if err != nil {
		return nil, err
	}
	c.publish(ident)
	return ident, nil
}

// FederatedLoginURL はGoogleの同意画面URLを返す。
func (c *Client) FederatedLoginURL(state string) string {
	return c.svc.federated.AuthCodeURL(state)
}

// CompleteFederatedSignIn は認可コードでGoogleログインを完了する。
func (c *Client) CompleteFederatedSignIn(ctx context.Context, code string) (*Identity, error) {
	ident, err := c.svc.completeFederatedSignIn(ctx, c.id, code)
	if err != nil {
		return nil, err
	}
	c.publish(ident)
	return ident, nil
}

// SignOut はログイン状態を破棄する。失敗した場合は状態を変えない。
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.svc.signOut(ctx, c.id); err != nil {
		return err
	}
	c.publish(nil)
	return nil
}

// OnAuthStateChanged はリスナーを登録する。
func (c *Client) OnAuthStateChanged(fn AuthStateListener) func() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	resolved := c.resolved
	current := c.current
	startRestore := !c.resolved && !c.restoring
	if startRestore {
		c.restoring = true
	}
	c.mu.Unlock()

	if resolved {
		fn(current)
	}
	if startRestore {
		go c.restore()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// restore は永続化されたログイン状態を読み込み、未確定であれば確定させて通知する。
// 読み込みに失敗した場合は未ログインとして確定する。
func (c *Client) restore() {
	ctx, cancel := context.WithTimeout(context.Background(), c.svc.config.RestoreTimeout)
	defer cancel()

	ident, err := c.svc.restore(ctx, c.id)
	if err != nil {
		slog.Warn("failed to restore provider session",
			slog.String("client_id", c.id),
			slog.String("error", err.Error()),
		)
		ident = nil
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.restoring = false
	if c.resolved {
		// 復元中にログイン・ログアウトが完了していればそちらを優先する
		c.mu.Unlock()
		return
	}
	c.current = ident
	c.resolved = true
	listeners := c.snapshotLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(ident)
	}
}

// publish は状態を確定させて全リスナーへ通知する。
func (c *Client) publish(ident *Identity) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.current = ident
	c.resolved = true
	listeners := c.snapshotLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(ident)
	}
}

func (c *Client) snapshotLocked() []AuthStateListener {
	listeners := make([]AuthStateListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	return listeners
}

// compile-time interface check
var _ Provider = (*Client)(nil)
