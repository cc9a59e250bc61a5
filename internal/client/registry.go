// Package client はブラウザごとのアプリケーションインスタンス（クライアント）を管理する。
//
// 1つのクライアントはSession Store、テーマ設定、表示中の登録ウィザードを1つずつ持つ。
// 一定時間アクセスのないクライアントはバックグラウンドで破棄され、Session Storeは閉じられる。
package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/porttfolio/internal/identity"
	"github.com/hitoshi/porttfolio/internal/registration"
	"github.com/hitoshi/porttfolio/internal/session"
	"github.com/hitoshi/porttfolio/internal/storage"
	"github.com/hitoshi/porttfolio/internal/theme"
)

// Client は1つのブラウザに対応するアプリケーションインスタンス。
type Client struct {
	ID      string
	Session *session.Store
	Theme   *theme.Store

	mu       sync.Mutex
	wizard   *registration.Wizard
	lastSeen time.Time
}

// MountWizard は空の登録ウィザードを生成して保持する。既存のウィザードは破棄される。
func (c *Client) MountWizard() *registration.Wizard {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wizard = registration.NewWizard()
	return c.wizard
}

// Wizard は表示中の登録ウィザードを返す。表示中でない場合はnilを返す。
func (c *Client) Wizard() *registration.Wizard {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wizard
}

// UnmountWizard は登録ウィザードを破棄する。他の画面へ遷移したときに呼ぶ。
func (c *Client) UnmountWizard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wizard = nil
}

func (c *Client) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *Client) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// ProviderFactory はクライアントIDに対応するIdPハンドルを生成する。
type ProviderFactory func(clientID string) identity.Provider

// ActiveGauge は管理中のクライアント数を記録する。
type ActiveGauge interface {
	SetActiveClients(n int)
}

// Options はレジストリの設定。
type Options struct {
	IdleTimeout   time.Duration // 最終アクセスからこの時間を超えたクライアントを破棄する
	SweepInterval time.Duration // 破棄処理の実行間隔
	Gauge         ActiveGauge   // nilでもよい
}

// Registry はクライアントIDからClientを引くレジストリ。
type Registry struct {
	newProvider ProviderFactory
	backend     storage.Backend
	opts        Options
	now         func() time.Time

	mu      sync.Mutex
	clients map[string]*Client

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRegistry はRegistryを生成する。破棄処理はStartで開始する。
func NewRegistry(newProvider ProviderFactory, backend storage.Backend, opts Options) *Registry {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	return &Registry{
		newProvider: newProvider,
		backend:     backend,
		opts:        opts,
		now:         time.Now,
		clients:     make(map[string]*Client),
		stopCh:      make(chan struct{}),
	}
}

// Get はクライアントを返す。存在しない場合は生成する。
// 生成時にSession StoreがIdPの購読を開始し、テーマ設定を読み込む。
func (r *Registry) Get(ctx context.Context, id string) *Client {
	now := r.now()

	r.mu.Lock()
	if c, ok := r.clients[id]; ok {
		r.mu.Unlock()
		c.touch(now)
		return c
	}
	r.mu.Unlock()

	// テーマ設定の読み込みはI/Oを伴うためロック外で行う
	c := &Client{
		ID:       id,
		Session:  session.NewStore(r.newProvider(id)),
		Theme:    theme.Load(ctx, storage.ForClient(r.backend, id)),
		lastSeen: now,
	}

	r.mu.Lock()
	if existing, ok := r.clients[id]; ok {
		// 同時に生成された場合は先に登録された方を使う
		r.mu.Unlock()
		c.Session.Close()
		existing.touch(now)
		return existing
	}
	r.clients[id] = c
	n := len(r.clients)
	r.mu.Unlock()

	r.reportActive(n)
	slog.Debug("client created", slog.String("client_id", id))
	return c
}

// Len は管理中のクライアント数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Evict は最終アクセスがIdleTimeoutより古いクライアントを破棄し、破棄した数を返す。
func (r *Registry) Evict() int {
	cutoff := r.now().Add(-r.opts.IdleTimeout)

	r.mu.Lock()
	var idle []*Client
	for id, c := range r.clients {
		if c.idleSince().Before(cutoff) {
			idle = append(idle, c)
			delete(r.clients, id)
		}
	}
	n := len(r.clients)
	r.mu.Unlock()

	for _, c := range idle {
		c.Session.Close()
	}
	if len(idle) > 0 {
		r.reportActive(n)
		slog.Info("idle clients evicted",
			slog.Int("evicted", len(idle)),
			slog.Int("active", n),
		)
	}
	return len(idle)
}

// Start はバックグラウンドの破棄処理を開始する。
func (r *Registry) Start() {
	go r.sweepLoop()
}

// Stop はバックグラウンドの破棄処理を停止し、全クライアントを閉じる。
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)

		r.mu.Lock()
		clients := r.clients
		r.clients = make(map[string]*Client)
		r.mu.Unlock()

		for _, c := range clients {
			c.Session.Close()
		}
		r.reportActive(0)
	})
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Evict()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) reportActive(n int) {
	if r.opts.Gauge != nil {
		r.opts.Gauge.SetActiveClients(n)
	}
}
