// Package guard はログインが必要な画面へのナビゲーション可否を判定する。
//
// 判定は認証状態のみから決まり、状態が未確定（IsLoading）の間は
// リダイレクトもレンダリングもせずに保留する。
package guard

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/porttfolio/internal/session"
)

// Decision はナビゲーションに対する判定結果。
type Decision int

const (
	// Suspend は状態が未確定のため何も表示しないことを表す。
	Suspend Decision = iota
	// Render は画面を表示してよいことを表す。
	Render
	// Redirect はログイン画面へ転送することを表す。
	Redirect
)

// String はメトリクスとログに使う名前を返す。
func (d Decision) String() string {
	switch d {
	case Suspend:
		return "suspend"
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decide は認証状態から判定を返す。
func Decide(st session.State) Decision {
	switch {
	case st.IsLoading:
		return Suspend
	case st.Identity != nil:
		return Render
	default:
		return Redirect
	}
}

// StoreLookup はリクエストに対応するクライアントのSession Storeを返す。
type StoreLookup func(r *http.Request) *session.Store

// DecisionRecorder は判定結果を記録する。
type DecisionRecorder interface {
	RecordGuardDecision(decision string)
}

// Options はミドルウェアの設定。
type Options struct {
	// SuspendTimeout は状態の確定を待つ最大時間。
	SuspendTimeout time.Duration
	// LoginPath はリダイレクト先。
	LoginPath string
	// Recorder が非nilの場合、判定結果を記録する。
	Recorder DecisionRecorder
}

type stateKey struct{}

// StateFrom はRender判定時の認証状態をコンテキストから取得する。
func StateFrom(ctx context.Context) (session.State, bool) {
	st, ok := ctx.Value(stateKey{}).(session.State)
	return st, ok
}

// Middleware はログイン必須の画面を保護するミドルウェアを返す。
//
// 状態が未確定の間は状態変化を待って判定し直す。
// SuspendTimeoutまたはリクエストのコンテキストが先に終了した場合は
// 本文なしの503とRetry-Afterを返す。
func Middleware(lookup StoreLookup, opts Options) func(http.Handler) http.Handler {
	if opts.SuspendTimeout <= 0 {
		opts.SuspendTimeout = 5 * time.Second
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := lookup(r)
			if store == nil {
				renderNothing(w, opts)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), opts.SuspendTimeout)
			defer cancel()

			for {
				st, changed := store.Snapshot()
				decision := Decide(st)

				switch decision {
				case Render:
					record(opts, decision)
					next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), stateKey{}, st)))
					return
				case Redirect:
					record(opts, decision)
					status := http.StatusFound
					if r.Method != http.MethodGet && r.Method != http.MethodHead {
						status = http.StatusSeeOther
					}
					http.Redirect(w, r, opts.LoginPath, status)
					return
				}

				select {
				case <-changed:
				case <-ctx.Done():
					record(opts, Suspend)
					renderNothing(w, opts)
					return
				}
			}
		})
	}
}

func renderNothing(w http.ResponseWriter, opts Options) {
	retry := int(opts.SuspendTimeout.Round(time.Second) / time.Second)
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusServiceUnavailable)
}

func record(opts Options, d Decision) {
	if opts.Recorder != nil {
		opts.Recorder.RecordGuardDecision(d.String())
	}
}
