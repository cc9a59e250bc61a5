// Package identity はアカウント、資格情報、フェデレーションログインを扱うIdPを提供する。
//
// Serviceはアプリケーション全体で1つ生成され、ブラウザ（クライアント）ごとの
// 認証ハンドルをClientで払い出す。ハンドルはProviderインターフェースを満たし、
// 認証状態の変化をリスナーへ通知する。
package identity

import (
	"context"
	"time"
)

// Identity はIdPが認識している認証済みアカウントを表す。
// 一度生成された値は変更しない。
type Identity struct {
	ID           string
	Email        string
	DisplayName  string
	CreatedAt    time.Time
	LastSignInAt time.Time
}

// AuthStateListener は認証状態の変化を受け取るコールバック。未ログインの場合はnilが渡される。
type AuthStateListener func(*Identity)

// Provider はクライアント単位のIdP操作を定義する。
type Provider interface {
	// CreateAccount はメールアドレスとパスワードでアカウントを作成し、そのままログインする。
	CreateAccount(ctx context.Context, email, password string) (*Identity, error)
	// VerifyCredentials はメールアドレスとパスワードを検証してログインする。
	VerifyCredentials(ctx context.Context, email, password string) (*Identity, error)
	// FederatedLoginURL はIdPがホストする同意画面のURLを返す。
	FederatedLoginURL(state string) string
	// CompleteFederatedSignIn は同意画面から戻った認可コードでログインを完了する。
	// codeが空の場合は利用者が同意をキャンセルしたものとして扱う。
	CompleteFederatedSignIn(ctx context.Context, code string) (*Identity, error)
	// SignOut はクライアントのログイン状態を破棄する。
	SignOut(ctx context.Context) error
	// OnAuthStateChanged はリスナーを登録し、登録解除関数を返す。
	// リスナーは現在の状態で一度呼ばれ、その後は状態が変わるたびに呼ばれる。
	OnAuthStateChanged(fn AuthStateListener) (unsubscribe func())
}
