// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/porttfolio/internal/model"
)

// ErrDuplicate は一意制約違反を表す。
// メールアドレスやフェデレーションIDの重複登録時に返される。
var ErrDuplicate = errors.New("repository: duplicate key")

// AccountRepository はアカウントと資格情報の永続化インターフェース。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// CreateWithCredential はアカウントとパスワードハッシュを同一トランザクションで作成する。
	// メールアドレスが既に登録済みの場合はErrDuplicateを返す。
	CreateWithCredential(ctx context.Context, account *model.Account, passwordHash string) error

	// CreateWithIdentity はアカウントとフェデレーションIDを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, account *model.Account, identity *model.LinkedIdentity) error

	// PasswordHash はアカウントのパスワードハッシュを返す。
	// パスワード資格情報を持たない（フェデレーションのみの）場合は空文字列を返す。
	PasswordHash(ctx context.Context, accountID string) (string, error)

	// TouchLastSignIn は最終ログイン日時を更新する。
	TouchLastSignIn(ctx context.Context, accountID string, at time.Time) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idで紐付けを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.LinkedIdentity, error)

	// Create は既存アカウントに紐付けを追加する。
	Create(ctx context.Context, identity *model.LinkedIdentity) error
}

// ProviderSessionRepository はクライアントごとのIdPセッションの永続化インターフェース。
type ProviderSessionRepository interface {
	// Upsert はクライアントのセッションを作成または置き換える。
	Upsert(ctx context.Context, session *model.ProviderSession) error
	// FindByClientID はクライアントの有効なセッションを取得する。期限切れまたは未登録の場合はnilを返す。
	FindByClientID(ctx context.Context, clientID string) (*model.ProviderSession, error)
	// DeleteByClientID はクライアントのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByClientID(ctx context.Context, clientID string) error
}

// LocalStorageRepository はクライアントごとのキーバリュー永続化インターフェース。
// ブラウザのlocalStorageに相当する。
type LocalStorageRepository interface {
	// Get はキーの値を返す。未設定の場合はok=falseを返す。
	Get(ctx context.Context, clientID, key string) (value string, ok bool, err error)
	// Set はキーの値をUPSERTする。
	Set(ctx context.Context, clientID, key, value string) error
}

// ProfileRepository は登録時プロフィールの永続化インターフェース。
type ProfileRepository interface {
	// Save はプロフィールを保存する。同一アカウントの既存行は上書きする。
	Save(ctx context.Context, profile *model.Profile) error
}
