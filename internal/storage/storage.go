// Package storage はクライアントごとに分離された永続キーバリューストアを提供する。
// ブラウザのlocalStorageに相当し、テーマ設定などの保存先として使われる。
package storage

import (
	"context"
	"fmt"
)

// Backend は複数クライアントの値を保持する保存先。
// repository.LocalStorageRepositoryもこのインターフェースを満たす。
type Backend interface {
	Get(ctx context.Context, clientID, key string) (value string, ok bool, err error)
	Set(ctx context.Context, clientID, key, value string) error
}

// LocalStorage は1クライアントに閉じたキーバリューストア。
type LocalStorage interface {
	// GetItem はキーの値を返す。未設定の場合はok=falseを返す。
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	// SetItem はキーに値を保存する。
	SetItem(ctx context.Context, key, value string) error
}

// Scoped はBackendを1クライアントに限定したLocalStorage。
type Scoped struct {
	backend  Backend
	clientID string
}

// ForClient はクライアントIDでスコープしたLocalStorageを返す。
func ForClient(backend Backend, clientID string) *Scoped {
	return &Scoped{backend: backend, clientID: clientID}
}

// GetItem はキーの値を返す。
func (s *Scoped) GetItem(ctx context.Context, key string) (string, bool, error) {
	value, ok, err := s.backend.Get(ctx, s.clientID, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, ok, nil
}

// SetItem はキーに値を保存する。
func (s *Scoped) SetItem(ctx context.Context, key, value string) error {
	if err := s.backend.Set(ctx, s.clientID, key, value); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// compile-time interface check
var _ LocalStorage = (*Scoped)(nil)
