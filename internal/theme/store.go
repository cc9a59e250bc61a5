// Package theme はクライアントごとの表示モード（ダークモード）設定を提供する。
package theme

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/porttfolio/internal/storage"
)

// StorageKey は設定を保存するキー。値はJSONの真偽値。
const StorageKey = "darkMode"

// Store はダークモード設定を保持する。
// トグル時は保存が完了してから戻り、保存に失敗した場合は値を元に戻す。
type Store struct {
	storage storage.LocalStorage

	mu       sync.Mutex
	darkMode bool
}

// Load は保存先から設定を読み込んでStoreを生成する。
// 未保存または不正な値の場合はfalseとし、読み込んだ値をそのまま書き戻す。
// 保存先から読み込めなかった場合はfalseで生成し、保存済みの値を上書きしない。
// 書き戻しに失敗してもStoreは生成する。
func Load(ctx context.Context, ls storage.LocalStorage) *Store {
	s := &Store{storage: ls}

	raw, ok, err := ls.GetItem(ctx, StorageKey)
	switch {
	case err != nil:
		slog.Warn("failed to load theme preference", slog.String("error", err.Error()))
		return s
	case ok:
		var v bool
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			slog.Warn("ignoring malformed theme preference",
				slog.String("value", raw),
				slog.String("error", err.Error()),
			)
		} else {
			s.darkMode = v
		}
	}

	if err := s.persist(ctx, s.darkMode); err != nil {
		slog.Warn("failed to write back theme preference", slog.String("error", err.Error()))
	}
	return s
}

// Get は現在の設定を返す。
func (s *Store) Get() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.darkMode
}

// Toggle は設定を反転して保存し、新しい値を返す。
// 保存に失敗した場合は元の値を維持してエラーを返す。
func (s *Store) Toggle(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := !s.darkMode
	if err := s.persist(ctx, next); err != nil {
		return s.darkMode, fmt.Errorf("failed to persist theme preference: %w", err)
	}
	s.darkMode = next
	return next, nil
}

func (s *Store) persist(ctx context.Context, v bool) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.storage.SetItem(ctx, StorageKey, string(raw))
}
