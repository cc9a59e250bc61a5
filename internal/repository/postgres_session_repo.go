package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/porttfolio/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したIdPセッションリポジトリ。
// セッションはクライアントIDをキーとし、1クライアントにつき高々1件を保持する。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Upsert はクライアントのセッションを作成または置き換える。
func (r *PostgresSessionRepo) Upsert(ctx context.Context, session *model.ProviderSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO provider_sessions (client_id, account_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (client_id) DO UPDATE
		 SET account_id = EXCLUDED.account_id,
		     expires_at = EXCLUDED.expires_at,
		     created_at = EXCLUDED.created_at`,
		session.ClientID, session.AccountID, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert provider session: %w", err)
	}
	return nil
}

// FindByClientID はクライアントの有効なセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByClientID(ctx context.Context, clientID string) (*model.ProviderSession, error) {
	session := &model.ProviderSession{}
	err := r.db.QueryRowContext(ctx,
		`SELECT client_id, account_id, expires_at, created_at
		 FROM provider_sessions
		 WHERE client_id = $1 AND expires_at > now()`,
		clientID,
	).Scan(&session.ClientID, &session.AccountID, &session.ExpiresAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find provider session: %w", err)
	}

	return session, nil
}

// DeleteByClientID はクライアントのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByClientID(ctx context.Context, clientID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM provider_sessions WHERE client_id = $1`,
		clientID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete provider session: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProviderSessionRepository = (*PostgresSessionRepo)(nil)
