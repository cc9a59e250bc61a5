package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresLocalStorageRepo はPostgreSQLを使用したクライアントごとのキーバリューリポジトリ。
type PostgresLocalStorageRepo struct {
	db *sql.DB
}

// NewPostgresLocalStorageRepo はPostgresLocalStorageRepoを生成する。
func NewPostgresLocalStorageRepo(db *sql.DB) *PostgresLocalStorageRepo {
	return &PostgresLocalStorageRepo{db: db}
}

// Get はキーの値を返す。未設定の場合はok=falseを返す。
func (r *PostgresLocalStorageRepo) Get(ctx context.Context, clientID, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM local_storage WHERE client_id = $1 AND key = $2`,
		clientID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read local storage: %w", err)
	}
	return value, true, nil
}

// Set はキーの値をUPSERTする。
func (r *PostgresLocalStorageRepo) Set(ctx context.Context, clientID, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO local_storage (client_id, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (client_id, key) DO UPDATE
		 SET value = EXCLUDED.value, updated_at = now()`,
		clientID, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write local storage: %w", err)
	}
	return nil
}

// compile-time interface check
var _ LocalStorageRepository = (*PostgresLocalStorageRepo)(nil)
