package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/porttfolio/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

const accountColumns = `id, email, display_name, created_at, last_sign_in_at`

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

// FindByEmail はメールアドレスでアカウントを検索する。大文字小文字は区別しない。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, normalizeEmail(email))
}

func (r *PostgresAccountRepo) findOne(ctx context.Context, query string, arg string) (*model.Account, error) {
	account := &model.Account{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID, &account.Email, &account.DisplayName, &account.CreatedAt, &account.LastSignInAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, nil
}

// CreateWithCredential はアカウントとパスワードハッシュを同一トランザクションで作成する。
func (r *PostgresAccountRepo) CreateWithCredential(ctx context.Context, account *model.Account, passwordHash string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertAccount(ctx, tx, account); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO credentials (account_id, password_hash, created_at) VALUES ($1, $2, $3)`,
		account.ID, passwordHash, account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateWithIdentity はアカウントとフェデレーションIDを同一トランザクションで作成する。
func (r *PostgresAccountRepo) CreateWithIdentity(ctx context.Context, account *model.Account, identity *model.LinkedIdentity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertAccount(ctx, tx, account); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO identities (id, account_id, provider, provider_user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		identity.ID, identity.AccountID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// PasswordHash はアカウントのパスワードハッシュを返す。資格情報がない場合は空文字列を返す。
func (r *PostgresAccountRepo) PasswordHash(ctx context.Context, accountID string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx,
		`SELECT password_hash FROM credentials WHERE account_id = $1`,
		accountID,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find credential: %w", err)
	}
	return hash, nil
}

// TouchLastSignIn は最終ログイン日時を更新する。
func (r *PostgresAccountRepo) TouchLastSignIn(ctx context.Context, accountID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET last_sign_in_at = $2 WHERE id = $1`,
		accountID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to update last sign-in: %w", err)
	}
	return nil
}

// insertAccount はトランザクション内でaccountsに1行挿入する。
// メールアドレスの一意制約違反はErrDuplicateに変換する。
func insertAccount(ctx context.Context, tx *sql.Tx, account *model.Account) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (id, email, display_name, created_at, last_sign_in_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		account.ID, normalizeEmail(account.Email), account.DisplayName, account.CreatedAt, account.LastSignInAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// normalizeEmail は検索と一意性判定に使うメールアドレスの正規形を返す。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
