package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/porttfolio/internal/model"
	"github.com/hitoshi/porttfolio/internal/security"
)

// PostgresProfileRepo はPostgreSQLを使用した登録プロフィールリポジトリ。
// 保存前に全てのテキスト項目からHTMLを除去する。
type PostgresProfileRepo struct {
	db        *sql.DB
	sanitizer security.TextSanitizer
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB, sanitizer security.TextSanitizer) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db, sanitizer: sanitizer}
}

// Save はプロフィールを保存する。同一アカウントの既存行は上書きする。
func (r *PostgresProfileRepo) Save(ctx context.Context, profile *model.Profile) error {
	p := r.sanitize(profile)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (account_id, name, age, dob, marital_status, sex, risk_level, experience_level, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (account_id) DO UPDATE
		 SET name = EXCLUDED.name,
		     age = EXCLUDED.age,
		     dob = EXCLUDED.dob,
		     marital_status = EXCLUDED.marital_status,
		     sex = EXCLUDED.sex,
		     risk_level = EXCLUDED.risk_level,
		     experience_level = EXCLUDED.experience_level`,
		p.AccountID, p.Name, p.Age, p.DOB, p.MaritalStatus, p.Sex, p.RiskLevel, p.ExperienceLevel, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// sanitize はテキスト項目をサニタイズしたコピーを返す。元の値は変更しない。
func (r *PostgresProfileRepo) sanitize(profile *model.Profile) model.Profile {
	p := *profile
	if r.sanitizer == nil {
		return p
	}
	p.Name = r.sanitizer.Sanitize(p.Name)
	p.Age = r.sanitizer.Sanitize(p.Age)
	p.DOB = r.sanitizer.Sanitize(p.DOB)
	p.MaritalStatus = r.sanitizer.Sanitize(p.MaritalStatus)
	p.Sex = r.sanitizer.Sanitize(p.Sex)
	p.RiskLevel = r.sanitizer.Sanitize(p.RiskLevel)
	p.ExperienceLevel = r.sanitizer.Sanitize(p.ExperienceLevel)
	return p
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
