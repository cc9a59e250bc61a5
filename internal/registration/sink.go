package registration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/porttfolio/internal/identity"
	"github.com/hitoshi/porttfolio/internal/model"
	"github.com/hitoshi/porttfolio/internal/repository"
)

// Profile は登録時に収集する資格情報以外の項目。
type Profile struct {
	Name            string
	Age             string
	DOB             string
	MaritalStatus   string
	Sex             string
	RiskLevel       string
	ExperienceLevel string
}

// ProfileSink は登録成功後にプロフィールを受け取る外部の保存先。
type ProfileSink interface {
	Save(ctx context.Context, ident *identity.Identity, profile Profile) error
}

// LogSink はプロフィールをログに出力して破棄する。
type LogSink struct{}

// Save はプロフィールをログに出力する。パスワードは含まれない。
func (LogSink) Save(_ context.Context, ident *identity.Identity, p Profile) error {
	slog.Info("registration profile collected",
		slog.String("account_id", ident.ID),
		slog.String("name", p.Name),
		slog.String("age", p.Age),
		slog.String("dob", p.DOB),
		slog.String("marital_status", p.MaritalStatus),
		slog.String("sex", p.Sex),
		slog.String("risk_level", p.RiskLevel),
		slog.String("experience_level", p.ExperienceLevel),
	)
	return nil
}

// RepositorySink はプロフィールをProfileRepositoryに保存する。
type RepositorySink struct {
	repo repository.ProfileRepository
	now  func() time.Time
}

// NewRepositorySink はRepositorySinkを生成する。
func NewRepositorySink(repo repository.ProfileRepository) *RepositorySink {
	return &RepositorySink{repo: repo, now: time.Now}
}

// Save はアカウントに紐づくプロフィールを保存する。
func (s *RepositorySink) Save(ctx context.Context, ident *identity.Identity, p Profile) error {
	err := s.repo.Save(ctx, &model.Profile{
		AccountID:       ident.ID,
		Name:            p.Name,
		Age:             p.Age,
		DOB:             p.DOB,
		MaritalStatus:   p.MaritalStatus,
		Sex:             p.Sex,
		RiskLevel:       p.RiskLevel,
		ExperienceLevel: p.ExperienceLevel,
		CreatedAt:       s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// compile-time interface checks
var _ ProfileSink = LogSink{}
var _ ProfileSink = (*RepositorySink)(nil)
