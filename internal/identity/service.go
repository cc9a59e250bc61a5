package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/porttfolio/internal/model"
	"github.com/hitoshi/porttfolio/internal/repository"
)

// ServiceConfig はIdPサービスの設定。
type ServiceConfig struct {
	SessionMaxAge     int           // ログイン状態の有効期間（秒）
	MinPasswordLength int           // パスワードの最小文字数
	RestoreTimeout    time.Duration // ログイン状態の復元に使うタイムアウト
}

// Service はアカウントと資格情報を管理し、クライアントごとのログイン状態を永続化する。
type Service struct {
	accounts   repository.AccountRepository
	identities repository.IdentityRepository
	sessions   repository.ProviderSessionRepository
	federated  FederatedAuthenticator
	hasher     PasswordHasher
	config     ServiceConfig
	now        func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	accounts repository.AccountRepository,
	identities repository.IdentityRepository,
	sessions repository.ProviderSessionRepository,
	federated FederatedAuthenticator,
	hasher PasswordHasher,
	config ServiceConfig,
) *Service {
	if config.MinPasswordLength <= 0 {
		config.MinPasswordLength = 6
	}
	if config.RestoreTimeout <= 0 {
		config.RestoreTimeout = 10 * time.Second
	}
	return &Service{
		accounts:   accounts,
		identities: identities,
		sessions:   sessions,
		federated:  federated,
		hasher:     hasher,
		config:     config,
		now:        time.Now,
	}
}

// Client は指定クライアントの認証ハンドルを生成する。
// 同じクライアントIDに対して複数のハンドルを生成しても永続化された状態は共有されるが、
// リスナーはハンドルごとに独立している。
func (s *Service) Client(clientID string) *Client {
	return newClient(clientID, s)
}

// createAccount はアカウントを作成し、クライアントをログイン状態にする。
func (s *Service) createAccount(ctx context.Context, clientID, email, password string) (*Identity, error) {
	// 1. 入力の検証
	email, ok := normalizeEmail(email)
	if !ok {
		return nil, newError(CodeInvalidEmail, "The email address is badly formatted.", nil)
	}
	if len([]rune(password)) < s.config.MinPasswordLength {
		return nil, newError(CodeWeakPassword,
			fmt.Sprintf("Password should be at least %d characters.", s.config.MinPasswordLength), nil)
	}

	// 2. パスワードのハッシュ化
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, errInternal(err)
	}

	// 3. アカウントと資格情報を作成
	now := s.timestamp()
	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		CreatedAt:    now,
		LastSignInAt: now,
	}
	if err := s.accounts.CreateWithCredential(ctx, account, hash); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(CodeEmailAlreadyInUse, "The email address is already in use by another account.", err)
		}
		return nil, errInternal(err)
	}

	// 4. ログイン状態を永続化
	if err := s.startSession(ctx, clientID, account.ID); err != nil {
		return nil, errInternal(err)
	}

	slog.Info("account created",
		slog.String("account_id", account.ID),
		slog.String("client_id", clientID),
	)
	return toIdentity(account), nil
}

// verifyCredentials はメールアドレスとパスワードを検証し、クライアントをログイン状態にする。
// 未登録、パスワード未設定、不一致はいずれもauth/invalid-credentialになる。
func (s *Service) verifyCredentials(ctx context.Context, clientID, email, password string) (*Identity, error) {
	email, ok := normalizeEmail(email)
	if !ok {
		return nil, newError(CodeInvalidEmail, "The email address is badly formatted.", nil)
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, errInternal(err)
	}
	if account == nil {
		return nil, errInvalidCredential()
	}

	hash, err := s.accounts.PasswordHash(ctx, account.ID)
	if err != nil {
		return nil, errInternal(err)
	}
	if hash == "" {
		return nil, errInvalidCredential()
	}

	match, err := s.hasher.Verify(password, hash)
	if err != nil {
		return nil, errInternal(err)
	}
	if !match {
		return nil, errInvalidCredential()
	}

	return s.signInExisting(ctx, clientID, account)
}

// completeFederatedSignIn は認可コードを交換し、対応するアカウントでログインする。
// 初回のGoogleログインではアカウントを作成し、同じメールアドレスのアカウントがあれば紐付ける。
// 紐付けはIdPがメールアドレスを確認済みの場合に限る。
func (s *Service) completeFederatedSignIn(ctx context.Context, clientID, code string) (*Identity, error) {
	if code == "" {
		return nil, newError(CodePopupClosedByUser, "The sign-in was cancelled before it completed.", nil)
	}

	// 1. 認可コードを利用者情報に交換
	user, err := s.federated.Exchange(ctx, code)
	if err != nil {
		return nil, classifyFederatedError(err)
	}

	// 2. 紐付け済みのアカウントを検索
	linked, err := s.identities.FindByProviderAndProviderUserID(ctx, user.Provider, user.ProviderUserID)
	if err != nil {
		return nil, errInternal(err)
	}
	if linked != nil {
		account, err := s.accounts.FindByID(ctx, linked.AccountID)
		if err != nil {
			return nil, errInternal(err)
		}
		if account == nil {
			return nil, errInternal(fmt.Errorf("identity %s references missing account", linked.ID))
		}
		return s.signInExisting(ctx, clientID, account)
	}

	now := s.timestamp()

	// 3a. 同じメールアドレスのアカウントがあれば紐付けてログイン
	account, err := s.accounts.FindByEmail(ctx, user.Email)
	if err != nil {
		return nil, errInternal(err)
	}
	if account != nil {
		if !user.EmailVerified {
			slog.Warn("refused to link unverified federated email",
				slog.String("account_id", account.ID),
				slog.String("provider", user.Provider),
			)
			return nil, newError(CodeAccountExists,
				"An account already exists with the same email address but different sign-in credentials.", nil)
		}
		err := s.identities.Create(ctx, &model.LinkedIdentity{
			ID:             uuid.New().String(),
			AccountID:      account.ID,
			Provider:       user.Provider,
			ProviderUserID: user.ProviderUserID,
			CreatedAt:      now,
		})
		if err != nil {
			return nil, errInternal(err)
		}
		slog.Info("federated identity linked",
			slog.String("account_id", account.ID),
			slog.String("provider", user.Provider),
		)
		return s.signInExisting(ctx, clientID, account)
	}

	// 3b. 新規アカウントを作成（作成日時と最終ログイン日時は同一）
	email, _ := normalizeEmail(user.Email)
	account = &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  user.Name,
		CreatedAt:    now,
		LastSignInAt: now,
	}
	link := &model.LinkedIdentity{
		ID:             uuid.New().String(),
		AccountID:      account.ID,
		Provider:       user.Provider,
		ProviderUserID: user.ProviderUserID,
		CreatedAt:      now,
	}
	if err := s.accounts.CreateWithIdentity(ctx, account, link); err != nil {
		return nil, errInternal(err)
	}
	if err := s.startSession(ctx, clientID, account.ID); err != nil {
		return nil, errInternal(err)
	}

	slog.Info("account created",
		slog.String("account_id", account.ID),
		slog.String("client_id", clientID),
		slog.String("provider", user.Provider),
	)
	return toIdentity(account), nil
}

// signOut はクライアントのログイン状態を削除する。
func (s *Service) signOut(ctx context.Context, clientID string) error {
	if err := s.sessions.DeleteByClientID(ctx, clientID); err != nil {
		return errInternal(err)
	}
	slog.Info("client signed out", slog.String("client_id", clientID))
	return nil
}

// restore は永続化されたログイン状態からIdentityを復元する。未ログインの場合はnilを返す。
func (s *Service) restore(ctx context.Context, clientID string) (*Identity, error) {
	session, err := s.sessions.FindByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to find provider session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	account, err := s.accounts.FindByID(ctx, session.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, nil
	}
	return toIdentity(account), nil
}

// signInExisting は既存アカウントの最終ログイン日時を更新し、ログイン状態を永続化する。
func (s *Service) signInExisting(ctx context.Context, clientID string, account *model.Account) (*Identity, error) {
	now := s.timestamp()
	if err := s.accounts.TouchLastSignIn(ctx, account.ID, now); err != nil {
		return nil, errInternal(err)
	}
	if err := s.startSession(ctx, clientID, account.ID); err != nil {
		return nil, errInternal(err)
	}

	signedIn := *account
	signedIn.LastSignInAt = now
	slog.Info("account signed in",
		slog.String("account_id", account.ID),
		slog.String("client_id", clientID),
	)
	return toIdentity(&signedIn), nil
}

func (s *Service) startSession(ctx context.Context, clientID, accountID string) error {
	now := s.timestamp()
	return s.sessions.Upsert(ctx, &model.ProviderSession{
		ClientID:  clientID,
		AccountID: accountID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	})
}

// timestamp はPostgreSQLの精度（マイクロ秒）に丸めた現在時刻を返す。
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// classifyFederatedError は認可コード交換の失敗をIdPのエラーコードに変換する。
func classifyFederatedError(err error) *Error {
	var urlErr *url.Error
	switch {
	case errors.Is(err, ErrOAuthRejected):
		return newError(CodeInvalidCredential, "The authorization code was rejected by Google.", err)
	case errors.As(err, &urlErr):
		return newError(CodeNetworkRequestFailed, "A network error has occurred.", err)
	default:
		return errInternal(err)
	}
}

// normalizeEmail はメールアドレスを検証し、小文字化した形式を返す。
// 表示名付きの形式（"Name <a@b.com>"）は受け付けない。
func normalizeEmail(email string) (string, bool) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}
	return strings.ToLower(email), true
}

func toIdentity(account *model.Account) *Identity {
	return &Identity{
		ID:           account.ID,
		Email:        account.Email,
		DisplayName:  account.DisplayName,
		CreatedAt:    account.CreatedAt,
		LastSignInAt: account.LastSignInAt,
	}
}
