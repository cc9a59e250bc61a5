package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGoogleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	defaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	// ProviderGoogle はidentitiesテーブルに記録するプロバイダー名。
	ProviderGoogle = "google"
)

// ErrOAuthRejected はGoogleが認可コードまたはアクセストークンを拒否したことを表す。
var ErrOAuthRejected = errors.New("oauth: rejected by provider")

// FederatedUser は外部IdPから取得した利用者情報。
type FederatedUser struct {
	Provider       string
	ProviderUserID string
	Email          string
	EmailVerified  bool // IdPがメールアドレスの所有を確認済みか
	Name           string
}

// FederatedAuthenticator は外部IdPの認可コードフローを抽象化する。
type FederatedAuthenticator interface {
	// AuthCodeURL は同意画面のURLを生成する。
	AuthCodeURL(state string) string
	// Exchange は認可コードを利用者情報に交換する。
	Exchange(ctx context.Context, code string) (*FederatedUser, error)
}

// GoogleOAuthConfig はGoogle OAuthクライアントの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// HTTPClient が未指定の場合は10秒タイムアウトのクライアントを使う。
	HTTPClient *http.Client
}

// GoogleOAuth はGoogle OAuth 2.0の認可コードフローを実行する。
type GoogleOAuth struct {
	config GoogleOAuthConfig
	client *http.Client
}

// NewGoogleOAuth はGoogleOAuthを生成する。
func NewGoogleOAuth(config GoogleOAuthConfig) *GoogleOAuth {
	if config.AuthURL == "" {
		config.AuthURL = defaultGoogleAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGoogleUserInfoURL
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleOAuth{config: config, client: client}
}

// AuthCodeURL はGoogleの同意画面URLを生成する。
// 毎回アカウント選択を表示させるためprompt=select_accountを付与する。
func (g *GoogleOAuth) AuthCodeURL(state string) string {
	params := url.Values{
		"client_id":     {g.config.ClientID},
		"redirect_uri":  {g.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
		"prompt":        {"select_account"},
	}
	return g.config.AuthURL + "?" + params.Encode()
}

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Exchange は認可コードをアクセストークンに交換し、利用者情報を取得する。
// Googleが4xxを返した場合はErrOAuthRejectedをラップして返す。
// 通信エラーは*url.Errorのままラップされる。
func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (*FederatedUser, error) {
	// 1. 認可コードをアクセストークンに交換
	token, err := g.exchangeToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	// 2. アクセストークンで利用者情報を取得
	info, err := g.fetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	return &FederatedUser{
		Provider:       ProviderGoogle,
		ProviderUserID: info.Sub,
		Email:          info.Email,
		EmailVerified:  info.EmailVerified,
		Name:           info.Name,
	}, nil
}

func (g *GoogleOAuth) exchangeToken(ctx context.Context, code string) (*googleTokenResponse, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {g.config.ClientID},
		"client_secret": {g.config.ClientSecret},
		"redirect_uri":  {g.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := g.do(req)
	if err != nil {
		return nil, err
	}

	var token googleTokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response: %w", ErrOAuthRejected)
	}
	return &token, nil
}

func (g *GoogleOAuth) fetchUserInfo(ctx context.Context, accessToken string) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	body, err := g.do(req)
	if err != nil {
		return nil, err
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("empty sub in user info response")
	}
	if info.Email == "" {
		return nil, fmt.Errorf("empty email in user info response")
	}
	return &info, nil
}

// do はリクエストを送信し、200以外のステータスをエラーに変換する。
func (g *GoogleOAuth) do(req *http.Request) ([]byte, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("status %d: %s: %w", resp.StatusCode, string(body), ErrOAuthRejected)
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// compile-time interface check
var _ FederatedAuthenticator = (*GoogleOAuth)(nil)
