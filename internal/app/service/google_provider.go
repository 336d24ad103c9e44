package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"foundation_portal/internal/common"
	"foundation_portal/internal/domain/model"

	"golang.org/x/oauth2"
)

const (
	googleAuthURL      = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL     = "https://oauth2.googleapis.com/token"
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v3/userinfo"
	googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
)

// OAuthProvider is the federated login collaborator used by the HTTP layer.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, accessToken string) (OAuthAssertion, error)
}

type GoogleProvider struct {
	config       *oauth2.Config
	userInfoURL  string
	tokenInfoURL string
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  googleAuthURL,
				TokenURL: googleTokenURL,
			},
		},
		userInfoURL:  googleUserInfoURL,
		tokenInfoURL: googleTokenInfoURL,
	}
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google code exchange: %w: %v", common.ErrUnauthorized, err)
	}
	return token, nil
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type googleTokenInfo struct {
	Aud string `json:"aud"`
	Azp string `json:"azp"`
	Sub string `json:"sub"`
}

// FetchProfile resolves accessToken to the profile Google vouches for. The token must
// have been issued to this client, and unverified emails are refused because accounts
// are linked by email.
func (p *GoogleProvider) FetchProfile(ctx context.Context, accessToken string) (OAuthAssertion, error) {
	if accessToken == "" {
		return OAuthAssertion{}, common.ErrInvalidCredentials
	}
	tokenInfo, err := p.checkAudience(ctx, accessToken)
	if err != nil {
		return OAuthAssertion{}, err
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return OAuthAssertion{}, fmt.Errorf("build userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return OAuthAssertion{}, fmt.Errorf("google userinfo: %w: %v", common.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return OAuthAssertion{}, common.ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		return OAuthAssertion{}, fmt.Errorf("google userinfo returned %d: %w", resp.StatusCode, common.ErrServiceUnavailable)
	}

	var info googleUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return OAuthAssertion{}, fmt.Errorf("decode google userinfo: %w: %v", common.ErrServiceUnavailable, err)
	}
	if info.Sub == "" || info.Email == "" || !info.EmailVerified {
		return OAuthAssertion{}, common.ErrInvalidCredentials
	}
	if tokenInfo.Sub != "" && tokenInfo.Sub != info.Sub {
		return OAuthAssertion{}, common.ErrInvalidCredentials
	}

	return OAuthAssertion{
		Provider:          model.ProviderGoogle,
		ProviderAccountID: info.Sub,
		Email:             info.Email,
		Name:              info.Name,
		Image:             info.Picture,
	}, nil
}

// checkAudience asks Google who accessToken was minted for. Userinfo answers for tokens
// of any client, so a token held by another app must not open a session here.
func (p *GoogleProvider) checkAudience(ctx context.Context, accessToken string) (googleTokenInfo, error) {
	endpoint := p.tokenInfoURL + "?" + url.Values{"access_token": {accessToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return googleTokenInfo{}, fmt.Errorf("build tokeninfo request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return googleTokenInfo{}, fmt.Errorf("google tokeninfo: %w: %v", common.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	// Google answers 400 for expired, revoked or malformed tokens.
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return googleTokenInfo{}, common.ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		return googleTokenInfo{}, fmt.Errorf("google tokeninfo returned %d: %w", resp.StatusCode, common.ErrServiceUnavailable)
	}

	var info googleTokenInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return googleTokenInfo{}, fmt.Errorf("decode google tokeninfo: %w: %v", common.ErrServiceUnavailable, err)
	}
	if info.Aud != p.config.ClientID && info.Azp != p.config.ClientID {
		return googleTokenInfo{}, fmt.Errorf("google token issued to %q: %w", info.Aud, common.ErrInvalidCredentials)
	}
	return info, nil
}
