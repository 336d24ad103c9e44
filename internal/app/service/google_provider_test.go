package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"foundation_portal/internal/common"
	"foundation_portal/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGoogleClientID = "portal-client"

// newGoogleServer fakes userinfo at / and tokeninfo at /tokeninfo. Only "good-token"
// is accepted; its audience is aud.
func newGoogleServer(t *testing.T, aud, body string) (*GoogleProvider, func() []string) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []string
	)
	record := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, path)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/tokeninfo", func(w http.ResponseWriter, r *http.Request) {
		record(r.URL.Path)
		if r.URL.Query().Get("access_token") != "good-token" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"aud":"` + aud + `","azp":"` + aud + `","sub":"1098","expires_in":"3599"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		record(r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	provider := NewGoogleProvider(testGoogleClientID, "secret", "https://portal.test/api/auth/callback/google")
	provider.userInfoURL = srv.URL + "/"
	provider.tokenInfoURL = srv.URL + "/tokeninfo"
	return provider, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), calls...)
	}
}

func TestGoogleFetchProfile(t *testing.T) {
	provider, _ := newGoogleServer(t, testGoogleClientID,
		`{"sub":"1098","email":"ana@x.test","email_verified":true,"name":"Ana","picture":"https://img.test/a.png"}`)

	assertion, err := provider.FetchProfile(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, OAuthAssertion{
		Provider:          model.ProviderGoogle,
		ProviderAccountID: "1098",
		Email:             "ana@x.test",
		Name:              "Ana",
		Image:             "https://img.test/a.png",
	}, assertion)

	_, err = provider.FetchProfile(context.Background(), "bad-token")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestGoogleFetchProfileRejectsTokenOfAnotherClient(t *testing.T) {
	provider, calls := newGoogleServer(t, "some-other-client",
		`{"sub":"1098","email":"admin@x.test","email_verified":true}`)

	_, err := provider.FetchProfile(context.Background(), "good-token")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Equal(t, []string{"/tokeninfo"}, calls(), "userinfo must not be consulted")
}

func TestGoogleFetchProfileRejectsSubjectMismatch(t *testing.T) {
	provider, _ := newGoogleServer(t, testGoogleClientID,
		`{"sub":"someone-else","email":"ana@x.test","email_verified":true}`)

	_, err := provider.FetchProfile(context.Background(), "good-token")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestGoogleFetchProfileRequiresVerifiedEmail(t *testing.T) {
	provider, _ := newGoogleServer(t, testGoogleClientID, `{"sub":"1098","email":"ana@x.test","email_verified":false}`)

	_, err := provider.FetchProfile(context.Background(), "good-token")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestGoogleAuthCodeURL(t *testing.T) {
	provider := NewGoogleProvider("client-123", "secret", "https://portal.test/api/auth/callback/google")

	url := provider.AuthCodeURL("state-xyz")
	assert.True(t, strings.HasPrefix(url, googleAuthURL))
	assert.Contains(t, url, "client_id=client-123")
	assert.Contains(t, url, "state=state-xyz")
}
