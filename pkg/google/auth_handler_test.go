package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klokku/calsync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type memoryTokenStore struct {
	mu    sync.Mutex
	token *oauth2.Token
	saves int
}

func (m *memoryTokenStore) Load() (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return nil, ErrTokenNotFound
	}
	t := *m.token
	return &t, nil
}

func (m *memoryTokenStore) Save(token *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := *token
	m.token = &t
	m.saves++
	return nil
}

func fakeTokenEndpoint(t *testing.T, accessToken string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  accessToken,
			"refresh_token": "refresh-" + r.PostForm.Get("grant_type"),
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testOAuthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Scopes:       []string{"calendar"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/auth",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func TestNewAuthorizer_ParsesInstalledCredentials(t *testing.T) {
	credentials := []byte(`{"installed":{"client_id":"id","client_secret":"s","auth_uri":"https://a","token_uri":"https://t","redirect_uris":["http://localhost"]}}`)

	auth, err := NewAuthorizer(credentials, &memoryTokenStore{}, "127.0.0.1:0")

	require.NoError(t, err)
	assert.Equal(t, "id", auth.oauthConfig.ClientID)

	_, err = NewAuthorizer([]byte("not json"), &memoryTokenStore{}, "127.0.0.1:0")
	assert.Error(t, err)
}

func TestAuthorizer_ClientWithoutToken(t *testing.T) {
	auth := newAuthorizer(testOAuthConfig("http://unused"), &memoryTokenStore{}, "")

	_, err := auth.Client(context.Background())

	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthorizer_ClientUsesStoredToken(t *testing.T) {
	store := &memoryTokenStore{token: &oauth2.Token{AccessToken: "stored", Expiry: time.Now().Add(time.Hour)}}
	auth := newAuthorizer(testOAuthConfig("http://unused"), store, "")
	var seen string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
	}))
	defer api.Close()

	client, err := auth.Client(context.Background())
	require.NoError(t, err)
	resp, err := client.Get(api.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "Bearer stored", seen)
	assert.Equal(t, 0, store.saves)
}

func TestAuthorizer_ClientPersistsRefreshedToken(t *testing.T) {
	tokens := fakeTokenEndpoint(t, "fresh")
	store := &memoryTokenStore{token: &oauth2.Token{
		AccessToken:  "expired",
		RefreshToken: "r1",
		Expiry:       time.Now().Add(-time.Hour),
	}}
	auth := newAuthorizer(testOAuthConfig(tokens.URL), store, "")
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer api.Close()

	client, err := auth.Client(context.Background())
	require.NoError(t, err)
	resp, err := client.Get(api.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, 1, store.saves)
	assert.Equal(t, "fresh", store.token.AccessToken)
}

func TestAuthorizer_Login(t *testing.T) {
	tokens := fakeTokenEndpoint(t, "granted")
	store := &memoryTokenStore{}
	auth := newAuthorizer(testOAuthConfig(tokens.URL), store, "127.0.0.1:0")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	callbackStatus := make(chan int, 1)
	announce := func(consent string) {
		u, err := url.Parse(consent)
		require.NoError(t, err)
		q := u.Query()
		assert.Equal(t, "offline", q.Get("access_type"))
		assert.Equal(t, "consent", q.Get("prompt"))
		callback := q.Get("redirect_uri") + "?code=abc&state=" + url.QueryEscape(q.Get("state"))
		go func() {
			resp, err := http.Get(callback)
			if err != nil {
				callbackStatus <- 0
				return
			}
			_ = resp.Body.Close()
			callbackStatus <- resp.StatusCode
		}()
	}

	err := auth.Login(ctx, announce)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, <-callbackStatus)
	require.NotNil(t, store.token)
	assert.Equal(t, "granted", store.token.AccessToken)
	assert.Equal(t, "refresh-authorization_code", store.token.RefreshToken)
}

func TestAuthorizer_LoginCancelled(t *testing.T) {
	auth := newAuthorizer(testOAuthConfig("http://unused"), &memoryTokenStore{}, "127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())

	err := auth.Login(ctx, func(string) { cancel() })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestCallbackReceiver(t *testing.T) {
	testCases := []struct {
		name       string
		query      string
		wantStatus int
		wantCode   string
		wantErr    bool
		delivered  bool
	}{
		{name: "code", query: "state=s1&code=abc", wantStatus: http.StatusOK, wantCode: "abc", delivered: true},
		{name: "denied", query: "state=s1&error=access_denied", wantStatus: http.StatusBadRequest, wantErr: true, delivered: true},
		{name: "missing code", query: "state=s1", wantStatus: http.StatusBadRequest, wantErr: true, delivered: true},
		{name: "wrong state", query: "state=other&code=abc", wantStatus: http.StatusBadRequest, delivered: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			receiver := newCallbackReceiver("s1")
			rr := httptest.NewRecorder()
			req := httptest.NewRequest("GET", callbackPath+"?"+tc.query, nil)

			receiver.handle(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)
			if !tc.delivered {
				assert.Len(t, receiver.results, 0)
				return
			}
			result := <-receiver.results
			assert.Equal(t, tc.wantCode, result.code)
			assert.Equal(t, tc.wantErr, result.err != nil)
		})
	}
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	store := NewFileTokenStore(path)

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrTokenNotFound)

	expiry := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(&oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: expiry}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	token, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "a", token.AccessToken)
	assert.Equal(t, "r", token.RefreshToken)
	assert.True(t, expiry.Equal(token.Expiry))
}

func TestFileTokenStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := NewFileTokenStore(path).Load()

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenNotFound)
}

func TestSecretVersionName(t *testing.T) {
	assert.Equal(t, "projects/p/secrets/s/versions/latest", secretVersionName("projects/p/secrets/s"))
	assert.Equal(t, "projects/p/secrets/s/versions/latest", secretVersionName("projects/p/secrets/s/"))
	assert.Equal(t, "projects/p/secrets/s/versions/3", secretVersionName("projects/p/secrets/s/versions/3"))
}

func TestLoadCredentials_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"installed":{}}`), 0o600))

	data, err := LoadCredentials(context.Background(), config.Google{CredentialsFile: path})
	require.NoError(t, err)
	assert.JSONEq(t, `{"installed":{}}`, string(data))

	_, err = LoadCredentials(context.Background(), config.Google{CredentialsFile: path + ".missing"})
	assert.Error(t, err)
}
