package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
)

var ErrUnauthenticated = errors.New("google calendar is not authorized, run the login command")

const callbackPath = "/callback"

// Authorizer runs the installed-app OAuth flow and hands out authorized
// HTTP clients.
type Authorizer struct {
	oauthConfig *oauth2.Config
	store       TokenStore
	addr        string
}

// NewAuthorizer parses an OAuth client JSON (as downloaded from the Google
// Cloud console). addr is the host:port the login callback listens on.
func NewAuthorizer(credentials []byte, store TokenStore, addr string) (*Authorizer, error) {
	oauthConfig, err := googleoauth.ConfigFromJSON(credentials, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client credentials: %w", err)
	}
	return newAuthorizer(oauthConfig, store, addr), nil
}

func newAuthorizer(oauthConfig *oauth2.Config, store TokenStore, addr string) *Authorizer {
	return &Authorizer{oauthConfig: oauthConfig, store: store, addr: addr}
}

// Client returns an HTTP client using the stored token. Refreshed tokens are
// written back to the store.
func (a *Authorizer) Client(ctx context.Context) (*http.Client, error) {
	token, err := a.store.Load()
	if errors.Is(err, ErrTokenNotFound) {
		return nil, ErrUnauthenticated
	} else if err != nil {
		log.Error(err)
		return nil, err
	}
	source := &persistingTokenSource{
		base:  a.oauthConfig.TokenSource(ctx, token),
		store: a.store,
		last:  token.AccessToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, source)), nil
}

// Login serves the OAuth callback on the configured address, announces the
// consent URL and blocks until the user finished the flow or ctx is done.
func (a *Authorizer) Login(ctx context.Context, announce func(url string)) error {
	listener, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("unable to listen for the OAuth callback on %s: %w", a.addr, err)
	}

	oauthConfig := *a.oauthConfig
	oauthConfig.RedirectURL = "http://" + listener.Addr().String() + callbackPath

	receiver := newCallbackReceiver(uuid.New().String())
	router := mux.NewRouter()
	router.HandleFunc(callbackPath, receiver.handle).Methods("GET")
	server := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("OAuth callback server failed: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Tracef("Waiting for OAuth callback with state: %s", receiver.state)
	announce(oauthConfig.AuthCodeURL(receiver.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	var code string
	select {
	case <-ctx.Done():
		return ctx.Err()
	case result := <-receiver.results:
		if result.err != nil {
			return result.err
		}
		code = result.code
	}

	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		err := fmt.Errorf("unable to exchange code for token: %w", err)
		log.Error(err)
		return err
	}
	if err := a.store.Save(token); err != nil {
		return err
	}
	log.Info("Successfully stored Google auth token")
	return nil
}

type callbackResult struct {
	code string
	err  error
}

type callbackReceiver struct {
	state   string
	results chan callbackResult
}

func newCallbackReceiver(state string) *callbackReceiver {
	return &callbackReceiver{state: state, results: make(chan callbackResult, 1)}
}

func (c *callbackReceiver) handle(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("state") != c.state {
		log.Warn("OAuth callback with unexpected state")
		http.Error(w, "unexpected state", http.StatusBadRequest)
		return
	}
	var result callbackResult
	if reason := r.FormValue("error"); reason != "" {
		result.err = fmt.Errorf("authorization denied: %s", reason)
	} else if code := r.FormValue("code"); code == "" {
		result.err = errors.New("authorization callback without code")
	} else {
		result.code = code
	}

	select {
	case c.results <- result:
	default:
		// a result was already delivered
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if result.err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprintf(w, "Authorization failed: %v\n", result.err)
		return
	}
	_, _ = fmt.Fprintln(w, "Authorization complete, you can close this window.")
}
