package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/metoffice/owa-checker/internal/config"
	"github.com/metoffice/owa-checker/internal/logger"
)

// Interactive flow failures. Nothing is persisted when any of these occur.
var (
	// ErrStateMismatch indicates the redirect carried a state token that
	// does not match the one generated for this session (possible CSRF).
	ErrStateMismatch = errors.New("auth: state token mismatch")

	// ErrFlowTimeout indicates no redirect arrived within the wait window.
	ErrFlowTimeout = errors.New("auth: timed out waiting for sign-in")

	// ErrUserDenied indicates the user cancelled the consent prompt.
	ErrUserDenied = errors.New("auth: sign-in was cancelled")
)

// DefaultFlowTimeout bounds how long the local listener waits for the
// browser redirect.
const DefaultFlowTimeout = 5 * time.Minute

// UserLookup resolves the signed-in user's address from an access token,
// used to greet the user on the confirmation page.
type UserLookup func(ctx context.Context, accessToken string) (string, error)

// Flow performs the one-time interactive authorization-code grant: it
// directs the user's browser at the authorize endpoint, captures the
// redirect on a short-lived loopback listener, exchanges the code and
// persists the resulting token pair.
type Flow struct {
	cfg        *oauth2.Config
	store      *Store
	lookup     UserLookup
	listenAddr string
	timeout    time.Duration
	httpClient *http.Client
	out        io.Writer
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithEndpoint overrides the OAuth endpoints, used by tests.
func WithEndpoint(ep oauth2.Endpoint) FlowOption {
	return func(f *Flow) { f.cfg.Endpoint = ep }
}

// WithListenAddr overrides the loopback listener address.
func WithListenAddr(addr string) FlowOption {
	return func(f *Flow) { f.listenAddr = addr }
}

// WithFlowTimeout overrides the redirect wait window.
func WithFlowTimeout(d time.Duration) FlowOption {
	return func(f *Flow) { f.timeout = d }
}

// WithFlowHTTPClient overrides the client used for the code exchange.
func WithFlowHTTPClient(hc *http.Client) FlowOption {
	return func(f *Flow) { f.httpClient = hc }
}

// NewFlow creates an interactive flow for the given credential. Output
// (the sign-in URL and progress messages) is written to out.
func NewFlow(cred config.Credential, store *Store, lookup UserLookup, out io.Writer, opts ...FlowOption) *Flow {
	f := &Flow{
		cfg:        OAuthConfig(cred),
		store:      store,
		lookup:     lookup,
		listenAddr: "localhost:1234",
		timeout:    DefaultFlowTimeout,
		out:        out,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// flowResult is what the redirect handler reports back.
type flowResult struct {
	email string
	err   error
}

// Run executes the flow and returns the signed-in user's address. Exactly
// one redirect request is accepted; the wait is bounded by the flow timeout.
func (f *Flow) Run(ctx context.Context) (string, error) {
	state, err := newState()
	if err != nil {
		return "", err
	}

	if f.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	}

	ln, err := net.Listen("tcp", f.listenAddr)
	if err != nil {
		return "", fmt.Errorf("start redirect listener on %s: %w", f.listenAddr, err)
	}

	done := make(chan flowResult, 1)
	var once sync.Once
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.handleRedirect(ctx, w, r, state, func(res flowResult) {
			once.Do(func() { done <- res })
		})
	})

	srv := &http.Server{Handler: mux}
	go func() {
		//nolint:errcheck // Serve always returns on Shutdown
		srv.Serve(ln)
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		//nolint:errcheck // Best-effort shutdown
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintln(f.out, "To sign in, open the following URL in your browser:")
	fmt.Fprintln(f.out)
	fmt.Fprintln(f.out, "  "+f.cfg.AuthCodeURL(state))
	fmt.Fprintln(f.out)
	fmt.Fprintf(f.out, "Waiting for the redirect on %s ...\n", RedirectURI)

	select {
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		return res.email, nil
	case <-time.After(f.timeout):
		return "", ErrFlowTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// handleRedirect processes the single expected GET from the browser.
func (f *Flow) handleRedirect(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	state string,
	report func(flowResult),
) {
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		writePage(w, http.StatusBadRequest, "Sign-in failed",
			"The authorization server reported: "+errCode)
		report(flowResult{err: fmt.Errorf("%w: %s", ErrUserDenied, errCode)})
		return
	}

	code := q.Get("code")
	if code == "" {
		// Browsers ask for favicons and the like; redirect anything
		// without a code back to the sign-in page.
		http.Redirect(w, r, f.cfg.AuthCodeURL(state), http.StatusFound)
		return
	}

	if subtle.ConstantTimeCompare([]byte(q.Get("state")), []byte(state)) != 1 {
		writePage(w, http.StatusBadRequest, "Sign-in failed",
			"The request did not originate from this sign-in session.")
		report(flowResult{err: ErrStateMismatch})
		return
	}

	token, err := f.cfg.Exchange(ctx, code)
	if err != nil {
		writePage(w, http.StatusBadGateway, "Sign-in failed",
			"Could not exchange the authorization code. Check the log for details.")
		report(flowResult{err: fmt.Errorf("exchange authorization code: %w", err)})
		return
	}

	pair := TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if err := f.store.Save(pair); err != nil {
		writePage(w, http.StatusInternalServerError, "Sign-in failed",
			"Could not store the credential. Check the log for details.")
		report(flowResult{err: err})
		return
	}

	email := ""
	if f.lookup != nil {
		email, err = f.lookup(ctx, token.AccessToken)
		if err != nil {
			logger.Warn("could not fetch user profile after sign-in: %v", err)
		}
	}

	heading := "Signed in"
	if email != "" {
		heading = "Signed in as: " + email
	}
	writePage(w, http.StatusOK, heading, "You can now close this tab.")
	report(flowResult{email: email})
}

// writePage renders a minimal confirmation page.
func writePage(w http.ResponseWriter, status int, heading, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<html><body><h1>%s</h1><p>%s</p></body></html>", heading, body)
}

// newState generates a random CSRF state token.
func newState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
