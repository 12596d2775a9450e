package blogger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
)

// CallbackServer receives the authorization code on a loopback redirect URL.
type CallbackServer struct {
	srv      *http.Server
	redirect string
	state    string
	results  chan callbackResult
}

type callbackResult struct {
	code string
	err  error
}

// IsLoopback reports whether redirectURL points at this machine over plain
// http, which is the only kind of redirect ListenCallback can serve.
func IsLoopback(redirectURL string) bool {
	u, err := url.Parse(redirectURL)
	if err != nil || u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ListenCallback starts serving redirectURL. Port 0 picks a free port; use
// RedirectURL for the address actually bound.
func ListenCallback(redirectURL, state string) (*CallbackServer, error) {
	if !IsLoopback(redirectURL) {
		return nil, fmt.Errorf("redirect %q is not a loopback http url", redirectURL)
	}
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, fmt.Errorf("parse redirect: %w", err)
	}

	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "80")
	}
	ln, err := net.Listen("tcp", host)
	if err != nil {
		return nil, fmt.Errorf("listen for callback: %w", err)
	}

	u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(ln.Addr().(*net.TCPAddr).Port))
	path := u.Path
	if path == "" {
		path = "/"
	}

	c := &CallbackServer{
		redirect: u.String(),
		state:    state,
		results:  make(chan callbackResult, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, c.handle)
	c.srv = &http.Server{Handler: mux}
	go func() {
		_ = c.srv.Serve(ln)
	}()

	return c, nil
}

func (c *CallbackServer) RedirectURL() string {
	return c.redirect
}

func (c *CallbackServer) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var res callbackResult
	switch {
	case q.Get("error") != "":
		res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
	case q.Get("state") != c.state:
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	case q.Get("code") == "":
		res.err = errors.New("callback without authorization code")
	default:
		res.code = q.Get("code")
	}

	if res.err != nil {
		http.Error(w, res.err.Error(), http.StatusBadRequest)
	} else {
		fmt.Fprintln(w, "Authorization complete. You can close this window.")
	}

	select {
	case c.results <- res:
	default:
	}
}

// Wait blocks until the browser is redirected back or ctx is done, then
// stops the server.
func (c *CallbackServer) Wait(ctx context.Context) (string, error) {
	defer c.Close()

	select {
	case res := <-c.results:
		return res.code, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *CallbackServer) Close() error {
	return c.srv.Close()
}
