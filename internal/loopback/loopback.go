// Package loopback receives a single OAuth callback on a localhost listener.
package loopback

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jrsteele09/minu-sso/oauthmodel"
	"github.com/rs/zerolog/log"
)

const DefaultPath = "/auth/minu/callback"

var page = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em">
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
</body></html>`))

type Receiver struct {
	listener net.Listener
	server   *http.Server
	path     string

	result chan url.Values
	once   sync.Once
}

// Listen starts a receiver on 127.0.0.1:port. Port 0 picks a free port.
func Listen(port int, path string) (*Receiver, error) {
	if path == "" {
		path = DefaultPath
	}
	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("[loopback Listen] %w", err)
	}

	r := &Receiver{
		listener: listener,
		path:     path,
		result:   make(chan url.Values, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, r.handleCallback)
	r.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := r.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Msg("loopback server stopped")
		}
	}()
	return r, nil
}

// RedirectURI is the callback URL to register with the authorization request.
// It names the IP literal the listener is bound to, never "localhost".
func (r *Receiver) RedirectURI() string {
	port := r.listener.Addr().(*net.TCPAddr).Port
	return fmt.Sprintf("http://127.0.0.1:%d%s", port, r.path)
}

// Wait blocks until the first callback arrives or ctx is done.
func (r *Receiver) Wait(ctx context.Context) (url.Values, error) {
	select {
	case q := <-r.result:
		return q, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("[Receiver Wait] no callback received: %w", ctx.Err())
	}
}

func (r *Receiver) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.server.Shutdown(ctx)
}

func (r *Receiver) handleCallback(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := req.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if !isCallback(req.Form) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusBadRequest)
		err := page.Execute(w, struct{ Title, Message string }{
			Title:   "Waiting for sign in",
			Message: "This address only accepts the redirect back from Minu.",
		})
		if err != nil {
			log.Err(err).Msg("render loopback page")
		}
		return
	}

	captured := false
	r.once.Do(func() {
		r.result <- req.Form
		captured = true
	})

	data := struct{ Title, Message string }{
		Title:   "Signed in",
		Message: "You can close this window and return to the terminal.",
	}
	switch {
	case !captured:
		data.Title = "Already handled"
		data.Message = "This login has already completed. You can close this window."
	case req.Form.Get(oauthmodel.ParamError) != "":
		data.Title = "Sign in did not complete"
		data.Message = "Return to the terminal for details."
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := page.Execute(w, data); err != nil {
		log.Err(err).Msg("render loopback page")
	}
}

// isCallback is false for requests such as prefetches that carry none of the
// parameters a callback is made of.
func isCallback(form url.Values) bool {
	for _, key := range []string{oauthmodel.ParamState, oauthmodel.ParamCode, oauthmodel.ParamAccessToken, oauthmodel.ParamError} {
		if form.Get(key) != "" {
			return true
		}
	}
	return false
}
