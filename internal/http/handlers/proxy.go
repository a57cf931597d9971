package handlers

import (
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxProxyBytes caps a single proxied response. Video results stay well
// under this; the cap exists so a misbehaving upstream cannot pin a
// connection open forever.
const maxProxyBytes = 512 << 20

// Proxy streams remote media through the API origin so the browser can read
// pixel data from results hosted on CDNs that do not send CORS headers. Only
// hosts on the configured allow-list may be fetched.
func (a *App) Proxy(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET,HEAD,OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	raw := r.URL.Query().Get("url")
	if raw == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "url query parameter required")
		return
	}
	target, err := url.Parse(raw)
	if err != nil || !target.IsAbs() || (target.Scheme != "http" && target.Scheme != "https") {
		a.error(w, http.StatusBadRequest, "bad_request", "url must be absolute http(s)")
		return
	}
	if !a.hostAllowed(target.Hostname()) {
		a.error(w, http.StatusForbidden, "forbidden", "host is not on the proxy allow-list")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), nil)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid target url")
		return
	}

	resp, err := a.ProxyClient.Do(req)
	if err != nil {
		a.Log.Debug().Err(err).Str("host", target.Hostname()).Msg("proxy fetch")
		a.error(w, http.StatusBadGateway, "upstream_unavailable", "failed to fetch remote media")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.error(w, http.StatusBadGateway, "upstream_unavailable", "remote host returned an error")
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, io.LimitReader(resp.Body, maxProxyBytes)); err != nil {
		a.Log.Debug().Err(err).Msg("proxy stream interrupted")
	}
}

// hostAllowed matches the exact host or any subdomain of an allowed host.
func (a *App) hostAllowed(host string) bool {
	host = strings.ToLower(host)
	for _, allowed := range a.ProxyAllowHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
