package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// handleWebSocket upgrades the request and hands the socket to the
// connection manager. The handler blocks for the whole session; gin runs it
// on the request's own goroutine.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		slog.Debug("WebSocket upgrade failed", "remote", c.Request.RemoteAddr, "error", err)
		return
	}

	s.manager.HandleConnection(c.Request.Context(), conn, forwardedForChain(c.Request))
}

// forwardedForChain collects the X-Forwarded-For addresses and appends the
// peer address last, so the credential verifier sees the full proxy chain.
// Entries that do not parse as IPs are dropped.
func forwardedForChain(r *http.Request) []string {
	var chain []string
	for _, header := range r.Header.Values("X-Forwarded-For") {
		for _, entry := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(entry); net.ParseIP(ip) != nil {
				chain = append(chain, ip)
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		chain = append(chain, host)
	} else if net.ParseIP(r.RemoteAddr) != nil {
		chain = append(chain, r.RemoteAddr)
	}
	return chain
}
