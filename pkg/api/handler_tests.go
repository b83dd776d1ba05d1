package api

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// The /test endpoints back the companion app's setup wizard: each one probes
// a single link in the chain (bus delivery, reverse HTTP access, database
// mapping, proxy headers) and answers in plain text.

// handleTestCookie returns the cookie most recently received over the bus.
func (s *Server) handleTestCookie(c *gin.Context) {
	cookie := s.dispatcher.TestCookie()
	slog.Debug("current test cookie", "cookie", cookie)
	c.String(http.StatusOK, strconv.FormatUint(uint64(cookie), 10))
}

// handleReverseCookie fetches the companion app's cookie over HTTP, proving
// this server can reach it. Errors answer with 0.
func (s *Server) handleReverseCookie(c *gin.Context) {
	cookie, err := s.prober.TestCookie(c.Request.Context())
	if err != nil {
		slog.Warn("failed to fetch remote test cookie", "error", err)
		cookie = 0
	}
	slog.Debug("got remote test cookie", "cookie", cookie)
	c.String(http.StatusOK, strconv.FormatUint(uint64(cookie), 10))
}

// handleMappingTest counts the users mapped to a storage. Lookup errors
// answer with 0 so the wizard reports a mapping problem, not a 500.
func (s *Server) handleMappingTest(c *gin.Context) {
	storageID, err := strconv.ParseInt(c.Param("storage"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid storage id")
		return
	}

	count, err := s.mapper.CountUsersForStorage(c.Request.Context(), storageID)
	if err != nil {
		slog.Error("error while getting mapping", "storage", storageID, "error", err)
		count = 0
	}
	c.String(http.StatusOK, strconv.Itoa(count))
}

// handleRemoteTest asks the companion app which remote address it attributes
// to a request carrying the given forwarded-for value.
func (s *Server) handleRemoteTest(c *gin.Context) {
	ip := c.Param("ip")
	if net.ParseIP(ip) == nil {
		c.String(http.StatusBadRequest, "invalid ip")
		return
	}

	result, err := s.prober.SetRemote(c.Request.Context(), ip)
	if err != nil {
		result = err.Error()
	}
	slog.Debug("remote test", "requested", ip, "got", result)
	c.String(http.StatusOK, result)
}

// handleVersionTest re-runs the version handshake against Redis.
func (s *Server) handleVersionTest(c *gin.Context) {
	if err := s.publishVersion(c.Request.Context()); err != nil {
		slog.Warn("failed to publish version", "error", err)
		c.String(http.StatusOK, "error")
		return
	}
	c.String(http.StatusOK, "set")
}
