package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"management/backend/internal/chathub"
	"management/backend/internal/metrics"
	"management/backend/internal/routing"
	"management/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// UserIDHeader carries the caller's user id, set by the gateway in front of the service.
const UserIDHeader = "X-User-ID"

// View handles a request matched by a route table.
type View func(c *gin.Context, params routing.Params)

// Handler holds the chat hub, the storage and the two route tables.
type Handler struct {
	Hub     *chathub.ManagerService
	Storage storage.Storage

	HTTPRoutes *routing.Table[View]
	WSRoutes   *routing.Table[View]

	upgrader websocket.Upgrader
}

// NewHandler builds the route tables. allowedOrigins limits WebSocket upgrades;
// an empty list or "*" accepts any origin.
func NewHandler(hub *chathub.ManagerService, s storage.Storage, allowedOrigins []string) *Handler {
	h := &Handler{Hub: hub, Storage: s}
	h.HTTPRoutes = h.urlPatterns()
	h.WSRoutes = h.websocketURLPatterns()
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// Dispatch resolves the request path against the WebSocket table, then the
// HTTP table, and runs the matched view. Register it with gin's NoRoute.
func (h *Handler) Dispatch(c *gin.Context) {
	path := c.Request.URL.Path

	m, ok := h.WSRoutes.Resolve(path)
	if !ok {
		m, ok = h.HTTPRoutes.Resolve(path)
	}
	if !ok {
		metrics.RouteRequests.WithLabelValues("unmatched", strconv.Itoa(http.StatusNotFound)).Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	m.Route.Handler(c, m.Params)
	metrics.RouteRequests.WithLabelValues(m.Route.Name, strconv.Itoa(c.Writer.Status())).Inc()
}

// allowMethod answers 405 unless the request uses method.
func allowMethod(c *gin.Context, method string) bool {
	if c.Request.Method == method {
		return true
	}
	c.Header("Allow", method)
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	return false
}

func requireUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader(UserIDHeader)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": UserIDHeader + " header missing"})
		return "", false
	}
	return userID, true
}

// writeError maps storage errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrIntegrity):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
