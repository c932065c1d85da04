package services

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// NewUpgrader returns an upgrader accepting the given origins; "*"
// accepts any origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimSuffix(o, "/")] = true
	}

	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || allowed[origin]
		},
	}
}

// TokenFromRequest extracts a bearer token from the Authorization header
// or, for browsers that cannot set headers on websockets, the token query
// parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// HandleWebSocket authenticates the request, upgrades it, and hands the
// socket to the hub. Authentication failures are answered before the
// upgrade with a plain HTTP status.
func HandleWebSocket(w http.ResponseWriter, r *http.Request, hub *Hub, tokens *TokenManager, upgrader *websocket.Upgrader) {
	claims, err := tokens.ParseToken(TokenFromRequest(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		hub.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	hub.Attach(claims.Subject, conn)
}
