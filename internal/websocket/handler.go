package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/splitweek/internal/auth"
)

// TokenVerifier checks a bearer token.
type TokenVerifier interface {
	Verify(token string) (auth.AuthContext, error)
}

// ChildLister returns the ids of the children a user is linked to.
type ChildLister func(userID int64) ([]int64, error)

// HandleWebSocket authenticates the caller, upgrades the connection, and
// runs it as a Hub client. Browsers cannot set headers on a websocket
// handshake, so the token may also arrive as the access_token query param.
func HandleWebSocket(hub *Hub, verifier TokenVerifier, children ChildLister, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("access_token")
		if token == "" {
			token = auth.BearerToken(r)
		}
		ac, err := verifier.Verify(token)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		childIDs, err := children(ac.UserID)
		if err != nil {
			logger.Error("list children for websocket", "user_id", ac.UserID, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, ac.UserID, childIDs)
		client.Run(r.Context())
	}
}
