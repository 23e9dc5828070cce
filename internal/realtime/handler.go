package realtime

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shenikar/sos_dispatch_system/internal/auth"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Браузерные клиенты ходят с других origin, доверие обеспечивает токен.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler выполняет хэндшейк канала: токен проверяется до апгрейда,
// соединение без валидного токена не входит ни в одну комнату.
func Handler(hub *Hub, tokens *auth.TokenManager, directory ResponderDirectory, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			logger.WithError(err).Warn("Socket handshake rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.WithError(err).Error("Failed to upgrade websocket connection")
			return
		}

		conn := newConn(ws, hub, logger, directory, claims.UserID, claims.Role)
		conn.start()

		logger.WithFields(logrus.Fields{
			"user_id": claims.UserID,
			"role":    claims.Role,
		}).Info("Socket connected")
	}
}
