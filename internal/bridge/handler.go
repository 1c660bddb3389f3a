package bridge

import (
	"log"
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/huntmate/grindsync/internal/identity"
)

// Handler serves the token-exchange endpoint.
type Handler struct {
	secret []byte
	logger *log.Logger
}

// NewHandler creates a handler signing with the given shared secret.
// If logger is nil, a default logger writing to stderr is used.
func NewHandler(secret []byte, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(os.Stderr, "[bridge] ", log.LstdFlags)
	}
	return &Handler{secret: secret, logger: logger}
}

// exchangeRequest is the POST body of a token exchange.
type exchangeRequest struct {
	Token string `json:"token"`
}

// Exchange validates a primary token, derives the secondary identifier,
// and responds with a freshly minted credential.
//
// Every failure is a structured 400; the handler never panics and never
// leaves a request hanging.
func (h *Handler) Exchange(c *gin.Context) {
	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing Token"})
		return
	}

	if len(h.secret) == 0 {
		h.logger.Println("Signing secret not configured")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signing Secret Not Configured"})
		return
	}

	claims, err := DecodeUnverifiedClaims(req.Token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Token Format"})
		return
	}
	if claims.Subject == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Token Payload"})
		return
	}

	// Same namespace, same derivation as the desktop client. Divergence
	// here would split every user into two identities.
	userID := identity.UserID(claims.Subject)

	token, err := MintToken(h.secret, userID, claims.Subject, claims.Email)
	if err != nil {
		h.logger.Printf("Failed to mint credential: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token Generation Failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"user_id": userID,
	})
}

// NewRouter builds the gin engine with CORS matching the desktop shell's
// requirements: all origins, the auth-adjacent headers only.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"POST", "OPTIONS"},
		AllowHeaders:    []string{"authorization", "x-client-info", "apikey", "content-type"},
	}))

	router.POST("/token", h.Exchange)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}
