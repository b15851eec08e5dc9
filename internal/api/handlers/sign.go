package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ably-labs/webcli/internal/credential"
)

// SignHandler exposes credential signing over HTTP for embedders that keep
// the shared secret server-side.
type SignHandler struct {
	signer *credential.Signer
}

func NewSignHandler(signer *credential.Signer) *SignHandler {
	return &SignHandler{signer: signer}
}

// Sign handles POST /sign: it signs the supplied credential fields and
// returns the bundle the terminal sends on every handshake.
func (h *SignHandler) Sign(c *gin.Context) {
	var req credential.SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	cred, err := h.signer.Sign(req)
	switch {
	case errors.Is(err, credential.ErrMissingAPIKey):
		c.JSON(http.StatusBadRequest, gin.H{"error": "apiKey is required"})
		return
	case errors.Is(err, credential.ErrNoSigningSecret):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signing secret not configured"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign credential"})
		return
	}

	c.JSON(http.StatusOK, cred)
}

// MethodNotAllowed answers non-POST requests on the sign route.
func (h *SignHandler) MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
}
