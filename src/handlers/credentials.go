package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tradevault/tradevault-server/src/middleware"
	"github.com/tradevault/tradevault-server/src/models"
	"github.com/tradevault/tradevault-server/src/services"
)

// CredentialHandler handles broker credential HTTP requests
type CredentialHandler struct {
	credentialService *services.CredentialService
}

// NewCredentialHandler creates a new credential handler
func NewCredentialHandler(credentialService *services.CredentialService) *CredentialHandler {
	return &CredentialHandler{
		credentialService: credentialService,
	}
}

// StoreCredentialRequest represents a request to store broker credentials.
// Plaintext key material lives only in this struct for the duration of the
// request and is never logged or echoed back.
type StoreCredentialRequest struct {
	BrokerType string `json:"broker_type" binding:"required,min=1,max=64"`
	APIKey     string `json:"api_key" binding:"required,min=1,max=512"`
	APISecret  string `json:"api_secret" binding:"required,min=1,max=512"`
}

// UpdateCredentialRequest represents a partial credential update
type UpdateCredentialRequest struct {
	APIKey    *string `json:"api_key,omitempty"`
	APISecret *string `json:"api_secret,omitempty"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

// HandleStore handles POST /api/credentials
func (h *CredentialHandler) HandleStore(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req StoreCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "broker_type, api_key and api_secret are required",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	meta, err := h.credentialService.Store(ctx, ownerID, req.BrokerType, req.APIKey, req.APISecret)
	if err != nil {
		h.writeCredentialError(c, err, "store")
		return
	}

	c.JSON(http.StatusCreated, meta)
}

// HandleList handles GET /api/credentials
func (h *CredentialHandler) HandleList(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	list, err := h.credentialService.List(ctx, ownerID)
	if err != nil {
		h.writeCredentialError(c, err, "list")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"credentials": list,
		"count":       len(list),
	})
}

// HandleGet handles GET /api/credentials/:id
func (h *CredentialHandler) HandleGet(c *gin.Context) {
	ownerID, id, ok := h.requestScope(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	meta, err := h.credentialService.Get(ctx, ownerID, id)
	if err != nil {
		h.writeCredentialError(c, err, "get")
		return
	}

	c.JSON(http.StatusOK, meta)
}

// HandleUpdate handles PATCH /api/credentials/:id
func (h *CredentialHandler) HandleUpdate(c *gin.Context) {
	ownerID, id, ok := h.requestScope(c)
	if !ok {
		return
	}

	var req UpdateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must be valid JSON",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	meta, err := h.credentialService.Update(ctx, ownerID, id, services.CredentialUpdateRequest{
		APIKey:    req.APIKey,
		APISecret: req.APISecret,
		IsActive:  req.IsActive,
	})
	if err != nil {
		h.writeCredentialError(c, err, "update")
		return
	}

	c.JSON(http.StatusOK, meta)
}

// HandleDelete handles DELETE /api/credentials/:id
func (h *CredentialHandler) HandleDelete(c *gin.Context) {
	ownerID, id, ok := h.requestScope(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := h.credentialService.Delete(ctx, ownerID, id); err != nil {
		h.writeCredentialError(c, err, "delete")
		return
	}

	c.Status(http.StatusNoContent)
}

// HandleValidate handles POST /api/credentials/:id/validate
func (h *CredentialHandler) HandleValidate(c *gin.Context) {
	ownerID, id, ok := h.requestScope(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result, err := h.credentialService.Validate(ctx, ownerID, id)
	if err != nil {
		h.writeCredentialError(c, err, "validate")
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleAccount handles GET /api/credentials/:id/account - fetches a live
// account snapshot from the brokerage using the stored credential
func (h *CredentialHandler) HandleAccount(c *gin.Context) {
	ownerID, id, ok := h.requestScope(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result, err := h.credentialService.Validate(ctx, ownerID, id)
	if err != nil {
		h.writeCredentialError(c, err, "account")
		return
	}

	if !result.Valid {
		status := http.StatusBadGateway
		if result.Reason == models.ReasonInvalidCredentials || result.Reason == models.ReasonUnknownBroker {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{
			"error":   result.Reason,
			"message": "Could not fetch account with this credential",
		})
		return
	}

	c.JSON(http.StatusOK, result.Account)
}

// requestScope extracts the authenticated owner and the :id path parameter.
// Writes the error response itself when either is missing.
func (h *CredentialHandler) requestScope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, uuid.Nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Credential id must be a valid UUID",
		})
		return uuid.Nil, uuid.Nil, false
	}

	return ownerID, id, true
}

// writeCredentialError maps service errors to HTTP responses. Response
// bodies carry stable error codes and never include stored key material.
func (h *CredentialHandler) writeCredentialError(c *gin.Context, err error, operation string) {
	switch {
	case errors.Is(err, services.ErrCredentialNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "credential_not_found",
			"message": "Credential not found",
		})
	case errors.Is(err, services.ErrDuplicateCredential):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "duplicate_credential",
			"message": "An active credential for this broker already exists",
		})
	case errors.Is(err, services.ErrCredentialInactive):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "credential_inactive",
			"message": "Credential is deactivated",
		})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
	case errors.Is(err, services.ErrEncryptionKeyMissing), errors.Is(err, services.ErrEncryptionKeyInvalid):
		log.Error().Err(err).Str("operation", operation).Msg("credential encryption unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "encryption_unavailable",
			"message": "Credential encryption is not configured on this server",
		})
	default:
		log.Error().Err(err).Str("operation", operation).Msg("credential operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "server_error",
			"message": "Credential operation failed",
		})
	}
}
