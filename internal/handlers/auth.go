package handlers

import (
	"errors"
	"net/http"

	"reflow_oven/internal/service"

	"github.com/gin-gonic/gin"
)

type authCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// bindJSON writes a 400 and returns false when the body does not decode.
func (h *Handler) bindJSON(c *gin.Context, dst any, logKey string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if h.log != nil {
			h.log.Infow(logKey, "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return false
	}
	return true
}

// @Summary      Obtain a bearer token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      authCredentials  true  "Credentials"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/sign-in [post]
func (h *Handler) signIn(c *gin.Context) {
	var in authCredentials
	if !h.bindJSON(c, &in, "auth_bad_request_body") {
		return
	}

	token, err := h.services.GenerateToken(c.Request.Context(), in.Username, in.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		if h.log != nil {
			h.log.Infow("auth_sign_in_rejected", "username", in.Username)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to sign in", "auth_sign_in_failed", err, "username", in.Username)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// @Summary      Create an operator account
// @Tags         operators
// @Accept       json
// @Produce      json
// @Param        body  body      authCredentials  true  "Credentials"
// @Success      201   {object}  map[string]int
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/operators [post]
// @Security     BearerAuth
func (h *Handler) createOperator(c *gin.Context) {
	var in authCredentials
	if !h.bindJSON(c, &in, "operator_bad_request_body") {
		return
	}

	id, err := h.services.SignUp(c.Request.Context(), in.Username, in.Password)
	if err != nil {
		h.serviceError(c, "failed to create operator", "operator_create_failed", err, "username", in.Username)
		return
	}
	if h.log != nil {
		createdBy, _ := c.Get("userId")
		h.log.Infow("operator_created", "id", id, "username", in.Username, "created_by", createdBy)
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// @Summary      List operator accounts
// @Tags         operators
// @Produce      json
// @Success      200  {array}   models.User
// @Router       /api/v1/operators [get]
// @Security     BearerAuth
func (h *Handler) listOperators(c *gin.Context) {
	ops, err := h.services.Operators(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to list operators", "operator_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, ops)
}
