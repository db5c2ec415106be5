package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/apiclient/core"
	"github.com/layer-3/apiclient/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type refreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// Login exchanges a username and password for a token pair
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBinding(c, err)
		return
	}

	access, refresh, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, core.ErrInvalidLogin):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{msgInvalidLogin}})
		return
	case err != nil:
		abortDetail(c, http.StatusInternalServerError, msgInternal, "")
		return
	}

	c.JSON(http.StatusOK, tokenPair{Access: access, Refresh: refresh})
}

// Refresh rotates a refresh token
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBinding(c, err)
		return
	}

	access, refresh, err := h.authService.Refresh(c.Request.Context(), req.Refresh)
	switch {
	case isTokenRejection(err):
		abortDetail(c, http.StatusUnauthorized, msgTokenNotValid, codeTokenNotValid)
		return
	case err != nil:
		abortDetail(c, http.StatusInternalServerError, msgInternal, "")
		return
	}

	c.JSON(http.StatusOK, tokenPair{Access: access, Refresh: refresh})
}

// Logout invalidates the session behind a refresh token
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBinding(c, err)
		return
	}

	err := h.authService.Logout(c.Request.Context(), req.Refresh)
	switch {
	case errors.Is(err, core.ErrTokenExpired):
		// nothing left to invalidate
	case isTokenRejection(err):
		abortDetail(c, http.StatusUnauthorized, msgTokenNotValid, codeTokenNotValid)
		return
	case err != nil:
		abortDetail(c, http.StatusInternalServerError, msgInternal, "")
		return
	}

	c.Status(http.StatusNoContent)
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"username": c.GetString(subjectKey)})
}

type uploadedFile struct {
	Field       string `json:"field"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Upload accepts a multipart form and describes what it received
func (h *AuthHandlers) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		abortDetail(c, http.StatusBadRequest, msgMalformedBody, "parse_error")
		return
	}

	fields := make(map[string]string, len(form.Value))
	for name, values := range form.Value {
		if len(values) > 0 {
			fields[name] = values[0]
		}
	}

	files := []uploadedFile{}
	for field, headers := range form.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				abortDetail(c, http.StatusBadRequest, msgMalformedBody, "parse_error")
				return
			}
			size, err := io.Copy(io.Discard, f)
			_ = f.Close()
			if err != nil {
				abortDetail(c, http.StatusBadRequest, msgMalformedBody, "parse_error")
				return
			}
			files = append(files, uploadedFile{
				Field:       field,
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        size,
			})
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"username": c.GetString(subjectKey),
		"fields":   fields,
		"files":    files,
	})
}

func isTokenRejection(err error) bool {
	return errors.Is(err, core.ErrInvalidToken) ||
		errors.Is(err, core.ErrTokenExpired) ||
		errors.Is(err, core.ErrTokenInvalidated)
}
