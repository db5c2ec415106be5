package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Error bodies follow the Django REST framework shapes the client understands
const (
	msgTokenNotValid  = "Token is invalid or expired"
	msgNotAuthorized  = "Authentication credentials were not provided."
	msgInvalidLogin   = "Unable to log in with provided credentials."
	msgFieldRequired  = "This field is required."
	msgMalformedBody  = "Malformed request body."
	msgInternal       = "A server error occurred."
	codeTokenNotValid = "token_not_valid"
	codeNotAuthorized = "not_authenticated"
)

func abortDetail(c *gin.Context, status int, detail, code string) {
	body := gin.H{"detail": detail}
	if code != "" {
		body["code"] = code
	}
	c.AbortWithStatusJSON(status, body)
}

// abortBinding reports missing fields as {"errors": {"field": ["This field is required."]}}
func abortBinding(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		abortDetail(c, http.StatusBadRequest, msgMalformedBody, "parse_error")
		return
	}

	fields := gin.H{}
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = []string{msgFieldRequired}
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"errors": fields})
}
