package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/MarcosLauremiro/miKan-api/pkg/errors"
	"github.com/MarcosLauremiro/miKan-api/pkg/response"
	appValidator "github.com/MarcosLauremiro/miKan-api/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(formatValidationError(err)))
		return false
	}

	return true
}

// bindOptional behaves like bindAndValidate but accepts an empty body.
func bindOptional[T any](c *gin.Context, dest *T) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindAndValidate(c, dest)
}

func formatValidationError(err error) string {
	var ve appValidator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return ve.Error()
	}
	return "invalid request payload"
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
