package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/savorahq/savora/pkg/errors"
	"github.com/savorahq/savora/pkg/response"
	"github.com/savorahq/savora/pkg/validator"
)

// bindAndValidate binds the JSON body and runs struct validation, writing a
// 400 response on failure.
func bindAndValidate(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return false
	}
	if err := validator.ValidateStruct(payload); err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return false
	}
	return true
}

// parseIntQuery reads an integer query parameter with a fallback default.
func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
