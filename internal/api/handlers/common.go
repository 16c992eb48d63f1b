package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tailorjob/backend/internal/utils"
)

// APIError is the error body of every endpoint. Detail repeats the message
// for clients that read it, and carries a structured object when one exists.
type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
	Detail  any        `json:"detail"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		var detail any = ae.Message
		if ae.Detail != nil {
			detail = ae.Detail
		}
		if status >= 500 {
			_ = c.Error(err)
		}
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: ae.Message,
			Detail:  detail,
		})
		return
	}

	_ = c.Error(err)
	c.JSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
		Detail:  http.StatusText(status),
	})
}

func requireUserID(c *gin.Context) (string, bool) {
	if v, ok := c.Get("user_id"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}

func bindJSON(c *gin.Context, op string, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return false
	}
	return true
}

// queryLimit reads ?limit= within [1, max], falling back to def.
func queryLimit(c *gin.Context, def, max int) int {
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= max {
			return n
		}
	}
	return def
}
