package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/tailorjob/backend/internal/utils"
)

// apiError mirrors the handlers' error body.
type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
	Detail  any        `json:"detail"`
}

func abort(c *gin.Context, status int, code utils.Code, msg string) {
	c.AbortWithStatusJSON(status, apiError{Code: code, Message: msg, Detail: msg})
}

// abortErr aborts with the status and detail carried by err.
func abortErr(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	var ae *utils.AppError
	if errors.As(err, &ae) {
		var detail any = ae.Message
		if ae.Detail != nil {
			detail = ae.Detail
		}
		c.AbortWithStatusJSON(status, apiError{Code: ae.Code, Message: ae.Message, Detail: detail})
		return
	}
	_ = c.Error(err)
	abort(c, status, utils.CodeInternal, "internal error")
}
