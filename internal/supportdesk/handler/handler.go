// Package handler provides HTTP handlers for the support-desk service.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/supportdesk/pkg/middleware"
	"github.com/kart-io/supportdesk/pkg/utils/errors"
	"github.com/kart-io/supportdesk/pkg/utils/response"
)

// writeError 按错误码写入统一响应封装。
func writeError(c *gin.Context, err error) {
	resp := response.ErrFrom(err).WithRequestID(middleware.GetRequestID(c))
	c.JSON(resp.HTTPStatus(), resp)
}

// writeErrno 写入指定错误码的响应封装。
func writeErrno(c *gin.Context, e *errors.Errno) {
	resp := response.Err(e).WithRequestID(middleware.GetRequestID(c))
	c.JSON(resp.HTTPStatus(), resp)
}

// writeSuccess 写入成功响应封装。
func writeSuccess(c *gin.Context, data interface{}) {
	resp := response.Success(data).WithRequestID(middleware.GetRequestID(c))
	c.JSON(http.StatusOK, resp)
}
