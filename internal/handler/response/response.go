package response

import (
	"net/http"

	"custody-core/pkg/errno"

	"github.com/gin-gonic/gin"
)

// Response 标准统一响应结构
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: errno.OK.Code,
		Msg:  errno.OK.Message,
		Data: data,
	})
}

// Error 失败响应，自动从 err 解出业务码
func Error(c *gin.Context, err error) {
	code, msg := errno.Decode(err)
	c.JSON(http.StatusOK, Response{
		Code: code,
		Msg:  msg,
	})
}

// ErrorWithStatus 指定 HTTP 状态码的失败响应
func ErrorWithStatus(c *gin.Context, status int, err error) {
	code, msg := errno.Decode(err)
	c.JSON(status, Response{
		Code: code,
		Msg:  msg,
	})
}
