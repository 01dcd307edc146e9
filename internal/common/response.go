package common

import "github.com/gin-gonic/gin"

// JSON writes a bare payload. Success bodies are not wrapped in an envelope.
func JSON(c *gin.Context, httpStatus int, data any) {
	c.JSON(httpStatus, data)
}

// Fail writes the error body used by every endpoint and aborts the chain.
func Fail(c *gin.Context, httpStatus int, code int, kind, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{
		"error":   kind,
		"code":    code,
		"message": msg,
	})
}
