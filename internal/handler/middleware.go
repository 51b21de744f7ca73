package handler

import (
	"log"
	"strings"
	"time"

	"diamondshop/internal/model"
	"diamondshop/internal/service"
	"diamondshop/pkg/response"

	"github.com/gin-gonic/gin"
)

const ctxUserKey = "currentUser"

// LoggerMiddleware 日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		log.Printf("[HTTP] %d | %13v | %15s | %-7s %s",
			status,
			latency,
			c.ClientIP(),
			c.Request.Method,
			path,
		)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %v", err)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// AuthMiddleware 会话鉴权：Authorization: Bearer <token> -> 当前用户
func AuthMiddleware(userService *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.Unauthorized(c, "请先登录")
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		user, err := userService.ResolveSession(c.Request.Context(), token)
		if err != nil {
			response.Unauthorized(c, "会话无效或已过期")
			return
		}

		c.Set(ctxUserKey, user)
		c.Next()
	}
}

// AdminRequired 管理员校验，必须挂在 AuthMiddleware 之后
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin {
			response.Forbidden(c, "无权访问")
			return
		}
		c.Next()
	}
}

// CurrentUser 取出中间件解析好的当前用户
func CurrentUser(c *gin.Context) *model.User {
	val, exists := c.Get(ctxUserKey)
	if !exists {
		return nil
	}
	user, ok := val.(*model.User)
	if !ok {
		return nil
	}
	return user
}
