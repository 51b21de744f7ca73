package handler

import (
	"errors"
	"net/http"
	"strconv"

	"diamondshop/internal/repository"
	"diamondshop/pkg/response"

	"github.com/gin-gonic/gin"
)

// 管理端只读统计/导出接口
// 权限由路由组上的 AuthMiddleware + AdminRequired 把关

// AdminSystemStats 系统总览
// GET /api/v1/admin/stats
func (h *Handler) AdminSystemStats(c *gin.Context) {
	stats, err := h.report.GetSystemStats(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, stats)
}

// AdminPaymentData 全量解密卡数据
// GET /api/v1/admin/payment-data
func (h *Handler) AdminPaymentData(c *gin.Context) {
	data, err := h.report.DecryptAllPaymentMethods(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, data)
}

// AdminExportData 导出卡数据
// GET /api/v1/admin/export?format=json|csv
func (h *Handler) AdminExportData(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	data, contentType, err := h.report.ExportPaymentData(c.Request.Context(), format)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	if format == "csv" {
		c.Header("Content-Disposition", "attachment; filename=payment_data.csv")
	}
	c.Data(http.StatusOK, contentType, data)
}

// AdminDuplicateCards 重复卡号检测
// GET /api/v1/admin/duplicate-cards
func (h *Handler) AdminDuplicateCards(c *gin.Context) {
	duplicates, err := h.report.FindDuplicateCards(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, duplicates)
}

// AdminDecryptPaymentMethod 解密单张卡
// GET /api/v1/admin/payment-methods/:id/decrypt
func (h *Handler) AdminDecryptPaymentMethod(c *gin.Context) {
	methodID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}

	data, err := h.report.DecryptPaymentMethod(c.Request.Context(), methodID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, data)
}

// AdminUserAnalytics 单用户统计
// GET /api/v1/admin/users/:id/analytics
func (h *Handler) AdminUserAnalytics(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}

	analytics, err := h.report.GetUserAnalytics(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, analytics)
}

// AdminAllUsersAnalytics 全量用户统计
// GET /api/v1/admin/users/analytics
func (h *Handler) AdminAllUsersAnalytics(c *gin.Context) {
	analytics, err := h.report.GetAllUsersAnalytics(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, analytics)
}
