package handler

import (
	"errors"
	"strconv"

	"diamondshop/internal/model"
	"diamondshop/internal/service"
	"diamondshop/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	userService   *service.UserService
	catalog       *service.CatalogService
	methodService *service.PaymentMethodService
	settlement    *service.SettlementService
	report        *service.ReportService
	orderPageSize int
}

// NewHandler 创建处理器实例
func NewHandler(
	userService *service.UserService,
	catalog *service.CatalogService,
	methodService *service.PaymentMethodService,
	settlement *service.SettlementService,
	report *service.ReportService,
	orderPageSize int,
) *Handler {
	if orderPageSize <= 0 {
		orderPageSize = 10
	}
	return &Handler{
		userService:   userService,
		catalog:       catalog,
		methodService: methodService,
		settlement:    settlement,
		report:        report,
		orderPageSize: orderPageSize,
	}
}

// writeServiceError 按错误分级映射响应码
// 不存在/不归属 返回统一的 not found；处理类错误对外只给笼统提示
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCardInvalid):
		response.BusinessError(c, response.CodeCardInvalid, err.Error())
	case errors.Is(err, service.ErrMethodNotFound),
		errors.Is(err, service.ErrPackageNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrProcessing):
		response.BusinessError(c, response.CodeProcessingError, service.ErrProcessing.Error())
	case errors.Is(err, service.ErrDuplicateUser):
		response.BusinessError(c, response.CodeDuplicateUser, err.Error())
	case errors.Is(err, service.ErrLoginFailed):
		response.BusinessError(c, response.CodeLoginFailed, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 注册/登录
// ============================================================

// Register 用户注册
// POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id":  user.ID,
		"username": user.Username,
	})
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 登录，签发会话 token
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	token, user, err := h.userService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"token":    token,
		"user_id":  user.ID,
		"username": user.Username,
		"is_admin": user.IsAdmin,
		"balance":  user.Balance,
	})
}

// Logout 登出，删除会话
// POST /api/v1/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token := ""
	if len(header) > 7 {
		token = header[7:]
	}
	if token != "" {
		_ = h.userService.Logout(c.Request.Context(), token)
	}
	response.Success(c, gin.H{"message": "已登出"})
}

// ============================================================
// 套餐目录
// ============================================================

// ListPackages 套餐列表
// GET /api/v1/packages
func (h *Handler) ListPackages(c *gin.Context) {
	pkgs, err := h.catalog.ListPackages(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, pkgs)
}

// GetPackage 套餐详情
// GET /api/v1/packages/:id
func (h *Handler) GetPackage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}

	pkg, err := h.catalog.GetPackage(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, pkg)
}

// ============================================================
// 账户
// ============================================================

// GetBalance 查询当前用户钻石余额
// GET /api/v1/account/balance
func (h *Handler) GetBalance(c *gin.Context) {
	user := CurrentUser(c)

	// 重新读库，拿最新余额而非会话里的快照
	fresh, err := h.userService.GetUser(c.Request.Context(), user.ID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"user_id": fresh.ID,
		"balance": fresh.Balance,
	})
}

// RotateKey 轮换当前用户的卡数据加密密钥
// POST /api/v1/account/rotate-key
func (h *Handler) RotateKey(c *gin.Context) {
	user := CurrentUser(c)

	if err := h.methodService.RotateKey(c.Request.Context(), user); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "密钥已轮换"})
}

// ============================================================
// 支付方式
// ============================================================

// AddPaymentMethodRequest 新增支付方式请求
type AddPaymentMethodRequest struct {
	CardHolderName string `json:"card_holder_name" binding:"required,max=100"`
	CardNumber     string `json:"card_number" binding:"required"`
	ExpiryMonth    int    `json:"expiry_month" binding:"required"`
	ExpiryYear     int    `json:"expiry_year" binding:"required"`
	CVV            string `json:"cvv" binding:"required"`
	SaveCard       bool   `json:"save_card"`
}

// AddPaymentMethod 校验并（可选）保存新卡
// POST /api/v1/payment-methods
func (h *Handler) AddPaymentMethod(c *gin.Context) {
	var req AddPaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user := CurrentUser(c)
	method, err := h.methodService.AddCard(c.Request.Context(), user, &service.AddCardRequest{
		CardHolderName: req.CardHolderName,
		CardNumber:     req.CardNumber,
		ExpiryMonth:    req.ExpiryMonth,
		ExpiryYear:     req.ExpiryYear,
		CVV:            req.CVV,
		SaveCard:       req.SaveCard,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if method == nil {
		response.Success(c, gin.H{"message": "卡片校验通过"})
		return
	}

	response.Success(c, gin.H{
		"message":           "支付方式已保存",
		"payment_method_id": method.ID,
		"card_brand":        method.CardBrand,
		"last_four":         method.LastFour,
		"is_default":        method.IsDefault,
	})
}

// ListPaymentMethods 当前用户的保存卡列表
// GET /api/v1/payment-methods
// model 的 json 序列化不含卡号/CVV 密文，天然安全
func (h *Handler) ListPaymentMethods(c *gin.Context) {
	user := CurrentUser(c)

	methods, err := h.methodService.List(c.Request.Context(), user.ID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, methods)
}

// SetDefaultPaymentMethod 切换默认卡
// POST /api/v1/payment-methods/:id/default
func (h *Handler) SetDefaultPaymentMethod(c *gin.Context) {
	methodID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}

	user := CurrentUser(c)
	if err := h.methodService.SetDefault(c.Request.Context(), user.ID, methodID); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "默认支付方式已更新"})
}

// DeletePaymentMethod 删除保存卡
// DELETE /api/v1/payment-methods/:id
func (h *Handler) DeletePaymentMethod(c *gin.Context) {
	methodID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}

	user := CurrentUser(c)
	if err := h.methodService.Delete(c.Request.Context(), user.ID, methodID); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "支付方式已删除"})
}

// ============================================================
// 订单
// ============================================================

// CreateOrder 购买套餐（结算）
// POST /api/v1/orders
//
// 【关键点】结算是系统最核心的操作：
// 1. 原子性：订单入库、余额入账、流水、发件箱同一事务
// 2. 并发安全：按用户加分布式锁，入账不丢失
// 3. 模拟拒绝是正常业务结果，带消息返回，不自动重试
func (h *Handler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user := CurrentUser(c)
	result, err := h.settlement.CreateOrder(c.Request.Context(), user, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if result.Status == model.OrderStatusFailed {
		response.BusinessError(c, response.CodePaymentDeclined, result.Message)
		return
	}

	response.Success(c, result)
}

// ListOrders 当前用户订单列表
// GET /api/v1/orders?page=1&page_size=10
func (h *Handler) ListOrders(c *gin.Context) {
	user := CurrentUser(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(h.orderPageSize)))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = h.orderPageSize
	}

	orders, total, err := h.settlement.ListUserOrders(c.Request.Context(), user.ID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
