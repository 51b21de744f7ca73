package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"diamondshop/internal/model"
	"diamondshop/internal/repository"
)

// ReportService 管理端只读统计/导出
//
// 纯读侧聚合，无任何写副作用。批量解密导出属于管理员能力，
// 权限完全由外层鉴权中间件把关，这里不做二次判断。
type ReportService struct {
	userRepo   UserRepo
	orderRepo  OrderRepo
	methodRepo PaymentMethodRepo
	pkgRepo    PackageRepo
}

func NewReportService(userRepo UserRepo, orderRepo OrderRepo, methodRepo PaymentMethodRepo, pkgRepo PackageRepo) *ReportService {
	return &ReportService{
		userRepo:   userRepo,
		orderRepo:  orderRepo,
		methodRepo: methodRepo,
		pkgRepo:    pkgRepo,
	}
}

// SystemStats 系统总览
type SystemStats struct {
	TotalUsers          int64            `json:"total_users"`
	TotalOrders         int64            `json:"total_orders"`
	TotalPaymentMethods int64            `json:"total_payment_methods"`
	TotalRevenueCents   int64            `json:"total_revenue_cents"`
	CompletedOrders     int64            `json:"completed_orders"`
	FailedOrders        int64            `json:"failed_orders"`
	AvgOrderValueCents  int64            `json:"avg_order_value_cents"`
	TotalDiamondsSold   int64            `json:"total_diamonds_sold"`
	BrandDistribution   map[string]int64 `json:"brand_distribution"`
}

func (s *ReportService) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	totalUsers, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计用户失败: %w", err)
	}
	totalOrders, err := s.orderRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计订单失败: %w", err)
	}
	totalMethods, err := s.methodRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计支付方式失败: %w", err)
	}
	completed, err := s.orderRepo.CountByStatus(ctx, model.OrderStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("统计已完成订单失败: %w", err)
	}
	failed, err := s.orderRepo.CountByStatus(ctx, model.OrderStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("统计失败订单失败: %w", err)
	}
	revenue, diamonds, err := s.orderRepo.CompletedTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计营收失败: %w", err)
	}
	brands, err := s.methodRepo.BrandDistribution(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计品牌分布失败: %w", err)
	}

	var avg int64
	if completed > 0 {
		avg = revenue / completed
	}

	return &SystemStats{
		TotalUsers:          totalUsers,
		TotalOrders:         totalOrders,
		TotalPaymentMethods: totalMethods,
		TotalRevenueCents:   revenue,
		CompletedOrders:     completed,
		FailedOrders:        failed,
		AvgOrderValueCents:  avg,
		TotalDiamondsSold:   diamonds,
		BrandDistribution:   brands,
	}, nil
}

// DecryptedPaymentMethod 解密后的完整卡数据，只在管理端导出路径出现
type DecryptedPaymentMethod struct {
	UserID          int64  `json:"user_id"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	PaymentMethodID int64  `json:"payment_method_id"`
	CardBrand       string `json:"card_brand"`
	LastFour        string `json:"last_four"`
	CardHolderName  string `json:"card_holder_name"`
	CardNumber      string `json:"card_number"`
	ExpiryMonth     int    `json:"expiry_month"`
	ExpiryYear      int    `json:"expiry_year"`
	CVV             string `json:"cvv"`
	IsDefault       bool   `json:"is_default"`
	CreatedAt       string `json:"created_at"`
}

// DecryptAllPaymentMethods 用各持卡人自己的密钥解出全部卡数据
// 解不开的记录跳过并记日志，不中断整体导出
func (s *ReportService) DecryptAllPaymentMethods(ctx context.Context) ([]*DecryptedPaymentMethod, error) {
	methods, err := s.methodRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询支付方式失败: %w", err)
	}
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	byID := make(map[int64]*model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	result := make([]*DecryptedPaymentMethod, 0, len(methods))
	for _, m := range methods {
		user, ok := byID[m.UserID]
		if !ok || user.EncryptionKey == "" {
			continue
		}

		card, ok := DecryptCard(user, m)
		if !ok {
			log.Printf("[Report] 解密支付方式失败: methodID=%d", m.ID)
			continue
		}

		result = append(result, &DecryptedPaymentMethod{
			UserID:          user.ID,
			Username:        user.Username,
			Email:           user.Email,
			PaymentMethodID: m.ID,
			CardBrand:       m.CardBrand,
			LastFour:        m.LastFour,
			CardHolderName:  m.CardHolderName,
			CardNumber:      card.CardNumber,
			ExpiryMonth:     m.ExpiryMonth,
			ExpiryYear:      m.ExpiryYear,
			CVV:             card.CVV,
			IsDefault:       m.IsDefault,
			CreatedAt:       m.CreatedAt.Format(time.RFC3339),
		})
	}

	return result, nil
}

// DecryptPaymentMethod 解密单张卡（管理端排查用）
func (s *ReportService) DecryptPaymentMethod(ctx context.Context, methodID int64) (*DecryptedPaymentMethod, error) {
	method, err := s.methodRepo.GetByID(ctx, methodID)
	if err != nil {
		if errors.Is(err, repository.ErrMethodNotFound) {
			return nil, ErrMethodNotFound
		}
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, method.UserID)
	if err != nil {
		return nil, ErrProcessing
	}

	card, ok := DecryptCard(user, method)
	if !ok {
		return nil, ErrProcessing
	}

	return &DecryptedPaymentMethod{
		UserID:          user.ID,
		Username:        user.Username,
		Email:           user.Email,
		PaymentMethodID: method.ID,
		CardBrand:       method.CardBrand,
		LastFour:        method.LastFour,
		CardHolderName:  method.CardHolderName,
		CardNumber:      card.CardNumber,
		ExpiryMonth:     method.ExpiryMonth,
		ExpiryYear:      method.ExpiryYear,
		CVV:             card.CVV,
		IsDefault:       method.IsDefault,
		CreatedAt:       method.CreatedAt.Format(time.RFC3339),
	}, nil
}

// ExportPaymentData 按格式导出卡数据
// CSV 由 encoding/csv 负责转义持卡人姓名里的逗号/引号
func (s *ReportService) ExportPaymentData(ctx context.Context, format string) ([]byte, string, error) {
	data, err := s.DecryptAllPaymentMethods(ctx)
	if err != nil {
		return nil, "", err
	}

	if format == "csv" {
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)

		header := []string{
			"user_id", "username", "email", "payment_method_id",
			"card_brand", "last_four", "card_holder_name", "card_number",
			"expiry_month", "expiry_year", "cvv", "is_default", "created_at",
		}
		if err := w.Write(header); err != nil {
			return nil, "", err
		}

		for _, item := range data {
			record := []string{
				strconv.FormatInt(item.UserID, 10),
				item.Username,
				item.Email,
				strconv.FormatInt(item.PaymentMethodID, 10),
				item.CardBrand,
				item.LastFour,
				item.CardHolderName,
				item.CardNumber,
				strconv.Itoa(item.ExpiryMonth),
				strconv.Itoa(item.ExpiryYear),
				item.CVV,
				strconv.FormatBool(item.IsDefault),
				item.CreatedAt,
			}
			if err := w.Write(record); err != nil {
				return nil, "", err
			}
		}

		w.Flush()
		if err := w.Error(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv", nil
	}

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, "", err
	}
	return out, "application/json", nil
}

// DuplicateCardGroup 同一卡号被多个支付方式引用
type DuplicateCardGroup struct {
	CardNumber string                    `json:"card_number"`
	Count      int                       `json:"count"`
	Holders    []*DecryptedPaymentMethod `json:"holders"`
}

// FindDuplicateCards 按解密后的卡号分组，报告出现多次的卡
func (s *ReportService) FindDuplicateCards(ctx context.Context) ([]*DuplicateCardGroup, error) {
	data, err := s.DecryptAllPaymentMethods(ctx)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]*DecryptedPaymentMethod)
	for _, item := range data {
		groups[item.CardNumber] = append(groups[item.CardNumber], item)
	}

	duplicates := make([]*DuplicateCardGroup, 0)
	for number, holders := range groups {
		if len(holders) > 1 {
			duplicates = append(duplicates, &DuplicateCardGroup{
				CardNumber: number,
				Count:      len(holders),
				Holders:    holders,
			})
		}
	}

	return duplicates, nil
}

// UserAnalytics 单用户画像
type UserAnalytics struct {
	UserID              int64         `json:"user_id"`
	Username            string        `json:"username"`
	Email               string        `json:"email"`
	GameID              string        `json:"game_id"`
	Balance             int64         `json:"balance"`
	IsAdmin             bool          `json:"is_admin"`
	TotalOrders         int64         `json:"total_orders"`
	CompletedOrders     int64         `json:"completed_orders"`
	TotalSpentCents     int64         `json:"total_spent_cents"`
	TotalDiamondsBought int64         `json:"total_diamonds_bought"`
	PaymentMethodsCount int64         `json:"payment_methods_count"`
	MemberSince         string        `json:"member_since"`
	RecentOrders        []RecentOrder `json:"recent_orders,omitempty"`
}

type RecentOrder struct {
	OrderID     int64  `json:"order_id"`
	OrderNo     string `json:"order_no"`
	PackageName string `json:"package_name"`
	Diamonds    int    `json:"diamonds"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

// GetUserAnalytics 单用户统计，含最近 10 笔订单
func (s *ReportService) GetUserAnalytics(ctx context.Context, userID int64) (*UserAnalytics, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, repository.ErrUserNotFound
		}
		return nil, err
	}

	analytics, err := s.buildUserAnalytics(ctx, user)
	if err != nil {
		return nil, err
	}

	recent, err := s.orderRepo.ListRecentByUserID(ctx, userID, 10)
	if err != nil {
		return nil, fmt.Errorf("查询近期订单失败: %w", err)
	}

	pkgNames, err := s.packageNames(ctx)
	if err != nil {
		return nil, err
	}

	for _, order := range recent {
		analytics.RecentOrders = append(analytics.RecentOrders, RecentOrder{
			OrderID:     order.ID,
			OrderNo:     order.OrderNo,
			PackageName: pkgNames[order.PackageID],
			Diamonds:    order.Diamonds,
			AmountCents: order.AmountCents,
			Status:      order.Status,
			CreatedAt:   order.CreatedAt.Format(time.RFC3339),
		})
	}

	return analytics, nil
}

// GetAllUsersAnalytics 全量用户统计（不含订单明细）
func (s *ReportService) GetAllUsersAnalytics(ctx context.Context) ([]*UserAnalytics, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	result := make([]*UserAnalytics, 0, len(users))
	for _, user := range users {
		analytics, err := s.buildUserAnalytics(ctx, user)
		if err != nil {
			return nil, err
		}
		result = append(result, analytics)
	}
	return result, nil
}

func (s *ReportService) buildUserAnalytics(ctx context.Context, user *model.User) (*UserAnalytics, error) {
	totalOrders, err := s.orderRepo.CountByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("统计订单失败: %w", err)
	}
	completedOrders, err := s.orderRepo.CountByUserIDAndStatus(ctx, user.ID, model.OrderStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("统计订单失败: %w", err)
	}
	spent, diamonds, err := s.orderRepo.UserCompletedTotals(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("统计消费失败: %w", err)
	}
	methodCount, err := s.methodRepo.CountByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("统计支付方式失败: %w", err)
	}

	return &UserAnalytics{
		UserID:              user.ID,
		Username:            user.Username,
		Email:               user.Email,
		GameID:              user.GameID,
		Balance:             user.Balance,
		IsAdmin:             user.IsAdmin,
		TotalOrders:         totalOrders,
		CompletedOrders:     completedOrders,
		TotalSpentCents:     spent,
		TotalDiamondsBought: diamonds,
		PaymentMethodsCount: methodCount,
		MemberSince:         user.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *ReportService) packageNames(ctx context.Context) (map[int64]string, error) {
	pkgs, err := s.pkgRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询套餐失败: %w", err)
	}
	names := make(map[int64]string, len(pkgs))
	for _, p := range pkgs {
		names[p.ID] = p.Name
	}
	return names, nil
}
