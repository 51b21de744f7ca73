package service

import (
	"context"
	"strings"
	"testing"

	"diamondshop/internal/model"
	"diamondshop/internal/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newReportFixture() (*ReportService, *MockUserRepo, *MockOrderRepo, *MockPaymentMethodRepo, *MockPackageRepo) {
	userRepo := new(MockUserRepo)
	orderRepo := new(MockOrderRepo)
	methodRepo := new(MockPaymentMethodRepo)
	pkgRepo := new(MockPackageRepo)
	return NewReportService(userRepo, orderRepo, methodRepo, pkgRepo), userRepo, orderRepo, methodRepo, pkgRepo
}

// encryptedMethod 用用户自己的密钥造一张加密卡
func encryptedMethod(t *testing.T, user *model.User, id int64, number, cvv string) *model.PaymentMethod {
	t.Helper()
	tag := "tag-report"
	numCipher, err := vault.Encrypt(number, user.EncryptionKey, user.ID, tag, vault.FieldCardNumber)
	require.NoError(t, err)
	cvvCipher, err := vault.Encrypt(cvv, user.EncryptionKey, user.ID, tag, vault.FieldCVV)
	require.NoError(t, err)
	return &model.PaymentMethod{
		ID:             id,
		UserID:         user.ID,
		CardBrand:      model.CardBrandVisa,
		LastFour:       number[len(number)-4:],
		CardHolderName: "HOLDER",
		NumberCipher:   numCipher,
		CVVCipher:      cvvCipher,
		CipherTag:      tag,
	}
}

func TestGetSystemStats(t *testing.T) {
	svc, userRepo, orderRepo, methodRepo, _ := newReportFixture()

	userRepo.On("Count", mock.Anything).Return(int64(10), nil)
	orderRepo.On("Count", mock.Anything).Return(int64(30), nil)
	methodRepo.On("Count", mock.Anything).Return(int64(12), nil)
	orderRepo.On("CountByStatus", mock.Anything, model.OrderStatusCompleted).Return(int64(25), nil)
	orderRepo.On("CountByStatus", mock.Anything, model.OrderStatusFailed).Return(int64(5), nil)
	orderRepo.On("CompletedTotals", mock.Anything).Return(int64(49900), int64(12500), nil)
	methodRepo.On("BrandDistribution", mock.Anything).Return(map[string]int64{
		model.CardBrandVisa:       8,
		model.CardBrandMastercard: 4,
	}, nil)

	stats, err := svc.GetSystemStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(10), stats.TotalUsers)
	assert.Equal(t, int64(30), stats.TotalOrders)
	assert.Equal(t, int64(25), stats.CompletedOrders)
	assert.Equal(t, int64(5), stats.FailedOrders)
	assert.Equal(t, int64(49900), stats.TotalRevenueCents)
	assert.Equal(t, int64(12500), stats.TotalDiamondsSold)
	assert.Equal(t, int64(1996), stats.AvgOrderValueCents) // 49900 / 25
	assert.Equal(t, int64(8), stats.BrandDistribution[model.CardBrandVisa])
}

func TestGetSystemStats_NoCompletedOrders(t *testing.T) {
	svc, userRepo, orderRepo, methodRepo, _ := newReportFixture()

	userRepo.On("Count", mock.Anything).Return(int64(0), nil)
	orderRepo.On("Count", mock.Anything).Return(int64(0), nil)
	methodRepo.On("Count", mock.Anything).Return(int64(0), nil)
	orderRepo.On("CountByStatus", mock.Anything, mock.Anything).Return(int64(0), nil)
	orderRepo.On("CompletedTotals", mock.Anything).Return(int64(0), int64(0), nil)
	methodRepo.On("BrandDistribution", mock.Anything).Return(map[string]int64{}, nil)

	stats, err := svc.GetSystemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.AvgOrderValueCents) // 不能除零
}

func TestDecryptAllPaymentMethods_SkipsUnreadable(t *testing.T) {
	svc, userRepo, _, methodRepo, _ := newReportFixture()
	user := newTestUser(t)

	good := encryptedMethod(t, user, 1, "4111111111111111", "123")
	bad := &model.PaymentMethod{ID: 2, UserID: user.ID, NumberCipher: "坏密文", CVVCipher: "坏密文", CipherTag: "t"}
	orphan := &model.PaymentMethod{ID: 3, UserID: 999} // 用户不存在

	methodRepo.On("ListAll", mock.Anything).Return([]*model.PaymentMethod{good, bad, orphan}, nil)
	userRepo.On("ListAll", mock.Anything).Return([]*model.User{user}, nil)

	data, err := svc.DecryptAllPaymentMethods(context.Background())
	require.NoError(t, err)

	// 解不开的跳过，不中断整体导出
	require.Len(t, data, 1)
	assert.Equal(t, "4111111111111111", data[0].CardNumber)
	assert.Equal(t, "123", data[0].CVV)
	assert.Equal(t, user.Username, data[0].Username)
}

func TestExportPaymentData_CSVEscapesHolderName(t *testing.T) {
	svc, userRepo, _, methodRepo, _ := newReportFixture()
	user := newTestUser(t)

	method := encryptedMethod(t, user, 1, "4111111111111111", "123")
	method.CardHolderName = `O'Brien, "Jr"`

	methodRepo.On("ListAll", mock.Anything).Return([]*model.PaymentMethod{method}, nil)
	userRepo.On("ListAll", mock.Anything).Return([]*model.User{user}, nil)

	out, contentType, err := svc.ExportPaymentData(context.Background(), "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	text := string(out)
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "card_number")
	// 含逗号/引号的字段必须整体加引号转义
	assert.Contains(t, lines[1], `"O'Brien, ""Jr"""`)
	assert.Contains(t, lines[1], "4111111111111111")
}

func TestExportPaymentData_JSON(t *testing.T) {
	svc, userRepo, _, methodRepo, _ := newReportFixture()
	user := newTestUser(t)

	methodRepo.On("ListAll", mock.Anything).Return([]*model.PaymentMethod{
		encryptedMethod(t, user, 1, "4111111111111111", "123"),
	}, nil)
	userRepo.On("ListAll", mock.Anything).Return([]*model.User{user}, nil)

	out, contentType, err := svc.ExportPaymentData(context.Background(), "json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
	assert.Contains(t, string(out), `"card_number": "4111111111111111"`)
}

func TestFindDuplicateCards(t *testing.T) {
	svc, userRepo, _, methodRepo, _ := newReportFixture()

	alice := newTestUser(t)
	bobKey, err := vault.GenerateKey()
	require.NoError(t, err)
	bob := &model.User{ID: 43, Username: "bob", EncryptionKey: bobKey}

	// 同一张卡被两个账户保存，各自密钥加密
	m1 := encryptedMethod(t, alice, 1, "4111111111111111", "123")
	m2 := encryptedMethod(t, bob, 2, "4111111111111111", "999")
	m3 := encryptedMethod(t, alice, 3, "5500005555555559", "456")

	methodRepo.On("ListAll", mock.Anything).Return([]*model.PaymentMethod{m1, m2, m3}, nil)
	userRepo.On("ListAll", mock.Anything).Return([]*model.User{alice, bob}, nil)

	duplicates, err := svc.FindDuplicateCards(context.Background())
	require.NoError(t, err)

	require.Len(t, duplicates, 1)
	assert.Equal(t, "4111111111111111", duplicates[0].CardNumber)
	assert.Equal(t, 2, duplicates[0].Count)
	require.Len(t, duplicates[0].Holders, 2)
}

func TestGetUserAnalytics(t *testing.T) {
	svc, userRepo, orderRepo, methodRepo, pkgRepo := newReportFixture()

	user := &model.User{ID: 42, Username: "alice", GameID: "G1", Balance: 600}
	userRepo.On("GetByID", mock.Anything, int64(42)).Return(user, nil)
	orderRepo.On("CountByUserID", mock.Anything, int64(42)).Return(int64(4), nil)
	orderRepo.On("CountByUserIDAndStatus", mock.Anything, int64(42), model.OrderStatusCompleted).Return(int64(3), nil)
	orderRepo.On("UserCompletedTotals", mock.Anything, int64(42)).Return(int64(1497), int64(1500), nil)
	methodRepo.On("CountByUserID", mock.Anything, int64(42)).Return(int64(2), nil)
	orderRepo.On("ListRecentByUserID", mock.Anything, int64(42), 10).Return([]*model.Order{
		{ID: 1, OrderNo: "ORD1", PackageID: 3, Diamonds: 500, AmountCents: 499, Status: model.OrderStatusCompleted},
	}, nil)
	pkgRepo.On("ListAll", mock.Anything).Return([]*model.DiamondPackage{
		{ID: 3, Name: "Elite Pack"},
	}, nil)

	analytics, err := svc.GetUserAnalytics(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, int64(4), analytics.TotalOrders)
	assert.Equal(t, int64(3), analytics.CompletedOrders)
	assert.Equal(t, int64(1497), analytics.TotalSpentCents)
	assert.Equal(t, int64(1500), analytics.TotalDiamondsBought)
	assert.Equal(t, int64(2), analytics.PaymentMethodsCount)
	require.Len(t, analytics.RecentOrders, 1)
	assert.Equal(t, "Elite Pack", analytics.RecentOrders[0].PackageName)
}
