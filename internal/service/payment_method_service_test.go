package service

import (
	"context"
	"testing"

	"diamondshop/internal/model"
	"diamondshop/internal/processor"
	"diamondshop/internal/repository"
	"diamondshop/internal/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestUser(t *testing.T) *model.User {
	t.Helper()
	key, err := vault.GenerateKey()
	require.NoError(t, err)
	return &model.User{
		ID:            42,
		Username:      "alice",
		Email:         "alice@example.com",
		EncryptionKey: key,
	}
}

func newMethodService(methodRepo *MockPaymentMethodRepo, userRepo *MockUserRepo) *PaymentMethodService {
	return NewPaymentMethodService(
		&fakeTxManager{},
		methodRepo,
		userRepo,
		processor.NewCardValidator(true),
		noopLockFactory,
	)
}

func validAddCardRequest() *AddCardRequest {
	return &AddCardRequest{
		CardHolderName: "ALICE W",
		CardNumber:     "4111 1111 1111 1111",
		ExpiryMonth:    12,
		ExpiryYear:     2030,
		CVV:            "123",
		SaveCard:       true,
	}
}

func TestAddCard_FirstCardBecomesDefault(t *testing.T) {
	methodRepo := new(MockPaymentMethodRepo)
	userRepo := new(MockUserRepo)
	svc := newMethodService(methodRepo, userRepo)
	user := newTestUser(t)

	methodRepo.On("CountByUserID", mock.Anything, user.ID).Return(int64(0), nil)
	methodRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	method, err := svc.AddCard(context.Background(), user, validAddCardRequest())
	require.NoError(t, err)
	require.NotNil(t, method)

	assert.True(t, method.IsDefault)
	assert.Equal(t, model.CardBrandVisa, method.CardBrand)
	assert.Equal(t, "1111", method.LastFour)
	assert.NotEmpty(t, method.CipherTag)

	// 密文必须能用该用户的密钥解回明文
	number, ok := vault.Decrypt(method.NumberCipher, user.EncryptionKey, user.ID, method.CipherTag, vault.FieldCardNumber)
	require.True(t, ok)
	assert.Equal(t, "4111111111111111", number)

	cvv, ok := vault.Decrypt(method.CVVCipher, user.EncryptionKey, user.ID, method.CipherTag, vault.FieldCVV)
	require.True(t, ok)
	assert.Equal(t, "123", cvv)

	methodRepo.AssertExpectations(t)
}

func TestAddCard_SecondCardNotDefault(t *testing.T) {
	methodRepo := new(MockPaymentMethodRepo)
	userRepo := new(MockUserRepo)
	svc := newMethodService(methodRepo, userRepo)
	user := newTestUser(t)

	methodRepo.On("CountByUserID", mock.Anything, user.ID).Return(int64(1), nil)
	methodRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	method, err := svc.AddCard(context.Background(), user, validAddCardRequest())
	require.NoError(t, err)
	require.NotNil(t, method)
	assert.False(t, method.IsDefault)
}

func TestAddCard_InvalidCardWritesNothing(t *testing.T) {
	methodRepo := new(MockPaymentMethodRepo)
	userRepo := new(MockUserRepo)
	svc := newMethodService(methodRepo, userRepo)
	user := newTestUser(t)

	req := validAddCardRequest()
	req.CardNumber = "4111111111111112" // Luhn 校验失败

	method, err := svc.AddCard(context.Background(), user, req)
	assert.Nil(t, method)
	assert.ErrorIs(t, err, ErrCardInvalid)

	methodRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddCard_ValidateOnlyDoesNotPersist(t *testing.T) {
	methodRepo := new(MockPaymentMethodRepo)
	userRepo := new(MockUserRepo)
	svc := newMethodService(methodRepo, userRepo)
	user := newTestUser(t)

	req := validAddCardRequest()
	req.SaveCard = false

	method, err := svc.AddCard(context.Background(), user, req)
	require.NoError(t, err)
	assert.Nil(t, method)

	methodRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	methodRepo.AssertNotCalled(t, "CountByUserID", mock.Anything, mock.Anything)
}

func TestAddCard_IndependentCiphertexts(t *testing.T) {
	methodRepo := new(MockPaymentMethodRepo)
	userRepo := new(MockUserRepo)
	svc := newMethodService(methodRepo, userRepo)
	user := newTestUser(t)

	methodRepo.On("CountByUserID", mock.Anything, user.ID).Return(int64(0), nil)
	methodRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	method, err := svc.AddCard(context.Background(), user, validAddCardRequest())
	require.NoError(t, err)

	// 卡号密文不能当 CVV 密文解，字段绑定生效
	_, ok := vault.Decrypt(method.NumberCipher, user.EncryptionKey, user.ID, method.CipherTag, vault.FieldCVV)
	assert.False(t, ok)
}

func TestSetDefault_ClearsThenSets(t *testing.T) {
	methodRepo := new(MockPaymentMethodRepo)
	userRepo := new(MockUserRepo)
	svc := newMethodService(methodRepo, userRepo)

	methodRepo.On("GetByIDForUser", mock.Anything, int64(7), int64(42)).
		Return(&model.PaymentMethod{ID: 7, UserID: 42}, nil)
	methodRepo.On("ClearDefaults", mock.Anything, mock.Anything, int64(42)).Return(nil)
	methodRepo.On("SetDefault", mock.Anything, mock.Anything, int64(7), int64(42)).Return(nil)

	err := svc.SetDefault(context.Background(), 42, 7)
	require.NoError(t, err)
	methodRepo.AssertExpectations(t)
}

func TestSetDefault_CrossUserMethodNotFound(t *testing.T) {
	methodRepo := new(MockPaymentMethodRepo)
	userRepo := new(MockUserRepo)
	svc := newMethodService(methodRepo, userRepo)

	// 别人的卡：按用户范围查不到，统一返回不存在
	methodRepo.On("GetByIDForUser", mock.Anything, int64(7), int64(42)).
		Return(nil, repository.ErrMethodNotFound)

	err := svc.SetDefault(context.Background(), 42, 7)
	assert.ErrorIs(t, err, ErrMethodNotFound)

	methodRepo.AssertNotCalled(t, "ClearDefaults", mock.Anything, mock.Anything, mock.Anything)
	methodRepo.AssertNotCalled(t, "SetDefault", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDelete_NotFound(t *testing.T) {
	methodRepo := new(MockPaymentMethodRepo)
	userRepo := new(MockUserRepo)
	svc := newMethodService(methodRepo, userRepo)

	methodRepo.On("Delete", mock.Anything, int64(99), int64(42)).
		Return(repository.ErrMethodNotFound)

	err := svc.Delete(context.Background(), 42, 99)
	assert.ErrorIs(t, err, ErrMethodNotFound)
}

func TestRotateKey_ReEncryptsAllCards(t *testing.T) {
	methodRepo := new(MockPaymentMethodRepo)
	userRepo := new(MockUserRepo)
	svc := newMethodService(methodRepo, userRepo)
	user := newTestUser(t)

	// 先用旧密钥造两张加密卡
	oldTag1, oldTag2 := "tag-1", "tag-2"
	num1, err := vault.Encrypt("4111111111111111", user.EncryptionKey, user.ID, oldTag1, vault.FieldCardNumber)
	require.NoError(t, err)
	cvv1, err := vault.Encrypt("123", user.EncryptionKey, user.ID, oldTag1, vault.FieldCVV)
	require.NoError(t, err)
	num2, err := vault.Encrypt("5500005555555559", user.EncryptionKey, user.ID, oldTag2, vault.FieldCardNumber)
	require.NoError(t, err)
	cvv2, err := vault.Encrypt("456", user.EncryptionKey, user.ID, oldTag2, vault.FieldCVV)
	require.NoError(t, err)

	methods := []*model.PaymentMethod{
		{ID: 1, UserID: user.ID, NumberCipher: num1, CVVCipher: cvv1, CipherTag: oldTag1},
		{ID: 2, UserID: user.ID, NumberCipher: num2, CVVCipher: cvv2, CipherTag: oldTag2},
	}
	methodRepo.On("ListByUserID", mock.Anything, user.ID).Return(methods, nil)

	var newKey string
	userRepo.On("UpdateEncryptionKey", mock.Anything, mock.Anything, user.ID, mock.Anything).
		Run(func(args mock.Arguments) { newKey = args.String(3) }).
		Return(nil)

	type cipherUpdate struct {
		numberCipher string
		cvvCipher    string
		pairTag      string
	}
	updated := make(map[int64]cipherUpdate)
	methodRepo.On("UpdateCiphers", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			updated[args.Get(2).(int64)] = cipherUpdate{
				numberCipher: args.String(3),
				cvvCipher:    args.String(4),
				pairTag:      args.String(5),
			}
		}).
		Return(nil)

	require.NoError(t, svc.RotateKey(context.Background(), user))

	require.Len(t, updated, 2)
	assert.NotEqual(t, user.EncryptionKey, newKey)

	// 新密文必须能用新密钥解出原明文
	u1 := updated[1]
	number, ok := vault.Decrypt(u1.numberCipher, newKey, user.ID, u1.pairTag, vault.FieldCardNumber)
	require.True(t, ok)
	assert.Equal(t, "4111111111111111", number)

	u2 := updated[2]
	cvv, ok := vault.Decrypt(u2.cvvCipher, newKey, user.ID, u2.pairTag, vault.FieldCVV)
	require.True(t, ok)
	assert.Equal(t, "456", cvv)

	// 旧密钥解不开新密文
	_, ok = vault.Decrypt(u1.numberCipher, user.EncryptionKey, user.ID, u1.pairTag, vault.FieldCardNumber)
	assert.False(t, ok)
}

func TestRotateKey_AbortsWhenAnyCardUnreadable(t *testing.T) {
	methodRepo := new(MockPaymentMethodRepo)
	userRepo := new(MockUserRepo)
	svc := newMethodService(methodRepo, userRepo)
	user := newTestUser(t)

	methods := []*model.PaymentMethod{
		{ID: 1, UserID: user.ID, NumberCipher: "垃圾数据", CVVCipher: "垃圾数据", CipherTag: "tag"},
	}
	methodRepo.On("ListByUserID", mock.Anything, user.ID).Return(methods, nil)

	err := svc.RotateKey(context.Background(), user)
	assert.ErrorIs(t, err, ErrProcessing)

	// 半轮换状态不允许出现
	methodRepo.AssertNotCalled(t, "UpdateCiphers",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	userRepo.AssertNotCalled(t, "UpdateEncryptionKey",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDecryptCard_WrongUserFailsClosed(t *testing.T) {
	user := newTestUser(t)
	tag := "tag-x"

	num, err := vault.Encrypt("4111111111111111", user.EncryptionKey, user.ID, tag, vault.FieldCardNumber)
	require.NoError(t, err)
	cvv, err := vault.Encrypt("123", user.EncryptionKey, user.ID, tag, vault.FieldCVV)
	require.NoError(t, err)

	method := &model.PaymentMethod{
		UserID:       user.ID,
		NumberCipher: num,
		CVVCipher:    cvv,
		CipherTag:    tag,
	}

	card, ok := DecryptCard(user, method)
	require.True(t, ok)
	assert.Equal(t, "4111111111111111", card.CardNumber)

	// 把密文挪到别的用户名下，AAD 不匹配，解密必须失败
	method.UserID = user.ID + 1
	_, ok = DecryptCard(user, method)
	assert.False(t, ok)
}
