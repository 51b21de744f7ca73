package service

import (
	"context"
	"errors"
	"fmt"

	"diamondshop/internal/model"
	"diamondshop/internal/repository"
	"diamondshop/internal/vault"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserService 注册/登录/会话解析
// 注册时为用户生成一把卡数据加密密钥，伴随账户终身（轮换见 PaymentMethodService.RotateKey）
type UserService struct {
	userRepo UserRepo
	sessions SessionStore
}

func NewUserService(userRepo UserRepo, sessions SessionStore) *UserService {
	return &UserService{
		userRepo: userRepo,
		sessions: sessions,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=80"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	GameID   string `json:"game_id" binding:"required,max=20"`
}

func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*model.User, error) {
	exists, err := s.userRepo.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if exists {
		return nil, ErrDuplicateUser
	}

	exists, err = s.userRepo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if exists {
		return nil, ErrDuplicateUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("生成密码哈希失败: %w", err)
	}

	key, err := vault.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("生成加密密钥失败: %w", err)
	}

	user := &model.User{
		Username:      req.Username,
		Email:         req.Email,
		PasswordHash:  string(hash),
		GameID:        req.GameID,
		Balance:       0,
		EncryptionKey: key,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	return user, nil
}

// Login 校验密码并签发会话 token
func (s *UserService) Login(ctx context.Context, username, password string) (string, *model.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrLoginFailed
		}
		return "", nil, fmt.Errorf("查询用户失败: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrLoginFailed
	}

	token := uuid.NewString()
	if err := s.sessions.Save(ctx, token, user.ID); err != nil {
		return "", nil, fmt.Errorf("保存会话失败: %w", err)
	}

	return token, user, nil
}

func (s *UserService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// ResolveSession token -> 用户，middleware 调用
func (s *UserService) ResolveSession(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, userID)
}

func (s *UserService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}
