package service

import (
	"errors"
	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/repository"
	"quiz_engine_backend/internal/util"
	"quiz_engine_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	Users *repository.UserRepository
	cfg   *config.Config
}

func NewAuthService(users *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{Users: users, cfg: cfg}
}

type RegisterInput struct {
	Name         string         `json:"name" binding:"required,max=100"`
	Email        string         `json:"email" binding:"required,email"`
	Password     string         `json:"password" binding:"required,min=8"`
	Role         model.UserRole `json:"role"`
	DepartmentID uint           `json:"departmentId"`
	SchoolID     uint           `json:"schoolId"`
}

func (s *AuthService) Register(input RegisterInput) (*model.User, error) {
	if _, err := s.Users.FindByEmail(input.Email); err == nil {
		return nil, util.ErrEmailRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = model.Student
	}

	user := &model.User{
		Name:         input.Name,
		Email:        input.Email,
		Password:     string(hashed),
		Role:         role,
		DepartmentID: input.DepartmentID,
		SchoolID:     input.SchoolID,
	}
	if err := s.Users.Create(user); err != nil {
		return nil, err
	}

	logger.Log.Info("user registered", zap.Uint("userId", user.ID), zap.String("role", string(role)))
	return user, nil
}

// Login 密码校验通过后签发 JWT
func (s *AuthService) Login(email, password string) (string, *model.User, error) {
	user, err := s.Users.FindByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, util.ErrUserNotFound
	}
	if err != nil {
		return "", nil, err
	}
	if user.Disabled {
		return "", nil, util.ErrPermissionDenied
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, util.ErrUserNotFound
	}

	token, err := util.GenerateJWT(user, s.cfg.JWT.Secret, s.cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}

	if err := s.Users.UpdateLastLogin(user.ID); err != nil {
		logger.Log.Warn("update last login failed", zap.Uint("userId", user.ID), zap.Error(err))
	}
	return token, user, nil
}

func (s *AuthService) Profile(userID uint) (*model.User, error) {
	user, err := s.Users.FindByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	return user, err
}
