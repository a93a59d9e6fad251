package service

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/yourusername/spinwheel-api/internal/domain/entity"
	"github.com/yourusername/spinwheel-api/internal/domain/repository"
	apperrors "github.com/yourusername/spinwheel-api/internal/pkg/errors"
	"github.com/yourusername/spinwheel-api/pkg/auth"
)

// AuthService отвечает за регистрацию и вход
type AuthService struct {
	userRepo       repository.UserRepository
	jwtService     *auth.JWTService
	initialBalance int64
}

// NewAuthService создает новый сервис аутентификации
func NewAuthService(
	userRepo repository.UserRepository,
	jwtService *auth.JWTService,
	initialBalance int64,
) *AuthService {
	return &AuthService{
		userRepo:       userRepo,
		jwtService:     jwtService,
		initialBalance: initialBalance,
	}
}

// Register создает аккаунт со стартовым балансом и возвращает токен доступа
func (s *AuthService) Register(username, email, password string) (*entity.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if len(username) < 3 || len(username) > 50 {
		return nil, "", fmt.Errorf("%w: username must be 3-50 characters", apperrors.ErrValidation)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("%w: valid email is required", apperrors.ErrValidation)
	}
	if len(password) < 8 {
		return nil, "", fmt.Errorf("%w: password must be at least 8 characters", apperrors.ErrValidation)
	}

	if _, err := s.userRepo.GetByEmail(email); err == nil {
		return nil, "", fmt.Errorf("%w: email is already registered", apperrors.ErrConflict)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, "", err
	}
	if _, err := s.userRepo.GetByUsername(username); err == nil {
		return nil, "", fmt.Errorf("%w: username is already taken", apperrors.ErrConflict)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, "", err
	}

	user := &entity.User{
		Username: username,
		Email:    email,
		Password: password, // Хешируется в BeforeSave
		Role:     entity.RoleUser,
		Balance:  s.initialBalance,
		Active:   true,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, "", err
	}

	token, err := s.jwtService.GenerateToken(user)
	if err != nil {
		return nil, "", err
	}

	log.Printf("[AuthService] Зарегистрирован аккаунт ID=%d (%s), стартовый баланс %d",
		user.ID, username, s.initialBalance)
	return user, token, nil
}

// Login проверяет учетные данные и возвращает токен доступа
func (s *AuthService) Login(email, password string) (*entity.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Не раскрываем, существует ли email
			return nil, "", apperrors.ErrUnauthorized
		}
		return nil, "", err
	}
	if !user.CheckPassword(password) {
		return nil, "", apperrors.ErrUnauthorized
	}
	if !user.Active {
		return nil, "", apperrors.ErrAccountInactive
	}

	token, err := s.jwtService.GenerateToken(user)
	if err != nil {
		return nil, "", err
	}

	if err := s.userRepo.UpdateLastLogin(user.ID); err != nil {
		log.Printf("[AuthService] Не удалось обновить last_login для ID=%d: %v", user.ID, err)
	}
	return user, token, nil
}

// GenerateWSTicket выдает короткоживущий тикет для WebSocket-подключения
func (s *AuthService) GenerateWSTicket(userID uint) (string, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return "", err
	}
	if !user.Active {
		return "", apperrors.ErrAccountInactive
	}
	return s.jwtService.GenerateWSTicket(user.ID, user.Email)
}
