package service

import (
	"context"
	"errors"
	"strings"

	"MDShelf/internal/model"
	"MDShelf/internal/repo"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrLoginTaken — логин уже зарегистрирован.
	ErrLoginTaken = errors.New("login already taken")
	// ErrInvalidCredentials — неверная пара логин/пароль.
	ErrInvalidCredentials = errors.New("invalid login or password")
	// ErrEmptyCredentials — пустой логин или пароль.
	ErrEmptyCredentials = errors.New("login and password are required")
)

// UserService — регистрация и вход пользователей.
type UserService struct {
	repo repo.UserRepository
}

func NewUserService(r repo.UserRepository) *UserService {
	return &UserService{repo: r}
}

func (s *UserService) lookup(ctx context.Context, login string) (*model.User, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return u, err
}

// Register создаёт пользователя с bcrypt-хешем пароля.
func (s *UserService) Register(ctx context.Context, login, password string) (*model.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrEmptyCredentials
	}
	existing, err := s.lookup(ctx, login)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrLoginTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateUser(ctx, &model.User{Login: login, Password: string(hash)})
}

// Login проверяет пароль и возвращает пользователя.
func (s *UserService) Login(ctx context.Context, login, password string) (*model.User, error) {
	u, err := s.lookup(ctx, strings.TrimSpace(login))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
