package dto

import (
	"github.com/agrovoz/agromarket-backend/internal/models"
	"github.com/agrovoz/agromarket-backend/internal/service"
)

// ErrorResponse стандартный ответ с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse стандартный успешный ответ.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AuthResponse ответ на регистрацию и вход.
type AuthResponse struct {
	User    *models.User       `json:"user"`
	Profile *models.Profile    `json:"profile,omitempty"`
	Tokens  *service.TokenPair `json:"tokens"`
}

// MeResponse ответ на запрос текущего пользователя.
type MeResponse struct {
	User    *models.User    `json:"user"`
	Profile *models.Profile `json:"profile,omitempty"`
}
