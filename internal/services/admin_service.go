package services

import (
	"context"
	"crypto/subtle"

	"paygate_backend/internal/auth"
	"paygate_backend/internal/logger"
	"paygate_backend/internal/services/dto"
	"paygate_backend/pkg/apperrors"
)

type AdminService interface {
	Login(ctx context.Context, req *dto.AdminLoginRequest) (*dto.AdminLoginResponse, error)
}

type AdminServiceImpl struct {
	username     string
	passwordHash string
	tokens       *auth.TokenManager
}

func NewAdminService(username, passwordHash string, tokens *auth.TokenManager) AdminService {
	return &AdminServiceImpl{
		username:     username,
		passwordHash: passwordHash,
		tokens:       tokens,
	}
}

func (s *AdminServiceImpl) Login(ctx context.Context, req *dto.AdminLoginRequest) (*dto.AdminLoginResponse, error) {
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.username)) == 1
	// bcrypt runs even when the username is wrong
	passOK := auth.CheckPasswordHash(req.Password, s.passwordHash)
	if !userOK || !passOK {
		logger.CtxWarn(ctx, "Admin login rejected", "username", req.Username)
		return nil, apperrors.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(s.username, auth.RoleAdmin)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "Admin logged in", "username", s.username)
	return &dto.AdminLoginResponse{Token: token, ExpiresAt: expiresAt}, nil
}
