// Package businessflow contains the core business logic and use cases for the analytics pipeline
package businessflow

import (
	"context"
	"time"

	"github.com/Munim94s/peakself-backend/app/dto"
	"github.com/Munim94s/peakself-backend/app/services"
	"github.com/Munim94s/peakself-backend/models"
	"github.com/Munim94s/peakself-backend/repository"
	"github.com/Munim94s/peakself-backend/utils"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthFlow represents the admin authentication flow used by handlers
type AdminAuthFlow interface {
	Login(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminLoginResponse, error)
	Refresh(ctx context.Context, req *dto.AdminRefreshRequest) (*dto.AdminLoginResponse, error)
}

// AdminAuthFlowImpl provides admin credential verification and token refresh
type AdminAuthFlowImpl struct {
	adminRepo    repository.AdminRepository
	tokenService services.TokenService
	accessTTL    time.Duration
}

func NewAdminAuthFlow(adminRepo repository.AdminRepository, tokenService services.TokenService, accessTTL time.Duration) AdminAuthFlow {
	return &AdminAuthFlowImpl{
		adminRepo:    adminRepo,
		tokenService: tokenService,
		accessTTL:    accessTTL,
	}
}

func (af *AdminAuthFlowImpl) Login(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminLoginResponse, error) {
	// Validate request
	if req == nil || len(req.Username) == 0 || len(req.Password) == 0 {
		return nil, NewBusinessError("ADMIN_LOGIN_VALIDATION_FAILED", "Admin login validation failed", ErrIncorrectPassword)
	}

	// Lookup admin
	admin, err := af.adminRepo.ByUsername(ctx, req.Username)
	if err != nil {
		return nil, NewBusinessError("ADMIN_LOOKUP_FAILED", "Failed to lookup admin", err)
	}
	if admin == nil {
		return nil, NewBusinessError("ADMIN_NOT_FOUND", "Admin not found", ErrAdminNotFound)
	}
	if !utils.IsTrue(admin.IsActive) {
		return nil, NewBusinessError("ADMIN_INACTIVE", "Admin account is inactive", ErrAdminInactive)
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		return nil, NewBusinessError("ADMIN_INCORRECT_PASSWORD", "Incorrect password", ErrIncorrectPassword)
	}

	// Generate admin tokens
	accessToken, refreshToken, err := af.tokenService.GenerateAdminTokens(admin.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}

	if err := af.adminRepo.UpdateLastLogin(ctx, admin.ID, utils.UTCNow()); err != nil {
		return nil, NewBusinessError("ADMIN_UPDATE_FAILED", "Failed to record admin login", err)
	}

	return &dto.AdminLoginResponse{
		Admin:   af.toAdminDTO(admin),
		Session: af.toSessionDTO(accessToken, refreshToken),
	}, nil
}

func (af *AdminAuthFlowImpl) Refresh(ctx context.Context, req *dto.AdminRefreshRequest) (*dto.AdminLoginResponse, error) {
	if req == nil || req.RefreshToken == "" {
		return nil, NewBusinessError("ADMIN_REFRESH_VALIDATION_FAILED", "Refresh token is required", services.ErrTokenInvalid)
	}

	accessToken, refreshToken, err := af.tokenService.RefreshAdminToken(req.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Failed to refresh tokens", err)
	}

	claims, err := af.tokenService.ValidateAdminToken(accessToken)
	if err != nil {
		return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Failed to validate refreshed token", err)
	}

	admin, err := af.adminRepo.ByID(ctx, claims.AdminID)
	if err != nil {
		return nil, NewBusinessError("ADMIN_LOOKUP_FAILED", "Failed to lookup admin", err)
	}
	if admin == nil {
		return nil, NewBusinessError("ADMIN_NOT_FOUND", "Admin not found", ErrAdminNotFound)
	}
	if !utils.IsTrue(admin.IsActive) {
		return nil, NewBusinessError("ADMIN_INACTIVE", "Admin account is inactive", ErrAdminInactive)
	}

	return &dto.AdminLoginResponse{
		Admin:   af.toAdminDTO(admin),
		Session: af.toSessionDTO(accessToken, refreshToken),
	}, nil
}

func (af *AdminAuthFlowImpl) toAdminDTO(admin *models.Admin) dto.AdminDTO {
	return dto.AdminDTO{
		ID:        admin.ID,
		UUID:      admin.UUID.String(),
		Username:  admin.Username,
		Email:     admin.Email,
		IsActive:  admin.IsActive,
		CreatedAt: admin.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (af *AdminAuthFlowImpl) toSessionDTO(accessToken, refreshToken string) dto.AdminSessionDTO {
	return dto.AdminSessionDTO{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(af.accessTTL.Seconds()),
		TokenType:    "Bearer",
		CreatedAt:    utils.UTCNow().Format(time.RFC3339),
	}
}
