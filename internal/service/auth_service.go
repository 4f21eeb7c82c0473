package service

import (
	"context"
	"errors"
	"time"

	"github.com/tianyuan-next/internal/cache"
	"github.com/tianyuan-next/internal/config"
	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 管理员与代理认证服务
type AuthService struct {
	cfg          *config.Config
	adminRepo    repository.AdminRepository
	agentRepo    repository.AgentUserRepository
	adminCaptcha *AdminCaptchaService
}

// NewAuthService 创建认证服务实例
func NewAuthService(cfg *config.Config, adminRepo repository.AdminRepository, agentRepo repository.AgentUserRepository, adminCaptcha *AdminCaptchaService) *AuthService {
	return &AuthService{
		cfg:          cfg,
		adminRepo:    adminRepo,
		agentRepo:    agentRepo,
		adminCaptcha: adminCaptcha,
	}
}

// HashPassword 使用 bcrypt 加密密码
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword 验证密码
func (s *AuthService) VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword 校验密码是否符合策略
func (s *AuthService) ValidatePassword(password string) error {
	if s == nil || s.cfg == nil {
		return nil
	}
	return validatePassword(s.cfg.Security.PasswordPolicy, password)
}

// JWTClaims JWT 声明,Role 区分 admin 与 agent
type JWTClaims struct {
	SubjectID    uint   `json:"subject_id"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	TokenVersion uint64 `json:"token_version"`
	jwt.RegisteredClaims
}

// GenerateJWT 签发登录令牌
func (s *AuthService) GenerateJWT(subjectID uint, username, role string, tokenVersion uint64) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(s.cfg.JWT.ExpireHours) * time.Hour)

	claims := JWTClaims{
		SubjectID:    subjectID,
		Username:     username,
		Role:         role,
		TokenVersion: tokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseJWT 解析登录令牌
func (s *AuthService) ParseJWT(tokenString string) (*JWTClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("无效的 token")
}

// AdminLoginInput 管理员登录请求
type AdminLoginInput struct {
	Username    string
	Password    string
	CaptchaID   string
	CaptchaCode string
	ClientIP    string
}

// AdminLogin 管理员登录。
// 图片验证码前置;连续错误 5 次锁定 30 分钟,锁定期满自动解锁。
func (s *AuthService) AdminLogin(input AdminLoginInput) (*models.Admin, string, time.Time, error) {
	if s.adminCaptcha != nil {
		if err := s.adminCaptcha.Verify(input.CaptchaID, input.CaptchaCode); err != nil {
			return nil, "", time.Time{}, err
		}
	}

	admin, err := s.adminRepo.GetByUsername(input.Username)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if admin == nil {
		return nil, "", time.Time{}, ErrPasswordIncorrect
	}
	now := time.Now()
	if admin.IsAccountLocked(now) {
		logger.Warnw("admin_login_locked", "username", input.Username, "ip", input.ClientIP)
		return nil, "", time.Time{}, ErrAccountLocked
	}

	if err := s.VerifyPassword(admin.PasswordHash, input.Password); err != nil {
		return nil, "", time.Time{}, s.recordAdminLoginError(admin, input.ClientIP, now)
	}

	if err := s.adminRepo.Updates(admin.ID, map[string]interface{}{
		"login_error_count": 0,
		"is_locked":         false,
		"lock_until":        nil,
		"last_login_at":     now,
	}); err != nil {
		return nil, "", time.Time{}, err
	}

	token, expiresAt, err := s.GenerateJWT(admin.ID, admin.Username, constants.OwnerTypeAdmin, admin.TokenVersion)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	_ = cache.SetAdminAuthState(context.Background(), cache.BuildAdminAuthState(admin))
	logger.Infow("admin_login", "admin_id", admin.ID, "ip", input.ClientIP)
	return admin, token, expiresAt, nil
}

// AgentLoginInput 代理登录请求
type AgentLoginInput struct {
	Username    string
	Password    string
	CaptchaID   string
	CaptchaCode string
	ClientIP    string
}

// AgentLogin 代理登录,锁定策略与管理员一致
func (s *AuthService) AgentLogin(input AgentLoginInput) (*models.AgentUser, string, time.Time, error) {
	if s.adminCaptcha != nil {
		if err := s.adminCaptcha.Verify(input.CaptchaID, input.CaptchaCode); err != nil {
			return nil, "", time.Time{}, err
		}
	}

	agent, err := s.agentRepo.GetByUsername(input.Username)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if agent == nil {
		return nil, "", time.Time{}, ErrPasswordIncorrect
	}
	now := time.Now()
	if agent.IsAccountLocked(now) {
		logger.Warnw("agent_login_locked", "username", input.Username, "ip", input.ClientIP)
		return nil, "", time.Time{}, ErrAccountLocked
	}

	if err := s.VerifyPassword(agent.PasswordHash, input.Password); err != nil {
		return nil, "", time.Time{}, s.recordAgentLoginError(agent, input.ClientIP, now)
	}

	if err := s.agentRepo.Updates(agent.ID, map[string]interface{}{
		"login_error_count": 0,
		"is_locked":         false,
		"lock_until":        nil,
	}); err != nil {
		return nil, "", time.Time{}, err
	}

	token, expiresAt, err := s.GenerateJWT(agent.ID, agent.Username, constants.OwnerTypeAgent, agent.TokenVersion)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	_ = cache.SetAgentAuthState(context.Background(), cache.BuildAgentAuthState(agent))
	logger.Infow("agent_login", "agent_id", agent.ID, "ip", input.ClientIP)
	return agent, token, expiresAt, nil
}

// ChangeAdminPassword 修改管理员密码并作废全部已签发令牌
func (s *AuthService) ChangeAdminPassword(adminID uint, oldPassword, newPassword string) error {
	admin, err := s.adminRepo.GetByID(adminID)
	if err != nil {
		return err
	}
	if admin == nil {
		return ErrAdminNotFound
	}
	if err := s.VerifyPassword(admin.PasswordHash, oldPassword); err != nil {
		return ErrPasswordIncorrect
	}
	if err := s.ValidatePassword(newPassword); err != nil {
		return err
	}

	hashedPassword, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}
	now := time.Now()
	admin.PasswordHash = hashedPassword
	admin.TokenVersion++
	admin.TokenInvalidBefore = &now
	if err := s.adminRepo.Update(admin); err != nil {
		return err
	}
	_ = cache.SetAdminAuthState(context.Background(), cache.BuildAdminAuthState(admin))
	logger.Infow("admin_password_changed", "admin_id", adminID)
	return nil
}

// ChangeAgentPassword 修改代理密码并作废全部已签发令牌
func (s *AuthService) ChangeAgentPassword(agentID uint, oldPassword, newPassword string) error {
	agent, err := s.agentRepo.GetByID(agentID)
	if err != nil {
		return err
	}
	if agent == nil {
		return ErrAgentNotFound
	}
	if err := s.VerifyPassword(agent.PasswordHash, oldPassword); err != nil {
		return ErrPasswordIncorrect
	}
	if err := s.ValidatePassword(newPassword); err != nil {
		return err
	}

	hashedPassword, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}
	now := time.Now()
	if err := s.agentRepo.Updates(agentID, map[string]interface{}{
		"password_hash":        hashedPassword,
		"token_version":        agent.TokenVersion + 1,
		"token_invalid_before": now,
	}); err != nil {
		return err
	}
	agent.PasswordHash = hashedPassword
	agent.TokenVersion++
	agent.TokenInvalidBefore = &now
	_ = cache.SetAgentAuthState(context.Background(), cache.BuildAgentAuthState(agent))
	logger.Infow("agent_password_changed", "agent_id", agentID)
	return nil
}

func (s *AuthService) recordAdminLoginError(admin *models.Admin, clientIP string, now time.Time) error {
	count := admin.LoginErrorCount + 1
	updates := map[string]interface{}{
		"login_error_count":     count,
		"last_login_error_time": now,
	}
	if count >= models.LoginMaxErrorCount {
		lockUntil := now.Add(models.LoginLockDuration)
		updates["is_locked"] = true
		updates["lock_until"] = lockUntil
		updates["login_error_count"] = 0
	}
	if err := s.adminRepo.Updates(admin.ID, updates); err != nil {
		return err
	}
	if count >= models.LoginMaxErrorCount {
		logger.Warnw("admin_login_lockout", "admin_id", admin.ID, "ip", clientIP)
		return ErrAccountLocked
	}
	logger.Warnw("admin_login_failed", "admin_id", admin.ID, "error_count", count, "ip", clientIP)
	return ErrPasswordIncorrect
}

func (s *AuthService) recordAgentLoginError(agent *models.AgentUser, clientIP string, now time.Time) error {
	count := agent.LoginErrorCount + 1
	updates := map[string]interface{}{
		"login_error_count":     count,
		"last_login_error_time": now,
	}
	if count >= models.LoginMaxErrorCount {
		lockUntil := now.Add(models.LoginLockDuration)
		updates["is_locked"] = true
		updates["lock_until"] = lockUntil
		updates["login_error_count"] = 0
	}
	if err := s.agentRepo.Updates(agent.ID, updates); err != nil {
		return err
	}
	if count >= models.LoginMaxErrorCount {
		logger.Warnw("agent_login_lockout", "agent_id", agent.ID, "ip", clientIP)
		return ErrAccountLocked
	}
	logger.Warnw("agent_login_failed", "agent_id", agent.ID, "error_count", count, "ip", clientIP)
	return ErrPasswordIncorrect
}
