package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tianyuan-next/internal/config"
	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func setupAuthServiceTest(t *testing.T) (*AuthService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:auth_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&models.Admin{}, &models.AgentUser{}); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	models.DB = db

	cfg := &config.Config{}
	cfg.JWT.SecretKey = "auth-test-secret"
	cfg.JWT.ExpireHours = 2
	cfg.Security.PasswordPolicy = config.PasswordPolicyConfig{MinLength: 8, RequireNumber: true}

	svc := NewAuthService(cfg, repository.NewAdminRepository(db), repository.NewAgentUserRepository(db), nil)
	return svc, db
}

func createAuthTestAdmin(t *testing.T, db *gorm.DB, username, password string) *models.Admin {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("生成密码哈希失败: %v", err)
	}
	admin := &models.Admin{Username: username, PasswordHash: string(hash), CompanyName: "天远大数据"}
	if err := db.Create(admin).Error; err != nil {
		t.Fatalf("创建管理员失败: %v", err)
	}
	return admin
}

func createAuthTestAgent(t *testing.T, db *gorm.DB, username, password string) *models.AgentUser {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("生成密码哈希失败: %v", err)
	}
	agent := &models.AgentUser{Username: username, PasswordHash: string(hash), DomainSuffix: username}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("创建代理失败: %v", err)
	}
	return agent
}

func TestAdminLoginSuccessIssuesToken(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	createAuthTestAdmin(t, db, "root", "admin-pass-1")

	admin, token, expiresAt, err := svc.AdminLogin(AdminLoginInput{Username: "root", Password: "admin-pass-1", ClientIP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("登录失败: %v", err)
	}
	if token == "" || time.Until(expiresAt) <= 0 {
		t.Fatalf("令牌未签发")
	}

	claims, err := svc.ParseJWT(token)
	if err != nil {
		t.Fatalf("解析令牌失败: %v", err)
	}
	if claims.SubjectID != admin.ID || claims.Role != constants.OwnerTypeAdmin || claims.Username != "root" {
		t.Fatalf("声明不符: %+v", claims)
	}

	var reloaded models.Admin
	if err := db.First(&reloaded, admin.ID).Error; err != nil {
		t.Fatalf("读取管理员失败: %v", err)
	}
	if reloaded.LastLoginAt == nil {
		t.Fatalf("最后登录时间未更新")
	}
}

func TestAdminLoginWrongPasswordCountsError(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	admin := createAuthTestAdmin(t, db, "root", "admin-pass-1")

	if _, _, _, err := svc.AdminLogin(AdminLoginInput{Username: "root", Password: "wrong"}); !errors.Is(err, ErrPasswordIncorrect) {
		t.Fatalf("错误密码应拒绝, 实际 %v", err)
	}

	var reloaded models.Admin
	if err := db.First(&reloaded, admin.ID).Error; err != nil {
		t.Fatalf("读取管理员失败: %v", err)
	}
	if reloaded.LoginErrorCount != 1 {
		t.Fatalf("错误次数应为 1, 实际 %d", reloaded.LoginErrorCount)
	}
}

func TestAdminLoginLockoutAfterMaxErrors(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	admin := createAuthTestAdmin(t, db, "root", "admin-pass-1")

	var lastErr error
	for i := 0; i < models.LoginMaxErrorCount; i++ {
		_, _, _, lastErr = svc.AdminLogin(AdminLoginInput{Username: "root", Password: "wrong"})
	}
	if !errors.Is(lastErr, ErrAccountLocked) {
		t.Fatalf("连续错误应触发锁定, 实际 %v", lastErr)
	}

	// 锁定期内正确密码也无法登录
	if _, _, _, err := svc.AdminLogin(AdminLoginInput{Username: "root", Password: "admin-pass-1"}); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("锁定期应拒绝登录, 实际 %v", err)
	}

	// 锁定期满自动解锁
	past := time.Now().Add(-time.Minute)
	if err := db.Model(&models.Admin{}).Where("id = ?", admin.ID).Update("lock_until", past).Error; err != nil {
		t.Fatalf("调整锁定时间失败: %v", err)
	}
	if _, _, _, err := svc.AdminLogin(AdminLoginInput{Username: "root", Password: "admin-pass-1"}); err != nil {
		t.Fatalf("锁定期满应可登录: %v", err)
	}
}

func TestAdminLoginUnknownUser(t *testing.T) {
	svc, _ := setupAuthServiceTest(t)
	if _, _, _, err := svc.AdminLogin(AdminLoginInput{Username: "ghost", Password: "x"}); !errors.Is(err, ErrPasswordIncorrect) {
		t.Fatalf("未知账号不应暴露, 实际 %v", err)
	}
}

func TestAgentLoginAndLockout(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	agent := createAuthTestAgent(t, db, "agent01", "agent-pass-1")

	got, token, _, err := svc.AgentLogin(AgentLoginInput{Username: "agent01", Password: "agent-pass-1"})
	if err != nil {
		t.Fatalf("代理登录失败: %v", err)
	}
	if got.ID != agent.ID || token == "" {
		t.Fatalf("登录结果不符")
	}
	claims, err := svc.ParseJWT(token)
	if err != nil || claims.Role != constants.OwnerTypeAgent {
		t.Fatalf("代理令牌角色不符: %+v err=%v", claims, err)
	}

	var lastErr error
	for i := 0; i < models.LoginMaxErrorCount; i++ {
		_, _, _, lastErr = svc.AgentLogin(AgentLoginInput{Username: "agent01", Password: "wrong"})
	}
	if !errors.Is(lastErr, ErrAccountLocked) {
		t.Fatalf("代理连续错误应锁定, 实际 %v", lastErr)
	}
}

func TestChangeAdminPasswordInvalidatesOldToken(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	admin := createAuthTestAdmin(t, db, "root", "admin-pass-1")

	_, token, _, err := svc.AdminLogin(AdminLoginInput{Username: "root", Password: "admin-pass-1"})
	if err != nil {
		t.Fatalf("登录失败: %v", err)
	}
	oldClaims, err := svc.ParseJWT(token)
	if err != nil {
		t.Fatalf("解析旧令牌失败: %v", err)
	}

	if err := svc.ChangeAdminPassword(admin.ID, "wrong", "new-pass-123"); !errors.Is(err, ErrPasswordIncorrect) {
		t.Fatalf("旧密码错误应拒绝, 实际 %v", err)
	}
	if err := svc.ChangeAdminPassword(admin.ID, "admin-pass-1", "short"); err == nil {
		t.Fatalf("弱密码应被策略拒绝")
	}
	if err := svc.ChangeAdminPassword(admin.ID, "admin-pass-1", "new-pass-123"); err != nil {
		t.Fatalf("改密失败: %v", err)
	}

	var reloaded models.Admin
	if err := db.First(&reloaded, admin.ID).Error; err != nil {
		t.Fatalf("读取管理员失败: %v", err)
	}
	if reloaded.TokenVersion != oldClaims.TokenVersion+1 || reloaded.TokenInvalidBefore == nil {
		t.Fatalf("令牌版本未推进: %+v", reloaded)
	}

	if _, _, _, err := svc.AdminLogin(AdminLoginInput{Username: "root", Password: "new-pass-123"}); err != nil {
		t.Fatalf("新密码应可登录: %v", err)
	}
}

func TestChangeAgentPassword(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	agent := createAuthTestAgent(t, db, "agent01", "agent-pass-1")

	if err := svc.ChangeAgentPassword(agent.ID, "agent-pass-1", "new-pass-456"); err != nil {
		t.Fatalf("改密失败: %v", err)
	}
	var reloaded models.AgentUser
	if err := db.First(&reloaded, agent.ID).Error; err != nil {
		t.Fatalf("读取代理失败: %v", err)
	}
	if reloaded.TokenVersion != 1 || reloaded.TokenInvalidBefore == nil {
		t.Fatalf("代理令牌版本未推进: %+v", reloaded)
	}
	if _, _, _, err := svc.AgentLogin(AgentLoginInput{Username: "agent01", Password: "new-pass-456"}); err != nil {
		t.Fatalf("新密码应可登录: %v", err)
	}
}
