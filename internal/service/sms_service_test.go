package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupSmsServiceTest(t *testing.T) (*SmsService, repository.SmsVerificationCodeRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:sms_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&models.SmsVerificationCode{}, &models.ExternalApiConfig{}); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	models.DB = db

	cfg := &models.ExternalApiConfig{
		ConfigType: models.ExternalConfigAliyunSms,
		ConfigName: "阿里云短信",
		OwnerID:    1,
		OwnerType:  "admin",
		IsActive:   true,
		Credentials: models.JSON{
			"access_key_id":     "ak",
			"access_key_secret": "sk",
			"sign_name":         "天远数据",
			"template_code":     "SMS_123456",
		},
	}
	if err := db.Create(cfg).Error; err != nil {
		t.Fatalf("准备短信配置失败: %v", err)
	}

	smsRepo := repository.NewSmsVerificationCodeRepository(db)
	svc := NewSmsService(smsRepo, repository.NewExternalApiConfigRepository(db))
	svc.SetSender(func(cfg *SmsProviderConfig, phone, code string) error { return nil })
	return svc, smsRepo, db
}

func TestSendCodeCreatesRecordAndExpiresOld(t *testing.T) {
	svc, smsRepo, db := setupSmsServiceTest(t)
	ctx := context.Background()

	var sentCodes []string
	svc.SetSender(func(cfg *SmsProviderConfig, phone, code string) error {
		if cfg.SignName != "天远数据" || cfg.TemplateCode != "SMS_123456" {
			t.Fatalf("凭证未透传: %+v", cfg)
		}
		sentCodes = append(sentCodes, code)
		return nil
	})

	if err := svc.SendCode(ctx, "13812345678", "10.0.0.1"); err != nil {
		t.Fatalf("发送失败: %v", err)
	}
	if len(sentCodes) != 1 || len(sentCodes[0]) != 6 {
		t.Fatalf("应下发 6 位验证码: %v", sentCodes)
	}

	first, err := smsRepo.GetLatestUnused("13812345678")
	if err != nil || first == nil {
		t.Fatalf("读取验证码失败: %v", err)
	}

	// 绕过小时频控时间窗, 仅验证旧码作废
	if err := db.Model(&models.SmsVerificationCode{}).Where("id = ?", first.ID).
		Update("created_at", time.Now().Add(-2*time.Hour)).Error; err != nil {
		t.Fatalf("调整时间失败: %v", err)
	}
	if err := svc.SendCode(ctx, "13812345678", "10.0.0.1"); err != nil {
		t.Fatalf("二次发送失败: %v", err)
	}

	var stale models.SmsVerificationCode
	if err := db.First(&stale, first.ID).Error; err != nil {
		t.Fatalf("读取旧码失败: %v", err)
	}
	if stale.Status != models.SmsCodeStatusExpired {
		t.Fatalf("旧码应作废, 实际 %s", stale.Status)
	}
}

func TestSendCodeRejectsInvalidPhone(t *testing.T) {
	svc, _, _ := setupSmsServiceTest(t)
	for _, phone := range []string{"", "021123456", "2381234567x", "138123456789"} {
		if err := svc.SendCode(context.Background(), phone, ""); !errors.Is(err, ErrPhoneInvalid) {
			t.Fatalf("手机号 %q 应拒绝, 实际 %v", phone, err)
		}
	}
}

func TestSendCodeHourlyLimit(t *testing.T) {
	svc, _, db := setupSmsServiceTest(t)
	ctx := context.Background()

	for i := 0; i < smsHourlyLimit; i++ {
		if err := db.Create(&models.SmsVerificationCode{
			Phone:     "13900001111",
			Code:      fmt.Sprintf("%06d", i),
			Status:    models.SmsCodeStatusExpired,
			ExpiresAt: time.Now().Add(smsCodeTTL),
		}).Error; err != nil {
			t.Fatalf("准备数据失败: %v", err)
		}
	}

	if err := svc.SendCode(ctx, "13900001111", ""); !errors.Is(err, ErrSmsTooFrequent) {
		t.Fatalf("小时频控应生效, 实际 %v", err)
	}
}

func TestSendCodeWithoutConfig(t *testing.T) {
	svc, _, db := setupSmsServiceTest(t)
	if err := db.Where("config_type = ?", models.ExternalConfigAliyunSms).
		Delete(&models.ExternalApiConfig{}).Error; err != nil {
		t.Fatalf("删除配置失败: %v", err)
	}
	if err := svc.SendCode(context.Background(), "13812340000", ""); !errors.Is(err, ErrSmsConfigMissing) {
		t.Fatalf("缺少配置应报错, 实际 %v", err)
	}
}

func TestSendCodePropagatesGatewayFailure(t *testing.T) {
	svc, _, _ := setupSmsServiceTest(t)
	svc.SetSender(func(cfg *SmsProviderConfig, phone, code string) error {
		return fmt.Errorf("isv.BUSINESS_LIMIT_CONTROL")
	})
	err := svc.SendCode(context.Background(), "13812340001", "")
	if !errors.Is(err, ErrSmsSendFailed) {
		t.Fatalf("网关失败应透出, 实际 %v", err)
	}
}

func TestVerifyCodeConsumesOnce(t *testing.T) {
	svc, smsRepo, _ := setupSmsServiceTest(t)
	ctx := context.Background()

	var sent string
	svc.SetSender(func(cfg *SmsProviderConfig, phone, code string) error {
		sent = code
		return nil
	})
	if err := svc.SendCode(ctx, "13812340002", ""); err != nil {
		t.Fatalf("发送失败: %v", err)
	}

	if err := svc.VerifyCode("13812340002", "000000"); !errors.Is(err, ErrSmsCodeInvalid) && sent != "000000" {
		t.Fatalf("错误验证码应拒绝, 实际 %v", err)
	}
	if err := svc.VerifyCode("13812340002", sent); err != nil {
		t.Fatalf("正确验证码应通过: %v", err)
	}
	if err := svc.VerifyCode("13812340002", sent); !errors.Is(err, ErrSmsCodeInvalid) {
		t.Fatalf("验证码只能使用一次, 实际 %v", err)
	}

	record, _ := smsRepo.GetLatestUnused("13812340002")
	if record != nil {
		t.Fatalf("使用后不应再有未使用验证码")
	}
}

func TestVerifyCodeExpired(t *testing.T) {
	svc, _, db := setupSmsServiceTest(t)
	if err := db.Create(&models.SmsVerificationCode{
		Phone:     "13812340003",
		Code:      "654321",
		Status:    models.SmsCodeStatusUnused,
		ExpiresAt: time.Now().Add(-time.Minute),
	}).Error; err != nil {
		t.Fatalf("准备数据失败: %v", err)
	}
	if err := svc.VerifyCode("13812340003", "654321"); !errors.Is(err, ErrSmsCodeExpired) {
		t.Fatalf("过期验证码应拒绝, 实际 %v", err)
	}
}
