package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/tianyuan-next/internal/cache"
	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dysmsapi "github.com/alibabacloud-go/dysmsapi-20170525/v3/client"
	"github.com/alibabacloud-go/tea/tea"
)

const (
	smsCodeTTL      = 5 * time.Minute
	smsSendInterval = 60 * time.Second
	smsHourlyLimit  = 5
	smsDailyLimit   = 10
)

var phonePattern = regexp.MustCompile(`^1\d{10}$`)

// SmsProviderConfig 阿里云短信凭证
type SmsProviderConfig struct {
	AccessKeyID     string
	AccessKeySecret string
	SignName        string
	TemplateCode    string
	Endpoint        string
}

// ParseSmsProviderConfig 从外部配置凭证解析短信参数
func ParseSmsProviderConfig(credentials map[string]interface{}) (*SmsProviderConfig, error) {
	str := func(key string) string {
		if v, ok := credentials[key].(string); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}
	cfg := &SmsProviderConfig{
		AccessKeyID:     str("access_key_id"),
		AccessKeySecret: str("access_key_secret"),
		SignName:        str("sign_name"),
		TemplateCode:    str("template_code"),
		Endpoint:        str("endpoint"),
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "dysmsapi.aliyuncs.com"
	}
	if cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" || cfg.SignName == "" || cfg.TemplateCode == "" {
		return nil, ErrSmsConfigMissing
	}
	return cfg, nil
}

// SmsSender 短信下发函数,测试时可替换
type SmsSender func(cfg *SmsProviderConfig, phone, code string) error

// SmsService 短信验证码服务
type SmsService struct {
	smsRepo            repository.SmsVerificationCodeRepository
	externalConfigRepo repository.ExternalApiConfigRepository
	send               SmsSender
}

// NewSmsService 创建短信验证码服务
func NewSmsService(smsRepo repository.SmsVerificationCodeRepository, externalConfigRepo repository.ExternalApiConfigRepository) *SmsService {
	return &SmsService{
		smsRepo:            smsRepo,
		externalConfigRepo: externalConfigRepo,
		send:               sendAliyunSms,
	}
}

// SetSender 替换下发实现
func (s *SmsService) SetSender(sender SmsSender) {
	if sender != nil {
		s.send = sender
	}
}

// SendCode 向手机号下发 6 位验证码。
// 同号码 60 秒内最多一条,1 小时内最多 5 条,24 小时内最多 10 条;
// 新验证码下发前作废该号码全部未使用验证码。
func (s *SmsService) SendCode(ctx context.Context, phone, clientIP string) error {
	phone = strings.TrimSpace(phone)
	if !phonePattern.MatchString(phone) {
		return ErrPhoneInvalid
	}

	intervalKey := "sms:interval:" + phone
	if cache.Enabled() {
		var placeholder int64
		if found, err := cache.GetJSON(ctx, intervalKey, &placeholder); err != nil {
			logger.Warnw("sms_interval_check_failed", "phone", phone, "error", err)
		} else if found {
			return ErrSmsTooFrequent
		}
	}

	now := time.Now()
	if hourly, err := s.smsRepo.CountSince(phone, now.Add(-time.Hour)); err != nil {
		return err
	} else if hourly >= smsHourlyLimit {
		logger.Warnw("sms_hourly_limit_hit", "phone", phone, "ip", clientIP)
		return ErrSmsTooFrequent
	}
	if daily, err := s.smsRepo.CountSince(phone, now.Add(-24*time.Hour)); err != nil {
		return err
	} else if daily >= smsDailyLimit {
		logger.Warnw("sms_daily_limit_hit", "phone", phone, "ip", clientIP)
		return ErrSmsTooFrequent
	}

	externalCfg, err := s.externalConfigRepo.GetActiveWithFallback(models.ExternalConfigAliyunSms, 1, constants.OwnerTypeAdmin)
	if err != nil {
		return err
	}
	if externalCfg == nil {
		return ErrSmsConfigMissing
	}
	providerCfg, err := ParseSmsProviderConfig(externalCfg.Credentials)
	if err != nil {
		return err
	}

	code, err := generateSmsCode()
	if err != nil {
		return fmt.Errorf("生成验证码失败: %w", err)
	}

	if _, err := s.smsRepo.ExpireUnusedByPhone(phone); err != nil {
		return err
	}
	record := &models.SmsVerificationCode{
		Phone:     phone,
		Code:      code,
		Status:    models.SmsCodeStatusUnused,
		ExpiresAt: now.Add(smsCodeTTL),
	}
	if err := s.smsRepo.Create(record); err != nil {
		return err
	}

	if err := s.send(providerCfg, phone, code); err != nil {
		logger.Errorw("sms_send_failed", "phone", phone, "error", err)
		return fmt.Errorf("%w: %v", ErrSmsSendFailed, err)
	}

	if cache.Enabled() {
		if err := cache.SetJSON(ctx, intervalKey, now.Unix(), smsSendInterval); err != nil {
			logger.Warnw("sms_interval_set_failed", "phone", phone, "error", err)
		}
	}
	logger.Infow("sms_sent", "phone", phone, "ip", clientIP)
	return nil
}

// VerifyCode 核验验证码并标记已使用,满足订单预检的一次性语义
func (s *SmsService) VerifyCode(phone, code string) error {
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)
	if phone == "" || code == "" {
		return ErrSmsCodeInvalid
	}

	record, err := s.smsRepo.GetLatestUnused(phone)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrSmsCodeInvalid
	}
	if time.Now().After(record.ExpiresAt) {
		if _, err := s.smsRepo.ExpireUnusedByPhone(phone); err != nil {
			logger.Warnw("sms_expire_mark_failed", "phone", phone, "error", err)
		}
		return ErrSmsCodeExpired
	}
	if record.Code != code {
		return ErrSmsCodeInvalid
	}
	if err := s.smsRepo.MarkUsed(record.ID, time.Now()); err != nil {
		return err
	}
	logger.Infow("sms_code_verified", "phone", phone)
	return nil
}

func generateSmsCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func sendAliyunSms(cfg *SmsProviderConfig, phone, code string) error {
	client, err := dysmsapi.NewClient(&openapi.Config{
		AccessKeyId:     tea.String(cfg.AccessKeyID),
		AccessKeySecret: tea.String(cfg.AccessKeySecret),
		Endpoint:        tea.String(cfg.Endpoint),
	})
	if err != nil {
		return err
	}
	resp, err := client.SendSms(&dysmsapi.SendSmsRequest{
		PhoneNumbers:  tea.String(phone),
		SignName:      tea.String(cfg.SignName),
		TemplateCode:  tea.String(cfg.TemplateCode),
		TemplateParam: tea.String(fmt.Sprintf(`{"code":"%s"}`, code)),
	})
	if err != nil {
		return err
	}
	if resp.Body == nil {
		return fmt.Errorf("短信网关返回空响应")
	}
	if tea.StringValue(resp.Body.Code) != "OK" {
		return fmt.Errorf("短信网关返回异常: %s %s", tea.StringValue(resp.Body.Code), tea.StringValue(resp.Body.Message))
	}
	return nil
}
