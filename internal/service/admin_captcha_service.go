package service

import (
	"strings"
	"time"

	"github.com/mojocn/base64Captcha"
)

const (
	adminCaptchaLength   = 4
	adminCaptchaMaxStore = 10240
	adminCaptchaExpiry   = 5 * time.Minute
	adminCaptchaCharset  = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// AdminCaptchaService 管理后台登录图片验证码。
// 与面向用户的点击验证码独立,仅用于后台与代理登录表单。
type AdminCaptchaService struct {
	store  base64Captcha.Store
	driver base64Captcha.Driver
}

// NewAdminCaptchaService 创建后台登录验证码服务
func NewAdminCaptchaService() *AdminCaptchaService {
	return &AdminCaptchaService{
		store: base64Captcha.NewMemoryStore(adminCaptchaMaxStore, adminCaptchaExpiry),
		driver: base64Captcha.NewDriverString(
			48,
			160,
			2,
			base64Captcha.OptionShowHollowLine,
			adminCaptchaLength,
			adminCaptchaCharset,
			nil,
			base64Captcha.DefaultEmbeddedFonts,
			nil,
		),
	}
}

// Generate 生成图片验证码
func (s *AdminCaptchaService) Generate() (*CaptchaImageChallenge, error) {
	c := base64Captcha.NewCaptcha(s.driver, s.store)
	id, b64s, _, err := c.Generate()
	if err != nil {
		return nil, err
	}
	return &CaptchaImageChallenge{
		CaptchaID:   strings.TrimSpace(id),
		ImageBase64: strings.TrimSpace(b64s),
	}, nil
}

// Verify 校验并消费验证码,一次校验后即失效
func (s *AdminCaptchaService) Verify(captchaID, code string) error {
	captchaID = strings.TrimSpace(captchaID)
	code = strings.TrimSpace(code)
	if captchaID == "" || code == "" {
		return ErrCaptchaRequired
	}
	if !s.store.Verify(captchaID, code, true) {
		return ErrCaptchaMismatch
	}
	return nil
}

// CaptchaImageChallenge 图片验证码挑战
type CaptchaImageChallenge struct {
	CaptchaID   string `json:"captcha_id"`
	ImageBase64 string `json:"image_base64"`
}
