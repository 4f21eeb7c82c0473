package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tianyuan-next/internal/captcha"
	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"
	"github.com/tianyuan-next/internal/upstream"

	"github.com/google/uuid"
)

const (
	// 挑战有效期
	captchaChallengeTTL = 300 * time.Second
	// 点击允许的误差半径,叠加在字符半宽之上
	captchaClickTolerance = 20
	// 两次点击的最小间隔,低于此值判定为机器行为
	captchaMinClickInterval = 200 * time.Millisecond
)

// CaptchaRenderer 挑战图渲染接口
type CaptchaRenderer interface {
	Render(text string) (*captcha.Challenge, error)
}

// CaptchaClick 一次点击,T 为客户端毫秒时间戳
type CaptchaClick struct {
	X int   `json:"x"`
	Y int   `json:"y"`
	T int64 `json:"t"`
}

// GenerateCaptchaResult 下发给客户端的挑战内容,不含明文坐标
type GenerateCaptchaResult struct {
	Token     string `json:"token"`
	BgImage   string `json:"bg_image"`
	Prompt    string `json:"prompt"`
	ExpiresIn int    `json:"expires_in"`
}

// VerifyCaptchaInput 验证请求
type VerifyCaptchaInput struct {
	Token       string
	Clicks      []CaptchaClick
	Fingerprint string
	ClientIP    string
}

type captchaPositions struct {
	Positions [][2]int `json:"positions"`
	CharSize  int      `json:"char_size"`
}

// ClickCaptchaService 文字点击验证码服务
type ClickCaptchaService struct {
	captchaRepo   repository.ClickCaptchaRepository
	renderer      CaptchaRenderer
	encryptionKey string
	challengeText string
}

// NewClickCaptchaService 创建点击验证码服务。
// encryptionKey 为 32 位十六进制 AES 密钥,用于加密入库的期望坐标。
func NewClickCaptchaService(captchaRepo repository.ClickCaptchaRepository, renderer CaptchaRenderer, encryptionKey string) *ClickCaptchaService {
	return &ClickCaptchaService{
		captchaRepo:   captchaRepo,
		renderer:      renderer,
		encryptionKey: encryptionKey,
		challengeText: captcha.DefaultText,
	}
}

// SetChallengeText 覆盖默认挑战文字
func (s *ClickCaptchaService) SetChallengeText(text string) {
	if text != "" {
		s.challengeText = text
	}
}

// Generate 生成新挑战。同一指纹此前未完成的挑战会被立即作废,
// 保证同指纹同时只有一个有效挑战。
func (s *ClickCaptchaService) Generate(fingerprint string) (*GenerateCaptchaResult, error) {
	now := time.Now()
	if fingerprint != "" {
		if expired, err := s.captchaRepo.ExpireActiveByFingerprint(fingerprint, now.Unix()); err != nil {
			return nil, fmt.Errorf("作废历史挑战失败: %w", err)
		} else if expired > 0 {
			logger.Infow("captcha_previous_expired", "fingerprint", fingerprint, "count", expired)
		}
	}

	challenge, err := s.renderer.Render(s.challengeText)
	if err != nil {
		return nil, fmt.Errorf("生成验证码图片失败: %w", err)
	}

	payload := captchaPositions{
		Positions: make([][2]int, 0, len(challenge.Positions)),
		CharSize:  challenge.CharSize,
	}
	for _, pos := range challenge.Positions {
		payload.Positions = append(payload.Positions, [2]int{pos.X, pos.Y})
	}
	plain, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化坐标失败: %w", err)
	}
	encrypted, err := upstream.Encrypt(s.encryptionKey, plain)
	if err != nil {
		return nil, fmt.Errorf("加密坐标失败: %w", err)
	}

	record := &models.ClickCaptcha{
		Token:             uuid.NewString(),
		BgImage:           challenge.ImageBase64,
		CorrectPosition:   encrypted,
		ClientFingerprint: fingerprint,
		CreateTime:        now.Unix(),
		ExpireTime:        now.Add(captchaChallengeTTL).Unix(),
	}
	if err := s.captchaRepo.Create(record); err != nil {
		return nil, fmt.Errorf("保存验证码失败: %w", err)
	}

	logger.Infow("captcha_generated", "token", record.Token, "fingerprint", fingerprint)
	return &GenerateCaptchaResult{
		Token:     record.Token,
		BgImage:   record.BgImage,
		Prompt:    challenge.Prompt,
		ExpiresIn: int(captchaChallengeTTL.Seconds()),
	}, nil
}

// Verify 校验一组点击。点击必须与生成时的字符顺序一致,
// 每个点击落在对应字符的容差框内,且两次点击间隔不小于 200ms。
func (s *ClickCaptchaService) Verify(input VerifyCaptchaInput) error {
	record, err := s.captchaRepo.GetByToken(input.Token)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrCaptchaNotFound
	}
	if record.IsVerified {
		return ErrCaptchaAlreadyVerified
	}
	now := time.Now()
	if record.IsChallengeExpired(now) {
		return ErrCaptchaExpired
	}
	if record.Attempts >= models.CaptchaMaxAttempts {
		// 尝试次数耗尽,直接作废避免继续穷举
		if err := s.captchaRepo.Updates(record.ID, map[string]interface{}{"expire_time": now.Unix() - 1}); err != nil {
			return err
		}
		logger.Warnw("captcha_attempts_exhausted", "token", record.Token, "ip", input.ClientIP)
		return ErrCaptchaTooManyAttempts
	}

	if record.ClientFingerprint != "" && input.Fingerprint != record.ClientFingerprint {
		logger.Warnw("captcha_fingerprint_mismatch", "token", record.Token, "ip", input.ClientIP)
		return s.failAttempt(record, input.ClientIP, now)
	}

	expected, err := s.decodePositions(record.CorrectPosition)
	if err != nil {
		logger.Errorw("captcha_position_decode_failed", "token", record.Token, "error", err)
		return s.failAttempt(record, input.ClientIP, now)
	}
	if len(input.Clicks) != len(expected.Positions) {
		return s.failAttempt(record, input.ClientIP, now)
	}

	for i := 1; i < len(input.Clicks); i++ {
		if input.Clicks[i].T-input.Clicks[i-1].T < captchaMinClickInterval.Milliseconds() {
			logger.Warnw("captcha_click_too_fast", "token", record.Token, "ip", input.ClientIP)
			return s.failAttempt(record, input.ClientIP, now)
		}
	}

	half := expected.CharSize/2 + captchaClickTolerance
	for i, click := range input.Clicks {
		dx := click.X - expected.Positions[i][0]
		dy := click.Y - expected.Positions[i][1]
		if dx < -half || dx > half || dy < -half || dy > half {
			return s.failAttempt(record, input.ClientIP, now)
		}
	}

	updates := map[string]interface{}{
		"is_verified":     true,
		"verify_time":     now.Unix(),
		"attempts":        record.Attempts + 1,
		"last_attempt_ip": input.ClientIP,
	}
	if err := s.captchaRepo.Updates(record.ID, updates); err != nil {
		return err
	}
	logger.Infow("captcha_verified", "token", record.Token, "ip", input.ClientIP)
	return nil
}

// Consume 消费一个已验证的挑战,作为敏感操作的前置闸门。
// 消费后立即作废,同一令牌只能使用一次。
func (s *ClickCaptchaService) Consume(token string) error {
	record, err := s.captchaRepo.GetByToken(token)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrCaptchaNotFound
	}
	now := time.Now()
	if record.IsChallengeExpired(now) {
		return ErrCaptchaExpired
	}
	if !record.IsVerified {
		return ErrCaptchaRequired
	}
	if err := s.captchaRepo.Updates(record.ID, map[string]interface{}{"expire_time": now.Unix() - 1}); err != nil {
		return err
	}
	logger.Infow("captcha_consumed", "token", token)
	return nil
}

// Cleanup 清理过期记录,由定时任务调用
func (s *ClickCaptchaService) Cleanup(retention time.Duration, limit int) (int64, error) {
	before := time.Now().Add(-retention).Unix()
	deleted, err := s.captchaRepo.DeleteExpired(before, limit)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logger.Infow("captcha_cleanup", "deleted", deleted)
	}
	return deleted, nil
}

func (s *ClickCaptchaService) failAttempt(record *models.ClickCaptcha, ip string, now time.Time) error {
	attempts := record.Attempts + 1
	updates := map[string]interface{}{
		"attempts":        attempts,
		"last_attempt_ip": ip,
	}
	if attempts >= models.CaptchaMaxAttempts {
		updates["expire_time"] = now.Unix() - 1
	}
	if err := s.captchaRepo.Updates(record.ID, updates); err != nil {
		return err
	}
	if attempts >= models.CaptchaMaxAttempts {
		return ErrCaptchaTooManyAttempts
	}
	return ErrCaptchaMismatch
}

func (s *ClickCaptchaService) decodePositions(encrypted string) (*captchaPositions, error) {
	plain, err := upstream.Decrypt(s.encryptionKey, encrypted)
	if err != nil {
		return nil, err
	}
	var payload captchaPositions
	if err := json.Unmarshal(plain, &payload); err != nil {
		return nil, err
	}
	if payload.CharSize <= 0 {
		payload.CharSize = captcha.FontSize
	}
	return &payload, nil
}
