package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tianyuan-next/internal/captcha"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"
	"github.com/tianyuan-next/internal/upstream"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const captchaTestKey = "00112233445566778899aabbccddeeff"

type fakeCaptchaRenderer struct {
	positions []captcha.Position
}

func (f *fakeCaptchaRenderer) Render(text string) (*captcha.Challenge, error) {
	return &captcha.Challenge{
		ImageBase64: "data:image/png;base64,ZmFrZQ==",
		Positions:   f.positions,
		CharSize:    captcha.FontSize,
		Prompt:      "请按顺序依次点击:" + text,
	}, nil
}

func setupClickCaptchaServiceTest(t *testing.T) (*ClickCaptchaService, repository.ClickCaptchaRepository) {
	t.Helper()
	dsn := fmt.Sprintf("file:click_captcha_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&models.ClickCaptcha{}); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	models.DB = db

	repo := repository.NewClickCaptchaRepository(db)
	renderer := &fakeCaptchaRenderer{positions: []captcha.Position{
		{X: 50, Y: 70}, {X: 110, Y: 60}, {X: 170, Y: 90}, {X: 220, Y: 50}, {X: 265, Y: 100},
	}}
	return NewClickCaptchaService(repo, renderer, captchaTestKey), repo
}

func captchaTestClicks(positions []captcha.Position) []CaptchaClick {
	base := time.Now().UnixMilli()
	clicks := make([]CaptchaClick, 0, len(positions))
	for i, pos := range positions {
		clicks = append(clicks, CaptchaClick{X: pos.X + 3, Y: pos.Y - 2, T: base + int64(i)*300})
	}
	return clicks
}

func TestGenerateStoresEncryptedPositions(t *testing.T) {
	svc, repo := setupClickCaptchaServiceTest(t)

	result, err := svc.Generate("fp-gen")
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}
	if result.Token == "" || !strings.HasPrefix(result.BgImage, "data:image/png;base64,") {
		t.Fatalf("下发内容不完整: %+v", result)
	}
	if result.ExpiresIn != 300 {
		t.Fatalf("有效期应为 300 秒, 实际 %d", result.ExpiresIn)
	}

	record, err := repo.GetByToken(result.Token)
	if err != nil || record == nil {
		t.Fatalf("读取记录失败: %v", err)
	}
	if strings.Contains(record.CorrectPosition, "positions") {
		t.Fatalf("坐标未加密入库")
	}
	plain, err := upstream.Decrypt(captchaTestKey, record.CorrectPosition)
	if err != nil {
		t.Fatalf("解密失败: %v", err)
	}
	var payload struct {
		Positions [][2]int `json:"positions"`
	}
	if err := json.Unmarshal(plain, &payload); err != nil {
		t.Fatalf("解析坐标失败: %v", err)
	}
	if len(payload.Positions) != 5 || payload.Positions[0] != [2]int{50, 70} {
		t.Fatalf("坐标内容不符: %v", payload.Positions)
	}

	// 同指纹重新生成后, 旧挑战立即失效
	second, err := svc.Generate("fp-gen")
	if err != nil {
		t.Fatalf("二次生成失败: %v", err)
	}
	old, _ := repo.GetByToken(result.Token)
	if !old.IsChallengeExpired(time.Now()) {
		t.Fatalf("旧挑战应已作废")
	}
	if second.Token == result.Token {
		t.Fatalf("令牌不应复用")
	}
}

func TestVerifySuccessMarksVerified(t *testing.T) {
	svc, repo := setupClickCaptchaServiceTest(t)
	result, err := svc.Generate("fp-ok")
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}

	renderer := svc.renderer.(*fakeCaptchaRenderer)
	input := VerifyCaptchaInput{
		Token:       result.Token,
		Clicks:      captchaTestClicks(renderer.positions),
		Fingerprint: "fp-ok",
		ClientIP:    "10.0.0.1",
	}
	if err := svc.Verify(input); err != nil {
		t.Fatalf("验证应成功: %v", err)
	}

	record, _ := repo.GetByToken(result.Token)
	if !record.IsVerified || record.VerifyTime == nil {
		t.Fatalf("验证状态未写入: %+v", record)
	}
	if record.Attempts != 1 || record.LastAttemptIP != "10.0.0.1" {
		t.Fatalf("尝试信息未记录: attempts=%d ip=%s", record.Attempts, record.LastAttemptIP)
	}

	if err := svc.Verify(input); !errors.Is(err, ErrCaptchaAlreadyVerified) {
		t.Fatalf("重复验证应拒绝, 实际 %v", err)
	}
}

func TestVerifyWrongPositionCountsAttempt(t *testing.T) {
	svc, repo := setupClickCaptchaServiceTest(t)
	result, _ := svc.Generate("fp-wrong")

	renderer := svc.renderer.(*fakeCaptchaRenderer)
	clicks := captchaTestClicks(renderer.positions)
	clicks[2].X += 200

	err := svc.Verify(VerifyCaptchaInput{Token: result.Token, Clicks: clicks, Fingerprint: "fp-wrong", ClientIP: "10.0.0.2"})
	if !errors.Is(err, ErrCaptchaMismatch) {
		t.Fatalf("点击偏差应失败, 实际 %v", err)
	}

	record, _ := repo.GetByToken(result.Token)
	if record.Attempts != 1 || record.IsVerified {
		t.Fatalf("失败尝试未计数: %+v", record)
	}
	if record.LastAttemptIP != "10.0.0.2" {
		t.Fatalf("未记录尝试 IP: %s", record.LastAttemptIP)
	}
}

func TestVerifyRejectsWrongClickOrder(t *testing.T) {
	svc, repo := setupClickCaptchaServiceTest(t)
	result, _ := svc.Generate("fp-order")

	// 坐标全部正确但顺序颠倒,节奏保持正常,只应因顺序失败
	renderer := svc.renderer.(*fakeCaptchaRenderer)
	reversed := make([]captcha.Position, 0, len(renderer.positions))
	for i := len(renderer.positions) - 1; i >= 0; i-- {
		reversed = append(reversed, renderer.positions[i])
	}
	clicks := captchaTestClicks(reversed)

	err := svc.Verify(VerifyCaptchaInput{Token: result.Token, Clicks: clicks, Fingerprint: "fp-order", ClientIP: "10.0.0.3"})
	if !errors.Is(err, ErrCaptchaMismatch) {
		t.Fatalf("顺序颠倒应失败, 实际 %v", err)
	}

	record, _ := repo.GetByToken(result.Token)
	if record.Attempts != 1 || record.IsVerified {
		t.Fatalf("失败尝试未计数: %+v", record)
	}
}

func TestVerifyRejectsTooFastClicks(t *testing.T) {
	svc, _ := setupClickCaptchaServiceTest(t)
	result, _ := svc.Generate("fp-fast")

	renderer := svc.renderer.(*fakeCaptchaRenderer)
	clicks := captchaTestClicks(renderer.positions)
	for i := range clicks {
		clicks[i].T = clicks[0].T + int64(i)*50
	}

	err := svc.Verify(VerifyCaptchaInput{Token: result.Token, Clicks: clicks, Fingerprint: "fp-fast"})
	if !errors.Is(err, ErrCaptchaMismatch) {
		t.Fatalf("机器速度点击应失败, 实际 %v", err)
	}
}

func TestVerifyFingerprintMismatch(t *testing.T) {
	svc, repo := setupClickCaptchaServiceTest(t)
	result, _ := svc.Generate("fp-owner")

	renderer := svc.renderer.(*fakeCaptchaRenderer)
	err := svc.Verify(VerifyCaptchaInput{
		Token:       result.Token,
		Clicks:      captchaTestClicks(renderer.positions),
		Fingerprint: "fp-other",
	})
	if !errors.Is(err, ErrCaptchaMismatch) {
		t.Fatalf("指纹不符应失败, 实际 %v", err)
	}
	record, _ := repo.GetByToken(result.Token)
	if record.Attempts != 1 {
		t.Fatalf("指纹不符也应计入尝试: %d", record.Attempts)
	}
}

func TestVerifyAttemptsExhaustionExpiresChallenge(t *testing.T) {
	svc, repo := setupClickCaptchaServiceTest(t)
	result, _ := svc.Generate("fp-brute")

	renderer := svc.renderer.(*fakeCaptchaRenderer)
	clicks := captchaTestClicks(renderer.positions)
	clicks[0].X += 200

	var lastErr error
	for i := 0; i < models.CaptchaMaxAttempts; i++ {
		lastErr = svc.Verify(VerifyCaptchaInput{Token: result.Token, Clicks: clicks, Fingerprint: "fp-brute"})
	}
	if !errors.Is(lastErr, ErrCaptchaTooManyAttempts) {
		t.Fatalf("最后一次失败应返回次数耗尽, 实际 %v", lastErr)
	}

	record, _ := repo.GetByToken(result.Token)
	if !record.IsChallengeExpired(time.Now()) {
		t.Fatalf("耗尽后挑战应作废")
	}
	err := svc.Verify(VerifyCaptchaInput{Token: result.Token, Clicks: clicks, Fingerprint: "fp-brute"})
	if !errors.Is(err, ErrCaptchaExpired) {
		t.Fatalf("作废后继续验证应返回过期, 实际 %v", err)
	}
}

func TestVerifyUnknownToken(t *testing.T) {
	svc, _ := setupClickCaptchaServiceTest(t)
	err := svc.Verify(VerifyCaptchaInput{Token: "missing"})
	if !errors.Is(err, ErrCaptchaNotFound) {
		t.Fatalf("未知令牌应返回不存在, 实际 %v", err)
	}
}

func TestConsumeVerifiedTokenOnce(t *testing.T) {
	svc, _ := setupClickCaptchaServiceTest(t)
	result, _ := svc.Generate("fp-consume")

	if err := svc.Consume(result.Token); !errors.Is(err, ErrCaptchaRequired) {
		t.Fatalf("未验证即消费应拒绝, 实际 %v", err)
	}

	renderer := svc.renderer.(*fakeCaptchaRenderer)
	if err := svc.Verify(VerifyCaptchaInput{
		Token:       result.Token,
		Clicks:      captchaTestClicks(renderer.positions),
		Fingerprint: "fp-consume",
	}); err != nil {
		t.Fatalf("验证失败: %v", err)
	}

	if err := svc.Consume(result.Token); err != nil {
		t.Fatalf("首次消费应成功: %v", err)
	}
	if err := svc.Consume(result.Token); !errors.Is(err, ErrCaptchaExpired) {
		t.Fatalf("重复消费应失效, 实际 %v", err)
	}
}

func TestCleanupDeletesExpiredRecords(t *testing.T) {
	svc, repo := setupClickCaptchaServiceTest(t)

	stale := &models.ClickCaptcha{
		Token:           "stale-token",
		BgImage:         "data:image/png;base64,ZmFrZQ==",
		CorrectPosition: "x",
		CreateTime:      time.Now().Add(-2 * time.Hour).Unix(),
		ExpireTime:      time.Now().Add(-90 * time.Minute).Unix(),
	}
	if err := repo.Create(stale); err != nil {
		t.Fatalf("准备数据失败: %v", err)
	}
	fresh, _ := svc.Generate("fp-fresh")

	deleted, err := svc.Cleanup(time.Hour, 100)
	if err != nil {
		t.Fatalf("清理失败: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("应删除 1 条, 实际 %d", deleted)
	}
	if record, _ := repo.GetByToken(fresh.Token); record == nil {
		t.Fatalf("有效记录不应被删除")
	}
}
