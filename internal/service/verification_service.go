package service

import (
	"context"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"
	"github.com/tianyuan-next/internal/upstream"
)

// VerificationService 要素核验服务,封装上游实名接口。
// 下单预检通过该服务完成二要素与三要素实时核验。
type VerificationService struct {
	externalConfigRepo repository.ExternalApiConfigRepository

	twoFactorCall   func(ctx context.Context, cfg *upstream.Config, name, idCard string) (*upstream.VerifyResult, error)
	threeFactorCall func(ctx context.Context, cfg *upstream.Config, name, idCard, mobile string) (*upstream.VerifyResult, error)
}

// NewVerificationService 创建要素核验服务
func NewVerificationService(externalConfigRepo repository.ExternalApiConfigRepository) *VerificationService {
	return &VerificationService{
		externalConfigRepo: externalConfigRepo,
		twoFactorCall:      upstream.VerifyTwoFactor,
		threeFactorCall:    upstream.VerifyThreeFactor,
	}
}

// SetTwoFactorCall 替换二要素调用实现
func (s *VerificationService) SetTwoFactorCall(call func(ctx context.Context, cfg *upstream.Config, name, idCard string) (*upstream.VerifyResult, error)) {
	if call != nil {
		s.twoFactorCall = call
	}
}

// SetThreeFactorCall 替换三要素调用实现
func (s *VerificationService) SetThreeFactorCall(call func(ctx context.Context, cfg *upstream.Config, name, idCard, mobile string) (*upstream.VerifyResult, error)) {
	if call != nil {
		s.threeFactorCall = call
	}
}

// VerifyTwoFactor 姓名+证件号核验
func (s *VerificationService) VerifyTwoFactor(ctx context.Context, name, idCard string) (bool, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return false, err
	}
	result, err := s.twoFactorCall(ctx, cfg, name, idCard)
	if err != nil {
		logger.Errorw("verify_two_factor_failed", "error", err)
		return false, err
	}
	if !result.Match {
		logger.Infow("verify_two_factor_mismatch")
	}
	return result.Match, nil
}

// VerifyThreeFactor 姓名+证件号+手机号核验
func (s *VerificationService) VerifyThreeFactor(ctx context.Context, name, idCard, mobile string) (bool, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return false, err
	}
	result, err := s.threeFactorCall(ctx, cfg, name, idCard, mobile)
	if err != nil {
		logger.Errorw("verify_three_factor_failed", "error", err)
		return false, err
	}
	if !result.Match {
		logger.Infow("verify_three_factor_mismatch")
	}
	return result.Match, nil
}

func (s *VerificationService) loadConfig() (*upstream.Config, error) {
	externalCfg, err := s.externalConfigRepo.GetActiveWithFallback(models.ExternalConfigTianyuan, 1, constants.OwnerTypeAdmin)
	if err != nil {
		return nil, err
	}
	if externalCfg == nil {
		return nil, ErrUpstreamConfigMissing
	}
	return upstream.ParseConfig(externalCfg.Credentials)
}
