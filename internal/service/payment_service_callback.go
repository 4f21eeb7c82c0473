package service

import (
	"context"
	"net/url"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/payment/alipay"
	"github.com/tianyuan-next/internal/payment/wechatpay"
)

// HandleAlipayCallback 处理支付宝异步通知,返回应答给渠道的报文体。
// 验签失败或处理失败应答 fail 让渠道重发,重复通知由 ProcessPaymentSuccess 幂等消化。
func (s *PaymentService) HandleAlipayCallback(ctx context.Context, ownerID uint, ownerType string, form url.Values) string {
	orderNo := form.Get("out_trade_no")
	if orderNo == "" {
		logger.Warnw("alipay_callback_invalid", "reason", "missing out_trade_no")
		return constants.AlipayCallbackFail
	}

	cfg, err := s.loadGatewayConfig(models.ExternalConfigAlipayPayment, ownerID, ownerType)
	if err != nil {
		logger.Errorw("alipay_callback_config_missing",
			"order_no", orderNo,
			"owner_id", ownerID,
			"owner_type", ownerType,
			"error", err)
		return constants.AlipayCallbackFail
	}
	parsed, err := alipay.ParseConfig(cfg)
	if err != nil {
		logger.Errorw("alipay_callback_config_invalid", "order_no", orderNo, "error", err)
		return constants.AlipayCallbackFail
	}
	if err := alipay.VerifyCallback(parsed, form); err != nil {
		logger.Warnw("alipay_callback_sign_invalid", "order_no", orderNo, "error", err)
		return constants.AlipayCallbackFail
	}

	tradeStatus := form.Get("trade_status")
	if tradeStatus != constants.AlipayTradeStatusSuccess && tradeStatus != constants.AlipayTradeStatusFinished {
		logger.Infow("alipay_callback_ignored",
			"order_no", orderNo,
			"trade_status", tradeStatus)
		return constants.AlipayCallbackSuccess
	}

	if err := s.ProcessPaymentSuccess(ctx, orderNo, constants.PaymentMethodAlipay, form.Get("trade_no")); err != nil {
		logger.Errorw("alipay_callback_process_failed", "order_no", orderNo, "error", err)
		return constants.AlipayCallbackFail
	}
	return constants.AlipayCallbackSuccess
}

// HandleWechatCallback 验签解密微信支付通知并处理,错误返回时由 HTTP 层应答非 2xx 让渠道重发
func (s *PaymentService) HandleWechatCallback(ctx context.Context, ownerID uint, ownerType string, headers map[string]string, body []byte) error {
	cfg, err := s.loadGatewayConfig(models.ExternalConfigWechatPayment, ownerID, ownerType)
	if err != nil {
		logger.Errorw("wechat_callback_config_missing",
			"owner_id", ownerID,
			"owner_type", ownerType,
			"error", err)
		return err
	}
	parsed, err := wechatpay.ParseConfig(cfg)
	if err != nil {
		logger.Errorw("wechat_callback_config_invalid", "error", err)
		return err
	}

	result, err := wechatpay.VerifyAndDecodeWebhook(ctx, parsed, headers, body)
	if err != nil {
		logger.Warnw("wechat_callback_verify_failed", "error", err)
		return err
	}
	if result.Status != constants.TradeStatusPaid {
		logger.Infow("wechat_callback_ignored",
			"order_no", result.OrderNo,
			"event_type", result.EventType,
			"status", result.Status)
		return nil
	}

	if err := s.ProcessPaymentSuccess(ctx, result.OrderNo, constants.PaymentMethodWechat, result.TransactionID); err != nil {
		logger.Errorw("wechat_callback_process_failed", "order_no", result.OrderNo, "error", err)
		return err
	}
	return nil
}

func (s *PaymentService) loadGatewayConfig(configType string, ownerID uint, ownerType string) (map[string]interface{}, error) {
	cfg, err := s.externalConfigRepo.GetActiveWithFallback(configType, ownerID, ownerType)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrPaymentConfigMissing
	}
	return cfg.Credentials, nil
}
