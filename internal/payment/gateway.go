package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/payment/alipay"
	"github.com/tianyuan-next/internal/payment/wechatpay"
)

var (
	// ErrUnsupportedMethod 不支持的支付方式。
	ErrUnsupportedMethod = errors.New("payment: unsupported method")
	// ErrGatewayConfig 支付渠道配置无效。
	ErrGatewayConfig = errors.New("payment: gateway config invalid")
)

// CreateOrderInput 渠道下单输入。
type CreateOrderInput struct {
	OrderNo         string
	Amount          string
	Subject         string
	ClientIP        string
	InteractionMode string
}

// CreateOrderResult 渠道下单返回。
type CreateOrderResult struct {
	PayURL            string
	QRCode            string
	ThirdPartyOrderID string
}

// OrderStatus 渠道侧订单状态,TradeStatus 取值 not_paid / paid / unknown。
type OrderStatus struct {
	TradeStatus string
	TradeNo     string
	Amount      string
}

// RefundOrderInput 渠道退款输入。
type RefundOrderInput struct {
	OrderNo  string
	RefundNo string
	Amount   string
	Reason   string
}

// RefundOrderResult 渠道退款返回,Status 取值 processing / success / failed。
type RefundOrderResult struct {
	RefundNo string
	RefundID string
	Status   string
}

// Gateway 统一支付渠道协议:下单、查单、退款、查退款。
// 查单对"单不存在"一律返回 not_paid,调用方不需要区分渠道差异。
type Gateway interface {
	Method() string
	CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
	QueryOrderStatus(ctx context.Context, orderNo string) (*OrderStatus, error)
	RefundOrder(ctx context.Context, input RefundOrderInput) (*RefundOrderResult, error)
	QueryRefundStatus(ctx context.Context, orderNo, refundNo string) (string, error)
}

// NewGateway 按支付方式构建渠道实例,rawConfig 来自渠道配置表的凭证 JSON。
func NewGateway(method string, rawConfig map[string]interface{}) (Gateway, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case constants.PaymentMethodAlipay:
		cfg, err := alipay.ParseConfig(rawConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGatewayConfig, err)
		}
		return &alipayGateway{cfg: cfg}, nil
	case constants.PaymentMethodWechat:
		cfg, err := wechatpay.ParseConfig(rawConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGatewayConfig, err)
		}
		return &wechatGateway{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
}

type alipayGateway struct {
	cfg *alipay.Config
}

func (g *alipayGateway) Method() string {
	return constants.PaymentMethodAlipay
}

func (g *alipayGateway) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	mode := defaultInteractionMode(input.InteractionMode)
	result, err := alipay.CreatePayment(ctx, g.cfg, alipay.CreateInput{
		OrderNo: input.OrderNo,
		Amount:  input.Amount,
		Subject: input.Subject,
	}, mode)
	if err != nil {
		return nil, err
	}
	return &CreateOrderResult{
		PayURL:            result.PayURL,
		QRCode:            result.QRCode,
		ThirdPartyOrderID: result.TradeNo,
	}, nil
}

func (g *alipayGateway) QueryOrderStatus(ctx context.Context, orderNo string) (*OrderStatus, error) {
	result, err := alipay.QueryOrderStatus(ctx, g.cfg, orderNo)
	if err != nil {
		return nil, err
	}
	return &OrderStatus{
		TradeStatus: result.TradeStatus,
		TradeNo:     result.TradeNo,
		Amount:      result.TotalAmount,
	}, nil
}

func (g *alipayGateway) RefundOrder(ctx context.Context, input RefundOrderInput) (*RefundOrderResult, error) {
	result, err := alipay.CreateRefund(ctx, g.cfg, alipay.RefundInput{
		OrderNo:      input.OrderNo,
		RefundNo:     input.RefundNo,
		RefundAmount: input.Amount,
		Reason:       input.Reason,
	})
	if err != nil {
		return nil, err
	}
	return &RefundOrderResult{
		RefundNo: result.RefundNo,
		Status:   result.Status,
	}, nil
}

func (g *alipayGateway) QueryRefundStatus(ctx context.Context, orderNo, refundNo string) (string, error) {
	result, err := alipay.QueryRefundStatus(ctx, g.cfg, orderNo, refundNo)
	if err != nil {
		return "", err
	}
	return result.Status, nil
}

type wechatGateway struct {
	cfg *wechatpay.Config
}

func (g *wechatGateway) Method() string {
	return constants.PaymentMethodWechat
}

func (g *wechatGateway) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	mode := defaultInteractionMode(input.InteractionMode)
	result, err := wechatpay.CreatePayment(ctx, g.cfg, wechatpay.CreateInput{
		OrderNo:     input.OrderNo,
		Amount:      input.Amount,
		Description: input.Subject,
		ClientIP:    input.ClientIP,
	}, mode)
	if err != nil {
		return nil, err
	}
	return &CreateOrderResult{
		PayURL:            result.PayURL,
		QRCode:            result.QRCode,
		ThirdPartyOrderID: result.PrepayID,
	}, nil
}

func (g *wechatGateway) QueryOrderStatus(ctx context.Context, orderNo string) (*OrderStatus, error) {
	result, err := wechatpay.QueryOrderByOutTradeNo(ctx, g.cfg, orderNo)
	if err != nil {
		return nil, err
	}
	return &OrderStatus{
		TradeStatus: result.Status,
		TradeNo:     result.TransactionID,
		Amount:      result.Amount,
	}, nil
}

func (g *wechatGateway) RefundOrder(ctx context.Context, input RefundOrderInput) (*RefundOrderResult, error) {
	// 全额退款,退款金额与订单总额一致
	result, err := wechatpay.CreateRefund(ctx, g.cfg, wechatpay.RefundInput{
		OrderNo:  input.OrderNo,
		RefundNo: input.RefundNo,
		Amount:   input.Amount,
		Total:    input.Amount,
		Reason:   input.Reason,
	})
	if err != nil {
		return nil, err
	}
	return &RefundOrderResult{
		RefundNo: result.RefundNo,
		RefundID: result.RefundID,
		Status:   result.Status,
	}, nil
}

func (g *wechatGateway) QueryRefundStatus(ctx context.Context, orderNo, refundNo string) (string, error) {
	result, err := wechatpay.QueryRefundStatus(ctx, g.cfg, refundNo)
	if err != nil {
		return "", err
	}
	return result.Status, nil
}

func defaultInteractionMode(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		return constants.PaymentInteractionQR
	}
	return mode
}
