package service

import (
	"context"
	"time"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/payment"
	"github.com/tianyuan-next/internal/queue"
	"github.com/tianyuan-next/internal/repository"

	"gorm.io/gorm"
)

// GatewayResolver 按支付方式与归属解析渠道实例,便于测试替换真实渠道。
type GatewayResolver func(method string, ownerID uint, ownerType string) (payment.Gateway, error)

// FulfillmentTrigger 支付成功后触发查询执行。
type FulfillmentTrigger interface {
	TriggerQuery(ctx context.Context, orderID uint) error
}

// PaymentService 支付服务
type PaymentService struct {
	orderRepo          repository.OrderRepository
	resultRepo         repository.QueryResultRepository
	externalConfigRepo repository.ExternalApiConfigRepository
	commissionSvc      *CommissionService
	fulfillment        FulfillmentTrigger
	queueClient        *queue.Client
	resolveGateway     GatewayResolver
}

// NewPaymentService 创建支付服务
func NewPaymentService(
	orderRepo repository.OrderRepository,
	resultRepo repository.QueryResultRepository,
	externalConfigRepo repository.ExternalApiConfigRepository,
	commissionSvc *CommissionService,
	fulfillment FulfillmentTrigger,
	queueClient *queue.Client,
) *PaymentService {
	s := &PaymentService{
		orderRepo:          orderRepo,
		resultRepo:         resultRepo,
		externalConfigRepo: externalConfigRepo,
		commissionSvc:      commissionSvc,
		fulfillment:        fulfillment,
		queueClient:        queueClient,
	}
	s.resolveGateway = s.defaultGatewayResolver
	return s
}

// SetGatewayResolver 覆盖渠道解析逻辑,仅测试使用
func (s *PaymentService) SetGatewayResolver(resolver GatewayResolver) {
	if resolver != nil {
		s.resolveGateway = resolver
	}
}

// SetFulfillmentTrigger 注入查询触发器,容器装配时解决服务间循环依赖
func (s *PaymentService) SetFulfillmentTrigger(trigger FulfillmentTrigger) {
	s.fulfillment = trigger
}

// CreatePaymentInput 创建支付请求
type CreatePaymentInput struct {
	OrderNo         string
	Method          string
	InteractionMode string
	ClientIP        string
	Subject         string
}

// CreatePaymentResult 创建支付结果
type CreatePaymentResult struct {
	OrderNo           string `json:"order_no"`
	Method            string `json:"method"`
	PayURL            string `json:"pay_url,omitempty"`
	QRCode            string `json:"qr_code,omitempty"`
	ThirdPartyOrderID string `json:"third_party_order_id,omitempty"`
}

// CreatePayment 为待支付订单创建渠道支付单
func (s *PaymentService) CreatePayment(ctx context.Context, input CreatePaymentInput) (*CreatePaymentResult, error) {
	order, err := s.orderRepo.GetByOrderNo(input.OrderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusPending {
		return nil, ErrOrderStateInvalid
	}

	ownerID, ownerType := orderOwner(order)
	gw, err := s.resolveGateway(input.Method, ownerID, ownerType)
	if err != nil {
		return nil, err
	}

	subject := input.Subject
	if subject == "" {
		subject = order.QueryType
	}
	result, err := gw.CreateOrder(ctx, payment.CreateOrderInput{
		OrderNo:         order.OrderNo,
		Amount:          order.Amount.String(),
		Subject:         subject,
		ClientIP:        input.ClientIP,
		InteractionMode: input.InteractionMode,
	})
	if err != nil {
		logger.Errorw("payment_create_failed",
			"order_no", order.OrderNo,
			"method", gw.Method(),
			"error", err)
		return nil, err
	}

	updates := map[string]interface{}{
		"payment_method": gw.Method(),
	}
	if result.ThirdPartyOrderID != "" {
		updates["third_party_order_id"] = result.ThirdPartyOrderID
	}
	if err := s.orderRepo.Updates(order.ID, updates); err != nil {
		return nil, err
	}

	logger.Infow("payment_created",
		"order_no", order.OrderNo,
		"method", gw.Method(),
		"interaction_mode", input.InteractionMode)
	return &CreatePaymentResult{
		OrderNo:           order.OrderNo,
		Method:            gw.Method(),
		PayURL:            result.PayURL,
		QRCode:            result.QRCode,
		ThirdPartyOrderID: result.ThirdPartyOrderID,
	}, nil
}

// ProcessPaymentSuccess 处理支付成功,可被回调、轮询、对账任务重复调用。
// 订单已离开待支付状态或已存在查询结果时视为重复通知,直接成功返回。
func (s *PaymentService) ProcessPaymentSuccess(ctx context.Context, orderNo, method, tradeNo string) error {
	var orderID uint
	triggered := false

	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByOrderNoForUpdate(orderNo)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.Status != constants.OrderStatusPending {
			logger.Infow("payment_success_duplicate",
				"order_no", orderNo,
				"status", order.Status)
			return nil
		}

		existing, err := s.resultRepo.WithTx(tx).GetByOrderID(order.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			logger.Infow("payment_success_duplicate",
				"order_no", orderNo,
				"query_result_id", existing.ID)
			return nil
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":       constants.OrderStatusPaid,
			"payment_time": now,
		}
		if method != "" {
			updates["payment_method"] = method
		}
		if tradeNo != "" {
			updates["third_party_trade_no"] = tradeNo
		}
		if err := orderRepo.Updates(order.ID, updates); err != nil {
			return err
		}

		if order.AgentID != nil {
			if err := s.commissionSvc.Accrue(tx, *order.AgentID, order.AgentCommission); err != nil {
				return err
			}
			if err := s.commissionSvc.AccrueProfit(tx, *order.AgentID, order.Amount); err != nil {
				return err
			}
		}

		orderID = order.ID
		triggered = true
		return nil
	})
	if err != nil {
		return err
	}
	if !triggered {
		return nil
	}

	logger.Infow("payment_success",
		"order_no", orderNo,
		"method", method,
		"trade_no", tradeNo)

	if s.fulfillment == nil {
		return nil
	}
	if err := s.fulfillment.TriggerQuery(ctx, orderID); err != nil {
		logger.Errorw("fulfillment_trigger_failed",
			"order_no", orderNo,
			"error", err)
		// 触发失败只能回到已支付,回到待支付会造成重复收款
		s.rollbackQueryingToPaid(orderID, orderNo)
	}
	return nil
}

func (s *PaymentService) rollbackQueryingToPaid(orderID uint, orderNo string) {
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if order == nil || order.Status != constants.OrderStatusQuerying {
			return nil
		}
		return orderRepo.UpdateStatus(order.ID, constants.OrderStatusPaid, nil)
	})
	if err != nil {
		logger.Errorw("order_rollback_failed",
			"order_no", orderNo,
			"error", err)
	}
}

// PollPaymentStatusResult 轮询支付状态结果
type PollPaymentStatusResult struct {
	OrderNo string `json:"order_no"`
	Status  string `json:"status"`
	Paid    bool   `json:"paid"`
}

// PollPaymentStatus 客户端轮询支付状态,渠道侧已支付时就地完成支付处理
func (s *PaymentService) PollPaymentStatus(ctx context.Context, orderNo string) (*PollPaymentStatusResult, error) {
	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusPending {
		return &PollPaymentStatusResult{
			OrderNo: order.OrderNo,
			Status:  order.Status,
			Paid:    orderPaidStatus(order.Status),
		}, nil
	}
	if order.PaymentMethod == "" {
		return &PollPaymentStatusResult{OrderNo: order.OrderNo, Status: order.Status}, nil
	}

	ownerID, ownerType := orderOwner(order)
	gw, err := s.resolveGateway(order.PaymentMethod, ownerID, ownerType)
	if err != nil {
		return nil, err
	}
	status, err := gw.QueryOrderStatus(ctx, order.OrderNo)
	if err != nil {
		logger.Warnw("payment_status_query_failed",
			"order_no", order.OrderNo,
			"method", order.PaymentMethod,
			"error", err)
		return &PollPaymentStatusResult{OrderNo: order.OrderNo, Status: order.Status}, nil
	}
	if status.TradeStatus != constants.TradeStatusPaid {
		return &PollPaymentStatusResult{OrderNo: order.OrderNo, Status: order.Status}, nil
	}

	if err := s.ProcessPaymentSuccess(ctx, order.OrderNo, order.PaymentMethod, status.TradeNo); err != nil {
		return nil, err
	}
	reloaded, err := s.orderRepo.GetByOrderNo(order.OrderNo)
	if err != nil || reloaded == nil {
		return &PollPaymentStatusResult{OrderNo: order.OrderNo, Status: constants.OrderStatusPaid, Paid: true}, nil
	}
	return &PollPaymentStatusResult{
		OrderNo: reloaded.OrderNo,
		Status:  reloaded.Status,
		Paid:    orderPaidStatus(reloaded.Status),
	}, nil
}

// ReconcilePendingPayments 对即将超时的待支付订单做渠道侧核对,由后台任务周期调用
func (s *PaymentService) ReconcilePendingPayments(ctx context.Context, olderThan time.Duration, limit int) error {
	orders, err := s.orderRepo.ListPendingPayment(time.Now().Add(-olderThan), limit)
	if err != nil {
		return err
	}
	for i := range orders {
		order := &orders[i]
		if order.PaymentMethod == "" {
			continue
		}
		if _, err := s.PollPaymentStatus(ctx, order.OrderNo); err != nil {
			logger.Warnw("payment_reconcile_failed",
				"order_no", order.OrderNo,
				"error", err)
		}
	}
	return nil
}

func (s *PaymentService) defaultGatewayResolver(method string, ownerID uint, ownerType string) (payment.Gateway, error) {
	configType, err := paymentConfigType(method)
	if err != nil {
		return nil, err
	}
	cfg, err := s.externalConfigRepo.GetActiveWithFallback(configType, ownerID, ownerType)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrPaymentConfigMissing
	}
	return payment.NewGateway(method, cfg.Credentials)
}

func paymentConfigType(method string) (string, error) {
	switch method {
	case constants.PaymentMethodAlipay:
		return models.ExternalConfigAlipayPayment, nil
	case constants.PaymentMethodWechat:
		return models.ExternalConfigWechatPayment, nil
	default:
		return "", payment.ErrUnsupportedMethod
	}
}

func orderOwner(order *models.Order) (uint, string) {
	if order.AgentID != nil {
		return *order.AgentID, constants.OwnerTypeAgent
	}
	return 1, constants.OwnerTypeAdmin
}

func orderPaidStatus(status string) bool {
	switch status {
	case constants.OrderStatusPaid, constants.OrderStatusQuerying,
		constants.OrderStatusCompleted, constants.OrderStatusFailed,
		constants.OrderStatusRefunded:
		return true
	default:
		return false
	}
}
