package service

import (
	"context"
	"strings"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"

	"github.com/shopspring/decimal"
)

// IdentityVerifier 要素核验入口,由上游数据源服务实现。
type IdentityVerifier interface {
	VerifyTwoFactor(ctx context.Context, name, idCard string) (bool, error)
	VerifyThreeFactor(ctx context.Context, name, idCard, mobile string) (bool, error)
}

// SmsCodeVerifier 短信验证码核验入口。
type SmsCodeVerifier interface {
	VerifyCode(phone, code string) error
}

// OrderService 订单服务
type OrderService struct {
	orderRepo       repository.OrderRepository
	queryConfigRepo repository.QueryConfigRepository
	agentRepo       repository.AgentUserRepository
	verifier        IdentityVerifier
	smsVerifier     SmsCodeVerifier
}

// NewOrderService 创建订单服务
func NewOrderService(orderRepo repository.OrderRepository, queryConfigRepo repository.QueryConfigRepository, agentRepo repository.AgentUserRepository, verifier IdentityVerifier, smsVerifier SmsCodeVerifier) *OrderService {
	return &OrderService{
		orderRepo:       orderRepo,
		queryConfigRepo: queryConfigRepo,
		agentRepo:       agentRepo,
		verifier:        verifier,
		smsVerifier:     smsVerifier,
	}
}

// CreateQueryOrderInput 创建查询订单输入
type CreateQueryOrderInput struct {
	UserID    uint
	QueryType string
	AgentTag  string
	Name      string
	IDCard    string
	Phone     string
	SmsCode   string
	ClientIP  string
}

// CreateQueryOrder 创建查询订单。
// 下单前按查询类别完成要素预检:三要素校验短信验证码,二要素实时核验姓名与证件号,
// 企业查询(类别为空)无需预检。通过后按代理底价快照佣金并登记查询参数。
func (s *OrderService) CreateQueryOrder(ctx context.Context, input CreateQueryOrderInput) (*models.Order, error) {
	if input.UserID == 0 {
		return nil, ErrUserNotFound
	}
	input.QueryType = strings.TrimSpace(input.QueryType)
	input.Name = strings.TrimSpace(input.Name)
	input.IDCard = strings.TrimSpace(input.IDCard)
	input.Phone = strings.TrimSpace(input.Phone)
	input.SmsCode = strings.TrimSpace(input.SmsCode)
	if input.QueryType == "" || input.Name == "" || input.IDCard == "" {
		return nil, ErrParamMissing
	}

	// 订单归属与配置归属由代理标识决定,与用户归属无关
	ownerID := uint(1)
	ownerType := constants.OwnerTypeAdmin
	var orderAgent *models.AgentUser
	if tag := strings.TrimSpace(input.AgentTag); tag != "" {
		agent, err := s.agentRepo.GetByDomainSuffix(tag)
		if err != nil {
			return nil, err
		}
		if agent != nil {
			orderAgent = agent
			ownerID = agent.ID
			ownerType = constants.OwnerTypeAgent
		} else {
			logger.Warnw("order_agent_tag_invalid", "agent_tag", tag, "user_id", input.UserID)
		}
	}

	config, err := s.queryConfigRepo.GetActiveByName(input.QueryType, ownerID, ownerType)
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, ErrQueryConfigNotFound
	}

	if err := s.runPreChecks(ctx, config, input); err != nil {
		return nil, err
	}

	// 代理佣金 = 客户价 - 代理底价,下限 0
	commission := models.ZeroMoney()
	var agentID *uint
	if orderAgent != nil {
		bottom := orderAgent.PersonalQueryPrice
		if config.Category == "" {
			bottom = orderAgent.EnterpriseQueryMinPrice
		}
		diff := config.CustomerPrice.Sub(bottom.Decimal)
		if diff.GreaterThan(decimal.Zero) {
			commission = models.NewMoneyFromDecimal(diff)
		}
		id := orderAgent.ID
		agentID = &id
	}

	configID := config.ID
	order := &models.Order{
		OrderNo:         models.GenerateOrderNo(),
		UserID:          input.UserID,
		AgentID:         agentID,
		QueryType:       input.QueryType,
		Amount:          config.CustomerPrice,
		AgentCommission: commission,
		QueryConfigID:   &configID,
		Status:          constants.OrderStatusPending,
	}
	if err := s.orderRepo.Create(order); err != nil {
		return nil, err
	}

	if err := SaveQueryParams(ctx, order.OrderNo, QueryParams{
		Name:          input.Name,
		IDCard:        input.IDCard,
		Phone:         input.Phone,
		QueryType:     input.QueryType,
		QueryCategory: config.Category,
	}); err != nil {
		logger.Errorw("order_query_params_save_failed", "order_no", order.OrderNo, "error", err)
	}

	logger.Infow("order_created",
		"order_no", order.OrderNo,
		"user_id", order.UserID,
		"query_type", order.QueryType,
		"amount", order.Amount.String(),
		"agent_commission", order.AgentCommission.String())
	return order, nil
}

func (s *OrderService) runPreChecks(ctx context.Context, config *models.QueryConfig, input CreateQueryOrderInput) error {
	switch config.Category {
	case constants.QueryCategoryThreeFactor:
		if input.Phone == "" || input.SmsCode == "" {
			return ErrParamMissing
		}
		if s.smsVerifier != nil {
			if err := s.smsVerifier.VerifyCode(input.Phone, input.SmsCode); err != nil {
				return err
			}
		}
	case constants.QueryCategoryTwoFactor:
		if s.verifier == nil {
			return ErrUpstreamConfigMissing
		}
		match, err := s.verifier.VerifyTwoFactor(ctx, input.Name, input.IDCard)
		if err != nil {
			return err
		}
		if !match {
			return ErrIdentityMismatch
		}
	case "":
		// 企业查询无需预检
	default:
		return ErrQueryConfigDisabled
	}
	return nil
}

// GetUserOrder 获取用户自己的订单
func (s *OrderService) GetUserOrder(userID uint, orderNo string) (*models.Order, error) {
	order, err := s.orderRepo.GetByOrderNo(strings.TrimSpace(orderNo))
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListUserOrders 用户订单列表
func (s *OrderService) ListUserOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListByUser(filter)
}

// ListAdminOrders 管理端订单列表
func (s *OrderService) ListAdminOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListAdmin(filter)
}

// CancelOrder 用户取消待支付订单
func (s *OrderService) CancelOrder(userID uint, orderNo string) error {
	order, err := s.GetUserOrder(userID, orderNo)
	if err != nil {
		return err
	}
	if order.Status != constants.OrderStatusPending {
		return ErrOrderStateInvalid
	}
	if err := s.orderRepo.UpdateStatus(order.ID, constants.OrderStatusCancelled, nil); err != nil {
		return err
	}
	logger.Infow("order_cancelled", "order_no", order.OrderNo, "user_id", userID)
	return nil
}
