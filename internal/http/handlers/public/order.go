package public

import (
	"strings"

	"github.com/tianyuan-next/internal/http/response"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/service"

	"github.com/gin-gonic/gin"
)

type createOrderPayload struct {
	QueryType string `json:"query_type" binding:"required"`
	AgentTag  string `json:"agent_tag"`
	Name      string `json:"name" binding:"required"`
	IDCard    string `json:"id_card" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
	SmsCode   string `json:"sms_code"`
}

// resolveOrCreateUser 按手机号定位下单用户,不存在时静默建档。
func (h *Handler) resolveOrCreateUser(phone, agentTag string) (*models.RegularUser, error) {
	phone = strings.TrimSpace(phone)
	user, err := h.RegularUserRepo.GetByPhone(phone)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user = &models.RegularUser{
		Username: models.GenerateUserUsername(),
		Phone:    phone,
	}
	if tag := strings.TrimSpace(agentTag); tag != "" {
		if agent, agentErr := h.AgentUserRepo.GetByDomainSuffix(tag); agentErr == nil && agent != nil {
			agentID := agent.ID
			user.AgentID = &agentID
		}
	}
	if err := h.RegularUserRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateOrder 创建查询订单
func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	user, err := h.resolveOrCreateUser(req.Phone, req.AgentTag)
	if err != nil {
		respondError(c, response.CodeInternal, "下单失败，请稍后再试", err)
		return
	}

	order, err := h.OrderService.CreateQueryOrder(c.Request.Context(), service.CreateQueryOrderInput{
		UserID:    user.ID,
		QueryType: req.QueryType,
		AgentTag:  req.AgentTag,
		Name:      req.Name,
		IDCard:    req.IDCard,
		Phone:     req.Phone,
		SmsCode:   req.SmsCode,
		ClientIP:  c.ClientIP(),
	})
	if err != nil {
		respondOrderCreateError(c, err)
		return
	}

	requestLog(c).Infow("public_order_created",
		"order_no", order.OrderNo,
		"query_type", order.QueryType,
		"user_id", user.ID,
	)
	response.Success(c, gin.H{
		"order_no":   order.OrderNo,
		"query_type": order.QueryType,
		"amount":     order.Amount,
		"status":     order.Status,
		"created_at": order.CreatedAt,
	})
}

// GetOrder 按订单号查询订单,手机号作为归属凭证
func (h *Handler) GetOrder(c *gin.Context) {
	orderNo := c.Param("order_no")
	phone := strings.TrimSpace(c.Query("phone"))
	if phone == "" {
		respondError(c, response.CodeBadRequest, "缺少手机号", nil)
		return
	}

	user, err := h.RegularUserRepo.GetByPhone(phone)
	if err != nil {
		respondError(c, response.CodeInternal, "订单查询失败", err)
		return
	}
	if user == nil {
		respondError(c, response.CodeNotFound, "订单不存在", nil)
		return
	}

	order, err := h.OrderService.GetUserOrder(user.ID, orderNo)
	if err != nil {
		respondWithMappedError(c, err, resultFetchErrorRules, response.CodeInternal, "订单查询失败")
		return
	}
	response.Success(c, order)
}

// CancelOrder 取消待支付订单
func (h *Handler) CancelOrder(c *gin.Context) {
	orderNo := c.Param("order_no")
	phone := strings.TrimSpace(c.Query("phone"))
	if phone == "" {
		respondError(c, response.CodeBadRequest, "缺少手机号", nil)
		return
	}

	user, err := h.RegularUserRepo.GetByPhone(phone)
	if err != nil || user == nil {
		respondError(c, response.CodeNotFound, "订单不存在", err)
		return
	}

	if err := h.OrderService.CancelOrder(user.ID, orderNo); err != nil {
		respondWithMappedError(c, err, []mappedHandlerError{
			{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "订单不存在"},
			{target: service.ErrOrderStateInvalid, code: response.CodeBadRequest, msg: "订单状态不允许取消"},
		}, response.CodeInternal, "取消订单失败")
		return
	}
	response.Success(c, gin.H{"order_no": orderNo, "cancelled": true})
}
