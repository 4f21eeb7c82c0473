package public

import (
	"github.com/tianyuan-next/internal/http/response"
	"github.com/tianyuan-next/internal/service"

	"github.com/gin-gonic/gin"
)

type createPaymentPayload struct {
	OrderNo         string `json:"order_no" binding:"required"`
	Method          string `json:"method" binding:"required"`
	InteractionMode string `json:"interaction_mode"`
}

// CreatePayment 为待支付订单创建支付单
func (h *Handler) CreatePayment(c *gin.Context) {
	var req createPaymentPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	result, err := h.PaymentService.CreatePayment(c.Request.Context(), service.CreatePaymentInput{
		OrderNo:         req.OrderNo,
		Method:          req.Method,
		InteractionMode: req.InteractionMode,
		ClientIP:        c.ClientIP(),
	})
	if err != nil {
		respondPaymentCreateError(c, err)
		return
	}
	response.Success(c, result)
}

// GetPaymentStatus 轮询支付状态
func (h *Handler) GetPaymentStatus(c *gin.Context) {
	orderNo := c.Param("order_no")
	result, err := h.PaymentService.PollPaymentStatus(c.Request.Context(), orderNo)
	if err != nil {
		respondWithMappedError(c, err, []mappedHandlerError{
			{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "订单不存在"},
		}, response.CodeInternal, "支付状态查询失败")
		return
	}
	response.Success(c, result)
}
