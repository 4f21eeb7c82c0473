package public

import (
	"github.com/tianyuan-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

type sendSmsPayload struct {
	Phone        string `json:"phone" binding:"required"`
	CaptchaToken string `json:"captcha_token" binding:"required"`
}

// SendSmsCode 发送短信验证码。
// 必须携带已通过校验的点击验证码令牌,令牌一次性消费。
func (h *Handler) SendSmsCode(c *gin.Context) {
	if h.SmsService == nil || h.ClickCaptchaService == nil {
		respondError(c, response.CodeInternal, "短信服务未配置", nil)
		return
	}

	var req sendSmsPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	if err := h.ClickCaptchaService.Consume(req.CaptchaToken); err != nil {
		respondSmsSendError(c, err)
		return
	}

	if err := h.SmsService.SendCode(c.Request.Context(), req.Phone, c.ClientIP()); err != nil {
		respondSmsSendError(c, err)
		return
	}
	response.Success(c, gin.H{"sent": true})
}
