package public

import (
	"github.com/tianyuan-next/internal/http/response"
	"github.com/tianyuan-next/internal/service"

	"github.com/gin-gonic/gin"
)

type generateCaptchaPayload struct {
	Fingerprint string `json:"fingerprint"`
}

type verifyCaptchaPayload struct {
	Token       string                 `json:"token" binding:"required"`
	Clicks      []service.CaptchaClick `json:"clicks" binding:"required"`
	Fingerprint string                 `json:"fingerprint"`
}

// GenerateCaptcha 生成文字点击验证码
func (h *Handler) GenerateCaptcha(c *gin.Context) {
	if h.ClickCaptchaService == nil {
		respondError(c, response.CodeInternal, "验证码服务异常", nil)
		return
	}

	var req generateCaptchaPayload
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	result, err := h.ClickCaptchaService.Generate(req.Fingerprint)
	if err != nil {
		respondCaptchaError(c, err)
		return
	}
	response.Success(c, result)
}

// VerifyCaptcha 校验点击坐标
func (h *Handler) VerifyCaptcha(c *gin.Context) {
	if h.ClickCaptchaService == nil {
		respondError(c, response.CodeInternal, "验证码服务异常", nil)
		return
	}

	var req verifyCaptchaPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	err := h.ClickCaptchaService.Verify(service.VerifyCaptchaInput{
		Token:       req.Token,
		Clicks:      req.Clicks,
		Fingerprint: req.Fingerprint,
		ClientIP:    c.ClientIP(),
	})
	if err != nil {
		respondCaptchaError(c, err)
		return
	}
	response.Success(c, gin.H{"token": req.Token, "verified": true})
}
