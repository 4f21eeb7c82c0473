package admin

import (
	"errors"

	"github.com/tianyuan-next/internal/http/response"
	"github.com/tianyuan-next/internal/service"

	"github.com/gin-gonic/gin"
)

type loginPayload struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	CaptchaID   string `json:"captcha_id" binding:"required"`
	CaptchaCode string `json:"captcha_code" binding:"required"`
}

type changePasswordPayload struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// GetLoginCaptcha 获取登录图片验证码
func (h *Handler) GetLoginCaptcha(c *gin.Context) {
	challenge, err := h.AdminCaptchaService.Generate()
	if err != nil {
		respondError(c, response.CodeInternal, "验证码生成失败", err)
		return
	}
	response.Success(c, challenge)
}

// Login 管理员登录
func (h *Handler) Login(c *gin.Context) {
	var req loginPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	admin, token, expiresAt, err := h.AuthService.AdminLogin(service.AdminLoginInput{
		Username:    req.Username,
		Password:    req.Password,
		CaptchaID:   req.CaptchaID,
		CaptchaCode: req.CaptchaCode,
		ClientIP:    c.ClientIP(),
	})
	if err != nil {
		respondAdminLoginError(c, err)
		return
	}

	response.Success(c, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"admin": gin.H{
			"id":       admin.ID,
			"username": admin.Username,
			"is_super": admin.IsSuper,
		},
	})
}

// ChangePassword 修改登录密码,成功后旧令牌全部失效
func (h *Handler) ChangePassword(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}

	var req changePasswordPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	if err := h.AuthService.ChangeAdminPassword(adminID, req.OldPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordIncorrect):
			respondError(c, response.CodeBadRequest, "原密码不正确", nil)
		case respondAdminPasswordPolicyError(c, err):
		default:
			respondError(c, response.CodeInternal, "密码修改失败", err)
		}
		return
	}
	response.Success(c, gin.H{"changed": true})
}

func respondAdminLoginError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCaptchaNotFound), errors.Is(err, service.ErrCaptchaMismatch),
		errors.Is(err, service.ErrCaptchaExpired), errors.Is(err, service.ErrCaptchaRequired):
		respondError(c, response.CodeBadRequest, "图片验证码错误", nil)
	case errors.Is(err, service.ErrPasswordIncorrect):
		respondError(c, response.CodeBadRequest, "用户名或密码错误", nil)
	case errors.Is(err, service.ErrAccountLocked):
		respondError(c, response.CodeForbidden, "账号已锁定，请稍后再试", nil)
	default:
		respondError(c, response.CodeInternal, "登录失败", err)
	}
}
