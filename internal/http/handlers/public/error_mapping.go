package public

import (
	"errors"

	"github.com/tianyuan-next/internal/http/response"
	"github.com/tianyuan-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var captchaErrorRules = []mappedHandlerError{
	{target: service.ErrCaptchaNotFound, code: response.CodeBadRequest, msg: "验证码不存在或已失效"},
	{target: service.ErrCaptchaExpired, code: response.CodeBadRequest, msg: "验证码已过期，请重新获取"},
	{target: service.ErrCaptchaAlreadyVerified, code: response.CodeBadRequest, msg: "验证码已被使用，请重新获取"},
	{target: service.ErrCaptchaTooManyAttempts, code: response.CodeTooManyRequests, msg: "尝试次数过多，请重新获取验证码"},
	{target: service.ErrCaptchaMismatch, code: response.CodeBadRequest, msg: "验证失败，请重试"},
	{target: service.ErrCaptchaRequired, code: response.CodeBadRequest, msg: "请先完成人机验证"},
}

var smsSendErrorRules = []mappedHandlerError{
	{target: service.ErrPhoneInvalid, code: response.CodeBadRequest, msg: "手机号格式不正确"},
	{target: service.ErrSmsTooFrequent, code: response.CodeTooManyRequests, msg: "短信发送过于频繁，请稍后再试"},
	{target: service.ErrSmsConfigMissing, code: response.CodeInternal, msg: "短信服务未配置"},
	{target: service.ErrSmsSendFailed, code: response.CodeInternal, msg: "短信发送失败，请稍后再试"},
}

var orderCreateErrorRules = []mappedHandlerError{
	{target: service.ErrParamMissing, code: response.CodeBadRequest, msg: "缺少必填参数"},
	{target: service.ErrQueryConfigNotFound, code: response.CodeBadRequest, msg: "查询产品不存在"},
	{target: service.ErrQueryConfigDisabled, code: response.CodeBadRequest, msg: "查询产品已下架"},
	{target: service.ErrAgentNotFound, code: response.CodeBadRequest, msg: "代理标识无效"},
	{target: service.ErrIdentityMismatch, code: response.CodeBadRequest, msg: "姓名与证件号不匹配"},
	{target: service.ErrSmsCodeInvalid, code: response.CodeBadRequest, msg: "短信验证码错误"},
	{target: service.ErrSmsCodeExpired, code: response.CodeBadRequest, msg: "短信验证码已过期"},
	{target: service.ErrUpstreamConfigMissing, code: response.CodeInternal, msg: "核验服务未配置"},
	{target: service.ErrOrderAmountInvalid, code: response.CodeBadRequest, msg: "订单金额异常"},
}

var paymentCreateErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "订单不存在"},
	{target: service.ErrOrderStateInvalid, code: response.CodeBadRequest, msg: "订单状态不允许支付"},
	{target: service.ErrPaymentConfigMissing, code: response.CodeBadRequest, msg: "支付渠道未配置"},
}

var resultFetchErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "订单不存在"},
	{target: service.ErrResultNotFound, code: response.CodeNotFound, msg: "查询结果不存在"},
	{target: service.ErrResultExpired, code: response.CodeBadRequest, msg: "查询结果已过期"},
}

func respondCaptchaError(c *gin.Context, err error) {
	respondWithMappedError(c, err, captchaErrorRules, response.CodeInternal, "验证码服务异常")
}

func respondSmsSendError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(captchaErrorRules, smsSendErrorRules), response.CodeInternal, "短信发送失败")
}

func respondOrderCreateError(c *gin.Context, err error) {
	respondWithMappedError(c, err, orderCreateErrorRules, response.CodeInternal, "下单失败，请稍后再试")
}

func respondPaymentCreateError(c *gin.Context, err error) {
	respondWithMappedError(c, err, paymentCreateErrorRules, response.CodeInternal, "创建支付失败")
}

func respondResultFetchError(c *gin.Context, err error) {
	respondWithMappedError(c, err, resultFetchErrorRules, response.CodeInternal, "查询结果获取失败")
}
