package service

import "errors"

// 业务哨兵错误,HTTP 层据此映射状态码。
var (
	// 订单
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderStateInvalid  = errors.New("order state invalid")
	ErrOrderAmountInvalid = errors.New("order amount invalid")

	// 查询配置
	ErrQueryConfigNotFound = errors.New("query config not found")
	ErrQueryConfigDisabled = errors.New("query config disabled")
	ErrApiConfigNotFound   = errors.New("api config not found")
	ErrParamMissing        = errors.New("required param missing")

	// 身份核验
	ErrIdentityMismatch = errors.New("identity factors mismatch")

	// 用户与账号
	ErrUserNotFound      = errors.New("user not found")
	ErrAgentNotFound     = errors.New("agent not found")
	ErrAdminNotFound     = errors.New("admin not found")
	ErrAccountLocked     = errors.New("account locked")
	ErrPasswordIncorrect = errors.New("password incorrect")
	ErrWeakPassword      = errors.New("password too weak")

	// 支付与退款
	ErrPaymentConfigMissing  = errors.New("payment config missing")
	ErrPaymentNotPaid        = errors.New("payment not paid")
	ErrRefundNotAllowed      = errors.New("refund not allowed")
	ErrRefundStillProcessing = errors.New("refund still processing")

	// 佣金与提现
	ErrWithdrawalNotFound      = errors.New("withdrawal not found")
	ErrWithdrawalInFlight      = errors.New("withdrawal already in flight")
	ErrWithdrawalAmountInvalid = errors.New("withdrawal amount invalid")
	ErrInsufficientCommission  = errors.New("insufficient unsettled commission")
	ErrWithdrawalStateInvalid  = errors.New("withdrawal state invalid")

	// 查询结果
	ErrResultNotFound = errors.New("query result not found")
	ErrResultExpired  = errors.New("query result expired")

	// 验证码
	ErrCaptchaNotFound        = errors.New("captcha not found")
	ErrCaptchaExpired         = errors.New("captcha expired")
	ErrCaptchaAlreadyVerified = errors.New("captcha already verified")
	ErrCaptchaTooManyAttempts = errors.New("captcha too many attempts")
	ErrCaptchaMismatch        = errors.New("captcha mismatch")
	ErrCaptchaRequired        = errors.New("captcha required")

	// 短信验证码
	ErrPhoneInvalid     = errors.New("phone number invalid")
	ErrSmsCodeInvalid   = errors.New("sms code invalid")
	ErrSmsCodeExpired   = errors.New("sms code expired")
	ErrSmsTooFrequent   = errors.New("sms too frequent")
	ErrSmsConfigMissing = errors.New("sms config missing")
	ErrSmsSendFailed    = errors.New("sms send failed")

	// 授权书
	ErrLetterNotFound = errors.New("authorization letter not found")

	// 上游数据源
	ErrUpstreamConfigMissing = errors.New("upstream config missing")
)
