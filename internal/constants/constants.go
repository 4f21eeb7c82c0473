package constants

// 订单状态常量
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusQuerying  = "querying"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
	OrderStatusCancelled = "cancelled"
	OrderStatusRefunded  = "refunded"
)

// 查询结果状态常量
const (
	QueryResultStatusProcessing = "processing"
	QueryResultStatusSuccess    = "success"
	QueryResultStatusFailed     = "failed"
	QueryResultStatusTimeout    = "timeout"
)

// 支付方式常量
const (
	PaymentMethodAlipay = "alipay"
	PaymentMethodWechat = "wechat"
)

// 支付交互方式常量
const (
	PaymentInteractionQR       = "qr"
	PaymentInteractionWAP      = "wap"
	PaymentInteractionPage     = "page"
	PaymentInteractionRedirect = "redirect"
)

// 网关中立的交易状态常量
const (
	TradeStatusNotPaid = "not_paid"
	TradeStatusPaid    = "paid"
	TradeStatusUnknown = "unknown"
)

// 网关中立的退款状态常量
const (
	RefundStatusProcessing = "processing"
	RefundStatusSuccess    = "success"
	RefundStatusFailed     = "failed"
)

// 支付宝交易状态常量
const (
	AlipayTradeStatusSuccess      = "TRADE_SUCCESS"
	AlipayTradeStatusFinished     = "TRADE_FINISHED"
	AlipayTradeStatusClosed       = "TRADE_CLOSED"
	AlipayTradeStatusWaitBuyerPay = "WAIT_BUYER_PAY"
	AlipayCallbackSuccess         = "success"
	AlipayCallbackFail            = "fail"
)

// 佣金提现状态常量
const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusCompleted = "completed"
	WithdrawalStatusRejected  = "rejected"
)

// 所属用户类型常量
const (
	OwnerTypeAdmin = "admin"
	OwnerTypeAgent = "agent"
)

// 查询配置类别常量
const (
	QueryCategoryTwoFactor   = "two_factor"
	QueryCategoryThreeFactor = "three_factor"
	QueryCategoryFace        = "face"
)

// 已知上游接口编号常量
const (
	APICodeLoanBehavior = "FLXG0V4B" // 借贷行为
	APICodeEnterprise   = "QYGL8261" // 企业涉诉
	APICodeMarriage     = "IVYZ5733" // 婚姻状况
	APICodeLoanIntent   = "JRZQ0A03" // 借贷意向
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "ty"
)
