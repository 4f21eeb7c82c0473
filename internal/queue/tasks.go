package queue

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// TaskResultExpireSweep 查询结果到期清理任务
	TaskResultExpireSweep = "query:result_expire_sweep"
	// TaskCaptchaCleanup 过期验证码记录清理任务
	TaskCaptchaCleanup = "captcha:cleanup"
	// TaskRefundReconcile 退款状态对账任务
	TaskRefundReconcile = "payment:refund_reconcile"
	// TaskPaymentStatusPoll 待支付订单状态核对任务
	TaskPaymentStatusPoll = "payment:status_poll"
)

// RefundReconcilePayload 退款对账任务载荷
type RefundReconcilePayload struct {
	OrderNo  string `json:"order_no"`
	RefundNo string `json:"refund_no"`
}

// PaymentStatusPollPayload 支付状态核对任务载荷,OrderNo 为空时扫描全部临期待支付订单
type PaymentStatusPollPayload struct {
	OrderNo string `json:"order_no,omitempty"`
}

// NewRefundReconcileTask 创建退款对账任务
func NewRefundReconcileTask(payload RefundReconcilePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRefundReconcile, body), nil
}

// NewPaymentStatusPollTask 创建支付状态核对任务
func NewPaymentStatusPollTask(payload PaymentStatusPollPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentStatusPoll, body), nil
}

// NewResultExpireSweepTask 创建结果到期清理任务,由调度器周期触发
func NewResultExpireSweepTask() *asynq.Task {
	return asynq.NewTask(TaskResultExpireSweep, nil)
}

// NewCaptchaCleanupTask 创建验证码记录清理任务,由调度器周期触发
func NewCaptchaCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskCaptchaCleanup, nil)
}
