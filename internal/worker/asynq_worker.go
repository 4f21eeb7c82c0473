package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/provider"
	"github.com/tianyuan-next/internal/queue"
	"github.com/tianyuan-next/internal/service"

	"github.com/hibiken/asynq"
)

const (
	// 支付状态核对只扫创建超过该时长的待支付订单,避免和客户端轮询抢任务
	paymentPollOlderThan  = 3 * time.Minute
	paymentPollBatchLimit = 50

	resultSweepBatchLimit = 200

	// 过期验证码记录保留一天后物理删除
	captchaCleanupRetention  = 24 * time.Hour
	captchaCleanupBatchLimit = 500
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskRefundReconcile, c.handleRefundReconcile)
	mux.HandleFunc(queue.TaskPaymentStatusPoll, c.handlePaymentStatusPoll)
	mux.HandleFunc(queue.TaskResultExpireSweep, c.handleResultExpireSweep)
	mux.HandleFunc(queue.TaskCaptchaCleanup, c.handleCaptchaCleanup)
}

func (c *Consumer) handleRefundReconcile(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_refund_reconcile_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.RefundReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_refund_reconcile_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderNo == "" || payload.RefundNo == "" {
		logger.Debugw("worker_refund_reconcile_skip_invalid_payload",
			"order_no", payload.OrderNo,
			"refund_no", payload.RefundNo,
		)
		return nil
	}
	if c.PaymentService == nil {
		logger.Warnw("worker_refund_reconcile_skip_payment_service_nil", "order_no", payload.OrderNo)
		return nil
	}
	err := c.PaymentService.ReconcileRefund(ctx, payload.OrderNo, payload.RefundNo)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefundStillProcessing):
			// 渠道侧尚未终态,交给 asynq 退避重试
			return err
		case errors.Is(err, service.ErrOrderNotFound):
			logger.Debugw("worker_refund_reconcile_skip_order_not_found", "order_no", payload.OrderNo)
			return nil
		default:
			logger.Warnw("worker_refund_reconcile_failed",
				"order_no", payload.OrderNo,
				"refund_no", payload.RefundNo,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (c *Consumer) handlePaymentStatusPoll(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_status_poll_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	if c.PaymentService == nil {
		logger.Warnw("worker_payment_status_poll_skip_payment_service_nil")
		return nil
	}
	var payload queue.PaymentStatusPollPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			logger.Warnw("worker_payment_status_poll_unmarshal_failed", "error", err)
			return err
		}
	}
	if payload.OrderNo != "" {
		_, err := c.PaymentService.PollPaymentStatus(ctx, payload.OrderNo)
		if err != nil {
			if errors.Is(err, service.ErrOrderNotFound) {
				logger.Debugw("worker_payment_status_poll_skip_order_not_found", "order_no", payload.OrderNo)
				return nil
			}
			logger.Warnw("worker_payment_status_poll_failed", "order_no", payload.OrderNo, "error", err)
			return err
		}
		return nil
	}
	if err := c.PaymentService.ReconcilePendingPayments(ctx, paymentPollOlderThan, paymentPollBatchLimit); err != nil {
		logger.Warnw("worker_payment_status_poll_scan_failed", "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleResultExpireSweep(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_result_expire_sweep_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	if c.ResultService == nil {
		logger.Warnw("worker_result_expire_sweep_skip_result_service_nil")
		return nil
	}
	if _, err := c.ResultService.ExecuteResultExpireSweep(resultSweepBatchLimit); err != nil {
		logger.Warnw("worker_result_expire_sweep_failed", "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleCaptchaCleanup(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_captcha_cleanup_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	if c.ClickCaptchaService == nil {
		logger.Warnw("worker_captcha_cleanup_skip_captcha_service_nil")
		return nil
	}
	if _, err := c.ClickCaptchaService.Cleanup(captchaCleanupRetention, captchaCleanupBatchLimit); err != nil {
		logger.Warnw("worker_captcha_cleanup_failed", "error", err)
		return err
	}
	return nil
}
