package worker

import (
	"context"
	"testing"

	"github.com/tianyuan-next/internal/provider"
	"github.com/tianyuan-next/internal/queue"

	"github.com/hibiken/asynq"
)

func newTestConsumer() *Consumer {
	return NewConsumer(&provider.Container{})
}

func TestHandleRefundReconcileInvalidJSON(t *testing.T) {
	c := newTestConsumer()
	task := asynq.NewTask(queue.TaskRefundReconcile, []byte("{not-json"))
	if err := c.handleRefundReconcile(context.Background(), task); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestHandleRefundReconcileSkipsEmptyPayload(t *testing.T) {
	c := newTestConsumer()
	task, err := queue.NewRefundReconcileTask(queue.RefundReconcilePayload{})
	if err != nil {
		t.Fatalf("创建任务失败: %v", err)
	}
	if err := c.handleRefundReconcile(context.Background(), task); err != nil {
		t.Fatalf("expected nil for empty refund payload, got %v", err)
	}
}

func TestHandlersSkipWhenServicesMissing(t *testing.T) {
	c := newTestConsumer()
	pollTask, err := queue.NewPaymentStatusPollTask(queue.PaymentStatusPollPayload{})
	if err != nil {
		t.Fatalf("创建任务失败: %v", err)
	}
	if err := c.handlePaymentStatusPoll(context.Background(), pollTask); err != nil {
		t.Fatalf("expected nil when payment service missing, got %v", err)
	}
	if err := c.handleResultExpireSweep(context.Background(), queue.NewResultExpireSweepTask()); err != nil {
		t.Fatalf("expected nil when result service missing, got %v", err)
	}
	if err := c.handleCaptchaCleanup(context.Background(), queue.NewCaptchaCleanupTask()); err != nil {
		t.Fatalf("expected nil when captcha service missing, got %v", err)
	}
}

func TestRegisterNilMuxDoesNotPanic(t *testing.T) {
	c := newTestConsumer()
	c.Register(nil)
}
