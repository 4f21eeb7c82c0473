package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/payment"
	"github.com/tianyuan-next/internal/queue"
	"github.com/tianyuan-next/internal/repository"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type fakeGateway struct {
	method       string
	createResult *payment.CreateOrderResult
	orderStatus  *payment.OrderStatus
	refundResult *payment.RefundOrderResult
	refundStatus string
	refundCalls  int
}

func (g *fakeGateway) Method() string {
	if g.method == "" {
		return constants.PaymentMethodAlipay
	}
	return g.method
}

func (g *fakeGateway) CreateOrder(_ context.Context, input payment.CreateOrderInput) (*payment.CreateOrderResult, error) {
	if g.createResult != nil {
		return g.createResult, nil
	}
	return &payment.CreateOrderResult{QRCode: "https://qr.example/" + input.OrderNo}, nil
}

func (g *fakeGateway) QueryOrderStatus(_ context.Context, orderNo string) (*payment.OrderStatus, error) {
	if g.orderStatus != nil {
		return g.orderStatus, nil
	}
	return &payment.OrderStatus{TradeStatus: constants.TradeStatusNotPaid}, nil
}

func (g *fakeGateway) RefundOrder(_ context.Context, input payment.RefundOrderInput) (*payment.RefundOrderResult, error) {
	g.refundCalls++
	if g.refundResult != nil {
		return g.refundResult, nil
	}
	return &payment.RefundOrderResult{RefundNo: input.RefundNo, Status: constants.RefundStatusProcessing}, nil
}

func (g *fakeGateway) QueryRefundStatus(_ context.Context, _, refundNo string) (string, error) {
	if g.refundStatus == "" {
		return constants.RefundStatusProcessing, nil
	}
	return g.refundStatus, nil
}

type fakeFulfillmentTrigger struct {
	db       *gorm.DB
	calls    int
	failWith error
}

func (f *fakeFulfillmentTrigger) TriggerQuery(_ context.Context, orderID uint) error {
	f.calls++
	if f.failWith != nil {
		// 模拟已转入查询中之后的失败
		if err := f.db.Model(&models.Order{}).Where("id = ?", orderID).
			Update("status", constants.OrderStatusQuerying).Error; err != nil {
			return err
		}
		return f.failWith
	}
	return nil
}

func TestProcessPaymentSuccessIdempotent(t *testing.T) {
	svc, db, _ := setupPaymentServiceTest(t)
	agent := createCommissionTestAgent(t, db, "agent-pay-idem", "0.00", "0.00", "0.00")
	order := createPaymentTestOrder(t, db, &agent.ID, constants.OrderStatusPending, "8.00")

	for i := 0; i < 3; i++ {
		if err := svc.ProcessPaymentSuccess(context.Background(), order.OrderNo, constants.PaymentMethodAlipay, "2026082822001"); err != nil {
			t.Fatalf("process payment success round %d failed: %v", i, err)
		}
	}

	reloaded := reloadPaymentTestOrder(t, db, order.ID)
	if reloaded.Status != constants.OrderStatusPaid {
		t.Fatalf("expected paid status, got %s", reloaded.Status)
	}
	if reloaded.PaymentTime == nil || reloaded.ThirdPartyTradeNo != "2026082822001" {
		t.Fatalf("expected payment meta persisted, got %+v", reloaded)
	}

	reAgent := reloadCommissionTestAgent(t, db, agent.ID)
	if reAgent.TotalCommission.String() != "3.00" || reAgent.UnsettledCommission.String() != "3.00" {
		t.Fatalf("expected commission accrued exactly once, got total=%s unsettled=%s",
			reAgent.TotalCommission.String(), reAgent.UnsettledCommission.String())
	}
	if reAgent.TotalProfit.String() != "8.00" {
		t.Fatalf("expected profit accrued exactly once, got %s", reAgent.TotalProfit.String())
	}
}

func TestProcessPaymentSuccessTriggerFailureRollsBackToPaid(t *testing.T) {
	svc, db, _ := setupPaymentServiceTest(t)
	trigger := &fakeFulfillmentTrigger{db: db, failWith: errors.New("upstream unavailable")}
	svc.SetFulfillmentTrigger(trigger)
	order := createPaymentTestOrder(t, db, nil, constants.OrderStatusPending, "5.00")

	if err := svc.ProcessPaymentSuccess(context.Background(), order.OrderNo, constants.PaymentMethodWechat, "wx-123"); err != nil {
		t.Fatalf("process payment success failed: %v", err)
	}
	if trigger.calls != 1 {
		t.Fatalf("expected trigger invoked once, got %d", trigger.calls)
	}

	reloaded := reloadPaymentTestOrder(t, db, order.ID)
	if reloaded.Status != constants.OrderStatusPaid {
		t.Fatalf("expected rollback to paid, got %s", reloaded.Status)
	}
}

func TestCreatePaymentRequiresPendingOrder(t *testing.T) {
	svc, db, _ := setupPaymentServiceTest(t)
	order := createPaymentTestOrder(t, db, nil, constants.OrderStatusCompleted, "5.00")

	_, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		OrderNo: order.OrderNo,
		Method:  constants.PaymentMethodAlipay,
	})
	if !errors.Is(err, ErrOrderStateInvalid) {
		t.Fatalf("expected ErrOrderStateInvalid, got %v", err)
	}
}

func TestCreatePaymentPersistsMethodAndProviderRef(t *testing.T) {
	svc, db, gw := setupPaymentServiceTest(t)
	gw.createResult = &payment.CreateOrderResult{QRCode: "qr-data", ThirdPartyOrderID: "prepay-778"}
	order := createPaymentTestOrder(t, db, nil, constants.OrderStatusPending, "5.00")

	result, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		OrderNo: order.OrderNo,
		Method:  constants.PaymentMethodAlipay,
	})
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	if result.QRCode != "qr-data" {
		t.Fatalf("expected qr code passthrough, got %q", result.QRCode)
	}

	reloaded := reloadPaymentTestOrder(t, db, order.ID)
	if reloaded.PaymentMethod != constants.PaymentMethodAlipay || reloaded.ThirdPartyOrderID != "prepay-778" {
		t.Fatalf("expected payment meta persisted, got method=%q provider_ref=%q",
			reloaded.PaymentMethod, reloaded.ThirdPartyOrderID)
	}
}

func TestPollPaymentStatusCompletesPaidOrder(t *testing.T) {
	svc, db, gw := setupPaymentServiceTest(t)
	gw.orderStatus = &payment.OrderStatus{TradeStatus: constants.TradeStatusPaid, TradeNo: "trade-556"}
	order := createPaymentTestOrder(t, db, nil, constants.OrderStatusPending, "5.00")
	if err := db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("payment_method", constants.PaymentMethodAlipay).Error; err != nil {
		t.Fatalf("set payment method failed: %v", err)
	}

	result, err := svc.PollPaymentStatus(context.Background(), order.OrderNo)
	if err != nil {
		t.Fatalf("poll payment status failed: %v", err)
	}
	if !result.Paid || result.Status != constants.OrderStatusPaid {
		t.Fatalf("expected paid result, got %+v", result)
	}

	reloaded := reloadPaymentTestOrder(t, db, order.ID)
	if reloaded.ThirdPartyTradeNo != "trade-556" {
		t.Fatalf("expected trade no persisted, got %q", reloaded.ThirdPartyTradeNo)
	}
}

func TestRefundOrderImmediateSuccessReversesCommission(t *testing.T) {
	svc, db, gw := setupPaymentServiceTest(t)
	agent := createCommissionTestAgent(t, db, "agent-refund-now", "3.00", "3.00", "0.00")
	order := createPaymentTestOrder(t, db, &agent.ID, constants.OrderStatusPaid, "8.00")
	if err := db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("payment_method", constants.PaymentMethodAlipay).Error; err != nil {
		t.Fatalf("set payment method failed: %v", err)
	}
	gw.refundResult = &payment.RefundOrderResult{Status: constants.RefundStatusSuccess}

	result, err := svc.RefundOrder(context.Background(), order.OrderNo, "客户申请")
	if err != nil {
		t.Fatalf("refund order failed: %v", err)
	}
	if result.Status != constants.RefundStatusSuccess {
		t.Fatalf("expected success status, got %s", result.Status)
	}

	reloaded := reloadPaymentTestOrder(t, db, order.ID)
	if reloaded.Status != constants.OrderStatusRefunded || reloaded.RefundTime == nil {
		t.Fatalf("expected refunded order, got %+v", reloaded)
	}

	reAgent := reloadCommissionTestAgent(t, db, agent.ID)
	if reAgent.TotalCommission.String() != "0.00" || reAgent.UnsettledCommission.String() != "0.00" {
		t.Fatalf("expected commission reversed, got total=%s unsettled=%s",
			reAgent.TotalCommission.String(), reAgent.UnsettledCommission.String())
	}
}

func TestRefundOrderProcessingPersistsRefundNo(t *testing.T) {
	svc, db, gw := setupPaymentServiceTest(t)
	order := createPaymentTestOrder(t, db, nil, constants.OrderStatusPaid, "8.00")
	if err := db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("payment_method", constants.PaymentMethodAlipay).Error; err != nil {
		t.Fatalf("set payment method failed: %v", err)
	}

	result, err := svc.RefundOrder(context.Background(), order.OrderNo, "")
	if err != nil {
		t.Fatalf("refund order failed: %v", err)
	}
	if result.Status != constants.RefundStatusProcessing {
		t.Fatalf("expected processing status, got %s", result.Status)
	}
	if !strings.HasPrefix(result.RefundNo, "refund_"+order.OrderNo+"_") {
		t.Fatalf("unexpected refund no %q", result.RefundNo)
	}

	reloaded := reloadPaymentTestOrder(t, db, order.ID)
	if reloaded.Status != constants.OrderStatusPaid || reloaded.RefundNo != result.RefundNo {
		t.Fatalf("expected paid order with pending refund no, got status=%s refund_no=%q",
			reloaded.Status, reloaded.RefundNo)
	}

	// 已有在途退款时不重复向渠道发起
	again, err := svc.RefundOrder(context.Background(), order.OrderNo, "")
	if err != nil {
		t.Fatalf("second refund call failed: %v", err)
	}
	if again.RefundNo != result.RefundNo || gw.refundCalls != 1 {
		t.Fatalf("expected single gateway refund call, got calls=%d refund_no=%q", gw.refundCalls, again.RefundNo)
	}
}

func TestReconcileRefund(t *testing.T) {
	svc, db, gw := setupPaymentServiceTest(t)
	agent := createCommissionTestAgent(t, db, "agent-reconcile", "3.00", "3.00", "0.00")
	order := createPaymentTestOrder(t, db, &agent.ID, constants.OrderStatusPaid, "8.00")
	if err := db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("payment_method", constants.PaymentMethodAlipay).Error; err != nil {
		t.Fatalf("set payment method failed: %v", err)
	}
	refundNo := "refund_" + order.OrderNo + "_1760000000"

	if err := svc.ReconcileRefund(context.Background(), order.OrderNo, refundNo); !errors.Is(err, ErrRefundStillProcessing) {
		t.Fatalf("expected ErrRefundStillProcessing, got %v", err)
	}

	gw.refundStatus = constants.RefundStatusSuccess
	if err := svc.ReconcileRefund(context.Background(), order.OrderNo, refundNo); err != nil {
		t.Fatalf("reconcile refund failed: %v", err)
	}

	reloaded := reloadPaymentTestOrder(t, db, order.ID)
	if reloaded.Status != constants.OrderStatusRefunded || reloaded.RefundNo != refundNo {
		t.Fatalf("expected refunded order, got status=%s refund_no=%q", reloaded.Status, reloaded.RefundNo)
	}
	reAgent := reloadCommissionTestAgent(t, db, agent.ID)
	if reAgent.UnsettledCommission.String() != "0.00" {
		t.Fatalf("expected commission reversed, got %s", reAgent.UnsettledCommission.String())
	}

	// 已退款订单的重复对账直接成功
	if err := svc.ReconcileRefund(context.Background(), order.OrderNo, refundNo); err != nil {
		t.Fatalf("repeat reconcile failed: %v", err)
	}
}

func setupPaymentServiceTest(t *testing.T) (*PaymentService, *gorm.DB, *fakeGateway) {
	t.Helper()

	dsn := fmt.Sprintf("file:payment_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.QueryResult{}, &models.AgentUser{},
		&models.CommissionWithdrawal{}, &models.ExternalApiConfig{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	commissionSvc := NewCommissionService(
		repository.NewAgentUserRepository(db),
		repository.NewCommissionWithdrawalRepository(db),
	)
	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}

	gw := &fakeGateway{}
	svc := NewPaymentService(
		repository.NewOrderRepository(db),
		repository.NewQueryResultRepository(db),
		repository.NewExternalApiConfigRepository(db),
		commissionSvc,
		&fakeFulfillmentTrigger{db: db},
		queueClient,
	)
	svc.SetGatewayResolver(func(method string, ownerID uint, ownerType string) (payment.Gateway, error) {
		return gw, nil
	})
	return svc, db, gw
}

func createPaymentTestOrder(t *testing.T, db *gorm.DB, agentID *uint, status, amount string) models.Order {
	t.Helper()

	row := models.Order{
		OrderNo:         models.GenerateOrderNo(),
		UserID:          1,
		AgentID:         agentID,
		QueryType:       "个人风险查询",
		Amount:          mustMoney(t, amount),
		Status:          status,
		AgentCommission: mustMoney(t, "3.00"),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return row
}

func reloadPaymentTestOrder(t *testing.T, db *gorm.DB, id uint) models.Order {
	t.Helper()

	var row models.Order
	if err := db.First(&row, id).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	return row
}
