package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type stubIdentityVerifier struct {
	match bool
	err   error
}

func (v *stubIdentityVerifier) VerifyTwoFactor(ctx context.Context, name, idCard string) (bool, error) {
	return v.match, v.err
}

func (v *stubIdentityVerifier) VerifyThreeFactor(ctx context.Context, name, idCard, mobile string) (bool, error) {
	return v.match, v.err
}

type stubSmsVerifier struct {
	err error
}

func (v *stubSmsVerifier) VerifyCode(phone, code string) error {
	return v.err
}

func setupOrderServiceTest(t *testing.T, verifier IdentityVerifier, smsVerifier SmsCodeVerifier) (*OrderService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:order_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.QueryConfig{}, &models.AgentUser{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	svc := NewOrderService(
		repository.NewOrderRepository(db),
		repository.NewQueryConfigRepository(db),
		repository.NewAgentUserRepository(db),
		verifier,
		smsVerifier,
	)
	return svc, db
}

func createOrderTestConfig(t *testing.T, db *gorm.DB, name, category, price string, ownerID uint, ownerType string) models.QueryConfig {
	t.Helper()
	config := models.QueryConfig{
		ConfigName:     name,
		Category:       category,
		CustomerPrice:  mustMoney(t, price),
		APICombination: models.IntArray{1},
		OwnerID:        ownerID,
		OwnerType:      ownerType,
		IsActive:       true,
	}
	if err := db.Create(&config).Error; err != nil {
		t.Fatalf("create query config failed: %v", err)
	}
	return config
}

func createOrderTestAgent(t *testing.T, db *gorm.DB, suffix, personalPrice, enterprisePrice string) models.AgentUser {
	t.Helper()
	agent := models.AgentUser{
		Username:                fmt.Sprintf("agent-%s", suffix),
		PasswordHash:            "x",
		DomainSuffix:            suffix,
		PersonalQueryPrice:      mustMoney(t, personalPrice),
		EnterpriseQueryMinPrice: mustMoney(t, enterprisePrice),
	}
	if err := db.Create(&agent).Error; err != nil {
		t.Fatalf("create agent failed: %v", err)
	}
	return agent
}

func TestCreateQueryOrderEnterprise(t *testing.T) {
	svc, db := setupOrderServiceTest(t, &stubIdentityVerifier{match: true}, &stubSmsVerifier{})
	createOrderTestConfig(t, db, "企业综合报告", "", "199.00", 1, constants.OwnerTypeAdmin)

	order, err := svc.CreateQueryOrder(context.Background(), CreateQueryOrderInput{
		UserID:    10,
		QueryType: "企业综合报告",
		Name:      "张三",
		IDCard:    "110101199003070000",
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.Status != constants.OrderStatusPending {
		t.Fatalf("expected pending status, got %s", order.Status)
	}
	if order.Amount.String() != "199.00" {
		t.Fatalf("expected amount 199.00, got %s", order.Amount.String())
	}
	if order.AgentID != nil {
		t.Fatalf("direct order should not carry agent id")
	}
	if order.AgentCommission.String() != "0.00" {
		t.Fatalf("direct order commission should be zero, got %s", order.AgentCommission.String())
	}

	params, err := LoadQueryParams(context.Background(), order.OrderNo)
	if err != nil {
		t.Fatalf("load query params failed: %v", err)
	}
	if params == nil || params.Name != "张三" || params.IDCard != "110101199003070000" {
		t.Fatalf("query params not registered: %+v", params)
	}
}

func TestCreateQueryOrderAgentCommissionSnapshot(t *testing.T) {
	svc, db := setupOrderServiceTest(t, &stubIdentityVerifier{match: true}, &stubSmsVerifier{})
	agent := createOrderTestAgent(t, db, "snap", "10.00", "50.00")
	createOrderTestConfig(t, db, "个人二要素", constants.QueryCategoryTwoFactor, "25.00", agent.ID, constants.OwnerTypeAgent)

	order, err := svc.CreateQueryOrder(context.Background(), CreateQueryOrderInput{
		UserID:    11,
		QueryType: "个人二要素",
		AgentTag:  "snap",
		Name:      "李四",
		IDCard:    "110101199003070001",
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.AgentID == nil || *order.AgentID != agent.ID {
		t.Fatalf("order should carry agent id %d, got %v", agent.ID, order.AgentID)
	}
	// 佣金 = 客户价 25.00 - 个人底价 10.00
	if order.AgentCommission.String() != "15.00" {
		t.Fatalf("expected commission 15.00, got %s", order.AgentCommission.String())
	}
}

func TestCreateQueryOrderCommissionNeverNegative(t *testing.T) {
	svc, db := setupOrderServiceTest(t, &stubIdentityVerifier{match: true}, &stubSmsVerifier{})
	agent := createOrderTestAgent(t, db, "floor", "30.00", "50.00")
	createOrderTestConfig(t, db, "低价二要素", constants.QueryCategoryTwoFactor, "25.00", agent.ID, constants.OwnerTypeAgent)

	order, err := svc.CreateQueryOrder(context.Background(), CreateQueryOrderInput{
		UserID:    12,
		QueryType: "低价二要素",
		AgentTag:  "floor",
		Name:      "王五",
		IDCard:    "110101199003070002",
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.AgentCommission.String() != "0.00" {
		t.Fatalf("commission should clamp to 0.00, got %s", order.AgentCommission.String())
	}
}

func TestCreateQueryOrderTwoFactorMismatch(t *testing.T) {
	svc, db := setupOrderServiceTest(t, &stubIdentityVerifier{match: false}, &stubSmsVerifier{})
	createOrderTestConfig(t, db, "个人二要素", constants.QueryCategoryTwoFactor, "25.00", 1, constants.OwnerTypeAdmin)

	_, err := svc.CreateQueryOrder(context.Background(), CreateQueryOrderInput{
		UserID:    13,
		QueryType: "个人二要素",
		Name:      "赵六",
		IDCard:    "110101199003070003",
	})
	if !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("expected ErrIdentityMismatch, got %v", err)
	}
}

func TestCreateQueryOrderThreeFactorNeedsSmsCode(t *testing.T) {
	svc, db := setupOrderServiceTest(t, &stubIdentityVerifier{match: true}, &stubSmsVerifier{err: ErrSmsCodeInvalid})
	createOrderTestConfig(t, db, "个人三要素", constants.QueryCategoryThreeFactor, "39.00", 1, constants.OwnerTypeAdmin)

	_, err := svc.CreateQueryOrder(context.Background(), CreateQueryOrderInput{
		UserID:    14,
		QueryType: "个人三要素",
		Name:      "孙七",
		IDCard:    "110101199003070004",
	})
	if !errors.Is(err, ErrParamMissing) {
		t.Fatalf("missing phone/sms code should fail with ErrParamMissing, got %v", err)
	}

	_, err = svc.CreateQueryOrder(context.Background(), CreateQueryOrderInput{
		UserID:    14,
		QueryType: "个人三要素",
		Name:      "孙七",
		IDCard:    "110101199003070004",
		Phone:     "13800138000",
		SmsCode:   "123456",
	})
	if !errors.Is(err, ErrSmsCodeInvalid) {
		t.Fatalf("invalid sms code should propagate, got %v", err)
	}
}

func TestCreateQueryOrderUnknownConfig(t *testing.T) {
	svc, _ := setupOrderServiceTest(t, &stubIdentityVerifier{match: true}, &stubSmsVerifier{})

	_, err := svc.CreateQueryOrder(context.Background(), CreateQueryOrderInput{
		UserID:    15,
		QueryType: "不存在的产品",
		Name:      "周八",
		IDCard:    "110101199003070005",
	})
	if !errors.Is(err, ErrQueryConfigNotFound) {
		t.Fatalf("expected ErrQueryConfigNotFound, got %v", err)
	}
}

func TestCancelOrder(t *testing.T) {
	svc, db := setupOrderServiceTest(t, &stubIdentityVerifier{match: true}, &stubSmsVerifier{})
	createOrderTestConfig(t, db, "企业综合报告", "", "199.00", 1, constants.OwnerTypeAdmin)

	order, err := svc.CreateQueryOrder(context.Background(), CreateQueryOrderInput{
		UserID:    20,
		QueryType: "企业综合报告",
		Name:      "张三",
		IDCard:    "110101199003070000",
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	// 他人无法取消
	if err := svc.CancelOrder(21, order.OrderNo); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("cancel by other user should fail with ErrOrderNotFound, got %v", err)
	}

	if err := svc.CancelOrder(20, order.OrderNo); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	reloaded, err := svc.GetUserOrder(20, order.OrderNo)
	if err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if reloaded.Status != constants.OrderStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", reloaded.Status)
	}

	// 已取消订单不可重复取消
	if err := svc.CancelOrder(20, order.OrderNo); !errors.Is(err, ErrOrderStateInvalid) {
		t.Fatalf("cancel cancelled order should fail with ErrOrderStateInvalid, got %v", err)
	}
}
