package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"
	"github.com/tianyuan-next/internal/upstream"

	"gorm.io/gorm"
)

// UpstreamCaller 上游接口调用,便于测试替换真实上游。
type UpstreamCaller func(ctx context.Context, cfg *upstream.Config, apiCode string, params map[string]interface{}) (*upstream.QueryResult, error)

// FulfillmentService 查询交付服务,负责支付完成后的上游查询执行与结果落库
type FulfillmentService struct {
	orderRepo          repository.OrderRepository
	resultRepo         repository.QueryResultRepository
	queryConfigRepo    repository.QueryConfigRepository
	apiConfigRepo      repository.ApiConfigRepository
	letterRepo         repository.AuthorizationLetterRepository
	externalConfigRepo repository.ExternalApiConfigRepository
	callUpstream       UpstreamCaller

	// 结果静态加密密钥(32 位十六进制),为空时明文存储
	resultEncryptionKey string
	companyName         string
}

// NewFulfillmentService 创建查询交付服务
func NewFulfillmentService(
	orderRepo repository.OrderRepository,
	resultRepo repository.QueryResultRepository,
	queryConfigRepo repository.QueryConfigRepository,
	apiConfigRepo repository.ApiConfigRepository,
	letterRepo repository.AuthorizationLetterRepository,
	externalConfigRepo repository.ExternalApiConfigRepository,
	resultEncryptionKey string,
) *FulfillmentService {
	return &FulfillmentService{
		orderRepo:           orderRepo,
		resultRepo:          resultRepo,
		queryConfigRepo:     queryConfigRepo,
		apiConfigRepo:       apiConfigRepo,
		letterRepo:          letterRepo,
		externalConfigRepo:  externalConfigRepo,
		callUpstream:        upstream.QueryByAPICode,
		resultEncryptionKey: resultEncryptionKey,
		companyName:         "贵公司",
	}
}

// SetUpstreamCaller 覆盖上游调用,仅测试使用
func (s *FulfillmentService) SetUpstreamCaller(caller UpstreamCaller) {
	if caller != nil {
		s.callUpstream = caller
	}
}

// SetCompanyName 设置授权书落款的公司名称
func (s *FulfillmentService) SetCompanyName(name string) {
	if name != "" {
		s.companyName = name
	}
}

// TriggerQuery 将已支付订单转入查询中并同步执行查询任务。
// 状态转换或结果记录创建失败时返回错误,由调用方回滚订单状态;
// 查询执行本身的失败在 ExecuteQueryTask 内落为终态,不再向上传播。
func (s *FulfillmentService) TriggerQuery(ctx context.Context, orderID uint) error {
	var resultID uint
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.Status != constants.OrderStatusPaid {
			return ErrOrderStateInvalid
		}

		now := time.Now()
		if err := orderRepo.Updates(order.ID, map[string]interface{}{
			"status":           constants.OrderStatusQuerying,
			"query_start_time": now,
		}); err != nil {
			return err
		}

		result := &models.QueryResult{
			OrderID:   order.ID,
			UserID:    order.UserID,
			AgentID:   order.AgentID,
			Status:    constants.QueryResultStatusProcessing,
			ExpiresAt: now.AddDate(0, 0, models.ResultRetentionDays),
		}
		if err := s.resultRepo.WithTx(tx).Create(result); err != nil {
			return err
		}
		resultID = result.ID
		return nil
	})
	if err != nil {
		return err
	}

	logger.Infow("query_triggered", "order_id", orderID, "query_result_id", resultID)
	s.ExecuteQueryTask(ctx, orderID, resultID)
	return nil
}

// ExecuteQueryTask 执行上游查询并写入结果。
// 任何失败路径都把订单与结果落为失败终态,绝不停留在查询中。
func (s *FulfillmentService) ExecuteQueryTask(ctx context.Context, orderID, resultID uint) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil || order == nil {
		logger.Errorw("query_order_load_failed", "order_id", orderID, "error", err)
		s.failTerminal(orderID, resultID, "订单加载失败")
		return
	}
	if order.Status != constants.OrderStatusQuerying {
		logger.Warnw("query_order_status_invalid",
			"order_id", orderID,
			"status", order.Status)
		return
	}

	params, err := LoadQueryParams(ctx, order.OrderNo)
	if err != nil || params == nil {
		s.failTerminal(orderID, resultID, "查询参数不存在,请重新创建订单")
		return
	}
	if params.Name == "" || params.IDCard == "" {
		s.failTerminal(orderID, resultID, "查询参数不完整:姓名和身份证号不能为空")
		return
	}

	// 个人类查询生成授权书,失败只记录不阻断查询
	if params.QueryCategory != "" {
		if err := s.generateAuthorizationLetter(order, params); err != nil {
			logger.Warnw("authorization_letter_failed",
				"order_no", order.OrderNo,
				"error", err)
		}
	}

	if order.QueryConfigID == nil {
		s.failTerminal(orderID, resultID, "查询配置不存在")
		return
	}
	queryConfig, err := s.queryConfigRepo.GetByID(*order.QueryConfigID)
	if err != nil || queryConfig == nil {
		s.failTerminal(orderID, resultID, "查询配置不存在")
		return
	}

	upstreamCfg, err := s.loadUpstreamConfig(order)
	if err != nil {
		s.failTerminal(orderID, resultID, "上游接口配置缺失")
		return
	}

	apiConfigs, err := s.apiConfigRepo.ListByIDs([]uint(queryConfig.APICombination))
	if err != nil {
		s.failTerminal(orderID, resultID, "接口配置加载失败")
		return
	}

	allResults := make([]map[string]interface{}, 0, len(apiConfigs))
	successCount := 0
	for i := range apiConfigs {
		apiConfig := &apiConfigs[i]
		if !apiConfig.IsActive {
			logger.Warnw("query_api_inactive",
				"order_no", order.OrderNo,
				"api_code", apiConfig.APICode)
			continue
		}

		apiParams := buildAPIParams(apiConfig, params.Name, params.IDCard, params.Phone)
		entry := map[string]interface{}{
			"api_name":  apiConfig.APIName,
			"api_code":  apiConfig.APICode,
			"call_time": time.Now().Format(time.RFC3339),
		}
		result, err := s.callUpstream(ctx, upstreamCfg, apiConfig.APICode, apiParams)
		if err != nil {
			entry["success"] = false
			entry["message"] = fmt.Sprintf("接口调用失败: %v", err)
			entry["data"] = nil
			logger.Warnw("query_api_failed",
				"order_no", order.OrderNo,
				"api_code", apiConfig.APICode,
				"error", err)
		} else {
			entry["success"] = true
			entry["message"] = result.Message
			entry["data"] = result.Data
			successCount++
		}
		allResults = append(allResults, entry)
	}

	DeleteQueryParams(ctx, order.OrderNo)

	if len(allResults) == 0 {
		s.failTerminal(orderID, resultID, "没有可用的接口配置")
		return
	}
	if successCount == 0 {
		if ctx.Err() != nil {
			s.failWithStatus(orderID, resultID, constants.QueryResultStatusTimeout, "上游接口查询超时")
			return
		}
		s.failTerminal(orderID, resultID, "所有接口调用均失败")
		return
	}

	payload := map[string]interface{}{
		"query_type":     params.QueryType,
		"query_category": params.QueryCategory,
		"api_results":    allResults,
		"success_count":  successCount,
		"total_count":    len(allResults),
		"query_time":     time.Now().Format(time.RFC3339),
		"order_no":       order.OrderNo,
		"user_info": map[string]interface{}{
			"name":    maskName(params.Name),
			"id_card": maskIDCard(params.IDCard),
			"phone":   maskPhone(params.Phone),
		},
	}
	if err := s.storeResult(order, resultID, payload); err != nil {
		logger.Errorw("query_result_store_failed",
			"order_no", order.OrderNo,
			"error", err)
		s.failTerminal(orderID, resultID, "查询结果存储失败")
		return
	}

	logger.Infow("query_completed",
		"order_no", order.OrderNo,
		"success_count", successCount,
		"total_count", len(allResults))
}

func (s *FulfillmentService) storeResult(order *models.Order, resultID uint, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	stored := string(data)
	if s.resultEncryptionKey != "" {
		encrypted, err := upstream.Encrypt(s.resultEncryptionKey, data)
		if err != nil {
			return err
		}
		stored = encrypted
	}
	sum := md5.Sum(data)

	now := time.Now()
	return models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.resultRepo.WithTx(tx).Updates(resultID, map[string]interface{}{
			"encrypted_result_data": stored,
			"result_hash":           hex.EncodeToString(sum[:]),
			"status":                constants.QueryResultStatusSuccess,
			"completed_time":        now,
		}); err != nil {
			return err
		}
		return s.orderRepo.WithTx(tx).Updates(order.ID, map[string]interface{}{
			"status":              constants.OrderStatusCompleted,
			"query_complete_time": now,
		})
	})
}

func (s *FulfillmentService) failTerminal(orderID, resultID uint, message string) {
	s.failWithStatus(orderID, resultID, constants.QueryResultStatusFailed, message)
}

func (s *FulfillmentService) failWithStatus(orderID, resultID uint, status, message string) {
	now := time.Now()
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		if resultID != 0 {
			if err := s.resultRepo.WithTx(tx).Updates(resultID, map[string]interface{}{
				"status":         status,
				"error_message":  message,
				"completed_time": now,
			}); err != nil {
				return err
			}
		}
		return s.orderRepo.WithTx(tx).UpdateStatus(orderID, constants.OrderStatusFailed, nil)
	})
	if err != nil {
		logger.Errorw("query_fail_state_write_failed",
			"order_id", orderID,
			"error", err)
		return
	}
	logger.Warnw("query_failed", "order_id", orderID, "reason", message)
}

func (s *FulfillmentService) loadUpstreamConfig(order *models.Order) (*upstream.Config, error) {
	ownerID, ownerType := orderOwner(order)
	cfg, err := s.externalConfigRepo.GetActiveWithFallback(models.ExternalConfigTianyuan, ownerID, ownerType)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrUpstreamConfigMissing
	}
	return upstream.ParseConfig(cfg.Credentials)
}

func (s *FulfillmentService) generateAuthorizationLetter(order *models.Order, params *QueryParams) error {
	content := fmt.Sprintf(
		"授权书\n\n本人 %s(身份证号:%s)自愿授权 %s 于 %s 通过合法渠道查询本人相关数据信息,查询结果仅用于本人知悉。\n",
		params.Name, params.IDCard, s.companyName, time.Now().Format("2006年01月02日"))
	sum := md5.Sum([]byte(content))

	letter := &models.AuthorizationLetter{
		UserID:               order.UserID,
		AgentID:              order.AgentID,
		MaskedName:           maskName(params.Name),
		MaskedIDCard:         maskIDCard(params.IDCard),
		AuthorizationContent: content,
		DownloadToken:        models.GenerateDownloadToken(order.UserID),
		FileHash:             hex.EncodeToString(sum[:]),
		IsValid:              true,
	}
	if err := s.letterRepo.Create(letter); err != nil {
		return err
	}
	logger.Infow("authorization_letter_created",
		"order_no", order.OrderNo,
		"letter_id", letter.ID)
	return nil
}

// buildAPIParams 按接口参数配置构建上游请求参数,配置缺失时回落到内置参数表
func buildAPIParams(apiConfig *models.ApiConfig, name, idCard, phone string) map[string]interface{} {
	if len(apiConfig.ParamConfig) == 0 {
		return buildFallbackParams(apiConfig.APICode, name, idCard, phone)
	}

	mapping := apiConfig.ParamMapping()
	defaults := apiConfig.DefaultValues()
	params := map[string]interface{}{}

	for _, paramName := range apiConfig.RequiredParams() {
		mapped := paramName
		if v, ok := mapping[paramName]; ok {
			mapped = v
		}
		if value := paramValue(paramName, name, idCard, phone); value != "" {
			params[mapped] = value
		}
	}
	for _, paramName := range apiConfig.OptionalParams() {
		mapped := paramName
		if v, ok := mapping[paramName]; ok {
			mapped = v
		}
		value := paramValue(paramName, name, idCard, phone)
		if value == "" {
			if d, ok := defaults[paramName].(string); ok {
				value = d
			}
		}
		if value != "" {
			params[mapped] = value
		}
	}
	if len(params) == 0 {
		return buildFallbackParams(apiConfig.APICode, name, idCard, phone)
	}
	return params
}

func paramValue(paramName, name, idCard, phone string) string {
	switch paramName {
	case "name":
		return name
	case "id_card":
		return idCard
	case "mobile_no", "phone", "mobile":
		return phone
	case "ent_name":
		return name
	case "auth_date":
		return authDateRange(time.Now())
	default:
		return ""
	}
}

func buildFallbackParams(apiCode, name, idCard, phone string) map[string]interface{} {
	switch apiCode {
	case constants.APICodeLoanBehavior:
		return map[string]interface{}{
			"name":        name,
			"id_card":     idCard,
			"auth_date":   authDateRange(time.Now()),
			"description": "个人司法涉诉(详版)",
		}
	case constants.APICodeEnterprise:
		return map[string]interface{}{
			"ent_name":    name,
			"description": "企业综合涉诉查询",
		}
	case constants.APICodeMarriage:
		return map[string]interface{}{
			"name":        name,
			"id_card":     idCard,
			"description": "婚姻状况查询",
		}
	case constants.APICodeLoanIntent:
		return map[string]interface{}{
			"name":        name,
			"id_card":     idCard,
			"mobile_no":   phone,
			"description": "借贷行为验证查询",
		}
	default:
		params := map[string]interface{}{
			"name":        name,
			"id_card":     idCard,
			"description": "风险报告查询",
		}
		if phone != "" {
			params["mobile_no"] = phone
		}
		return params
	}
}

// authDateRange 授权日期范围,当前日期前后三天
func authDateRange(now time.Time) string {
	start := now.AddDate(0, 0, -3)
	end := now.AddDate(0, 0, 3)
	return start.Format("20060102") + "-" + end.Format("20060102")
}

func maskName(name string) string {
	runes := []rune(name)
	switch {
	case len(runes) == 0:
		return name
	case len(runes) == 2:
		return string(runes[0]) + "*"
	case len(runes) >= 3:
		masked := make([]rune, 0, len(runes))
		masked = append(masked, runes[0])
		for i := 1; i < len(runes)-1; i++ {
			masked = append(masked, '*')
		}
		masked = append(masked, runes[len(runes)-1])
		return string(masked)
	default:
		return name
	}
}

func maskIDCard(idCard string) string {
	if idCard == "" {
		return idCard
	}
	if len(idCard) < 6 {
		return stars(len(idCard))
	}
	return idCard[:6] + stars(len(idCard)-6)
}

func maskPhone(phone string) string {
	if phone == "" {
		return phone
	}
	if len(phone) < 7 {
		return stars(len(phone))
	}
	return phone[:3] + stars(len(phone)-6) + phone[len(phone)-3:]
}

func stars(n int) string {
	s := make([]byte, n)
	for i := range s {
		s[i] = '*'
	}
	return string(s)
}
