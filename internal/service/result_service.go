package service

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"
	"github.com/tianyuan-next/internal/upstream"
)

// ResultService 查询结果与授权书展示服务
type ResultService struct {
	orderRepo           repository.OrderRepository
	resultRepo          repository.QueryResultRepository
	letterRepo          repository.AuthorizationLetterRepository
	resultEncryptionKey string
}

// NewResultService 创建查询结果服务。
// resultEncryptionKey 与结果落库时使用的密钥一致,为空表示结果明文存储。
func NewResultService(orderRepo repository.OrderRepository, resultRepo repository.QueryResultRepository, letterRepo repository.AuthorizationLetterRepository, resultEncryptionKey string) *ResultService {
	return &ResultService{
		orderRepo:           orderRepo,
		resultRepo:          resultRepo,
		letterRepo:          letterRepo,
		resultEncryptionKey: resultEncryptionKey,
	}
}

// QueryResultView 结果详情
type QueryResultView struct {
	OrderNo       string                 `json:"order_no"`
	Status        string                 `json:"status"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	Result        map[string]interface{} `json:"result,omitempty"`
	CompletedTime *time.Time             `json:"completed_time,omitempty"`
	ExpiresAt     time.Time              `json:"expires_at"`
}

// GetResultByOrderNo 查看订单的查询结果。
// 结果过期后仅返回状态,不再返回明文内容;userID 非 0 时校验归属。
func (s *ResultService) GetResultByOrderNo(orderNo string, userID uint) (*QueryResultView, error) {
	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if userID != 0 && order.UserID != userID {
		return nil, ErrResultNotFound
	}

	result, err := s.resultRepo.GetByOrderID(order.ID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrResultNotFound
	}

	view := &QueryResultView{
		OrderNo:       order.OrderNo,
		Status:        result.Status,
		ErrorMessage:  result.ErrorMessage,
		CompletedTime: result.CompletedTime,
		ExpiresAt:     result.ExpiresAt,
	}
	if result.Status != constants.QueryResultStatusSuccess {
		return view, nil
	}
	if result.IsResultExpired(time.Now()) {
		return nil, ErrResultExpired
	}

	payload, err := s.decodeResult(result)
	if err != nil {
		logger.Errorw("result_decode_failed", "order_no", order.OrderNo, "error", err)
		return nil, err
	}
	view.Result = payload
	return view, nil
}

// ListHistory 用户查询历史
func (s *ResultService) ListHistory(userID uint, page, pageSize int) ([]models.QueryResult, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.resultRepo.ListByUser(userID, page, pageSize)
}

// GetLetterByToken 按下载令牌取授权书
func (s *ResultService) GetLetterByToken(token string) (*models.AuthorizationLetter, error) {
	if token == "" {
		return nil, ErrLetterNotFound
	}
	letter, err := s.letterRepo.GetByDownloadToken(token)
	if err != nil {
		return nil, err
	}
	if letter == nil || !letter.IsValid {
		return nil, ErrLetterNotFound
	}
	// 下载前校验正文未被篡改
	sum := md5.Sum([]byte(letter.AuthorizationContent))
	if letter.FileHash != "" && hex.EncodeToString(sum[:]) != letter.FileHash {
		logger.Errorw("letter_hash_mismatch", "letter_id", letter.ID)
		return nil, ErrLetterNotFound
	}
	return letter, nil
}

// ExecuteResultExpireSweep 将到期结果标记过期并清空密文,由定时任务调用
func (s *ResultService) ExecuteResultExpireSweep(limit int) (int64, error) {
	now := time.Now()
	expirable, err := s.resultRepo.ListExpirable(now, limit)
	if err != nil {
		return 0, err
	}
	if len(expirable) == 0 {
		return 0, nil
	}
	ids := make([]uint, 0, len(expirable))
	for _, result := range expirable {
		ids = append(ids, result.ID)
	}
	swept, err := s.resultRepo.MarkExpired(ids)
	if err != nil {
		return 0, err
	}
	logger.Infow("result_expire_sweep", "swept", swept)
	return swept, nil
}

func (s *ResultService) decodeResult(result *models.QueryResult) (map[string]interface{}, error) {
	raw := []byte(result.EncryptedResultData)
	if s.resultEncryptionKey != "" {
		plain, err := upstream.Decrypt(s.resultEncryptionKey, result.EncryptedResultData)
		if err != nil {
			return nil, err
		}
		raw = plain
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
