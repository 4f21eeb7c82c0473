package service

import (
	"context"
	"sync"
	"time"

	"github.com/tianyuan-next/internal/cache"
)

// QueryParams 下单时登记的查询要素,支付成功后由履约流程消费。
// 明文要素只在此暂存,不落订单表。
type QueryParams struct {
	Name          string `json:"name"`
	IDCard        string `json:"id_card"`
	Phone         string `json:"phone"`
	QueryType     string `json:"query_type"`
	QueryCategory string `json:"query_category"`
}

const queryParamsTTL = 24 * time.Hour

// queryParamStore 订单查询参数暂存。redis 可用时走 redis,
// 否则退化为进程内存储(仅适合单实例部署)。
type queryParamStore struct {
	mu      sync.Mutex
	entries map[string]queryParamEntry
}

type queryParamEntry struct {
	params    QueryParams
	expiresAt time.Time
}

var localQueryParams = &queryParamStore{entries: map[string]queryParamEntry{}}

func queryParamsKey(orderNo string) string {
	return "query_params:" + orderNo
}

// SaveQueryParams 登记订单的查询参数
func SaveQueryParams(ctx context.Context, orderNo string, params QueryParams) error {
	if cache.Enabled() {
		return cache.SetJSON(ctx, queryParamsKey(orderNo), params, queryParamsTTL)
	}
	localQueryParams.mu.Lock()
	defer localQueryParams.mu.Unlock()
	localQueryParams.entries[orderNo] = queryParamEntry{
		params:    params,
		expiresAt: time.Now().Add(queryParamsTTL),
	}
	return nil
}

// LoadQueryParams 读取订单的查询参数,不存在或已过期返回 (nil, nil)
func LoadQueryParams(ctx context.Context, orderNo string) (*QueryParams, error) {
	if cache.Enabled() {
		var params QueryParams
		found, err := cache.GetJSON(ctx, queryParamsKey(orderNo), &params)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		return &params, nil
	}
	localQueryParams.mu.Lock()
	defer localQueryParams.mu.Unlock()
	entry, ok := localQueryParams.entries[orderNo]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(localQueryParams.entries, orderNo)
		return nil, nil
	}
	params := entry.params
	return &params, nil
}

// DeleteQueryParams 履约完成后清理查询参数
func DeleteQueryParams(ctx context.Context, orderNo string) error {
	if cache.Enabled() {
		return cache.Del(ctx, queryParamsKey(orderNo))
	}
	localQueryParams.mu.Lock()
	defer localQueryParams.mu.Unlock()
	delete(localQueryParams.entries, orderNo)
	return nil
}
