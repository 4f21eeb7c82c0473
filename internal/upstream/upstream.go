// Package upstream 封装数据源开放平台的加密调用协议:
// 请求体 AES-128-CBC 加密后 Base64 编码,随机 IV 置于密文首部,
// 响应体以同一密钥解密。
package upstream

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrConfigInvalid 数据源配置无效。
	ErrConfigInvalid = errors.New("upstream: config invalid")
	// ErrRequestFailed 请求发送失败。
	ErrRequestFailed = errors.New("upstream: request failed")
	// ErrResponseInvalid 响应格式无效或业务码非零。
	ErrResponseInvalid = errors.New("upstream: response invalid")
	// ErrCryptoFailed 加解密失败。
	ErrCryptoFailed = errors.New("upstream: crypto failed")
)

const (
	defaultBaseURL = "https://api.tianyuanapi.com"
	defaultTimeout = 30 * time.Second
)

// Config 数据源接入配置,EncryptionKey 为 16 进制编码的 AES-128 密钥。
type Config struct {
	AccessID      string `json:"access_id"`
	EncryptionKey string `json:"encryption_key"`
	AppID         string `json:"app_id"`
	AppSecret     string `json:"app_secret"`
	BaseURL       string `json:"base_url"`
}

// QueryResult 动态查询返回。
type QueryResult struct {
	Data    map[string]interface{}
	Message string
}

// VerifyResult 要素核验返回,Match 表示要素一致。
type VerifyResult struct {
	Match bool
	Data  map[string]interface{}
}

// ParseConfig 解析配置。access_id/encryption_key 缺省时回落到 app_id/app_secret。
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty config", ErrConfigInvalid)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal config failed", ErrConfigInvalid)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config failed", ErrConfigInvalid)
	}
	cfg.normalize()
	if cfg.AccessID == "" || cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("%w: access_id/encryption_key is required", ErrConfigInvalid)
	}
	if _, err := decodeKey(cfg.EncryptionKey); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// QueryByAPICode 按接口编号发起动态查询。
func QueryByAPICode(ctx context.Context, cfg *Config, apiCode string, params map[string]interface{}) (*QueryResult, error) {
	apiCode = strings.TrimSpace(apiCode)
	if apiCode == "" {
		return nil, fmt.Errorf("%w: api_code is required", ErrConfigInvalid)
	}
	return callAPI(ctx, cfg, apiCode, params)
}

// VerifyTwoFactor 姓名+证件号二要素核验。resultCode 以 0 开头表示一致。
func VerifyTwoFactor(ctx context.Context, cfg *Config, name, idCard string) (*VerifyResult, error) {
	result, err := callAPI(ctx, cfg, "YYSYBE08", map[string]interface{}{
		"name":    strings.TrimSpace(name),
		"id_card": strings.TrimSpace(idCard),
	})
	if err != nil {
		return nil, err
	}
	resultCode := readString(result.Data, "ctidRequest", "ctidAuth", "resultCode")
	return &VerifyResult{
		Match: strings.HasPrefix(resultCode, "0"),
		Data:  result.Data,
	}, nil
}

// VerifyThreeFactor 姓名+证件号+手机号三要素核验。
// 外层 code 为 1000 且内层 msg 为"一致"(或内层 code 为 1000)表示一致。
func VerifyThreeFactor(ctx context.Context, cfg *Config, name, idCard, mobile string) (*VerifyResult, error) {
	result, err := callAPI(ctx, cfg, "YYSY09CD", map[string]interface{}{
		"name":        strings.TrimSpace(name),
		"id_card":     strings.TrimSpace(idCard),
		"mobile_type": "",
		"mobile_no":   strings.TrimSpace(mobile),
	})
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		Match: threeFactorMatched(result.Data),
		Data:  result.Data,
	}, nil
}

func threeFactorMatched(data map[string]interface{}) bool {
	if !codeEquals(data["code"], 1000) {
		return false
	}
	inner, ok := data["data"].(map[string]interface{})
	if !ok {
		return false
	}
	if msg, ok := inner["msg"].(string); ok && strings.TrimSpace(msg) == "一致" {
		return true
	}
	return codeEquals(inner["code"], 1000)
}

func codeEquals(value interface{}, expected int64) bool {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) == fmt.Sprintf("%d", expected)
	case float64:
		return int64(v) == expected
	case int64:
		return v == expected
	case json.Number:
		parsed, err := v.Int64()
		return err == nil && parsed == expected
	default:
		return false
	}
}

func callAPI(ctx context.Context, cfg *Config, apiCode string, params map[string]interface{}) (*QueryResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal params failed", ErrRequestFailed)
	}
	encrypted, err := Encrypt(cfg.EncryptionKey, paramsJSON)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]interface{}{
		"data": encrypted,
		"options": map[string]interface{}{
			"json": true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request body failed", ErrRequestFailed)
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	requestURL := strings.TrimRight(cfg.BaseURL, "/") + "/api/v1/" + apiCode
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Access-Id", cfg.AccessID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrResponseInvalid, resp.StatusCode)
	}

	envelope := map[string]interface{}{}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}

	// 部分接口不带信封,整个响应即业务数据。
	if _, ok := envelope["code"]; !ok {
		return &QueryResult{Data: envelope}, nil
	}

	message, _ := envelope["message"].(string)
	if !codeEquals(envelope["code"], 0) {
		return nil, fmt.Errorf("%w: code %v message %s", ErrResponseInvalid, envelope["code"], message)
	}

	encryptedData, _ := envelope["data"].(string)
	if strings.TrimSpace(encryptedData) == "" {
		return &QueryResult{Data: map[string]interface{}{}, Message: message}, nil
	}

	plaintext, err := Decrypt(cfg.EncryptionKey, encryptedData)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{}
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, fmt.Errorf("%w: decode decrypted payload failed", ErrResponseInvalid)
	}
	return &QueryResult{Data: data, Message: message}, nil
}

// Encrypt AES-128-CBC 加密,随机 IV 拼接在密文前,整体 Base64 编码。
func Encrypt(hexKey string, plaintext []byte) (string, error) {
	key, err := decodeKey(hexKey)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: init cipher failed", ErrCryptoFailed)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("%w: generate iv failed", ErrCryptoFailed)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return base64.StdEncoding.EncodeToString(append(iv, ciphertext...)), nil
}

// Decrypt 解密 Encrypt 的逆过程。
func Decrypt(hexKey string, encoded string) ([]byte, error) {
	key, err := decodeKey(hexKey)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode failed", ErrCryptoFailed)
	}
	if len(raw) < aes.BlockSize || (len(raw)-aes.BlockSize)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length invalid", ErrCryptoFailed)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: init cipher failed", ErrCryptoFailed)
	}
	iv := raw[:aes.BlockSize]
	ciphertext := raw[aes.BlockSize:]
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext, aes.BlockSize)
}

func decodeKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("%w: encryption_key is not hex", ErrConfigInvalid)
	}
	if len(key) != 16 {
		return nil, fmt.Errorf("%w: encryption_key must be 16 bytes", ErrConfigInvalid)
	}
	return key, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: padded data length invalid", ErrCryptoFailed)
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("%w: padding length invalid", ErrCryptoFailed)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("%w: padding bytes invalid", ErrCryptoFailed)
		}
	}
	return data[:len(data)-padding], nil
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultTimeout)
}

func (c *Config) normalize() {
	c.AccessID = strings.TrimSpace(c.AccessID)
	c.EncryptionKey = strings.TrimSpace(c.EncryptionKey)
	c.AppID = strings.TrimSpace(c.AppID)
	c.AppSecret = strings.TrimSpace(c.AppSecret)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.AccessID == "" {
		c.AccessID = c.AppID
	}
	if c.EncryptionKey == "" {
		c.EncryptionKey = c.AppSecret
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
}

func readString(raw map[string]interface{}, keys ...string) string {
	var current interface{} = raw
	for _, key := range keys {
		mapValue, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		next, ok := mapValue[key]
		if !ok {
			return ""
		}
		current = next
	}
	if value, ok := current.(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
