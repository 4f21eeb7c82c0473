package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testKey = "00112233445566778899aabbccddeeff"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte(`{"name":"张三","id_card":"110101199001011234"}`)
	encoded, err := Encrypt(testKey, plaintext)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	decoded, err := Decrypt(testKey, encoded)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if string(decoded) != string(plaintext) {
		t.Fatalf("round trip mismatch: %s", decoded)
	}
}

func TestDecryptRejectsTamperedPadding(t *testing.T) {
	encoded, err := Encrypt(testKey, []byte("hello"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := Decrypt(testKey, encoded[:8]); !errors.Is(err, ErrCryptoFailed) {
		t.Fatalf("expected ErrCryptoFailed, got: %v", err)
	}
}

func TestParseConfigFallbackCredentials(t *testing.T) {
	cfg, err := ParseConfig(map[string]interface{}{
		"app_id":     "TY10001",
		"app_secret": testKey,
	})
	if err != nil {
		t.Fatalf("parse config failed: %v", err)
	}
	if cfg.AccessID != "TY10001" {
		t.Fatalf("access_id should fallback to app_id, got: %s", cfg.AccessID)
	}
	if cfg.EncryptionKey != testKey {
		t.Fatalf("encryption_key should fallback to app_secret, got: %s", cfg.EncryptionKey)
	}
	if cfg.BaseURL != defaultBaseURL {
		t.Fatalf("base url should fallback to default, got: %s", cfg.BaseURL)
	}
}

func TestParseConfigRejectsBadKey(t *testing.T) {
	if _, err := ParseConfig(map[string]interface{}{
		"access_id":      "TY10001",
		"encryption_key": "not-hex",
	}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got: %v", err)
	}
}

func newUpstreamServer(t *testing.T, apiCode string, payload map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/"+apiCode {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Access-Id") != "TY10001" {
			t.Fatalf("missing Access-Id header")
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request failed: %v", err)
		}
		encrypted, ok := body["data"].(string)
		if !ok || encrypted == "" {
			t.Fatalf("request data missing")
		}
		if _, err := Decrypt(testKey, encrypted); err != nil {
			t.Fatalf("request data not decryptable: %v", err)
		}

		plaintext, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload failed: %v", err)
		}
		encoded, err := Encrypt(testKey, plaintext)
		if err != nil {
			t.Fatalf("encrypt payload failed: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    0,
			"message": "成功",
			"data":    encoded,
		})
	}))
}

func testConfig(t *testing.T, baseURL string) *Config {
	t.Helper()
	cfg, err := ParseConfig(map[string]interface{}{
		"access_id":      "TY10001",
		"encryption_key": testKey,
		"base_url":       baseURL,
	})
	if err != nil {
		t.Fatalf("parse config failed: %v", err)
	}
	return cfg
}

func TestQueryByAPICodeDecryptsEnvelope(t *testing.T) {
	server := newUpstreamServer(t, "FLXG0V4B", map[string]interface{}{
		"records": []interface{}{map[string]interface{}{"level": "A"}},
	})
	defer server.Close()

	result, err := QueryByAPICode(context.Background(), testConfig(t, server.URL), "FLXG0V4B", map[string]interface{}{
		"name":      "张三",
		"id_card":   "110101199001011234",
		"auth_date": "20260825-20260831",
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	records, ok := result.Data["records"].([]interface{})
	if !ok || len(records) != 1 {
		t.Fatalf("unexpected data: %v", result.Data)
	}
}

func TestQueryByAPICodeErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    1001,
			"message": "余额不足",
		})
	}))
	defer server.Close()

	_, err := QueryByAPICode(context.Background(), testConfig(t, server.URL), "QYGL8261", nil)
	if !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected ErrResponseInvalid, got: %v", err)
	}
}

func TestQueryByAPICodeBareResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result": "ok",
		})
	}))
	defer server.Close()

	result, err := QueryByAPICode(context.Background(), testConfig(t, server.URL), "IVYZ5733", nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if result.Data["result"] != "ok" {
		t.Fatalf("bare response should pass through, got: %v", result.Data)
	}
}

func TestVerifyTwoFactorMatch(t *testing.T) {
	server := newUpstreamServer(t, "YYSYBE08", map[string]interface{}{
		"ctidRequest": map[string]interface{}{
			"ctidAuth": map[string]interface{}{"resultCode": "0001"},
		},
	})
	defer server.Close()

	result, err := VerifyTwoFactor(context.Background(), testConfig(t, server.URL), "张三", "110101199001011234")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !result.Match {
		t.Fatalf("resultCode 0xxx should match")
	}
}

func TestVerifyTwoFactorMismatch(t *testing.T) {
	server := newUpstreamServer(t, "YYSYBE08", map[string]interface{}{
		"ctidRequest": map[string]interface{}{
			"ctidAuth": map[string]interface{}{"resultCode": "1001"},
		},
	})
	defer server.Close()

	result, err := VerifyTwoFactor(context.Background(), testConfig(t, server.URL), "张三", "110101199001011234")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Match {
		t.Fatalf("resultCode 1xxx should not match")
	}
}

func TestVerifyThreeFactorMatchByMsg(t *testing.T) {
	server := newUpstreamServer(t, "YYSY09CD", map[string]interface{}{
		"code": "1000",
		"data": map[string]interface{}{"msg": "一致"},
	})
	defer server.Close()

	result, err := VerifyThreeFactor(context.Background(), testConfig(t, server.URL), "张三", "110101199001011234", "13800138000")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !result.Match {
		t.Fatalf("msg 一致 should match")
	}
}

func TestVerifyThreeFactorMismatch(t *testing.T) {
	server := newUpstreamServer(t, "YYSY09CD", map[string]interface{}{
		"code": 1000,
		"data": map[string]interface{}{"msg": "不一致"},
	})
	defer server.Close()

	result, err := VerifyThreeFactor(context.Background(), testConfig(t, server.URL), "张三", "110101199001011234", "13800138000")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Match {
		t.Fatalf("msg 不一致 should not match")
	}
}
