package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/assist-by/mirror/internal/domain"
)

// fetchInstruments는 거래 메타데이터를 조회하고 프로세스 수명 동안 캐시합니다.
// 캐시는 무효화되지 않습니다.
func (c *Client) fetchInstruments(ctx context.Context, symbol string) []domain.InstrumentInfo {
	cacheKey := symbol
	if cacheKey == "" {
		cacheKey = "all"
	}
	cacheKey += "_" + c.category

	c.mu.RLock()
	cached, hit := c.instrumentCache[cacheKey]
	c.mu.RUnlock()
	if hit {
		return cached
	}

	var instruments []domain.InstrumentInfo

	ok := c.withRetry(ctx, fmt.Sprintf("거래 정보 조회(%s)", cacheKey), func(ctx context.Context) error {
		query := url.Values{}
		query.Set("category", c.category)
		if symbol != "" {
			query.Set("symbol", symbol)
		}

		resp, err := c.doRequest(ctx, http.MethodGet, "/v5/market/instruments-info", query, nil, false)
		if err != nil {
			return err
		}

		var result struct {
			List []domain.InstrumentInfo `json:"list"`
		}
		if err := json.Unmarshal(resp, &result); err != nil {
			return fmt.Errorf("거래 정보 파싱 실패: %w", err)
		}

		if len(result.List) == 0 {
			return errNoData
		}

		instruments = result.List
		return nil
	})

	if !ok {
		return nil
	}

	c.mu.Lock()
	c.instrumentCache[cacheKey] = instruments
	c.mu.Unlock()

	return instruments
}

// GetInstrumentInfo는 심볼의 거래 메타데이터를 조회합니다. 실패 시 nil을 반환합니다.
func (c *Client) GetInstrumentInfo(ctx context.Context, symbol string) *domain.InstrumentInfo {
	instruments := c.fetchInstruments(ctx, symbol)
	if len(instruments) == 0 {
		return nil
	}
	return &instruments[0]
}

// ListInstruments는 카테고리 전체의 거래 메타데이터를 조회합니다
func (c *Client) ListInstruments(ctx context.Context) []domain.InstrumentInfo {
	return c.fetchInstruments(ctx, "")
}

// GetQtyPrecision은 qtyStep의 소수 자릿수를 반환합니다.
// 조회에 실패하면 심볼 이름 기반 기본값을 사용합니다.
func (c *Client) GetQtyPrecision(ctx context.Context, symbol string) int {
	if info := c.GetInstrumentInfo(ctx, symbol); info != nil {
		step := info.LotSizeFilter.QtyStep
		if step != "" {
			if idx := strings.Index(step, "."); idx >= 0 {
				return len(step) - idx - 1
			}
			// "1", "10" 등은 자릿수 0
			return 0
		}
		logrus.Warnf("%s의 qtyStep이 비어 있어 기본 자릿수를 사용합니다", symbol)
	}

	switch {
	case strings.Contains(symbol, "BTC"):
		return 3
	case strings.Contains(symbol, "ETH"):
		return 3
	default:
		return 2
	}
}

// GetMinOrderQty는 심볼의 최소 주문 수량을 반환합니다.
// 조회에 실패하면 심볼 이름 기반 기본값을 사용합니다.
func (c *Client) GetMinOrderQty(ctx context.Context, symbol string) float64 {
	if info := c.GetInstrumentInfo(ctx, symbol); info != nil {
		if minQty := info.LotSizeFilter.MinOrderQty; minQty != "" {
			value, err := strconv.ParseFloat(minQty, 64)
			if err == nil {
				return value
			}
			logrus.Warnf("%s의 minOrderQty 파싱 실패: %v", symbol, err)
		}
	}

	switch {
	case strings.Contains(symbol, "BTC"):
		return 0.001
	case strings.Contains(symbol, "ETH"):
		return 0.01
	default:
		return 1.0
	}
}

// FormatQuantity는 수량을 심볼의 자릿수로 반올림합니다.
// 반올림은 절반을 0에서 먼 쪽으로 처리합니다.
func (c *Client) FormatQuantity(ctx context.Context, symbol string, qty float64) float64 {
	precision := c.GetQtyPrecision(ctx, symbol)
	rounded, _ := decimal.NewFromFloat(qty).Round(int32(precision)).Float64()
	return rounded
}
