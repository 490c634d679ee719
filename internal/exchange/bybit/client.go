package bybit

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/assist-by/mirror/internal/domain"
)

// errNoData는 응답은 정상이지만 기대한 필드가 없는 경우를 표시합니다.
// 데이터 자체가 없는 것이므로 재시도하지 않습니다.
var errNoData = errors.New("응답에 기대한 데이터가 없습니다")

// BackoffFunc는 재시도 사이의 대기 시간을 계산합니다
type BackoffFunc func(attempt int) time.Duration

// defaultBackoff는 2^attempt 초에 0~1초의 지터를 더합니다
func defaultBackoff(attempt int) time.Duration {
	seconds := math.Pow(2, float64(attempt)) + rand.Float64()
	return time.Duration(seconds * float64(time.Second))
}

// Client는 바이비트 v5 API 클라이언트를 구현합니다
type Client struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	category   string
	recvWindow int
	maxRetries int
	httpClient *http.Client
	backoff    BackoffFunc

	mu              sync.RWMutex
	instrumentCache map[string][]domain.InstrumentInfo
}

// ClientOption은 클라이언트 생성 옵션을 정의합니다
type ClientOption func(*Client)

// WithTimeout은 HTTP 클라이언트의 타임아웃을 설정합니다
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithBaseURL은 기본 URL을 설정합니다
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithCategory는 상품 카테고리를 설정합니다 (기본값: linear)
func WithCategory(category string) ClientOption {
	return func(c *Client) {
		c.category = category
	}
}

// WithRecvWindow는 서명 유효 시간(밀리초)을 설정합니다
func WithRecvWindow(recvWindow int) ClientOption {
	return func(c *Client) {
		c.recvWindow = recvWindow
	}
}

// WithMaxRetries는 조회 요청의 최대 시도 횟수를 설정합니다
func WithMaxRetries(maxRetries int) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
	}
}

// WithBackoff는 재시도 대기 시간 계산 함수를 설정합니다
func WithBackoff(backoff BackoffFunc) ClientOption {
	return func(c *Client) {
		c.backoff = backoff
	}
}

// NewClient는 새로운 바이비트 API 클라이언트를 생성합니다
func NewClient(apiKey, apiSecret string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:          apiKey,
		apiSecret:       apiSecret,
		baseURL:         "https://api.bybit.com",
		category:        "linear",
		recvWindow:      10000,
		maxRetries:      3,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		backoff:         defaultBackoff,
		instrumentCache: make(map[string][]domain.InstrumentInfo),
	}

	// 옵션 적용
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// doRequest는 HTTP 요청을 실행하고 응답 봉투의 result를 반환합니다
func (c *Client) doRequest(ctx context.Context, method, endpoint string, query url.Values, body map[string]any, needSign bool) (json.RawMessage, error) {
	reqURL, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return nil, fmt.Errorf("URL 파싱 실패: %w", err)
	}

	queryString := ""
	if query != nil {
		queryString = query.Encode()
		reqURL.RawQuery = queryString
	}

	var bodyBytes []byte
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("요청 본문 직렬화 실패: %w", err)
		}
	}

	// 요청 생성
	var reader io.Reader
	if bodyBytes != nil {
		reader = bytes.NewReader(bodyBytes)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("요청 생성 실패: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// 서명: timestamp + apiKey + recvWindow + (쿼리 | 본문)
	if needSign {
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		recvWindow := strconv.Itoa(c.recvWindow)

		payload := timestamp + c.apiKey + recvWindow
		if method == http.MethodGet {
			payload += queryString
		} else {
			payload += string(bodyBytes)
		}

		req.Header.Set("X-BAPI-API-KEY", c.apiKey)
		req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
		req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
		req.Header.Set("X-BAPI-SIGN", c.sign(payload))
		req.Header.Set("X-BAPI-SIGN-TYPE", "2")
	}

	// 요청 실행
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API 요청 실패: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("응답 읽기 실패: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP 에러(%d): %s", resp.StatusCode, string(respBody))
	}

	// 응답 봉투 확인
	var envelope struct {
		RetCode int             `json:"retCode"`
		RetMsg  string          `json:"retMsg"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("응답 파싱 실패: %w", err)
	}
	if envelope.RetCode != 0 {
		return nil, fmt.Errorf("API 에러(코드: %d): %s", envelope.RetCode, envelope.RetMsg)
	}

	return envelope.Result, nil
}

// sign은 요청에 대한 HMAC-SHA256 서명을 생성합니다
func (c *Client) sign(payload string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// withRetry는 조회 요청을 최대 시도 횟수까지 재시도합니다.
// errNoData는 응답을 받은 것이므로 즉시 중단합니다.
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) bool {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return true
		}
		if errors.Is(err, errNoData) {
			logrus.Warnf("%s: %v", op, err)
			return false
		}

		logrus.Errorf("%s 실패 (시도 %d/%d): %v", op, attempt+1, c.maxRetries, err)

		if attempt < c.maxRetries-1 {
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				return false
			}
		}
	}

	logrus.Errorf("%s: 최대 재시도 횟수 도달", op)
	return false
}

// GetBalance는 UNIFIED 계정의 코인 잔고를 조회합니다.
// 계정 응답에 해당 코인이 없으면 (0, true)를 반환합니다.
func (c *Client) GetBalance(ctx context.Context, coin string) (float64, bool) {
	var balance float64

	ok := c.withRetry(ctx, fmt.Sprintf("잔고 조회(%s)", coin), func(ctx context.Context) error {
		query := url.Values{}
		query.Set("accountType", "UNIFIED")
		query.Set("coin", coin)

		resp, err := c.doRequest(ctx, http.MethodGet, "/v5/account/wallet-balance", query, nil, true)
		if err != nil {
			return err
		}

		var result struct {
			List []struct {
				Coin []struct {
					Coin          string `json:"coin"`
					WalletBalance string `json:"walletBalance"`
				} `json:"coin"`
			} `json:"list"`
		}
		if err := json.Unmarshal(resp, &result); err != nil {
			return fmt.Errorf("잔고 파싱 실패: %w", err)
		}

		// 지갑 항목이나 코인 행이 없는 것은 잔고 0으로 취급합니다
		balance = 0
		if len(result.List) > 0 {
			for _, entry := range result.List[0].Coin {
				if entry.Coin == coin && entry.WalletBalance != "" {
					value, err := strconv.ParseFloat(entry.WalletBalance, 64)
					if err != nil {
						return fmt.Errorf("잔고 값 파싱 실패: %w", err)
					}
					balance = value
					break
				}
			}
		}
		return nil
	})

	if !ok {
		return 0, false
	}
	return balance, true
}

// GetPrice는 심볼의 현재 체결가를 조회합니다
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, bool) {
	var price float64

	ok := c.withRetry(ctx, fmt.Sprintf("가격 조회(%s)", symbol), func(ctx context.Context) error {
		query := url.Values{}
		query.Set("category", c.category)
		query.Set("symbol", symbol)

		resp, err := c.doRequest(ctx, http.MethodGet, "/v5/market/tickers", query, nil, false)
		if err != nil {
			return err
		}

		var result struct {
			List []struct {
				LastPrice string `json:"lastPrice"`
			} `json:"list"`
		}
		if err := json.Unmarshal(resp, &result); err != nil {
			return fmt.Errorf("티커 파싱 실패: %w", err)
		}

		if len(result.List) == 0 || result.List[0].LastPrice == "" {
			return errNoData
		}

		value, err := strconv.ParseFloat(result.List[0].LastPrice, 64)
		if err != nil {
			return fmt.Errorf("가격 값 파싱 실패: %w", err)
		}
		price = value
		return nil
	})

	if !ok {
		return 0, false
	}
	return price, true
}

// rawOrder는 주문 조회 응답의 공통 필드를 정의합니다
type rawOrder struct {
	OrderID     string `json:"orderId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	Price       string `json:"price"`
	StopLoss    string `json:"stopLoss"`
	TakeProfit  string `json:"takeProfit"`
	OrderStatus string `json:"orderStatus"`
	CreatedTime string `json:"createdTime"`
}

// GetOrderHistory는 주문 이력을 조회합니다. 재시도를 소진하면 빈 슬라이스를 반환합니다.
func (c *Client) GetOrderHistory(ctx context.Context, q domain.OrderHistoryQuery) []domain.HistoryOrder {
	var orders []domain.HistoryOrder

	c.withRetry(ctx, "주문 이력 조회", func(ctx context.Context) error {
		query := url.Values{}
		query.Set("category", c.category)
		if q.Symbol != "" {
			query.Set("symbol", q.Symbol)
		}
		if q.StartTime > 0 {
			query.Set("startTime", strconv.FormatInt(q.StartTime, 10))
		}
		if q.EndTime > 0 {
			query.Set("endTime", strconv.FormatInt(q.EndTime, 10))
		}
		limit := q.Limit
		if limit <= 0 {
			limit = 50
		}
		query.Set("limit", strconv.Itoa(limit))

		resp, err := c.doRequest(ctx, http.MethodGet, "/v5/order/history", query, nil, true)
		if err != nil {
			return err
		}

		var result struct {
			List []rawOrder `json:"list"`
		}
		if err := json.Unmarshal(resp, &result); err != nil {
			return fmt.Errorf("주문 이력 파싱 실패: %w", err)
		}

		orders = make([]domain.HistoryOrder, 0, len(result.List))
		for _, o := range result.List {
			qty, _ := strconv.ParseFloat(o.Qty, 64)
			price, _ := strconv.ParseFloat(o.Price, 64)
			createdTime, _ := strconv.ParseInt(o.CreatedTime, 10, 64)
			orders = append(orders, domain.HistoryOrder{
				OrderID:     o.OrderID,
				Symbol:      o.Symbol,
				Side:        domain.OrderSide(o.Side),
				OrderType:   domain.OrderType(o.OrderType),
				Qty:         qty,
				Price:       price,
				OrderStatus: o.OrderStatus,
				CreatedTime: createdTime,
			})
		}
		return nil
	})

	return orders
}

// GetOpenOrders는 미체결 주문을 조회합니다
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) []domain.OpenOrder {
	var orders []domain.OpenOrder

	c.withRetry(ctx, fmt.Sprintf("미체결 주문 조회(%s)", symbol), func(ctx context.Context) error {
		query := url.Values{}
		query.Set("category", c.category)
		if symbol != "" {
			query.Set("symbol", symbol)
		}

		resp, err := c.doRequest(ctx, http.MethodGet, "/v5/order/realtime", query, nil, true)
		if err != nil {
			return err
		}

		var result struct {
			List []rawOrder `json:"list"`
		}
		if err := json.Unmarshal(resp, &result); err != nil {
			return fmt.Errorf("미체결 주문 파싱 실패: %w", err)
		}

		orders = make([]domain.OpenOrder, 0, len(result.List))
		for _, o := range result.List {
			qty, _ := strconv.ParseFloat(o.Qty, 64)
			price, _ := strconv.ParseFloat(o.Price, 64)
			stopLoss, _ := strconv.ParseFloat(o.StopLoss, 64)
			takeProfit, _ := strconv.ParseFloat(o.TakeProfit, 64)
			createdTime, _ := strconv.ParseInt(o.CreatedTime, 10, 64)
			orders = append(orders, domain.OpenOrder{
				OrderID:     o.OrderID,
				Symbol:      o.Symbol,
				Side:        domain.OrderSide(o.Side),
				OrderType:   domain.OrderType(o.OrderType),
				Qty:         qty,
				Price:       price,
				StopLoss:    stopLoss,
				TakeProfit:  takeProfit,
				OrderStatus: o.OrderStatus,
				CreatedTime: createdTime,
			})
		}
		return nil
	})

	return orders
}

// GetPositions는 포지션 정보를 조회합니다
func (c *Client) GetPositions(ctx context.Context, symbol string) []domain.Position {
	var positions []domain.Position

	c.withRetry(ctx, fmt.Sprintf("포지션 조회(%s)", symbol), func(ctx context.Context) error {
		query := url.Values{}
		query.Set("category", c.category)
		if symbol != "" {
			query.Set("symbol", symbol)
		}

		resp, err := c.doRequest(ctx, http.MethodGet, "/v5/position/list", query, nil, true)
		if err != nil {
			return err
		}

		var result struct {
			List []struct {
				Symbol        string `json:"symbol"`
				Side          string `json:"side"`
				Size          string `json:"size"`
				AvgPrice      string `json:"avgPrice"`
				MarkPrice     string `json:"markPrice"`
				Leverage      string `json:"leverage"`
				UnrealisedPnl string `json:"unrealisedPnl"`
				UpdatedTime   string `json:"updatedTime"`
			} `json:"list"`
		}
		if err := json.Unmarshal(resp, &result); err != nil {
			return fmt.Errorf("포지션 파싱 실패: %w", err)
		}

		positions = make([]domain.Position, 0, len(result.List))
		for _, p := range result.List {
			size, _ := strconv.ParseFloat(p.Size, 64)
			entryPrice, _ := strconv.ParseFloat(p.AvgPrice, 64)
			markPrice, _ := strconv.ParseFloat(p.MarkPrice, 64)
			leverage, _ := strconv.ParseFloat(p.Leverage, 64)
			unrealised, _ := strconv.ParseFloat(p.UnrealisedPnl, 64)
			updatedTime, _ := strconv.ParseInt(p.UpdatedTime, 10, 64)
			positions = append(positions, domain.Position{
				Symbol:        p.Symbol,
				Side:          domain.OrderSide(p.Side),
				Size:          size,
				EntryPrice:    entryPrice,
				MarkPrice:     markPrice,
				Leverage:      leverage,
				UnrealisedPnl: unrealised,
				UpdatedTime:   updatedTime,
			})
		}
		return nil
	})

	return positions
}

// PlaceOrder는 주문을 생성합니다. 중복 제출을 피하기 위해 단 한 번만 시도하며,
// 실패하면 빈 문자열을 반환합니다.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) string {
	// 레버리지를 먼저 설정합니다
	if req.Leverage > 1 {
		c.SetLeverage(ctx, req.Symbol, req.Leverage)
	}

	body := map[string]any{
		"category":  c.category,
		"symbol":    req.Symbol,
		"side":      string(req.Side),
		"orderType": string(req.OrderType),
		"qty":       formatFloat(req.Quantity),
	}
	if req.OrderType == domain.Limit && req.Price > 0 {
		body["price"] = formatFloat(req.Price)
	}
	if req.StopLoss > 0 {
		body["stopLoss"] = formatFloat(req.StopLoss)
	}
	if req.TakeProfit > 0 {
		body["takeProfit"] = formatFloat(req.TakeProfit)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v5/order/create", nil, body, true)
	if err != nil {
		logrus.Errorf("주문 생성 실패 [심볼: %s, 타입: %s, 수량: %s]: %v",
			req.Symbol, req.OrderType, formatFloat(req.Quantity), err)
		return ""
	}

	var result struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		logrus.Errorf("주문 응답 파싱 실패: %v", err)
		return ""
	}

	logrus.Infof("주문 생성 완료 [심볼: %s, 주문 ID: %s]", req.Symbol, result.OrderID)
	return result.OrderID
}

// CancelOrder는 주문을 취소합니다. 단 한 번만 시도합니다.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) bool {
	body := map[string]any{
		"category": c.category,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	if _, err := c.doRequest(ctx, http.MethodPost, "/v5/order/cancel", nil, body, true); err != nil {
		logrus.Errorf("주문 취소 실패 [심볼: %s, 주문 ID: %s]: %v", symbol, orderID, err)
		return false
	}

	logrus.Infof("주문 취소 완료 [심볼: %s, 주문 ID: %s]", symbol, orderID)
	return true
}

// ModifyOrder는 기존 주문을 수정합니다. 0 값 필드는 변경하지 않습니다.
func (c *Client) ModifyOrder(ctx context.Context, symbol, orderID string, changes domain.OrderChanges) bool {
	body := map[string]any{
		"category": c.category,
		"symbol":   symbol,
		"orderId":  orderID,
	}
	if changes.Quantity > 0 {
		body["qty"] = formatFloat(changes.Quantity)
	}
	if changes.Price > 0 {
		body["price"] = formatFloat(changes.Price)
	}
	if changes.StopLoss > 0 {
		body["stopLoss"] = formatFloat(changes.StopLoss)
	}
	if changes.TakeProfit > 0 {
		body["takeProfit"] = formatFloat(changes.TakeProfit)
	}

	if _, err := c.doRequest(ctx, http.MethodPost, "/v5/order/amend", nil, body, true); err != nil {
		logrus.Errorf("주문 수정 실패 [심볼: %s, 주문 ID: %s]: %v", symbol, orderID, err)
		return false
	}

	logrus.Infof("주문 수정 완료 [심볼: %s, 주문 ID: %s]", symbol, orderID)
	return true
}

// SetLeverage는 심볼의 매수/매도 레버리지를 설정합니다. 단 한 번만 시도합니다.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) bool {
	body := map[string]any{
		"category":     c.category,
		"symbol":       symbol,
		"buyLeverage":  strconv.Itoa(leverage),
		"sellLeverage": strconv.Itoa(leverage),
	}

	if _, err := c.doRequest(ctx, http.MethodPost, "/v5/position/set-leverage", nil, body, true); err != nil {
		logrus.Errorf("레버리지 설정 실패 [심볼: %s, 레버리지: %d]: %v", symbol, leverage, err)
		return false
	}

	return true
}

// formatFloat은 수치를 거래소가 기대하는 문자열로 변환합니다
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
