package domain

// OrderSide는 주문의 매수/매도 방향을 정의합니다
type OrderSide string

const (
	Buy  OrderSide = "Buy"
	Sell OrderSide = "Sell"
)

// OrderType은 주문 유형을 정의합니다
type OrderType string

const (
	Market OrderType = "Market"
	Limit  OrderType = "Limit"
)

// 거래소 주문 상태 값
const (
	OrderStatusFilled          = "Filled"
	OrderStatusPartiallyFilled = "PartiallyFilled"
	OrderStatusNew             = "New"
	OrderStatusCancelled       = "Cancelled"
)

// HistoryOrder는 주문 이력 조회 결과의 한 항목을 정의합니다
type HistoryOrder struct {
	OrderID     string
	Symbol      string
	Side        OrderSide
	OrderType   OrderType
	Qty         float64
	Price       float64
	OrderStatus string
	CreatedTime int64 // 밀리초 타임스탬프
}

// OpenOrder는 미체결 주문을 정의합니다
type OpenOrder struct {
	OrderID     string
	Symbol      string
	Side        OrderSide
	OrderType   OrderType
	Qty         float64
	Price       float64
	StopLoss    float64
	TakeProfit  float64
	OrderStatus string
	CreatedTime int64
}

// Position은 현재 보유 중인 포지션을 정의합니다
type Position struct {
	Symbol        string
	Side          OrderSide
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	Leverage      float64
	UnrealisedPnl float64
	UpdatedTime   int64
}

// OrderRequest는 주문 생성 요청을 정의합니다
type OrderRequest struct {
	Symbol     string
	Side       OrderSide
	OrderType  OrderType
	Quantity   float64
	Price      float64 // Limit 주문에서만 사용
	StopLoss   float64
	TakeProfit float64
	Leverage   int
}

// OrderChanges는 주문 수정 요청을 정의합니다. 0 값 필드는 변경하지 않습니다.
type OrderChanges struct {
	Quantity   float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
}

// OrderHistoryQuery는 주문 이력 조회 조건을 정의합니다
type OrderHistoryQuery struct {
	Symbol    string
	StartTime int64 // 밀리초, 0이면 제한 없음
	EndTime   int64
	Limit     int
}

// LotSizeFilter는 심볼의 수량 단위 제약을 정의합니다.
// 거래소가 문자열로 내려주는 값을 그대로 보존합니다.
type LotSizeFilter struct {
	QtyStep     string `json:"qtyStep"`
	MinOrderQty string `json:"minOrderQty"`
	MaxOrderQty string `json:"maxOrderQty"`
}

// InstrumentInfo는 심볼의 거래 메타데이터를 정의합니다
type InstrumentInfo struct {
	Symbol        string        `json:"symbol"`
	Status        string        `json:"status"`
	BaseCoin      string        `json:"baseCoin"`
	QuoteCoin     string        `json:"quoteCoin"`
	LotSizeFilter LotSizeFilter `json:"lotSizeFilter"`
}
