package exchange

import (
	"context"

	"github.com/assist-by/mirror/internal/domain"
)

// Exchange는 거래소와의 상호작용을 위한 인터페이스를 정의합니다.
//
// 조회 메서드는 실패해도 에러를 반환하지 않습니다. 재시도를 모두 소진하면
// 부재 값((0, false), nil, 빈 슬라이스)을 반환하고, 호출자는 해당 항목을
// 건너뜁니다. 주문 생성/취소/수정과 레버리지 설정은 중복 제출을 피하기 위해
// 단 한 번만 시도합니다.
type Exchange interface {
	// GetBalance는 UNIFIED 계정의 코인 잔고를 조회합니다.
	// 두 번째 반환값이 false이면 조회 자체가 실패한 것입니다.
	GetBalance(ctx context.Context, coin string) (float64, bool)

	// GetPrice는 심볼의 현재 체결가를 조회합니다
	GetPrice(ctx context.Context, symbol string) (float64, bool)

	// GetInstrumentInfo는 심볼의 거래 메타데이터를 조회합니다. 실패 시 nil을 반환합니다.
	GetInstrumentInfo(ctx context.Context, symbol string) *domain.InstrumentInfo

	// ListInstruments는 카테고리 전체의 거래 메타데이터를 조회합니다
	ListInstruments(ctx context.Context) []domain.InstrumentInfo

	// GetOrderHistory는 주문 이력을 조회합니다
	GetOrderHistory(ctx context.Context, query domain.OrderHistoryQuery) []domain.HistoryOrder

	// GetOpenOrders는 미체결 주문을 조회합니다
	GetOpenOrders(ctx context.Context, symbol string) []domain.OpenOrder

	// GetPositions는 포지션 정보를 조회합니다
	GetPositions(ctx context.Context, symbol string) []domain.Position

	// PlaceOrder는 주문을 생성하고 주문 ID를 반환합니다. 실패 시 빈 문자열을 반환합니다.
	PlaceOrder(ctx context.Context, req domain.OrderRequest) string

	// CancelOrder는 주문을 취소합니다
	CancelOrder(ctx context.Context, symbol, orderID string) bool

	// ModifyOrder는 기존 주문을 수정합니다
	ModifyOrder(ctx context.Context, symbol, orderID string, changes domain.OrderChanges) bool

	// SetLeverage는 심볼의 레버리지를 설정합니다
	SetLeverage(ctx context.Context, symbol string, leverage int) bool

	// GetQtyPrecision은 심볼의 수량 소수 자릿수를 반환합니다
	GetQtyPrecision(ctx context.Context, symbol string) int

	// GetMinOrderQty는 심볼의 최소 주문 수량을 반환합니다
	GetMinOrderQty(ctx context.Context, symbol string) float64

	// FormatQuantity는 수량을 심볼의 자릿수에 맞게 반올림합니다
	FormatQuantity(ctx context.Context, symbol string, qty float64) float64
}

// Factory는 계정별 API 키로 Exchange 인스턴스를 생성합니다
type Factory func(apiKey, apiSecret string) Exchange
