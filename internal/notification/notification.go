package notification

import "github.com/assist-by/mirror/internal/domain"

const (
	ColorSuccess = 0x00FF00 // 녹색
	ColorError   = 0xFF0000 // 빨간색
	ColorInfo    = 0x0000FF // 파란색
	ColorWarning = 0xFFA500 // 주황색
)

// Notifier는 알림 전송 인터페이스를 정의합니다
type Notifier interface {
	// SendCopyResult는 복제 주문 결과 알림을 전송합니다
	SendCopyResult(result CopyResult) error

	// SendError는 에러 알림을 전송합니다
	SendError(err error) error

	// SendInfo는 일반 정보 알림을 전송합니다
	SendInfo(message string) error
}

// CopyResult는 팔로워 한 명에 대한 복제 주문 결과를 정의합니다
type CopyResult struct {
	Symbol       string           // 심볼 (예: BTCUSDT)
	Side         domain.OrderSide // 매수/매도
	OrderType    domain.OrderType // 주문 유형
	Quantity     float64          // 복제 주문 수량
	Leverage     int              // 적용 레버리지
	FollowerName string           // 팔로워 계정 이름
	OrderID      string           // 거래소 주문 ID (실패 시 빈 문자열)
	Success      bool
}

// GetColorForResult는 복제 결과에 따른 색상을 반환합니다
func GetColorForResult(success bool) int {
	if success {
		return ColorSuccess
	}
	return ColorError
}
