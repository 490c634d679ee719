package copier

import "fmt"

// Error 타입들은 복제 처리 중 발생할 수 있는 에러를 정의합니다
var (
	ErrOrderPlacementFail = fmt.Errorf("주문 생성에 실패했습니다")
)

// CopyError는 복제 처리 에러를 확장한 구조체입니다
type CopyError struct {
	FollowerID int64
	Symbol     string
	Op         string
	Err        error
}

// Error는 error 인터페이스를 구현합니다
func (e *CopyError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("복제 에러 [팔로워: %d, %s, 작업: %s]: %v", e.FollowerID, e.Symbol, e.Op, e.Err)
	}
	return fmt.Sprintf("복제 에러 [팔로워: %d, 작업: %s]: %v", e.FollowerID, e.Op, e.Err)
}

// Unwrap은 내부 에러를 반환합니다 (errors.Is/As 지원을 위함)
func (e *CopyError) Unwrap() error {
	return e.Err
}

// NewCopyError는 새로운 CopyError를 생성합니다
func NewCopyError(followerID int64, symbol, op string, err error) *CopyError {
	return &CopyError{
		FollowerID: followerID,
		Symbol:     symbol,
		Op:         op,
		Err:        err,
	}
}
