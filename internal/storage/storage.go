package storage

import (
	"context"
	"errors"
	"time"

	"github.com/assist-by/mirror/internal/domain"
)

// ErrNotFound는 요청한 레코드가 없을 때 Get 계열 메서드가 반환합니다
var ErrNotFound = errors.New("레코드를 찾을 수 없습니다")

// Store는 복제 엔진과 컨트롤 API가 사용하는 영속성 계층을 정의합니다.
//
// Find 계열 메서드는 레코드가 없으면 (nil, nil)을 반환하고,
// Get 계열 메서드는 ErrNotFound를 반환합니다.
type Store interface {
	// 계정
	CreateMaster(ctx context.Context, account *domain.MasterAccount) error
	CreateFollower(ctx context.Context, account *domain.FollowerAccount) error
	GetMaster(ctx context.Context, id int64) (*domain.MasterAccount, error)
	GetFollower(ctx context.Context, id int64) (*domain.FollowerAccount, error)
	ListMasters(ctx context.Context, onlyActive bool) ([]domain.MasterAccount, error)
	ListFollowers(ctx context.Context, onlyActive bool) ([]domain.FollowerAccount, error)
	UpdateMaster(ctx context.Context, account *domain.MasterAccount) error
	UpdateFollower(ctx context.Context, account *domain.FollowerAccount) error
	DeleteMaster(ctx context.Context, id int64) error
	DeleteFollower(ctx context.Context, id int64) error

	// 트레이드
	CreateTrade(ctx context.Context, trade *domain.Trade) error
	UpdateTrade(ctx context.Context, trade *domain.Trade) error
	GetTrade(ctx context.Context, id int64) (*domain.Trade, error)
	FindTradeByMasterOrder(ctx context.Context, masterID int64, orderID string) (*domain.Trade, error)
	FindPendingTradeBySymbol(ctx context.Context, masterID int64, symbol string) (*domain.Trade, error)
	ListTrades(ctx context.Context, limit int) ([]domain.Trade, error)
	CountTradesSince(ctx context.Context, since time.Time) (int64, error)

	// 복제 결과
	CreateCopiedTrade(ctx context.Context, copied *domain.CopiedTrade) error
	UpdateCopiedTrade(ctx context.Context, copied *domain.CopiedTrade) error
	ListCopiesByTrade(ctx context.Context, tradeID int64) ([]domain.CopiedTrade, error)
	CountCopiesSince(ctx context.Context, since time.Time) (int64, error)

	// 이력
	AppendHistory(ctx context.Context, history *domain.TradeHistory) error
	ListHistoryByTrade(ctx context.Context, tradeID int64) ([]domain.TradeHistory, error)
}
