package domain

import "time"

// TradeStatus는 트레이드의 처리 상태를 정의합니다
type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeExecuted  TradeStatus = "executed"
	TradeFailed    TradeStatus = "failed"
	TradeCancelled TradeStatus = "cancelled"
)

// HistoryAction은 트레이드 이력의 동작 구분을 정의합니다
type HistoryAction string

const (
	ActionOpened    HistoryAction = "opened"
	ActionClosed    HistoryAction = "closed"
	ActionModified  HistoryAction = "modified"
	ActionCancelled HistoryAction = "cancelled"
)

// Trade는 마스터 계정에서 감지된 거래를 정의합니다.
// (master_account_id, master_order_id) 조합은 유일합니다.
type Trade struct {
	ID              int64       `gorm:"primaryKey" json:"id"`
	MasterAccountID int64       `gorm:"not null;uniqueIndex:idx_master_order" json:"master_account_id"`
	Symbol          string      `gorm:"size:20;not null;index" json:"symbol"`
	Side            OrderSide   `gorm:"size:10;not null" json:"side"`
	OrderType       OrderType   `gorm:"size:20;not null" json:"order_type"`
	Quantity        float64     `gorm:"not null" json:"quantity"`
	Price           *float64    `json:"price"`
	Leverage        int         `gorm:"default:1" json:"leverage"`
	StopLoss        *float64    `json:"stop_loss"`
	TakeProfit      *float64    `json:"take_profit"`
	MasterOrderID   string      `gorm:"size:100;not null;uniqueIndex:idx_master_order" json:"master_order_id"`
	Status          TradeStatus `gorm:"size:20;default:pending" json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	ExecutedAt      *time.Time  `json:"executed_at"`
}

// CopiedTrade는 팔로워 계정으로 복제된 주문의 결과를 정의합니다
type CopiedTrade struct {
	ID                int64       `gorm:"primaryKey" json:"id"`
	OriginalTradeID   int64       `gorm:"not null;index" json:"original_trade_id"`
	FollowerAccountID int64       `gorm:"not null;index" json:"follower_account_id"`
	FollowerOrderID   string      `gorm:"size:100" json:"follower_order_id"`
	Quantity          float64     `gorm:"not null" json:"quantity"`
	Price             *float64    `json:"price"`
	Status            TradeStatus `gorm:"size:20;default:pending" json:"status"`
	ErrorMessage      string      `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	ExecutedAt        *time.Time  `json:"executed_at"`
}

// TradeHistory는 트레이드에 대한 감사 이력을 정의합니다
type TradeHistory struct {
	ID          int64         `gorm:"primaryKey" json:"id"`
	TradeID     int64         `gorm:"not null;index" json:"trade_id"`
	AccountType AccountType   `gorm:"size:10;not null" json:"account_type"`
	AccountID   int64         `gorm:"not null" json:"account_id"`
	Action      HistoryAction `gorm:"size:20;not null" json:"action"`
	Details     string        `gorm:"type:text" json:"details"`
	Timestamp   time.Time     `gorm:"autoCreateTime" json:"timestamp"`
}
