package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/assist-by/mirror/internal/domain"
	"github.com/assist-by/mirror/internal/storage"
)

// Store는 GORM과 SQLite 기반의 storage.Store 구현입니다
type Store struct {
	db *gorm.DB
}

// Open은 SQLite 데이터베이스를 열고 스키마를 마이그레이션합니다
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("데이터베이스 열기 실패: %w", err)
	}

	if err := db.AutoMigrate(
		&domain.MasterAccount{},
		&domain.FollowerAccount{},
		&domain.Trade{},
		&domain.CopiedTrade{},
		&domain.TradeHistory{},
	); err != nil {
		return nil, fmt.Errorf("스키마 마이그레이션 실패: %w", err)
	}

	return &Store{db: db}, nil
}

// CreateMaster는 마스터 계정을 생성합니다
func (s *Store) CreateMaster(ctx context.Context, account *domain.MasterAccount) error {
	return s.db.WithContext(ctx).Create(account).Error
}

// CreateFollower는 팔로워 계정을 생성합니다
func (s *Store) CreateFollower(ctx context.Context, account *domain.FollowerAccount) error {
	return s.db.WithContext(ctx).Create(account).Error
}

// GetMaster는 마스터 계정을 조회합니다
func (s *Store) GetMaster(ctx context.Context, id int64) (*domain.MasterAccount, error) {
	var account domain.MasterAccount
	err := s.db.WithContext(ctx).First(&account, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetFollower는 팔로워 계정을 조회합니다
func (s *Store) GetFollower(ctx context.Context, id int64) (*domain.FollowerAccount, error) {
	var account domain.FollowerAccount
	err := s.db.WithContext(ctx).First(&account, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ListMasters는 마스터 계정 목록을 조회합니다
func (s *Store) ListMasters(ctx context.Context, onlyActive bool) ([]domain.MasterAccount, error) {
	var accounts []domain.MasterAccount
	query := s.db.WithContext(ctx)
	if onlyActive {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListFollowers는 팔로워 계정 목록을 조회합니다
func (s *Store) ListFollowers(ctx context.Context, onlyActive bool) ([]domain.FollowerAccount, error) {
	var accounts []domain.FollowerAccount
	query := s.db.WithContext(ctx)
	if onlyActive {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// UpdateMaster는 마스터 계정을 저장합니다
func (s *Store) UpdateMaster(ctx context.Context, account *domain.MasterAccount) error {
	return s.db.WithContext(ctx).Save(account).Error
}

// UpdateFollower는 팔로워 계정을 저장합니다
func (s *Store) UpdateFollower(ctx context.Context, account *domain.FollowerAccount) error {
	return s.db.WithContext(ctx).Save(account).Error
}

// DeleteMaster는 마스터 계정을 삭제합니다
func (s *Store) DeleteMaster(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&domain.MasterAccount{}, id).Error
}

// DeleteFollower는 팔로워 계정을 삭제합니다
func (s *Store) DeleteFollower(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&domain.FollowerAccount{}, id).Error
}

// CreateTrade는 트레이드를 생성합니다
func (s *Store) CreateTrade(ctx context.Context, trade *domain.Trade) error {
	return s.db.WithContext(ctx).Create(trade).Error
}

// UpdateTrade는 트레이드를 저장합니다
func (s *Store) UpdateTrade(ctx context.Context, trade *domain.Trade) error {
	return s.db.WithContext(ctx).Save(trade).Error
}

// GetTrade는 트레이드를 조회합니다
func (s *Store) GetTrade(ctx context.Context, id int64) (*domain.Trade, error) {
	var trade domain.Trade
	err := s.db.WithContext(ctx).First(&trade, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// FindTradeByMasterOrder는 (마스터, 주문 ID)로 트레이드를 찾습니다.
// 없으면 (nil, nil)을 반환합니다.
func (s *Store) FindTradeByMasterOrder(ctx context.Context, masterID int64, orderID string) (*domain.Trade, error) {
	var trade domain.Trade
	err := s.db.WithContext(ctx).
		Where("master_account_id = ? AND master_order_id = ?", masterID, orderID).
		First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// FindPendingTradeBySymbol은 마스터의 대기 중인 트레이드를 심볼로 찾습니다.
// 없으면 (nil, nil)을 반환합니다.
func (s *Store) FindPendingTradeBySymbol(ctx context.Context, masterID int64, symbol string) (*domain.Trade, error) {
	var trade domain.Trade
	err := s.db.WithContext(ctx).
		Where("master_account_id = ? AND symbol = ? AND status = ?", masterID, symbol, domain.TradePending).
		First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// ListTrades는 최신순으로 트레이드 목록을 조회합니다
func (s *Store) ListTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	var trades []domain.Trade
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// CountTradesSince는 기준 시각 이후의 트레이드 수를 반환합니다
func (s *Store) CountTradesSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Trade{}).
		Where("created_at >= ?", since).Count(&count).Error
	return count, err
}

// CreateCopiedTrade는 복제 결과를 생성합니다
func (s *Store) CreateCopiedTrade(ctx context.Context, copied *domain.CopiedTrade) error {
	return s.db.WithContext(ctx).Create(copied).Error
}

// UpdateCopiedTrade는 복제 결과를 저장합니다
func (s *Store) UpdateCopiedTrade(ctx context.Context, copied *domain.CopiedTrade) error {
	return s.db.WithContext(ctx).Save(copied).Error
}

// ListCopiesByTrade는 트레이드의 복제 결과 목록을 조회합니다
func (s *Store) ListCopiesByTrade(ctx context.Context, tradeID int64) ([]domain.CopiedTrade, error) {
	var copies []domain.CopiedTrade
	err := s.db.WithContext(ctx).
		Where("original_trade_id = ?", tradeID).
		Find(&copies).Error
	if err != nil {
		return nil, err
	}
	return copies, nil
}

// CountCopiesSince는 기준 시각 이후의 복제 결과 수를 반환합니다
func (s *Store) CountCopiesSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.CopiedTrade{}).
		Where("created_at >= ?", since).Count(&count).Error
	return count, err
}

// AppendHistory는 트레이드 이력을 추가합니다
func (s *Store) AppendHistory(ctx context.Context, history *domain.TradeHistory) error {
	return s.db.WithContext(ctx).Create(history).Error
}

// ListHistoryByTrade는 트레이드의 이력을 최신순으로 조회합니다
func (s *Store) ListHistoryByTrade(ctx context.Context, tradeID int64) ([]domain.TradeHistory, error) {
	var histories []domain.TradeHistory
	err := s.db.WithContext(ctx).
		Where("trade_id = ?", tradeID).
		Order("timestamp DESC").
		Find(&histories).Error
	if err != nil {
		return nil, err
	}
	return histories, nil
}
