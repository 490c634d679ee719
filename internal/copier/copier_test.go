package copier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/assist-by/mirror/internal/domain"
	"github.com/assist-by/mirror/internal/exchange"
	"github.com/assist-by/mirror/internal/storage"
)

// fakeExchange는 테스트용 거래소 구현입니다
type fakeExchange struct {
	mu sync.Mutex

	balance   float64
	balanceOK bool
	price     float64
	priceOK   bool
	minQty    float64
	precision int

	history    []domain.HistoryOrder
	openOrders map[string][]domain.OpenOrder
	positions  map[string][]domain.Position

	failPlace bool
	placed    []domain.OrderRequest
	leverages []int
	orderSeq  int
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		balance:    1000,
		balanceOK:  true,
		price:      100,
		priceOK:    true,
		minQty:     0.001,
		precision:  3,
		openOrders: make(map[string][]domain.OpenOrder),
		positions:  make(map[string][]domain.Position),
	}
}

func (f *fakeExchange) GetBalance(ctx context.Context, coin string) (float64, bool) {
	return f.balance, f.balanceOK
}

func (f *fakeExchange) GetPrice(ctx context.Context, symbol string) (float64, bool) {
	return f.price, f.priceOK
}

func (f *fakeExchange) GetInstrumentInfo(ctx context.Context, symbol string) *domain.InstrumentInfo {
	return nil
}

func (f *fakeExchange) ListInstruments(ctx context.Context) []domain.InstrumentInfo {
	return nil
}

func (f *fakeExchange) GetOrderHistory(ctx context.Context, query domain.OrderHistoryQuery) []domain.HistoryOrder {
	return f.history
}

func (f *fakeExchange) GetOpenOrders(ctx context.Context, symbol string) []domain.OpenOrder {
	return f.openOrders[symbol]
}

func (f *fakeExchange) GetPositions(ctx context.Context, symbol string) []domain.Position {
	return f.positions[symbol]
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req domain.OrderRequest) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, req)
	if f.failPlace {
		return ""
	}
	f.orderSeq++
	return fmt.Sprintf("ORDER-%d", f.orderSeq)
}

func (f *fakeExchange) CancelOrder(ctx context.Context, symbol, orderID string) bool {
	return true
}

func (f *fakeExchange) ModifyOrder(ctx context.Context, symbol, orderID string, changes domain.OrderChanges) bool {
	return true
}

func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leverages = append(f.leverages, leverage)
	return true
}

func (f *fakeExchange) GetQtyPrecision(ctx context.Context, symbol string) int {
	return f.precision
}

func (f *fakeExchange) GetMinOrderQty(ctx context.Context, symbol string) float64 {
	return f.minQty
}

func (f *fakeExchange) FormatQuantity(ctx context.Context, symbol string, qty float64) float64 {
	rounded, _ := decimal.NewFromFloat(qty).Round(int32(f.precision)).Float64()
	return rounded
}

// fakeFactory는 API 키별로 준비된 fakeExchange를 반환합니다
func fakeFactory(clients map[string]*fakeExchange) exchange.Factory {
	return func(apiKey, apiSecret string) exchange.Exchange {
		if client, ok := clients[apiKey]; ok {
			return client
		}
		return newFakeExchange()
	}
}

// memStore는 테스트용 인메모리 storage.Store 구현입니다
type memStore struct {
	mu        sync.Mutex
	masters   []domain.MasterAccount
	followers []domain.FollowerAccount
	trades    []domain.Trade
	copies    []domain.CopiedTrade
	histories []domain.TradeHistory
	nextID    int64

	// findTradeErr가 설정되면 FindTradeByMasterOrder가 해당 에러를 반환합니다
	findTradeErr func(masterID int64, orderID string) error
}

func newMemStore() *memStore {
	return &memStore{nextID: 1}
}

func (s *memStore) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *memStore) CreateMaster(ctx context.Context, account *domain.MasterAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account.ID = s.id()
	account.CreatedAt = time.Now().UTC()
	s.masters = append(s.masters, *account)
	return nil
}

func (s *memStore) CreateFollower(ctx context.Context, account *domain.FollowerAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account.ID = s.id()
	account.CreatedAt = time.Now().UTC()
	s.followers = append(s.followers, *account)
	return nil
}

func (s *memStore) GetMaster(ctx context.Context, id int64) (*domain.MasterAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.masters {
		if s.masters[i].ID == id {
			account := s.masters[i]
			return &account, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *memStore) GetFollower(ctx context.Context, id int64) (*domain.FollowerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.followers {
		if s.followers[i].ID == id {
			account := s.followers[i]
			return &account, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *memStore) ListMasters(ctx context.Context, onlyActive bool) ([]domain.MasterAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.MasterAccount
	for _, account := range s.masters {
		if !onlyActive || account.IsActive {
			result = append(result, account)
		}
	}
	return result, nil
}

func (s *memStore) ListFollowers(ctx context.Context, onlyActive bool) ([]domain.FollowerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.FollowerAccount
	for _, account := range s.followers {
		if !onlyActive || account.IsActive {
			result = append(result, account)
		}
	}
	return result, nil
}

func (s *memStore) UpdateMaster(ctx context.Context, account *domain.MasterAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.masters {
		if s.masters[i].ID == account.ID {
			s.masters[i] = *account
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *memStore) UpdateFollower(ctx context.Context, account *domain.FollowerAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.followers {
		if s.followers[i].ID == account.ID {
			s.followers[i] = *account
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *memStore) DeleteMaster(ctx context.Context, id int64) error {
	return nil
}

func (s *memStore) DeleteFollower(ctx context.Context, id int64) error {
	return nil
}

func (s *memStore) CreateTrade(ctx context.Context, trade *domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade.ID = s.id()
	trade.CreatedAt = time.Now().UTC()
	s.trades = append(s.trades, *trade)
	return nil
}

func (s *memStore) UpdateTrade(ctx context.Context, trade *domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.trades {
		if s.trades[i].ID == trade.ID {
			s.trades[i] = *trade
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *memStore) GetTrade(ctx context.Context, id int64) (*domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.trades {
		if s.trades[i].ID == id {
			trade := s.trades[i]
			return &trade, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *memStore) FindTradeByMasterOrder(ctx context.Context, masterID int64, orderID string) (*domain.Trade, error) {
	if s.findTradeErr != nil {
		if err := s.findTradeErr(masterID, orderID); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.trades {
		if s.trades[i].MasterAccountID == masterID && s.trades[i].MasterOrderID == orderID {
			trade := s.trades[i]
			return &trade, nil
		}
	}
	return nil, nil
}

func (s *memStore) FindPendingTradeBySymbol(ctx context.Context, masterID int64, symbol string) (*domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.trades {
		if s.trades[i].MasterAccountID == masterID && s.trades[i].Symbol == symbol && s.trades[i].Status == domain.TradePending {
			trade := s.trades[i]
			return &trade, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trades := append([]domain.Trade(nil), s.trades...)
	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	return trades, nil
}

func (s *memStore) CountTradesSince(ctx context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, trade := range s.trades {
		if !trade.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *memStore) CreateCopiedTrade(ctx context.Context, copied *domain.CopiedTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied.ID = s.id()
	copied.CreatedAt = time.Now().UTC()
	s.copies = append(s.copies, *copied)
	return nil
}

func (s *memStore) UpdateCopiedTrade(ctx context.Context, copied *domain.CopiedTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.copies {
		if s.copies[i].ID == copied.ID {
			s.copies[i] = *copied
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *memStore) ListCopiesByTrade(ctx context.Context, tradeID int64) ([]domain.CopiedTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.CopiedTrade
	for _, copied := range s.copies {
		if copied.OriginalTradeID == tradeID {
			result = append(result, copied)
		}
	}
	return result, nil
}

func (s *memStore) CountCopiesSince(ctx context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, copied := range s.copies {
		if !copied.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *memStore) AppendHistory(ctx context.Context, history *domain.TradeHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	history.ID = s.id()
	history.Timestamp = time.Now().UTC()
	s.histories = append(s.histories, *history)
	return nil
}

func (s *memStore) ListHistoryByTrade(ctx context.Context, tradeID int64) ([]domain.TradeHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.TradeHistory
	for _, history := range s.histories {
		if history.TradeID == tradeID {
			result = append(result, history)
		}
	}
	return result, nil
}

// hasPositionTrade는 합성 ID로 기록된 포지션 기반 트레이드가 있는지 확인합니다
func (s *memStore) hasPositionTrade(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, trade := range s.trades {
		if strings.HasPrefix(trade.MasterOrderID, "POS-"+symbol+"-") {
			return true
		}
	}
	return false
}
