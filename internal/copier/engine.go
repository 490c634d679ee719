package copier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/assist-by/mirror/internal/domain"
	"github.com/assist-by/mirror/internal/exchange"
	"github.com/assist-by/mirror/internal/notification"
	"github.com/assist-by/mirror/internal/scheduler"
	"github.com/assist-by/mirror/internal/storage"
)

// Options는 엔진의 동작 설정을 정의합니다
type Options struct {
	PollInterval  time.Duration // 정상 주기
	ErrorInterval time.Duration // 사이클 실패 후 주기
	HistoryLimit  int           // 주문 이력 조회 개수
}

// masterState는 마스터 계정별 감시 상태를 보관합니다.
// 영속화되지 않으며, 재시작 시 현재 시각부터 다시 발견합니다.
type masterState struct {
	watermark     int64 // 마지막으로 처리한 체결의 밀리초 타임스탬프
	activeSymbols map[string]struct{}
	carried       map[string]struct{} // 시작 시점에 이월된 심볼 스냅샷
}

// Engine은 마스터 계정을 주기적으로 감시하고 새 거래를 팔로워에 복제합니다.
// 프로세스당 하나의 인스턴스만 실행해야 합니다.
type Engine struct {
	store      storage.Store
	factory    exchange.Factory
	replicator *Replicator
	opts       Options

	mu      sync.Mutex
	running bool
	sched   *scheduler.Scheduler
	cancel  context.CancelFunc
	done    chan struct{}

	states map[int64]*masterState
}

// NewEngine은 새로운 복제 엔진을 생성합니다
func NewEngine(store storage.Store, factory exchange.Factory, notifier notification.Notifier, opts Options) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.ErrorInterval <= 0 {
		opts.ErrorInterval = 10 * time.Second
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}

	return &Engine{
		store:      store,
		factory:    factory,
		replicator: NewReplicator(store, factory, notifier),
		opts:       opts,
		states:     make(map[int64]*masterState),
	}
}

// Start는 감시 루프를 시작합니다. 이미 실행 중이면 아무것도 하지 않습니다.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return
	}
	e.running = true

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.sched = scheduler.NewScheduler(e.opts.PollInterval, e.opts.ErrorInterval, e)
	e.done = make(chan struct{})

	// 활성 마스터의 워터마크를 현재 시각으로 초기화합니다.
	// 엔진은 시작 이후의 거래만 복제합니다.
	e.initStates(ctx)

	go func() {
		defer close(e.done)
		if err := e.sched.Start(ctx); err != nil && err != context.Canceled {
			logrus.Errorf("스케줄러 실행 중 에러 발생: %v", err)
		}
	}()

	logrus.Info("복제 엔진이 시작되었습니다")
}

// Stop은 감시 루프를 중지하고 워커가 완전히 종료될 때까지 대기합니다
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.cancel()
	<-e.done
	e.running = false

	logrus.Info("복제 엔진이 중지되었습니다")
}

// Running은 엔진 실행 여부를 반환합니다
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// initStates는 활성 마스터 계정의 감시 상태를 초기화합니다
func (e *Engine) initStates(ctx context.Context) {
	masters, err := e.store.ListMasters(ctx, true)
	if err != nil {
		logrus.Errorf("마스터 계정 초기화 실패: %v", err)
		return
	}

	now := time.Now().UnixMilli()
	for _, m := range masters {
		e.states[m.ID] = &masterState{
			watermark:     now,
			activeSymbols: make(map[string]struct{}),
			carried:       make(map[string]struct{}),
		}
		logrus.Infof("마스터 계정 %d의 감시를 초기화했습니다", m.ID)
	}
}

// Execute는 scheduler.Task를 구현합니다. 한 번의 감시 사이클을 수행합니다.
func (e *Engine) Execute(ctx context.Context) error {
	return e.runCycle(ctx)
}

// runCycle은 모든 활성 마스터 계정을 한 번씩 감시합니다.
// 마스터 한 명의 에러는 다른 마스터의 감시에 영향을 주지 않습니다.
func (e *Engine) runCycle(ctx context.Context) error {
	masters, err := e.store.ListMasters(ctx, true)
	if err != nil {
		return fmt.Errorf("마스터 계정 목록 조회 실패: %w", err)
	}

	for i := range masters {
		master := &masters[i]
		if err := e.monitorMaster(ctx, master); err != nil {
			logrus.Errorf("마스터 계정 %d 감시 실패: %v", master.ID, err)
		}
	}

	return nil
}

// monitorMaster는 마스터 계정 하나를 감시합니다
func (e *Engine) monitorMaster(ctx context.Context, master *domain.MasterAccount) error {
	state := e.stateFor(master.ID)
	client := e.factory(master.APIKey, master.APISecret)

	// 1. 워터마크 이후의 주문 이력에서 활성 심볼을 발견합니다
	orders := client.GetOrderHistory(ctx, domain.OrderHistoryQuery{
		StartTime: state.watermark,
		Limit:     e.opts.HistoryLimit,
	})

	newWatermark := state.watermark
	for _, order := range orders {
		if order.CreatedTime <= state.watermark {
			continue
		}
		if order.OrderStatus != domain.OrderStatusFilled && order.OrderStatus != domain.OrderStatusPartiallyFilled {
			continue
		}
		if order.Symbol != "" {
			if _, known := state.activeSymbols[order.Symbol]; !known {
				state.activeSymbols[order.Symbol] = struct{}{}
				logrus.Infof("마스터 계정 %d의 새 활성 심볼 발견: %s", master.ID, order.Symbol)
			}
		}
		if order.CreatedTime > newWatermark {
			newWatermark = order.CreatedTime
		}
	}

	// 워터마크는 엄격히 증가할 때만 전진합니다
	if newWatermark > state.watermark {
		state.watermark = newWatermark
	}

	// 2. 활성 심볼(이월 심볼 포함)별로 미체결 주문과 포지션을 감시합니다
	for _, symbol := range state.monitoredSymbols() {
		openOrders := client.GetOpenOrders(ctx, symbol)
		positions := client.GetPositions(ctx, symbol)

		for _, order := range openOrders {
			if err := e.processOrder(ctx, master, order); err != nil {
				logrus.Errorf("주문 처리 실패 [마스터: %d, 주문: %s]: %v", master.ID, order.OrderID, err)
			}
		}

		// 포지션이 모두 청산된 심볼은 감시 대상에서 제거합니다
		live := positions[:0]
		for _, p := range positions {
			if p.Size != 0 {
				live = append(live, p)
			}
		}
		if len(live) == 0 {
			if _, known := state.activeSymbols[symbol]; known {
				delete(state.activeSymbols, symbol)
				logrus.Infof("마스터 계정 %d의 비활성 심볼 제거: %s", master.ID, symbol)
			}
			continue
		}

		for _, position := range live {
			if err := e.processPosition(ctx, master, position); err != nil {
				logrus.Errorf("포지션 처리 실패 [마스터: %d, 심볼: %s]: %v", master.ID, position.Symbol, err)
			}
		}
	}

	return nil
}

// processOrder는 마스터의 미체결 주문을 처리합니다.
// 이미 기록된 주문은 건너뛰고, 새 주문은 트레이드로 기록한 뒤 복제합니다.
func (e *Engine) processOrder(ctx context.Context, master *domain.MasterAccount, order domain.OpenOrder) error {
	existing, err := e.store.FindTradeByMasterOrder(ctx, master.ID, order.OrderID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	trade := &domain.Trade{
		MasterAccountID: master.ID,
		Symbol:          order.Symbol,
		Side:            order.Side,
		OrderType:       order.OrderType,
		Quantity:        order.Qty,
		MasterOrderID:   order.OrderID,
		Status:          domain.TradePending,
	}
	if order.Price > 0 {
		price := order.Price
		trade.Price = &price
	}
	if order.StopLoss > 0 {
		stopLoss := order.StopLoss
		trade.StopLoss = &stopLoss
	}
	if order.TakeProfit > 0 {
		takeProfit := order.TakeProfit
		trade.TakeProfit = &takeProfit
	}

	if err := e.store.CreateTrade(ctx, trade); err != nil {
		return err
	}

	logrus.Infof("새 마스터 거래 감지: %s %s %v", trade.Symbol, trade.Side, trade.Quantity)
	e.replicator.Copy(ctx, trade)
	return nil
}

// processPosition은 마스터의 보유 포지션을 처리합니다.
// 해당 심볼의 대기 중인 트레이드가 없으면 시장가 진입으로 간주하고 복제합니다.
func (e *Engine) processPosition(ctx context.Context, master *domain.MasterAccount, position domain.Position) error {
	pending, err := e.store.FindPendingTradeBySymbol(ctx, master.ID, position.Symbol)
	if err != nil {
		return err
	}
	if pending != nil {
		logrus.Debugf("심볼 %s의 포지션은 이미 추적 중입니다 (크기: %v)", position.Symbol, position.Size)
		return nil
	}

	entryPrice := position.EntryPrice
	trade := &domain.Trade{
		MasterAccountID: master.ID,
		Symbol:          position.Symbol,
		Side:            position.Side,
		OrderType:       domain.Market,
		Quantity:        position.Size,
		Price:           &entryPrice,
		// 포지션에는 거래소 주문 ID가 없으므로 합성 ID를 생성합니다.
		// 주문 기반 감지와는 독립적으로 중복 제거됩니다.
		MasterOrderID: fmt.Sprintf("POS-%s-%s", position.Symbol, uuid.NewString()),
		Status:        domain.TradePending,
	}

	if err := e.store.CreateTrade(ctx, trade); err != nil {
		return err
	}

	logrus.Infof("새 마스터 포지션 감지: %s %s %v", trade.Symbol, trade.Side, trade.Quantity)
	e.replicator.Copy(ctx, trade)
	return nil
}

// stateFor는 마스터의 감시 상태를 반환합니다.
// 실행 중 새로 추가된 마스터는 첫 관측 시각을 워터마크로 시작합니다.
func (e *Engine) stateFor(masterID int64) *masterState {
	state, ok := e.states[masterID]
	if !ok {
		state = &masterState{
			watermark:     time.Now().UnixMilli(),
			activeSymbols: make(map[string]struct{}),
			carried:       make(map[string]struct{}),
		}
		e.states[masterID] = state
		logrus.Infof("마스터 계정 %d의 감시를 초기화했습니다", masterID)
	}
	return state
}

// monitoredSymbols는 활성 심볼과 이월 심볼의 합집합을 반환합니다
func (s *masterState) monitoredSymbols() []string {
	symbols := make([]string, 0, len(s.activeSymbols)+len(s.carried))
	for symbol := range s.activeSymbols {
		symbols = append(symbols, symbol)
	}
	for symbol := range s.carried {
		if _, dup := s.activeSymbols[symbol]; !dup {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}
