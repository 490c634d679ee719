package copier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/mirror/internal/domain"
)

// newTestEngine은 마스터 1명과 팔로워 1명이 등록된 엔진을 생성합니다
func newTestEngine(t *testing.T) (*Engine, *memStore, *fakeExchange, *fakeExchange) {
	t.Helper()

	store := newMemStore()
	ctx := context.Background()

	require.NoError(t, store.CreateMaster(ctx, &domain.MasterAccount{
		Name: "마스터", APIKey: "master-key", APISecret: "secret", IsActive: true,
	}))
	require.NoError(t, store.CreateFollower(ctx, &domain.FollowerAccount{
		Name: "팔로워", APIKey: "follower-key", APISecret: "secret",
		CapitalAllocationPercent: 10, MaxLeverage: 10, IsActive: true,
	}))

	masterClient := newFakeExchange()
	followerClient := newFakeExchange()

	engine := NewEngine(store, fakeFactory(map[string]*fakeExchange{
		"master-key":   masterClient,
		"follower-key": followerClient,
	}), nil, Options{})

	return engine, store, masterClient, followerClient
}

func TestEngine_OrderDetection(t *testing.T) {
	engine, store, masterClient, followerClient := newTestEngine(t)
	ctx := context.Background()

	future := time.Now().UnixMilli() + 60000
	masterClient.history = []domain.HistoryOrder{
		{OrderID: "H1", Symbol: "BTCUSDT", Side: domain.Buy, OrderType: domain.Market,
			Qty: 1, OrderStatus: domain.OrderStatusFilled, CreatedTime: future},
	}
	masterClient.openOrders["BTCUSDT"] = []domain.OpenOrder{
		{OrderID: "O1", Symbol: "BTCUSDT", Side: domain.Buy, OrderType: domain.Limit,
			Qty: 1, Price: 100, OrderStatus: domain.OrderStatusNew, CreatedTime: future},
	}
	masterClient.positions["BTCUSDT"] = []domain.Position{
		{Symbol: "BTCUSDT", Side: domain.Buy, Size: 1, EntryPrice: 100},
	}

	require.NoError(t, engine.runCycle(ctx))

	// 주문 기반 트레이드 1건과 복제 결과 1건이 기록되어야 합니다
	require.Len(t, store.trades, 1)
	trade := store.trades[0]
	assert.Equal(t, "O1", trade.MasterOrderID)
	assert.Equal(t, domain.TradePending, trade.Status)
	require.Len(t, store.copies, 1)
	assert.Equal(t, domain.TradeExecuted, store.copies[0].Status)

	// 비례 수량: 잔고 1000, 할당 10%, 마스터 수량 1, 가격 100 ⇒ 1.0
	require.Len(t, followerClient.placed, 1)
	assert.InDelta(t, 1.0, followerClient.placed[0].Quantity, 1e-9)

	// 대기 중인 트레이드가 있으므로 포지션 기반 합성 트레이드는 생기지 않습니다
	assert.False(t, store.hasPositionTrade("BTCUSDT"))

	// 같은 사이클을 반복해도 새 트레이드나 복제가 생기지 않아야 합니다 (멱등성)
	require.NoError(t, engine.runCycle(ctx))
	assert.Len(t, store.trades, 1)
	assert.Len(t, store.copies, 1)
}

func TestEngine_WatermarkAdvance(t *testing.T) {
	engine, _, masterClient, _ := newTestEngine(t)
	ctx := context.Background()

	before := time.Now().UnixMilli()
	first := before + 60000
	second := before + 120000
	masterClient.history = []domain.HistoryOrder{
		{OrderID: "H1", Symbol: "BTCUSDT", OrderStatus: domain.OrderStatusFilled, CreatedTime: first},
		{OrderID: "H2", Symbol: "ETHUSDT", OrderStatus: domain.OrderStatusPartiallyFilled, CreatedTime: second},
		// 미체결 주문은 워터마크를 전진시키지 않습니다
		{OrderID: "H3", Symbol: "XRPUSDT", OrderStatus: domain.OrderStatusNew, CreatedTime: second + 1000},
	}
	// 포지션이 없는 심볼은 같은 사이클에 제거되므로 살아 있는 포지션을 둡니다
	masterClient.positions["BTCUSDT"] = []domain.Position{
		{Symbol: "BTCUSDT", Side: domain.Buy, Size: 1, EntryPrice: 100},
	}
	masterClient.positions["ETHUSDT"] = []domain.Position{
		{Symbol: "ETHUSDT", Side: domain.Buy, Size: 2, EntryPrice: 100},
	}

	require.NoError(t, engine.runCycle(ctx))

	state := engine.states[1]
	require.NotNil(t, state)
	assert.Equal(t, second, state.watermark)
	assert.Contains(t, state.activeSymbols, "BTCUSDT")
	assert.Contains(t, state.activeSymbols, "ETHUSDT")
	assert.NotContains(t, state.activeSymbols, "XRPUSDT")

	// 이미 처리한 체결만 남아 있으면 워터마크는 그대로 유지됩니다
	require.NoError(t, engine.runCycle(ctx))
	assert.Equal(t, second, state.watermark)
}

func TestEngine_SymbolEviction(t *testing.T) {
	engine, _, masterClient, _ := newTestEngine(t)
	ctx := context.Background()

	future := time.Now().UnixMilli() + 60000
	masterClient.history = []domain.HistoryOrder{
		{OrderID: "H1", Symbol: "BTCUSDT", OrderStatus: domain.OrderStatusFilled, CreatedTime: future},
	}
	masterClient.positions["BTCUSDT"] = []domain.Position{
		{Symbol: "BTCUSDT", Side: domain.Buy, Size: 1, EntryPrice: 100},
	}

	require.NoError(t, engine.runCycle(ctx))
	state := engine.states[1]
	require.Contains(t, state.activeSymbols, "BTCUSDT")

	// 포지션이 모두 청산되면 심볼이 감시 대상에서 제거됩니다
	masterClient.history = nil
	masterClient.positions["BTCUSDT"] = []domain.Position{
		{Symbol: "BTCUSDT", Side: domain.Buy, Size: 0},
	}

	require.NoError(t, engine.runCycle(ctx))
	assert.NotContains(t, state.activeSymbols, "BTCUSDT")
}

func TestEngine_PositionDetection(t *testing.T) {
	engine, store, masterClient, _ := newTestEngine(t)
	ctx := context.Background()

	future := time.Now().UnixMilli() + 60000
	masterClient.history = []domain.HistoryOrder{
		{OrderID: "H1", Symbol: "BTCUSDT", OrderStatus: domain.OrderStatusFilled, CreatedTime: future},
	}
	masterClient.positions["BTCUSDT"] = []domain.Position{
		{Symbol: "BTCUSDT", Side: domain.Sell, Size: 0.5, EntryPrice: 200, Leverage: 5},
	}

	require.NoError(t, engine.runCycle(ctx))

	// 미체결 주문이 없으므로 포지션이 합성 트레이드로 기록됩니다
	require.Len(t, store.trades, 1)
	trade := store.trades[0]
	assert.True(t, store.hasPositionTrade("BTCUSDT"))
	assert.Equal(t, domain.Market, trade.OrderType)
	assert.Equal(t, domain.Sell, trade.Side)
	assert.InDelta(t, 0.5, trade.Quantity, 1e-9)
	require.NotNil(t, trade.Price)
	assert.InDelta(t, 200, *trade.Price, 1e-9)

	// 대기 중인 트레이드가 남아 있는 동안에는 같은 포지션을 다시 기록하지 않습니다
	require.NoError(t, engine.runCycle(ctx))
	assert.Len(t, store.trades, 1)
}

func TestEngine_MasterIsolation(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	require.NoError(t, store.CreateMaster(ctx, &domain.MasterAccount{
		Name: "마스터1", APIKey: "master-key-1", APISecret: "secret", IsActive: true,
	}))
	require.NoError(t, store.CreateMaster(ctx, &domain.MasterAccount{
		Name: "마스터2", APIKey: "master-key-2", APISecret: "secret", IsActive: true,
	}))
	require.NoError(t, store.CreateFollower(ctx, &domain.FollowerAccount{
		Name: "팔로워", APIKey: "follower-key", APISecret: "secret",
		CapitalAllocationPercent: 10, MaxLeverage: 10, IsActive: true,
	}))

	// 첫 번째 마스터의 트레이드 조회만 실패하도록 합니다
	store.findTradeErr = func(masterID int64, orderID string) error {
		if masterID == 1 {
			return errors.New("트레이드 조회 실패")
		}
		return nil
	}

	future := time.Now().UnixMilli() + 60000
	first := newFakeExchange()
	first.history = []domain.HistoryOrder{
		{OrderID: "A1", Symbol: "BTCUSDT", OrderStatus: domain.OrderStatusFilled, CreatedTime: future},
	}
	first.openOrders["BTCUSDT"] = []domain.OpenOrder{
		{OrderID: "A1", Symbol: "BTCUSDT", Side: domain.Buy, OrderType: domain.Limit,
			Qty: 1, Price: 100, OrderStatus: domain.OrderStatusNew, CreatedTime: future},
	}

	second := newFakeExchange()
	second.history = []domain.HistoryOrder{
		{OrderID: "B1", Symbol: "ETHUSDT", OrderStatus: domain.OrderStatusFilled, CreatedTime: future},
	}
	second.openOrders["ETHUSDT"] = []domain.OpenOrder{
		{OrderID: "B1", Symbol: "ETHUSDT", Side: domain.Sell, OrderType: domain.Limit,
			Qty: 1, Price: 100, OrderStatus: domain.OrderStatusNew, CreatedTime: future},
	}

	engine := NewEngine(store, fakeFactory(map[string]*fakeExchange{
		"master-key-1": first,
		"master-key-2": second,
	}), nil, Options{})

	// 한 마스터의 에러가 다른 마스터의 감시를 막지 않습니다
	require.NoError(t, engine.runCycle(ctx))

	require.Len(t, store.trades, 1)
	assert.Equal(t, int64(2), store.trades[0].MasterAccountID)
	assert.Equal(t, "B1", store.trades[0].MasterOrderID)
	require.Len(t, store.copies, 1)
	assert.Equal(t, domain.TradeExecuted, store.copies[0].Status)
}

func TestEngine_StartStop(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	assert.False(t, engine.Running())

	engine.Start()
	assert.True(t, engine.Running())

	// Start는 멱등합니다
	engine.Start()
	assert.True(t, engine.Running())

	// Stop은 워커가 종료될 때까지 대기합니다
	engine.Stop()
	assert.False(t, engine.Running())

	// 중지 상태에서의 Stop은 아무것도 하지 않습니다
	engine.Stop()
	assert.False(t, engine.Running())
}
