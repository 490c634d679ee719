package copier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/mirror/internal/domain"
)

// newTestReplicator는 팔로워 1명이 등록된 Replicator를 생성합니다
func newTestReplicator(t *testing.T, follower *domain.FollowerAccount) (*Replicator, *memStore, *fakeExchange) {
	t.Helper()

	store := newMemStore()
	require.NoError(t, store.CreateFollower(context.Background(), follower))

	client := newFakeExchange()
	replicator := NewReplicator(store, fakeFactory(map[string]*fakeExchange{
		follower.APIKey: client,
	}), nil)

	return replicator, store, client
}

func marketTrade() *domain.Trade {
	return &domain.Trade{
		ID:              1,
		MasterAccountID: 1,
		Symbol:          "BTCUSDT",
		Side:            domain.Buy,
		OrderType:       domain.Market,
		Quantity:        1,
		MasterOrderID:   "M1",
		Status:          domain.TradePending,
		Leverage:        1,
	}
}

func TestReplicator_ProportionalSizing(t *testing.T) {
	replicator, store, client := newTestReplicator(t, &domain.FollowerAccount{
		Name: "팔로워", APIKey: "follower-key", APISecret: "secret",
		CapitalAllocationPercent: 10, MaxLeverage: 10, IsActive: true,
	})

	// 잔고 1000, 할당 10%, 마스터 수량 1, 가격 100 ⇒ (100 / 100) * 1 = 1.0
	replicator.Copy(context.Background(), marketTrade())

	require.Len(t, client.placed, 1)
	assert.InDelta(t, 1.0, client.placed[0].Quantity, 1e-9)
	assert.Equal(t, domain.Buy, client.placed[0].Side)
	assert.Equal(t, domain.Market, client.placed[0].OrderType)

	require.Len(t, store.copies, 1)
	assert.Equal(t, domain.TradeExecuted, store.copies[0].Status)
	assert.NotEmpty(t, store.copies[0].FollowerOrderID)
	require.NotNil(t, store.copies[0].ExecutedAt)
	require.Len(t, store.histories, 1)
	assert.Equal(t, domain.ActionOpened, store.histories[0].Action)
}

func TestReplicator_MinQtyClamp(t *testing.T) {
	replicator, _, client := newTestReplicator(t, &domain.FollowerAccount{
		Name: "팔로워", APIKey: "follower-key", APISecret: "secret",
		CapitalAllocationPercent: 10, MaxLeverage: 10, IsActive: true,
	})
	client.balance = 100
	client.price = 100000

	// 할당 10, 명목 가치 100 ⇒ 원 수량 0.0001.
	// 자릿수 3의 반올림만으로는 0이 되므로 최소 수량 보정이 있어야 0.001이 됩니다.
	trade := marketTrade()
	trade.Quantity = 0.001
	replicator.Copy(context.Background(), trade)

	require.Len(t, client.placed, 1)
	assert.InDelta(t, 0.001, client.placed[0].Quantity, 1e-9)
}

func TestReplicator_LeverageClamp(t *testing.T) {
	replicator, _, client := newTestReplicator(t, &domain.FollowerAccount{
		Name: "팔로워", APIKey: "follower-key", APISecret: "secret",
		CapitalAllocationPercent: 10, MaxLeverage: 3, IsActive: true,
	})

	// 마스터 레버리지 5는 팔로워 상한 3으로 잘립니다
	trade := marketTrade()
	trade.Leverage = 5
	replicator.Copy(context.Background(), trade)

	require.Len(t, client.placed, 1)
	assert.Equal(t, 3, client.placed[0].Leverage)

	// 레버리지 0은 1로 보정됩니다
	client.placed = nil
	trade = marketTrade()
	trade.Leverage = 0
	replicator.Copy(context.Background(), trade)

	require.Len(t, client.placed, 1)
	assert.Equal(t, 1, client.placed[0].Leverage)
}

func TestReplicator_LimitPriceReference(t *testing.T) {
	replicator, _, client := newTestReplicator(t, &domain.FollowerAccount{
		Name: "팔로워", APIKey: "follower-key", APISecret: "secret",
		CapitalAllocationPercent: 10, MaxLeverage: 10, IsActive: true,
	})

	// Limit 주문은 지정가 기준으로 명목 가치를 계산합니다: (100 / 200) * 1 = 0.5
	trade := marketTrade()
	trade.OrderType = domain.Limit
	limitPrice := 200.0
	trade.Price = &limitPrice
	replicator.Copy(context.Background(), trade)

	require.Len(t, client.placed, 1)
	assert.InDelta(t, 0.5, client.placed[0].Quantity, 1e-9)
	assert.InDelta(t, 200, client.placed[0].Price, 1e-9)
}

func TestReplicator_FollowerIsolation(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	require.NoError(t, store.CreateFollower(ctx, &domain.FollowerAccount{
		Name: "실패 팔로워", APIKey: "broken-key", APISecret: "secret",
		CapitalAllocationPercent: 10, MaxLeverage: 10, IsActive: true,
	}))
	require.NoError(t, store.CreateFollower(ctx, &domain.FollowerAccount{
		Name: "정상 팔로워", APIKey: "healthy-key", APISecret: "secret",
		CapitalAllocationPercent: 10, MaxLeverage: 10, IsActive: true,
	}))

	broken := newFakeExchange()
	broken.balanceOK = false
	healthy := newFakeExchange()

	replicator := NewReplicator(store, fakeFactory(map[string]*fakeExchange{
		"broken-key":  broken,
		"healthy-key": healthy,
	}), nil)

	replicator.Copy(ctx, marketTrade())

	// 잔고 조회에 실패한 팔로워는 건너뛰고 나머지는 정상 복제됩니다
	assert.Empty(t, broken.placed)
	require.Len(t, healthy.placed, 1)
	require.Len(t, store.copies, 1)
	assert.Equal(t, domain.TradeExecuted, store.copies[0].Status)
}

func TestReplicator_PlaceOrderFailure(t *testing.T) {
	replicator, store, client := newTestReplicator(t, &domain.FollowerAccount{
		Name: "팔로워", APIKey: "follower-key", APISecret: "secret",
		CapitalAllocationPercent: 10, MaxLeverage: 10, IsActive: true,
	})
	client.failPlace = true

	replicator.Copy(context.Background(), marketTrade())

	// 주문 실패도 실패한 복제 결과와 히스토리로 기록됩니다
	require.Len(t, store.copies, 1)
	assert.Equal(t, domain.TradeFailed, store.copies[0].Status)
	assert.Empty(t, store.copies[0].FollowerOrderID)
	assert.Equal(t, ErrOrderPlacementFail.Error(), store.copies[0].ErrorMessage)
	assert.Nil(t, store.copies[0].ExecutedAt)
	assert.Len(t, store.histories, 1)
}

func TestReplicator_SkipsWithoutRecords(t *testing.T) {
	cases := []struct {
		name  string
		setup func(client *fakeExchange)
	}{
		{"잔고 조회 실패", func(client *fakeExchange) { client.balanceOK = false }},
		{"잔고 0", func(client *fakeExchange) { client.balance = 0 }},
		{"가격 조회 실패", func(client *fakeExchange) { client.priceOK = false }},
		{"가격 0", func(client *fakeExchange) { client.price = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			replicator, store, client := newTestReplicator(t, &domain.FollowerAccount{
				Name: "팔로워", APIKey: "follower-key", APISecret: "secret",
				CapitalAllocationPercent: 10, MaxLeverage: 10, IsActive: true,
			})
			tc.setup(client)

			replicator.Copy(context.Background(), marketTrade())

			// 계산에 필요한 값을 얻지 못하면 아무것도 기록하지 않습니다
			assert.Empty(t, client.placed)
			assert.Empty(t, store.copies)
			assert.Empty(t, store.histories)
		})
	}
}
