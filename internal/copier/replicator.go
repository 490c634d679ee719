package copier

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/assist-by/mirror/internal/domain"
	"github.com/assist-by/mirror/internal/exchange"
	"github.com/assist-by/mirror/internal/notification"
	"github.com/assist-by/mirror/internal/storage"
)

// Replicator는 마스터 트레이드를 활성 팔로워 전체에 복제합니다.
// 팔로워 한 명의 실패는 다른 팔로워의 복제에 영향을 주지 않습니다.
type Replicator struct {
	store    storage.Store
	factory  exchange.Factory
	notifier notification.Notifier
}

// NewReplicator는 새로운 Replicator를 생성합니다
func NewReplicator(store storage.Store, factory exchange.Factory, notifier notification.Notifier) *Replicator {
	return &Replicator{
		store:    store,
		factory:  factory,
		notifier: notifier,
	}
}

// Copy는 트레이드를 모든 활성 팔로워에 복제합니다
func (r *Replicator) Copy(ctx context.Context, trade *domain.Trade) {
	followers, err := r.store.ListFollowers(ctx, true)
	if err != nil {
		logrus.Errorf("팔로워 목록 조회 실패: %v", err)
		return
	}

	for i := range followers {
		follower := &followers[i]
		if err := r.copyToFollower(ctx, trade, follower); err != nil {
			copyErr := NewCopyError(follower.ID, trade.Symbol, "복제", err)
			logrus.Error(copyErr)
			r.recordFailure(ctx, trade, follower, err)
			r.notifyError(copyErr)
		}
	}
}

// copyToFollower는 트레이드를 팔로워 한 명에게 복제합니다.
// 잔고나 가격을 얻지 못하면 아무것도 기록하지 않고 건너뜁니다.
func (r *Replicator) copyToFollower(ctx context.Context, trade *domain.Trade, follower *domain.FollowerAccount) error {
	client := r.factory(follower.APIKey, follower.APISecret)

	balance, ok := client.GetBalance(ctx, "USDT")
	if !ok || balance <= 0 {
		logrus.Warnf("팔로워 %d의 잔고가 부족하거나 조회에 실패했습니다", follower.ID)
		return nil
	}

	// 할당 자본 = 잔고 * 할당 비율
	allocation := balance * (follower.CapitalAllocationPercent / 100.0)

	price, ok := client.GetPrice(ctx, trade.Symbol)
	if !ok {
		logrus.Errorf("%s의 가격을 조회하지 못했습니다", trade.Symbol)
		return nil
	}

	// 마스터 주문의 명목 가치: Limit 주문은 지정가, Market 주문은 현재가 기준
	var notional float64
	if trade.OrderType == domain.Market {
		notional = trade.Quantity * price
	} else {
		reference := price
		if trade.Price != nil && *trade.Price > 0 {
			reference = *trade.Price
		}
		notional = trade.Quantity * reference
	}

	if notional <= 0 {
		logrus.Errorf("명목 가치 계산이 유효하지 않습니다 [심볼: %s]", trade.Symbol)
		return nil
	}

	// 할당 자본에 비례하는 수량 계산
	quantity := (allocation / notional) * trade.Quantity

	// 최소 수량 및 자릿수 제약 적용
	if minQty := client.GetMinOrderQty(ctx, trade.Symbol); quantity < minQty {
		logrus.Warnf("계산된 수량 %.8f이 최소 수량 %.8f보다 작아 최소 수량으로 보정합니다", quantity, minQty)
		quantity = minQty
	}
	quantity = client.FormatQuantity(ctx, trade.Symbol, quantity)

	// 레버리지는 마스터와 팔로워 상한 중 작은 값
	leverage := trade.Leverage
	if leverage < 1 {
		leverage = 1
	}
	if leverage > follower.MaxLeverage {
		leverage = follower.MaxLeverage
	}

	req := domain.OrderRequest{
		Symbol:    trade.Symbol,
		Side:      trade.Side,
		OrderType: trade.OrderType,
		Quantity:  quantity,
		Leverage:  leverage,
	}
	if trade.Price != nil {
		req.Price = *trade.Price
	}
	if trade.StopLoss != nil {
		req.StopLoss = *trade.StopLoss
	}
	if trade.TakeProfit != nil {
		req.TakeProfit = *trade.TakeProfit
	}

	orderID := client.PlaceOrder(ctx, req)

	copied := &domain.CopiedTrade{
		OriginalTradeID:   trade.ID,
		FollowerAccountID: follower.ID,
		FollowerOrderID:   orderID,
		Quantity:          quantity,
		Price:             trade.Price,
	}
	if orderID != "" {
		copied.Status = domain.TradeExecuted
		now := time.Now().UTC()
		copied.ExecutedAt = &now
	} else {
		copied.Status = domain.TradeFailed
		copied.ErrorMessage = ErrOrderPlacementFail.Error()
	}

	if err := r.store.CreateCopiedTrade(ctx, copied); err != nil {
		return err
	}

	history := &domain.TradeHistory{
		TradeID:     trade.ID,
		AccountType: domain.FollowerAccountType,
		AccountID:   follower.ID,
		Action:      domain.ActionOpened,
		Details:     copyDetails(trade.Symbol, trade.Side, quantity),
	}
	if err := r.store.AppendHistory(ctx, history); err != nil {
		return err
	}

	if orderID != "" {
		logrus.Infof("팔로워 %d에 복제 완료 [주문 ID: %s]", follower.ID, orderID)
	} else {
		logrus.Errorf("팔로워 %d에 복제 실패 [심볼: %s]", follower.ID, trade.Symbol)
	}

	r.notifyResult(notification.CopyResult{
		Symbol:       trade.Symbol,
		Side:         trade.Side,
		OrderType:    trade.OrderType,
		Quantity:     quantity,
		Leverage:     leverage,
		FollowerName: follower.Name,
		OrderID:      orderID,
		Success:      orderID != "",
	})

	return nil
}

// recordFailure는 복제 과정에서 발생한 에러를 실패한 복제 결과로 기록합니다
func (r *Replicator) recordFailure(ctx context.Context, trade *domain.Trade, follower *domain.FollowerAccount, cause error) {
	copied := &domain.CopiedTrade{
		OriginalTradeID:   trade.ID,
		FollowerAccountID: follower.ID,
		Quantity:          0,
		Status:            domain.TradeFailed,
		ErrorMessage:      cause.Error(),
	}
	if err := r.store.CreateCopiedTrade(ctx, copied); err != nil {
		logrus.Errorf("실패한 복제 결과 기록 실패: %v", err)
	}
}

func (r *Replicator) notifyResult(result notification.CopyResult) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.SendCopyResult(result); err != nil {
		logrus.Errorf("복제 결과 알림 전송 실패: %v", err)
	}
}

func (r *Replicator) notifyError(err error) {
	if r.notifier == nil {
		return
	}
	if sendErr := r.notifier.SendError(err); sendErr != nil {
		logrus.Errorf("에러 알림 전송 실패: %v", sendErr)
	}
}

func copyDetails(symbol string, side domain.OrderSide, quantity float64) string {
	return fmt.Sprintf("복제 주문: %s %s %s", symbol, side, strconv.FormatFloat(quantity, 'f', -1, 64))
}
