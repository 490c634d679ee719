package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/assist-by/mirror/internal/domain"
	"github.com/assist-by/mirror/internal/storage"
)

// modifyOrderRequest는 주문 수정 요청을 정의합니다. 생략한 필드는 변경하지 않습니다.
type modifyOrderRequest struct {
	Price      *float64 `json:"price"`
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
}

func (s *Server) dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	masters, err := s.store.ListMasters(ctx, true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	followers, err := s.store.ListFollowers(ctx, true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	recentTrades, err := s.store.CountTradesSince(ctx, since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	recentCopies, err := s.store.CountCopiesSince(ctx, since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	latest, err := s.store.ListTrades(ctx, 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"master_accounts":   len(masters),
		"follower_accounts": len(followers),
		"recent_trades":     recentTrades,
		"recent_copied":     recentCopies,
		"latest_trades":     latest,
		"copier_running":    s.copier.Running(),
	})
}

func (s *Server) listTrades(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit이 유효하지 않습니다"})
			return
		}
		limit = parsed
	}

	trades, err := s.store.ListTrades(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) tradeDetail(c *gin.Context) {
	trade, ok := s.tradeFromPath(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	copies, err := s.store.ListCopiesByTrade(ctx, trade.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	history, err := s.store.ListHistoryByTrade(ctx, trade.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trade":         trade,
		"copied_trades": copies,
		"trade_history": history,
	})
}

// modifyOrder는 마스터 주문을 수정하고 성공 시 팔로워 주문에도 전파합니다
func (s *Server) modifyOrder(c *gin.Context) {
	trade, ok := s.tradeFromPath(c)
	if !ok {
		return
	}

	var req modifyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	master, err := s.store.GetMaster(ctx, trade.MasterAccountID)
	if err != nil {
		s.accountError(c, err)
		return
	}

	changes := domain.OrderChanges{}
	if req.Price != nil {
		changes.Price = *req.Price
	}
	if req.StopLoss != nil {
		changes.StopLoss = *req.StopLoss
	}
	if req.TakeProfit != nil {
		changes.TakeProfit = *req.TakeProfit
	}

	client := s.factory(master.APIKey, master.APISecret)
	if !client.ModifyOrder(ctx, trade.Symbol, trade.MasterOrderID, changes) {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "주문 수정에 실패했습니다"})
		return
	}

	// 트레이드 레코드 갱신
	if req.Price != nil {
		trade.Price = req.Price
	}
	if req.StopLoss != nil {
		trade.StopLoss = req.StopLoss
	}
	if req.TakeProfit != nil {
		trade.TakeProfit = req.TakeProfit
	}
	if err := s.store.UpdateTrade(ctx, trade); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// 팔로워 주문에 전파
	copies, err := s.store.ListCopiesByTrade(ctx, trade.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for i := range copies {
		copied := &copies[i]
		if copied.FollowerOrderID == "" {
			continue
		}
		follower, err := s.store.GetFollower(ctx, copied.FollowerAccountID)
		if err != nil {
			logrus.Errorf("팔로워 %d 조회 실패: %v", copied.FollowerAccountID, err)
			continue
		}
		followerClient := s.factory(follower.APIKey, follower.APISecret)
		followerClient.ModifyOrder(ctx, trade.Symbol, copied.FollowerOrderID, changes)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// cancelOrder는 마스터 주문을 취소하고 성공 시 팔로워 주문에도 전파합니다
func (s *Server) cancelOrder(c *gin.Context) {
	trade, ok := s.tradeFromPath(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	master, err := s.store.GetMaster(ctx, trade.MasterAccountID)
	if err != nil {
		s.accountError(c, err)
		return
	}

	client := s.factory(master.APIKey, master.APISecret)
	if !client.CancelOrder(ctx, trade.Symbol, trade.MasterOrderID) {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "주문 취소에 실패했습니다"})
		return
	}

	trade.Status = domain.TradeCancelled
	if err := s.store.UpdateTrade(ctx, trade); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	copies, err := s.store.ListCopiesByTrade(ctx, trade.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for i := range copies {
		copied := &copies[i]
		if copied.FollowerOrderID == "" {
			continue
		}
		follower, err := s.store.GetFollower(ctx, copied.FollowerAccountID)
		if err != nil {
			logrus.Errorf("팔로워 %d 조회 실패: %v", copied.FollowerAccountID, err)
			continue
		}
		followerClient := s.factory(follower.APIKey, follower.APISecret)
		if followerClient.CancelOrder(ctx, trade.Symbol, copied.FollowerOrderID) {
			copied.Status = domain.TradeCancelled
			if err := s.store.UpdateCopiedTrade(ctx, copied); err != nil {
				logrus.Errorf("복제 결과 갱신 실패: %v", err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) copierStatus(c *gin.Context) {
	running := s.copier.Running()
	status := "stopped"
	if running {
		status = "running"
	}
	c.JSON(http.StatusOK, gin.H{"running": running, "status": status})
}

func (s *Server) startCopier(c *gin.Context) {
	s.copier.Start()
	c.JSON(http.StatusOK, gin.H{"running": true})
}

func (s *Server) stopCopier(c *gin.Context) {
	s.copier.Stop()
	c.JSON(http.StatusOK, gin.H{"running": false})
}

func (s *Server) instruments(c *gin.Context) {
	// 거래 메타데이터 조회는 공개 API이므로 자격 증명이 필요 없습니다
	client := s.factory("", "")
	list := client.ListInstruments(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"instruments": list})
}

func (s *Server) tradeFromPath(c *gin.Context) (*domain.Trade, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "트레이드 ID가 유효하지 않습니다"})
		return nil, false
	}

	trade, err := s.store.GetTrade(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "트레이드를 찾을 수 없습니다"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}

	return trade, true
}
