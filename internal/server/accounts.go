package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/assist-by/mirror/internal/domain"
	"github.com/assist-by/mirror/internal/storage"
)

// addMasterRequest는 마스터 계정 생성 요청을 정의합니다
type addMasterRequest struct {
	Name      string `json:"name" binding:"required"`
	APIKey    string `json:"api_key" binding:"required"`
	APISecret string `json:"api_secret" binding:"required"`
}

// addFollowerRequest는 팔로워 계정 생성 요청을 정의합니다
type addFollowerRequest struct {
	Name                     string   `json:"name" binding:"required"`
	APIKey                   string   `json:"api_key" binding:"required"`
	APISecret                string   `json:"api_secret" binding:"required"`
	CapitalAllocationPercent *float64 `json:"capital_allocation_percent"`
	MaxLeverage              *int     `json:"max_leverage"`
}

func (s *Server) listMasters(c *gin.Context) {
	accounts, err := s.store.ListMasters(c.Request.Context(), false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"masters": accounts})
}

func (s *Server) listFollowers(c *gin.Context) {
	accounts, err := s.store.ListFollowers(c.Request.Context(), false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"followers": accounts})
}

func (s *Server) addMaster(c *gin.Context) {
	var req addMasterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 자격 증명 검증: 잔고 조회가 실패하면 잘못된 API 키로 간주합니다
	probe := s.factory(req.APIKey, req.APISecret)
	if _, ok := probe.GetBalance(c.Request.Context(), "USDT"); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "API 자격 증명이 유효하지 않습니다"})
		return
	}

	account := &domain.MasterAccount{
		Name:      req.Name,
		APIKey:    req.APIKey,
		APISecret: req.APISecret,
		IsActive:  true,
	}
	if err := s.store.CreateMaster(c.Request.Context(), account); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (s *Server) addFollower(c *gin.Context) {
	var req addFollowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	probe := s.factory(req.APIKey, req.APISecret)
	if _, ok := probe.GetBalance(c.Request.Context(), "USDT"); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "API 자격 증명이 유효하지 않습니다"})
		return
	}

	account := &domain.FollowerAccount{
		Name:                     req.Name,
		APIKey:                   req.APIKey,
		APISecret:                req.APISecret,
		CapitalAllocationPercent: 10,
		MaxLeverage:              10,
		IsActive:                 true,
	}
	if req.CapitalAllocationPercent != nil {
		account.CapitalAllocationPercent = *req.CapitalAllocationPercent
	}
	if req.MaxLeverage != nil {
		account.MaxLeverage = *req.MaxLeverage
	}

	if err := s.store.CreateFollower(c.Request.Context(), account); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (s *Server) toggleAccount(c *gin.Context) {
	accountType, id, ok := s.accountParams(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	switch accountType {
	case domain.MasterAccountType:
		account, err := s.store.GetMaster(ctx, id)
		if err != nil {
			s.accountError(c, err)
			return
		}
		account.IsActive = !account.IsActive
		if err := s.store.UpdateMaster(ctx, account); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"is_active": account.IsActive})

	case domain.FollowerAccountType:
		account, err := s.store.GetFollower(ctx, id)
		if err != nil {
			s.accountError(c, err)
			return
		}
		account.IsActive = !account.IsActive
		if err := s.store.UpdateFollower(ctx, account); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"is_active": account.IsActive})
	}
}

func (s *Server) deleteAccount(c *gin.Context) {
	accountType, id, ok := s.accountParams(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var err error
	if accountType == domain.MasterAccountType {
		err = s.store.DeleteMaster(ctx, id)
	} else {
		err = s.store.DeleteFollower(ctx, id)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) accountBalance(c *gin.Context) {
	accountType, id, ok := s.accountParams(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var apiKey, apiSecret string
	if accountType == domain.MasterAccountType {
		account, err := s.store.GetMaster(ctx, id)
		if err != nil {
			s.accountError(c, err)
			return
		}
		apiKey, apiSecret = account.APIKey, account.APISecret
	} else {
		account, err := s.store.GetFollower(ctx, id)
		if err != nil {
			s.accountError(c, err)
			return
		}
		apiKey, apiSecret = account.APIKey, account.APISecret
	}

	client := s.factory(apiKey, apiSecret)
	balance, ok := client.GetBalance(ctx, "USDT")
	if !ok {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "잔고 조회에 실패했습니다"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "balance": balance})
}

// connections는 활성 계정 전체의 API 연결 상태를 점검합니다
func (s *Server) connections(c *gin.Context) {
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

	total := len(masters) + len(followers)
	connected := 0
	var failed []string

	for _, account := range masters {
		if _, ok := s.factory(account.APIKey, account.APISecret).GetBalance(ctx, "USDT"); ok {
			connected++
		} else {
			failed = append(failed, fmt.Sprintf("마스터: %s", account.Name))
		}
	}
	for _, account := range followers {
		if _, ok := s.factory(account.APIKey, account.APISecret).GetBalance(ctx, "USDT"); ok {
			connected++
		} else {
			failed = append(failed, fmt.Sprintf("팔로워: %s", account.Name))
		}
	}

	var status, message string
	switch {
	case total == 0:
		status = "no_accounts"
		message = "등록된 계정이 없습니다"
	case connected == total:
		status = "all_connected"
		message = fmt.Sprintf("계정 %d개 모두 연결되었습니다", total)
	case connected > 0:
		status = "partial_connected"
		message = fmt.Sprintf("계정 %d개 중 %d개가 연결되었습니다", total, connected)
	default:
		status = "none_connected"
		message = "연결된 계정이 없습니다"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":             status,
		"message":            message,
		"total_accounts":     total,
		"connected_accounts": connected,
		"failed_connections": failed,
	})
}

// accountParams는 경로에서 계정 타입과 ID를 파싱합니다
func (s *Server) accountParams(c *gin.Context) (domain.AccountType, int64, bool) {
	accountType := domain.AccountType(c.Param("type"))
	if accountType != domain.MasterAccountType && accountType != domain.FollowerAccountType {
		c.JSON(http.StatusBadRequest, gin.H{"error": "계정 타입은 master 또는 follower이어야 합니다"})
		return "", 0, false
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "계정 ID가 유효하지 않습니다"})
		return "", 0, false
	}

	return accountType, id, true
}

func (s *Server) accountError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "계정을 찾을 수 없습니다"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
