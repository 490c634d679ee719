package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/assist-by/mirror/internal/exchange"
	"github.com/assist-by/mirror/internal/storage"
)

// Copier는 서버가 제어하는 복제 엔진의 수명주기를 정의합니다
type Copier interface {
	Start()
	Stop()
	Running() bool
}

// Server는 JSON 컨트롤 API를 구현합니다
type Server struct {
	store   storage.Store
	factory exchange.Factory
	copier  Copier
	router  *gin.Engine
}

// New는 새로운 컨트롤 API 서버를 생성합니다
func New(store storage.Store, factory exchange.Factory, copier Copier) *Server {
	s := &Server{
		store:   store,
		factory: factory,
		copier:  copier,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.GET("/dashboard", s.dashboard)

		api.GET("/masters", s.listMasters)
		api.POST("/masters", s.addMaster)
		api.GET("/followers", s.listFollowers)
		api.POST("/followers", s.addFollower)
		api.POST("/accounts/:type/:id/toggle", s.toggleAccount)
		api.DELETE("/accounts/:type/:id", s.deleteAccount)
		api.GET("/accounts/:type/:id/balance", s.accountBalance)

		api.GET("/trades", s.listTrades)
		api.GET("/trades/:id", s.tradeDetail)
		api.POST("/trades/:id/modify", s.modifyOrder)
		api.POST("/trades/:id/cancel", s.cancelOrder)

		api.GET("/copier/status", s.copierStatus)
		api.POST("/copier/start", s.startCopier)
		api.POST("/copier/stop", s.stopCopier)

		api.GET("/connections", s.connections)
		api.GET("/instruments", s.instruments)
	}

	s.router = router
	return s
}

// Handler는 HTTP 핸들러를 반환합니다
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run은 지정한 주소에서 서버를 실행합니다
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
