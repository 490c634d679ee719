package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	osSignal "os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/assist-by/mirror/internal/config"
	"github.com/assist-by/mirror/internal/copier"
	"github.com/assist-by/mirror/internal/exchange"
	"github.com/assist-by/mirror/internal/exchange/bybit"
	"github.com/assist-by/mirror/internal/logger"
	"github.com/assist-by/mirror/internal/notification/discord"
	"github.com/assist-by/mirror/internal/server"
	"github.com/assist-by/mirror/internal/storage/sqlite"
)

func main() {
	// 설정 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("설정 로드 실패: %v", err)
	}

	// 로거 초기화
	if err := logger.Init(cfg); err != nil {
		logrus.Fatalf("로거 초기화 실패: %v", err)
	}

	logrus.Info("트레이드 복제 서비스 시작...")

	// 데이터베이스 열기
	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logrus.Fatalf("데이터베이스 초기화 실패: %v", err)
	}

	// Discord 클라이언트 생성 (웹훅이 비어 있으면 알림은 전송되지 않습니다)
	discordClient := discord.NewClient(
		cfg.Discord.TradeWebhook,
		cfg.Discord.ErrorWebhook,
		cfg.Discord.InfoWebhook,
		discord.WithTimeout(10*time.Second),
	)

	// 계정별 거래소 클라이언트 팩토리
	factory := exchange.Factory(func(apiKey, apiSecret string) exchange.Exchange {
		return bybit.NewClient(
			apiKey,
			apiSecret,
			bybit.WithBaseURL(cfg.Bybit.BaseURL),
			bybit.WithCategory(cfg.Bybit.Category),
			bybit.WithRecvWindow(cfg.Bybit.RecvWindow),
			bybit.WithTimeout(cfg.Bybit.Timeout),
			bybit.WithMaxRetries(cfg.Bybit.MaxRetries),
		)
	})

	// 복제 엔진 생성
	engine := copier.NewEngine(store, factory, discordClient, copier.Options{
		PollInterval:  cfg.App.PollInterval,
		ErrorInterval: cfg.App.ErrorInterval,
		HistoryLimit:  cfg.App.HistoryLimit,
	})

	if cfg.App.AutoStart {
		engine.Start()
		if err := discordClient.SendInfo("🚀 트레이드 복제 서비스가 시작되었습니다."); err != nil {
			logrus.Errorf("시작 알림 전송 실패: %v", err)
		}
	}

	// 컨트롤 API 서버 실행
	apiServer := server.New(store, factory, engine)
	httpServer := &http.Server{
		Addr:    cfg.App.ListenAddr,
		Handler: apiServer.Handler(),
	}

	go func() {
		logrus.Infof("컨트롤 API 수신 대기: %s", cfg.App.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("HTTP 서버 실행 중 에러 발생: %v", err)
		}
	}()

	// 시그널 대기
	sigChan := make(chan os.Signal, 1)
	osSignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logrus.Infof("시스템 종료 신호 수신: %v", sig)

	// 엔진과 서버를 순서대로 종료
	engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP 서버 종료 실패: %v", err)
	}

	if err := discordClient.SendInfo("👋 트레이드 복제 서비스가 정상적으로 종료되었습니다."); err != nil {
		logrus.Errorf("종료 알림 전송 실패: %v", err)
	}

	logrus.Info("프로그램을 종료합니다.")
}
