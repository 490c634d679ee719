package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// 애플리케이션 설정
	App struct {
		PollInterval  time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
		ErrorInterval time.Duration `envconfig:"ERROR_INTERVAL" default:"10s"`
		HistoryLimit  int           `envconfig:"HISTORY_LIMIT" default:"20"`
		ListenAddr    string        `envconfig:"LISTEN_ADDR" default:":8080"`
		AutoStart     bool          `envconfig:"COPIER_AUTO_START" default:"true"`
	}

	// 바이비트 API 설정
	Bybit struct {
		BaseURL    string        `envconfig:"BYBIT_BASE_URL" default:"https://api.bybit.com"`
		Category   string        `envconfig:"BYBIT_CATEGORY" default:"linear"`
		RecvWindow int           `envconfig:"BYBIT_RECV_WINDOW" default:"10000"`
		Timeout    time.Duration `envconfig:"BYBIT_TIMEOUT" default:"10s"`
		MaxRetries int           `envconfig:"BYBIT_MAX_RETRIES" default:"3"`
	}

	// 데이터베이스 설정
	Database struct {
		Path string `envconfig:"DATABASE_PATH" default:"copier.db"`
	}

	// 로그 설정
	Log struct {
		Level      string `envconfig:"LOG_LEVEL" default:"info"`
		File       string `envconfig:"LOG_FILE"`
		MaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"100"`
		MaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
		MaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"28"`
	}

	// 디스코드 웹훅 설정 (비워두면 알림을 보내지 않습니다)
	Discord struct {
		TradeWebhook string `envconfig:"DISCORD_TRADE_WEBHOOK"`
		ErrorWebhook string `envconfig:"DISCORD_ERROR_WEBHOOK"`
		InfoWebhook  string `envconfig:"DISCORD_INFO_WEBHOOK"`
	}
}

// ValidateConfig는 설정이 유효한지 확인합니다.
func ValidateConfig(cfg *Config) error {
	if cfg.App.PollInterval < time.Second {
		return fmt.Errorf("POLL_INTERVAL은 1초 이상이어야 합니다")
	}

	if cfg.App.ErrorInterval < cfg.App.PollInterval {
		return fmt.Errorf("ERROR_INTERVAL은 POLL_INTERVAL 이상이어야 합니다")
	}

	if cfg.App.HistoryLimit < 1 || cfg.App.HistoryLimit > 50 {
		return fmt.Errorf("HISTORY_LIMIT은 1 이상 50 이하이어야 합니다")
	}

	if cfg.Bybit.MaxRetries < 1 {
		return fmt.Errorf("BYBIT_MAX_RETRIES는 1 이상이어야 합니다")
	}

	if cfg.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH가 비어 있습니다")
	}

	return nil
}

// LoadConfig는 환경변수에서 설정을 로드합니다.
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (없으면 환경변수만 사용)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf(".env 파일 로드 실패: %w", err)
	}

	var cfg Config
	// 환경변수를 구조체로 파싱
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("환경변수 처리 실패: %w", err)
	}

	// 설정값 검증
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("설정값 검증 실패: %w", err)
	}

	return &cfg, nil
}
