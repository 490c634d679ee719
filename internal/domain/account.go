package domain

import "time"

// MasterAccount는 복제 대상이 되는 마스터 계정을 정의합니다
type MasterAccount struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	APIKey    string    `gorm:"column:api_key;size:255;not null" json:"-"`
	APISecret string    `gorm:"column:api_secret;size:255;not null" json:"-"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// FollowerAccount는 마스터의 거래를 복제받는 팔로워 계정을 정의합니다
type FollowerAccount struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"size:100;not null" json:"name"`
	APIKey    string `gorm:"column:api_key;size:255;not null" json:"-"`
	APISecret string `gorm:"column:api_secret;size:255;not null" json:"-"`
	// 팔로워 잔고 중 복제에 사용할 비율 (%)
	CapitalAllocationPercent float64   `gorm:"default:10" json:"capital_allocation_percent"`
	MaxLeverage              int       `gorm:"default:10" json:"max_leverage"`
	IsActive                 bool      `gorm:"default:true" json:"is_active"`
	CreatedAt                time.Time `json:"created_at"`
}

// AccountType은 계정 구분을 정의합니다
type AccountType string

const (
	MasterAccountType   AccountType = "master"
	FollowerAccountType AccountType = "follower"
)
