package models

import (
	"time"

	"github.com/promo-next/internal/constants"

	"gorm.io/gorm"
)

// Plan 套餐目录只读副本（用于模板创建时的适用校验）
type Plan struct {
	ID          uint           `gorm:"primarykey" json:"id"`                                  // 主键
	Name        string         `gorm:"type:varchar(120);not null" json:"name"`                // 套餐名称
	Status      string         `gorm:"type:varchar(24);index;not null;default:'active'" json:"status"` // 状态（active/inactive）
	BillingType string         `gorm:"type:varchar(24);not null" json:"billing_type"`         // 计费类型（one_time/recurring）
	Currency    string         `gorm:"type:varchar(16);not null" json:"currency"`             // 结算币种
	Amount      Money          `gorm:"type:decimal(20,2);not null" json:"amount"`             // 套餐价格
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                               // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                               // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                        // 软删除时间
}

// TableName 指定表名
func (Plan) TableName() string {
	return "plans"
}

// IsActive 判断套餐是否可用
func (p *Plan) IsActive() bool {
	return p != nil && p.Status == constants.PlanStatusActive
}
