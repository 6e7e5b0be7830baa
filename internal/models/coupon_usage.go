package models

import (
	"time"
)

// CouponUsage 券码核销记录（由计费引擎写入，本服务仅查询与回滚标记）
type CouponUsage struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                      // 主键
	Code           string    `gorm:"type:varchar(200);index;not null" json:"code"`              // 券码
	TemplateID     uint      `gorm:"index;not null" json:"template_id"`                         // 所属模板ID
	PlanID         uint      `gorm:"index;not null;default:0" json:"plan_id"`                   // 应用套餐ID
	ApplyAmount    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"apply_amount"` // 实际抵扣金额
	Currency       string    `gorm:"type:varchar(16);not null" json:"currency"`                 // 抵扣币种
	Email          string    `gorm:"type:varchar(120);index" json:"email"`                      // 用户邮箱
	SubscriptionID string    `gorm:"type:varchar(64);index" json:"subscription_id"`             // 关联订阅ID
	InvoiceID      string    `gorm:"type:varchar(64);index" json:"invoice_id"`                  // 关联账单ID
	PaymentID      string    `gorm:"type:varchar(64);index" json:"payment_id"`                  // 关联支付ID
	Recurring      bool      `gorm:"not null;default:false" json:"recurring"`                   // 是否循环周期核销
	Status         string    `gorm:"type:varchar(24);index;not null;default:'finished'" json:"status"` // 状态（finished/rollback）
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                                   // 核销时间
	UpdatedAt      time.Time `gorm:"index" json:"updated_at"`                                   // 更新时间
}

// TableName 指定表名
func (CouponUsage) TableName() string {
	return "coupon_usages"
}
