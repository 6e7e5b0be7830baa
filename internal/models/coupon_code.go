package models

import (
	"time"

	"gorm.io/gorm"
)

// CouponCode 子券码（由模板配额生成，核销后记录关联信息）
type CouponCode struct {
	ID             uint            `gorm:"primarykey" json:"id"`                                  // 主键
	TemplateID     uint            `gorm:"index;not null" json:"template_id"`                     // 所属模板ID
	FullCode       string          `gorm:"type:varchar(200);uniqueIndex;not null" json:"full_code"` // 完整券码（前缀+后缀，全局唯一）
	IsRedeemed     bool            `gorm:"index;not null;default:false" json:"is_redeemed"`       // 是否已核销
	RedeemEmail    string          `gorm:"type:varchar(120);index" json:"redeem_email"`           // 核销用户邮箱
	SubscriptionID string          `gorm:"type:varchar(64);index" json:"subscription_id"`         // 关联订阅ID
	InvoiceID      string          `gorm:"type:varchar(64);index" json:"invoice_id"`              // 关联账单ID
	PaymentID      string          `gorm:"type:varchar(64);index" json:"payment_id"`              // 关联支付ID
	RedeemedAt     *time.Time      `gorm:"index" json:"redeemed_at"`                              // 核销时间
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`                               // 创建时间
	UpdatedAt      time.Time       `gorm:"index" json:"updated_at"`                               // 更新时间
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`                                        // 软删除时间
	Template       *CouponTemplate `gorm:"foreignKey:TemplateID" json:"template,omitempty"`       // 模板信息
}

// TableName 指定表名
func (CouponCode) TableName() string {
	return "coupon_codes"
}

// ClearRedemption 清除核销标记（账务回滚时调用）
func (c *CouponCode) ClearRedemption(now time.Time) {
	if c == nil {
		return
	}
	c.IsRedeemed = false
	c.RedeemEmail = ""
	c.SubscriptionID = ""
	c.InvoiceID = ""
	c.PaymentID = ""
	c.RedeemedAt = nil
	c.UpdatedAt = now
}
