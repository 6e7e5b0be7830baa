package models

import (
	"encoding/json"
	"time"

	"github.com/promo-next/internal/constants"

	"gorm.io/gorm"
)

// Discount 折扣值对象（百分比 / 固定金额二选一）
// 通过 NewPercentageDiscount / NewFixedAmountDiscount 构造，保证有且仅有一种变体。
type Discount struct {
	Type        string `gorm:"type:varchar(24);not null" json:"type"`                 // 折扣类型（percentage/fixed_amount）
	BasisPoints int    `gorm:"not null;default:0" json:"basis_points"`                // 百分比折扣（基点，1% = 100）
	Amount      Money  `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`   // 固定金额折扣
	Currency    string `gorm:"type:varchar(16);not null;default:''" json:"currency"` // 固定金额币种
}

// NewPercentageDiscount 构造百分比折扣（0 < bp < 10000）
func NewPercentageDiscount(basisPoints int) (Discount, bool) {
	if basisPoints <= 0 || basisPoints >= 10000 {
		return Discount{}, false
	}
	return Discount{
		Type:        constants.DiscountTypePercentage,
		BasisPoints: basisPoints,
	}, true
}

// NewFixedAmountDiscount 构造固定金额折扣
func NewFixedAmountDiscount(amount Money, currency string) (Discount, bool) {
	if !amount.IsPositive() || currency == "" {
		return Discount{}, false
	}
	return Discount{
		Type:     constants.DiscountTypeFixedAmount,
		Amount:   amount,
		Currency: currency,
	}, true
}

// IsPercentage 判断是否百分比折扣
func (d Discount) IsPercentage() bool {
	return d.Type == constants.DiscountTypePercentage
}

// IsFixedAmount 判断是否固定金额折扣
func (d Discount) IsFixedAmount() bool {
	return d.Type == constants.DiscountTypeFixedAmount
}

// Equal 判断折扣值是否一致（激活后不可变更校验用）
func (d Discount) Equal(other Discount) bool {
	return d.Type == other.Type &&
		d.BasisPoints == other.BasisPoints &&
		d.Amount.Decimal.Equal(other.Amount.Decimal) &&
		d.Currency == other.Currency
}

// CouponTemplate 优惠码模板（父级折扣规则，持有子码配额）
type CouponTemplate struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                                          // 主键
	Name               string         `gorm:"type:varchar(120);not null" json:"name"`                        // 模板名称
	CodePrefix         string         `gorm:"type:varchar(64);index;not null" json:"code_prefix"`            // 券码前缀（创建后不可变）
	Status             string         `gorm:"type:varchar(24);index;not null;default:'editing'" json:"status"` // 生命周期状态
	Discount           Discount       `gorm:"embedded;embeddedPrefix:discount_" json:"discount"`             // 折扣（变体在创建时固定）
	BillingType        string         `gorm:"type:varchar(24);not null" json:"billing_type"`                 // 计费类型（one_time/recurring）
	CycleLimit         int            `gorm:"not null;default:0" json:"cycle_limit"`                         // 循环折扣周期数（仅 recurring 有意义）
	StartTime          time.Time      `gorm:"index;not null" json:"start_time"`                              // 生效时间
	EndTime            time.Time      `gorm:"index;not null" json:"end_time"`                                // 失效时间（左闭右开）
	PlanApplyType      string         `gorm:"type:varchar(24);not null;default:'all'" json:"plan_apply_type"` // 套餐适用范围
	PlanIDs            string         `gorm:"type:text" json:"plan_ids"`                                     // 适用套餐ID集合（JSON数组）
	Quantity           int            `gorm:"not null;default:0" json:"quantity"`                            // 券码配额上限（只增不减）
	ChildCodeCount     int            `gorm:"not null;default:0" json:"child_code_count"`                    // 已生成券码数
	UsedChildCodeCount int            `gorm:"not null;default:0" json:"used_child_code_count"`               // 已核销券码数
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt          time.Time      `gorm:"index" json:"updated_at"`                                       // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                                                // 软删除时间
}

// TableName 指定表名
func (CouponTemplate) TableName() string {
	return "coupon_templates"
}

// DisplayStatus 返回展示状态（过期后派生为 expired，不改写持久状态）
func (t *CouponTemplate) DisplayStatus(now time.Time) string {
	if t == nil {
		return ""
	}
	if t.Status != constants.TemplateStatusArchived && !t.EndTime.IsZero() && !now.Before(t.EndTime) {
		return constants.TemplateStatusExpired
	}
	return t.Status
}

// RemainingQuota 返回剩余可生成配额
func (t *CouponTemplate) RemainingQuota() int {
	if t == nil {
		return 0
	}
	remaining := t.Quantity - t.ChildCodeCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MinCodeLength 返回该模板允许的最小券码长度
func (t *CouponTemplate) MinCodeLength() int {
	if t == nil {
		return 0
	}
	return len(t.CodePrefix) + constants.MinCodeSuffixLength
}

// DecodePlanIDs 解析适用套餐ID集合
func (t *CouponTemplate) DecodePlanIDs() []uint {
	if t == nil || t.PlanIDs == "" {
		return nil
	}
	var ids []uint
	if err := json.Unmarshal([]byte(t.PlanIDs), &ids); err != nil {
		return nil
	}
	return ids
}

// EncodePlanIDs 序列化适用套餐ID集合
func EncodePlanIDs(ids []uint) string {
	if len(ids) == 0 {
		return ""
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return ""
	}
	return string(payload)
}
