package constants

// 券模板生命周期状态常量
const (
	TemplateStatusEditing  = "editing"
	TemplateStatusActive   = "active"
	TemplateStatusInactive = "inactive"
	TemplateStatusArchived = "archived"
	// TemplateStatusExpired 派生展示状态（不落库）
	TemplateStatusExpired = "expired"
)

// 折扣类型常量
const (
	DiscountTypePercentage  = "percentage"
	DiscountTypeFixedAmount = "fixed_amount"
)

// 计费类型常量
const (
	BillingTypeOneTime   = "one_time"
	BillingTypeRecurring = "recurring"
)

// 套餐适用范围常量
const (
	PlanApplyTypeAll         = "all"
	PlanApplyTypeSelected    = "selected"
	PlanApplyTypeNotSelected = "not_selected"
)

// 套餐状态常量
const (
	PlanStatusActive   = "active"
	PlanStatusInactive = "inactive"
)

// 核销记录状态常量
const (
	UsageStatusFinished = "finished"
	UsageStatusRollback = "rollback"
)

// 券码生成限制常量
const (
	// MaxTemplateQuantity 单模板券码配额上限
	MaxTemplateQuantity = 10000
	// MaxGenerateQuantity 单次生成批量上限
	MaxGenerateQuantity = 1000
	// MaxCodeLength 券码最大长度
	MaxCodeLength = 200
	// MinCodeSuffixLength 券码后缀最小长度（前缀之外至少 2 位）
	MinCodeSuffixLength = 2
	// CodeRetryBudget 单个券码的冲突重试预算
	CodeRetryBudget = 10
	// CodeAlphabet 券码后缀字符集
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// 异步任务名称常量
const (
	QueueDefault = "default"

	TaskCodeExport  = "coupon:code_export"
	TaskUsageExport = "coupon:usage_export"
)

// 设置键常量
const (
	// SettingKeyMultiCurrency 多币种汇率规则配置键
	SettingKeyMultiCurrency = "multi_currency"

	SettingFieldDefaultCurrency = "default_currency"
	SettingFieldCurrencyItems   = "items"
)

// DefaultCurrency 默认币种
const DefaultCurrency = "USD"

// CurrencyPreviewTimeoutSeconds 汇率预览超时（秒）
const CurrencyPreviewTimeoutSeconds = 10
