package service

import "errors"

// 券模板相关错误
var (
	ErrTemplateInvalid     = errors.New("coupon template invalid")
	ErrTemplateNotFound    = errors.New("coupon template not found")
	ErrTemplateState       = errors.New("coupon template state not allowed")
	ErrTemplatePlanInvalid = errors.New("coupon template plan scope invalid")
	ErrTemplateSaveFailed  = errors.New("coupon template save failed")
	ErrTemplateFetchFailed = errors.New("coupon template fetch failed")
)

// 券码生成相关错误
var (
	ErrGenerateInvalid = errors.New("coupon generate params invalid")
	ErrQuotaExceeded   = errors.New("coupon quota exceeded")
	ErrGenerateFailed  = errors.New("coupon generate failed")
)

// 券码相关错误
var (
	ErrCodeNotFound    = errors.New("coupon code not found")
	ErrCodeFetchFailed = errors.New("coupon code fetch failed")
)

// 核销记录相关错误
var (
	ErrUsageInvalid     = errors.New("coupon usage invalid")
	ErrUsageNotFound    = errors.New("coupon usage not found")
	ErrUsageState       = errors.New("coupon usage state not allowed")
	ErrUsageSaveFailed  = errors.New("coupon usage save failed")
	ErrUsageFetchFailed = errors.New("coupon usage fetch failed")
)

// ErrCurrencyRuleInvalid 多币种配置不合法
var ErrCurrencyRuleInvalid = errors.New("multi currency rule invalid")

// 导出相关错误
var (
	ErrExportInvalid = errors.New("export params invalid")
	ErrExportFailed  = errors.New("export enqueue failed")
)
