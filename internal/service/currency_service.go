package service

import (
	"context"
	"strings"
	"time"

	"github.com/promo-next/internal/constants"
	"github.com/promo-next/internal/logger"
	"github.com/promo-next/internal/models"
	"github.com/promo-next/internal/repository"

	"github.com/shopspring/decimal"
)

// RateFetcher 汇率数据源抽象
type RateFetcher interface {
	FetchRates(ctx context.Context, base string, symbols []string) (map[string]decimal.Decimal, error)
}

// CurrencyService 多币种换算服务。
// 规则存在 multi_currency 设置里：manual 项用固定汇率，
// auto 项走实时数据源；预览有超时兜底，失败时退化为空列表。
type CurrencyService struct {
	settingRepo repository.SettingRepository
	fetcher     RateFetcher
	timeout     time.Duration
}

// NewCurrencyService 创建多币种服务
func NewCurrencyService(settingRepo repository.SettingRepository, fetcher RateFetcher) *CurrencyService {
	return &CurrencyService{
		settingRepo: settingRepo,
		fetcher:     fetcher,
		timeout:     constants.CurrencyPreviewTimeoutSeconds * time.Second,
	}
}

// CurrencyRuleItem 单币种换算规则
type CurrencyRuleItem struct {
	Currency string `json:"currency"`       // 目标币种
	Mode     string `json:"mode"`           // manual / auto
	Rate     string `json:"rate,omitempty"` // manual 模式下的固定汇率
}

// CurrencyRules 多币种规则集
type CurrencyRules struct {
	DefaultCurrency string             `json:"default_currency"`
	Items           []CurrencyRuleItem `json:"items"`
}

// PreviewItem 单币种换算预览结果
type PreviewItem struct {
	Currency string       `json:"currency"`
	Mode     string       `json:"mode"`
	Rate     string       `json:"rate"`
	Amount   models.Money `json:"amount"`
}

// PreviewResult 换算预览结果
type PreviewResult struct {
	BaseCurrency string        `json:"base_currency"`
	BaseAmount   models.Money  `json:"base_amount"`
	Items        []PreviewItem `json:"items"`
	FetchedAt    time.Time     `json:"fetched_at"`
	Degraded     bool          `json:"degraded"` // 实时汇率获取失败/超时
}

const (
	currencyModeManual = "manual"
	currencyModeAuto   = "auto"
)

// GetRules 读取多币种规则集（未配置时返回默认空规则）
func (s *CurrencyService) GetRules() (*CurrencyRules, error) {
	if s == nil || s.settingRepo == nil {
		return nil, ErrCurrencyRuleInvalid
	}
	setting, err := s.settingRepo.GetByKey(constants.SettingKeyMultiCurrency)
	if err != nil {
		return nil, ErrTemplateFetchFailed
	}
	rules := &CurrencyRules{
		DefaultCurrency: constants.DefaultCurrency,
		Items:           []CurrencyRuleItem{},
	}
	if setting == nil {
		return rules, nil
	}
	decodeRules(setting.ValueJSON, rules)
	return rules, nil
}

// SaveRules 校验并保存多币种规则集
func (s *CurrencyService) SaveRules(rules CurrencyRules) (*CurrencyRules, error) {
	if s == nil || s.settingRepo == nil {
		return nil, ErrCurrencyRuleInvalid
	}
	defaultCurrency := strings.ToUpper(strings.TrimSpace(rules.DefaultCurrency))
	if defaultCurrency == "" {
		defaultCurrency = constants.DefaultCurrency
	}
	seen := make(map[string]struct{}, len(rules.Items))
	items := make([]CurrencyRuleItem, 0, len(rules.Items))
	for _, item := range rules.Items {
		currency := strings.ToUpper(strings.TrimSpace(item.Currency))
		mode := strings.ToLower(strings.TrimSpace(item.Mode))
		if currency == "" || currency == defaultCurrency {
			return nil, ErrCurrencyRuleInvalid
		}
		if _, dup := seen[currency]; dup {
			return nil, ErrCurrencyRuleInvalid
		}
		switch mode {
		case currencyModeManual:
			rate, err := decimal.NewFromString(strings.TrimSpace(item.Rate))
			if err != nil || rate.LessThanOrEqual(decimal.Zero) {
				return nil, ErrCurrencyRuleInvalid
			}
			items = append(items, CurrencyRuleItem{Currency: currency, Mode: mode, Rate: rate.String()})
		case currencyModeAuto:
			items = append(items, CurrencyRuleItem{Currency: currency, Mode: mode})
		default:
			return nil, ErrCurrencyRuleInvalid
		}
		seen[currency] = struct{}{}
	}

	value := map[string]interface{}{
		constants.SettingFieldDefaultCurrency: defaultCurrency,
		constants.SettingFieldCurrencyItems:   encodeItems(items),
	}
	if _, err := s.settingRepo.Upsert(constants.SettingKeyMultiCurrency, value); err != nil {
		return nil, ErrTemplateSaveFailed
	}
	return &CurrencyRules{DefaultCurrency: defaultCurrency, Items: items}, nil
}

// Preview 预览固定金额在各配置币种下的等值金额。
// 基准币种必须等于规则集的默认币种；auto 项的实时汇率在超时窗口
// 内拉取，拉取失败或超时时整个预览退化为空列表并置 Degraded 标记。
func (s *CurrencyService) Preview(ctx context.Context, baseAmount models.Money, baseCurrency string) (*PreviewResult, error) {
	if s == nil || s.settingRepo == nil {
		return nil, ErrCurrencyRuleInvalid
	}
	baseCurrency = strings.ToUpper(strings.TrimSpace(baseCurrency))
	if baseCurrency == "" || !baseAmount.IsPositive() {
		return nil, ErrCurrencyRuleInvalid
	}

	rules, err := s.GetRules()
	if err != nil {
		return nil, err
	}
	// 手动汇率以默认币种为基准定义，基准不一致时换算无意义
	if baseCurrency != rules.DefaultCurrency {
		return nil, ErrCurrencyRuleInvalid
	}

	result := &PreviewResult{
		BaseCurrency: baseCurrency,
		BaseAmount:   baseAmount,
		Items:        []PreviewItem{},
		FetchedAt:    time.Now(),
	}
	if len(rules.Items) == 0 {
		return result, nil
	}

	var autoSymbols []string
	for _, item := range rules.Items {
		if item.Currency == baseCurrency {
			continue
		}
		if item.Mode == currencyModeAuto {
			autoSymbols = append(autoSymbols, item.Currency)
		}
	}

	liveRates := map[string]decimal.Decimal{}
	if len(autoSymbols) > 0 {
		if s.fetcher == nil {
			result.Degraded = true
			return result, nil
		}
		fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		rates, err := s.fetcher.FetchRates(fetchCtx, baseCurrency, autoSymbols)
		if err != nil {
			logger.Warnw("currency_preview_fetch_failed",
				"base", baseCurrency,
				"symbols", autoSymbols,
				"error", err)
			result.Degraded = true
			return result, nil
		}
		liveRates = rates
	}

	for _, item := range rules.Items {
		if item.Currency == baseCurrency {
			continue
		}
		var rate decimal.Decimal
		switch item.Mode {
		case currencyModeManual:
			parsed, err := decimal.NewFromString(item.Rate)
			if err != nil || parsed.LessThanOrEqual(decimal.Zero) {
				continue
			}
			rate = parsed
		case currencyModeAuto:
			live, ok := liveRates[item.Currency]
			if !ok {
				continue
			}
			rate = live
		default:
			continue
		}
		result.Items = append(result.Items, PreviewItem{
			Currency: item.Currency,
			Mode:     item.Mode,
			Rate:     rate.String(),
			Amount:   baseAmount.Mul(rate),
		})
	}
	result.FetchedAt = time.Now()
	return result, nil
}

// decodeRules 从设置 JSON 解出规则集，非法项直接丢弃
func decodeRules(value models.JSON, rules *CurrencyRules) {
	if value == nil || rules == nil {
		return
	}
	if raw, ok := value[constants.SettingFieldDefaultCurrency].(string); ok {
		if currency := strings.ToUpper(strings.TrimSpace(raw)); currency != "" {
			rules.DefaultCurrency = currency
		}
	}
	rawItems, ok := value[constants.SettingFieldCurrencyItems].([]interface{})
	if !ok {
		return
	}
	for _, rawItem := range rawItems {
		entry, ok := rawItem.(map[string]interface{})
		if !ok {
			continue
		}
		item := CurrencyRuleItem{}
		if raw, ok := entry["currency"].(string); ok {
			item.Currency = strings.ToUpper(strings.TrimSpace(raw))
		}
		if raw, ok := entry["mode"].(string); ok {
			item.Mode = strings.ToLower(strings.TrimSpace(raw))
		}
		if raw, ok := entry["rate"].(string); ok {
			item.Rate = strings.TrimSpace(raw)
		}
		if item.Currency == "" {
			continue
		}
		switch item.Mode {
		case currencyModeManual:
			if rate, err := decimal.NewFromString(item.Rate); err != nil || rate.LessThanOrEqual(decimal.Zero) {
				continue
			}
		case currencyModeAuto:
		default:
			continue
		}
		rules.Items = append(rules.Items, item)
	}
}

func encodeItems(items []CurrencyRuleItem) []interface{} {
	encoded := make([]interface{}, 0, len(items))
	for _, item := range items {
		entry := map[string]interface{}{
			"currency": item.Currency,
			"mode":     item.Mode,
		}
		if item.Mode == currencyModeManual {
			entry["rate"] = item.Rate
		}
		encoded = append(encoded, entry)
	}
	return encoded
}
