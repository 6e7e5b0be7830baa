package service

import (
	"context"
	"errors"
	"testing"

	"github.com/promo-next/internal/constants"
	"github.com/promo-next/internal/models"
	"github.com/promo-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// stubRateFetcher 固定返回预设汇率或错误
type stubRateFetcher struct {
	rates   map[string]decimal.Decimal
	err     error
	base    string
	symbols []string
	calls   int
}

func (f *stubRateFetcher) FetchRates(_ context.Context, base string, symbols []string) (map[string]decimal.Decimal, error) {
	f.calls++
	f.base = base
	f.symbols = symbols
	if f.err != nil {
		return nil, f.err
	}
	return f.rates, nil
}

func newCurrencyServiceForTest(db *gorm.DB, fetcher RateFetcher) *CurrencyService {
	return NewCurrencyService(repository.NewSettingRepository(db), fetcher)
}

func TestGetRulesDefaultWhenUnset(t *testing.T) {
	db := setupCouponTest(t, "currency_default")
	svc := newCurrencyServiceForTest(db, nil)

	rules, err := svc.GetRules()
	if err != nil {
		t.Fatalf("get rules failed: %v", err)
	}
	if rules.DefaultCurrency != "USD" {
		t.Fatalf("expected default currency USD, got %s", rules.DefaultCurrency)
	}
	if len(rules.Items) != 0 {
		t.Fatalf("expected no items, got %d", len(rules.Items))
	}
}

func TestSaveRulesRoundTrip(t *testing.T) {
	db := setupCouponTest(t, "currency_save")
	svc := newCurrencyServiceForTest(db, nil)

	saved, err := svc.SaveRules(CurrencyRules{
		DefaultCurrency: "usd",
		Items: []CurrencyRuleItem{
			{Currency: "eur", Mode: "Manual", Rate: "0.92"},
			{Currency: "jpy", Mode: "AUTO"},
		},
	})
	if err != nil {
		t.Fatalf("save rules failed: %v", err)
	}
	if saved.DefaultCurrency != "USD" {
		t.Fatalf("expected normalized default USD, got %s", saved.DefaultCurrency)
	}

	rules, err := svc.GetRules()
	if err != nil {
		t.Fatalf("reload rules failed: %v", err)
	}
	if len(rules.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(rules.Items))
	}
	if rules.Items[0].Currency != "EUR" || rules.Items[0].Mode != "manual" || rules.Items[0].Rate != "0.92" {
		t.Fatalf("unexpected first item: %+v", rules.Items[0])
	}
	if rules.Items[1].Currency != "JPY" || rules.Items[1].Mode != "auto" {
		t.Fatalf("unexpected second item: %+v", rules.Items[1])
	}
}

func TestSaveRulesValidation(t *testing.T) {
	db := setupCouponTest(t, "currency_save_invalid")
	svc := newCurrencyServiceForTest(db, nil)

	cases := []struct {
		name  string
		rules CurrencyRules
	}{
		{"empty currency", CurrencyRules{Items: []CurrencyRuleItem{{Currency: "", Mode: "auto"}}}},
		{"same as default", CurrencyRules{DefaultCurrency: "USD", Items: []CurrencyRuleItem{{Currency: "usd", Mode: "auto"}}}},
		{"duplicate currency", CurrencyRules{Items: []CurrencyRuleItem{{Currency: "EUR", Mode: "auto"}, {Currency: "eur", Mode: "auto"}}}},
		{"unknown mode", CurrencyRules{Items: []CurrencyRuleItem{{Currency: "EUR", Mode: "fixed"}}}},
		{"manual without rate", CurrencyRules{Items: []CurrencyRuleItem{{Currency: "EUR", Mode: "manual"}}}},
		{"manual zero rate", CurrencyRules{Items: []CurrencyRuleItem{{Currency: "EUR", Mode: "manual", Rate: "0"}}}},
		{"manual negative rate", CurrencyRules{Items: []CurrencyRuleItem{{Currency: "EUR", Mode: "manual", Rate: "-1.2"}}}},
	}
	for _, tc := range cases {
		if _, err := svc.SaveRules(tc.rules); !errors.Is(err, ErrCurrencyRuleInvalid) {
			t.Fatalf("case %q: expected ErrCurrencyRuleInvalid, got %v", tc.name, err)
		}
	}
}

func TestPreviewManualAndAutoRates(t *testing.T) {
	db := setupCouponTest(t, "currency_preview")
	fetcher := &stubRateFetcher{rates: map[string]decimal.Decimal{
		"JPY": decimal.NewFromInt(150),
	}}
	svc := newCurrencyServiceForTest(db, fetcher)

	if _, err := svc.SaveRules(CurrencyRules{
		DefaultCurrency: "USD",
		Items: []CurrencyRuleItem{
			{Currency: "EUR", Mode: "manual", Rate: "0.9"},
			{Currency: "JPY", Mode: "auto"},
		},
	}); err != nil {
		t.Fatalf("save rules failed: %v", err)
	}

	amount := models.NewMoneyFromDecimal(decimal.NewFromInt(10))
	result, err := svc.Preview(context.Background(), amount, "usd")
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if result.Degraded {
		t.Fatalf("expected non-degraded preview")
	}
	if fetcher.calls != 1 || fetcher.base != "USD" {
		t.Fatalf("unexpected fetcher invocation: calls=%d base=%s", fetcher.calls, fetcher.base)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 preview items, got %d", len(result.Items))
	}
	byCurrency := make(map[string]PreviewItem, len(result.Items))
	for _, item := range result.Items {
		byCurrency[item.Currency] = item
	}
	if eur := byCurrency["EUR"]; !eur.Amount.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("expected EUR amount 9, got %s", eur.Amount)
	}
	if jpy := byCurrency["JPY"]; !jpy.Amount.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("expected JPY amount 1500, got %s", jpy.Amount)
	}
}

func TestPreviewDegradedOnFetchFailure(t *testing.T) {
	db := setupCouponTest(t, "currency_preview_degraded")
	fetcher := &stubRateFetcher{err: errors.New("upstream timeout")}
	svc := newCurrencyServiceForTest(db, fetcher)

	if _, err := svc.SaveRules(CurrencyRules{
		Items: []CurrencyRuleItem{
			{Currency: "EUR", Mode: "manual", Rate: "0.9"},
			{Currency: "JPY", Mode: "auto"},
		},
	}); err != nil {
		t.Fatalf("save rules failed: %v", err)
	}

	result, err := svc.Preview(context.Background(), models.NewMoneyFromDecimal(decimal.NewFromInt(10)), "USD")
	if err != nil {
		t.Fatalf("preview should degrade instead of failing: %v", err)
	}
	if !result.Degraded {
		t.Fatalf("expected degraded preview")
	}
	// 实时汇率拉取失败时整个预览退化为空列表
	if len(result.Items) != 0 {
		t.Fatalf("expected empty item list on degraded preview, got %+v", result.Items)
	}
}

func TestPreviewRequiresDefaultBaseCurrency(t *testing.T) {
	db := setupCouponTest(t, "currency_preview_base_match")
	svc := newCurrencyServiceForTest(db, nil)

	if _, err := svc.SaveRules(CurrencyRules{
		DefaultCurrency: "EUR",
		Items: []CurrencyRuleItem{
			{Currency: "GBP", Mode: "manual", Rate: "0.85"},
		},
	}); err != nil {
		t.Fatalf("save rules failed: %v", err)
	}

	// 手动汇率以默认币种为基准，基准不一致时拒绝换算
	if _, err := svc.Preview(context.Background(), models.NewMoneyFromDecimal(decimal.NewFromInt(100)), "USD"); !errors.Is(err, ErrCurrencyRuleInvalid) {
		t.Fatalf("expected ErrCurrencyRuleInvalid for mismatched base, got %v", err)
	}

	result, err := svc.Preview(context.Background(), models.NewMoneyFromDecimal(decimal.NewFromInt(100)), "eur")
	if err != nil {
		t.Fatalf("preview with default base failed: %v", err)
	}
	if len(result.Items) != 1 || !result.Items[0].Amount.Equal(decimal.NewFromInt(85)) {
		t.Fatalf("expected single GBP item of 85, got %+v", result.Items)
	}
}

func TestPreviewSkipsBaseCurrencyItem(t *testing.T) {
	db := setupCouponTest(t, "currency_preview_base")
	fetcher := &stubRateFetcher{rates: map[string]decimal.Decimal{}}
	svc := newCurrencyServiceForTest(db, fetcher)

	// 直接写入设置：规则项里混入与默认币种相同的条目
	settingRepo := repository.NewSettingRepository(db)
	if _, err := settingRepo.Upsert(constants.SettingKeyMultiCurrency, map[string]interface{}{
		constants.SettingFieldDefaultCurrency: "EUR",
		constants.SettingFieldCurrencyItems: []interface{}{
			map[string]interface{}{"currency": "EUR", "mode": "manual", "rate": "1.0"},
			map[string]interface{}{"currency": "GBP", "mode": "manual", "rate": "0.85"},
		},
	}); err != nil {
		t.Fatalf("upsert setting failed: %v", err)
	}

	result, err := svc.Preview(context.Background(), models.NewMoneyFromDecimal(decimal.NewFromInt(10)), "EUR")
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].Currency != "GBP" {
		t.Fatalf("expected base-currency item skipped, got %+v", result.Items)
	}
	if fetcher.calls != 0 {
		t.Fatalf("expected no fetch without auto items, got %d calls", fetcher.calls)
	}
}

func TestPreviewValidation(t *testing.T) {
	db := setupCouponTest(t, "currency_preview_invalid")
	svc := newCurrencyServiceForTest(db, nil)

	if _, err := svc.Preview(context.Background(), models.NewMoneyFromDecimal(decimal.NewFromInt(10)), ""); !errors.Is(err, ErrCurrencyRuleInvalid) {
		t.Fatalf("expected ErrCurrencyRuleInvalid for empty currency, got %v", err)
	}
	if _, err := svc.Preview(context.Background(), models.NewMoneyFromDecimal(decimal.Zero), "USD"); !errors.Is(err, ErrCurrencyRuleInvalid) {
		t.Fatalf("expected ErrCurrencyRuleInvalid for non-positive amount, got %v", err)
	}
}
