package worker

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/promo-next/internal/models"
)

// buildCodeCSV 拼装券码导出内容
func buildCodeCSV(codes []models.CouponCode) ([]byte, error) {
	builder := &strings.Builder{}
	writer := csv.NewWriter(builder)
	if err := writer.Write([]string{
		"id",
		"template_id",
		"full_code",
		"is_redeemed",
		"redeem_email",
		"subscription_id",
		"invoice_id",
		"payment_id",
		"redeemed_at",
		"created_at",
	}); err != nil {
		return nil, err
	}
	for _, code := range codes {
		record := []string{
			strconv.FormatUint(uint64(code.ID), 10),
			strconv.FormatUint(uint64(code.TemplateID), 10),
			code.FullCode,
			strconv.FormatBool(code.IsRedeemed),
			code.RedeemEmail,
			code.SubscriptionID,
			code.InvoiceID,
			code.PaymentID,
			formatNullableTime(code.RedeemedAt),
			code.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return []byte(builder.String()), nil
}

// buildUsageCSV 拼装核销记录导出内容
func buildUsageCSV(usages []models.CouponUsage) ([]byte, error) {
	builder := &strings.Builder{}
	writer := csv.NewWriter(builder)
	if err := writer.Write([]string{
		"id",
		"code",
		"template_id",
		"plan_id",
		"apply_amount",
		"currency",
		"email",
		"subscription_id",
		"invoice_id",
		"payment_id",
		"recurring",
		"status",
		"created_at",
	}); err != nil {
		return nil, err
	}
	for _, usage := range usages {
		record := []string{
			strconv.FormatUint(uint64(usage.ID), 10),
			usage.Code,
			strconv.FormatUint(uint64(usage.TemplateID), 10),
			strconv.FormatUint(uint64(usage.PlanID), 10),
			usage.ApplyAmount.String(),
			usage.Currency,
			usage.Email,
			usage.SubscriptionID,
			usage.InvoiceID,
			usage.PaymentID,
			strconv.FormatBool(usage.Recurring),
			usage.Status,
			usage.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return []byte(builder.String()), nil
}

// writeExportFile 落盘导出文件，目录不存在时创建
func writeExportFile(dir, filename string, content []byte) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "./exports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// codeExportFilename 券码导出文件名
func codeExportFilename(templateID uint, token string) string {
	return fmt.Sprintf("coupon_codes_%d_%s.csv", templateID, token)
}

// usageExportFilename 核销记录导出文件名
func usageExportFilename(templateID uint, token string) string {
	return fmt.Sprintf("coupon_usages_%d_%s.csv", templateID, token)
}

func formatNullableTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
