package repository

import "time"

// TemplateListFilter 查询券模板列表的过滤条件
type TemplateListFilter struct {
	Page     int
	PageSize int
	Status   string // 持久状态或派生 expired
	Search   string // 名称/前缀模糊匹配
}

// CodeListFilter 查询券码列表的过滤条件
type CodeListFilter struct {
	Page        int
	PageSize    int
	TemplateID  uint
	Code        string // 子串匹配
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// UsageListFilter 查询核销记录列表的过滤条件
type UsageListFilter struct {
	Page        int
	PageSize    int
	TemplateID  uint
	Email       string
	Status      string
	PlanIDs     []uint
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// PlanListFilter 查询套餐列表的过滤条件
type PlanListFilter struct {
	Page       int
	PageSize   int
	OnlyActive bool
}
