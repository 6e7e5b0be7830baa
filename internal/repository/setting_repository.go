package repository

import (
	"errors"
	"strings"

	"github.com/promo-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository 设置仓储接口
type SettingRepository interface {
	GetByKey(key string) (*models.Setting, error)
	Upsert(key string, value map[string]interface{}) (*models.Setting, error)
}

// GormSettingRepository GORM 设置仓储实现
type GormSettingRepository struct {
	db *gorm.DB
}

// NewSettingRepository 创建设置仓储
func NewSettingRepository(db *gorm.DB) *GormSettingRepository {
	return &GormSettingRepository{db: db}
}

// GetByKey 根据键查询设置
func (r *GormSettingRepository) GetByKey(key string) (*models.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var setting models.Setting
	if err := r.db.Where("key = ?", key).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &setting, nil
}

// Upsert 写入或更新设置
func (r *GormSettingRepository) Upsert(key string, value map[string]interface{}) (*models.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("invalid setting key")
	}
	setting := &models.Setting{
		Key:       key,
		ValueJSON: models.JSON(value),
	}
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value_json"}),
	}).Create(setting).Error; err != nil {
		return nil, err
	}
	return setting, nil
}
