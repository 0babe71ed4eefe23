package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tutorverse-go/internal/model"
)

// TurnRepository 定义了问答流水的数据库操作。
type TurnRepository interface {
	// Create 按 EventID 幂等写入，重复投递的消息不会产生重复记录。
	Create(ctx context.Context, record *model.TurnRecord) error
	FindRecent(ctx context.Context, limit int) ([]model.TurnRecord, error)
	CountByIntent(ctx context.Context) ([]model.IntentCount, error)
}

type turnRepository struct {
	db *gorm.DB
}

// NewTurnRepository 创建一个新的 TurnRepository 实例。
func NewTurnRepository(db *gorm.DB) TurnRepository {
	return &turnRepository{db: db}
}

func (r *turnRepository) Create(ctx context.Context, record *model.TurnRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(record).Error
}

func (r *turnRepository) FindRecent(ctx context.Context, limit int) ([]model.TurnRecord, error) {
	var records []model.TurnRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *turnRepository) CountByIntent(ctx context.Context) ([]model.IntentCount, error) {
	var counts []model.IntentCount
	err := r.db.WithContext(ctx).
		Model(&model.TurnRecord{}).
		Select("intent, count(*) as count").
		Group("intent").
		Order("count DESC").
		Scan(&counts).Error
	return counts, err
}
