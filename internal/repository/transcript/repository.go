// Package transcript persists transcripts in SQL through GORM and mirrors them
// onto a Redis channel and capped list.
package transcript

import (
	"context"
	"fmt"
	"time"

	"github.com/xpanvictor/hearken/pkg/io/stt"
	"gorm.io/gorm"
)

type GormTranscriptRepo struct {
	db *gorm.DB
}

func NewGormTranscriptRepo(db *gorm.DB) *GormTranscriptRepo {
	return &GormTranscriptRepo{db: db}
}

// Migrate creates or updates the transcripts table.
func (g *GormTranscriptRepo) Migrate() error {
	return g.db.AutoMigrate(&TranscriptEntity{})
}

func (g *GormTranscriptRepo) Save(ctx context.Context, tr stt.Transcript) error {
	if err := g.db.WithContext(ctx).Create(NewTranscriptEntityFromDomain(tr)).Error; err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// Recent returns up to limit transcripts, newest first.
func (g *GormTranscriptRepo) Recent(ctx context.Context, limit int) ([]stt.Transcript, error) {
	var entities []TranscriptEntity
	if err := g.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	out := make([]stt.Transcript, 0, len(entities))
	for i := range entities {
		out = append(out, entities[i].ToDomain())
	}
	return out, nil
}

func (g *GormTranscriptRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := g.db.WithContext(ctx).Model(&TranscriptEntity{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count transcripts: %w", err)
	}
	return n, nil
}

// PruneBefore deletes transcripts created before cutoff and reports how many
// went.
func (g *GormTranscriptRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := g.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&TranscriptEntity{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune transcripts: %w", res.Error)
	}
	return res.RowsAffected, nil
}
