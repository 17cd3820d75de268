package transcript

import (
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/hearken/pkg/io/stt"
	"gorm.io/gorm"
)

// TranscriptEntity represents the database entity for a transcript with GORM tags
type TranscriptEntity struct {
	ID          uuid.UUID  `gorm:"primaryKey;type:char(36);not null"`
	UtteranceID *uuid.UUID `gorm:"column:utterance_id;type:char(36);index"` // nil for typed text
	Source      string     `gorm:"column:source;type:varchar(16);not null"`
	Content     string     `gorm:"column:content;type:text;not null"`
	Language    string     `gorm:"column:language;type:varchar(16)"`
	Engine      string     `gorm:"column:engine;type:varchar(32)"`
	AudioMs     int64      `gorm:"column:audio_ms"`
	CreatedAt   time.Time  `gorm:"column:created_at;index"`
}

// TableName returns the table name for GORM
func (TranscriptEntity) TableName() string {
	return "transcripts"
}

// BeforeCreate is a GORM hook to ensure UUID and timestamp are set
func (t *TranscriptEntity) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	return nil
}

func (t *TranscriptEntity) ToDomain() stt.Transcript {
	tr := stt.Transcript{
		Source:        stt.Source(t.Source),
		Content:       t.Content,
		Language:      t.Language,
		Engine:        t.Engine,
		AudioDuration: time.Duration(t.AudioMs) * time.Millisecond,
		GeneratedAt:   t.CreatedAt,
	}
	if t.UtteranceID != nil {
		tr.UtteranceID = *t.UtteranceID
	}
	return tr
}

func NewTranscriptEntityFromDomain(tr stt.Transcript) *TranscriptEntity {
	e := &TranscriptEntity{
		Source:    string(tr.Source),
		Content:   tr.Content,
		Language:  tr.Language,
		Engine:    tr.Engine,
		AudioMs:   tr.AudioDuration.Milliseconds(),
		CreatedAt: tr.GeneratedAt,
	}
	if tr.UtteranceID != uuid.Nil {
		id := tr.UtteranceID
		e.UtteranceID = &id
	}
	return e
}
