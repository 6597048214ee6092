package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/supportdesk/internal/model"
)

// GormSessionStore 基于 GORM 的会话持久化存储。
type GormSessionStore struct {
	db *gorm.DB
}

// NewSQLiteSessionStore opens a SQLite-backed session store at dsn and runs
// the schema migration.
func NewSQLiteSessionStore(dsn string) (*GormSessionStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return NewGormSessionStore(db)
}

// NewGormSessionStore creates a session store from an existing GORM DB.
func NewGormSessionStore(db *gorm.DB) (*GormSessionStore, error) {
	if err := db.AutoMigrate(&model.Session{}, &model.Message{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session schema: %w", err)
	}
	return &GormSessionStore{db: db}, nil
}

// Create 创建新会话。
func (s *GormSessionStore) Create(ctx context.Context, session *model.Session) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get 按 ID 获取会话，消息按时间升序。
func (s *GormSessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// Save 持久化会话。消息整体替换，被裁剪掉的历史消息一并删除。
func (s *GormSessionStore) Save(ctx context.Context, session *model.Session) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Session{}).
			Where("id = ?", session.ID).
			Updates(map[string]any{
				"last_activity": session.LastActivity,
				"metadata":      session.Metadata,
				"active":        session.Active,
				"ended_at":      session.EndedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update session: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrSessionNotFound
		}

		ids := make([]string, 0, len(session.Messages))
		for i := range session.Messages {
			session.Messages[i].SessionID = session.ID
			ids = append(ids, session.Messages[i].ID)
		}

		del := tx.Where("session_id = ?", session.ID)
		if len(ids) > 0 {
			del = del.Where("id NOT IN ?", ids)
		}
		if err := del.Delete(&model.Message{}).Error; err != nil {
			return fmt.Errorf("failed to prune messages: %w", err)
		}

		for i := range session.Messages {
			err := tx.Where("id = ?", session.Messages[i].ID).
				FirstOrCreate(&session.Messages[i]).Error
			if err != nil {
				return fmt.Errorf("failed to save message: %w", err)
			}
		}
		return nil
	})
}

// Delete 删除会话及其消息。
func (s *GormSessionStore) Delete(ctx context.Context, id string) (bool, error) {
	var existed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&model.Session{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete session: %w", result.Error)
		}
		existed = result.RowsAffected > 0
		if err := tx.Delete(&model.Message{}, "session_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		return nil
	})
	return existed, err
}

// ExpiredIDs 返回过期会话 ID。
func (s *GormSessionStore) ExpiredIDs(ctx context.Context, now time.Time, timeout time.Duration) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&model.Session{}).
		Where("last_activity < ?", now.Add(-timeout)).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}
	return ids, nil
}

// Count 返回会话数量。
func (s *GormSessionStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Session{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// Close 关闭底层数据库连接。
func (s *GormSessionStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ SessionStore = (*GormSessionStore)(nil)
