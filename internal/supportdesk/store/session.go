package store

import (
	"context"
	"time"

	"github.com/kart-io/supportdesk/internal/model"
)

// SessionStore 定义会话存储接口。实现必须可并发使用。
type SessionStore interface {
	// Create 创建新会话。
	Create(ctx context.Context, session *model.Session) error

	// Get 按 ID 获取会话（含全部消息）。会话不存在时返回 ErrSessionNotFound。
	Get(ctx context.Context, id string) (*model.Session, error)

	// Save 持久化会话的消息和最后活跃时间。
	Save(ctx context.Context, session *model.Session) error

	// Delete 删除会话。返回值表示会话删除前是否存在。
	Delete(ctx context.Context, id string) (bool, error)

	// ExpiredIDs 返回在 now 时刻空闲时间超过 timeout 的会话 ID。
	ExpiredIDs(ctx context.Context, now time.Time, timeout time.Duration) ([]string, error)

	// Count 返回当前存储的会话数量。
	Count(ctx context.Context) (int64, error)

	// Close 关闭底层存储。
	Close() error
}
