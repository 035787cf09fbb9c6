package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound 缓存未命中。后端故障返回其他错误，调用方据此区分
// 未命中（直接回源）与后端不可用（回源并记录降级）。
var ErrNotFound = errors.New("cache: key not found")

// Store 缓存存储接口
type Store interface {
	// Set 设置缓存；expiration <= 0 表示不过期
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get 获取缓存；未命中返回 ErrNotFound
	Get(ctx context.Context, key string, dest interface{}) error
	// Delete 删除缓存
	Delete(ctx context.Context, key string) error
	// Exists 检查缓存是否存在
	Exists(ctx context.Context, key string) (bool, error)
	// Clear 清除所有缓存
	Clear(ctx context.Context) error
	// Close 关闭缓存连接
	Close() error
}

// IsMiss 判断错误是否为缓存未命中
func IsMiss(err error) bool {
	return errors.Is(err, ErrNotFound)
}
