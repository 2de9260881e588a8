package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到 (包括已过期的 key)
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示 key 已存在 (例如邀请码已被占用)
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrConflict 表示乐观锁检测到并发修改
	ErrConflict = errors.New("repository: concurrent modification")
)

// 特定资源的错误
var (
	ErrRoomNotFound    = ErrNotFound
	ErrRequestNotFound = ErrNotFound
)
