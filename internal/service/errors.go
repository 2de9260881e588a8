package service

import (
	"errors"
	"fmt"
)

// ErrNotFound 是所有"未找到"类错误的父错误，
// 使用 errors.Is(err, ErrNotFound) 可统一判断。
var ErrNotFound = errors.New("not found")

var (
	ErrRoomNotFound     = fmt.Errorf("room not found or inactive: %w", ErrNotFound)
	ErrRequestNotFound  = fmt.Errorf("join request not found: %w", ErrNotFound)
	ErrSessionNotFound  = fmt.Errorf("session not found: %w", ErrNotFound)
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("concurrent modification detected")
	ErrInvalidState     = errors.New("invalid state transition")
	ErrNotHost          = errors.New("operation requires the room host")
)

// storeError 把仓库层的底层错误包装为 ErrStoreUnavailable，保留原始错误链。
func storeError(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
