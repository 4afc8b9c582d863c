package counter

import (
	"errors"
	"fmt"
)

var (
	ErrStoreUnavailable   = errors.New("store unavailable")    // 接続/設定失敗
	ErrStoreWriteConflict = errors.New("store write conflict") // 並行更新で書き込み拒否
	ErrRecordMalformed    = errors.New("record malformed")     // 非負整数でない値
	ErrNotFound           = errors.New("record not found")
)

// Unavailable wraps cause as ErrStoreUnavailable.
func Unavailable(call string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, call, cause)
}

// Conflict wraps cause as ErrStoreWriteConflict.
func Conflict(call string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreWriteConflict, call, cause)
}

// Malformed reports a stored value that is not a non-negative integer.
func Malformed(key string, format string, args ...any) error {
	return fmt.Errorf("%w: key=%s, %s", ErrRecordMalformed, key, fmt.Sprintf(format, args...))
}

// CheckValue rejects negative counts.
func CheckValue(key string, v int64) (int64, error) {
	if v < 0 {
		return 0, Malformed(key, "negative value %d", v)
	}
	return v, nil
}
