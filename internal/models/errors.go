package models

import "github.com/pkg/errors"

// Таксономия ошибок. Фатальна только ErrConfig, остальные пропускают символ или сторону в текущем цикле.
var (
	ErrDataUnavailable     = errors.New("data unavailable")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrOrderTooSmall       = errors.New("order too small")
	ErrOrderRejected       = errors.New("order rejected")
	ErrPersistence         = errors.New("persistence failure")
	ErrTransientNetwork    = errors.New("transient network failure")
	ErrConfig              = errors.New("invalid configuration")
)

// Fatal сообщает, должна ли ошибка остановить процесс.
func Fatal(err error) bool {
	return errors.Is(err, ErrConfig)
}
