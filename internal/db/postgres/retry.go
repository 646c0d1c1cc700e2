// Package postgres — retry.go ограничивает каждую операцию с БД по времени
// и повторяет временные сбои с экспоненциальной задержкой и джиттером.
package postgres

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"
)

// Retrier выполняет операции с хранилищем с таймаутом и повторами.
type Retrier struct {
	timeout  time.Duration
	attempts uint64
	base     time.Duration
}

// NewRetrier создаёт Retrier.
//
// Параметры:
//   - timeout: общий лимит на операцию вместе со всеми повторами
//   - attempts: сколько раз повторить временную ошибку (0 = без повторов)
//   - base: первая задержка, дальше удваивается
func NewRetrier(timeout time.Duration, attempts uint64, base time.Duration) *Retrier {
	return &Retrier{timeout: timeout, attempts: attempts, base: base}
}

// Do выполняет fn. Временные ошибки повторяются, итоговая ошибка
// проходит через Classify, поэтому вызывающий код проверяет её через errors.Is.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	b := retry.NewExponential(r.base)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithMaxRetries(r.attempts, b)

	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && IsTransient(err) {
			log.WithFields(log.Fields{
				"op":      op,
				"attempt": attempt,
			}).WithError(err).Warn("Временная ошибка БД, повторяем")
			return retry.RetryableError(err)
		}
		return err
	})

	return Classify(err)
}
