package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/sirupsen/logrus"
)

const orderLockTTL = 30 * time.Second

// OrderLock serializes operations on one order across processes.
// The returned release func is always non-nil.
//
// Without redis the lock is skipped (row locks and the reservation state
// filter still hold) unless REQUIRE_ORDER_LOCK is set.
func OrderLock(ctx context.Context, tenantId string, orderId int, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	noop := func() {}

	locker := config.GetRedisLock()
	if locker == nil {
		if config.RequireOrderLock() {
			config.LogError(logger, moduleName, functionName, "Redis lock not initialized", orderId, errors.New("redis lock is nil"))
			return noop, errors.New("service not ready (redis lock not initialized)")
		}
		logger.WithFields(logrus.Fields{
			"field":     functionName,
			"tenant_id": tenantId,
			"order_id":  orderId,
		}).Debug("order lock skipped: redis not connected")
		return noop, nil
	}

	lockKey := fmt.Sprintf("orderLock:%s:%d", tenantId, orderId)
	lock, err := locker.Obtain(ctx, lockKey, orderLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for order", lockKey, err)
		return noop, ErrorOrderLockFailed
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for order", lockKey, err)
		return noop, err
	}

	return func() {
		// The lock has its own context so a cancelled request still releases it.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			config.LogError(logger, moduleName, functionName, "Error releasing order lock", lockKey, err)
		}
	}, nil
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errorResponse["request"] = err.Error()
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayWindow turns an inclusive range of UTC days into the half-open interval
// [from, until) so timestamps late on the last day still match.
func DayWindow(start, end time.Time) (from time.Time, until time.Time) {
	return StartOfDay(start), StartOfDay(end).AddDate(0, 0, 1)
}
