package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// runLedgerTx runs fn in one transaction bounded by LEDGER_LOCK_TIMEOUT_SECONDS.
// Any error rolls everything back; lock contention comes back as ErrConflictRetry.
func runLedgerTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	timeout := config.LedgerLockTimeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx := config.GetDB().WithContext(ctx).Begin()
	if tx.Error != nil {
		return classifyLedgerError(ctx, tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if tx.Dialector.Name() == config.DriverMySQL {
		secs := int(timeout / time.Second)
		if err := tx.Exec("SET innodb_lock_wait_timeout = ?", secs).Error; err != nil {
			tx.Rollback()
			return classifyLedgerError(ctx, err)
		}
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return classifyLedgerError(ctx, err)
	}
	if err := tx.Commit().Error; err != nil {
		return classifyLedgerError(ctx, err)
	}
	return nil
}

func classifyLedgerError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && (myErr.Number == mysqlErrLockWaitTimeout || myErr.Number == mysqlErrDeadlock) {
		return fmt.Errorf("%w: %s", ErrConflictRetry, myErr.Message)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: concurrent insert", ErrConflictRetry)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: lock wait exceeded", ErrConflictRetry)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return fmt.Errorf("%w: %s", ErrConflictRetry, msg)
	}
	return err
}

func isDomainError(err error) bool {
	for _, target := range []error{
		ErrInvalidQuantity, ErrInsufficientAvailable, ErrInsufficientOnHand,
		ErrOrderNotFound, ErrInvalidTransition, ErrConflictRetry, ErrSameLocation,
		ErrDuplicateLine, ErrLedgerInvariant, ErrIntegrationInvalid,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// RetryOnConflict re-runs fn while it fails with ErrConflictRetry, up to
// LEDGER_RETRY_ATTEMPTS, doubling LEDGER_RETRY_BACKOFF_MS between attempts.
func RetryOnConflict(ctx context.Context, fn func() error) error {
	attempts := config.LedgerRetryAttempts()
	backoff := config.LedgerRetryBackoff()

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrConflictRetry) {
			return err
		}
		if attempt == attempts {
			break
		}
		config.GetLogger().WithFields(logrus.Fields{
			"field":   "RetryOnConflict",
			"attempt": attempt,
		}).Warn(err.Error())

		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff * time.Duration(1<<(attempt-1))):
		}
	}
	return err
}
