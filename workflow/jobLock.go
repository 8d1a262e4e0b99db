package workflow

import (
	"fmt"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"gorm.io/gorm"
)

// AcquireJobLock keeps two instances of a periodic job from running the same
// scope at once, using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so conn must be pinned (db.Connection)
// and used for the whole job. sqlite runs on a single connection and skips it.
func AcquireJobLock(conn *gorm.DB, name string) error {
	if conn.Dialector.Name() != config.DriverMySQL {
		return nil
	}
	var ok int
	if err := conn.Raw("SELECT GET_LOCK(?, 30)", jobLockName(name)).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire job lock %s", name)
	}
	return nil
}

func ReleaseJobLock(conn *gorm.DB, name string) {
	if conn.Dialector.Name() != config.DriverMySQL {
		return
	}
	var _ok int
	_ = conn.Raw("SELECT RELEASE_LOCK(?)", jobLockName(name)).Scan(&_ok).Error
}

func jobLockName(name string) string {
	return "job:" + name
}
