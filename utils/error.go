package utils

import "errors"

var (
	ErrorRecordNotFound  = errors.New("record not found")
	ErrorTenantRequired  = errors.New("tenant id is required")
	ErrorOrderLockFailed = errors.New("could not obtain order lock")
)
