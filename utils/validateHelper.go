package utils

import (
	"context"

	"github.com/mmdatafocus/fulfillment_backend/config"
)

// ValidateResourceId returns ErrorRecordNotFound when no T row has the id.
// Tenant scoping is applied by the tenant guard when T has a tenant_id column.
func ValidateResourceId[T any](ctx context.Context, id interface{}) error {
	var count int64
	err := config.GetDB().WithContext(ctx).Model(new(T)).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}
