package database

import (
	"time"

	"gorm.io/gorm"
)

// =============================================================================
// ⏱️ 语句耗时回调
// =============================================================================

const startKey = "schemaforge:query_start"

// InstrumentQueries 在 GORM 各类语句前后注册回调，observe 收到操作名与耗时。
// 操作名为 create、query、update、delete、row、raw。
func InstrumentQueries(db *gorm.DB, observe func(operation string, d time.Duration)) error {
	before := func(tx *gorm.DB) { tx.InstanceSet(startKey, time.Now()) }
	after := func(op string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(startKey)
			if !ok {
				return
			}
			if start, ok := v.(time.Time); ok {
				observe(op, time.Since(start))
			}
		}
	}

	cb := db.Callback()
	for _, reg := range []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	} {
		if err := reg.before("schemaforge:before_"+reg.op, before); err != nil {
			return err
		}
		if err := reg.after("schemaforge:after_"+reg.op, after(reg.op)); err != nil {
			return err
		}
	}
	return nil
}
