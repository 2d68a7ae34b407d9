package database

import (
	"strings"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage clamps page and pageSize into the accepted range
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Paginate adds offset and limit to a query
func Paginate(page, pageSize int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		page, pageSize := NormalizePage(page, pageSize)
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}

// OrderBy adds ordering to a query
func OrderBy(field string, desc bool) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if desc {
			return db.Order(field + " DESC")
		}
		return db.Order(field)
	}
}

// WhereIf adds a where clause only when condition holds
func WhereIf(condition bool, query interface{}, args ...interface{}) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if condition {
			return db.Where(query, args...)
		}
		return db
	}
}

// LikePattern escapes LIKE wildcards in s and wraps it for a contains match
func LikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
