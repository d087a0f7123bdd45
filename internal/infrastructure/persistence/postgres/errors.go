package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation = "23505"
	pgDuplicateTable  = "42P07"
	pgDuplicateObject = "42710"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || pgCode(err) == pgUniqueViolation
}

// isAlreadyExists 并发建索引时的冲突
func isAlreadyExists(err error) bool {
	switch pgCode(err) {
	case pgDuplicateTable, pgDuplicateObject, pgUniqueViolation:
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// isDimensionError pgvector 维度不一致
func isDimensionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "different vector dimensions") ||
		(strings.Contains(msg, "expected") && strings.Contains(msg, "dimensions"))
}
