package repository

import (
	"errors"

	"github.com/lib/pq"
)

// リポジトリ層のセンチネルエラー。
// サービス層はこれらをerrors.Isで判別し、ドメインエラーに変換する。
var (
	// ErrDuplicateEmail は購読者メールアドレスの一意制約違反。
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateToken は確認トークンの主キー衝突。
	ErrDuplicateToken = errors.New("subscription token already exists")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// isUniqueViolation はPostgreSQLの一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// isForeignKeyViolation はPostgreSQLの外部キー制約違反かどうかを判定する。
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}

// isUniqueViolationOn は指定制約名の一意制約違反かどうかを判定する。
func isUniqueViolationOn(err error, constraint string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) &&
		pqErr.Code == pqUniqueViolation &&
		pqErr.Constraint == constraint
}
