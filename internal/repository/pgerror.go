package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PostgreSQLのSQLSTATEコード
const (
	sqlStateUniqueViolation  = "23505"
	sqlStateNotNullViolation = "23502"
	sqlStateCheckViolation   = "23514"
	sqlStateInvalidText      = "22P02"
)

// sqlState はlib/pqまたはpgxのエラーからSQLSTATEを取り出す。
// どちらにも該当しない場合は空文字列を返す。
func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// constraintField は制約違反エラーから対象カラム名を推定する。
func constraintField(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Column != "" {
			return pqErr.Column
		}
		return fieldFromConstraint(pqErr.Constraint)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.ColumnName != "" {
			return pgErr.ColumnName
		}
		return fieldFromConstraint(pgErr.ConstraintName)
	}
	return "story"
}

// fieldFromConstraint は "stories_title_check" のような制約名からカラム名を取り出す。
func fieldFromConstraint(name string) string {
	name = strings.TrimPrefix(name, "stories_")
	for _, suffix := range []string{"_check", "_key", "_not_null"} {
		name = strings.TrimSuffix(name, suffix)
	}
	if name == "" {
		return "story"
	}
	return name
}

// isUniqueViolation は一意制約違反かを判定する。
func isUniqueViolation(err error) bool {
	return sqlState(err) == sqlStateUniqueViolation
}

// ErrDuplicateSource は同じフィードURLのインポート元が既に登録されていることを表す。
var ErrDuplicateSource = errors.New("インポート元は既に登録されています")
