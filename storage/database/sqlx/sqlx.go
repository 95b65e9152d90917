// Package sqlxrepos implements the repositories on postgres, with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/eligue/academy/core/catalog"
)

// questionList is stored as a JSONB array.
type questionList []catalog.Question

func (ql questionList) Value() (driver.Value, error) {
	if ql == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(ql)
}

func (ql *questionList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*ql = questionList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("questionList: cannot scan %T", src)
	}
	return json.Unmarshal(data, (*[]catalog.Question)(ql))
}

// withTx runs fn in a transaction, committed when fn succeeds.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func toInt64s(ids []int) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}

func toInts(ids []int64) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		out = append(out, int(id))
	}
	return out
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
