// internal/services/tx.go
package services

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	txMaxAttempts = 3
	txBackoffBase = 50 * time.Millisecond
)

// runInTx runs fn inside a database transaction, retrying a small fixed
// number of times with backoff when the store reports a serialization or
// deadlock failure. Exhausted retries surface as a CONCURRENCY_CONFLICT.
func runInTx(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		err = db.Transaction(fn)
		if err == nil || !isRetryableTxError(err) {
			return err
		}
		if attempt < txMaxAttempts {
			time.Sleep(time.Duration(attempt) * txBackoffBase)
		}
	}
	return NewConcurrencyConflict(err)
}

func isRetryableTxError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "lock timeout")
}
