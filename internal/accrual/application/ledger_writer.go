package application

import (
	"context"
	"errors"
	"log"

	accrual "solar-billing/internal/accrual/domain"
	"solar-billing/internal/observability/metrics"
)

// WriteOutcome distinguishes a new ledger row from an already billed day.
type WriteOutcome string

const (
	WriteInserted      WriteOutcome = "inserted"
	WriteAlreadyBilled WriteOutcome = "already_billed"
)

// LedgerWriter inserts each ledger entry at most once.
type LedgerWriter struct {
	repo   accrual.LedgerRepository
	logger *log.Logger
}

// NewLedgerWriter constructs a writer.
func NewLedgerWriter(repo accrual.LedgerRepository, logger *log.Logger) (*LedgerWriter, error) {
	if repo == nil {
		return nil, errors.New("ledger writer: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &LedgerWriter{repo: repo, logger: logger}, nil
}

// Write checks for an existing row and inserts otherwise. A unique violation
// from a concurrent writer is reported as WriteAlreadyBilled.
func (w *LedgerWriter) Write(ctx context.Context, entry accrual.LedgerEntry) (WriteOutcome, error) {
	if entry == nil {
		return "", accrual.ErrNilEntry
	}
	key := entry.Key()
	family := string(entry.Family())

	exists, err := w.repo.Exists(ctx, entry.Family(), key)
	if err != nil {
		return "", err
	}
	if exists {
		w.logger.Printf("ledger exists: family=%s station=%s on_date=%s", family, key.StationCode, key.OnDate.Format("2006-01-02"))
		metrics.IncLedgerWrite(family, string(WriteAlreadyBilled))
		return WriteAlreadyBilled, nil
	}

	if err := w.repo.Insert(ctx, entry); err != nil {
		if errors.Is(err, accrual.ErrDuplicateLedgerEntry) {
			w.logger.Printf("ledger exists: family=%s station=%s on_date=%s race=true", family, key.StationCode, key.OnDate.Format("2006-01-02"))
			metrics.IncLedgerWrite(family, string(WriteAlreadyBilled))
			return WriteAlreadyBilled, nil
		}
		return "", err
	}
	w.logger.Printf("ledger insert: family=%s station=%s on_date=%s total=%s revenue=%s",
		family, key.StationCode, key.OnDate.Format("2006-01-02"), entry.Total(), entry.Amount())
	metrics.IncLedgerWrite(family, string(WriteInserted))
	return WriteInserted, nil
}
