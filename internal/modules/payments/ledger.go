package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Ledger is the durable store of verified payments.
type Ledger interface {
	// FindByReferenceAndUser returns nil, nil when the user has no record for reference.
	FindByReferenceAndUser(ctx context.Context, reference, userID string) (*PaymentRecord, error)
	// InsertIfAbsent creates rec atomically. When the reference already exists it
	// returns the stored record and inserted=false instead of an error.
	InsertIfAbsent(ctx context.Context, rec PaymentRecord) (stored PaymentRecord, inserted bool, err error)
}

type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) FindByReferenceAndUser(ctx context.Context, reference, userID string) (*PaymentRecord, error) {
	var rec PaymentRecord
	err := l.db.WithContext(ctx).
		First(&rec, "reference = ? AND user_id = ?", reference, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (l *GormLedger) FindByReference(ctx context.Context, reference string) (*PaymentRecord, error) {
	var rec PaymentRecord
	err := l.db.WithContext(ctx).First(&rec, "reference = ?", reference).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (l *GormLedger) InsertIfAbsent(ctx context.Context, rec PaymentRecord) (PaymentRecord, bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	// unique(reference) decides the winner; no lock, no read-before-write
	err := l.db.WithContext(ctx).Create(&rec).Error
	if err == nil {
		return rec, true, nil
	}
	if !isDup(err) {
		return PaymentRecord{}, false, err
	}

	existing, ferr := l.FindByReference(ctx, rec.Reference)
	if ferr != nil {
		return PaymentRecord{}, false, ferr
	}
	if existing == nil {
		// duplicate reported but row invisible: surface the original error
		return PaymentRecord{}, false, err
	}
	return *existing, false, nil
}

func isDup(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return true
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	// sqlite (tests, local tooling)
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
