package store

import (
	"context"
	"errors"
	"fmt"

	"commons_treasury/codec"
	"commons_treasury/sdk"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNilGormDB   = errors.New("nil gorm db")
	ErrBadAuditRow = errors.New("malformed audit row")
)

// KVEntryDAO reads and writes contract state rows.
type KVEntryDAO interface {
	Get(ctx context.Context, tx *gorm.DB, key string) (*string, error)
	Put(ctx context.Context, tx *gorm.DB, key, value string) error
	Delete(ctx context.Context, tx *gorm.DB, key string) error
	Count(ctx context.Context, tx *gorm.DB) (int64, error)
}

type KVEntryDAOImpl struct{}

var kvEntryDAO KVEntryDAO = &KVEntryDAOImpl{}

func GetKVEntryDAOImpl() KVEntryDAO {
	return kvEntryDAO
}

func (d *KVEntryDAOImpl) Get(ctx context.Context, tx *gorm.DB, key string) (*string, error) {
	if tx == nil {
		return nil, ErrNilGormDB
	}
	var row KVEntry
	err := tx.WithContext(ctx).Where("kv_key = ?", []byte(key)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v := string(row.Value)
	return &v, nil
}

// Put inserts or replaces the row for key.
func (d *KVEntryDAOImpl) Put(ctx context.Context, tx *gorm.DB, key, value string) error {
	if tx == nil {
		return ErrNilGormDB
	}
	row := KVEntry{Key: []byte(key), Value: []byte(value)}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"kv_value"}),
	}).Create(&row).Error
}

func (d *KVEntryDAOImpl) Delete(ctx context.Context, tx *gorm.DB, key string) error {
	if tx == nil {
		return ErrNilGormDB
	}
	return tx.WithContext(ctx).Where("kv_key = ?", []byte(key)).Delete(&KVEntry{}).Error
}

func (d *KVEntryDAOImpl) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, ErrNilGormDB
	}
	var n int64
	err := tx.WithContext(ctx).Model(&KVEntry{}).Count(&n).Error
	return n, err
}

// AuditEntryDAO stores the sealed audit chain.
type AuditEntryDAO interface {
	Append(ctx context.Context, tx *gorm.DB, entries []sdk.SealedEvent) error
	Head(ctx context.Context, tx *gorm.DB) (uint64, [32]byte, error)
	List(ctx context.Context, tx *gorm.DB, fromSeq uint64, limit int) ([]sdk.SealedEvent, error)
	ListByTx(ctx context.Context, tx *gorm.DB, txID string) ([]sdk.SealedEvent, error)
}

type AuditEntryDAOImpl struct{}

var auditEntryDAO AuditEntryDAO = &AuditEntryDAOImpl{}

func GetAuditEntryDAOImpl() AuditEntryDAO {
	return auditEntryDAO
}

func (d *AuditEntryDAOImpl) Append(ctx context.Context, tx *gorm.DB, entries []sdk.SealedEvent) error {
	if tx == nil {
		return ErrNilGormDB
	}
	if len(entries) == 0 {
		return nil
	}
	rows := make([]AuditEntry, 0, len(entries))
	for _, e := range entries {
		payload, err := codec.Marshal(e.Event)
		if err != nil {
			return fmt.Errorf("encoding audit entry %d: %w", e.Seq, err)
		}
		rows = append(rows, AuditEntry{
			Seq:       e.Seq,
			TxID:      e.Event.TxID,
			Kind:      e.Event.Kind,
			Actor:     e.Event.Actor.String(),
			Timestamp: e.Event.Timestamp,
			Payload:   payload,
			Prev:      append([]byte(nil), e.Prev[:]...),
			Hash:      append([]byte(nil), e.Hash[:]...),
		})
	}
	return tx.WithContext(ctx).Create(&rows).Error
}

// Head returns the newest sequence number and hash, zeros for an empty chain.
func (d *AuditEntryDAOImpl) Head(ctx context.Context, tx *gorm.DB) (uint64, [32]byte, error) {
	var head [32]byte
	if tx == nil {
		return 0, head, ErrNilGormDB
	}
	var row AuditEntry
	err := tx.WithContext(ctx).Order("seq DESC").Limit(1).Find(&row).Error
	if err != nil {
		return 0, head, err
	}
	if row.Seq == 0 {
		return 0, head, nil
	}
	if len(row.Hash) != len(head) {
		return 0, head, fmt.Errorf("%w: seq %d hash length %d", ErrBadAuditRow, row.Seq, len(row.Hash))
	}
	copy(head[:], row.Hash)
	return row.Seq, head, nil
}

// List returns up to limit entries starting at fromSeq; limit <= 0 means all.
func (d *AuditEntryDAOImpl) List(ctx context.Context, tx *gorm.DB, fromSeq uint64, limit int) ([]sdk.SealedEvent, error) {
	if tx == nil {
		return nil, ErrNilGormDB
	}
	q := tx.WithContext(ctx).Where("seq >= ?", fromSeq).Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []AuditEntry
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return decodeAuditRows(rows)
}

func (d *AuditEntryDAOImpl) ListByTx(ctx context.Context, tx *gorm.DB, txID string) ([]sdk.SealedEvent, error) {
	if tx == nil {
		return nil, ErrNilGormDB
	}
	var rows []AuditEntry
	if err := tx.WithContext(ctx).Where("tx_id = ?", txID).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return decodeAuditRows(rows)
}

func decodeAuditRows(rows []AuditEntry) ([]sdk.SealedEvent, error) {
	out := make([]sdk.SealedEvent, 0, len(rows))
	for _, r := range rows {
		if len(r.Prev) != 32 || len(r.Hash) != 32 {
			return nil, fmt.Errorf("%w: seq %d", ErrBadAuditRow, r.Seq)
		}
		e := sdk.SealedEvent{Seq: r.Seq}
		if err := codec.Unmarshal(r.Payload, &e.Event); err != nil {
			return nil, fmt.Errorf("%w: seq %d: %v", ErrBadAuditRow, r.Seq, err)
		}
		copy(e.Prev[:], r.Prev)
		copy(e.Hash[:], r.Hash)
		out = append(out, e)
	}
	return out, nil
}
