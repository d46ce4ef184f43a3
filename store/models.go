package store

import "time"

// KVEntry is one contract state key. Keys and values are raw bytes: the
// contract packs ids little-endian into its keys.
type KVEntry struct {
	Key   []byte `gorm:"column:kv_key;primaryKey;type:varbinary(255)"`
	Value []byte `gorm:"column:kv_value;type:longblob;not null"`
}

func (KVEntry) TableName() string { return "kv_entries" }

// AuditEntry is one sealed audit event. Payload is the CBOR form the hash covers.
type AuditEntry struct {
	Seq       uint64    `gorm:"column:seq;primaryKey;autoIncrement:false"`
	TxID      string    `gorm:"column:tx_id;size:64;index"`
	Kind      string    `gorm:"column:kind;size:16;index"`
	Actor     string    `gorm:"column:actor;size:128;index"`
	Timestamp int64     `gorm:"column:ts"`
	Payload   []byte    `gorm:"column:payload;type:blob;not null"`
	Prev      []byte    `gorm:"column:prev;type:varbinary(32);not null"`
	Hash      []byte    `gorm:"column:hash;type:varbinary(32);not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (AuditEntry) TableName() string { return "audit_entries" }
