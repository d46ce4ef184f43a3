package sdk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"

	"commons_treasury/codec"

	"lukechampine.com/blake3"
)

// ErrBrokenChain is returned by VerifyChain when an entry does not link to its predecessor.
var ErrBrokenChain = errors.New("audit chain broken")

// Event is one structured audit entry. Entities and Amounts are indexed by the external indexer.
type Event struct {
	Kind      string            `cbor:"1,keyasint" json:"kind"`
	Actor     Address           `cbor:"2,keyasint" json:"actor"`
	TxID      string            `cbor:"3,keyasint" json:"tx"`
	Timestamp int64             `cbor:"4,keyasint" json:"ts"`
	Entities  map[string]string `cbor:"5,keyasint,omitempty" json:"entities,omitempty"`
	Amounts   map[string]string `cbor:"6,keyasint,omitempty" json:"amounts,omitempty"`
}

// Line renders the short pipe form used in host logs, e.g. "dn|by:hive:alice|am:1000".
func (e Event) Line() string {
	var b strings.Builder
	b.WriteString(e.Kind)
	b.WriteString("|by:")
	b.WriteString(e.Actor.String())
	writeSorted(&b, e.Entities)
	writeSorted(&b, e.Amounts)
	return b.String()
}

func writeSorted(b *strings.Builder, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(m[k])
	}
}

// SealedEvent is an Event after it was appended to the log.
type SealedEvent struct {
	Seq   uint64
	Event Event
	Prev  [32]byte
	Hash  [32]byte
}

// Seal links ev behind prev. The hash covers prev, the sequence number and the CBOR form of ev.
func Seal(seq uint64, prev [32]byte, ev Event) (SealedEvent, error) {
	hash, err := chainHash(seq, prev, ev)
	if err != nil {
		return SealedEvent{}, err
	}
	return SealedEvent{Seq: seq, Event: ev, Prev: prev, Hash: hash}, nil
}

func chainHash(seq uint64, prev [32]byte, ev Event) ([32]byte, error) {
	var out [32]byte
	payload, err := codec.Marshal(ev)
	if err != nil {
		return out, err
	}
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	h := blake3.New(32, nil)
	h.Write(prev[:])
	h.Write(seqBuf[:])
	h.Write(payload)
	copy(out[:], h.Sum(nil))
	return out, nil
}

// VerifyChain recomputes every hash and checks the links between consecutive entries.
func VerifyChain(entries []SealedEvent) error {
	var prev [32]byte
	for i, e := range entries {
		if i > 0 && e.Seq != entries[i-1].Seq+1 {
			return fmt.Errorf("%w: sequence gap at %d", ErrBrokenChain, e.Seq)
		}
		if i > 0 && e.Prev != prev {
			return fmt.Errorf("%w: entry %d does not follow %d", ErrBrokenChain, e.Seq, entries[i-1].Seq)
		}
		want, err := chainHash(e.Seq, e.Prev, e.Event)
		if err != nil {
			return err
		}
		if want != e.Hash {
			return fmt.Errorf("%w: entry %d hash mismatch", ErrBrokenChain, e.Seq)
		}
		prev = e.Hash
	}
	return nil
}

// EventLog is the in-memory append-only log behind MemoryHost.
type EventLog struct {
	entries []SealedEvent
}

// Head returns the hash of the newest entry, zero for an empty log.
func (l *EventLog) Head() [32]byte {
	if len(l.entries) == 0 {
		return [32]byte{}
	}
	return l.entries[len(l.entries)-1].Hash
}

// Append seals and stores events in order, returning the sealed copies.
func (l *EventLog) Append(events ...Event) ([]SealedEvent, error) {
	sealed := make([]SealedEvent, 0, len(events))
	prev := l.Head()
	seq := uint64(len(l.entries))
	for _, ev := range events {
		seq++
		s, err := Seal(seq, prev, ev)
		if err != nil {
			return nil, err
		}
		sealed = append(sealed, s)
		prev = s.Hash
	}
	l.entries = append(l.entries, sealed...)
	return sealed, nil
}

// Entries returns a copy of the log.
func (l *EventLog) Entries() []SealedEvent {
	out := make([]SealedEvent, len(l.entries))
	copy(out, l.entries)
	return out
}
