package dao

import (
	"bytes"
	"encoding/binary"
	"errors"
)

var (
	ErrUnexpectedEOF = errors.New("unexpected EOF")
	ErrTrailingBytes = errors.New("trailing bytes after record")
	ErrInvalidMethod = errors.New("invalid counting method")
)

type binWriter struct {
	buf bytes.Buffer
}

func newWriter() *binWriter { return &binWriter{} }

func (w *binWriter) bytes() []byte { return w.buf.Bytes() }

func (w *binWriter) writeByte(b byte) { w.buf.WriteByte(b) }

func (w *binWriter) writeBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *binWriter) writeUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *binWriter) writeInt64(v int64) {
	w.writeUint64(uint64(v))
}

func (w *binWriter) writeVarUint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf.Write(tmp[:n])
}

// writeAmount is fixed 32 bytes big endian so every amount has the same width.
func (w *binWriter) writeAmount(v Amount) {
	b := v.v.Bytes32()
	w.buf.Write(b[:])
}

func (w *binWriter) writeString(s string) {
	w.writeVarUint(uint64(len(s)))
	w.buf.WriteString(s)
}

func (w *binWriter) writeAddress(a Address) {
	w.writeString(a.String())
}

func (w *binWriter) writeUint64s(ids []uint64) {
	w.writeVarUint(uint64(len(ids)))
	for _, id := range ids {
		w.writeVarUint(id)
	}
}

// ------------------------------------------------------------------
// Decoder helpers
// ------------------------------------------------------------------

// binReader keeps the first error; later reads become no-ops returning zero values.
type binReader struct {
	data []byte
	pos  int
	err  error
}

func newReader(data []byte) *binReader {
	return &binReader{data: data}
}

func (r *binReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = ErrUnexpectedEOF
		return false
	}
	return true
}

func (r *binReader) readByte() byte {
	if !r.need(1) {
		return 0
	}
	b := r.data[r.pos]
	r.pos++
	return b
}

func (r *binReader) readBool() bool {
	return r.readByte() == 1
}

func (r *binReader) readUint64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v
}

func (r *binReader) readInt64() int64 {
	return int64(r.readUint64())
}

func (r *binReader) readVarUint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		r.err = errors.New("invalid varuint")
		return 0
	}
	r.pos += n
	return v
}

func (r *binReader) readAmount() Amount {
	var a Amount
	if !r.need(32) {
		return a
	}
	a.v.SetBytes32(r.data[r.pos : r.pos+32])
	r.pos += 32
	return a
}

func (r *binReader) readString() string {
	l := r.readVarUint()
	if l > uint64(len(r.data)) || !r.need(int(l)) {
		if r.err == nil {
			r.err = ErrUnexpectedEOF
		}
		return ""
	}
	s := string(r.data[r.pos : r.pos+int(l)])
	r.pos += int(l)
	return s
}

func (r *binReader) readAddress() Address {
	return Address(r.readString())
}

// readCount bounds slice lengths by what is left in the buffer.
func (r *binReader) readCount() int {
	n := r.readVarUint()
	if n > uint64(len(r.data)-r.pos) {
		if r.err == nil {
			r.err = ErrUnexpectedEOF
		}
		return 0
	}
	return int(n)
}

func (r *binReader) readUint64s() []uint64 {
	n := r.readCount()
	if n == 0 {
		return nil
	}
	out := make([]uint64, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, r.readVarUint())
	}
	return out
}

func (r *binReader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.pos != len(r.data) {
		return ErrTrailingBytes
	}
	return nil
}

// ------------------------------------------------------------------
// Records
// ------------------------------------------------------------------

// EncodeDonor packs a Donor for storage.
// Example payload: EncodeDonor(&Donor{Address: "hive:alice", TotalDonated: Ether(1)})
func EncodeDonor(d *Donor) []byte {
	w := newWriter()
	w.writeAddress(d.Address)
	w.writeAmount(d.TotalDonated)
	w.writeAmount(d.TotalUnallocated)
	w.writeAmount(d.PersonalBalance)
	w.writeByte(byte(d.RefundPolicy))
	w.writeUint64(d.ReceiptCount)
	return w.bytes()
}

func DecodeDonor(data []byte) (*Donor, error) {
	r := newReader(data)
	d := &Donor{
		Address:          r.readAddress(),
		TotalDonated:     r.readAmount(),
		TotalUnallocated: r.readAmount(),
		PersonalBalance:  r.readAmount(),
		RefundPolicy:     RefundPolicy(r.readByte()),
		ReceiptCount:     r.readUint64(),
	}
	return d, r.done()
}

// EncodeReceipt packs an immutable receipt including its splits.
func EncodeReceipt(rc *Receipt) []byte {
	w := newWriter()
	w.writeUint64(rc.Seq)
	w.writeAddress(rc.Donor)
	w.writeByte(byte(rc.Kind))
	w.writeAmount(rc.Amount)
	w.writeInt64(rc.Timestamp)
	w.writeVarUint(uint64(len(rc.Splits)))
	for _, s := range rc.Splits {
		w.writeUint64(s.ProjectID)
		w.writeAmount(s.Amount)
	}
	w.writeString(rc.TxID)
	return w.bytes()
}

func DecodeReceipt(data []byte) (*Receipt, error) {
	r := newReader(data)
	rc := &Receipt{
		Seq:       r.readUint64(),
		Donor:     r.readAddress(),
		Kind:      ReceiptKind(r.readByte()),
		Amount:    r.readAmount(),
		Timestamp: r.readInt64(),
	}
	if n := r.readCount(); n > 0 {
		rc.Splits = make([]Split, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			rc.Splits = append(rc.Splits, Split{ProjectID: r.readUint64(), Amount: r.readAmount()})
		}
	}
	rc.TxID = r.readString()
	return rc, r.done()
}

// EncodeProject serializes the entire Project into deterministic bytes.
// Example payload: EncodeProject(&Project{ID: 7, Name: "well", Target: Ether(10)})
func EncodeProject(p *Project) []byte {
	w := newWriter()
	w.writeUint64(p.ID)
	w.writeUint64(p.Seq)
	w.writeString(p.Name)
	w.writeString(p.Description)
	w.writeString(p.Category)
	w.writeAmount(p.Target)
	w.writeAmount(p.SoftCap)
	w.writeAmount(p.HardCap)
	w.writeBool(p.SoftCapEnabled)
	w.writeUint64(p.Priority)
	w.writeByte(byte(p.Status))
	w.writeAmount(p.TotalAllocated)
	w.writeAmount(p.TotalPaidOut)
	w.writeInt64(p.CreatedAt)
	w.writeInt64(p.Deadline)
	w.writeAddress(p.Creator)
	return w.bytes()
}

func DecodeProject(data []byte) (*Project, error) {
	r := newReader(data)
	p := &Project{
		ID:             r.readUint64(),
		Seq:            r.readUint64(),
		Name:           r.readString(),
		Description:    r.readString(),
		Category:       r.readString(),
		Target:         r.readAmount(),
		SoftCap:        r.readAmount(),
		HardCap:        r.readAmount(),
		SoftCapEnabled: r.readBool(),
		Priority:       r.readUint64(),
		Status:         ProjectStatus(r.readByte()),
		TotalAllocated: r.readAmount(),
		TotalPaidOut:   r.readAmount(),
		CreatedAt:      r.readInt64(),
		Deadline:       r.readInt64(),
		Creator:        r.readAddress(),
	}
	return p, r.done()
}

// EncodeRound stores the round header; ballots and tallies live under their own keys.
func EncodeRound(rd *Round) []byte {
	w := newWriter()
	w.writeUint64(rd.ID)
	w.writeUint64s(rd.Projects)
	w.writeInt64(rd.StartedAt)
	w.writeInt64(rd.CommitDeadline)
	w.writeInt64(rd.RevealDeadline)
	w.writeByte(byte(rd.Method))
	w.writeVarUint(uint64(rd.CancellationThreshold))
	w.writeByte(byte(rd.Status))
	w.writeUint64(rd.CommitCount)
	w.writeUint64(rd.RevealCount)
	w.writeUint64(rd.EligibleVoters)
	w.writeVarUint(uint64(rd.TurnoutBps))
	w.writeUint64s(rd.Ranking)
	return w.bytes()
}

func DecodeRound(data []byte) (*Round, error) {
	r := newReader(data)
	rd := &Round{
		ID:                    r.readUint64(),
		Projects:              r.readUint64s(),
		StartedAt:             r.readInt64(),
		CommitDeadline:        r.readInt64(),
		RevealDeadline:        r.readInt64(),
		Method:                CountingMethod(r.readByte()),
		CancellationThreshold: uint32(r.readVarUint()),
		Status:                RoundStatus(r.readByte()),
		CommitCount:           r.readUint64(),
		RevealCount:           r.readUint64(),
		EligibleVoters:        r.readUint64(),
		TurnoutBps:            uint32(r.readVarUint()),
		Ranking:               r.readUint64s(),
	}
	return rd, r.done()
}

func EncodeBallot(b *Ballot) []byte {
	w := newWriter()
	w.buf.Write(b.Hash[:])
	w.writeBool(b.Revealed)
	w.writeAmount(b.Weight)
	w.writeVarUint(uint64(len(b.Choices)))
	for _, c := range b.Choices {
		w.writeByte(byte(c))
	}
	return w.bytes()
}

func DecodeBallot(data []byte) (*Ballot, error) {
	r := newReader(data)
	b := &Ballot{}
	if r.need(32) {
		copy(b.Hash[:], r.data[r.pos:r.pos+32])
		r.pos += 32
	}
	b.Revealed = r.readBool()
	b.Weight = r.readAmount()
	if n := r.readCount(); n > 0 {
		b.Choices = make([]Choice, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			b.Choices = append(b.Choices, Choice(r.readByte()))
		}
	}
	return b, r.done()
}

func EncodeTally(t *Tally) []byte {
	w := newWriter()
	w.writeAmount(t.ForWeight)
	w.writeAmount(t.AgainstWeight)
	w.writeUint64(t.AbstainCount)
	w.writeUint64(t.NotParticipatingCount)
	w.writeAmount(t.BordaPoints)
	return w.bytes()
}

func DecodeTally(data []byte) (*Tally, error) {
	r := newReader(data)
	t := &Tally{
		ForWeight:             r.readAmount(),
		AgainstWeight:         r.readAmount(),
		AbstainCount:          r.readUint64(),
		NotParticipatingCount: r.readUint64(),
		BordaPoints:           r.readAmount(),
	}
	return t, r.done()
}

// EncodeMultisigTx packs a gate transaction; the payout reference is optional.
func EncodeMultisigTx(tx *MultisigTx) []byte {
	w := newWriter()
	w.writeUint64(tx.ID)
	w.writeAddress(tx.To)
	w.writeAmount(tx.Value)
	w.writeBool(tx.Executed)
	w.writeVarUint(uint64(tx.Confirmations))
	w.writeAddress(tx.Proposer)
	w.writeInt64(tx.CreatedAt)
	if tx.Payout == nil {
		w.writeBool(false)
	} else {
		w.writeBool(true)
		w.writeUint64(tx.Payout.ProjectID)
		w.writeString(tx.Payout.PayoutID)
	}
	return w.bytes()
}

func DecodeMultisigTx(data []byte) (*MultisigTx, error) {
	r := newReader(data)
	tx := &MultisigTx{
		ID:            r.readUint64(),
		To:            r.readAddress(),
		Value:         r.readAmount(),
		Executed:      r.readBool(),
		Confirmations: uint32(r.readVarUint()),
		Proposer:      r.readAddress(),
		CreatedAt:     r.readInt64(),
	}
	if r.readBool() {
		tx.Payout = &PayoutRef{ProjectID: r.readUint64(), PayoutID: r.readString()}
	}
	return tx, r.done()
}

func EncodePayoutRecord(p *PayoutRecord) []byte {
	w := newWriter()
	w.writeString(p.ID)
	w.writeUint64(p.ProjectID)
	w.writeAddress(p.To)
	w.writeAmount(p.Amount)
	w.writeInt64(p.Timestamp)
	w.writeString(p.TxID)
	return w.bytes()
}

func DecodePayoutRecord(data []byte) (*PayoutRecord, error) {
	r := newReader(data)
	p := &PayoutRecord{
		ID:        r.readString(),
		ProjectID: r.readUint64(),
		To:        r.readAddress(),
		Amount:    r.readAmount(),
		Timestamp: r.readInt64(),
		TxID:      r.readString(),
	}
	return p, r.done()
}
