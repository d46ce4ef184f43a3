package contract

import "commons_treasury/sdk"

// packU64LEInline writes a uint64 into dst in little-endian order so keys stay compact.
func packU64LEInline(x uint64, dst []byte) {
	dst[0] = byte(x)
	dst[1] = byte(x >> 8)
	dst[2] = byte(x >> 16)
	dst[3] = byte(x >> 24)
	dst[4] = byte(x >> 32)
	dst[5] = byte(x >> 40)
	dst[6] = byte(x >> 48)
	dst[7] = byte(x >> 56)
}

// packU32LEInline mirrors the 64-bit helper for project slots inside a round.
func packU32LEInline(x uint32, dst []byte) {
	dst[0] = byte(x)
	dst[1] = byte(x >> 8)
	dst[2] = byte(x >> 16)
	dst[3] = byte(x >> 24)
}

// packU64LE appends the encoded number to dst and returns the new slice.
func packU64LE(x uint64, dst []byte) []byte {
	return append(dst,
		byte(x),
		byte(x>>8),
		byte(x>>16),
		byte(x>>24),
		byte(x>>32),
		byte(x>>40),
		byte(x>>48),
		byte(x>>56),
	)
}

func idKey(prefix byte, id uint64) string {
	var buf [9]byte
	buf[0] = prefix
	packU64LEInline(id, buf[1:])
	return string(buf[:])
}

func idAddrKey(prefix byte, id uint64, addr sdk.Address) string {
	a := addr.Canonical().String()
	buf := make([]byte, 0, 1+8+len(a))
	buf = append(buf, prefix)
	buf = packU64LE(id, buf)
	buf = append(buf, a...)
	return string(buf)
}

func addrKey(prefix byte, addr sdk.Address) string {
	a := addr.Canonical().String()
	buf := make([]byte, 0, 1+len(a))
	buf = append(buf, prefix)
	buf = append(buf, a...)
	return string(buf)
}

func donorKey(addr sdk.Address) string { return addrKey(kDonor, addr) }

// receiptKey orders a donor's receipts by sequence under the donor's address.
func receiptKey(addr sdk.Address, seq uint64) string {
	a := addr.Canonical().String()
	buf := make([]byte, 0, 1+len(a)+1+8)
	buf = append(buf, kReceipt)
	buf = append(buf, a...)
	buf = append(buf, 0)
	buf = packU64LE(seq, buf)
	return string(buf)
}

// allocationKey puts the project first so all donors of one project share a prefix.
func allocationKey(projectID uint64, addr sdk.Address) string {
	return idAddrKey(kAllocation, projectID, addr)
}

func projectKey(id uint64) string { return idKey(kProject, id) }

// projectSeqKey maps creation order back to the project id.
func projectSeqKey(seq uint64) string { return idKey(kProjectSeq, seq) }

func categoryCountKey(category string) string { return string(kCategoryCount) + category }
func categoryLimitKey(category string) string { return string(kCategoryLimit) + category }

func weightKey(addr sdk.Address) string { return addrKey(kWeight, addr) }

func roundKey(id uint64) string { return idKey(kRound, id) }

func ballotKey(roundID uint64, voter sdk.Address) string {
	return idAddrKey(kBallot, roundID, voter)
}

// tallyKey stores per project tallies by slot index inside the round.
func tallyKey(roundID uint64, slot uint32) string {
	var buf [13]byte
	buf[0] = kTally
	packU64LEInline(roundID, buf[1:])
	packU32LEInline(slot, buf[9:])
	return string(buf[:])
}

func multisigTxKey(id uint64) string { return idKey(kMultisigTx, id) }

func confirmationKey(txID uint64, owner sdk.Address) string {
	return idAddrKey(kConfirmation, txID, owner)
}

func payoutKey(payoutID string) string { return string(kPayout) + payoutID }
