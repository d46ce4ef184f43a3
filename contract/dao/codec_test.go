package dao

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectRecord(t *testing.T) {
	p := &Project{
		ID:             9,
		Seq:            2,
		Name:           "well",
		Description:    "clean water",
		Category:       "water",
		Target:         Ether(10),
		SoftCap:        Ether(5),
		SoftCapEnabled: true,
		Priority:       1,
		Status:         StatusVoting,
		TotalAllocated: Ether(6),
		CreatedAt:      1_756_857_600,
		Deadline:       1_756_900_000,
		Creator:        "hive:admin",
	}
	got, err := DecodeProject(EncodeProject(p))
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestReceiptRecordKeepsSplits(t *testing.T) {
	rc := &Receipt{
		Seq:       4,
		Donor:     "hive:alice",
		Kind:      ReceiptAllocation,
		Amount:    Ether(3),
		Timestamp: 10,
		Splits:    []Split{{ProjectID: 1, Amount: Ether(1)}, {ProjectID: 2, Amount: Ether(2)}},
		TxID:      "tx-1",
	}
	got, err := DecodeReceipt(EncodeReceipt(rc))
	require.NoError(t, err)
	assert.Equal(t, rc, got)
}

func TestBallotAndTxRecords(t *testing.T) {
	bl := &Ballot{Hash: common.HexToHash("0x01"), Revealed: true, Weight: NewAmount(4), Choices: []Choice{ChoiceFor, ChoiceAgainst}}
	gotBallot, err := DecodeBallot(EncodeBallot(bl))
	require.NoError(t, err)
	assert.Equal(t, bl, gotBallot)

	tx := &MultisigTx{ID: 1, To: "hive:vendor", Value: Ether(5), Confirmations: 2, Proposer: "hive:owner1", Payout: &PayoutRef{ProjectID: 3, PayoutID: "inv"}}
	gotTx, err := DecodeMultisigTx(EncodeMultisigTx(tx))
	require.NoError(t, err)
	assert.Equal(t, tx, gotTx)
}

func TestDecodeRejectsDamagedRecords(t *testing.T) {
	raw := EncodeDonor(&Donor{Address: "hive:alice", TotalDonated: Ether(1)})

	_, err := DecodeDonor(raw[:len(raw)-3])
	assert.ErrorIs(t, err, ErrUnexpectedEOF)

	_, err = DecodeDonor(append(raw, 0x00))
	assert.ErrorIs(t, err, ErrTrailingBytes)
}
