package dao

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// commitmentPreimage is the canonical field order of a ballot commitment.
// Do not reorder: clients hash the same list off-chain.
type commitmentPreimage struct {
	RoundID uint64
	Choices []byte
	Salt    []byte
	Voter   string
}

// CommitmentHash is keccak256(rlp([roundID, choices, salt, voter])).
// choices follow the round's project order, one byte per project.
// Example payload: dao.CommitmentHash(1, []dao.Choice{dao.ChoiceFor, dao.ChoiceAbstain}, []byte("salt1"), "hive:v")
func CommitmentHash(roundID uint64, choices []Choice, salt []byte, voter Address) (common.Hash, error) {
	raw := make([]byte, len(choices))
	for i, c := range choices {
		raw[i] = byte(c)
	}
	enc, err := rlp.EncodeToBytes(&commitmentPreimage{
		RoundID: roundID,
		Choices: raw,
		Salt:    salt,
		Voter:   voter.Canonical().String(),
	})
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(enc), nil
}
