package sdk

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type Intent struct {
	Type string            `json:"type"`
	Args map[string]string `json:"args"`
}

// TransferAllowIntent is the only intent type the treasury reads.
const TransferAllowIntent = "transfer.allow"

// AllowIntent builds a transfer.allow intent for a wei limit.
// Example payload: sdk.AllowIntent(uint256.NewInt(5000))
func AllowIntent(limit *uint256.Int) Intent {
	return Intent{Type: TransferAllowIntent, Args: map[string]string{"limit": limit.Dec()}}
}

// allowance sums every transfer.allow limit in the intents; ok is false when none is present.
func allowance(intents []Intent) (*uint256.Int, bool, error) {
	total := new(uint256.Int)
	found := false
	for _, in := range intents {
		if in.Type != TransferAllowIntent {
			continue
		}
		lim, err := uint256.FromDecimal(strings.TrimSpace(in.Args["limit"]))
		if err != nil {
			return nil, false, err
		}
		if _, overflow := total.AddOverflow(total, lim); overflow {
			return nil, false, ErrAllowanceExceeded
		}
		found = true
	}
	return total, found, nil
}

type AddressDomain string

const (
	AddressDomainUser     AddressDomain = "user"
	AddressDomainContract AddressDomain = "contract"
	AddressDomainSystem   AddressDomain = "system"
)

type AddressType string

const (
	AddressTypeEVM      AddressType = "evm"
	AddressTypeKey      AddressType = "key"
	AddressTypeHive     AddressType = "hive"
	AddressTypeSystem   AddressType = "system"
	AddressTypeContract AddressType = "contract"
	AddressTypeUnknown  AddressType = "unknown"
)

type Address string

// String returns the literal representation (like hive:alice) of the address.
func (a Address) String() string {
	return string(a)
}

// Domain checks the prefix to tell user, contract and system accounts apart.
// Example payload: sdk.Address("contract:treasury").Domain()
func (a Address) Domain() AddressDomain {
	if strings.HasPrefix(a.String(), "system:") {
		return AddressDomainSystem
	}
	if strings.HasPrefix(a.String(), "contract:") {
		return AddressDomainContract
	}
	return AddressDomainUser
}

// Type inspects the prefix to categorize the address. Bare 0x addresses count as evm.
// Example payload: sdk.Address("0x52908400098527886E0F7030069857D2E4169EE7").Type()
func (a Address) Type() AddressType {
	s := a.String()
	switch {
	case strings.HasPrefix(s, "did:pkh:eip155:"):
		return AddressTypeEVM
	case strings.HasPrefix(s, "0x"):
		if common.IsHexAddress(s) {
			return AddressTypeEVM
		}
		return AddressTypeUnknown
	case strings.HasPrefix(s, "did:key:"):
		return AddressTypeKey
	case strings.HasPrefix(s, "hive:"):
		return AddressTypeHive
	case strings.HasPrefix(s, "system:"):
		return AddressTypeSystem
	case strings.HasPrefix(s, "contract:"):
		return AddressTypeContract
	default:
		return AddressTypeUnknown
	}
}

// IsValid is a light sanity check: known prefix and a non-empty name after it.
func (a Address) IsValid() bool {
	if a.Type() == AddressTypeUnknown {
		return false
	}
	s := a.String()
	idx := strings.LastIndex(s, ":")
	return idx < len(s)-1
}

// Canonical lower-cases evm hex so the same key never lands under two spellings.
func (a Address) Canonical() Address {
	s := a.String()
	if strings.HasPrefix(s, "0x") && common.IsHexAddress(s) {
		return Address(strings.ToLower(common.HexToAddress(s).Hex()))
	}
	return a
}
