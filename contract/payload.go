package contract

import (
	"strings"

	"commons_treasury/contract/dao"
	"commons_treasury/sdk"

	"github.com/ethereum/go-ethereum/common"
)

// decodeInitArgs expects
// `owners|required|baseUnit|weightCap|minDonation|categoryLimit|commitSecs|revealSecs|thresholdBps|method|globalSoftCap|admin`.
// Everything after required may be blank.
func decodeInitArgs(raw string) (Settings, error) {
	f := splitPayload(raw)
	var cfg Settings
	for _, o := range parseList(f.get(0)) {
		addr, err := parseAddressField(o, "owner")
		if err != nil {
			return cfg, err
		}
		cfg.Owners = append(cfg.Owners, addr)
	}
	required, err := parseUintField(f.get(1), "required")
	if err != nil {
		return cfg, err
	}
	cfg.Required = uint32(required)
	cfg.WeightBaseUnit = dao.WeiPerEther
	if v := f.get(2); v != "" {
		if cfg.WeightBaseUnit, err = parseAmountField(v, "weight base unit"); err != nil {
			return cfg, err
		}
	}
	if cfg.WeightCap, err = parseOptionalAmount(f.get(3), "weight cap"); err != nil {
		return cfg, err
	}
	if cfg.MinDonation, err = parseOptionalAmount(f.get(4), "min donation"); err != nil {
		return cfg, err
	}
	if cfg.DefaultCategoryLimit, err = parseOptionalUint(f.get(5), "category limit"); err != nil {
		return cfg, err
	}
	if cfg.CommitDuration, err = parseOptionalInt(f.get(6), "commit duration"); err != nil {
		return cfg, err
	}
	if cfg.RevealDuration, err = parseOptionalInt(f.get(7), "reveal duration"); err != nil {
		return cfg, err
	}
	threshold, err := parseOptionalUint(f.get(8), "cancellation threshold")
	if err != nil {
		return cfg, err
	}
	cfg.CancellationThreshold = uint32(threshold)
	if v := f.get(9); v != "" {
		m, ok := dao.ParseCountingMethod(strings.ToLower(v))
		if !ok {
			return cfg, fail(ErrInvalidPayload, "invalid counting method %q", v)
		}
		cfg.CountingMethod = m
	}
	if v := f.get(10); v != "" {
		if cfg.GlobalSoftCap, err = parseAmountField(v, "global soft cap"); err != nil {
			return cfg, err
		}
		cfg.GlobalSoftCapEnabled = !cfg.GlobalSoftCap.IsZero()
	}
	if v := f.get(11); v != "" {
		if cfg.Admin, err = parseAddressField(v, "admin"); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

type projectAmountArgs struct {
	ProjectID uint64
	Amount    dao.Amount
}

// decodeProjectAmountArgs covers allocate and top_up: `projectId|amount`.
func decodeProjectAmountArgs(raw string) (*projectAmountArgs, error) {
	f := splitPayload(raw)
	id, err := parseUintField(f.get(0), "project id")
	if err != nil {
		return nil, err
	}
	amount, err := parseAmountField(f.get(1), "amount")
	if err != nil {
		return nil, err
	}
	return &projectAmountArgs{ProjectID: id, Amount: amount}, nil
}

type allocateMultipleArgs struct {
	ProjectIDs []uint64
	Amounts    []dao.Amount
}

// decodeAllocateMultipleArgs expects `1,2,3|1eth,2eth,0.5eth`.
func decodeAllocateMultipleArgs(raw string) (*allocateMultipleArgs, error) {
	f := splitPayload(raw)
	ids, err := parseIDList(f.get(0), "project id")
	if err != nil {
		return nil, err
	}
	amounts, err := parseAmountList(f.get(1), "amount")
	if err != nil {
		return nil, err
	}
	return &allocateMultipleArgs{ProjectIDs: ids, Amounts: amounts}, nil
}

type reassignArgs struct {
	From, To uint64
	Amount   dao.Amount
}

// decodeReassignArgs expects `fromId|toId|amount`.
func decodeReassignArgs(raw string) (*reassignArgs, error) {
	f := splitPayload(raw)
	from, err := parseUintField(f.get(0), "source project id")
	if err != nil {
		return nil, err
	}
	to, err := parseUintField(f.get(1), "destination project id")
	if err != nil {
		return nil, err
	}
	amount, err := parseAmountField(f.get(2), "amount")
	if err != nil {
		return nil, err
	}
	return &reassignArgs{From: from, To: to, Amount: amount}, nil
}

type payoutArgs struct {
	To        sdk.Address
	ProjectID uint64
	Amount    dao.Amount
	PayoutID  string
}

// decodePayoutArgs expects `to|projectId|amount|payoutId`; gate_propose_payout uses the same shape.
func decodePayoutArgs(raw string) (*payoutArgs, error) {
	f := splitPayload(raw)
	to, err := parseAddressField(f.get(0), "recipient")
	if err != nil {
		return nil, err
	}
	id, err := parseUintField(f.get(1), "project id")
	if err != nil {
		return nil, err
	}
	amount, err := parseAmountField(f.get(2), "amount")
	if err != nil {
		return nil, err
	}
	payoutID := f.get(3)
	if payoutID == "" {
		return nil, fail(ErrInvalidPayload, "payout id is required")
	}
	return &payoutArgs{To: to, ProjectID: id, Amount: amount, PayoutID: payoutID}, nil
}

// decodeCreateProjectArgs expects `id|name|description|category|target|softCap|hardCap|deadline`.
func decodeCreateProjectArgs(raw string) (*dao.CreateProjectArgs, error) {
	f := splitPayload(raw)
	id, err := parseUintField(f.get(0), "project id")
	if err != nil {
		return nil, err
	}
	target, err := parseAmountField(f.get(4), "target")
	if err != nil {
		return nil, err
	}
	soft, err := parseOptionalAmount(f.get(5), "soft cap")
	if err != nil {
		return nil, err
	}
	hard, err := parseOptionalAmount(f.get(6), "hard cap")
	if err != nil {
		return nil, err
	}
	deadline, err := parseOptionalInt(f.get(7), "deadline")
	if err != nil {
		return nil, err
	}
	return &dao.CreateProjectArgs{
		ID:          id,
		Name:        f.get(1),
		Description: f.get(2),
		Category:    f.get(3),
		Target:      target,
		SoftCap:     soft,
		HardCap:     hard,
		Deadline:    deadline,
	}, nil
}

// decodeProjectStatusArgs expects `id|status`, status by name or code.
func decodeProjectStatusArgs(raw string) (uint64, dao.ProjectStatus, error) {
	f := splitPayload(raw)
	id, err := parseUintField(f.get(0), "project id")
	if err != nil {
		return 0, 0, err
	}
	st, ok := dao.ParseProjectStatus(strings.ToLower(f.get(1)))
	if !ok {
		return 0, 0, fail(ErrInvalidPayload, "invalid status %q", f.get(1))
	}
	return id, st, nil
}

// decodeFundingArgs expects `id|allocated|paidOut`.
func decodeFundingArgs(raw string) (uint64, dao.Amount, dao.Amount, error) {
	f := splitPayload(raw)
	id, err := parseUintField(f.get(0), "project id")
	if err != nil {
		return 0, dao.Amount{}, dao.Amount{}, err
	}
	allocated, err := parseOptionalAmount(f.get(1), "allocated")
	if err != nil {
		return 0, dao.Amount{}, dao.Amount{}, err
	}
	paid, err := parseOptionalAmount(f.get(2), "paid out")
	if err != nil {
		return 0, dao.Amount{}, dao.Amount{}, err
	}
	return id, allocated, paid, nil
}

// decodeIDPairArgs expects `id|n`, used for priorities.
func decodeIDPairArgs(raw, field string) (uint64, uint64, error) {
	f := splitPayload(raw)
	id, err := parseUintField(f.get(0), "project id")
	if err != nil {
		return 0, 0, err
	}
	n, err := parseUintField(f.get(1), field)
	if err != nil {
		return 0, 0, err
	}
	return id, n, nil
}

// decodeStartRoundArgs expects `ids|commitSecs|revealSecs|method|thresholdBps`; all but ids optional.
func decodeStartRoundArgs(raw string) (*dao.StartRoundArgs, error) {
	f := splitPayload(raw)
	ids, err := parseIDList(f.get(0), "project id")
	if err != nil {
		return nil, err
	}
	args := &dao.StartRoundArgs{Projects: ids}
	if args.CommitDuration, err = parseOptionalInt(f.get(1), "commit duration"); err != nil {
		return nil, err
	}
	if args.RevealDuration, err = parseOptionalInt(f.get(2), "reveal duration"); err != nil {
		return nil, err
	}
	if v := f.get(3); v != "" {
		m, ok := dao.ParseCountingMethod(strings.ToLower(v))
		if !ok {
			return nil, fail(ErrInvalidPayload, "invalid counting method %q", v)
		}
		args.Method = &m
	}
	if v := f.get(4); v != "" {
		th, err := parseUintField(v, "cancellation threshold")
		if err != nil {
			return nil, err
		}
		bps := uint32(th)
		args.CancellationThreshold = &bps
	}
	return args, nil
}

// decodeCommitArgs expects `roundId|0xhash`.
func decodeCommitArgs(raw string) (uint64, common.Hash, error) {
	f := splitPayload(raw)
	id, err := parseUintField(f.get(0), "round id")
	if err != nil {
		return 0, common.Hash{}, err
	}
	h := f.get(1)
	if !strings.HasPrefix(h, "0x") || len(h) != 2+2*common.HashLength {
		return 0, common.Hash{}, fail(ErrInvalidPayload, "commitment must be 0x-prefixed 32 bytes")
	}
	return id, common.HexToHash(h), nil
}

type revealArgs struct {
	RoundID uint64
	Choices []dao.Choice
	Salt    []byte
}

// decodeRevealArgs expects `roundId|for,abstain|salt`. The salt is taken as raw text.
func decodeRevealArgs(raw string) (*revealArgs, error) {
	f := splitPayload(raw)
	id, err := parseUintField(f.get(0), "round id")
	if err != nil {
		return nil, err
	}
	choices, err := parseChoices(f.get(1))
	if err != nil {
		return nil, err
	}
	return &revealArgs{RoundID: id, Choices: choices, Salt: []byte(f.get(2))}, nil
}

// decodeProposeArgs expects `to|value`.
func decodeProposeArgs(raw string) (sdk.Address, dao.Amount, error) {
	f := splitPayload(raw)
	to, err := parseAddressField(f.get(0), "recipient")
	if err != nil {
		return "", dao.Amount{}, err
	}
	value, err := parseAmountField(f.get(1), "value")
	if err != nil {
		return "", dao.Amount{}, err
	}
	return to, value, nil
}

// decodeBallotDefaultsArgs expects `commitSecs|revealSecs|thresholdBps|method`.
func decodeBallotDefaultsArgs(raw string) (int64, int64, uint32, dao.CountingMethod, error) {
	f := splitPayload(raw)
	commit, err := parseOptionalInt(f.get(0), "commit duration")
	if err != nil {
		return 0, 0, 0, 0, err
	}
	reveal, err := parseOptionalInt(f.get(1), "reveal duration")
	if err != nil {
		return 0, 0, 0, 0, err
	}
	th, err := parseOptionalUint(f.get(2), "cancellation threshold")
	if err != nil {
		return 0, 0, 0, 0, err
	}
	m, ok := dao.ParseCountingMethod(strings.ToLower(f.get(3)))
	if !ok {
		return 0, 0, 0, 0, fail(ErrInvalidPayload, "invalid counting method %q", f.get(3))
	}
	return commit, reveal, uint32(th), m, nil
}
