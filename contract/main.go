package contract

import (
	"fmt"
	"sort"

	"commons_treasury/contract/dao"
	"commons_treasury/sdk"
)

// Contract is the set of modules bound to one call.
type Contract struct {
	State    *LedgerState
	Weights  *WeightRegistry
	Projects *ProjectRegistry
	Ledger   *AllocationLedger
	Ballot   *Ballot
	Gate     *MultisigGate
}

// Open wires the modules over a fresh LedgerState for host h.
func Open(h sdk.Host) *Contract {
	s := NewLedgerState(h)
	weights := NewWeightRegistry(s)
	projects := NewProjectRegistry(s)
	ledger := NewAllocationLedger(s, projects, weights)
	return &Contract{
		State:    s,
		Weights:  weights,
		Projects: projects,
		Ledger:   ledger,
		Ballot:   NewBallot(s, weights, projects),
		Gate:     NewMultisigGate(s, ledger),
	}
}

type handler func(c *Contract, payload string) (string, error)

// -----------------------------------------------------------------------------
// Action Table
// -----------------------------------------------------------------------------

var actions = map[string]handler{
	"init": func(c *Contract, payload string) (string, error) {
		cfg, err := decodeInitArgs(payload)
		if err != nil {
			return "", err
		}
		if err := Init(c.State, cfg); err != nil {
			return "", err
		}
		return "initialized", nil
	},
	"ballot_defaults": func(c *Contract, payload string) (string, error) {
		commit, reveal, th, m, err := decodeBallotDefaultsArgs(payload)
		if err != nil {
			return "", err
		}
		return okOr(SetBallotDefaults(c.State, commit, reveal, th, m))
	},
	"global_soft_cap": func(c *Contract, payload string) (string, error) {
		f := splitPayload(payload)
		ceiling, err := parseOptionalAmount(f.get(1), "ceiling")
		if err != nil {
			return "", err
		}
		return okOr(SetGlobalSoftCap(c.State, parseBoolField(f.get(0)), ceiling))
	},

	// ledger
	"donate": func(c *Contract, payload string) (string, error) {
		amount, err := parseAmountField(splitPayload(payload).get(0), "amount")
		if err != nil {
			return "", err
		}
		d, err := c.Ledger.Donate(amount)
		if err != nil {
			return "", err
		}
		return d.TotalUnallocated.String(), nil
	},
	"allocate": func(c *Contract, payload string) (string, error) {
		args, err := decodeProjectAmountArgs(payload)
		if err != nil {
			return "", err
		}
		return okOr(c.Ledger.Allocate(args.ProjectID, args.Amount))
	},
	"allocate_multiple": func(c *Contract, payload string) (string, error) {
		args, err := decodeAllocateMultipleArgs(payload)
		if err != nil {
			return "", err
		}
		return okOr(c.Ledger.AllocateMultiple(args.ProjectIDs, args.Amounts))
	},
	"top_up": func(c *Contract, payload string) (string, error) {
		args, err := decodeProjectAmountArgs(payload)
		if err != nil {
			return "", err
		}
		return okOr(c.Ledger.TopUp(args.ProjectID, args.Amount))
	},
	"reassign": func(c *Contract, payload string) (string, error) {
		args, err := decodeReassignArgs(payload)
		if err != nil {
			return "", err
		}
		return okOr(c.Ledger.Reassign(args.From, args.To, args.Amount))
	},
	"payout": func(c *Contract, payload string) (string, error) {
		args, err := decodePayoutArgs(payload)
		if err != nil {
			return "", err
		}
		rec, err := c.Ledger.Payout(args.To, args.ProjectID, args.Amount, args.PayoutID)
		if err != nil {
			return "", err
		}
		return rec.ID, nil
	},
	"refund_cancelled": func(c *Contract, payload string) (string, error) {
		id, err := parseUintField(splitPayload(payload).get(0), "project id")
		if err != nil {
			return "", err
		}
		amount, err := c.Ledger.RefundCancelledProject(id)
		if err != nil {
			return "", err
		}
		return amount.String(), nil
	},
	"withdraw_personal": func(c *Contract, _ string) (string, error) {
		amount, err := c.Ledger.WithdrawPersonalBalance()
		if err != nil {
			return "", err
		}
		return amount.String(), nil
	},
	"set_refund_policy": func(c *Contract, payload string) (string, error) {
		raw := splitPayload(payload).get(0)
		policy, ok := dao.ParseRefundPolicy(raw)
		if !ok {
			return "", fail(ErrInvalidPayload, "invalid refund policy %q", raw)
		}
		return valueOr(policy.String(), c.Ledger.SetRefundPolicy(policy))
	},

	// projects
	"project_create": func(c *Contract, payload string) (string, error) {
		args, err := decodeCreateProjectArgs(payload)
		if err != nil {
			return "", err
		}
		p, err := c.Projects.CreateProject(*args)
		if err != nil {
			return "", err
		}
		return u64(p.ID), nil
	},
	"project_status": func(c *Contract, payload string) (string, error) {
		id, st, err := decodeProjectStatusArgs(payload)
		if err != nil {
			return "", err
		}
		return valueOr(st.String(), c.Projects.UpdateProjectStatus(id, st))
	},
	"project_funding": func(c *Contract, payload string) (string, error) {
		id, allocated, paid, err := decodeFundingArgs(payload)
		if err != nil {
			return "", err
		}
		st, err := c.Projects.SetFunding(id, allocated, paid)
		if err != nil {
			return "", err
		}
		return st.String(), nil
	},
	"project_priority": func(c *Contract, payload string) (string, error) {
		id, priority, err := decodeIDPairArgs(payload, "priority")
		if err != nil {
			return "", err
		}
		return okOr(c.Projects.SetPriority(id, priority))
	},
	"category_limit": func(c *Contract, payload string) (string, error) {
		f := splitPayload(payload)
		limit, err := parseUintField(f.get(1), "limit")
		if err != nil {
			return "", err
		}
		return okOr(c.Projects.SetCategoryLimit(f.get(0), limit))
	},
	"project_deadline": func(c *Contract, payload string) (string, error) {
		id, err := parseUintField(splitPayload(payload).get(0), "project id")
		if err != nil {
			return "", err
		}
		st, err := c.Projects.CheckDeadline(id)
		if err != nil {
			return "", err
		}
		return st.String(), nil
	},

	// ballot
	"round_start": func(c *Contract, payload string) (string, error) {
		args, err := decodeStartRoundArgs(payload)
		if err != nil {
			return "", err
		}
		rd, err := c.Ballot.StartRound(*args)
		if err != nil {
			return "", err
		}
		return u64(rd.ID), nil
	},
	"round_commit": func(c *Contract, payload string) (string, error) {
		id, hash, err := decodeCommitArgs(payload)
		if err != nil {
			return "", err
		}
		return okOr(c.Ballot.Commit(id, hash))
	},
	"round_reveal": func(c *Contract, payload string) (string, error) {
		args, err := decodeRevealArgs(payload)
		if err != nil {
			return "", err
		}
		return okOr(c.Ballot.Reveal(args.RoundID, args.Choices, args.Salt))
	},
	"round_finalize": func(c *Contract, payload string) (string, error) {
		id, err := parseUintField(splitPayload(payload).get(0), "round id")
		if err != nil {
			return "", err
		}
		rd, err := c.Ballot.Finalize(id)
		if err != nil {
			return "", err
		}
		return rd.Status.String(), nil
	},
	"round_cancel": func(c *Contract, payload string) (string, error) {
		id, err := parseUintField(splitPayload(payload).get(0), "round id")
		if err != nil {
			return "", err
		}
		rd, err := c.Ballot.CancelRound(id)
		if err != nil {
			return "", err
		}
		return rd.Status.String(), nil
	},

	// gate
	"gate_propose": func(c *Contract, payload string) (string, error) {
		to, value, err := decodeProposeArgs(payload)
		if err != nil {
			return "", err
		}
		tx, err := c.Gate.Propose(to, value)
		if err != nil {
			return "", err
		}
		return u64(tx.ID), nil
	},
	"gate_propose_payout": func(c *Contract, payload string) (string, error) {
		args, err := decodePayoutArgs(payload)
		if err != nil {
			return "", err
		}
		tx, err := c.Gate.ProposePayout(args.To, args.Amount, args.ProjectID, args.PayoutID)
		if err != nil {
			return "", err
		}
		return u64(tx.ID), nil
	},
	"gate_confirm": gateStep((*MultisigGate).Confirm),
	"gate_revoke":  gateStep((*MultisigGate).Revoke),
	"gate_execute": gateStep((*MultisigGate).Execute),
	"gate_fund": func(c *Contract, payload string) (string, error) {
		amount, err := parseAmountField(splitPayload(payload).get(0), "amount")
		if err != nil {
			return "", err
		}
		reserve, err := c.Gate.Fund(amount)
		if err != nil {
			return "", err
		}
		return reserve.String(), nil
	},

	// queries
	"project_get": func(c *Contract, payload string) (string, error) {
		id, err := parseUintField(splitPayload(payload).get(0), "project id")
		if err != nil {
			return "", err
		}
		p, err := c.Projects.Project(id)
		if err != nil {
			return "", err
		}
		return toJSON(p)
	},
	"projects_get_all": func(c *Contract, _ string) (string, error) {
		ps, err := c.Projects.Projects()
		if err != nil {
			return "", err
		}
		return toJSON(ps)
	},
	"donor_get": func(c *Contract, payload string) (string, error) {
		addr := c.State.Sender()
		if v := splitPayload(payload).get(0); v != "" {
			var err error
			if addr, err = parseAddressField(v, "donor"); err != nil {
				return "", err
			}
		}
		d, err := c.Ledger.Donor(addr)
		if err != nil {
			return "", err
		}
		return toJSON(donorView{Donor: *d, Weight: c.Weights.WeightOf(addr)})
	},
	"round_get": func(c *Contract, payload string) (string, error) {
		var rd *dao.Round
		var err error
		if v := splitPayload(payload).get(0); v == "" {
			rd, err = c.Ballot.CurrentRound()
		} else {
			var id uint64
			if id, err = parseUintField(v, "round id"); err != nil {
				return "", err
			}
			rd, err = c.Ballot.Round(id)
		}
		if err != nil {
			return "", err
		}
		return toJSON(roundView{Round: *rd, Phase: rd.Phase(c.State.Now()).String()})
	},
	"gate_tx_get": func(c *Contract, payload string) (string, error) {
		id, err := parseUintField(splitPayload(payload).get(0), "transaction id")
		if err != nil {
			return "", err
		}
		tx, err := c.Gate.Tx(id)
		if err != nil {
			return "", err
		}
		return toJSON(tx)
	},
}

func okOr(err error) (string, error) { return valueOr("ok", err) }

func valueOr(v string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return v, nil
}

func gateStep(op func(*MultisigGate, uint64) (*dao.MultisigTx, error)) handler {
	return func(c *Contract, payload string) (string, error) {
		id, err := parseUintField(splitPayload(payload).get(0), "transaction id")
		if err != nil {
			return "", err
		}
		tx, err := op(c.Gate, id)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d/%d", tx.ID, tx.Confirmations), nil
	}
}

type donorView struct {
	dao.Donor
	Weight dao.Amount `json:"weight"`
}

type roundView struct {
	dao.Round
	Phase string `json:"phase"`
}

// Dispatch runs one named action against host h. The host rolls back on error.
// Example payload: contract.Dispatch(h, "allocate", "1|6eth")
func Dispatch(h sdk.Host, action, payload string) (string, error) {
	fn, ok := actions[action]
	if !ok {
		return "", fail(ErrUnknownAction, "unknown action %q", action)
	}
	return fn(Open(h), payload)
}

// Action adapts Dispatch to the host transaction signature.
func Action(action, payload string) sdk.Func {
	return func(h sdk.Host) (string, error) {
		return Dispatch(h, action, payload)
	}
}

// Actions lists the known action names, sorted.
func Actions() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
