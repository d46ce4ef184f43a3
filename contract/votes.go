package contract

import (
	"sort"

	"commons_treasury/contract/dao"
	"commons_treasury/sdk"

	"github.com/ethereum/go-ethereum/common"
)

// Ballot runs commit-reveal rounds over a set of projects. Rounds are sequential.
type Ballot struct {
	s       *LedgerState
	weights WeightSource
	board   ProjectBoard
}

func NewBallot(s *LedgerState, weights WeightSource, board ProjectBoard) *Ballot {
	return &Ballot{s: s, weights: weights, board: board}
}

// -----------------------------------------------------------------------------
// Storage
// -----------------------------------------------------------------------------

func (b *Ballot) Round(id uint64) (*dao.Round, error) {
	ptr := b.s.kv.Get(roundKey(id))
	if ptr == nil || *ptr == "" {
		return nil, fail(ErrRoundNotFound, "round %d not found", id)
	}
	return dao.DecodeRound([]byte(*ptr))
}

func (b *Ballot) saveRound(rd *dao.Round) {
	b.s.kv.Set(roundKey(rd.ID), string(dao.EncodeRound(rd)))
}

// CurrentRound is the newest round, open or not.
func (b *Ballot) CurrentRound() (*dao.Round, error) {
	id := b.s.getCount(RoundsCount)
	if id == 0 {
		return nil, fail(ErrRoundNotFound, "no round started yet")
	}
	return b.Round(id)
}

// openRound loads id and checks it is the newest round and still open.
func (b *Ballot) openRound(id uint64) (*dao.Round, error) {
	if _, err := b.s.Settings(); err != nil {
		return nil, err
	}
	rd, err := b.Round(id)
	if err != nil {
		return nil, err
	}
	if rd.ID != b.s.getCount(RoundsCount) {
		return nil, fail(ErrNotCurrentRound, "round %d was superseded", id)
	}
	if rd.Status != dao.RoundOpen {
		return nil, fail(ErrRoundClosed, "round %d is %s", id, rd.Status)
	}
	return rd, nil
}

func (b *Ballot) BallotOf(roundID uint64, voter sdk.Address) (*dao.Ballot, bool, error) {
	ptr := b.s.kv.Get(ballotKey(roundID, voter.Canonical()))
	if ptr == nil || *ptr == "" {
		return nil, false, nil
	}
	bl, err := dao.DecodeBallot([]byte(*ptr))
	if err != nil {
		return nil, false, err
	}
	return bl, true, nil
}

func (b *Ballot) saveBallot(roundID uint64, voter sdk.Address, bl *dao.Ballot) {
	b.s.kv.Set(ballotKey(roundID, voter), string(dao.EncodeBallot(bl)))
}

func (b *Ballot) loadTally(roundID uint64, slot int) (*dao.Tally, error) {
	ptr := b.s.kv.Get(tallyKey(roundID, uint32(slot)))
	if ptr == nil || *ptr == "" {
		return &dao.Tally{}, nil
	}
	return dao.DecodeTally([]byte(*ptr))
}

func (b *Ballot) saveTally(roundID uint64, slot int, t *dao.Tally) {
	b.s.kv.Set(tallyKey(roundID, uint32(slot)), string(dao.EncodeTally(t)))
}

// Tally returns the running totals of one project inside a round.
func (b *Ballot) Tally(roundID, projectID uint64) (*dao.Tally, error) {
	rd, err := b.Round(roundID)
	if err != nil {
		return nil, err
	}
	slot := rd.Index(projectID)
	if slot < 0 {
		return nil, fail(ErrProjectNotFound, "project %d is not part of round %d", projectID, roundID)
	}
	return b.loadTally(roundID, slot)
}

// -----------------------------------------------------------------------------
// Rounds
// -----------------------------------------------------------------------------

// StartRound opens a round over FundingReady (or still Voting) projects and moves them to Voting.
// Zero durations and nil options fall back to the settings.
// Example payload: ballot.StartRound(dao.StartRoundArgs{Projects: []uint64{1, 2}})
func (b *Ballot) StartRound(args dao.StartRoundArgs) (*dao.Round, error) {
	if err := b.s.requireAdmin(); err != nil {
		return nil, err
	}
	cfg, _ := b.s.Settings()
	if latest := b.s.getCount(RoundsCount); latest > 0 {
		prev, err := b.Round(latest)
		if err != nil {
			return nil, err
		}
		if prev.Status == dao.RoundOpen {
			return nil, fail(ErrRoundInProgress, "round %d is still %s", prev.ID, prev.Phase(b.s.Now()))
		}
	}
	if len(args.Projects) == 0 {
		return nil, fail(ErrInvalidArgument, "round needs at least one project")
	}
	seen := make(map[uint64]bool, len(args.Projects))
	for _, id := range args.Projects {
		if seen[id] {
			return nil, fail(ErrInvalidArgument, "project %d listed twice", id)
		}
		seen[id] = true
	}

	commit, reveal := args.CommitDuration, args.RevealDuration
	if commit == 0 {
		commit = cfg.CommitDuration
	}
	if reveal == 0 {
		reveal = cfg.RevealDuration
	}
	if commit < 0 || reveal < 0 {
		return nil, fail(ErrInvalidArgument, "durations must be positive")
	}
	method := cfg.CountingMethod
	if args.Method != nil {
		method = *args.Method
	}
	threshold := cfg.CancellationThreshold
	if args.CancellationThreshold != nil {
		threshold = *args.CancellationThreshold
	}
	if threshold > MaxBasisPoints {
		return nil, fail(ErrInvalidArgument, "cancellation threshold above %d bps", MaxBasisPoints)
	}

	for _, id := range args.Projects {
		if err := b.board.MarkVoting(id); err != nil {
			return nil, err
		}
	}
	now := b.s.Now()
	rd := &dao.Round{
		ID:                    b.s.nextCount(RoundsCount),
		Projects:              append([]uint64(nil), args.Projects...),
		StartedAt:             now,
		CommitDeadline:        now + commit,
		RevealDeadline:        now + commit + reveal,
		Method:                method,
		CancellationThreshold: threshold,
		Status:                dao.RoundOpen,
	}
	b.saveRound(rd)
	b.s.emitRoundStartedEvent(rd)
	return rd, nil
}

// Commit stores the sender's commitment hash during the commit window.
// Example payload: ballot.Commit(1, dao.CommitmentHash(1, choices, salt, voter))
func (b *Ballot) Commit(roundID uint64, hash common.Hash) error {
	rd, err := b.openRound(roundID)
	if err != nil {
		return err
	}
	if phase := rd.Phase(b.s.Now()); phase != dao.PhaseCommit {
		return fail(ErrPhaseClosed, "round %d is in %s phase", roundID, phase)
	}
	if hash == (common.Hash{}) {
		return fail(ErrInvalidArgument, "empty commitment")
	}
	voter := b.s.Sender()
	if b.weights.WeightOf(voter).IsZero() {
		return fail(ErrNotEligible, "%s has no weight", voter)
	}
	if _, ok, err := b.BallotOf(roundID, voter); err != nil {
		return err
	} else if ok {
		return fail(ErrAlreadyCommitted, "%s already committed in round %d", voter, roundID)
	}
	b.saveBallot(roundID, voter, &dao.Ballot{Hash: hash})
	rd.CommitCount++
	b.saveRound(rd)
	b.s.emitCommitEvent(roundID, hash.Hex())
	return nil
}

// Reveal checks choices and salt against the stored commitment and adds the
// voter's current weight to the tally. A mismatch leaves nothing behind.
func (b *Ballot) Reveal(roundID uint64, choices []dao.Choice, salt []byte) error {
	rd, err := b.openRound(roundID)
	if err != nil {
		return err
	}
	if phase := rd.Phase(b.s.Now()); phase != dao.PhaseReveal {
		return fail(ErrPhaseClosed, "round %d is in %s phase", roundID, phase)
	}
	voter := b.s.Sender()
	bl, ok, err := b.BallotOf(roundID, voter)
	if err != nil {
		return err
	}
	if !ok {
		return fail(ErrNoCommitment, "%s did not commit in round %d", voter, roundID)
	}
	if bl.Revealed {
		return fail(ErrAlreadyRevealed, "%s already revealed in round %d", voter, roundID)
	}
	if len(choices) != len(rd.Projects) {
		return fail(ErrInvalidArgument, "round %d has %d projects, got %d choices", roundID, len(rd.Projects), len(choices))
	}
	for _, c := range choices {
		if c > dao.ChoiceFor {
			return fail(ErrInvalidArgument, "unknown choice %d", c)
		}
	}
	if len(salt) > MaxSaltLength {
		return fail(ErrInvalidArgument, "salt longer than %d bytes", MaxSaltLength)
	}
	hash, err := dao.CommitmentHash(roundID, choices, salt, voter)
	if err != nil {
		return wrap(ErrInvalidArgument, err)
	}
	if hash != bl.Hash {
		return fail(ErrRevealMismatch, "commitment %s, reveal hashes to %s", bl.Hash.Hex(), hash.Hex())
	}

	weight := b.weights.WeightOf(voter)
	for slot, c := range choices {
		t, err := b.loadTally(roundID, slot)
		if err != nil {
			return err
		}
		if err := addChoice(t, c, weight); err != nil {
			return err
		}
		b.saveTally(roundID, slot, t)
	}
	bl.Revealed = true
	bl.Weight = weight
	bl.Choices = choices
	b.saveBallot(roundID, voter, bl)
	rd.RevealCount++
	b.saveRound(rd)
	b.s.emitRevealEvent(roundID, weight)
	return nil
}

// bordaPoints per choice; weight is multiplied in.
var bordaPoints = map[dao.Choice]uint64{
	dao.ChoiceFor:     2,
	dao.ChoiceAbstain: 1,
}

func addChoice(t *dao.Tally, c dao.Choice, weight dao.Amount) error {
	var err error
	switch c {
	case dao.ChoiceFor:
		t.ForWeight, err = t.ForWeight.Add(weight)
	case dao.ChoiceAgainst:
		t.AgainstWeight, err = t.AgainstWeight.Add(weight)
	case dao.ChoiceAbstain:
		t.AbstainCount++
	default:
		t.NotParticipatingCount++
	}
	if err != nil {
		return wrap(ErrAmountOverflow, err)
	}
	if pts, ok := bordaPoints[c]; ok {
		add, err := weight.Mul(dao.NewAmount(pts))
		if err != nil {
			return wrap(ErrAmountOverflow, err)
		}
		if t.BordaPoints, err = t.BordaPoints.Add(add); err != nil {
			return wrap(ErrAmountOverflow, err)
		}
	}
	return nil
}

// Finalize closes the round after the reveal window. Turnout below the threshold
// cancels it with no project changes; otherwise the ranking becomes priorities
// and approved projects move to ReadyToPayout.
func (b *Ballot) Finalize(roundID uint64) (*dao.Round, error) {
	if err := b.s.requireAdmin(); err != nil {
		return nil, err
	}
	rd, err := b.openRound(roundID)
	if err != nil {
		return nil, err
	}
	if phase := rd.Phase(b.s.Now()); phase != dao.PhaseTally {
		return nil, fail(ErrPhaseClosed, "round %d is still in %s phase", roundID, phase)
	}
	rd.EligibleVoters = b.weights.Holders()
	rd.TurnoutBps = turnoutBps(rd.RevealCount, rd.EligibleVoters)
	if rd.TurnoutBps < rd.CancellationThreshold {
		rd.Status = dao.RoundCancelled
		b.saveRound(rd)
		b.s.emitRoundCancelledEvent(rd, "turnout")
		return rd, nil
	}

	entries := make([]rankEntry, len(rd.Projects))
	for slot, id := range rd.Projects {
		t, err := b.loadTally(roundID, slot)
		if err != nil {
			return nil, err
		}
		p, err := b.board.Project(id)
		if err != nil {
			return nil, err
		}
		entries[slot] = rankEntry{id: id, seq: p.Seq, tally: *t}
	}
	rankEntries(entries, rd.Method)
	rd.Ranking = make([]uint64, len(entries))
	for i, e := range entries {
		rd.Ranking[i] = e.id
		if err := b.board.ApplyOutcome(e.id, uint64(i+1), e.tally.Approved()); err != nil {
			return nil, err
		}
	}
	rd.Status = dao.RoundFinalized
	b.saveRound(rd)
	b.s.emitRoundFinalizedEvent(rd)
	return rd, nil
}

// CancelRound aborts an open round. Its projects stay in Voting and can join the next round.
func (b *Ballot) CancelRound(roundID uint64) (*dao.Round, error) {
	if err := b.s.requireAdmin(); err != nil {
		return nil, err
	}
	rd, err := b.openRound(roundID)
	if err != nil {
		return nil, err
	}
	rd.Status = dao.RoundCancelled
	b.saveRound(rd)
	b.s.emitRoundCancelledEvent(rd, "admin")
	return rd, nil
}

// turnoutBps is revealed/eligible in basis points, clamped to 100%.
func turnoutBps(revealed, eligible uint64) uint32 {
	if eligible == 0 {
		return 0
	}
	if revealed >= eligible {
		return MaxBasisPoints
	}
	return uint32(revealed * uint64(MaxBasisPoints) / eligible)
}

// -----------------------------------------------------------------------------
// Ranking
// -----------------------------------------------------------------------------

type rankEntry struct {
	id    uint64
	seq   uint64
	tally dao.Tally
}

// rankEntries sorts best first. Equal scores keep creation order.
func rankEntries(entries []rankEntry, method dao.CountingMethod) {
	sort.SliceStable(entries, func(i, j int) bool {
		if c := compareScore(&entries[i].tally, &entries[j].tally, method); c != 0 {
			return c > 0
		}
		return entries[i].seq < entries[j].seq
	})
}

// compareScore orders two tallies. WeightedSum compares for-against without going
// negative: a.for + b.against against b.for + a.against.
func compareScore(a, b *dao.Tally, method dao.CountingMethod) int {
	if method == dao.CountBorda {
		return a.BordaPoints.Cmp(b.BordaPoints)
	}
	left, errL := a.ForWeight.Add(b.AgainstWeight)
	right, errR := b.ForWeight.Add(a.AgainstWeight)
	if errL != nil || errR != nil {
		return a.ForWeight.Cmp(b.ForWeight)
	}
	return left.Cmp(right)
}
