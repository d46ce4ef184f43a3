package contract

import (
	"strconv"
	"strings"

	"commons_treasury/contract/dao"
)

// FundingSink is the ledger's view of the registry.
type FundingSink interface {
	Project(id uint64) (*dao.Project, error)
	UpdateFunding(id uint64, allocated, paidOut dao.Amount) (dao.ProjectStatus, error)
}

// ProjectBoard is the ballot's view of the registry.
type ProjectBoard interface {
	Project(id uint64) (*dao.Project, error)
	MarkVoting(id uint64) error
	ApplyOutcome(id uint64, priority uint64, approved bool) error
}

// ProjectRegistry owns project records and their lifecycle.
type ProjectRegistry struct {
	s *LedgerState
}

func NewProjectRegistry(s *LedgerState) *ProjectRegistry {
	return &ProjectRegistry{s: s}
}

// -----------------------------------------------------------------------------
// Storage
// -----------------------------------------------------------------------------

// Project tries the per-call cache first and decodes host bytes when needed.
func (r *ProjectRegistry) Project(id uint64) (*dao.Project, error) {
	if cached, ok := r.s.projects.Get(id); ok {
		cp := cached
		return &cp, nil
	}
	ptr := r.s.kv.Get(projectKey(id))
	if ptr == nil || *ptr == "" {
		return nil, fail(ErrProjectNotFound, "project %d not found", id)
	}
	p, err := dao.DecodeProject([]byte(*ptr))
	if err != nil {
		return nil, err
	}
	r.s.projects.Add(id, *p)
	return p, nil
}

// saveProject writes both storage and cache copy so repeated reads stay cheap.
func (r *ProjectRegistry) saveProject(p *dao.Project) {
	r.s.kv.Set(projectKey(p.ID), string(dao.EncodeProject(p)))
	r.s.projects.Add(p.ID, *p)
}

func (r *ProjectRegistry) exists(id uint64) bool {
	if r.s.projects.Contains(id) {
		return true
	}
	ptr := r.s.kv.Get(projectKey(id))
	return ptr != nil && *ptr != ""
}

// Projects lists every project in creation order.
func (r *ProjectRegistry) Projects() ([]dao.Project, error) {
	n := r.s.getCount(ProjectsCount)
	out := make([]dao.Project, 0, n)
	for seq := uint64(1); seq <= n; seq++ {
		ptr := r.s.kv.Get(projectSeqKey(seq))
		if ptr == nil {
			continue
		}
		id, err := strconv.ParseUint(*ptr, 10, 64)
		if err != nil {
			return nil, err
		}
		p, err := r.Project(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Category limits
// -----------------------------------------------------------------------------

func (s *LedgerState) setCategoryLimit(category string, limit uint64) {
	s.kv.Set(categoryLimitKey(category), strconv.FormatUint(limit, 10))
}

// categoryLimit returns the override when one exists, else the default. Zero means unlimited.
func (s *LedgerState) categoryLimit(category string) (uint64, error) {
	if ptr := s.kv.Get(categoryLimitKey(category)); ptr != nil && *ptr != "" {
		n, err := strconv.ParseUint(*ptr, 10, 64)
		if err != nil {
			return 0, err
		}
		return n, nil
	}
	cfg, err := s.Settings()
	if err != nil {
		return 0, err
	}
	return cfg.DefaultCategoryLimit, nil
}

// -----------------------------------------------------------------------------
// Operations
// -----------------------------------------------------------------------------

// CreateProject registers a project under a caller-chosen id. Admin only.
// Example payload: reg.CreateProject(dao.CreateProjectArgs{ID: 1, Name: "well", Target: dao.Ether(10), SoftCap: dao.Ether(5)})
func (r *ProjectRegistry) CreateProject(args dao.CreateProjectArgs) (*dao.Project, error) {
	if err := r.s.requireAdmin(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(args.Name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if args.ID == 0 {
		return nil, fail(ErrInvalidArgument, "project id must be greater than zero")
	}
	if len(name) > MaxNameLength || len(args.Description) > MaxDescriptionLength {
		return nil, fail(ErrInvalidArgument, "name or description too long")
	}
	if args.Target.IsZero() {
		return nil, ErrZeroTarget
	}
	if !args.SoftCap.IsZero() && args.SoftCap.Gt(args.Target) {
		return nil, fail(ErrInvalidCaps, "soft cap %s above target %s", args.SoftCap, args.Target)
	}
	if !args.HardCap.IsZero() && args.HardCap.Lt(args.Target) {
		return nil, fail(ErrInvalidCaps, "hard cap %s below target %s", args.HardCap, args.Target)
	}
	if args.Deadline != 0 && args.Deadline <= r.s.Now() {
		return nil, fail(ErrInvalidArgument, "deadline must be in the future")
	}
	if r.exists(args.ID) {
		return nil, fail(ErrDuplicateProject, "project %d already exists", args.ID)
	}
	category := strings.TrimSpace(args.Category)
	limit, err := r.s.categoryLimit(category)
	if err != nil {
		return nil, err
	}
	active := r.s.getCount(categoryCountKey(category))
	if limit > 0 && active >= limit {
		return nil, fail(ErrCategoryLimitExceeded, "category %q holds %d of %d projects", category, active, limit)
	}

	seq := r.s.nextCount(ProjectsCount)
	r.s.kv.Set(projectSeqKey(seq), strconv.FormatUint(args.ID, 10))
	p := &dao.Project{
		ID:             args.ID,
		Seq:            seq,
		Name:           name,
		Description:    args.Description,
		Category:       category,
		Target:         args.Target,
		SoftCap:        args.SoftCap,
		HardCap:        args.HardCap,
		SoftCapEnabled: !args.SoftCap.IsZero(),
		Status:         dao.StatusDraft,
		CreatedAt:      r.s.Now(),
		Deadline:       args.Deadline,
		Creator:        r.s.Sender(),
	}
	p.Status = NextStatus(p.Status, totalsOf(p), capsOf(p))
	r.s.setCount(categoryCountKey(category), active+1)
	r.saveProject(p)
	r.s.emitProjectCreatedEvent(p)
	return p, nil
}

// UpdateFunding stores new totals and runs the automatic transitions.
// Hard cap and global soft cap are only enforced when allocation grows.
func (r *ProjectRegistry) UpdateFunding(id uint64, allocated, paidOut dao.Amount) (dao.ProjectStatus, error) {
	p, err := r.Project(id)
	if err != nil {
		return 0, err
	}
	switch p.Status {
	case dao.StatusPaid:
		return p.Status, fail(ErrProjectAlreadyPaid, "project %d is paid", id)
	case dao.StatusArchived:
		return p.Status, fail(ErrProjectArchived, "project %d is archived", id)
	case dao.StatusCancelled:
		if allocated.Gt(p.TotalAllocated) || !paidOut.Eq(p.TotalPaidOut) {
			return p.Status, fail(ErrProjectCancelled, "project %d only accepts refunds", id)
		}
	}
	if paidOut.Gt(allocated) {
		return p.Status, fail(ErrInsufficientProjectAllocation, "paid out %s above allocated %s", paidOut, allocated)
	}
	if paidOut.Lt(p.TotalPaidOut) {
		return p.Status, fail(ErrInvalidArgument, "paid out total cannot shrink")
	}
	growing := allocated.Gt(p.TotalAllocated)
	if growing && !p.HardCap.IsZero() && allocated.Gt(p.HardCap) {
		return p.Status, fail(ErrHardCapExceeded, "project %d hard cap %s, requested %s", id, p.HardCap, allocated)
	}

	sum := r.s.getAmount(AllocatedSum)
	sum, err = sum.Sub(p.TotalAllocated)
	if err != nil {
		return p.Status, wrap(ErrAmountOverflow, err)
	}
	sum, err = sum.Add(allocated)
	if err != nil {
		return p.Status, wrap(ErrAmountOverflow, err)
	}
	if growing {
		cfg, err := r.s.Settings()
		if err != nil {
			return p.Status, err
		}
		if cfg.GlobalSoftCapEnabled && sum.Gt(cfg.GlobalSoftCap) {
			return p.Status, fail(ErrGlobalCapExceeded, "global allocation %s above ceiling %s", sum, cfg.GlobalSoftCap)
		}
	}

	p.TotalAllocated = allocated
	p.TotalPaidOut = paidOut
	r.s.setAmount(AllocatedSum, sum)
	r.s.emitFundingEvent(id, allocated, paidOut)
	r.moveTo(p, NextStatus(p.Status, totalsOf(p), capsOf(p)))
	return p.Status, nil
}

// SetFunding is the operator entry point to the funding sink. Totals are owned by
// the ledger, so the caller must echo the stored ones; the call only re-derives
// the status from them.
func (r *ProjectRegistry) SetFunding(id uint64, allocated, paidOut dao.Amount) (dao.ProjectStatus, error) {
	if err := r.s.requireAdmin(); err != nil {
		return 0, err
	}
	p, err := r.Project(id)
	if err != nil {
		return 0, err
	}
	if !allocated.Eq(p.TotalAllocated) || !paidOut.Eq(p.TotalPaidOut) {
		return p.Status, fail(ErrFundingMismatch, "project %d holds %s allocated and %s paid out", id, p.TotalAllocated, p.TotalPaidOut)
	}
	r.moveTo(p, NextStatus(p.Status, totalsOf(p), capsOf(p)))
	return p.Status, nil
}

// moveTo saves p with its new status, releasing the category slot on terminal entry.
func (r *ProjectRegistry) moveTo(p *dao.Project, next dao.ProjectStatus) {
	prev := p.Status
	p.Status = next
	r.saveProject(p)
	if prev == next {
		return
	}
	if next.Terminal() && !prev.Terminal() {
		key := categoryCountKey(p.Category)
		if n := r.s.getCount(key); n > 0 {
			r.s.setCount(key, n-1)
		}
	}
	r.s.emitProjectStatusEvent(p.ID, prev, next)
}

// UpdateProjectStatus is the operator's manual lever. Only Cancelled, Archived and Paid can be set by hand.
// Example payload: reg.UpdateProjectStatus(3, dao.StatusCancelled)
func (r *ProjectRegistry) UpdateProjectStatus(id uint64, status dao.ProjectStatus) error {
	if err := r.s.requireAdmin(); err != nil {
		return err
	}
	p, err := r.Project(id)
	if err != nil {
		return err
	}
	if p.Status.Terminal() {
		return fail(ErrInvalidTransition, "project %d is %s", id, p.Status)
	}
	switch status {
	case dao.StatusCancelled:
		if !p.TotalPaidOut.IsZero() {
			return fail(ErrProjectHasPayouts, "project %d paid out %s", id, p.TotalPaidOut)
		}
	case dao.StatusArchived:
		if !p.TotalAllocated.IsZero() {
			return fail(ErrInvalidTransition, "project %d still holds %s", id, p.TotalAllocated)
		}
	case dao.StatusPaid:
		if p.Status != dao.StatusReadyToPayout || p.TotalAllocated.IsZero() || p.TotalPaidOut.Lt(p.TotalAllocated) {
			return fail(ErrInvalidTransition, "project %d is not fully paid out", id)
		}
	default:
		return fail(ErrInvalidTransition, "%s cannot be set by hand", status)
	}
	r.moveTo(p, status)
	return nil
}

// SetPriority overrides the ranking-derived priority.
func (r *ProjectRegistry) SetPriority(id uint64, priority uint64) error {
	if err := r.s.requireAdmin(); err != nil {
		return err
	}
	p, err := r.Project(id)
	if err != nil {
		return err
	}
	p.Priority = priority
	r.saveProject(p)
	r.s.emitPriorityEvent(id, priority)
	return nil
}

// SetCategoryLimit overrides the default limit for one category. Existing projects are untouched.
func (r *ProjectRegistry) SetCategoryLimit(category string, limit uint64) error {
	if err := r.s.requireAdmin(); err != nil {
		return err
	}
	category = strings.TrimSpace(category)
	r.s.setCategoryLimit(category, limit)
	r.s.emitCategoryLimitEvent(category, limit)
	return nil
}

// CheckDeadline cancels a project whose deadline passed with the target unmet.
// Anyone may call it; otherwise it is a no-op returning the current status.
func (r *ProjectRegistry) CheckDeadline(id uint64) (dao.ProjectStatus, error) {
	if _, err := r.s.Settings(); err != nil {
		return 0, err
	}
	p, err := r.Project(id)
	if err != nil {
		return 0, err
	}
	if p.Status.Terminal() || p.Deadline == 0 {
		return p.Status, nil
	}
	// once money left for the project, cancellation is no longer possible
	if r.s.Now() <= p.Deadline || p.TotalAllocated.Gte(p.Target) || !p.TotalPaidOut.IsZero() {
		return p.Status, nil
	}
	r.moveTo(p, dao.StatusCancelled)
	return p.Status, nil
}

// MarkVoting moves a FundingReady project into Voting when a round opens over it.
func (r *ProjectRegistry) MarkVoting(id uint64) error {
	p, err := r.Project(id)
	if err != nil {
		return err
	}
	switch p.Status {
	case dao.StatusVoting:
		return nil
	case dao.StatusFundingReady:
		r.moveTo(p, dao.StatusVoting)
		return nil
	default:
		return fail(ErrProjectNotVotable, "project %d is %s", id, p.Status)
	}
}

// ApplyOutcome records the round's ranking. Approved projects still in Voting become ReadyToPayout;
// projects that left Voting during the round only get their priority.
func (r *ProjectRegistry) ApplyOutcome(id uint64, priority uint64, approved bool) error {
	p, err := r.Project(id)
	if err != nil {
		return err
	}
	if p.Status.Terminal() {
		return nil
	}
	p.Priority = priority
	next := p.Status
	if approved && p.Status == dao.StatusVoting {
		next = NextStatus(dao.StatusReadyToPayout, totalsOf(p), capsOf(p))
	}
	r.moveTo(p, next)
	return nil
}
