package domain

import (
	"fmt"
	"sort"
)

// Domain identifies a tracked status domain
type Domain string

const (
	DomainJob        Domain = "job"
	DomainPrepress   Domain = "prepress"
	DomainProduction Domain = "production"
	DomainCutting    Domain = "cutting"
)

// Status is a status value within a single domain
type Status string

// Job domain statuses
const (
	JobStatusPending       Status = "PENDING"
	JobStatusInProgress    Status = "IN_PROGRESS"
	JobStatusPaused        Status = "PAUSED"
	JobStatusPendingReview Status = "PENDING_REVIEW"
	JobStatusCompleted     Status = "COMPLETED"
	JobStatusRejected      Status = "REJECTED"
	JobStatusOnHold        Status = "ON_HOLD"
	JobStatusCancelled     Status = "CANCELLED"
)

// Prepress domain statuses
const (
	PrepressStatusPending    Status = "PENDING"
	PrepressStatusAssigned   Status = "ASSIGNED"
	PrepressStatusInProgress Status = "IN_PROGRESS"
	PrepressStatusPaused     Status = "PAUSED"
	PrepressStatusHODReview  Status = "HOD_REVIEW"
	PrepressStatusCompleted  Status = "COMPLETED"
	PrepressStatusRejected   Status = "REJECTED"
	PrepressStatusCancelled  Status = "CANCELLED"
)

// Production assignment statuses
const (
	ProductionStatusPending      Status = "Pending"
	ProductionStatusAssigned     Status = "Assigned"
	ProductionStatusSetup        Status = "Setup"
	ProductionStatusPrinting     Status = "Printing"
	ProductionStatusQualityCheck Status = "Quality Check"
	ProductionStatusCompleted    Status = "Completed"
	ProductionStatusOnHold       Status = "On Hold"
	ProductionStatusRejected     Status = "Rejected"
)

// Cutting statuses
const (
	CuttingStatusPending    Status = "Pending"
	CuttingStatusAssigned   Status = "Assigned"
	CuttingStatusInProgress Status = "In Progress"
	CuttingStatusOnHold     Status = "On Hold"
	CuttingStatusCompleted  Status = "Completed"
	CuttingStatusRejected   Status = "Rejected"
)

// transitionTable maps a status to its allowed successors. A status present
// with no successors is terminal.
type transitionTable struct {
	initial    Status
	successors map[Status][]Status
}

// StateMachineRegistry holds one declarative transition table per domain.
// It is immutable after construction and safe for concurrent use.
type StateMachineRegistry struct {
	tables map[Domain]transitionTable
}

// NewStateMachineRegistry builds the registry with the job, prepress,
// production and cutting tables.
func NewStateMachineRegistry() *StateMachineRegistry {
	return &StateMachineRegistry{
		tables: map[Domain]transitionTable{
			DomainJob:        jobTable(),
			DomainPrepress:   prepressTable(),
			DomainProduction: productionTable(),
			DomainCutting:    cuttingTable(),
		},
	}
}

func jobTable() transitionTable {
	t := map[Status][]Status{
		JobStatusPending:       {JobStatusInProgress},
		JobStatusInProgress:    {JobStatusPaused, JobStatusPendingReview},
		JobStatusPaused:        {JobStatusInProgress},
		JobStatusPendingReview: {JobStatusCompleted, JobStatusRejected},
		JobStatusRejected:      {JobStatusInProgress},
		JobStatusOnHold:        {JobStatusInProgress},
		JobStatusCompleted:     {},
		JobStatusCancelled:     {},
	}
	// ON_HOLD and CANCELLED are reachable from every non-terminal status.
	for from, next := range t {
		if len(next) == 0 {
			continue
		}
		if from != JobStatusOnHold {
			next = append(next, JobStatusOnHold)
		}
		t[from] = append(next, JobStatusCancelled)
	}
	return transitionTable{initial: JobStatusPending, successors: t}
}

func prepressTable() transitionTable {
	t := map[Status][]Status{
		PrepressStatusPending:    {PrepressStatusAssigned},
		PrepressStatusAssigned:   {PrepressStatusInProgress},
		PrepressStatusInProgress: {PrepressStatusPaused, PrepressStatusHODReview},
		PrepressStatusPaused:     {PrepressStatusInProgress},
		PrepressStatusHODReview:  {PrepressStatusCompleted, PrepressStatusRejected},
		PrepressStatusRejected:   {PrepressStatusInProgress},
		PrepressStatusCompleted:  {},
		PrepressStatusCancelled:  {},
	}
	for from, next := range t {
		// HOD_REVIEW resolves only to COMPLETED or REJECTED.
		if len(next) == 0 || from == PrepressStatusHODReview {
			continue
		}
		t[from] = append(next, PrepressStatusCancelled)
	}
	return transitionTable{initial: PrepressStatusPending, successors: t}
}

func productionTable() transitionTable {
	return transitionTable{
		initial: ProductionStatusPending,
		successors: map[Status][]Status{
			ProductionStatusPending:      {ProductionStatusAssigned},
			ProductionStatusAssigned:     {ProductionStatusSetup},
			ProductionStatusSetup:        {ProductionStatusPrinting},
			ProductionStatusPrinting:     {ProductionStatusQualityCheck},
			ProductionStatusQualityCheck: {ProductionStatusCompleted, ProductionStatusOnHold, ProductionStatusRejected},
			ProductionStatusOnHold:       {ProductionStatusPrinting},
			ProductionStatusCompleted:    {},
			ProductionStatusRejected:     {},
		},
	}
}

func cuttingTable() transitionTable {
	return transitionTable{
		initial: CuttingStatusPending,
		successors: map[Status][]Status{
			CuttingStatusPending:    {CuttingStatusAssigned},
			CuttingStatusAssigned:   {CuttingStatusInProgress},
			CuttingStatusInProgress: {CuttingStatusCompleted, CuttingStatusOnHold, CuttingStatusRejected},
			CuttingStatusOnHold:     {CuttingStatusInProgress},
			CuttingStatusCompleted:  {},
			CuttingStatusRejected:   {},
		},
	}
}

// Domains returns the registered domains in a stable order
func (r *StateMachineRegistry) Domains() []Domain {
	return []Domain{DomainJob, DomainPrepress, DomainProduction, DomainCutting}
}

// HasDomain reports whether the domain has a transition table
func (r *StateMachineRegistry) HasDomain(domain Domain) bool {
	_, ok := r.tables[domain]
	return ok
}

// InitialStatus returns the status new jobs start with in the domain
func (r *StateMachineRegistry) InitialStatus(domain Domain) (Status, error) {
	table, ok := r.tables[domain]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	return table.initial, nil
}

// IsKnownStatus reports whether status belongs to the domain
func (r *StateMachineRegistry) IsKnownStatus(domain Domain, status Status) bool {
	table, ok := r.tables[domain]
	if !ok {
		return false
	}
	_, ok = table.successors[status]
	return ok
}

// IsTerminal reports whether status has no successors in the domain
func (r *StateMachineRegistry) IsTerminal(domain Domain, status Status) bool {
	table, ok := r.tables[domain]
	if !ok {
		return false
	}
	next, ok := table.successors[status]
	return ok && len(next) == 0
}

// CanTransition reports whether to is an allowed successor of from
func (r *StateMachineRegistry) CanTransition(domain Domain, from, to Status) bool {
	table, ok := r.tables[domain]
	if !ok {
		return false
	}
	for _, allowed := range table.successors[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ApplyTransition returns to when the transition is legal, otherwise an
// *InvalidTransitionError carrying the legal successors of from.
func (r *StateMachineRegistry) ApplyTransition(domain Domain, from, to Status) (Status, error) {
	if !r.HasDomain(domain) {
		return from, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	if !r.CanTransition(domain, from, to) {
		return from, &InvalidTransitionError{
			Domain:  domain,
			From:    from,
			To:      to,
			Allowed: r.NextStatuses(domain, from),
		}
	}
	return to, nil
}

// NextStatuses returns the sorted legal successors of from
func (r *StateMachineRegistry) NextStatuses(domain Domain, from Status) []Status {
	table, ok := r.tables[domain]
	if !ok {
		return nil
	}
	next := append([]Status(nil), table.successors[from]...)
	sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
	return next
}

// Table returns a copy of the domain's transition table with sorted successors
func (r *StateMachineRegistry) Table(domain Domain) (map[Status][]Status, error) {
	table, ok := r.tables[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	out := make(map[Status][]Status, len(table.successors))
	for from := range table.successors {
		out[from] = r.NextStatuses(domain, from)
	}
	return out, nil
}
