// Package approval maintains an expense's vote list and its derived fully-approved flag.
// It is purely mechanical: deciding who may vote belongs to the caller.
package approval

import (
	"time"

	"foundation_portal/internal/domain/model"
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusFullyApproved Status = "fully_approved"
)

// quorum is the number of approving votes required, one per foundation administrator.
const quorum = 4

// Quorum is the single accessor over the approval threshold.
func Quorum() int {
	return quorum
}

// CastVote records approverID's vote on e and recomputes IsFullyApproved.
// A repeat vote overwrites the approver's entry in place; first votes are appended,
// so the list keeps first-arrival order.
func CastVote(e *model.Expense, approverID string, approved bool, now time.Time) *model.Expense {
	recorded := false
	for i := range e.Approvals {
		if e.Approvals[i].ApproverID == approverID {
			e.Approvals[i].Approved = approved
			e.Approvals[i].Date = now
			recorded = true
			break
		}
	}
	if !recorded {
		e.Approvals = append(e.Approvals, model.Approval{
			ApproverID: approverID,
			Approved:   approved,
			Date:       now,
		})
	}

	Recompute(e)
	return e
}

// ApprovedCount counts entries whose flag is true.
func ApprovedCount(e *model.Expense) int {
	n := 0
	for _, a := range e.Approvals {
		if a.Approved {
			n++
		}
	}
	return n
}

// Recompute derives IsFullyApproved from the current list. There is no latching:
// a flipped vote can move the expense back to pending.
func Recompute(e *model.Expense) {
	e.IsFullyApproved = ApprovedCount(e) == Quorum()
}

func StatusOf(e *model.Expense) Status {
	if e.IsFullyApproved {
		return StatusFullyApproved
	}
	return StatusPending
}
