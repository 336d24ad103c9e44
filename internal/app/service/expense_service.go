package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"foundation_portal/internal/common"
	"foundation_portal/internal/domain/approval"
	"foundation_portal/internal/domain/model"
	"foundation_portal/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ExpenseService struct {
	expenseRepo repository.ExpenseRepository
	locker      VoteLocker
	logger      logrus.FieldLogger
	now         func() time.Time
}

func NewExpenseService(expenseRepo repository.ExpenseRepository, locker VoteLocker, logger logrus.FieldLogger) *ExpenseService {
	return &ExpenseService{
		expenseRepo: expenseRepo,
		locker:      locker,
		logger:      logger,
		now:         time.Now,
	}
}

type CreateExpenseRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Date        *time.Time      `json:"date,omitempty"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
}

type ExpenseListFilter struct {
	Category string
	Approved *bool
}

func (s *ExpenseService) Create(ctx context.Context, creatorID string, req CreateExpenseRequest) (*model.Expense, error) {
	expense := &model.Expense{
		ID:          uuid.NewString(),
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
		CreatedBy:   creatorID,
		Approvals:   []model.Approval{},
	}
	if req.Date != nil {
		expense.Date = req.Date.UTC()
	} else {
		expense.Date = s.now().UTC()
	}
	if err := expense.Validate(); err != nil {
		return nil, err
	}

	if err := s.expenseRepo.Create(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}
	return expense, nil
}

func (s *ExpenseService) Get(ctx context.Context, id string) (*model.Expense, error) {
	return s.expenseRepo.FindByID(ctx, id)
}

func (s *ExpenseService) List(ctx context.Context, filter ExpenseListFilter) ([]model.Expense, error) {
	repoFilter := repository.ExpenseFilter{Approved: filter.Approved}
	if category := strings.TrimSpace(filter.Category); category != "" {
		repoFilter.CategorySlug = slug.Make(category)
	}
	return s.expenseRepo.List(ctx, repoFilter)
}

// Vote applies one approver's vote. Votes on the same expense are serialized so two
// approvers never overwrite each other's entry.
func (s *ExpenseService) Vote(ctx context.Context, expenseID, approverID string, approved bool) (*model.Expense, error) {
	if strings.TrimSpace(approverID) == "" {
		return nil, common.Validationf("approverId is required")
	}

	// Unknown ids never take a lock.
	if _, err := s.expenseRepo.FindByID(ctx, expenseID); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, "expense-vote:"+expenseID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the lock so the vote applies to the latest approvals.
	expense, err := s.expenseRepo.FindByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	wasApproved := expense.IsFullyApproved
	approval.CastVote(expense, approverID, approved, s.now().UTC())

	saved, err := s.expenseRepo.Save(ctx, expense)
	if err != nil {
		return nil, fmt.Errorf("failed to save vote on expense %s: %w", expenseID, err)
	}

	if wasApproved != saved.IsFullyApproved {
		s.logger.WithFields(logrus.Fields{
			"expense_id": saved.ID,
			"status":     approval.StatusOf(saved),
			"approvals":  approval.ApprovedCount(saved),
		}).Info("expense approval status changed")
	}
	return saved, nil
}
