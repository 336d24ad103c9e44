package service

import (
	"context"
	"time"

	"foundation_portal/internal/domain/repository"
)

type ExpenseCounts struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Pending  int `json:"pending"`
}

type TaskCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

type Stats struct {
	Users     int           `json:"users"`
	Expenses  ExpenseCounts `json:"expenses"`
	Tasks     TaskCounts    `json:"tasks"`
	Timestamp time.Time     `json:"timestamp"`
}

type StatsService struct {
	userRepo    repository.UserRepository
	expenseRepo repository.ExpenseRepository
	taskRepo    repository.TaskRepository
	now         func() time.Time
}

func NewStatsService(userRepo repository.UserRepository, expenseRepo repository.ExpenseRepository, taskRepo repository.TaskRepository) *StatsService {
	return &StatsService{userRepo: userRepo, expenseRepo: expenseRepo, taskRepo: taskRepo, now: time.Now}
}

func (s *StatsService) Snapshot(ctx context.Context) (*Stats, error) {
	users, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	expenseTotal, expenseApproved, err := s.expenseRepo.CountByApproval(ctx)
	if err != nil {
		return nil, err
	}
	taskTotal, taskCompleted, err := s.taskRepo.CountByCompletion(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Users:     users,
		Expenses:  ExpenseCounts{Total: expenseTotal, Approved: expenseApproved, Pending: expenseTotal - expenseApproved},
		Tasks:     TaskCounts{Total: taskTotal, Completed: taskCompleted, Pending: taskTotal - taskCompleted},
		Timestamp: s.now().UTC(),
	}, nil
}
