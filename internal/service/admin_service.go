package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskdesk/internal/cache"
	"taskdesk/internal/errors"
	"taskdesk/internal/model"
	"taskdesk/internal/repository"
)

// UserDetail bundles a user with their tasks for the admin dashboard.
type UserDetail struct {
	User  *model.User  `json:"user"`
	Tasks []model.Task `json:"tasks"`
}

// AdminService exposes the admin-only user inspection operations. Role
// enforcement happens in the router; these methods assume an admin caller.
type AdminService interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUserDetail(ctx context.Context, userID uuid.UUID) (*UserDetail, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

type adminService struct {
	userRepo repository.UserRepository
	taskRepo repository.TaskRepository
	cache    *cache.Client
}

// NewAdminService creates a new admin service.
func NewAdminService(userRepo repository.UserRepository, taskRepo repository.TaskRepository, cache *cache.Client) AdminService {
	return &adminService{
		userRepo: userRepo,
		taskRepo: taskRepo,
		cache:    cache,
	}
}

// ListUsers returns all regular (non-admin) users.
func (s *adminService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.userRepo.ListNonAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUserDetail returns a user together with all of their tasks.
func (s *adminService) GetUserDetail(ctx context.Context, userID uuid.UUID) (*UserDetail, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	tasks, err := s.taskRepo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user tasks: %w", err)
	}

	return &UserDetail{User: user, Tasks: tasks}, nil
}

// DeleteUser removes a user and every task they own, and drops their
// cached task list.
func (s *adminService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}

	if err := s.taskRepo.DeleteByOwner(ctx, userID); err != nil {
		return fmt.Errorf("delete user tasks: %w", err)
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	_ = s.cache.Delete(ctx, fmt.Sprintf("tasks:%s", userID))
	return nil
}
