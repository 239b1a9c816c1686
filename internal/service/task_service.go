package service

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskdesk/internal/cache"
	"taskdesk/internal/errors"
	"taskdesk/internal/model"
	"taskdesk/internal/repository"
	"taskdesk/internal/storage"
)

const taskListCacheTTL = 5 * time.Minute

// TaskInput carries the writable task fields as submitted by the client.
// DueDate stays a string until validated; both YYYY-MM-DD and RFC 3339 are
// accepted.
type TaskInput struct {
	Name        string
	Description string
	DueDate     string
	Priority    string
}

// TaskService handles ownership-scoped task operations. Every method takes
// the authenticated owner ID, never a client-supplied one, so a task of
// another user is indistinguishable from a missing task.
type TaskService interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]model.Task, error)
	Create(ctx context.Context, ownerID uuid.UUID, input TaskInput, file *multipart.FileHeader) (*model.Task, error)
	Update(ctx context.Context, ownerID, taskID uuid.UUID, input TaskInput, file *multipart.FileHeader) (*model.Task, error)
	Toggle(ctx context.Context, ownerID, taskID uuid.UUID) (*model.Task, error)
	Delete(ctx context.Context, ownerID, taskID uuid.UUID) error
}

type taskService struct {
	taskRepo    repository.TaskRepository
	attachments storage.AttachmentStore
	cache       *cache.Client
}

// NewTaskService creates a new task service.
func NewTaskService(taskRepo repository.TaskRepository, attachments storage.AttachmentStore, cache *cache.Client) TaskService {
	return &taskService{
		taskRepo:    taskRepo,
		attachments: attachments,
		cache:       cache,
	}
}

func (s *taskService) cacheKey(ownerID uuid.UUID) string {
	return fmt.Sprintf("tasks:%s", ownerID)
}

func (s *taskService) invalidate(ctx context.Context, ownerID uuid.UUID) {
	_ = s.cache.Delete(ctx, s.cacheKey(ownerID))
}

// List returns the owner's tasks, newest-created first. Results are cached
// per owner; every mutation below invalidates the entry.
func (s *taskService) List(ctx context.Context, ownerID uuid.UUID) ([]model.Task, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(ownerID)); data != nil {
		var cached []model.Task
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	tasks, err := s.taskRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	if payload, err := json.Marshal(tasks); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(ownerID), payload, taskListCacheTTL)
	}
	return tasks, nil
}

// Create validates the input, stores the optional attachment and persists a
// new task owned by ownerID. Priority defaults to medium when omitted.
func (s *taskService) Create(ctx context.Context, ownerID uuid.UUID, input TaskInput, file *multipart.FileHeader) (*model.Task, error) {
	if input.Name == "" || input.Description == "" || input.DueDate == "" {
		return nil, errors.ErrMissingFields
	}

	dueDate, err := parseDueDate(input.DueDate)
	if err != nil {
		return nil, err
	}

	priority := model.Priority(input.Priority)
	if input.Priority == "" {
		priority = model.PriorityMedium
	} else if !priority.Valid() {
		return nil, errors.ErrInvalidPriority
	}

	task := &model.Task{
		OwnerID:     ownerID,
		Name:        input.Name,
		Description: input.Description,
		DueDate:     dueDate,
		Priority:    priority,
	}

	if file != nil {
		path, name, err := s.attachments.Save(file)
		if err != nil {
			return nil, fmt.Errorf("save attachment: %w", err)
		}
		task.FilePath = path
		task.FileName = name
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.invalidate(ctx, ownerID)
	return task, nil
}

// Update overwrites the writable fields of an owned task and replaces the
// attachment when a new file is supplied.
func (s *taskService) Update(ctx context.Context, ownerID, taskID uuid.UUID, input TaskInput, file *multipart.FileHeader) (*model.Task, error) {
	task, err := s.taskRepo.FindByIDAndOwner(ctx, taskID, ownerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}

	if input.Name == "" || input.Description == "" || input.DueDate == "" {
		return nil, errors.ErrMissingFields
	}

	dueDate, err := parseDueDate(input.DueDate)
	if err != nil {
		return nil, err
	}

	if input.Priority != "" {
		priority := model.Priority(input.Priority)
		if !priority.Valid() {
			return nil, errors.ErrInvalidPriority
		}
		task.Priority = priority
	}

	task.Name = input.Name
	task.Description = input.Description
	task.DueDate = dueDate

	// The replaced file stays on disk until the row is written, so a failed
	// update never leaves the task pointing at a removed file.
	var replacedPath string
	if file != nil {
		path, name, err := s.attachments.Save(file)
		if err != nil {
			return nil, fmt.Errorf("save attachment: %w", err)
		}
		replacedPath = task.FilePath
		task.FilePath = path
		task.FileName = name
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	if replacedPath != "" {
		_ = s.attachments.Remove(replacedPath)
	}

	s.invalidate(ctx, ownerID)
	return task, nil
}

// Toggle flips the completed flag of an owned task.
func (s *taskService) Toggle(ctx context.Context, ownerID, taskID uuid.UUID) (*model.Task, error) {
	task, err := s.taskRepo.FindByIDAndOwner(ctx, taskID, ownerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}

	task.Completed = !task.Completed
	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("toggle task: %w", err)
	}

	s.invalidate(ctx, ownerID)
	return task, nil
}

// Delete removes an owned task and its attachment file, best effort.
func (s *taskService) Delete(ctx context.Context, ownerID, taskID uuid.UUID) error {
	task, err := s.taskRepo.FindByIDAndOwner(ctx, taskID, ownerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrTaskNotFound
		}
		return fmt.Errorf("find task: %w", err)
	}

	deleted, err := s.taskRepo.Delete(ctx, taskID, ownerID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if !deleted {
		return errors.ErrTaskNotFound
	}

	if task.FilePath != "" {
		_ = s.attachments.Remove(task.FilePath)
	}

	s.invalidate(ctx, ownerID)
	return nil
}

func parseDueDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, errors.ErrInvalidDueDate
}
