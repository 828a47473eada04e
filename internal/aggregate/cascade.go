package aggregate

import (
	"fmt"

	"projectron-api/internal/models"

	"gorm.io/gorm"
)

// AffectedResources lists the parents whose status a change completed.
type AffectedResources struct {
	Task      *models.Task      `json:"task,omitempty"`
	Milestone *models.Milestone `json:"milestone,omitempty"`
}

// Empty reports whether nothing was completed.
func (a AffectedResources) Empty() bool {
	return a.Task == nil && a.Milestone == nil
}

// CascadeFromSubtask completes the subtask's task when it was the last open
// subtask, and continues with the milestone.
func CascadeFromSubtask(tx *gorm.DB, subtask *models.Subtask) (AffectedResources, error) {
	var affected AffectedResources
	if subtask.Status != models.StatusCompleted {
		return affected, nil
	}

	open, err := countOpen(tx, &models.Subtask{}, "task_id = ?", subtask.TaskID)
	if err != nil || open > 0 {
		return affected, err
	}

	var task models.Task
	if err := tx.Where("id = ?", subtask.TaskID).First(&task).Error; err != nil {
		return affected, fmt.Errorf("load task %s: %w", subtask.TaskID, err)
	}
	if task.Status == models.StatusCompleted {
		return affected, nil
	}
	if err := tx.Model(&task).Update("status", models.StatusCompleted).Error; err != nil {
		return affected, fmt.Errorf("complete task %s: %w", task.ID, err)
	}
	task.Status = models.StatusCompleted
	affected.Task = &task

	affected.Milestone, err = completeMilestone(tx, task.MilestoneID)
	return affected, err
}

// CascadeFromTask completes the task's milestone when every task in it is done.
func CascadeFromTask(tx *gorm.DB, task *models.Task) (AffectedResources, error) {
	var affected AffectedResources
	if task.Status != models.StatusCompleted {
		return affected, nil
	}
	m, err := completeMilestone(tx, task.MilestoneID)
	affected.Milestone = m
	return affected, err
}

func completeMilestone(tx *gorm.DB, milestoneID string) (*models.Milestone, error) {
	open, err := countOpen(tx, &models.Task{}, "milestone_id = ?", milestoneID)
	if err != nil || open > 0 {
		return nil, err
	}

	var m models.Milestone
	if err := tx.Where("id = ?", milestoneID).First(&m).Error; err != nil {
		return nil, fmt.Errorf("load milestone %s: %w", milestoneID, err)
	}
	if m.Status == models.StatusCompleted {
		return nil, nil
	}
	if err := tx.Model(&m).Update("status", models.StatusCompleted).Error; err != nil {
		return nil, fmt.Errorf("complete milestone %s: %w", m.ID, err)
	}
	m.Status = models.StatusCompleted
	return &m, nil
}

func countOpen(tx *gorm.DB, model any, cond string, arg string) (int64, error) {
	var n int64
	err := tx.Model(model).Where(cond, arg).Where("status <> ?", models.StatusCompleted).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count open children: %w", err)
	}
	return n, nil
}
