// Package aggregate assembles a project with its milestones, tasks and
// subtasks and keeps parent statuses in step with their children.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"projectron-api/internal/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("project not found")
	ErrForbidden = errors.New("not authorized to access this project")
)

type TaskNode struct {
	models.Task
	Subtasks []models.Subtask `json:"subtasks"`
}

type MilestoneNode struct {
	models.Milestone
	Tasks []TaskNode `json:"tasks"`
}

// Stats summarises task completion of a project.
type Stats struct {
	MilestoneCount       int     `json:"milestone_count"`
	TaskCount            int     `json:"task_count"`
	CompletedTaskCount   int     `json:"completed_task_count"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// ProjectTree is a project with every descendant, ordered by position.
type ProjectTree struct {
	models.Project
	Milestones []MilestoneNode `json:"milestones"`
	Stats
}

// Percentage is completed/total as a percentage rounded to two decimals,
// or 0 when there is nothing to complete.
func Percentage(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*100*100) / 100
}

// Authorize loads the project and checks that userID may read it.
func Authorize(ctx context.Context, db *gorm.DB, projectID, userID string) (*models.Project, error) {
	var project models.Project
	if err := db.WithContext(ctx).Where("id = ?", projectID).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load project: %w", err)
	}
	if !project.CanRead(userID) {
		return nil, ErrForbidden
	}
	return &project, nil
}

// Complete returns the nested project tree with its statistics.
func Complete(ctx context.Context, db *gorm.DB, projectID, userID string) (*ProjectTree, error) {
	project, err := Authorize(ctx, db, projectID, userID)
	if err != nil {
		return nil, err
	}
	db = db.WithContext(ctx)

	var milestones []models.Milestone
	if err := db.Where("project_id = ?", projectID).Order("sort_order").Find(&milestones).Error; err != nil {
		return nil, fmt.Errorf("load milestones: %w", err)
	}
	var tasks []models.Task
	if err := db.Where("project_id = ?", projectID).Order("sort_order").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.ID)
	}
	var subtasks []models.Subtask
	if len(taskIDs) > 0 {
		if err := db.Where("task_id IN ?", taskIDs).Order("sort_order").Find(&subtasks).Error; err != nil {
			return nil, fmt.Errorf("load subtasks: %w", err)
		}
	}

	subtasksByTask := make(map[string][]models.Subtask, len(tasks))
	for _, s := range subtasks {
		subtasksByTask[s.TaskID] = append(subtasksByTask[s.TaskID], s)
	}
	tasksByMilestone := make(map[string][]TaskNode, len(milestones))
	for _, t := range tasks {
		if t.DependencyIDs == nil {
			t.DependencyIDs = []string{}
		}
		subs := subtasksByTask[t.ID]
		if subs == nil {
			subs = []models.Subtask{}
		}
		tasksByMilestone[t.MilestoneID] = append(tasksByMilestone[t.MilestoneID], TaskNode{Task: t, Subtasks: subs})
	}

	tree := &ProjectTree{Project: *project, Milestones: make([]MilestoneNode, 0, len(milestones))}
	for _, m := range milestones {
		nodes := tasksByMilestone[m.ID]
		if nodes == nil {
			nodes = []TaskNode{}
		}
		tree.Milestones = append(tree.Milestones, MilestoneNode{Milestone: m, Tasks: nodes})

		tree.TaskCount += len(nodes)
		for _, n := range nodes {
			if n.Status == models.StatusCompleted {
				tree.CompletedTaskCount++
			}
		}
	}
	tree.MilestoneCount = len(tree.Milestones)
	tree.CompletionPercentage = Percentage(tree.CompletedTaskCount, tree.TaskCount)
	return tree, nil
}

// Touch bumps the project's updated_at after a change below it.
func Touch(tx *gorm.DB, projectID string) error {
	return tx.Model(&models.Project{}).Where("id = ?", projectID).
		UpdateColumn("updated_at", time.Now()).Error
}
