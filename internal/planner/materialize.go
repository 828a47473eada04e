package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"projectron-api/internal/logger"
	"projectron-api/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Materializer turns a generated plan into persisted entities.
type Materializer struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewMaterializer(db *gorm.DB, l *zap.Logger) *Materializer {
	return &Materializer{db: db, logger: logger.Or(l), now: time.Now}
}

type createdIDs struct {
	project    string
	milestones []string
	tasks      []string
}

// Materialize creates the project tree for ownerID. Orders follow the
// array positions of the plan. When anything fails, everything created so
// far is removed and the original error is returned.
func (m *Materializer) Materialize(ctx context.Context, ownerID string, plan *Plan) (*models.Project, error) {
	db := m.db.WithContext(ctx)
	var ids createdIDs

	project, err := m.createProject(db, ownerID, plan)
	if err != nil {
		return nil, err
	}
	ids.project = project.ID

	if err := m.createTree(db, project, plan, &ids); err != nil {
		m.cleanup(db, ids)
		return nil, err
	}
	return project, nil
}

func (m *Materializer) createProject(db *gorm.DB, ownerID string, plan *Plan) (*models.Project, error) {
	in := plan.Input
	name, err := uniqueName(db, ownerID, in.Name)
	if err != nil {
		return nil, err
	}

	p := &models.Project{
		ID:                    uuid.NewString(),
		Name:                  name,
		Description:           in.Description,
		TechStack:             in.TechStack,
		ExperienceLevel:       in.ExperienceLevel,
		TeamSize:              in.TeamSize,
		Status:                models.ProjectDraft,
		OwnerID:               ownerID,
		Collaborators:         []string{},
		HighLevelPlan:         toJSON(plan.HighLevelPlan),
		TechnicalArchitecture: toJSON(plan.TechnicalArchitecture),
		APIEndpoints:          toJSON(plan.APIEndpoints),
		DataModels:            toJSON(plan.DataModels),
		UIComponents:          toJSON(plan.UIComponents),
		ImplementationPlan:    toJSON(plan.ImplementationPlan),
	}
	if p.ExperienceLevel == "" {
		p.ExperienceLevel = models.ExperienceJunior
	}
	if p.TeamSize < 1 {
		p.TeamSize = 1
	}
	if err := db.Create(p).Error; err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

func (m *Materializer) createTree(db *gorm.DB, project *models.Project, plan *Plan, ids *createdIDs) error {
	if plan.ImplementationPlan == nil {
		return nil
	}

	type pending struct {
		id   string
		deps []string
	}
	byName := map[string]string{}
	var withDeps []pending
	start := m.now()

	for mi, pm := range plan.ImplementationPlan.Milestones {
		milestone := models.Milestone{
			ID:          uuid.NewString(),
			ProjectID:   project.ID,
			Name:        pm.Name,
			Description: pm.Description,
			Status:      statusOr(pm.Status),
			Order:       mi,
		}
		if pm.DueDateOffset > 0 {
			due := start.AddDate(0, 0, pm.DueDateOffset)
			milestone.DueDate = &due
		}
		if err := db.Create(&milestone).Error; err != nil {
			return fmt.Errorf("create milestone %q: %w", pm.Name, err)
		}
		ids.milestones = append(ids.milestones, milestone.ID)

		for ti, pt := range pm.Tasks {
			task := models.Task{
				ID:                 uuid.NewString(),
				MilestoneID:        milestone.ID,
				ProjectID:          project.ID,
				Name:               pt.Name,
				Description:        pt.Description,
				Status:             statusOr(pt.Status),
				Priority:           priorityOr(pt.Priority),
				EstimatedHours:     pt.EstimatedHours,
				DependencyIDs:      []string{},
				ComponentsAffected: pt.ComponentsAffected,
				APIsAffected:       pt.APIsAffected,
				Order:              ti,
			}
			if err := db.Create(&task).Error; err != nil {
				return fmt.Errorf("create task %q: %w", pt.Name, err)
			}
			ids.tasks = append(ids.tasks, task.ID)
			byName[nameKey(pt.Name)] = task.ID
			if len(pt.Dependencies) > 0 {
				withDeps = append(withDeps, pending{id: task.ID, deps: pt.Dependencies})
			}

			for si, ps := range pt.Subtasks {
				sub := models.Subtask{
					ID:          uuid.NewString(),
					TaskID:      task.ID,
					Name:        ps.Name,
					Description: ps.Description,
					Status:      statusOr(ps.Status),
					Order:       si,
				}
				if err := db.Create(&sub).Error; err != nil {
					return fmt.Errorf("create subtask %q: %w", ps.Name, err)
				}
			}
		}
	}

	// dependencies are resolved once every task name is known; names
	// that match no task are dropped
	for _, p := range withDeps {
		resolved := []string{}
		for _, name := range p.deps {
			id, ok := byName[nameKey(name)]
			if !ok || id == p.id {
				continue
			}
			resolved = append(resolved, id)
		}
		if len(resolved) == 0 {
			continue
		}
		err := db.Model(&models.Task{ID: p.id}).
			Select("DependencyIDs").
			Updates(&models.Task{DependencyIDs: resolved}).Error
		if err != nil {
			return fmt.Errorf("link task dependencies: %w", err)
		}
	}
	return nil
}

// cleanup removes a partially materialized project. Errors are logged only.
func (m *Materializer) cleanup(db *gorm.DB, ids createdIDs) {
	steps := []struct {
		what string
		run  func() error
	}{
		{"subtasks", func() error {
			if len(ids.tasks) == 0 {
				return nil
			}
			return db.Where("task_id IN ?", ids.tasks).Delete(&models.Subtask{}).Error
		}},
		{"tasks", func() error { return db.Where("project_id = ?", ids.project).Delete(&models.Task{}).Error }},
		{"milestones", func() error { return db.Where("project_id = ?", ids.project).Delete(&models.Milestone{}).Error }},
		{"project", func() error { return db.Where("id = ?", ids.project).Delete(&models.Project{}).Error }},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			m.logger.Warn("materialize cleanup failed",
				zap.String("project_id", ids.project), zap.String("step", s.what), zap.Error(err))
		}
	}
}

// uniqueName appends " (n)" until the owner has no project called name.
func uniqueName(db *gorm.DB, ownerID, name string) (string, error) {
	candidate := name
	for n := 2; ; n++ {
		var count int64
		err := db.Model(&models.Project{}).
			Where("owner_id = ? AND name = ?", ownerID, candidate).
			Count(&count).Error
		if err != nil {
			return "", fmt.Errorf("check project name: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s (%d)", name, n)
	}
}

func nameKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func statusOr(s models.WorkStatus) models.WorkStatus {
	if s.Valid() {
		return s
	}
	return models.StatusNotStarted
}

func priorityOr(p models.TaskPriority) models.TaskPriority {
	if p.Valid() {
		return p
	}
	return models.PriorityMedium
}

func toJSON(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil || string(raw) == "null" {
		return nil
	}
	return datatypes.JSON(raw)
}
