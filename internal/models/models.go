package models

// All lists every model handled by AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Project{},
		&Milestone{},
		&Task{},
		&Subtask{},
		&PlanProgress{},
		&Diagram{},
	}
}
