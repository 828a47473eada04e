// Package ordering keeps the sort_order column of a sibling set dense:
// after every operation the orders are exactly 0..count-1.
//
// Every function takes the transaction the caller runs the whole
// operation in; shifts touch one row at a time so the (parent, order)
// unique index never sees a duplicate.
package ordering

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("sibling not found")

// parked is the out-of-range order a row holds while it is being moved.
const parked = -1

// Scope identifies one sibling set, e.g. the milestones of a project.
type Scope struct {
	Table  string
	Parent string
	ID     string
}

func Milestones(projectID string) Scope {
	return Scope{Table: "milestones", Parent: "project_id", ID: projectID}
}

func Tasks(milestoneID string) Scope {
	return Scope{Table: "tasks", Parent: "milestone_id", ID: milestoneID}
}

func Subtasks(taskID string) Scope {
	return Scope{Table: "subtasks", Parent: "task_id", ID: taskID}
}

type sibling struct {
	ID        string
	SortOrder int
}

func (s Scope) siblings(tx *gorm.DB) *gorm.DB {
	return tx.Table(s.Table).Where(s.Parent+" = ?", s.ID)
}

// MaxOrder returns the highest order in the scope, or -1 when it is empty.
func MaxOrder(tx *gorm.DB, s Scope) (int, error) {
	var max *int
	row := s.siblings(tx).Select("MAX(sort_order)").Row()
	if err := row.Scan(&max); err != nil {
		return 0, fmt.Errorf("max order of %s: %w", s.Table, err)
	}
	if max == nil {
		return -1, nil
	}
	return *max, nil
}

// Orders lists the orders of the scope ascending.
func Orders(tx *gorm.DB, s Scope) ([]int, error) {
	var out []int
	err := s.siblings(tx).Order("sort_order ASC").Pluck("sort_order", &out).Error
	return out, err
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// shift adds delta to every sibling matching cond, visiting rows in the
// order that keeps the unique index satisfied after each single update.
func shift(tx *gorm.DB, s Scope, delta int, cond string, args ...any) error {
	direction := "sort_order ASC"
	if delta > 0 {
		direction = "sort_order DESC"
	}

	var rows []sibling
	err := s.siblings(tx).
		Select("id, sort_order").
		Where(cond, args...).
		Order(direction).
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("load %s siblings: %w", s.Table, err)
	}

	for _, r := range rows {
		if err := setOrder(tx, s, r.ID, r.SortOrder+delta); err != nil {
			return err
		}
	}
	return nil
}

func setOrder(tx *gorm.DB, s Scope, id string, order int) error {
	err := tx.Table(s.Table).Where("id = ?", id).Update("sort_order", order).Error
	if err != nil {
		return fmt.Errorf("reorder %s %s: %w", s.Table, id, err)
	}
	return nil
}

// Insert opens a slot at position (nil means append) and returns the order
// the new row must be created with. Out-of-range positions are clamped.
func Insert(tx *gorm.DB, s Scope, position *int) (int, error) {
	max, err := MaxOrder(tx, s)
	if err != nil {
		return 0, err
	}

	target := max + 1
	if position != nil {
		target = clamp(*position, 0, max+1)
	}

	if err := shift(tx, s, 1, "sort_order >= ?", target); err != nil {
		return 0, err
	}
	return target, nil
}

// Move relocates the sibling id to position, clamped to the current range.
// It returns the final order.
func Move(tx *gorm.DB, s Scope, id string, position int) (int, error) {
	var cur sibling
	err := s.siblings(tx).Select("id, sort_order").Where("id = ?", id).Take(&cur).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%s %s: %w", s.Table, id, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}

	max, err := MaxOrder(tx, s)
	if err != nil {
		return 0, err
	}
	target := clamp(position, 0, max)
	from := cur.SortOrder
	if target == from {
		return from, nil
	}

	if err := setOrder(tx, s, id, parked); err != nil {
		return 0, err
	}

	if target < from {
		err = shift(tx, s, 1, "sort_order >= ? AND sort_order < ?", target, from)
	} else {
		err = shift(tx, s, -1, "sort_order > ? AND sort_order <= ?", from, target)
	}
	if err != nil {
		return 0, err
	}

	if err := setOrder(tx, s, id, target); err != nil {
		return 0, err
	}
	return target, nil
}

// CloseGap pulls every sibling after a removed order down by one.
// Call it after the row at order has been deleted.
func CloseGap(tx *gorm.DB, s Scope, order int) error {
	return shift(tx, s, -1, "sort_order > ?", order)
}
