package ordering

import (
	"math/rand"
	"testing"

	"projectron-api/internal/models"
	"projectron-api/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func insertMilestone(t *testing.T, db *gorm.DB, projectID, name string, pos *int) string {
	t.Helper()
	id := uuid.NewString()
	err := db.Transaction(func(tx *gorm.DB) error {
		order, err := Insert(tx, Milestones(projectID), pos)
		if err != nil {
			return err
		}
		return tx.Create(&models.Milestone{ID: id, ProjectID: projectID, Name: name, Order: order}).Error
	})
	require.NoError(t, err)
	return id
}

func deleteMilestone(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	err := db.Transaction(func(tx *gorm.DB) error {
		var m models.Milestone
		if err := tx.First(&m, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&m).Error; err != nil {
			return err
		}
		return CloseGap(tx, Milestones(m.ProjectID), m.Order)
	})
	require.NoError(t, err)
}

func orderOf(t *testing.T, db *gorm.DB, id string) int {
	t.Helper()
	var m models.Milestone
	require.NoError(t, db.First(&m, "id = ?", id).Error)
	return m.Order
}

func requireDense(t *testing.T, db *gorm.DB, s Scope) {
	t.Helper()
	orders, err := Orders(db, s)
	require.NoError(t, err)
	for i, o := range orders {
		require.Equal(t, i, o, "orders %v are not dense", orders)
	}
}

func TestInsertAtFrontThenDelete(t *testing.T) {
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	m1 := insertMilestone(t, db, "p1", "M1", nil)
	m2 := insertMilestone(t, db, "p1", "M2", nil)
	zero := 0
	m3 := insertMilestone(t, db, "p1", "M3", &zero)

	require.Equal(t, 0, orderOf(t, db, m3))
	require.Equal(t, 1, orderOf(t, db, m1))
	require.Equal(t, 2, orderOf(t, db, m2))

	deleteMilestone(t, db, m1)
	require.Equal(t, 0, orderOf(t, db, m3))
	require.Equal(t, 1, orderOf(t, db, m2))
	requireDense(t, db, Milestones("p1"))
}

func TestInsertClampsPosition(t *testing.T) {
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	far := 42
	a := insertMilestone(t, db, "p1", "A", &far)
	neg := -7
	b := insertMilestone(t, db, "p1", "B", &neg)
	c := insertMilestone(t, db, "p1", "C", &far)

	require.Equal(t, 1, orderOf(t, db, a))
	require.Equal(t, 0, orderOf(t, db, b))
	require.Equal(t, 2, orderOf(t, db, c))
}

func TestMoveBothDirections(t *testing.T) {
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	ids := make([]string, 5)
	for i := range ids {
		ids[i] = insertMilestone(t, db, "p1", string(rune('A'+i)), nil)
	}
	s := Milestones("p1")

	// A B C D E -> move D to 1 -> A D B C E
	got, err := Move(db, s, ids[3], 1)
	require.NoError(t, err)
	require.Equal(t, 1, got)
	require.Equal(t, []int{0, 2, 3, 1, 4}, []int{
		orderOf(t, db, ids[0]), orderOf(t, db, ids[1]), orderOf(t, db, ids[2]),
		orderOf(t, db, ids[3]), orderOf(t, db, ids[4]),
	})

	// move A past the end, clamped to 4 -> D B C E A
	got, err = Move(db, s, ids[0], 99)
	require.NoError(t, err)
	require.Equal(t, 4, got)
	require.Equal(t, 0, orderOf(t, db, ids[3]))
	require.Equal(t, 4, orderOf(t, db, ids[0]))
	requireDense(t, db, s)
}

func TestMoveToSamePositionIsNoop(t *testing.T) {
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	ids := []string{
		insertMilestone(t, db, "p1", "A", nil),
		insertMilestone(t, db, "p1", "B", nil),
		insertMilestone(t, db, "p1", "C", nil),
	}
	before, err := Orders(db, Milestones("p1"))
	require.NoError(t, err)

	got, err := Move(db, Milestones("p1"), ids[1], 1)
	require.NoError(t, err)
	require.Equal(t, 1, got)

	after, err := Orders(db, Milestones("p1"))
	require.NoError(t, err)
	require.Equal(t, before, after)
	for i, id := range ids {
		require.Equal(t, i, orderOf(t, db, id))
	}
}

func TestMoveUnknownSibling(t *testing.T) {
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	insertMilestone(t, db, "p1", "A", nil)

	_, err = Move(db, Milestones("p1"), "missing", 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestScopesAreIndependent(t *testing.T) {
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	insertMilestone(t, db, "p1", "A", nil)
	insertMilestone(t, db, "p2", "X", nil)
	zero := 0
	insertMilestone(t, db, "p1", "B", &zero)

	orders, err := Orders(db, Milestones("p2"))
	require.NoError(t, err)
	require.Equal(t, []int{0}, orders)
	requireDense(t, db, Milestones("p1"))
}

func TestRandomOperationsKeepOrdersDense(t *testing.T) {
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	s := Milestones("p1")
	var live []string

	for step := 0; step < 120; step++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(live) < 2:
			pos := rng.Intn(len(live)+3) - 1
			live = append(live, insertMilestone(t, db, "p1", "m", &pos))
		case op == 1:
			id := live[rng.Intn(len(live))]
			_, err := Move(db, s, id, rng.Intn(len(live)+2)-1)
			require.NoError(t, err)
		default:
			i := rng.Intn(len(live))
			deleteMilestone(t, db, live[i])
			live = append(live[:i], live[i+1:]...)
		}
		requireDense(t, db, s)
	}

	orders, err := Orders(db, s)
	require.NoError(t, err)
	require.Len(t, orders, len(live))
}
