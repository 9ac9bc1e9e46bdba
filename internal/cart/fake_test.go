package cart

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/pkg/db/models"
)

// memRepo is an in-memory Repository used to exercise the engine without a database.
type memRepo struct {
	mu     sync.Mutex
	nextID uint64
	clock  time.Time
	items  map[uint64]*models.CartItem
}

func newMemRepo() *memRepo {
	return &memRepo{
		items: map[uint64]*models.CartItem{},
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memRepo) Find(ctx context.Context, userID, productID uint64) (*models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.UserID == userID && item.ProductID == productID {
			cp := *item
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRepo) ListByUser(ctx context.Context, userID uint64) ([]models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CartItem
	for _, item := range m.items {
		if item.UserID == userID {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memRepo) MaxPosition(ctx context.Context, userID uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	maxPos := 0
	for _, item := range m.items {
		if item.UserID == userID && item.Position > maxPos {
			maxPos = item.Position
		}
	}
	return maxPos, nil
}

func (m *memRepo) Create(ctx context.Context, item *models.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.items {
		if existing.UserID == item.UserID && existing.ProductID == item.ProductID {
			return gorm.ErrDuplicatedKey
		}
	}
	m.nextID++
	now := m.tick()
	item.ID = m.nextID
	item.CreatedAt = now
	item.UpdatedAt = now
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *memRepo) UpdateLine(ctx context.Context, id uint64, quantity, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	item.Quantity = quantity
	item.Position = position
	item.UpdatedAt = m.tick()
	return nil
}

func (m *memRepo) Delete(ctx context.Context, userID, productID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, item := range m.items {
		if item.UserID == userID && item.ProductID == productID {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *memRepo) DeleteAll(ctx context.Context, userID uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, item := range m.items {
		if item.UserID == userID {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

// quantities returns product id -> quantity for a user.
func (m *memRepo) quantities(userID uint64) map[uint64]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[uint64]int{}
	for _, item := range m.items {
		if item.UserID == userID {
			out[item.ProductID] = item.Quantity
		}
	}
	return out
}

type memProducts map[uint64]models.Product

func (p memProducts) FindByID(ctx context.Context, id uint64) (*models.Product, error) {
	product, ok := p[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &product, nil
}

func (p memProducts) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]models.Product, error) {
	out := map[uint64]models.Product{}
	for _, id := range ids {
		if product, ok := p[id]; ok {
			out[id] = product
		}
	}
	return out, nil
}
