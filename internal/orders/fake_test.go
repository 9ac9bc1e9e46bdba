package orders

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/internal/payments"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
)

type fakePayments struct {
	mu           sync.Mutex
	sessions     map[string]*payments.Confirmation
	intents      map[string]payments.IntentResult
	sessionCalls int
	intentCalls  int
}

func (f *fakePayments) ConfirmSession(ctx context.Context, sessionID string) (*payments.Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionCalls++
	conf, ok := f.sessions[sessionID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment session not found")
	}
	cp := *conf
	return &cp, nil
}

func (f *fakePayments) ConfirmIntent(ctx context.Context, paymentID string) (*payments.IntentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intentCalls++
	res, ok := f.intents[paymentID]
	if !ok {
		return nil, errors.New("stripe unavailable")
	}
	if res.ID == "" {
		res.ID = paymentID
	}
	return &res, nil
}

type fakeCart struct {
	cleared []uint64
}

func (f *fakeCart) Clear(ctx context.Context, userID uint64) (int64, error) {
	f.cleared = append(f.cleared, userID)
	return 1, nil
}

type fakeProducts map[uint64]models.Product

func (p fakeProducts) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]models.Product, error) {
	out := map[uint64]models.Product{}
	for _, id := range ids {
		if product, ok := p[id]; ok {
			out[id] = product
		}
	}
	return out, nil
}

// staleSessionRepo hides existing session rows from the first lookups, the way a
// concurrent request sees the table before the winner commits.
type staleSessionRepo struct {
	Repository
	misses int
}

func (r *staleSessionRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	if r.misses > 0 {
		r.misses--
		return nil, gorm.ErrRecordNotFound
	}
	return r.Repository.FindBySessionID(ctx, sessionID)
}

// failingLinesRepo writes the order row and then fails, inside the caller's transaction.
type failingLinesRepo struct {
	Repository
}

func (r failingLinesRepo) WithTx(tx *gorm.DB) Repository {
	return failingLinesRepo{Repository: r.Repository.WithTx(tx)}
}

func (r failingLinesRepo) Create(ctx context.Context, order *models.Order) error {
	if err := r.Repository.Create(ctx, order); err != nil {
		return err
	}
	return errors.New("order_items insert failed")
}
