package configurator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// VariantSelector returns the candidate variant when the form already names one and
// creates it otherwise. Concurrent creations of the same combination share one call.
type VariantSelector struct {
	creator VariantCreator
	group   singleflight.Group
}

func NewVariantSelector(creator VariantCreator) (*VariantSelector, error) {
	if creator == nil {
		return nil, fmt.Errorf("variant creator required")
	}
	return &VariantSelector{creator: creator}, nil
}

func (s *VariantSelector) SelectOrCreate(ctx context.Context, req SelectRequest) (int64, error) {
	if req.CandidateID > 0 {
		return req.CandidateID, nil
	}
	if req.TemplateID <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "product template is required to create a variant")
	}
	value, err, _ := s.group.Do(combinationKey(req.TemplateID, req.Combination), func() (any, error) {
		return s.creator.CreateProductVariant(ctx, req.TemplateID, req.Combination)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return 0, err
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product variant")
	}
	id := value.(int64)
	if id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "backend returned no variant for the combination")
	}
	return id, nil
}

func combinationKey(templateID int64, combination []int64) string {
	parts := make([]string, 0, len(combination))
	for _, id := range combination {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strconv.FormatInt(templateID, 10) + ":" + strings.Join(parts, ",")
}

// LocalLocker keeps line locks in process memory. Used when redis is disabled.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]struct{}{}}
}

func (l *LocalLocker) Lock(ctx context.Context, orderID, lineID int64) (LineLock, error) {
	key := fmt.Sprintf("%d:%d", orderID, lineID)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order line %d is locked", lineID))
	}
	l.held[key] = struct{}{}
	return &localLock{owner: l, key: key}, nil
}

type localLock struct {
	owner *LocalLocker
	key   string
	once  sync.Once
}

// Refresh is a no-op: local locks do not expire.
func (l *localLock) Refresh(ctx context.Context) error {
	return nil
}

func (l *localLock) Release(ctx context.Context) error {
	l.once.Do(func() {
		l.owner.mu.Lock()
		delete(l.owner.held, l.key)
		l.owner.mu.Unlock()
	})
	return nil
}
