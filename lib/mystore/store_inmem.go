package mystore

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"
)

type inMemoryStore[T any] struct {
	sync.Mutex
	items map[string]T
}

func newInMemoryStore[T any](c context.Context) (*inMemoryStore[T], func(), error) {
	return &inMemoryStore[T]{
		items: make(map[string]T),
	}, func() {}, nil
}

func (s *inMemoryStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	// Start transaction
	s.Lock()

	ctx := context.WithValue(c, ctxTransactionKey{}, true)

	// Within this block everything is transactional
	err := f(ctx)
	if err != nil {
		// Rollback
		s.Unlock()

		return err
	}

	// Commit
	s.Unlock()

	return nil
}

func (s *inMemoryStore[T]) Put(c context.Context, uid string, value T) error {
	nonTransactional := c.Value(ctxTransactionKey{}) == nil

	if nonTransactional {
		s.Lock()
		defer s.Unlock()
	}

	s.items[uid] = value

	return nil
}

func (s *inMemoryStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	nonTransactional := c.Value(ctxTransactionKey{}) == nil

	if nonTransactional {
		s.Lock()
		defer s.Unlock()
	}

	result, exists := s.items[uid]

	return result, exists, nil
}

func (s *inMemoryStore[T]) List(c context.Context) ([]T, error) {
	nonTransactional := c.Value(ctxTransactionKey{}) == nil

	if nonTransactional {
		s.Lock()
		defer s.Unlock()
	}

	result := make([]T, 0, len(s.items))
	for _, v := range s.items {
		result = append(result, v)
	}

	return result, nil
}

// Query filters and orders in memory so that tests observe the same
// behavior as the datastore-backed implementation
func (s *inMemoryStore[T]) Query(c context.Context, filters []Filter, orderByField string) ([]T, error) {
	all, err := s.List(c)
	if err != nil {
		return nil, err
	}

	result := make([]T, 0, len(all))
	for _, item := range all {
		if matchesFilters(item, filters) {
			result = append(result, item)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return lessOnField(result[i], result[j], orderByField)
	})

	return result, nil
}

func matchesFilters[T any](item T, filters []Filter) bool {
	for _, f := range filters {
		fieldValue, found := fieldByName(item, f.Field)
		if !found {
			return false
		}

		// only equality is used within this codebase
		if f.Compare == "=" && !reflect.DeepEqual(fieldValue, f.Value) {
			return false
		}
	}

	return true
}

func lessOnField[T any](a, b T, fieldName string) bool {
	left, foundLeft := fieldByName(a, fieldName)
	right, foundRight := fieldByName(b, fieldName)
	if !foundLeft || !foundRight {
		return false
	}

	switch l := left.(type) {
	case string:
		r, _ := right.(string)
		return l < r
	case int:
		r, _ := right.(int)
		return l < r
	case time.Time:
		r, _ := right.(time.Time)
		return l.Before(r)
	default:
		return false
	}
}

func fieldByName[T any](item T, fieldName string) (any, bool) {
	v := reflect.ValueOf(item)
	if v.Kind() != reflect.Struct {
		return nil, false
	}

	f := v.FieldByName(fieldName)
	if !f.IsValid() {
		return nil, false
	}

	return f.Interface(), true
}
