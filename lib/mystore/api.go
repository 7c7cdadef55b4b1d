package mystore

import (
	"context"
	"os"
)

type ctxTransactionKey struct{}

type Filter struct {
	Field   string
	Compare string
	Value   any
}

type Store[T any] interface {
	RunInTransaction(c context.Context, f func(c context.Context) error) error
	Put(c context.Context, uid string, value T) error
	Get(c context.Context, uid string) (T, bool, error)
	List(c context.Context) ([]T, error)
	// Query only supports equality filters. Prefix orderByField with "-" for descending order.
	Query(c context.Context, filters []Filter, orderByField string) ([]T, error)
}

// New returns a datastore backed store when running in the cloud and an in-memory store otherwise.
// Stores created by New share transactions: a Put on one store inside RunInTransaction of another
// becomes part of that transaction.
func New[T any](c context.Context) (Store[T], func(), error) {
	if os.Getenv("GOOGLE_CLOUD_PROJECT") != "" {
		return newGcloudStore[T](c, os.Getenv("GOOGLE_CLOUD_PROJECT"))
	}

	return NewInMemoryStore[T](c)
}
