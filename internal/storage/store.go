// Package storage persists the book's collections as whole JSON documents
// keyed by logical collection names. The core never performs partial writes;
// every mutation flushes the entire updated collection.
package storage

import "context"

// Logical collection names.
const (
	CollectionConfig        = "config"
	CollectionMembers       = "members"
	CollectionLoans         = "loans"
	CollectionContributions = "contributions"
	CollectionExpenses      = "expenses"
	CollectionTransactions  = "transactions"
	CollectionRefunds       = "refunds"
	CollectionActivities    = "activities"
	CollectionCashbox       = "cashbox"
)

// Collections lists every logical collection in flush order.
var Collections = []string{
	CollectionConfig,
	CollectionMembers,
	CollectionLoans,
	CollectionContributions,
	CollectionExpenses,
	CollectionTransactions,
	CollectionRefunds,
	CollectionActivities,
	CollectionCashbox,
}

// Store is the whole-collection key-value persistence contract. Get returns
// (nil, nil) for a collection that has never been written.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Set(ctx context.Context, name string, data []byte) error
	Clear(ctx context.Context) error
	Close() error
}
