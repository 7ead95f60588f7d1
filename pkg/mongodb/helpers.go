package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Now returns the current time in UTC truncated to what BSON stores
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Page applies limit and offset to find options. Non-positive values are
// ignored.
func Page(opts *options.FindOptions, limit, offset int) *options.FindOptions {
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return opts
}

// IsDuplicateKey reports a unique index violation
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// isClientOutcome reports errors that say nothing about server health
func isClientOutcome(err error) bool {
	return err == nil ||
		errors.Is(err, mongo.ErrNoDocuments) ||
		errors.Is(err, context.Canceled) ||
		mongo.IsDuplicateKeyError(err)
}
