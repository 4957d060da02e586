// Package txn runs multi-document writes inside a MongoDB transaction.
//
// Transactions need a replica set or sharded cluster. Against a standalone
// server (typical for local development) Run logs a warning and executes the
// function without a transaction.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"
)

// Run executes fn in a transaction with snapshot reads and majority writes.
// fn must use the ctx it is given so its operations join the session.
// Errors returned by fn abort the transaction and are returned unchanged.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			warnFallback(log, err)
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, opts)
	if err != nil && IsNotSupported(err) {
		warnFallback(log, err)
		return fn(ctx)
	}
	return err
}

func warnFallback(log *zap.Logger, err error) {
	if log == nil {
		return
	}
	log.Warn("transactions not supported; running without transaction", zap.Error(err))
}

// IsNotSupported reports whether err means the deployment cannot run
// transactions (standalone server, unsupported session state).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, // IllegalOperation: transaction numbers need a replica set
			51,  // legacy illegal operation
			263: // OperationNotSupportedInTransaction
			return true
		}
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "transaction") && strings.Contains(s, "replica set"):
		return true
	case strings.Contains(s, "session") && strings.Contains(s, "not supported"):
		return true
	case strings.Contains(s, "transaction") && strings.Contains(s, "session"):
		return true
	case strings.Contains(s, "illegal operation"):
		return true
	}
	return false
}
