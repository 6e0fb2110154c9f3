package models

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

func (mdb *MongodbRepo) Transactional() bool {
	return mdb.transactions
}

// WithTransaction runs fn inside a multi-document transaction when transactions
// are enabled (replica set or sharded cluster). Otherwise fn runs directly and
// the caller is responsible for compensating partial writes.
func (mdb *MongodbRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !mdb.transactions {
		return fn(ctx)
	}
	if mdb.mongodbClient == nil {
		return fmt.Errorf("mongodb client is not initialized")
	}

	session, err := mdb.mongodbClient.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
