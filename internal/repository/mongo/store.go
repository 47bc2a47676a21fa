// Package mongorepo keeps ledger entries as documents {_id: key, value}
// and runs every unit of work in a snapshot transaction.
package mongorepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirinyoku/tix-ledger/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	defaultMaxRetries = 5
	collectionName    = "ledger_entries"

	codeNamespaceExists = 48

	labelTransient     = "TransientTransactionError"
	labelUnknownCommit = "UnknownTransactionCommitResult"
)

type Store struct {
	client     *mongo.Client
	coll       *mongo.Collection
	maxRetries int
}

type entry struct {
	Key   string `bson:"_id"`
	Value []byte `bson:"value"`
}

// Open prepares the ledger collection in db. Transactions cannot create
// collections on older servers, so it is created up front.
func Open(ctx context.Context, client *mongo.Client, db string, maxRetries int) (*Store, error) {
	const op = "mongorepo.Open"

	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	database := client.Database(db)
	if err := database.CreateCollection(ctx, collectionName); err != nil {
		var ce mongo.CommandError
		if !errors.As(err, &ce) || ce.Code != codeNamespaceExists {
			return nil, fmt.Errorf("%s: create collection: %w", op, err)
		}
	}

	return &Store{
		client:     client,
		coll:       database.Collection(collectionName),
		maxRetries: maxRetries,
	}, nil
}

func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.run(ctx, true, fn)
}

// Close is a no-op: the client is owned by the caller.
func (s *Store) Close() error { return nil }

func (s *Store) run(
	ctx context.Context,
	readOnly bool,
	fn func(ctx context.Context, tx repository.Tx) error,
) error {
	const op = "mongorepo.Store.run"

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	defer sess.EndSession(context.Background())

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err = mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
			if err := sess.StartTransaction(txnOpts); err != nil {
				return err
			}

			if err := fn(sc, &kvTx{coll: s.coll, readOnly: readOnly}); err != nil {
				_ = sess.AbortTransaction(context.Background())
				return err
			}

			return commit(sc, sess)
		})
		if err == nil || !hasLabel(err, labelTransient) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}

	return fmt.Errorf("%s:%w: %v", op, repository.ErrTxConflict, err)
}

// commit retries only the commit when its outcome is unknown; the
// transaction body must not run twice in that case.
func commit(ctx context.Context, sess mongo.Session) error {
	var err error
	for i := 0; i < 3; i++ {
		err = sess.CommitTransaction(ctx)
		if err == nil || !hasLabel(err, labelUnknownCommit) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func hasLabel(err error, label string) bool {
	var le mongo.LabeledError
	return errors.As(err, &le) && le.HasErrorLabel(label)
}

type kvTx struct {
	coll     *mongo.Collection
	readOnly bool
}

func (t *kvTx) Get(ctx context.Context, key repository.Key) ([]byte, bool, error) {
	const op = "mongorepo.kvTx.Get"

	var e entry
	err := t.coll.FindOne(ctx, bson.M{"_id": string(key)}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s:%w", op, err)
	}

	return e.Value, true, nil
}

func (t *kvTx) Has(ctx context.Context, key repository.Key) (bool, error) {
	const op = "mongorepo.kvTx.Has"

	n, err := t.coll.CountDocuments(ctx, bson.M{"_id": string(key)}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	return n > 0, nil
}

func (t *kvTx) Set(ctx context.Context, key repository.Key, value []byte) error {
	const op = "mongorepo.kvTx.Set"

	if t.readOnly {
		return fmt.Errorf("%s:%w", op, repository.ErrReadOnly)
	}

	_, err := t.coll.UpdateOne(ctx,
		bson.M{"_id": string(key)},
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
