package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Document pairs a decoded entity with its document id.
type Document[T any] struct {
	ID   string
	Data T
}

// QueryBuilder narrows a collection query before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// Collection is typed read access to one Firestore collection. The ingestion
// engine only ever looks documents up or scans them; writes happen solely on
// the order lifecycle path, which talks to the client directly.
type Collection[T any] struct {
	provider *Provider
	name     string
}

// NewCollection binds a typed reader to the named collection.
func NewCollection[T any](provider *Provider, name string) *Collection[T] {
	return &Collection[T]{provider: provider, name: strings.TrimSpace(name)}
}

// Get fetches one document by id.
func (c *Collection[T]) Get(ctx context.Context, id string) (Document[T], error) {
	if strings.TrimSpace(id) == "" {
		return Document[T]{}, WrapError(c.op("get"), errors.New("firestore: document id is required"))
	}
	ref, err := c.ref(ctx)
	if err != nil {
		return Document[T]{}, err
	}

	snap, err := ref.Doc(id).Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(c.op("get"), err)
	}
	return decodeSnapshot[T](snap)
}

// Query runs a collection query, optionally narrowed by build, and decodes
// every matching document.
func (c *Collection[T]) Query(ctx context.Context, build QueryBuilder) ([]Document[T], error) {
	ref, err := c.ref(ctx)
	if err != nil {
		return nil, err
	}

	query := ref.Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var docs []Document[T]
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		doc, err := decodeSnapshot[T](snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func decodeSnapshot[T any](snap *firestore.DocumentSnapshot) (Document[T], error) {
	var data T
	if err := snap.DataTo(&data); err != nil {
		return Document[T]{}, fmt.Errorf("firestore: decode document %s: %w", snap.Ref.ID, err)
	}
	return Document[T]{ID: snap.Ref.ID, Data: data}, nil
}

func (c *Collection[T]) ref(ctx context.Context) (*firestore.CollectionRef, error) {
	if c == nil || c.provider == nil {
		return nil, WrapError(c.op("collection"), errors.New("firestore: provider is nil"))
	}
	if c.name == "" {
		return nil, WrapError(c.op("collection"), errors.New("firestore: collection name is required"))
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name), nil
}

func (c *Collection[T]) op(action string) string {
	name := "firestore"
	if c != nil && c.name != "" {
		name = c.name
	}
	return fmt.Sprintf("%s.%s", name, action)
}
