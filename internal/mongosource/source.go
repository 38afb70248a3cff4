// SPDX-License-Identifier: Apache-2.0

// Package mongosource is the thin adapter between a live document store connection and
// the rest of the driver: it turns a collection into the document.Stream the Inference
// Engine consumes, and executes a translated translate.Context against it. Read-only: no
// insert/update/delete path is exposed here, per the Non-goals.
package mongosource

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/otel/trace"

	"github.com/docbridge/docbridge/internal/config"
	"github.com/docbridge/docbridge/internal/dbrerr"
	"github.com/docbridge/docbridge/internal/document"
	"github.com/docbridge/docbridge/internal/pipeline"
	"github.com/docbridge/docbridge/internal/translate"
)

// Source wraps one live connection. It is read-only over one database.
type Source struct {
	client   *mongo.Client
	database string
	tracer   trace.Tracer
}

// Connect dials the document store described by p and verifies the connection, the way
// the teacher's source Initialize does.
func Connect(ctx context.Context, p config.Properties, tracer trace.Tracer) (*Source, error) {
	opts := options.Client().ApplyURI(p.ConnectionURI()).SetAppName(p.AppName).SetRetryReads(p.RetryReads)
	if rp, err := readPreference(p); err == nil {
		opts.SetReadPreference(rp)
	}
	if p.ReplicaSet != "" {
		opts.SetReplicaSet(p.ReplicaSet)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, dbrerr.New(dbrerr.KindConnection, "connect to document store", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, dbrerr.New(dbrerr.KindConnection, "ping document store", err)
	}

	return &Source{client: client, database: p.Database, tracer: tracer}, nil
}

func readPreference(p config.Properties) (*readpref.ReadPref, error) {
	switch p.ReadPreference {
	case config.ReadPrimary:
		return readpref.Primary(), nil
	case config.ReadPrimaryPreferred:
		return readpref.PrimaryPreferred(), nil
	case config.ReadSecondary:
		return readpref.Secondary(), nil
	case config.ReadSecondaryPreferred:
		return readpref.SecondaryPreferred(), nil
	case config.ReadNearest:
		return readpref.Nearest(), nil
	default:
		return nil, fmt.Errorf("unknown read preference %q", p.ReadPreference)
	}
}

// Disconnect closes the underlying client.
func (s *Source) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Collection returns the live *mongo.Collection for name, for callers that need direct
// driver access (e.g. Stream's sampling cursors and Execute's aggregations).
func (s *Source) Collection(name string) *mongo.Collection {
	return s.client.Database(s.database).Collection(name)
}

// Execute runs a translated pipeline against collection and decodes every result
// document into the driver's own document.Document tree (§4.1's ingestion shape), so
// callers of Translate and callers of Generate share one decoding path. When tc carries
// a non-empty Union pipeline, both pipelines run and their results are concatenated in
// order; translate.Translate itself never fills Union.
func (s *Source) Execute(ctx context.Context, tc *translate.Context) ([]document.Document, error) {
	docs, err := s.run(ctx, tc.CollectionName, tc.Stages)
	if err != nil {
		return nil, err
	}
	if len(tc.Union) == 0 {
		return docs, nil
	}
	more, err := s.run(ctx, tc.CollectionName, tc.Union)
	if err != nil {
		return nil, err
	}
	return append(docs, more...), nil
}

func (s *Source) run(ctx context.Context, collection string, stages []pipeline.Stage) ([]document.Document, error) {
	wire, err := pipeline.Encode(stages)
	if err != nil {
		return nil, dbrerr.New(dbrerr.KindUnsupportedSQL, "encode pipeline", err)
	}

	cur, err := s.Collection(collection).Aggregate(ctx, wire)
	if err != nil {
		return nil, dbrerr.New(dbrerr.KindConnection, "run aggregation pipeline", err)
	}
	defer cur.Close(ctx)

	var out []document.Document
	for cur.Next(ctx) {
		doc, err := document.DecodeDocument(cur.Current)
		if err != nil {
			return nil, dbrerr.New(dbrerr.KindIO, "decode aggregation result", err)
		}
		out = append(out, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, dbrerr.New(dbrerr.KindConnection, "iterate aggregation results", err)
	}
	return out, nil
}
