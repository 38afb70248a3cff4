// SPDX-License-Identifier: Apache-2.0

package mongosource

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/docbridge/docbridge/internal/config"
	"github.com/docbridge/docbridge/internal/dbrerr"
	"github.com/docbridge/docbridge/internal/document"
)

// cursorStream adapts a live *mongo.Cursor to document.Stream, decoding one document at
// a time so the Inference Engine never needs the whole sample materialized at once.
type cursorStream struct {
	cur *mongo.Cursor
}

func (s *cursorStream) Next(ctx context.Context) (document.Document, bool, error) {
	if !s.cur.Next(ctx) {
		if err := s.cur.Err(); err != nil {
			return nil, false, dbrerr.New(dbrerr.KindIO, "iterate document sample", err)
		}
		return nil, false, nil
	}
	doc, err := document.DecodeDocument(s.cur.Current)
	if err != nil {
		return nil, false, dbrerr.New(dbrerr.KindIO, "decode sampled document", err)
	}
	return doc, true, nil
}

// Stream opens a sample of collection per p's scanMethod/scanLimit (§6.1), for schema
// generation to consume. Every method except scanMethod=all is bounded by scanLimit;
// scanMethod=all reads the whole collection.
func (s *Source) Stream(ctx context.Context, collection string, p config.Properties) (document.Stream, error) {
	coll := s.Collection(collection)

	var cur *mongo.Cursor
	var err error
	switch p.ScanMethod {
	case config.ScanRandom, "":
		cur, err = coll.Aggregate(ctx, bson.A{
			bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: p.ScanLimit}}}},
		})
	case config.ScanIDForward:
		cur, err = coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(int64(p.ScanLimit)))
	case config.ScanIDReverse:
		cur, err = coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(int64(p.ScanLimit)))
	case config.ScanAll:
		cur, err = coll.Find(ctx, bson.D{})
	default:
		return nil, fmt.Errorf("unknown scan method %q", p.ScanMethod)
	}
	if err != nil {
		return nil, dbrerr.New(dbrerr.KindConnection, "open document sample cursor", err)
	}

	return &cursorStream{cur: cur}, nil
}
