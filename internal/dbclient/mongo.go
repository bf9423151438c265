package dbclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mongoConnector implements Connector for MongoDB.
type mongoConnector struct {
	client *mongo.Client
	dbName string
}

// mongoQuery is the JSON structure queries against MongoDB are written in.
type mongoQuery struct {
	Collection string         `json:"collection"`
	Operation  string         `json:"operation,omitempty"` // find (default) | aggregate
	Filter     map[string]any `json:"filter,omitempty"`
	Projection map[string]any `json:"projection,omitempty"`
	Sort       map[string]any `json:"sort,omitempty"`
	Pipeline   []any          `json:"pipeline,omitempty"`
}

func newMongoConnector(cfg Config) (*mongoConnector, error) {
	var uri string
	if strings.HasPrefix(cfg.Host, "mongodb+srv://") || strings.HasPrefix(cfg.Host, "mongodb://") {
		uri = cfg.Host
		if cfg.Password != "" {
			// Atlas connection strings ship with a placeholder
			uri = strings.ReplaceAll(uri, "<password>", cfg.Password)
		}
	} else {
		port := cfg.Port
		if port == 0 {
			port = 27017
		}
		if cfg.Username != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.Username, cfg.Password, cfg.Host, port)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%d", cfg.Host, port)
		}
	}

	dbName := cfg.Database
	if dbName == "" {
		dbName = "test"
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &mongoConnector{client: client, dbName: dbName}, nil
}

func (m *mongoConnector) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

func (m *mongoConnector) Execute(ctx context.Context, query string, limit int) (*Result, error) {
	if limit <= 0 {
		limit = 100
	}

	var mq mongoQuery
	if err := json.Unmarshal([]byte(query), &mq); err != nil {
		return nil, fmt.Errorf("mongo queries must be JSON ({\"collection\": ..., \"filter\": ...}): %w", err)
	}
	if mq.Collection == "" {
		return nil, fmt.Errorf("mongo query names no collection")
	}

	coll := m.client.Database(m.dbName).Collection(mq.Collection)

	var cursor *mongo.Cursor
	var err error
	switch mq.Operation {
	case "", "find":
		filter := mq.Filter
		if filter == nil {
			filter = map[string]any{}
		}
		opts := options.Find().SetLimit(int64(limit))
		if mq.Projection != nil {
			opts = opts.SetProjection(mq.Projection)
		}
		if mq.Sort != nil {
			opts = opts.SetSort(mq.Sort)
		}
		cursor, err = coll.Find(ctx, filter, opts)
	case "aggregate":
		cursor, err = coll.Aggregate(ctx, mq.Pipeline)
	default:
		return nil, fmt.Errorf("unsupported mongo operation %q", mq.Operation)
	}
	if err != nil {
		return nil, fmt.Errorf("mongo %s: %w", mq.Operation, err)
	}
	defer cursor.Close(ctx)

	// bson.D preserves field order, so column order follows the documents
	var docs []bson.D
	for len(docs) < limit && cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}

	return docsToResult(docs), nil
}

// docsToResult flattens documents into a table: columns are the union of
// field names in first-seen order, missing fields are empty cells.
func docsToResult(docs []bson.D) *Result {
	var columns []string
	seen := map[string]int{}
	for _, doc := range docs {
		for _, elem := range doc {
			if _, ok := seen[elem.Key]; !ok {
				seen[elem.Key] = len(columns)
				columns = append(columns, elem.Key)
			}
		}
	}

	rows := make([][]string, 0, len(docs))
	for _, doc := range docs {
		row := make([]string, len(columns))
		for _, elem := range doc {
			row[seen[elem.Key]] = mongoValueText(elem.Value)
		}
		rows = append(rows, row)
	}
	return &Result{Columns: columns, Rows: rows}
}

func mongoValueText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bson.ObjectID:
		return x.Hex()
	case time.Time:
		return x.Format(time.RFC3339)
	case bson.D, bson.A, bson.M:
		raw, err := bson.MarshalExtJSON(bson.M{"v": x}, false, false)
		if err != nil {
			return fmt.Sprint(x)
		}
		// unwrap the {"v": ...} envelope
		s := string(raw)
		s = strings.TrimPrefix(s, `{"v":`)
		s = strings.TrimSuffix(s, `}`)
		return s
	default:
		return fmt.Sprint(x)
	}
}

func (m *mongoConnector) Introspect(ctx context.Context) ([]TableInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	names, err := m.client.Database(m.dbName).ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	tables := make([]TableInfo, 0, len(names))
	for _, name := range names {
		// sample one document for field names; collections are schemaless
		var doc bson.D
		err := m.client.Database(m.dbName).Collection(name).FindOne(ctx, bson.D{}).Decode(&doc)
		info := TableInfo{Name: name}
		if err == nil {
			for _, elem := range doc {
				info.Columns = append(info.Columns, elem.Key)
			}
		}
		tables = append(tables, info)
	}
	return tables, nil
}

func (m *mongoConnector) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
