// Package audit records a best-effort, low-volume ledger of connect and
// disconnect events — never telemetry — to an external document store, for
// fleet-operations history. A Log with no configured connection string is
// a valid no-op: every write is silently dropped, and Connect logs once at
// debug level that the audit log is disabled.
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"robobridge/shared"
)

// Event names written to SessionAuditRecord.Event.
const (
	EventRobotConnect    = "robot_connect"
	EventRobotDisconnect = "robot_disconnect"
	EventUIConnect       = "ui_connect"
	EventUIDisconnect    = "ui_disconnect"
)

// Record is one connect/disconnect event, distinct from telemetry.
type Record struct {
	Event      string    `bson:"event"`
	UniqueKey  string    `bson:"unique_key"`
	Alias      string    `bson:"alias,omitempty"`
	RemoteAddr string    `bson:"remote_addr"`
	At         time.Time `bson:"at"`
}

// recordBufferSize bounds the fire-and-forget write queue; a full buffer
// drops the oldest pending record rather than exerting backpressure on the
// session that triggered the write.
const recordBufferSize = 256

// Log is the Session Audit Log. The Log that Connect returns for an empty
// URI, and a nil *Log, are safe to call every method on; they simply do
// nothing.
type Log struct {
	client     *mongo.Client
	collection *mongo.Collection
	records    chan Record
	cancel     context.CancelFunc
}

// Connect opens a MongoDB connection for the audit log when uri is
// non-empty; an empty uri returns a no-op Log and a nil error, matching the
// spec's "nil/unconfigured store is a valid no-op configuration" stance.
func Connect(ctx context.Context, uri, database string) (*Log, error) {
	if uri == "" {
		shared.DebugPrint("audit log disabled: no connection string configured")
		return &Log{}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, shared.MongoConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(shared.MongoMaxPoolSize).
		SetMinPoolSize(shared.MongoMinPoolSize)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	runCtx, runCancel := context.WithCancel(ctx)

	l := &Log{
		client:     client,
		collection: client.Database(database).Collection("session_audit"),
		records:    make(chan Record, recordBufferSize),
		cancel:     runCancel,
	}
	go l.run(runCtx)

	shared.DebugPrint("audit log connected to database %s", database)
	return l, nil
}

func (l *Log) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-l.records:
			writeCtx, cancel := context.WithTimeout(ctx, shared.MongoConnectTimeout)
			if _, err := l.collection.InsertOne(writeCtx, rec); err != nil {
				shared.DebugError(err)
			}
			cancel()
		}
	}
}

func (l *Log) enqueue(rec Record) {
	if l == nil || l.records == nil {
		return
	}
	select {
	case l.records <- rec:
	default:
		// Buffer full: drop the oldest pending record to make room rather
		// than block the caller.
		select {
		case <-l.records:
		default:
		}
		select {
		case l.records <- rec:
		default:
		}
	}
}

// RecordConnect enqueues a best-effort connect event. It never returns an
// error: failures are logged inside run() and otherwise swallowed.
func (l *Log) RecordConnect(event, uniqueKey, alias, remoteAddr string) {
	l.enqueue(Record{
		Event:      event,
		UniqueKey:  uniqueKey,
		Alias:      alias,
		RemoteAddr: remoteAddr,
		At:         time.Now(),
	})
}

// RecordDisconnect enqueues a best-effort disconnect event.
func (l *Log) RecordDisconnect(event, uniqueKey, alias, remoteAddr string) {
	l.enqueue(Record{
		Event:      event,
		UniqueKey:  uniqueKey,
		Alias:      alias,
		RemoteAddr: remoteAddr,
		At:         time.Now(),
	})
}

// Close disconnects the underlying client, if any.
func (l *Log) Close(ctx context.Context) {
	if l == nil || l.client == nil {
		return
	}
	if l.cancel != nil {
		l.cancel()
	}
	if err := l.client.Disconnect(ctx); err != nil {
		shared.DebugError(err)
	}
}
