package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogotex/mongomodel/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// DefaultDatabase is used when neither the configuration nor the URI names one.
const DefaultDatabase = "mongomodel"

// ErrClosed is returned by a Pool after Close.
var ErrClosed = errors.New("database pool closed")

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri).SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// Hook runs once after the pool first connects.
type Hook func(ctx context.Context, db *mongo.Database) error

type conn struct {
	client *mongo.Client
	db     *mongo.Database
}

// Pool is the process-wide store handle. It connects on first use and shares
// one client afterwards. A failed connect is not remembered, so the next
// call tries again.
type Pool struct {
	uri     string
	dbName  string
	timeout time.Duration
	connect func(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error)

	mu     sync.Mutex
	cur    atomic.Pointer[conn]
	hooks  []Hook
	closed bool
}

// NewPool does not connect. database may be empty, in which case the URI's
// path or DefaultDatabase is used.
func NewPool(uri, database string, timeout time.Duration) *Pool {
	if database == "" {
		database = databaseFromURI(uri)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Pool{uri: uri, dbName: database, timeout: timeout, connect: ConnectMongo}
}

func databaseFromURI(uri string) string {
	cs, err := connstring.ParseAndValidate(uri)
	if err == nil && cs.Database != "" {
		return cs.Database
	}
	return DefaultDatabase
}

// DatabaseName is the database handed out by Database.
func (p *Pool) DatabaseName() string { return p.dbName }

// OnConnect registers h to run after the first successful connect. Hook
// errors are logged; they do not fail the connect.
func (p *Pool) OnConnect(h Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, h)
}

// Database returns the shared database handle, connecting if needed.
func (p *Pool) Database(ctx context.Context) (*mongo.Database, error) {
	c, err := p.get(ctx)
	if err != nil {
		return nil, err
	}
	return c.db, nil
}

// Client returns the shared client, connecting if needed.
func (p *Pool) Client(ctx context.Context) (*mongo.Client, error) {
	c, err := p.get(ctx)
	if err != nil {
		return nil, err
	}
	return c.client, nil
}

func (p *Pool) get(ctx context.Context) (*conn, error) {
	if c := p.cur.Load(); c != nil {
		return c, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if c := p.cur.Load(); c != nil {
		return c, nil
	}
	if p.closed {
		return nil, ErrClosed
	}
	client, err := p.connect(ctx, p.uri, p.timeout)
	if err != nil {
		logger.Errorf("mongo connection to database %q failed: %v", p.dbName, err)
		return nil, err
	}
	c := &conn{client: client, db: client.Database(p.dbName)}
	p.cur.Store(c)
	logger.Infof("connected to mongo database %q", p.dbName)

	for _, h := range p.hooks {
		if err := h(ctx, c.db); err != nil {
			logger.Errorf("on-connect hook for database %q failed: %v", p.dbName, err)
		}
	}
	return c, nil
}

// Connected reports whether a client is currently held.
func (p *Pool) Connected() bool { return p.cur.Load() != nil }

// Ping checks the server is reachable, connecting first if needed.
func (p *Pool) Ping(ctx context.Context) error {
	c, err := p.get(ctx)
	if err != nil {
		return err
	}
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the shared client. Later calls to Database fail with
// ErrClosed.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	c := p.cur.Swap(nil)
	if c == nil {
		return nil
	}
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo disconnect: %w", err)
	}
	return nil
}
