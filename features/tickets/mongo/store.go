// Package mongo implements the MongoDB-backed ticket store.
package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"

	"github.com/jimacampos/deskagent/features/tickets"
)

const (
	defaultCollection = "tickets"
	defaultTimeout    = 5 * time.Second
	storeName         = "tickets-mongo"

	// createAttempts bounds id-collision retries on insert.
	createAttempts = 5
)

// Options configures the Mongo-backed store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements tickets.Store on a single collection. The ticket code is
// the document _id, so inserts detect colliding codes atomically, and every
// mutation is a single-document atomic update.
type Store struct {
	mongo   *mongodriver.Client
	coll    collection
	timeout time.Duration
}

var (
	_ tickets.Store = (*Store)(nil)
	_ health.Pinger = (*Store)(nil)
)

// New returns a Store backed by the provided MongoDB client.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	coll := opts.Collection
	if coll == "" {
		coll = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	mcoll := opts.Client.Database(opts.Database).Collection(coll)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	wrapper := mongoCollection{coll: mcoll}
	if err := ensureIndexes(ctx, wrapper); err != nil {
		return nil, err
	}
	return newStoreWithCollection(opts.Client, wrapper, timeout)
}

// Name implements health.Pinger.
func (s *Store) Name() string {
	return storeName
}

// Ping implements health.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.mongo.Ping(ctx, readpref.Primary())
}

// Create validates the request and inserts a new open ticket, retrying the
// generated code on the rare collision.
func (s *Store) Create(ctx context.Context, nt tickets.NewTicket) (*tickets.Ticket, error) {
	nt, err := nt.Validate()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	for i := 0; i < createAttempts; i++ {
		doc := ticketDocument{
			ID:          tickets.NewID(),
			Email:       nt.Email,
			EmailLC:     strings.ToLower(nt.Email),
			Description: nt.Description,
			Status:      string(tickets.StatusOpen),
			Priority:    nt.Priority,
			CreatedAt:   now,
		}
		_, err := s.coll.InsertOne(ctx, doc)
		if err == nil {
			return fromDocument(doc), nil
		}
		if !mongodriver.IsDuplicateKeyError(err) {
			return nil, err
		}
	}
	return nil, errors.New("could not allocate a unique ticket id")
}

// Get returns the ticket with the given id, or tickets.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*tickets.Ticket, error) {
	if id == "" {
		return nil, errors.New("ticket id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc ticketDocument
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, tickets.ErrNotFound
		}
		return nil, err
	}
	return fromDocument(doc), nil
}

// AddComment appends a comment and returns the updated ticket.
func (s *Store) AddComment(ctx context.Context, id, comment string) (*tickets.Ticket, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, errors.New("comment is required")
	}
	return s.applyUpdate(ctx, id, bson.M{
		"$push": bson.M{"comments": comment},
	})
}

// SetPriority changes the priority, rejecting out-of-range values.
func (s *Store) SetPriority(ctx context.Context, id string, priority int) (*tickets.Ticket, error) {
	if priority < tickets.MinPriority || priority > tickets.MaxPriority {
		return nil, tickets.ErrInvalidPriority
	}
	return s.applyUpdate(ctx, id, bson.M{
		"$set": bson.M{"priority": priority},
	})
}

// Escalate marks the ticket escalated and appends the reason as its last
// comment.
func (s *Store) Escalate(ctx context.Context, id, reason string) (*tickets.Ticket, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errors.New("escalation reason is required")
	}
	return s.applyUpdate(ctx, id, bson.M{
		"$set":  bson.M{"status": string(tickets.StatusEscalated)},
		"$push": bson.M{"comments": reason},
	})
}

// ListByEmail returns the requester's tickets, newest first, capped at
// tickets.MaxListLimit.
func (s *Store) ListByEmail(ctx context.Context, email string, limit int) ([]*tickets.Ticket, error) {
	lower := strings.ToLower(strings.TrimSpace(email))
	if lower == "" {
		return nil, errors.New("email is required")
	}
	limit = tickets.ClampLimit(limit)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.coll.Find(ctx, bson.M{"email_lc": lower}, opts)
	if err != nil {
		return nil, err
	}
	var docs []ticketDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*tickets.Ticket, len(docs))
	for i, doc := range docs {
		out[i] = fromDocument(doc)
	}
	return out, nil
}

// applyUpdate runs a single-document atomic update and decodes the updated
// ticket.
func (s *Store) applyUpdate(ctx context.Context, id string, update bson.M) (*tickets.Ticket, error) {
	if id == "" {
		return nil, errors.New("ticket id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc ticketDocument
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, tickets.ErrNotFound
		}
		return nil, err
	}
	return fromDocument(doc), nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

type ticketDocument struct {
	ID          string    `bson:"_id"`
	Email       string    `bson:"email"`
	EmailLC     string    `bson:"email_lc"`
	Description string    `bson:"description"`
	Status      string    `bson:"status"`
	Priority    int       `bson:"priority"`
	Comments    []string  `bson:"comments,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}

func fromDocument(doc ticketDocument) *tickets.Ticket {
	return &tickets.Ticket{
		ID:          doc.ID,
		Email:       doc.Email,
		Description: doc.Description,
		Status:      tickets.Status(doc.Status),
		Priority:    doc.Priority,
		Comments:    append([]string(nil), doc.Comments...),
		CreatedAt:   doc.CreatedAt,
	}
}

func ensureIndexes(ctx context.Context, coll collection) error {
	index := mongodriver.IndexModel{
		Keys: bson.D{{Key: "email_lc", Value: 1}, {Key: "created_at", Value: -1}},
	}
	_, err := coll.Indexes().CreateOne(ctx, index)
	return err
}

func newStoreWithCollection(mongoClient *mongodriver.Client, coll collection, timeout time.Duration) (*Store, error) {
	if coll == nil {
		return nil, errors.New("collection is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{
		mongo:   mongoClient,
		coll:    coll,
		timeout: timeout,
	}, nil
}

type collection interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error)
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult
	FindOneAndUpdate(ctx context.Context, filter, update any, opts ...options.Lister[options.FindOneAndUpdateOptions]) singleResult
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type cursor interface {
	All(ctx context.Context, results any) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, document, opts...)
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	return mongoSingleResult{res: c.coll.FindOne(ctx, filter, opts...)}
}

func (c mongoCollection) FindOneAndUpdate(ctx context.Context, filter, update any, opts ...options.Lister[options.FindOneAndUpdateOptions]) singleResult {
	return mongoSingleResult{res: c.coll.FindOneAndUpdate(ctx, filter, update, opts...)}
}

func (c mongoCollection) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error) {
	cur, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return mongoCursor{cur: cur}, nil
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoSingleResult struct {
	res *mongodriver.SingleResult
}

func (r mongoSingleResult) Decode(val any) error {
	return r.res.Decode(val)
}

type mongoCursor struct {
	cur *mongodriver.Cursor
}

func (c mongoCursor) All(ctx context.Context, results any) error {
	return c.cur.All(ctx, results)
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}
