package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hera-erp/hera/internal/catalog"
	"github.com/hera-erp/hera/internal/lifecycle"
	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/smartcode"
	"github.com/hera-erp/hera/internal/store"
)

// DefaultMaxDepth bounds relationship cycle checks and hierarchy walks.
const DefaultMaxDepth = 32

// Recorder observes completed engine calls.
type Recorder interface {
	ObserveOperation(store, operation, status string, kind model.ErrorKind, d time.Duration)
}

// Engine is the universal CRUD/query façade over the six record stores.
//
// Every call runs the same pipeline: tenant scope is resolved first, smart
// codes are governed before anything is written, and the store work runs
// in one SQLite transaction. The result is always a *Result envelope.
//
// Thread-safety: Execute is safe for concurrent use. Writes serialize on
// the store's single connection.
type Engine struct {
	store    *store.Store
	governor *smartcode.Governor
	catalog  *catalog.Catalog
	machine  *lifecycle.Machine
	ids      IDGenerator
	clock    Clock
	logger   *zap.Logger
	recorder Recorder

	defaultLevel smartcode.Level
	maxDepth     int
	maxBatch     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator sets the record id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithClock sets the clock used for audit stamps. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithDefaultLevel sets the minimum governance level applied to every
// smart code. Catalog rules and request options can only raise it.
func WithDefaultLevel(l smartcode.Level) Option {
	return func(e *Engine) { e.defaultLevel = l }
}

// WithMaxDepth sets the graph traversal budget.
//
// Default: 32 (DefaultMaxDepth)
func WithMaxDepth(d int) Option {
	return func(e *Engine) { e.maxDepth = d }
}

// WithMaxBatchItems caps the number of items in one bulk call.
//
// Default: 1000 (DefaultMaxBatchItems)
func WithMaxBatchItems(n int) Option {
	return func(e *Engine) { e.maxBatch = n }
}

// WithLifecycle replaces the transaction state machine.
func WithLifecycle(m *lifecycle.Machine) Option {
	return func(e *Engine) { e.machine = m }
}

// New creates an Engine over s, governing smart codes with gov. The
// governance catalog is the governor's.
func New(s *store.Store, gov *smartcode.Governor, opts ...Option) *Engine {
	e := &Engine{
		store:        s,
		governor:     gov,
		catalog:      gov.Catalog(),
		machine:      lifecycle.Default(),
		ids:          UUIDv7Generator{},
		clock:        SystemClock{},
		logger:       zap.NewNop(),
		defaultLevel: smartcode.LevelSyntax,
		maxDepth:     DefaultMaxDepth,
		maxBatch:     DefaultMaxBatchItems,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the underlying store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Governor returns the smart code governor.
func (e *Engine) Governor() *smartcode.Governor {
	return e.governor
}

// outcome is what a handler produces.
type outcome struct {
	data any
	rows []any
	meta *Meta
}

// effects collects post-commit work shared by every item of one call.
type effects struct {
	warnings []smartcode.Issue
	touched  map[string]bool
	purge    bool
}

// call is one dispatched unit: a request, or one item of a batch.
type call struct {
	op        Operation
	org       string
	smartCode string
	id        string
	parentID  string
	payload   map[string]any
	options   Options
	actor     string
	now       time.Time
	fx        *effects
}

type handler func(e *Engine, ctx context.Context, st *store.Store, c *call) (outcome, error)

// Execute runs one request and returns its envelope. It never returns nil.
func (e *Engine) Execute(ctx context.Context, req Request) *Result {
	start := time.Now()
	log := e.logger.With(
		zap.String("store", string(req.Store)),
		zap.String("operation", string(req.Operation)),
		zap.String("organization_id", req.OrganizationID),
	)
	log.Debug("dispatching request")

	fx := &effects{touched: map[string]bool{}}
	out, err := e.dispatch(ctx, &req, fx)

	res := &Result{Status: StatusSuccess}
	if len(fx.warnings) > 0 {
		res.Warnings = fx.warnings
	}
	kind := model.ErrorKind("")
	if err != nil {
		kind = model.KindOf(err)
		res.Status = StatusError
		res.Error = errorBody(err)
		switch kind {
		case model.KindInternal:
			log.Error("request failed", zap.Error(err))
		default:
			log.Warn("request rejected", zap.String("kind", string(kind)), zap.String("reason", messageOf(err)))
		}
	} else {
		e.applyEffects(fx)
		res.Data = out.data
		res.Rows = out.rows
		res.Meta = out.meta
		if isWrite(req.Operation) {
			log.Info("request applied")
		}
	}
	if e.recorder != nil {
		e.recorder.ObserveOperation(string(req.Store), string(req.Operation), string(res.Status), kind, time.Since(start))
	}
	return res
}

func (e *Engine) dispatch(ctx context.Context, req *Request, fx *effects) (outcome, error) {
	handlers, ok := registry[req.Store]
	if !ok {
		return outcome{}, model.Validation("store", "unknown store %q", req.Store)
	}
	if err := e.resolveTenant(ctx, req); err != nil {
		return outcome{}, err
	}

	switch req.Operation {
	case OpBulkCreate, OpBulkUpdate:
		return e.bulk(ctx, req, handlers, fx)
	}
	h, ok := handlers[req.Operation]
	if !ok {
		return outcome{}, unsupported(req.Store, req.Operation)
	}
	c := e.newCall(req, req.Operation, req.ID, req.SmartCode, req.Payload, fx)
	if err := checkPayloadTenant(c.org, c.payload); err != nil {
		return outcome{}, err
	}
	if !isWrite(req.Operation) {
		return h(e, ctx, e.store, c)
	}
	var out outcome
	err := e.store.InTx(ctx, func(tx *store.Store) error {
		var err error
		out, err = h(e, ctx, tx, c)
		return err
	})
	return out, err
}

func (e *Engine) newCall(req *Request, op Operation, id, smartCode string, payload map[string]any, fx *effects) *call {
	if smartCode == "" {
		smartCode, _ = payload["smart_code"].(string)
	}
	actor := req.Actor
	if actor == "" {
		actor = "system"
	}
	return &call{
		op:        op,
		org:       req.OrganizationID,
		smartCode: smartCode,
		id:        id,
		parentID:  req.ParentID,
		payload:   payload,
		options:   req.Options,
		actor:     actor,
		now:       e.clock.Now().UTC(),
		fx:        fx,
	}
}

// applyEffects runs once the unit of work has committed.
func (e *Engine) applyEffects(fx *effects) {
	cache := e.governor.Cache()
	if cache == nil {
		return
	}
	if fx.purge {
		cache.Purge()
		return
	}
	for key := range fx.touched {
		code, org := splitTouched(key)
		cache.Invalidate(code, org)
	}
}

func isWrite(op Operation) bool {
	switch op {
	case OpRead, OpQuery, OpHierarchy:
		return false
	}
	return true
}

// registry maps every store to its operation handlers. Bulk operations are
// derived from create and update.
var registry = map[StoreName]map[Operation]handler{
	StoreOrganization: {
		OpCreate:  (*Engine).createOrganization,
		OpRead:    (*Engine).readOrganization,
		OpUpdate:  (*Engine).updateOrganization,
		OpArchive: (*Engine).archiveOrganization,
		OpDelete:  (*Engine).deleteOrganization,
		OpQuery:   (*Engine).queryOrganizations,
	},
	StoreEntity: {
		OpCreate:         (*Engine).createEntity,
		OpRead:           (*Engine).readEntity,
		OpUpdate:         (*Engine).updateEntity,
		OpArchive:        (*Engine).archiveEntity,
		OpDelete:         (*Engine).deleteEntity,
		OpQuery:          (*Engine).queryEntities,
		OpCreateComplete: (*Engine).createCompleteEntity,
	},
	StoreDynamicData: {
		OpCreate: (*Engine).upsertField,
		OpRead:   (*Engine).readFields,
		OpUpdate: (*Engine).updateField,
		OpDelete: (*Engine).deleteField,
		OpQuery:  (*Engine).queryFields,
	},
	StoreRelationship: {
		OpCreate:     (*Engine).createRelationship,
		OpRead:       (*Engine).readRelationship,
		OpUpdate:     (*Engine).updateRelationship,
		OpArchive:    (*Engine).archiveRelationship,
		OpDelete:     (*Engine).archiveRelationship,
		OpQuery:      (*Engine).queryRelationships,
		OpTransition: (*Engine).transitionRelationship,
		OpHierarchy:  (*Engine).hierarchy,
	},
	StoreTransaction: {
		OpCreate:     (*Engine).createTransaction,
		OpRead:       (*Engine).readTransaction,
		OpUpdate:     (*Engine).updateTransaction,
		OpArchive:    (*Engine).archiveTransaction,
		OpDelete:     (*Engine).deleteTransaction,
		OpQuery:      (*Engine).queryTransactions,
		OpTransition: (*Engine).transitionTransaction,
	},
	StoreTransactionLine: {
		OpCreate: (*Engine).createLine,
		OpRead:   (*Engine).readLine,
		OpUpdate: (*Engine).updateLine,
		OpDelete: (*Engine).deleteLine,
		OpQuery:  (*Engine).queryLines,
	},
}
