// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package systemstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/MeridianExplorer/noobaa-core/pkg/cluster"
	"github.com/MeridianExplorer/noobaa-core/pkg/schema"
	"github.com/MeridianExplorer/noobaa-core/storage"
)

// Config contains configurable values for the catalog manager.
type Config struct {
	StartRefreshThreshold time.Duration `help:"snapshot age that starts a refresh in the background" default:"10m"`
	ForceRefreshThreshold time.Duration `help:"snapshot age that makes callers wait for a fresh load" default:"60m"`
	CoalesceInterval      time.Duration `help:"delay before background changes flush as one bulk" default:"3s"`
	CoordinatorAddress    string        `help:"address of the background coordinator peer" default:""`
}

// Changes is a transactional mutation batch, grouped per collection.
// Inserts are full documents, updates are payloads scoped by _id, removes
// are ids to tombstone.
type Changes struct {
	Insert map[string][]storage.Doc
	Update map[string][]storage.Doc
	Remove map[string][]storage.ID
}

// Merge concatenates another batch into this one.
func (changes *Changes) Merge(other *Changes) {
	if other == nil {
		return
	}
	for collection, docs := range other.Insert {
		if changes.Insert == nil {
			changes.Insert = map[string][]storage.Doc{}
		}
		changes.Insert[collection] = append(changes.Insert[collection], docs...)
	}
	for collection, docs := range other.Update {
		if changes.Update == nil {
			changes.Update = map[string][]storage.Doc{}
		}
		changes.Update[collection] = append(changes.Update[collection], docs...)
	}
	for collection, ids := range other.Remove {
		if changes.Remove == nil {
			changes.Remove = map[string][]storage.ID{}
		}
		changes.Remove[collection] = append(changes.Remove[collection], ids...)
	}
}

// Empty reports whether the batch holds no mutations.
func (changes *Changes) Empty() bool {
	return len(changes.Insert) == 0 && len(changes.Update) == 0 && len(changes.Remove) == 0
}

// Manager loads and refreshes catalog snapshots, applies mutation batches
// and coordinates cluster-wide invalidation. There is at most one load in
// flight; concurrent callers share its result.
type Manager struct {
	logger   *zap.Logger
	db       storage.Store
	bus      cluster.Bus
	registry *schema.Registry
	config   Config

	nowFn  func() time.Time
	flight singleflight.Group

	mu          sync.Mutex
	current     *Snapshot
	loadedAt    time.Time
	initialized bool
	registered  bool

	bgmu    sync.Mutex
	pending *Changes
	timer   *time.Timer
}

// NewManager creates a catalog manager over the given document store and
// notification bus.
func NewManager(logger *zap.Logger, db storage.Store, bus cluster.Bus, config Config) (*Manager, error) {
	registry, err := schema.NewRegistry(SchemaSources())
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &Manager{
		logger:   logger,
		db:       db,
		bus:      bus,
		registry: registry,
		config:   config,
		nowFn:    time.Now,
	}, nil
}

// Current returns the published snapshot, or nil before the first load.
func (manager *Manager) Current() *Snapshot {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	return manager.current
}

// Refresh returns a snapshot that is fresh enough. A warm snapshot younger
// than StartRefreshThreshold is returned as is; an older one is returned
// immediately while a reload proceeds in the background; past
// ForceRefreshThreshold the caller waits for the fresh load.
func (manager *Manager) Refresh(ctx context.Context) (_ *Snapshot, err error) {
	defer mon.Task()(&ctx)(&err)

	manager.mu.Lock()
	current, loadedAt := manager.current, manager.loadedAt
	manager.mu.Unlock()

	if current != nil {
		age := manager.nowFn().Sub(loadedAt)
		if age < manager.config.StartRefreshThreshold {
			return current, nil
		}
		if age < manager.config.ForceRefreshThreshold {
			go func() {
				if _, err := manager.load(context.Background()); err != nil {
					manager.logger.Error("background refresh failed", zap.Error(err))
				}
			}()
			return current, nil
		}
	}
	return manager.load(ctx)
}

// load runs the load protocol at most once concurrently; callers arriving
// during an active load await the same result. A failed load leaves the
// previous snapshot published and clears the in-flight marker so the next
// refresh retries.
func (manager *Manager) load(ctx context.Context) (*Snapshot, error) {
	value, err, _ := manager.flight.Do("load", func() (interface{}, error) {
		return manager.loadOnce(ctx)
	})
	if err != nil {
		return nil, err
	}
	return value.(*Snapshot), nil
}

func (manager *Manager) loadOnce(ctx context.Context) (_ *Snapshot, err error) {
	defer mon.Task()(&ctx)(&err)

	manager.registerInvalidation()

	if err := manager.initStore(ctx); err != nil {
		return nil, err
	}

	data := map[string][]storage.Doc{}
	for _, coll := range Collections {
		docs, err := manager.db.FindLive(ctx, coll.Name)
		if err != nil {
			return nil, Error.New("loading %q: %v", coll.Name, err)
		}
		valid := docs[:0]
		for _, doc := range docs {
			if err := manager.registry.Validate(coll.Name, doc); err != nil {
				// forward compatibility: keep the document
				manager.logger.Warn("invalid document kept on load",
					zap.String("collection", coll.Name),
					zap.String("id", storage.DocID(doc).String()),
					zap.Error(err))
			}
			valid = append(valid, doc)
		}
		data[coll.Name] = valid
	}

	snapshot, err := NewSnapshot(manager.logger, data)
	if err != nil {
		return nil, err
	}

	manager.mu.Lock()
	manager.current = snapshot
	manager.loadedAt = manager.nowFn()
	manager.mu.Unlock()

	manager.logger.Info("catalog loaded", zap.Int("entities", len(snapshot.idmap)))
	return snapshot, nil
}

// registerInvalidation subscribes to peer reload notifications, once per
// process.
func (manager *Manager) registerInvalidation() {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	if manager.registered {
		return
	}
	manager.registered = true
	manager.bus.Subscribe(func(msg cluster.Message) {
		if msg.MethodName != cluster.MethodLoadSystemStore {
			return
		}
		if _, err := manager.load(context.Background()); err != nil {
			manager.logger.Error("reload on notification failed", zap.Error(err))
		}
	})
}

// initStore creates missing collections and their unique compound indexes.
// Initialization runs once and is memoized until a store reconnect.
func (manager *Manager) initStore(ctx context.Context) error {
	manager.mu.Lock()
	initialized := manager.initialized
	manager.mu.Unlock()
	if initialized {
		return nil
	}

	for _, coll := range Collections {
		if err := manager.db.EnsureCollection(ctx, coll.Name, coll.UniqueIndexes); err != nil {
			return Error.New("init %q: %v", coll.Name, err)
		}
	}

	manager.mu.Lock()
	manager.initialized = true
	manager.mu.Unlock()
	return nil
}

// MakeChanges validates and applies a mutation batch, then broadcasts a
// reload to all peers. Validation and conflict failures abort the batch
// before any write; write failures are returned without a broadcast.
func (manager *Manager) MakeChanges(ctx context.Context, changes *Changes) (err error) {
	defer mon.Task()(&ctx)(&err)

	snapshot, err := manager.Refresh(ctx)
	if err != nil {
		return err
	}

	now := manager.nowFn()
	ops := map[string][]storage.Op{}
	taken := map[string]bool{}

	for collection, docs := range changes.Insert {
		for _, doc := range docs {
			if storage.DocID(doc).IsZero() {
				doc["_id"] = storage.NewID().String()
			}
			if err := manager.registry.Validate(collection, doc); err != nil {
				return err
			}
			if err := manager.checkConflicts(snapshot, collection, doc, taken); err != nil {
				return err
			}
			ops[collection] = append(ops[collection], storage.Insert{Doc: doc})
		}
	}

	for collection, updates := range changes.Update {
		for _, payload := range updates {
			id := storage.DocID(payload)
			if id.IsZero() {
				return Error.New("update without _id in %q", collection)
			}
			update := operatorUpdate(payload)
			if err := manager.checkConflicts(snapshot, collection, updateCandidate(id, update), taken); err != nil {
				return err
			}
			ops[collection] = append(ops[collection], storage.UpdateOne{ID: id, Update: update})
		}
	}

	for collection, ids := range changes.Remove {
		for _, id := range ids {
			ops[collection] = append(ops[collection], storage.SetDeleted{ID: id, At: now})
		}
	}

	var group errgroup.Group
	for collection, collOps := range ops {
		collection, collOps := collection, collOps
		group.Go(func() error {
			return manager.db.BulkWrite(ctx, collection, collOps)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	if err := manager.bus.Publish(ctx, cluster.LoadSystemStoreMessage()); err != nil {
		manager.logger.Warn("reload broadcast failed", zap.Error(err))
	}
	return nil
}

// checkConflicts runs the uniqueness pre-check against the working snapshot
// and against the index slots already claimed by earlier mutations of the
// same batch.
func (manager *Manager) checkConflicts(snapshot *Snapshot, collection string, candidate storage.Doc, taken map[string]bool) error {
	if err := snapshot.CheckConflicts(collection, candidate); err != nil {
		return err
	}
	for _, key := range snapshot.conflictKeys(collection, candidate) {
		if taken[key] {
			return ErrConflict.New("%s: duplicate key within batch", collection)
		}
		taken[key] = true
	}
	return nil
}

// operatorUpdate normalizes an update payload: a payload without operator
// keys is a literal replacement and is wrapped as a $set of all its fields.
func operatorUpdate(payload storage.Doc) storage.Doc {
	for key := range payload {
		if strings.HasPrefix(key, "$") {
			return withoutID(payload)
		}
	}
	return storage.Doc{"$set": withoutID(payload)}
}

func withoutID(payload storage.Doc) storage.Doc {
	update := storage.Doc{}
	for key, value := range payload {
		if key == "_id" {
			continue
		}
		update[key] = value
	}
	return update
}

// updateCandidate projects an operator update into a document for the
// uniqueness pre-check.
func updateCandidate(id storage.ID, update storage.Doc) storage.Doc {
	candidate := storage.Doc{"_id": id.String()}
	if fields, ok := update["$set"].(map[string]interface{}); ok {
		for path, value := range fields {
			storage.SetPathValue(candidate, path, value)
		}
	}
	return candidate
}

// MakeChangesInBackground merges the batch into the pending state and arms
// the single coalescing timer if needed. The pending batch flushes as one
// MakeChanges call when the timer fires.
func (manager *Manager) MakeChangesInBackground(changes *Changes) {
	manager.bgmu.Lock()
	defer manager.bgmu.Unlock()

	if manager.pending == nil {
		manager.pending = &Changes{}
	}
	manager.pending.Merge(changes)

	if manager.timer == nil {
		manager.timer = time.AfterFunc(manager.config.CoalesceInterval, manager.flushPending)
	}
}

func (manager *Manager) flushPending() {
	manager.bgmu.Lock()
	batch := manager.pending
	manager.pending = nil
	manager.timer = nil
	manager.bgmu.Unlock()

	if batch == nil || batch.Empty() {
		return
	}
	if err := manager.MakeChanges(context.Background(), batch); err != nil {
		manager.logger.Error("background changes failed", zap.Error(err))
	}
}

// OnStoreReconnect clears the init memo and reloads. The connection owner
// calls this when the document store reconnects.
func (manager *Manager) OnStoreReconnect() {
	manager.mu.Lock()
	manager.initialized = false
	manager.mu.Unlock()

	go func() {
		if _, err := manager.load(context.Background()); err != nil {
			manager.logger.Error("reload on store reconnect failed", zap.Error(err))
		}
	}()
}

// OnBusReconnect reloads when the notification channel to the background
// coordinator was re-established; notifications may have been missed while
// it was down.
func (manager *Manager) OnBusReconnect(address string) {
	if address == "" || address != manager.config.CoordinatorAddress {
		return
	}
	go func() {
		if _, err := manager.load(context.Background()); err != nil {
			manager.logger.Error("reload on bus reconnect failed", zap.Error(err))
		}
	}()
}

var (
	defaultMu      sync.Mutex
	defaultManager *Manager
)

// Default returns the process-wide manager. It is nil until SetDefault.
func Default() *Manager {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultManager
}

// SetDefault installs the process-wide manager. The manager stays injectable
// so tests construct isolated instances instead.
func SetDefault(manager *Manager) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultManager = manager
}
