package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/airpuck/internal/events"
	"github.com/alfredjeanlab/airpuck/internal/model"
)

const (
	// ReadyPollInterval and MaxReadyAttempts define the default ready deadline.
	ReadyPollInterval = 100 * time.Millisecond
	MaxReadyAttempts  = 200

	// DefaultReadyTimeout is how long Ready waits for initialization.
	DefaultReadyTimeout = MaxReadyAttempts * ReadyPollInterval
)

// errEmptyResponse is returned when a transport reports success without a record.
var errEmptyResponse = errors.New("empty response")

// State is the initialization state of a Table.
type State int

const (
	StateUninitialized State = iota
	StatePulling
	StateInferring
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePulling:
		return "pulling"
	case StateInferring:
		return "schema-inferring"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Option configures a Table.
type Option func(*Table)

// WithAPI sets the transport. The default is an HTTPClient using the
// table's api key.
func WithAPI(api RecordsAPI) Option {
	return func(t *Table) { t.api = api }
}

// WithAPIURL overrides the service root used to build the endpoint.
func WithAPIURL(apiURL string) Option {
	return func(t *Table) {
		if apiURL != "" {
			t.apiURL = apiURL
		}
	}
}

// WithLogger sets the logger failures are reported on.
func WithLogger(l *slog.Logger) Option {
	return func(t *Table) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithPublisher sets where change events go.
func WithPublisher(p events.Publisher) Option {
	return func(t *Table) {
		if p != nil {
			t.publisher = p
		}
	}
}

// WithReadyTimeout sets how long Ready waits before giving up.
func WithReadyTimeout(d time.Duration) Option {
	return func(t *Table) {
		if d > 0 {
			t.readyTimeout = d
		}
	}
}

// WithFailFast makes Ready return the initialization error as soon as the
// initial pull fails, instead of waiting out the ready timeout.
func WithFailFast() Option {
	return func(t *Table) { t.failFast = true }
}

// WithOnReady registers a continuation run once initialization completes.
// It never runs if initialization fails.
func WithOnReady(fn func()) Option {
	return func(t *Table) { t.onReady = fn }
}

// Table mirrors one remote table in memory. The cache is replaced by Pull
// and patched after each successful Add, Update, Replace or Delete; failed
// calls leave it unchanged. It is a best-effort copy: writes by other
// clients are not seen until the next Pull.
type Table struct {
	cfg          model.TableConfig
	api          RecordsAPI
	apiURL       string
	logger       *slog.Logger
	publisher    events.Publisher
	readyTimeout time.Duration
	onReady      func()
	failFast     bool

	readyCh   chan struct{}
	readyOnce sync.Once
	failedCh  chan struct{}

	mu       sync.RWMutex
	state    State
	endpoint string
	records  []*model.Record
	fields   []string
	initErr  error
}

// New creates a Table for cfg. When cfg is complete, initialization (pull,
// then field inference) starts in the background under ctx; use Ready or
// WhenReady to wait for it. An incomplete cfg yields a table in StateFailed
// that can still build attachment values.
func New(ctx context.Context, cfg model.TableConfig, opts ...Option) *Table {
	t := &Table{
		cfg:          cfg,
		apiURL:       DefaultAPIURL,
		logger:       slog.Default(),
		publisher:    &events.NoopPublisher{},
		readyTimeout: DefaultReadyTimeout,
		readyCh:      make(chan struct{}),
		failedCh:     make(chan struct{}),
		records:      []*model.Record{},
		fields:       []string{},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.api == nil {
		t.api = NewHTTPClient(cfg.APIKey)
	}
	t.logger = t.logger.With("base", cfg.BaseID, "table", cfg.Name)

	if err := cfg.Validate(); err != nil {
		t.state = StateFailed
		t.initErr = fmt.Errorf("%w: %v", ErrIncompleteConfig, err)
		close(t.failedCh)
		t.logger.Warn("configuration incomplete, table will not initialize", "err", err)
		return t
	}

	go t.initialize(ctx)
	return t
}

func (t *Table) initialize(ctx context.Context) {
	t.mu.Lock()
	t.endpoint = Endpoint(t.apiURL, t.cfg.BaseID, t.cfg.Name)
	t.state = StatePulling
	t.mu.Unlock()

	if err := t.Pull(ctx); err != nil {
		t.mu.Lock()
		t.state = StateUninitialized
		t.initErr = err
		t.mu.Unlock()
		close(t.failedCh)
		return
	}

	t.mu.Lock()
	t.state = StateInferring
	t.fields = model.InferFields(t.records)
	t.state = StateReady
	t.mu.Unlock()

	t.logger.Debug("table ready", "records", len(t.Records()), "fields", len(t.Fields()))
	t.readyOnce.Do(func() {
		close(t.readyCh)
		if t.onReady != nil {
			t.onReady()
		}
	})
}

// InitErr returns why initialization failed, or nil if it has not failed.
func (t *Table) InitErr() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.initErr
}

// Ready blocks until initialization has completed. It returns
// ErrReadyTimeout (and logs it) once the ready timeout elapses, or the
// context's error if ctx ends first. With WithFailFast it returns the
// initialization error as soon as initialization fails.
func (t *Table) Ready(ctx context.Context) error {
	select {
	case <-t.readyCh:
		return nil
	default:
	}

	var failed <-chan struct{}
	if t.failFast {
		failed = t.failedCh
	}
	timer := time.NewTimer(t.readyTimeout)
	defer timer.Stop()
	select {
	case <-t.readyCh:
		return nil
	case <-failed:
		return fmt.Errorf("initializing table: %w", t.InitErr())
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		attrs := []any{"timeout", t.readyTimeout, "state", t.State().String()}
		if err := t.InitErr(); err != nil {
			attrs = append(attrs, "err", err)
		}
		t.logger.Warn("timed out waiting for table", attrs...)
		return ErrReadyTimeout
	}
}

// WhenReady runs fn once the table is ready. If it already is, fn runs
// before WhenReady returns. Otherwise fn runs on another goroutine if and
// when initialization completes within the ready timeout.
func (t *Table) WhenReady(fn func()) {
	select {
	case <-t.readyCh:
		fn()
		return
	default:
	}
	go func() {
		if err := t.Ready(context.Background()); err == nil {
			fn()
		}
	}()
}

// Pull fetches the table's records and replaces the cache with them.
func (t *Table) Pull(ctx context.Context) error {
	endpoint, err := t.requireEndpoint("pull")
	if err != nil {
		return err
	}
	records, err := t.api.ListRecords(ctx, endpoint, nil)
	if err != nil {
		t.logFailure("pull", "", err)
		return fmt.Errorf("pulling records: %w", err)
	}

	kept := make([]*model.Record, 0, len(records))
	for _, r := range records {
		if r != nil {
			kept = append(kept, r)
		}
	}

	t.mu.Lock()
	t.records = kept
	count := len(kept)
	fields := model.InferFields(kept)
	t.mu.Unlock()

	t.publish(ctx, events.TopicTablePulled, events.TablePulled{
		Source:      t.source(),
		RecordCount: count,
		Fields:      fields,
	})
	return nil
}

// RecordsByField returns the cached records whose value for field is
// populated (see model.Truthy) and loosely equal to value.
func (t *Table) RecordsByField(field string, value any) []*model.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := []*model.Record{}
	for _, r := range t.records {
		v, ok := r.Fields[field]
		if !ok || !model.Truthy(v) {
			continue
		}
		if model.LooseEqual(v, value) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// RecordByID returns the cached record with the given id, or nil.
func (t *Table) RecordByID(id string) *model.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i := t.indexOf(id); i >= 0 {
		return t.records[i].Clone()
	}
	return nil
}

// RecordAt returns the cached record at position index.
func (t *Table) RecordAt(index int) (*model.Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index < 0 || index >= len(t.records) {
		return nil, false
	}
	return t.records[index].Clone(), true
}

// indexOf scans the cache for id. Callers hold t.mu.
func (t *Table) indexOf(id string) int {
	for i, r := range t.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Add creates rec remotely and appends the record the service returns,
// with its assigned id and createdTime, to the cache.
func (t *Table) Add(ctx context.Context, rec *model.Record) (*model.Record, error) {
	if rec == nil || rec.Fields == nil {
		return nil, ErrMissingFields
	}
	endpoint, err := t.requireEndpoint("add")
	if err != nil {
		return nil, err
	}
	created, err := t.api.CreateRecord(ctx, endpoint, rec.Fields)
	if err != nil {
		t.logFailure("add", "", err)
		return nil, fmt.Errorf("adding record: %w", err)
	}
	if created == nil {
		t.logFailure("add", "", errEmptyResponse)
		return nil, fmt.Errorf("adding record: %w", errEmptyResponse)
	}

	t.mu.Lock()
	t.records = append(t.records, created)
	out := created.Clone()
	t.mu.Unlock()

	t.publish(ctx, events.TopicRecordAdded, events.RecordAdded{Source: t.source(), Record: out.Clone()})
	return out, nil
}

// Update sends rec's fields as a partial update. The target must already be
// cached; otherwise nothing is sent and ErrRecordNotFound is returned. On
// success the cached record's fields become rec.Fields.
func (t *Table) Update(ctx context.Context, rec *model.Record) error {
	return t.write(ctx, "update", rec, t.api.UpdateRecord, events.TopicRecordUpdated)
}

// Replace is Update with full-replace semantics on the service side.
func (t *Table) Replace(ctx context.Context, rec *model.Record) error {
	return t.write(ctx, "replace", rec, t.api.ReplaceRecord, events.TopicRecordReplaced)
}

type writeFunc func(ctx context.Context, endpoint, id string, fields model.Fields) (*model.Record, error)

func (t *Table) write(ctx context.Context, op string, rec *model.Record, send writeFunc, topic string) error {
	if rec == nil || rec.ID == "" {
		return ErrMissingID
	}
	if rec.Fields == nil {
		return ErrMissingFields
	}
	endpoint, err := t.requireEndpoint(op)
	if err != nil {
		return err
	}
	if !t.cached(rec.ID) {
		t.logger.Warn("no record found", "op", op, "id", rec.ID)
		return fmt.Errorf("%s %s: %w", op, rec.ID, ErrRecordNotFound)
	}

	if _, err := send(ctx, endpoint, rec.ID, rec.Fields); err != nil {
		t.logFailure(op, rec.ID, err)
		return fmt.Errorf("%s record %s: %w", op, rec.ID, err)
	}

	var updated *model.Record
	t.mu.Lock()
	// The entry can vanish if a concurrent Pull or Delete landed first.
	if i := t.indexOf(rec.ID); i >= 0 {
		t.records[i].SetFields(rec.Fields)
		t.records[i].SetFieldOrder(rec.FieldNames())
		updated = t.records[i].Clone()
	}
	t.mu.Unlock()

	if updated != nil {
		switch topic {
		case events.TopicRecordReplaced:
			t.publish(ctx, topic, events.RecordReplaced{Source: t.source(), Record: updated})
		default:
			t.publish(ctx, topic, events.RecordUpdated{Source: t.source(), Record: updated})
		}
	}
	return nil
}

// Delete removes rec remotely and drops it from the cache. The target must
// already be cached; otherwise nothing is sent and ErrRecordNotFound is returned.
func (t *Table) Delete(ctx context.Context, rec *model.Record) error {
	if rec == nil || rec.ID == "" {
		return ErrMissingID
	}
	endpoint, err := t.requireEndpoint("delete")
	if err != nil {
		return err
	}
	if !t.cached(rec.ID) {
		t.logger.Warn("no record found", "op", "delete", "id", rec.ID)
		return fmt.Errorf("delete %s: %w", rec.ID, ErrRecordNotFound)
	}

	if err := t.api.DeleteRecord(ctx, endpoint, rec.ID); err != nil {
		t.logFailure("delete", rec.ID, err)
		return fmt.Errorf("deleting record %s: %w", rec.ID, err)
	}

	t.mu.Lock()
	if i := t.indexOf(rec.ID); i >= 0 {
		t.records = append(t.records[:i:i], t.records[i+1:]...)
	}
	t.mu.Unlock()

	t.publish(ctx, events.TopicRecordDeleted, events.RecordDeleted{Source: t.source(), RecordID: rec.ID})
	return nil
}

// Refresh fetches one record from the service. If the record is cached, the
// cached copy is replaced with the fetched one.
func (t *Table) Refresh(ctx context.Context, id string) (*model.Record, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	endpoint, err := t.requireEndpoint("refresh")
	if err != nil {
		return nil, err
	}
	rec, err := t.api.GetRecord(ctx, endpoint, id)
	if err != nil {
		t.logFailure("refresh", id, err)
		return nil, fmt.Errorf("fetching record %s: %w", id, err)
	}
	if rec == nil {
		t.logFailure("refresh", id, errEmptyResponse)
		return nil, fmt.Errorf("fetching record %s: %w", id, errEmptyResponse)
	}

	out := rec.Clone()
	t.mu.Lock()
	if i := t.indexOf(id); i >= 0 {
		t.records[i] = rec
	}
	t.mu.Unlock()
	return out, nil
}

// RefreshAt fetches the record cached at position index from the service.
func (t *Table) RefreshAt(ctx context.Context, index int) (*model.Record, error) {
	rec, ok := t.RecordAt(index)
	if !ok {
		return nil, fmt.Errorf("index %d: %w", index, ErrRecordNotFound)
	}
	return t.Refresh(ctx, rec.ID)
}

// RefreshByField fetches the first cached record matching field and value
// (see RecordsByField) from the service.
func (t *Table) RefreshByField(ctx context.Context, field string, value any) (*model.Record, error) {
	matches := t.RecordsByField(field, value)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%s=%v: %w", field, value, ErrRecordNotFound)
	}
	return t.Refresh(ctx, matches[0].ID)
}

func (t *Table) cached(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.indexOf(id) >= 0
}

// requireEndpoint guards every network operation on a complete config.
func (t *Table) requireEndpoint(op string) (string, error) {
	if err := t.cfg.Validate(); err != nil {
		t.logger.Warn("cannot "+op+": configuration incomplete", "err", err)
		return "", fmt.Errorf("%w: %v", ErrIncompleteConfig, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.endpoint == "" {
		t.endpoint = Endpoint(t.apiURL, t.cfg.BaseID, t.cfg.Name)
	}
	return t.endpoint, nil
}

func (t *Table) logFailure(op, id string, err error) {
	attrs := []any{"op", op, "err", err}
	if id != "" {
		attrs = append(attrs, "id", id)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs, "status", apiErr.StatusCode)
	}
	t.logger.Warn(op+" failed", attrs...)
}

func (t *Table) publish(ctx context.Context, topic string, event any) {
	if err := t.publisher.Publish(ctx, topic, event); err != nil {
		t.logger.Warn("failed to publish event", "topic", topic, "err", err)
	}
}

func (t *Table) source() events.Source {
	return events.Source{BaseID: t.cfg.BaseID, Table: t.cfg.Name}
}

// Attachment builds an attachment field value. It touches neither the
// network nor the cache.
func (t *Table) Attachment(url, filename string) model.Attachment {
	return model.NewAttachment(url, filename)
}

// Records returns a copy of the cached records in cache order.
func (t *Table) Records() []*model.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return model.CloneRecords(t.records)
}

// Fields returns the inferred field names.
func (t *Table) Fields() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string{}, t.fields...)
}

// BlankFields returns an empty value for every inferred field.
func (t *Table) BlankFields() model.Fields {
	return model.BlankFields(t.Fields())
}

// SortedByDate returns the cached records, newest first.
func (t *Table) SortedByDate() []*model.Record {
	return model.SortByCreated(t.Records())
}

// SortedByField returns the cached records ordered by field.
func (t *Table) SortedByField(field string) []*model.Record {
	return model.SortByField(t.Records(), field)
}

// Endpoint returns the table URL. It is empty until the first network call.
func (t *Table) Endpoint() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.endpoint
}

// Options returns the configuration the table was created with.
func (t *Table) Options() model.TableConfig {
	return t.cfg
}

// State returns the current initialization state.
func (t *Table) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}
