package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/alfredjeanlab/airpuck/internal/events"
	"github.com/alfredjeanlab/airpuck/internal/model"
)

// fakeAPI is an in-memory RecordsAPI that records every call.
type fakeAPI struct {
	mu      sync.Mutex
	records []*model.Record
	calls   []string
	nextID  int

	// failOn makes the named method return err.
	failOn map[string]error
	// block, when set, holds ListRecords until closed.
	block chan struct{}
}

func newFakeAPI(records ...*model.Record) *fakeAPI {
	return &fakeAPI{records: records, failOn: map[string]error{}}
}

func (f *fakeAPI) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.failOn[strings.SplitN(call, " ", 2)[0]]
}

func (f *fakeAPI) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeAPI) ListRecords(ctx context.Context, endpoint string, _ *ListOptions) ([]*model.Record, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.record("list " + endpoint); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.CloneRecords(f.records), nil
}

func (f *fakeAPI) GetRecord(_ context.Context, _, id string) (*model.Record, error) {
	if err := f.record("get " + id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return nil, &APIError{StatusCode: 404, Type: "NOT_FOUND"}
}

func (f *fakeAPI) CreateRecord(_ context.Context, _ string, fields model.Fields) (*model.Record, error) {
	if err := f.record("create"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	rec := &model.Record{
		ID:          fmt.Sprintf("recNEW%d", f.nextID),
		Fields:      fields.Clone(),
		CreatedTime: "2024-06-01T00:00:00.000Z",
	}
	f.records = append(f.records, rec)
	return rec.Clone(), nil
}

func (f *fakeAPI) UpdateRecord(_ context.Context, _, id string, fields model.Fields) (*model.Record, error) {
	if err := f.record("update " + id); err != nil {
		return nil, err
	}
	// Echo a merged response so tests can tell it is not used for the cache.
	merged := fields.Clone()
	merged["Server"] = "added"
	return &model.Record{ID: id, Fields: merged}, nil
}

func (f *fakeAPI) ReplaceRecord(_ context.Context, _, id string, fields model.Fields) (*model.Record, error) {
	if err := f.record("replace " + id); err != nil {
		return nil, err
	}
	return &model.Record{ID: id, Fields: fields.Clone()}, nil
}

func (f *fakeAPI) DeleteRecord(_ context.Context, _, id string) error {
	return f.record("delete " + id)
}

// recordingPublisher captures published topics.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

var testConfig = model.TableConfig{Name: "Table 1", BaseID: "appX", APIKey: "key123"}

func seedRecords() []*model.Record {
	return []*model.Record{
		{ID: "rec1", CreatedTime: "2024-01-01T00:00:00.000Z", Fields: model.Fields{"Name": "A", "Qty": float64(2)}},
		{ID: "rec2", CreatedTime: "2024-01-02T00:00:00.000Z", Fields: model.Fields{"Name": "B", "Qty": float64(0), "Notes": "x"}},
		{ID: "rec3", CreatedTime: "2024-01-03T00:00:00.000Z", Fields: model.Fields{"Name": "A", "Qty": "2"}},
	}
}

// newReadyTable builds a Table over api and waits for it to initialize.
func newReadyTable(t *testing.T, api RecordsAPI, opts ...Option) *Table {
	t.Helper()
	opts = append([]Option{WithAPI(api), WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))}, opts...)
	tbl := New(context.Background(), testConfig, opts...)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tbl.Ready(ctx); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	return tbl
}

func bufferLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// --- initialization ---

func TestTable_InitializesAndInfersFields(t *testing.T) {
	api := newFakeAPI(seedRecords()...)
	var calls int
	var mu sync.Mutex
	tbl := newReadyTable(t, api, WithOnReady(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}))

	if tbl.State() != StateReady {
		t.Errorf("State = %v, want ready", tbl.State())
	}
	if got := len(tbl.Records()); got != 3 {
		t.Errorf("len(Records) = %d, want 3", got)
	}
	// rec2 has the most keys.
	want := []string{"Name", "Notes", "Qty"}
	if diff := cmp.Diff(want, tbl.Fields()); diff != "" {
		t.Errorf("Fields (-want +got):\n%s", diff)
	}
	if tbl.Endpoint() != "https://api.airtable.com/v0/appX/Table%201" {
		t.Errorf("Endpoint = %q", tbl.Endpoint())
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("onReady ran %d times, want 1", calls)
	}
}

func TestTable_EmptyTable(t *testing.T) {
	tbl := newReadyTable(t, newFakeAPI())
	if recs := tbl.Records(); recs == nil || len(recs) != 0 {
		t.Errorf("Records = %#v, want empty", recs)
	}
	if f := tbl.Fields(); f == nil || len(f) != 0 {
		t.Errorf("Fields = %#v, want empty", f)
	}
}

func TestTable_IncompleteConfig(t *testing.T) {
	logger, buf := bufferLogger()
	api := newFakeAPI(seedRecords()...)
	tbl := New(context.Background(), model.TableConfig{Name: "T"}, WithAPI(api), WithLogger(logger), WithReadyTimeout(30*time.Millisecond))

	if tbl.State() != StateFailed {
		t.Errorf("State = %v, want failed", tbl.State())
	}
	if !strings.Contains(buf.String(), "configuration incomplete") {
		t.Errorf("log missing incomplete config line: %s", buf.String())
	}
	if err := tbl.Pull(context.Background()); !errors.Is(err, ErrIncompleteConfig) {
		t.Errorf("Pull err = %v, want ErrIncompleteConfig", err)
	}
	if _, err := tbl.Add(context.Background(), &model.Record{Fields: model.Fields{"Name": "x"}}); !errors.Is(err, ErrIncompleteConfig) {
		t.Errorf("Add err = %v, want ErrIncompleteConfig", err)
	}
	if err := tbl.Ready(context.Background()); !errors.Is(err, ErrReadyTimeout) {
		t.Errorf("Ready err = %v, want ErrReadyTimeout", err)
	}
	if api.callCount("") != 0 {
		t.Errorf("no network calls expected, got %v", api.calls)
	}

	att := tbl.Attachment("https://x/y.png", "")
	if att.URL != "https://x/y.png" || att.Filename != "" {
		t.Errorf("Attachment = %+v", att)
	}
	if tbl.Endpoint() != "" {
		t.Errorf("Endpoint = %q, want empty", tbl.Endpoint())
	}
}

func TestTable_PullFailureLeavesUninitialized(t *testing.T) {
	api := newFakeAPI()
	api.failOn["list"] = &APIError{StatusCode: 401, Type: "AUTHENTICATION_REQUIRED"}
	logger, buf := bufferLogger()

	ran := make(chan struct{}, 1)
	tbl := New(context.Background(), testConfig, WithAPI(api), WithLogger(logger),
		WithReadyTimeout(50*time.Millisecond), WithOnReady(func() { ran <- struct{}{} }))

	if err := tbl.Ready(context.Background()); !errors.Is(err, ErrReadyTimeout) {
		t.Fatalf("Ready err = %v, want ErrReadyTimeout", err)
	}
	if tbl.State() != StateUninitialized {
		t.Errorf("State = %v, want uninitialized", tbl.State())
	}
	if len(tbl.Records()) != 0 {
		t.Errorf("cache should be empty")
	}
	select {
	case <-ran:
		t.Error("onReady ran after a failed pull")
	default:
	}
	out := buf.String()
	if !strings.Contains(out, "pull failed") || !strings.Contains(out, "status=401") {
		t.Errorf("log = %s", out)
	}
	if !strings.Contains(out, "timed out waiting for table") {
		t.Errorf("log missing timeout line: %s", out)
	}
}

func TestTable_ReadyTimeoutWhilePulling(t *testing.T) {
	api := newFakeAPI(seedRecords()...)
	api.block = make(chan struct{})
	defer close(api.block)

	tbl := New(context.Background(), testConfig, WithAPI(api), WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
		WithReadyTimeout(20*time.Millisecond))

	start := time.Now()
	err := tbl.Ready(context.Background())
	if !errors.Is(err, ErrReadyTimeout) {
		t.Fatalf("Ready err = %v, want ErrReadyTimeout", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Ready returned before the timeout elapsed")
	}
	if tbl.State() != StatePulling {
		t.Errorf("State = %v, want pulling", tbl.State())
	}
}

func TestTable_ReadyContextCanceled(t *testing.T) {
	api := newFakeAPI()
	api.block = make(chan struct{})
	defer close(api.block)

	tbl := New(context.Background(), testConfig, WithAPI(api), WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tbl.Ready(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Ready err = %v, want context.Canceled", err)
	}
}

func TestTable_WhenReady(t *testing.T) {
	api := newFakeAPI(seedRecords()...)
	api.block = make(chan struct{})
	tbl := New(context.Background(), testConfig, WithAPI(api), WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	done := make(chan int, 1)
	tbl.WhenReady(func() { done <- len(tbl.Records()) })

	select {
	case <-done:
		t.Fatal("WhenReady ran before the table was ready")
	case <-time.After(20 * time.Millisecond):
	}

	close(api.block)
	select {
	case n := <-done:
		if n != 3 {
			t.Errorf("records at ready = %d, want 3", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WhenReady never ran")
	}

	// Already ready: runs synchronously.
	var ran bool
	tbl.WhenReady(func() { ran = true })
	if !ran {
		t.Error("WhenReady on a ready table should run immediately")
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateUninitialized: "uninitialized",
		StatePulling:       "pulling",
		StateInferring:     "schema-inferring",
		StateReady:         "ready",
		StateFailed:        "failed",
		State(42):          "State(42)",
	} {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestDefaultReadyTimeout(t *testing.T) {
	if DefaultReadyTimeout != 20*time.Second {
		t.Errorf("DefaultReadyTimeout = %v, want 20s", DefaultReadyTimeout)
	}
}

// --- lookups ---

func TestTable_RecordsByField(t *testing.T) {
	tbl := newReadyTable(t, newFakeAPI(seedRecords()...))

	for _, tc := range []struct {
		name  string
		field string
		value any
		want  []string
	}{
		{"string match", "Name", "A", []string{"rec1", "rec3"}},
		{"loose number", "Qty", float64(2), []string{"rec1", "rec3"}},
		{"loose string", "Qty", "2", []string{"rec1", "rec3"}},
		{"falsy stored value never matches", "Qty", float64(0), []string{}},
		{"missing field", "Nope", "A", []string{}},
		{"no match", "Name", "Q", []string{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := []string{}
			for _, r := range tbl.RecordsByField(tc.field, tc.value) {
				got = append(got, r.ID)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("RecordsByField(%q, %v) (-want +got):\n%s", tc.field, tc.value, diff)
			}
		})
	}
}

func TestTable_RecordByID(t *testing.T) {
	tbl := newReadyTable(t, newFakeAPI(seedRecords()...))

	rec := tbl.RecordByID("rec2")
	if rec == nil || rec.Fields["Notes"] != "x" {
		t.Fatalf("RecordByID(rec2) = %+v", rec)
	}
	if tbl.RecordByID("REC2") != nil {
		t.Error("id match must be exact")
	}
	if tbl.RecordByID("missing") != nil {
		t.Error("expected nil for unknown id")
	}

	// Returned records are copies.
	rec.Fields["Notes"] = "changed"
	if tbl.RecordByID("rec2").Fields["Notes"] != "x" {
		t.Error("mutating a returned record changed the cache")
	}
}

func TestTable_RecordAt(t *testing.T) {
	tbl := newReadyTable(t, newFakeAPI(seedRecords()...))
	if r, ok := tbl.RecordAt(1); !ok || r.ID != "rec2" {
		t.Errorf("RecordAt(1) = %v, %v", r, ok)
	}
	for _, i := range []int{-1, 3} {
		if _, ok := tbl.RecordAt(i); ok {
			t.Errorf("RecordAt(%d) should be out of range", i)
		}
	}
}

func TestTable_SortedViews(t *testing.T) {
	tbl := newReadyTable(t, newFakeAPI(seedRecords()...))

	ids := func(rs []*model.Record) []string {
		out := []string{}
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}
	if diff := cmp.Diff([]string{"rec3", "rec2", "rec1"}, ids(tbl.SortedByDate())); diff != "" {
		t.Errorf("SortedByDate (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"rec1", "rec3", "rec2"}, ids(tbl.SortedByField("Name"))); diff != "" {
		t.Errorf("SortedByField (-want +got):\n%s", diff)
	}
	// Cache order is untouched.
	if diff := cmp.Diff([]string{"rec1", "rec2", "rec3"}, ids(tbl.Records())); diff != "" {
		t.Errorf("Records (-want +got):\n%s", diff)
	}
}

func TestTable_BlankFields(t *testing.T) {
	tbl := newReadyTable(t, newFakeAPI(seedRecords()...))
	blank := tbl.BlankFields()
	if len(blank) != 3 || blank["Notes"] != "" {
		t.Errorf("BlankFields = %v", blank)
	}
}

func TestTable_Options(t *testing.T) {
	tbl := newReadyTable(t, newFakeAPI())
	if tbl.Options() != testConfig {
		t.Errorf("Options = %+v", tbl.Options())
	}
}

// --- mutations ---

func TestTable_Add(t *testing.T) {
	pub := &recordingPublisher{}
	api := newFakeAPI(seedRecords()...)
	tbl := newReadyTable(t, api, WithPublisher(pub))

	created, err := tbl.Add(context.Background(), &model.Record{Fields: model.Fields{"Name": "C"}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if created.ID != "recNEW1" || created.CreatedTime == "" {
		t.Errorf("created = %+v", created)
	}
	recs := tbl.Records()
	if len(recs) != 4 || recs[3].ID != "recNEW1" {
		t.Errorf("new record not appended: %d records", len(recs))
	}
	if got := pub.Topics(); got[len(got)-1] != events.TopicRecordAdded {
		t.Errorf("topics = %v", got)
	}
}

func TestTable_AddFailureLeavesCache(t *testing.T) {
	api := newFakeAPI(seedRecords()...)
	tbl := newReadyTable(t, api)
	api.failOn["create"] = &APIError{StatusCode: 422, Type: "INVALID_REQUEST_BODY"}

	if _, err := tbl.Add(context.Background(), &model.Record{Fields: model.Fields{"Name": "C"}}); err == nil {
		t.Fatal("expected error")
	}
	if len(tbl.Records()) != 3 {
		t.Error("failed add changed the cache")
	}
}

func TestTable_AddRequiresFields(t *testing.T) {
	api := newFakeAPI()
	tbl := newReadyTable(t, api)
	if _, err := tbl.Add(context.Background(), &model.Record{}); !errors.Is(err, ErrMissingFields) {
		t.Errorf("err = %v, want ErrMissingFields", err)
	}
	if _, err := tbl.Add(context.Background(), nil); !errors.Is(err, ErrMissingFields) {
		t.Errorf("err = %v, want ErrMissingFields", err)
	}
	if api.callCount("create") != 0 {
		t.Error("no create request expected")
	}
}

func TestTable_Update(t *testing.T) {
	pub := &recordingPublisher{}
	api := newFakeAPI(seedRecords()...)
	tbl := newReadyTable(t, api, WithPublisher(pub))

	if err := tbl.Update(context.Background(), &model.Record{ID: "rec1", Fields: model.Fields{"Name": "Z"}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got := tbl.RecordByID("rec1")
	// The cache takes the submitted fields, not the service response.
	if diff := cmp.Diff(model.Fields{"Name": "Z"}, got.Fields); diff != "" {
		t.Errorf("cached fields (-want +got):\n%s", diff)
	}
	if got.CreatedTime != "2024-01-01T00:00:00.000Z" {
		t.Errorf("createdTime changed: %q", got.CreatedTime)
	}
	if api.callCount("update rec1") != 1 {
		t.Errorf("calls = %v", api.calls)
	}
	if topics := pub.Topics(); topics[len(topics)-1] != events.TopicRecordUpdated {
		t.Errorf("topics = %v", topics)
	}
}

func TestTable_Replace(t *testing.T) {
	pub := &recordingPublisher{}
	api := newFakeAPI(seedRecords()...)
	tbl := newReadyTable(t, api, WithPublisher(pub))

	if err := tbl.Replace(context.Background(), &model.Record{ID: "rec2", Fields: model.Fields{"Name": "R"}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if diff := cmp.Diff(model.Fields{"Name": "R"}, tbl.RecordByID("rec2").Fields); diff != "" {
		t.Errorf("cached fields (-want +got):\n%s", diff)
	}
	if api.callCount("replace rec2") != 1 {
		t.Errorf("calls = %v", api.calls)
	}
	if topics := pub.Topics(); topics[len(topics)-1] != events.TopicRecordReplaced {
		t.Errorf("topics = %v", topics)
	}
}

func TestTable_UpdateUnknownID(t *testing.T) {
	logger, buf := bufferLogger()
	api := newFakeAPI(seedRecords()...)
	tbl := newReadyTable(t, api, WithLogger(logger))

	err := tbl.Update(context.Background(), &model.Record{ID: "recX", Fields: model.Fields{"Name": "Z"}})
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
	if api.callCount("update") != 0 {
		t.Error("no request should be sent for an uncached id")
	}
	if !strings.Contains(buf.String(), "no record found") {
		t.Errorf("log = %s", buf.String())
	}
}

func TestTable_UpdateValidation(t *testing.T) {
	tbl := newReadyTable(t, newFakeAPI(seedRecords()...))
	if err := tbl.Update(context.Background(), &model.Record{Fields: model.Fields{}}); !errors.Is(err, ErrMissingID) {
		t.Errorf("err = %v, want ErrMissingID", err)
	}
	if err := tbl.Update(context.Background(), &model.Record{ID: "rec1"}); !errors.Is(err, ErrMissingFields) {
		t.Errorf("err = %v, want ErrMissingFields", err)
	}
}

func TestTable_UpdateFailureLeavesCache(t *testing.T) {
	api := newFakeAPI(seedRecords()...)
	tbl := newReadyTable(t, api)
	api.failOn["update"] = &APIError{StatusCode: 422, Type: "INVALID_REQUEST_BODY"}

	err := tbl.Update(context.Background(), &model.Record{ID: "rec1", Fields: model.Fields{"Name": "Z"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 422 {
		t.Fatalf("err = %v, want 422 APIError", err)
	}
	if tbl.RecordByID("rec1").Fields["Name"] != "A" {
		t.Error("failed update changed the cache")
	}
}

func TestTable_Delete(t *testing.T) {
	pub := &recordingPublisher{}
	api := newFakeAPI(seedRecords()...)
	tbl := newReadyTable(t, api, WithPublisher(pub))

	if err := tbl.Delete(context.Background(), &model.Record{ID: "rec2"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if tbl.RecordByID("rec2") != nil {
		t.Error("deleted record still cached")
	}
	recs := tbl.Records()
	if len(recs) != 2 || recs[0].ID != "rec1" || recs[1].ID != "rec3" {
		t.Errorf("remaining order wrong: %v", recs)
	}
	topics := pub.Topics()
	if topics[len(topics)-1] != events.TopicRecordDeleted {
		t.Errorf("topics = %v", topics)
	}
}

func TestTable_DeleteUnknownID(t *testing.T) {
	api := newFakeAPI(seedRecords()...)
	tbl := newReadyTable(t, api)
	if err := tbl.Delete(context.Background(), &model.Record{ID: "recX"}); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
	if api.callCount("delete") != 0 {
		t.Error("no request should be sent for an uncached id")
	}
	if err := tbl.Delete(context.Background(), nil); !errors.Is(err, ErrMissingID) {
		t.Errorf("err = %v, want ErrMissingID", err)
	}
}

func TestTable_DeleteFailureLeavesCache(t *testing.T) {
	api := newFakeAPI(seedRecords()...)
	tbl := newReadyTable(t, api)
	api.failOn["delete"] = errors.New("connection reset")

	if err := tbl.Delete(context.Background(), &model.Record{ID: "rec1"}); err == nil {
		t.Fatal("expected error")
	}
	if tbl.RecordByID("rec1") == nil {
		t.Error("failed delete removed the record")
	}
}

func TestTable_PullReplacesCache(t *testing.T) {
	pub := &recordingPublisher{}
	api := newFakeAPI(seedRecords()...)
	tbl := newReadyTable(t, api, WithPublisher(pub))

	api.mu.Lock()
	api.records = api.records[:1]
	api.mu.Unlock()

	if err := tbl.Pull(context.Background()); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(tbl.Records()) != 1 {
		t.Errorf("len(Records) = %d, want 1", len(tbl.Records()))
	}
	// Fields are inferred once at initialization.
	if len(tbl.Fields()) != 3 {
		t.Errorf("Fields = %v", tbl.Fields())
	}

	pub.mu.Lock()
	last, _ := pub.events[len(pub.events)-1].(events.TablePulled)
	pub.mu.Unlock()
	if last.RecordCount != 1 || last.Table != "Table 1" {
		t.Errorf("pulled event = %+v", last)
	}
}

func TestTable_PullFailureKeepsCache(t *testing.T) {
	api := newFakeAPI(seedRecords()...)
	tbl := newReadyTable(t, api)
	api.failOn["list"] = errors.New("boom")

	if err := tbl.Pull(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(tbl.Records()) != 3 {
		t.Error("failed pull changed the cache")
	}
}

func TestTable_Refresh(t *testing.T) {
	api := newFakeAPI(seedRecords()...)
	tbl := newReadyTable(t, api)

	api.mu.Lock()
	api.records[0].Fields["Name"] = "remote edit"
	api.mu.Unlock()

	rec, err := tbl.Refresh(context.Background(), "rec1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rec.Fields["Name"] != "remote edit" || tbl.RecordByID("rec1").Fields["Name"] != "remote edit" {
		t.Errorf("refresh did not update cache")
	}

	if _, err := tbl.Refresh(context.Background(), "recZ"); err == nil {
		t.Error("expected error for unknown remote record")
	}
	if _, err := tbl.Refresh(context.Background(), ""); !errors.Is(err, ErrMissingID) {
		t.Errorf("err = %v, want ErrMissingID", err)
	}
}

func TestTable_PublishFailureDoesNotFailOperation(t *testing.T) {
	logger, buf := bufferLogger()
	pub := &recordingPublisher{err: errors.New("bus down")}
	tbl := newReadyTable(t, newFakeAPI(seedRecords()...), WithPublisher(pub), WithLogger(logger))

	if _, err := tbl.Add(context.Background(), &model.Record{Fields: model.Fields{"Name": "C"}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !strings.Contains(buf.String(), "failed to publish event") {
		t.Errorf("log = %s", buf.String())
	}
}

func TestTable_AgainstHTTP(t *testing.T) {
	h := &testHandler{responseBody: `{"records":[{"id":"rec1","createdTime":"2024-01-01T00:00:00.000Z","fields":{"Name":"A","Notes":"n"}}]}`}
	c, _, srv := newTestClient(h)
	defer srv.Close()

	tbl := newReadyTable(t, c, WithAPIURL(srv.URL+"/v0/"))
	if diff := cmp.Diff([]string{"Name", "Notes"}, tbl.Fields()); diff != "" {
		t.Errorf("Fields (-want +got):\n%s", diff)
	}
	if h.path != "/v0/appX/Table 1" {
		t.Errorf("path = %q", h.path)
	}
}

func TestTable_ConcurrentAccess(t *testing.T) {
	tbl := newReadyTable(t, newFakeAPI(seedRecords()...))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = tbl.Add(context.Background(), &model.Record{Fields: model.Fields{"Name": fmt.Sprint(i)}})
			} else {
				_ = tbl.RecordsByField("Name", "A")
				_ = tbl.SortedByDate()
			}
		}()
	}
	wg.Wait()
	if got := len(tbl.Records()); got != 7 {
		t.Errorf("len(Records) = %d, want 7", got)
	}
}

func TestTable_ConcurrentPullAndWrites(t *testing.T) {
	tbl := newReadyTable(t, newFakeAPI(seedRecords()...))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(4)
		go func() {
			defer wg.Done()
			_ = tbl.Pull(ctx)
		}()
		go func() {
			defer wg.Done()
			_ = tbl.Update(ctx, &model.Record{ID: "rec1", Fields: model.Fields{"Name": fmt.Sprint(i)}})
		}()
		go func() {
			defer wg.Done()
			if rec, err := tbl.Add(ctx, &model.Record{Fields: model.Fields{"Name": "new"}}); err == nil {
				_ = tbl.Update(ctx, &model.Record{ID: rec.ID, Fields: model.Fields{"Name": "changed"}})
			}
		}()
		go func() {
			defer wg.Done()
			_, _ = tbl.Refresh(ctx, "rec2")
			_ = tbl.Replace(ctx, &model.Record{ID: "rec2", Fields: model.Fields{"Notes": "y"}})
		}()
	}
	wg.Wait()
	if tbl.RecordByID("rec1") == nil {
		t.Error("rec1 missing after concurrent pulls")
	}
}

// nullListAPI answers list calls with nil entries mixed into the records.
type nullListAPI struct {
	*fakeAPI
}

func (n nullListAPI) ListRecords(ctx context.Context, endpoint string, opts *ListOptions) ([]*model.Record, error) {
	records, err := n.fakeAPI.ListRecords(ctx, endpoint, opts)
	if err != nil {
		return nil, err
	}
	return append([]*model.Record{nil}, append(records, nil)...), nil
}

func TestTable_PullSkipsNilRecords(t *testing.T) {
	tbl := newReadyTable(t, nullListAPI{newFakeAPI(seedRecords()...)})

	if got := len(tbl.Records()); got != 3 {
		t.Fatalf("len(Records) = %d, want 3", got)
	}
	if got := tbl.RecordsByField("Name", "A"); len(got) != 2 {
		t.Errorf("RecordsByField = %v", got)
	}
	if tbl.RecordByID("recZ") != nil {
		t.Error("RecordByID(recZ) should be nil")
	}
	if err := tbl.Delete(context.Background(), &model.Record{ID: "rec2"}); err != nil {
		t.Errorf("Delete: %v", err)
	}
}

func TestTable_PullSkipsNullEntriesOverHTTP(t *testing.T) {
	h := &testHandler{responseBody: `{"records":[null,{"id":"r1","fields":{"Name":"A"}}]}`}
	c, _, srv := newTestClient(h)
	defer srv.Close()

	tbl := newReadyTable(t, c, WithAPIURL(srv.URL+"/v0/"))
	if got := tbl.RecordsByField("Name", "A"); len(got) != 1 || got[0].ID != "r1" {
		t.Errorf("RecordsByField = %v", got)
	}
}

func TestTable_FailFast(t *testing.T) {
	api := newFakeAPI()
	api.failOn["list"] = &APIError{StatusCode: 401, Type: "AUTHENTICATION_REQUIRED"}
	ran := make(chan struct{}, 1)
	tbl := New(context.Background(), testConfig, WithAPI(api),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
		WithReadyTimeout(10*time.Second), WithFailFast(), WithOnReady(func() { ran <- struct{}{} }))

	start := time.Now()
	err := tbl.Ready(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 401 {
		t.Fatalf("Ready err = %v, want the 401 from the initial pull", err)
	}
	if errors.Is(err, ErrReadyTimeout) {
		t.Errorf("err = %v, should not be a timeout", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("Ready waited %v", time.Since(start))
	}
	if !errors.As(tbl.InitErr(), &apiErr) {
		t.Errorf("InitErr = %v", tbl.InitErr())
	}
	select {
	case <-ran:
		t.Error("onReady ran after a failed pull")
	default:
	}
}

func TestTable_FailFastIncompleteConfig(t *testing.T) {
	tbl := New(context.Background(), model.TableConfig{Name: "T"},
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))), WithFailFast())
	if err := tbl.Ready(context.Background()); !errors.Is(err, ErrIncompleteConfig) {
		t.Errorf("Ready err = %v, want ErrIncompleteConfig", err)
	}
}

func TestTable_InitErrNilWhenReady(t *testing.T) {
	tbl := newReadyTable(t, newFakeAPI(seedRecords()...), WithFailFast())
	if err := tbl.InitErr(); err != nil {
		t.Errorf("InitErr = %v", err)
	}
}

func TestTable_RefreshAtAndByField(t *testing.T) {
	api := newFakeAPI(seedRecords()...)
	tbl := newReadyTable(t, api)

	api.mu.Lock()
	api.records[1].Fields["Notes"] = "remote"
	api.mu.Unlock()

	rec, err := tbl.RefreshAt(context.Background(), 1)
	if err != nil {
		t.Fatalf("RefreshAt: %v", err)
	}
	if rec.ID != "rec2" || rec.Fields["Notes"] != "remote" {
		t.Errorf("RefreshAt = %+v", rec)
	}
	if _, err := tbl.RefreshAt(context.Background(), 9); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("RefreshAt(9) err = %v", err)
	}

	rec, err = tbl.RefreshByField(context.Background(), "Name", "A")
	if err != nil {
		t.Fatalf("RefreshByField: %v", err)
	}
	if rec.ID != "rec1" {
		t.Errorf("RefreshByField = %s, want first match rec1", rec.ID)
	}
	if _, err := tbl.RefreshByField(context.Background(), "Name", "nobody"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("err = %v", err)
	}
	if got := api.callCount("get "); got != 2 {
		t.Errorf("get calls = %d, want 2", got)
	}
}
