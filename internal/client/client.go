// Package client talks to a remote tabular-data service. RecordsAPI is the
// transport (HTTPClient implements it over the service's REST API) and Table
// keeps an in-memory mirror of one remote table on top of it.
package client

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/airpuck/internal/model"
)

// DefaultAPIURL is the root of the hosted service's REST API.
const DefaultAPIURL = "https://api.airtable.com/v0/"

// RecordsAPI is the request/response exchange a Table is built on. Every
// method addresses a table by its endpoint URL (see Endpoint).
type RecordsAPI interface {
	ListRecords(ctx context.Context, endpoint string, opts *ListOptions) ([]*model.Record, error)
	GetRecord(ctx context.Context, endpoint, id string) (*model.Record, error)
	CreateRecord(ctx context.Context, endpoint string, fields model.Fields) (*model.Record, error)
	UpdateRecord(ctx context.Context, endpoint, id string, fields model.Fields) (*model.Record, error)
	ReplaceRecord(ctx context.Context, endpoint, id string, fields model.Fields) (*model.Record, error)
	DeleteRecord(ctx context.Context, endpoint, id string) error
}

// ListOptions narrows a ListRecords call.
type ListOptions struct {
	// MaxRecords caps the number of records returned. Zero means no cap.
	MaxRecords int
}

// ListRecordsResponse is the body of a successful list call.
type ListRecordsResponse struct {
	Records []*model.Record `json:"records"`
}

// DeleteRecordResponse is the body of a successful delete call.
type DeleteRecordResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

var (
	// ErrIncompleteConfig is returned when the table name, base id or api key is missing.
	ErrIncompleteConfig = errors.New("table config incomplete")
	// ErrRecordNotFound is returned when update or delete targets an id absent from the cache.
	ErrRecordNotFound = errors.New("no record found")
	// ErrReadyTimeout is returned by Ready when initialization did not finish in time.
	ErrReadyTimeout = errors.New("timed out waiting for table to become ready")
	// ErrMissingFields is returned when a record passed to add/update has no fields mapping.
	ErrMissingFields = errors.New("record has no fields")
	// ErrMissingID is returned when a record passed to update/delete has no id.
	ErrMissingID = errors.New("record has no id")
)

// Endpoint builds the URL of a table: apiURL, then the base id, then the
// path-escaped table name.
func Endpoint(apiURL, baseID, table string) string {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return strings.TrimRight(apiURL, "/") + "/" + baseID + "/" + url.PathEscape(table)
}

func recordURL(endpoint, id string) string {
	return endpoint + "/" + url.PathEscape(id)
}
