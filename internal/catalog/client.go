package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/region"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var (
	ErrQueryTimeout = errors.New("catalog query timed out")
	ErrQuery        = errors.New("catalog query failed")
)

// Row is one catalog product: output field name to rendered value.
type Row map[string]string

// RowIterator yields rows lazily. Next returns iterator.Done after the last
// row.
type RowIterator interface {
	Fields() []string
	Next() (Row, error)
}

// Service runs a catalog query.
type Service interface {
	Query(ctx context.Context, sql string) (RowIterator, error)
}

// BigQuery runs legacy-SQL queries against the public Cloud Storage geo
// index.
type BigQuery struct {
	client  *bigquery.Client
	timeout time.Duration
}

// NewBigQuery connects with the default Google credentials. An empty project
// falls back to the credentials' project.
func NewBigQuery(ctx context.Context, project string, timeout time.Duration) (*BigQuery, error) {
	creds, err := google.FindDefaultCredentials(ctx, bigquery.Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to find Google credentials: %w", err)
	}
	if project == "" {
		project = creds.ProjectID
	}
	if project == "" {
		return nil, fmt.Errorf("no GCP project configured and none in the default credentials")
	}

	client, err := bigquery.NewClient(ctx, project, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	return &BigQuery{client: client, timeout: timeout}, nil
}

func (b *BigQuery) Close() error {
	return b.client.Close()
}

// Query runs sql and waits at most the configured timeout for the job to
// finish. Rows are then fetched page by page as the iterator advances.
func (b *BigQuery) Query(ctx context.Context, sql string) (RowIterator, error) {
	q := b.client.Query(sql)
	q.UseLegacySQL = true

	runCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	job, err := q.Run(runCtx)
	if err != nil {
		return nil, queryError(runCtx, err)
	}
	status, err := job.Wait(runCtx)
	if err != nil {
		return nil, queryError(runCtx, err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	rows := &bigQueryRows{it: it}
	// The iterator only learns the schema with the first page.
	if err := rows.prefetch(); err != nil {
		return nil, err
	}
	if len(rows.fields) == 0 && status.Statistics != nil {
		if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			rows.fields = fieldNames(stats.Schema)
		}
	}
	return rows, nil
}

// Search builds the query for box and ds and runs it on svc. The rendered
// query is returned along with the rows.
func Search(ctx context.Context, svc Service, box region.BoundingBox, ds Dataset) (RowIterator, string, error) {
	sql, err := BuildQuery(box, ds)
	if err != nil {
		return nil, "", err
	}
	rows, err := svc.Query(ctx, sql)
	if err != nil {
		return nil, sql, err
	}
	return rows, sql, nil
}

func queryError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrQueryTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrQuery, err)
}

type bigQueryRows struct {
	it     *bigquery.RowIterator
	fields []string
	head   Row
	err    error
}

func (r *bigQueryRows) prefetch() error {
	row, err := r.read()
	if errors.Is(err, iterator.Done) {
		r.err = iterator.Done
		return nil
	}
	if err != nil {
		return err
	}
	r.head = row
	return nil
}

func (r *bigQueryRows) read() (Row, error) {
	var values []bigquery.Value
	if err := r.it.Next(&values); err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, iterator.Done
		}
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	if r.fields == nil {
		r.fields = fieldNames(r.it.Schema)
	}
	return zip(r.fields, values), nil
}

func (r *bigQueryRows) Fields() []string { return r.fields }

func (r *bigQueryRows) Next() (Row, error) {
	if r.head != nil {
		row := r.head
		r.head = nil
		return row, nil
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.read()
}

func fieldNames(schema bigquery.Schema) []string {
	names := make([]string, 0, len(schema))
	for _, f := range schema {
		names = append(names, f.Name)
	}
	return names
}

func zip(fields []string, values []bigquery.Value) Row {
	row := make(Row, len(fields))
	for i, name := range fields {
		if i < len(values) {
			row[name] = FormatValue(values[i])
		}
	}
	return row
}

// FormatValue renders a query result value as it is written to CSV.
func FormatValue(v bigquery.Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
