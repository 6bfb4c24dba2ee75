package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"mediagen/internal/domain"
)

// fakeSQL serves canned responses keyed by a substring of the statement.
type fakeSQL struct {
	execTags map[string]pgconn.CommandTag
	rowScans map[string]func(dest ...any) error
}

func (f *fakeSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	for key, tag := range f.execTags {
		if strings.Contains(query, key) {
			return tag, nil
		}
	}
	return pgconn.NewCommandTag("UPDATE 0"), nil
}

func (f *fakeSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	for key, scan := range f.rowScans {
		if strings.Contains(query, key) {
			return scanFunc(scan)
		}
	}
	return scanFunc(func(dest ...any) error { return pgx.ErrNoRows })
}

func (f *fakeSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("not supported in this test")
}

type scanFunc func(dest ...any) error

func (s scanFunc) Scan(dest ...any) error { return s(dest...) }

func TestMarkCompletedOnTerminalJobIsInvalidTransition(t *testing.T) {
	r := NewJobRepository(&fakeSQL{
		execTags: map[string]pgconn.CommandTag{"'completed'": pgconn.NewCommandTag("UPDATE 0")},
		rowScans: map[string]func(dest ...any) error{
			"select status": func(dest ...any) error {
				*(dest[0].(*domain.JobStatus)) = domain.JobStatusCancelled
				return nil
			},
		},
	})
	err := r.MarkCompleted(context.Background(), "job-1", domain.Result{FilePath: "/x.png"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestMarkFailedOnUnknownJobIsNotFound(t *testing.T) {
	r := NewJobRepository(&fakeSQL{})
	err := r.MarkFailed(context.Background(), "ghost", "boom")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetExternalIDIsIdempotentForSameHandle(t *testing.T) {
	now := time.Now().UTC()
	r := NewJobRepository(&fakeSQL{
		// The conditional update matches no row: the handle is already set.
		execTags: map[string]pgconn.CommandTag{"external_id = ''": pgconn.NewCommandTag("UPDATE 0")},
		rowScans: map[string]func(dest ...any) error{
			"from jobs": func(dest ...any) error {
				*(dest[0].(*string)) = "job-1"             // id
				*(dest[4].(*domain.JobStatus)) = "processing" // status
				*(dest[5].(*string)) = "ext-1"             // external_id
				*(dest[11].(*time.Time)) = now
				*(dest[12].(*time.Time)) = now
				return nil
			},
		},
	})
	if err := r.SetExternalID(context.Background(), "job-1", "ext-1"); err != nil {
		t.Fatalf("re-applying same handle should be a no-op, got %v", err)
	}
	if err := r.SetExternalID(context.Background(), "job-1", "ext-2"); err == nil {
		t.Fatal("conflicting handle must be rejected")
	}
}

func TestSetExternalIDAppliesWhenEmpty(t *testing.T) {
	r := NewJobRepository(&fakeSQL{
		execTags: map[string]pgconn.CommandTag{"external_id = ''": pgconn.NewCommandTag("UPDATE 1")},
	})
	if err := r.SetExternalID(context.Background(), "job-1", "ext-1"); err != nil {
		t.Fatalf("SetExternalID: %v", err)
	}
}
