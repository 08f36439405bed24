// Package relay receives files over HTTP and relays them into object storage.
package relay

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/stagebox/service/internal/pending"
	"github.com/stagebox/service/internal/sink"
	"github.com/stagebox/service/internal/storage"
	"github.com/stagebox/service/internal/upload"
)

// DefaultMaxFiles caps the number of files accepted per request.
const DefaultMaxFiles = 15

var (
	// ErrNoFiles is returned when a request carries no files.
	ErrNoFiles = errors.New("no files uploaded")
	// ErrTooManyFiles is returned when a request exceeds the per-call cap.
	ErrTooManyFiles = errors.New("too many files")
)

// fileIDPattern matches IDs produced by sink.StorageSink.
var fileIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}(\.[a-z0-9]{1,15})?$`)

// Ledger records relayed files. Repository is the PostgreSQL implementation.
type Ledger interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
}

// Result describes a relayed batch. FileIDs lists stored files in request
// order; on partial failure it holds only the ones that made it.
type Result struct {
	FileIDs []string
	Outcome *upload.SessionOutcome
}

// Options configures a Service.
type Options struct {
	Prefix   string
	MaxFiles int
}

// Service relays batches of files into storage, one concurrent transfer per
// file, and records them in the ledger when one is configured.
type Service struct {
	store    storage.Storage
	sink     *sink.StorageSink
	coord    *upload.Coordinator
	ledger   Ledger
	logger   *log.Logger
	maxFiles int
}

// NewService creates a Service. ledger may be nil.
func NewService(store storage.Storage, ledger Ledger, logger *log.Logger, opts Options) *Service {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	logger = logger.WithPrefix("relay")
	return &Service{
		store:    store,
		sink:     sink.NewStorageSink(store, opts.Prefix),
		coord:    upload.NewCoordinator(upload.WithLogger(logger)),
		ledger:   ledger,
		logger:   logger,
		maxFiles: opts.MaxFiles,
	}
}

// MaxFiles returns the per-request file cap.
func (s *Service) MaxFiles() int {
	return s.maxFiles
}

// Relay stores items. It waits for every transfer to settle; when any
// failed, the returned error joins the failures and Result still lists the
// files that were stored.
func (s *Service) Relay(ctx context.Context, client string, items []pending.Item) (*Result, error) {
	if len(items) > s.maxFiles {
		return nil, fmt.Errorf("%w: got %d, at most %d per request", ErrTooManyFiles, len(items), s.maxFiles)
	}

	set := pending.NewSet()
	set.Add(items...)
	out, err := s.coord.Commit(ctx, set, s.sink)
	if errors.Is(err, upload.ErrEmpty) {
		return nil, ErrNoFiles
	}
	if err != nil {
		return nil, err
	}

	res := &Result{Outcome: out}
	for _, o := range out.Outcomes {
		if !o.Succeeded {
			continue
		}
		res.FileIDs = append(res.FileIDs, o.TransferID)
		s.record(ctx, client, o)
	}
	if out.Status == upload.PartialFailure {
		return res, out.Err()
	}
	return res, nil
}

// Get returns the ledger record for id.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	if s.ledger == nil || !fileIDPattern.MatchString(id) {
		return nil, ErrNotFound
	}
	rec, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.URL = s.store.PublicURL(rec.ObjectKey)
	return rec, nil
}

// Delete removes a relayed file from storage and from the ledger.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !fileIDPattern.MatchString(id) {
		return ErrNotFound
	}
	if s.ledger == nil {
		return s.store.Delete(ctx, s.sink.Key(id))
	}

	rec, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, rec.ObjectKey); err != nil {
		return err
	}
	return s.ledger.Delete(ctx, id)
}

// IsNotFound returns true when the error indicates an unknown file ID.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func (s *Service) record(ctx context.Context, client string, o upload.Outcome) {
	s.logger.Info("stored", "name", o.Item.Name, "id", o.TransferID, "size", humanize.Bytes(uint64(o.Item.Size())))
	if s.ledger == nil {
		return
	}
	rec := &Record{
		ID:          o.TransferID,
		ObjectKey:   s.sink.Key(o.TransferID),
		Name:        o.Item.Name,
		ContentType: o.Item.MIMEType,
		Size:        o.Item.Size(),
		Client:      client,
	}
	// the object is already stored; a ledger miss must not fail the upload
	if err := s.ledger.Create(ctx, rec); err != nil {
		s.logger.Error("ledger insert failed", "id", rec.ID, "err", err)
	}
}
