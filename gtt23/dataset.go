package gtt23

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/robert-malhotra/go-gtt23/internal/container"
)

// Dataset is an open GTT23 container. It owns the underlying file, the
// validated schema information and every index built from it.
//
// A Dataset is not safe for concurrent use. Several Datasets may be open on
// the same file at once.
type Dataset struct {
	store   container.Store
	schema  *Schema
	info    Info
	labelID map[string]uint32

	logger  *slog.Logger
	metrics *metrics
	batch   int
	strict  bool

	indexes map[Field]*Index
	uuids   map[uuid.UUID]uint64
	closed  bool
}

// Open opens the container at path and validates it against DefaultSchema.
//
// A missing file yields ErrNotFound, an unparseable one ErrFormat and a
// container that does not match the schema a *SchemaMismatchError.
func Open(path string, opts ...Option) (*Dataset, error) {
	store, err := container.Open(path)
	if err != nil {
		return nil, err
	}

	d, err := newDataset(store, DefaultSchema(), opts...)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	d.logger.Info("opened dataset",
		"path", path,
		"records", d.info.Records,
		"labels", len(d.info.Labels))
	return d, nil
}

// newDataset validates store against schema and wraps it.
func newDataset(store container.Store, schema *Schema, opts ...Option) (*Dataset, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	info, err := schema.Validate(store)
	if err != nil {
		return nil, err
	}

	labelID := make(map[string]uint32, len(info.Labels))
	for i, l := range info.Labels {
		labelID[l] = uint32(i)
	}

	return &Dataset{
		store:   store,
		schema:  schema,
		info:    *info,
		labelID: labelID,
		logger:  o.logger,
		metrics: newMetrics(o.registerer),
		batch:   o.batchSize,
		strict:  o.strict,
		indexes: make(map[Field]*Index),
	}, nil
}

// Close releases the file and all cached indexes. Closing an already closed
// Dataset is a no-op.
func (d *Dataset) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.indexes = nil
	d.uuids = nil
	return d.store.Close()
}

// Len returns the number of records.
func (d *Dataset) Len() uint64 {
	return d.info.Records
}

// Info returns the validated container description.
func (d *Dataset) Info() Info {
	info := d.info
	info.Labels = slices.Clone(d.info.Labels)
	return info
}

// Labels returns the label vocabulary in storage order.
func (d *Dataset) Labels() []string {
	return slices.Clone(d.info.Labels)
}

// LabelID returns the vocabulary index of label.
func (d *Dataset) LabelID(label string) (uint32, bool) {
	id, ok := d.labelID[label]
	return id, ok
}

// Schema returns the schema the dataset was validated against.
func (d *Dataset) Schema() *Schema {
	return d.schema
}

// checkRange validates the half-open record range [start, end).
func (d *Dataset) checkRange(start, end uint64) error {
	if d.closed {
		return ErrClosed
	}
	if start > end || end > d.info.Records {
		return &container.RangeError{
			Path:   "records",
			Range:  container.Range{Start: start, End: end},
			Extent: d.info.Records,
		}
	}
	return nil
}
