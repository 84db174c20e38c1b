// Package gtt23 provides typed, read-only access to the GTT23 dataset of Tor
// exit relay traces stored in an HDF5 container.
//
// # Container Layout
//
// A GTT23 container holds N trace records split over per-record columns:
//
//	/                  attributes schema, version, record_count, label_count, note
//	/labels            website label vocabulary
//	/traces/id         uint64 trace identifier
//	/traces/uuid       32 hex digit UUID
//	/traces/domain     contacted domain, up to 44 bytes
//	/traces/label      uint32 index into /labels
//	/traces/relay      uint32 exit relay identifier
//	/traces/day        uint8 measurement day
//	/traces/port       uint16 destination port
//	/traces/length     uint32 number of cells
//	/cells/time        variable-length float64 timestamps
//	/cells/size        variable-length uint16 cell sizes
//	/cells/direction   variable-length int8 directions
//	/cells/cell_cmd    variable-length uint8 Tor cell commands
//	/cells/relay_cmd   variable-length uint8 Tor relay commands
//
// [Open] validates the layout once against [DefaultSchema] and fails with a
// [*SchemaMismatchError] on the first difference.
//
// # Reading Records
//
//	ds, err := gtt23.Open("gtt23.hdf5")
//	if err != nil {
//	    return err
//	}
//	defer ds.Close()
//
//	for trace, err := range ds.ByLabel("wikipedia.org") {
//	    if err != nil {
//	        log.Print(err) // a corrupt record, the scan continues
//	        continue
//	    }
//	    fmt.Println(trace.UUID, trace.Len(), trace.Duration())
//	}
//
// Iterators are lazy and restartable. Filtered iterators build an [Index]
// of the filtered field with one bulk column read on first use; the index
// is kept until the dataset is closed.
//
// # Errors
//
// Per-record problems are reported as [*CorruptRecordError] values inside
// iteration and never stop a scan. Timestamps that decrease within a trace
// are logged and counted but accepted, unless [WithStrictTimestamps] is
// given; [Trace.CheckMonotonic] reports them on demand.
package gtt23
