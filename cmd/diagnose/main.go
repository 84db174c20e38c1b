// Command diagnose prints the object tree of an HDF5 file and checks it
// against the GTT23 schema.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/robert-malhotra/go-gtt23/gtt23"
	"github.com/robert-malhotra/go-gtt23/internal/container"
	"github.com/robert-malhotra/go-gtt23/internal/hdf5"
	"github.com/robert-malhotra/go-gtt23/internal/message"
)

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "diagnose: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	attrs := flag.Bool("attrs", true, "Print attribute values")
	flag.Parse()
	if flag.NArg() != 1 {
		return errors.New("usage: diagnose [-attrs=false] FILE")
	}
	return diagnose(os.Stdout, flag.Arg(0), *attrs)
}

func diagnose(w io.Writer, path string, withAttrs bool) error {
	f, err := hdf5.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(w, "=== %s ===\n", path)
	fmt.Fprintf(w, "superblock version %d\n\n", f.Version())

	store, err := container.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	var attrs []hdf5.AttrValue
	err = hdf5.Walk(f.Root(), func(o hdf5.Object) error {
		indent := strings.Repeat("  ", o.Depth())
		switch {
		case o.Err != nil:
			fmt.Fprintf(w, "%s%s: ERROR %v\n", indent, o.Path, o.Err)
		case o.Group != nil:
			fmt.Fprintf(w, "%sgroup %s (%d members)\n", indent, o.Path, len(o.Members))
		default:
			fmt.Fprintf(w, "%sdataset %s %s\n", indent, o.Path, describe(store, o.Dataset))
		}
		if withAttrs {
			attrs = append(attrs, o.Attrs()...)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if withAttrs {
		fmt.Fprintln(w, "\nattributes:")
		for _, a := range attrs {
			if a.Err != nil {
				fmt.Fprintf(w, "  %s: ERROR %v\n", a.Path, a.Err)
				continue
			}
			fmt.Fprintf(w, "  %s = %v\n", a.Path, a.Value)
		}
	}

	fmt.Fprintln(w, "\nschema check:")
	info, err := gtt23.DefaultSchema().Validate(store)
	if err != nil {
		fmt.Fprintf(w, "  FAIL %v\n", err)
		return nil
	}
	fmt.Fprintf(w, "  OK %s v%d, %d records, %d labels\n", info.Name, info.Version, info.Records, len(info.Labels))
	return nil
}

// describe formats a dataset's shape, element type and storage.
func describe(store container.Store, ds *hdf5.Dataset) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v", ds.Dims())
	if info, err := store.Describe(ds.Path()); err == nil {
		fmt.Fprintf(&b, " %s", info.Type)
	}
	if l := ds.Layout(); l != nil {
		fmt.Fprintf(&b, " layout=%s", l.Class)
		if l.Class == message.LayoutChunked {
			fmt.Fprintf(&b, "%v index=%s", l.ChunkDims, l.ChunkIndexType)
		}
	}
	if filters := ds.Filters(); len(filters) > 0 {
		fmt.Fprintf(&b, " filters=%s", filterNames(filters))
	}
	return b.String()
}

func filterNames(filters []message.FilterInfo) string {
	names := make([]string, len(filters))
	for i, fi := range filters {
		switch fi.ID {
		case message.FilterDeflate:
			names[i] = "deflate"
		case message.FilterShuffle:
			names[i] = "shuffle"
		case message.FilterZstd:
			names[i] = "zstd"
		default:
			names[i] = fmt.Sprintf("%d", fi.ID)
		}
	}
	return strings.Join(names, ",")
}
