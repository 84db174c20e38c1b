package hdf5

import "path"

// Object is a group or dataset reached by Walk.
type Object struct {
	Path string

	// One of Group and Dataset is set unless the object could not be
	// opened, in which case Err says why.
	Group   *Group
	Dataset *Dataset

	// Members lists a group's entries. When listing fails Err is set and
	// the group is not descended into.
	Members []string

	Err error
}

// Depth is the number of path components below the root.
func (o Object) Depth() int {
	return len(splitPath(o.Path))
}

// AttrValue is one decoded attribute of a walked object.
type AttrValue struct {
	Path  string // "/object@name"
	Value any
	Err   error
}

// Attrs decodes the object's attributes in storage order.
func (o Object) Attrs() []AttrValue {
	var names []string
	var attr func(string) *Attribute
	switch {
	case o.Group != nil:
		names, attr = o.Group.Attrs(), o.Group.Attr
	case o.Dataset != nil:
		names, attr = o.Dataset.Attrs(), o.Dataset.Attr
	default:
		return nil
	}

	values := make([]AttrValue, len(names))
	for i, name := range names {
		values[i].Path = attrPath(o.Path, name)
		values[i].Value, values[i].Err = attr(name).Value()
	}
	return values
}

// Walk calls fn for g and every object below it, depth first, each group
// before its members and members in storage order. Walk stops at the first
// error fn returns and returns it.
func Walk(g *Group, fn func(Object) error) error {
	o := Object{Path: g.Path(), Group: g}
	o.Members, o.Err = g.Members()
	if err := fn(o); err != nil || o.Err != nil {
		return err
	}

	for _, name := range o.Members {
		p := path.Join(g.Path(), name)
		obj, err := g.open(name)
		if err != nil {
			err = fn(Object{Path: p, Err: err})
		} else if child, ok := obj.(*Group); ok {
			err = Walk(child, fn)
		} else {
			err = fn(Object{Path: p, Dataset: obj.(*Dataset)})
		}
		if err != nil {
			return err
		}
	}
	return nil
}
