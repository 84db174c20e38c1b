package hdf5

import (
	"fmt"
	"strings"
)

// splitAttrPath splits an "/object@name" attribute path. The object part
// may be empty or relative; it is returned absolute, with "/" for root
// attributes such as "/@schema".
func splitAttrPath(p string) (object, name string, err error) {
	at := strings.LastIndexByte(p, '@')
	if at < 0 {
		return "", "", fmt.Errorf("attribute path %q has no '@': %w", p, ErrInvalidPath)
	}
	object, name = p[:at], p[at+1:]
	if name == "" {
		return "", "", fmt.Errorf("attribute path %q has no name: %w", p, ErrInvalidPath)
	}
	return "/" + strings.Trim(object, "/"), name, nil
}

// attrPath is the inverse of splitAttrPath.
func attrPath(object, name string) string {
	if object == "/" {
		return "/@" + name
	}
	return object + "@" + name
}

// splitPath returns the non-empty components of a slash-separated path.
func splitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
}
