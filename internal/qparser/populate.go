package qparser

import "strings"

// compilePopulate parses `a.f1,a.f2,b:c.f3` into consolidated populate trees.
// `:` descends one relationship level, `.` after a path starts its select.
func compilePopulate(raw string) []*Populate {
	var out []*Populate
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if node := populateChain(strings.Split(entry, ":")); node != nil {
			out = mergePopulate(out, node)
		}
	}
	return out
}

func populateChain(segments []string) *Populate {
	if len(segments) == 0 {
		return nil
	}
	path, sel, _ := strings.Cut(segments[0], ".")
	if path == "" {
		return populateChain(segments[1:])
	}
	node := &Populate{Path: path, Select: sel}
	if child := populateChain(segments[1:]); child != nil {
		node.Populate = []*Populate{child}
	}
	return node
}

// mergePopulate adds node to list, folding it into a sibling with the same path.
func mergePopulate(list []*Populate, node *Populate) []*Populate {
	for _, e := range list {
		if e.Path != node.Path {
			continue
		}
		e.Select = joinSelect(e.Select, node.Select)
		for _, child := range node.Populate {
			e.Populate = mergePopulate(e.Populate, child)
		}
		return list
	}
	return append(list, node)
}

func joinSelect(a, b string) string {
	if b == "" {
		return a
	}
	if a == "" {
		return b
	}
	fields := strings.Fields(a)
	for _, f := range strings.Fields(b) {
		dup := false
		for _, existing := range fields {
			if existing == f {
				dup = true
				break
			}
		}
		if !dup {
			fields = append(fields, f)
		}
	}
	return strings.Join(fields, " ")
}
