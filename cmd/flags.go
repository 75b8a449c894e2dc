package main

import "strings"

// stringList accumulates repeated occurrences of a flag, e.g.
// -include '*.go' -include '*.md'.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}
