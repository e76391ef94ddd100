package routing

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

type converter struct {
	name string
	expr string
	full *regexp.Regexp
	// toPath normalizes a value before it is written by Reverse.
	toPath func(string) (string, error)
}

func newConverter(name, expr string, toPath func(string) (string, error)) converter {
	if toPath == nil {
		toPath = func(v string) (string, error) { return v, nil }
	}
	return converter{
		name:   name,
		expr:   expr,
		full:   regexp.MustCompile("^(?:" + expr + ")$"),
		toPath: toPath,
	}
}

var converters = map[string]converter{
	"str":  newConverter("str", `[^/]+`, nil),
	"path": newConverter("path", `.+`, nil),
	"slug": newConverter("slug", `[-a-zA-Z0-9_]+`, nil),
	"int": newConverter("int", `[0-9]+`, func(v string) (string, error) {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(n, 10), nil
	}),
	"uuid": newConverter("uuid", `[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`, func(v string) (string, error) {
		id, err := uuid.Parse(v)
		if err != nil {
			return "", fmt.Errorf("invalid uuid: %w", err)
		}
		return id.String(), nil
	}),
}
