package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/apstab/pkg/sink"
)

func TestOutputTypesRegistered(t *testing.T) {
	for _, name := range []string{"csv", "duckdb", "memory", "postgres", "sqlite"} {
		assert.True(t, sink.IsRegistered(name), "output type %q should be registered", name)
	}
}
