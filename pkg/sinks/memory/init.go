package memory

import (
	"log/slog"

	"github.com/leapstack-labs/apstab/pkg/sink"
)

// Name is the registered output type.
const Name = "memory"

func init() {
	sink.Register(Name, func(logger *slog.Logger) sink.Sink { return New(logger) })
}
