package csv

import (
	"log/slog"

	"github.com/leapstack-labs/apstab/pkg/sink"
)

func init() {
	sink.Register("csv", func(logger *slog.Logger) sink.Sink { return New(logger) })
}
