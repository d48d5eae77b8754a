package logging

import (
	"fmt"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGELFHandler ships JSON records to a Graylog GELF UDP input. Each
// record becomes the short message of one GELF datagram.
func NewGELFHandler(address, level string) (slog.Handler, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("creating GELF writer for %s: %w", address, err)
	}
	return slog.NewJSONHandler(w, handlerOptions(parseLevel(level))), nil
}
