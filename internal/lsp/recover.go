package lsp

import (
	"fmt"

	"github.com/forgescript/forgescript-lsp/internal/logging"
)

// guard recovers a panic inside a request handler, logs it, and lets the
// caller substitute a safe zero-value result instead of taking the
// connection down.
func guard(where string) {
	if r := recover(); r != nil {
		logging.Warn(fmt.Sprintf("recovered panic in %s", where), fmt.Errorf("%v", r))
	}
}
