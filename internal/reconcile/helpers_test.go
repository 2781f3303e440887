package reconcile

import (
	"context"
	"io"

	"github.com/melih-ucgun/warden/internal/core"
)

// testCtx returns a quiet run context for reconciler tests.
func testCtx() *core.RunContext {
	ctx := core.NewRunContext(context.Background(), false)
	ctx.Logger = core.NewDefaultLogger(io.Discard, core.LevelError)
	ctx.Stdout = io.Discard
	ctx.Stderr = io.Discard
	return ctx
}
