package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/scancache/internal/logging"
)

// setupLogging configures logging from the resolved config and the --debug
// flag, then stores the logger and a trace ID on the command context.
func (a *app) setupLogging(cmd *cobra.Command) {
	loggingCfg := a.cfg.LoggingConfig()

	if a.flags.debug {
		loggingCfg.Level = "debug"
		loggingCfg.Format = logging.FormatConsole
		loggingCfg.File = ""
	}

	result := logging.NewLogger(loggingCfg)
	a.logResult = &result
	a.logger = logging.ComponentLogger(result.Logger, "cli")

	if result.FallbackReason != "" {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s; logging to stderr\n", result.FallbackReason)
	}

	ctx := cmd.Context()
	ctx = logging.ContextWithTraceID(ctx, logging.GetOrGenerateTraceID(ctx))
	ctx = a.logger.WithContext(ctx)
	cmd.SetContext(ctx)

	a.logger.Debug().Ctx(ctx).Str("command", cmd.Name()).Msg("command started")
}
