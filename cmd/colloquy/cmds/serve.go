package cmds

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/colloquy/pkg/dialogue"
	"github.com/go-go-golems/colloquy/pkg/engine"
	"github.com/go-go-golems/colloquy/pkg/engine/ollama"
	openaiengine "github.com/go-go-golems/colloquy/pkg/engine/openai"
	"github.com/go-go-golems/colloquy/pkg/events"
	"github.com/go-go-golems/colloquy/pkg/server"
)

type serveSettings struct {
	addr        string
	ollamaURL   string
	maxSessions int
	idleTimeout time.Duration
	turnTimeout time.Duration
	pretty      bool
	verbose     bool
}

func newServeCommand() *cobra.Command {
	settings := &serveSettings{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dialogue websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, settings)
		},
	}

	cmd.Flags().StringVar(&settings.addr, "addr", ":8088", "listen address")
	cmd.Flags().StringVar(&settings.ollamaURL, "ollama-url", ollama.DefaultBaseURL, "base URL of the ollama server")
	cmd.Flags().IntVar(&settings.maxSessions, "max-sessions", dialogue.DefaultMaxSessions, "maximum concurrent conversations")
	cmd.Flags().DurationVar(&settings.idleTimeout, "idle-timeout", 0, "reap conversation streams idle for this long (0 uses the default)")
	cmd.Flags().DurationVar(&settings.turnTimeout, "turn-timeout", 2*time.Minute, "abort a generation call after this long (0 disables)")
	cmd.Flags().BoolVar(&settings.pretty, "pretty", false, "print a styled event stream to stdout")
	cmd.Flags().BoolVar(&settings.verbose, "verbose-events", false, "log event router internals")

	return cmd
}

func runServe(cmd *cobra.Command, settings *serveSettings) error {
	ctx := cmd.Context()

	engines := buildEngineRegistry(settings)
	catalog, err := dialogue.DefaultCatalog()
	if err != nil {
		return err
	}

	router, err := events.NewEventRouter(events.WithVerbose(settings.verbose))
	if err != nil {
		return errors.Wrap(err, "could not build event router")
	}
	if settings.pretty {
		events.AddPrettyHandlers(router, os.Stdout)
	}

	registry := dialogue.NewRegistry(engines, catalog, router.Publisher,
		dialogue.WithMaxSessions(settings.maxSessions),
		dialogue.WithDefaultTurnTimeout(settings.turnTimeout))

	srv := server.New(ctx, server.Settings{
		Addr:        settings.addr,
		IdleTimeout: settings.idleTimeout,
	}, registry, router)

	return srv.Run(ctx)
}

// buildEngineRegistry registers every reachable provider. Ollama is always
// available; OpenAI only when an API key is present in the environment.
func buildEngineRegistry(settings *serveSettings) *engine.Registry {
	engines := engine.NewRegistry()
	engines.Register("ollama", ollama.New(settings.ollamaURL))
	if os.Getenv("OPENAI_API_KEY") != "" {
		engines.Register("openai", openaiengine.New())
		log.Info().Msg("openai engine enabled")
	}
	return engines
}
