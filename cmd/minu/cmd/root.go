package cmd

import (
	"fmt"
	"net/http"

	"github.com/jrsteele09/minu-sso/flow"
	"github.com/jrsteele09/minu-sso/internal/config"
	"github.com/jrsteele09/minu-sso/internal/logging"
	"github.com/jrsteele09/minu-sso/kv"
	"github.com/jrsteele09/minu-sso/kv/filekv"
	"github.com/jrsteele09/minu-sso/services"
	"github.com/jrsteele09/minu-sso/tokens"
	"github.com/spf13/cobra"
)

var (
	sessionFile string
	logLevel    string
)

// newTokenClient is replaced in tests
var newTokenClient = func(cfg config.Config) flow.TokenClient {
	return tokens.NewClient(
		tokens.WithHTTPClient(&http.Client{Timeout: cfg.GetHTTPTimeout()}),
		tokens.WithWorkersURL(cfg.GetWorkersAPIURL()),
	)
}

var rootCmd = &cobra.Command{
	Use:   "minu",
	Short: "Sign in to the Minu services from the terminal",
	Long: `minu signs you in to the Minu services (find, frame, build, keep) with
OAuth 2.0 and PKCE, and keeps the session in a local file.

Just run:
  minu login --service find

Your browser will open, you'll approve access, and the session is stored in
~/.minu/session.json.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logLevel, true)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session-file", "", "session file (default ~/.minu/session.json or $SESSION_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

func Execute() error {
	return rootCmd.Execute()
}

// app is what every command works with
type app struct {
	cfg      config.Config
	registry services.Registry
	store    kv.Store
	manager  *flow.Manager
}

func newApp() (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}

	// The callback always lands on the loopback receiver, whose port is only known
	// at login time, so no redirect allow-list applies here.
	registry, err := services.NewRegistryFromOrigins(cfg.GetClientID(), nil, nil, cfg.GetServiceOrigins())
	if err != nil {
		return nil, err
	}

	path := sessionFile
	if path == "" {
		path = cfg.GetSessionFile()
	}
	if path == "" {
		path = filekv.DefaultPath()
	}
	store := filekv.New(path)

	manager := flow.NewManager(registry, newTokenClient(cfg), store,
		flow.WithSessionTTL(cfg.GetSessionTTL()),
		flow.WithPendingTTL(cfg.GetPendingTTL()),
		flow.WithDefaultScopes(cfg.GetScopes()...),
	)
	return &app{cfg: cfg, registry: registry, store: store, manager: manager}, nil
}

func parseService(name string) (services.ID, error) {
	id, err := services.Parse(name)
	if err != nil {
		return "", fmt.Errorf("unknown service %q (expected one of %v)", name, services.All())
	}
	return id, nil
}
