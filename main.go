package main

import (
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fragmede/authpanel/internal/api"
	"github.com/fragmede/authpanel/internal/cache"
	"github.com/fragmede/authpanel/internal/config"
	"github.com/fragmede/authpanel/internal/session"
	"github.com/fragmede/authpanel/internal/ui"
)

func main() {
	var (
		cfg        config.Config
		configPath string
		baseURL    string
	)

	root := &cobra.Command{
		Use:           "authpanel",
		Short:         "Terminal client for the authpanel login API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is normal.
			_ = godotenv.Load(".env")

			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if baseURL != "" {
				cfg.BaseURL = baseURL
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cfg)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <config dir>/authpanel/config.yaml)")
	root.PersistentFlags().StringVar(&baseURL, "base-url", "", "API base URL (env "+config.EnvBaseURL+")")

	root.AddCommand(
		statusCmd(&cfg),
		logoutCmd(&cfg),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runtime is everything a command needs to talk to the server with the
// stored session.
type runtime struct {
	db      *cache.DB
	jar     *api.PersistentJar
	client  *api.Client
	ctrl    *session.Controller
	logFile *os.File
}

func openRuntime(cfg config.Config) (*runtime, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating config dir: %w", err)
	}

	// The terminal belongs to the UI or to command output; logs go to a file.
	logFile, err := tea.LogToFile(cfg.LogPath, "authpanel")
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}

	db, err := cache.Open(cfg.DBPath)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening cookie store: %w", err)
	}
	if n, err := db.PruneCookies(); err != nil {
		log.Printf("pruning cookies: %v", err)
	} else if n > 0 {
		log.Printf("pruned %d expired cookies", n)
	}

	rt := &runtime{db: db, logFile: logFile}
	if err := rt.connect(cfg); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) connect(cfg config.Config) error {
	origin, err := api.ParseBaseURL(cfg.BaseURL)
	if err != nil {
		return err
	}
	rt.jar, err = api.NewPersistentJar(rt.db, origin)
	if err != nil {
		return fmt.Errorf("restoring cookies: %w", err)
	}
	rt.client, err = api.NewClient(cfg.BaseURL, rt.jar, cfg.RequestTimeout)
	if err != nil {
		return err
	}
	rt.ctrl = session.NewController(rt.client)
	rt.ctrl.ForgetOnLogout(rt.jar)
	return nil
}

func (rt *runtime) Close() {
	if err := rt.db.Close(); err != nil {
		log.Printf("closing cookie store: %v", err)
	}
	rt.logFile.Close()
}

func runTUI(cfg config.Config) error {
	rt, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	log.Printf("starting against %s", rt.client.BaseURL())
	app := ui.NewApp(cfg, rt.ctrl, rt.client)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
