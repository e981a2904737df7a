package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"reflow_oven/internal/config"
	"reflow_oven/internal/logger"
	"reflow_oven/internal/repository"
	"reflow_oven/internal/repository/db"
	"reflow_oven/internal/service"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

type rootFlags struct {
	configDir string
	port      string
	logLevel  string
	dbPath    string
}

// @title                      Reflow Oven API
// @version                    1.0
// @description                Profile runs, manual control and sensor monitoring of a reflow oven.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
func main() {
	v := viper.New()
	var flags rootFlags

	root := &cobra.Command{
		Use:     "reflow-oven",
		Short:   "Reflow oven controller",
		Long:    "Runs solder reflow profiles on a convection oven and serves its status over HTTP.",
		Version: version,
		// Bare invocation starts the service.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v, flags)
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configDir, "config-dir", "configs", "Directory holding config.yml")
	pf.StringVar(&flags.port, "port", "", "HTTP port (overrides config)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&flags.dbPath, "db", "", "SQLite database file (overrides config)")
	mustBind(v, "port", root, "port")
	mustBind(v, "log.level", root, "log-level")
	mustBind(v, "db.path", root, "db")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the oven controller and HTTP API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), v, flags)
			},
		},
		&cobra.Command{
			Use:   "preview <profile-id>",
			Short: "Print the ideal setpoint curve of a stored profile",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid profile id %q", args[0])
				}
				return runPreview(cmd.Context(), v, flags, id)
			},
		},
		&cobra.Command{
			Use:   "profiles",
			Short: "List the stored profiles",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runProfiles(cmd.Context(), v, flags)
			},
		},
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func mustBind(v *viper.Viper, key string, cmd *cobra.Command, flag string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func loadConfig(v *viper.Viper, flags rootFlags) (config.Config, error) {
	return config.Load(v, "config", flags.configDir, ".")
}

// openProfiles opens the database and seeds it, for the offline commands.
func openProfiles(ctx context.Context, v *viper.Viper, flags rootFlags) (*service.ProfileService, func(), error) {
	cfg, err := loadConfig(v, flags)
	if err != nil {
		return nil, nil, err
	}
	conn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		return nil, nil, err
	}
	repos := repository.NewRepository(conn)
	profiles := service.NewProfileService(repos.ProfileRepo, nil)
	if _, err := profiles.SeedDefaults(ctx, cfg.Profiles.SeedFile); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return profiles, func() { _ = conn.Close() }, nil
}

func runPreview(ctx context.Context, v *viper.Viper, flags rootFlags, id int) error {
	profiles, closeDB, err := openProfiles(ctx, v, flags)
	if err != nil {
		return err
	}
	defer closeDB()

	curve, err := profiles.Preview(ctx, id)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSTATE\tSETPOINT")
	for _, p := range curve {
		fmt.Fprintf(w, "%d\t%s\t%.1f\n", p.Time, p.State, p.Setpoint)
	}
	return w.Flush()
}

func runProfiles(ctx context.Context, v *viper.Viper, flags rootFlags) error {
	profiles, closeDB, err := openProfiles(ctx, v, flags)
	if err != nil {
		return err
	}
	defer closeDB()

	list, err := profiles.List(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

func newLogger(cfg config.Config) *logger.Logger {
	return logger.Get(cfg.Log.Level, cfg.Log.Format)
}
