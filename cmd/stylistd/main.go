// stylistd serves generated stylesheets for the media-server web front
// end, backed by the two-tier style cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/streamweave/stylist/cache"
	"github.com/streamweave/stylist/config"
	"github.com/streamweave/stylist/logger"
	"github.com/streamweave/stylist/style"
	"github.com/streamweave/stylist/theme"
	"github.com/streamweave/stylist/web"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "stylistd",
		Short:         "Stylesheet service for the web front end",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	root.AddCommand(serveCmd(), cleanupCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogLevel, cfg.LogJSON)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := cache.New(ctx, cfg.CacheDir, cache.WithLogger(log))
			if err != nil {
				return err
			}
			defer c.Close()

			lib, err := loadLibrary(cfg)
			if err != nil {
				return err
			}
			ttl, err := cfg.TTL()
			if err != nil {
				return err
			}
			mgr := style.NewManager(c, lib, ttl, log)

			if cfg.ThemesFile != "" {
				watcher, err := style.Watch(ctx, cfg.ThemesFile, lib, mgr, log)
				if err != nil {
					return fmt.Errorf("watch themes file: %w", err)
				}
				defer watcher.Close()
			}

			srv := &http.Server{
				Addr:              cfg.Listen,
				Handler:           web.New(mgr, lib, log),
				ReadHeaderTimeout: 5 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Infof("listening on %s (themes: %d, cache: %s)", cfg.Listen, lib.Len(), cfg.CacheDir)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Infof("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		},
	}
}

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired entries from the style cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			c, err := cache.New(cmd.Context(), cfg.CacheDir, cache.WithLogger(logger.Nop()))
			if err != nil {
				return err
			}
			defer c.Close()
			removed := c.Cleanup(cmd.Context())
			fmt.Printf("removed %d expired entries\n", removed)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print style cache statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			c, err := cache.New(cmd.Context(), cfg.CacheDir, cache.WithLogger(logger.Nop()))
			if err != nil {
				return err
			}
			defer c.Close()
			st := c.Statistics()
			fmt.Printf("directory:      %s\n", st.Directory)
			fmt.Printf("memory entries: %d (%s)\n", st.MemoryEntries, humanize.IBytes(uint64(st.MemorySizeBytes)))
			if st.DiskEntries >= 0 {
				fmt.Printf("disk entries:   %d\n", st.DiskEntries)
			} else {
				fmt.Printf("disk entries:   unknown\n")
			}
			return nil
		},
	}
}

func loadLibrary(cfg *config.Config) (*theme.Library, error) {
	if cfg.ThemesFile == "" {
		return theme.NewLibrary(theme.Builtin())
	}
	return theme.LoadFile(cfg.ThemesFile)
}
