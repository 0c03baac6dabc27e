package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onkernel/layerstore/cmd/layerstore/config"
	"github.com/onkernel/layerstore/lib/metadata"
	"github.com/onkernel/layerstore/lib/paths"
	"github.com/onkernel/layerstore/lib/puller"
	"github.com/onkernel/layerstore/lib/store"
)

var forceRefresh bool

var rootCmd = &cobra.Command{
	Use:   "layerstore",
	Short: "Local layer store for container images",
	Long:  `layerstore caches container image layers on local disk and prints the ordered rootfs paths needed to assemble a container root filesystem.`,
}

var getCmd = &cobra.Command{
	Use:   "get [image]",
	Short: "Ensure an image's layers are present and print their rootfs paths",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStore()
		if err != nil {
			return err
		}
		if err := s.Recover(cmd.Context()); err != nil {
			return fmt.Errorf("recover store: %w", err)
		}

		info, err := s.Get(cmd.Context(), store.Descriptor{
			Type:         store.ImageTypeDocker,
			Name:         args[0],
			ForceRefresh: forceRefresh,
		})
		if err != nil {
			return err
		}

		for _, p := range info.RootfsPaths {
			fmt.Println(p)
		}
		if cfg := info.Manifest.Config; cfg != nil {
			if len(cfg.Entrypoint) > 0 {
				fmt.Printf("entrypoint: %s\n", strings.Join(cfg.Entrypoint, " "))
			}
			if len(cfg.Cmd) > 0 {
				fmt.Printf("cmd: %s\n", strings.Join(cfg.Cmd, " "))
			}
		}

		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Reconcile image metadata with the layers on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStore()
		if err != nil {
			return err
		}
		return s.Recover(cmd.Context())
	},
}

func newStore() (store.Store, error) {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	p := paths.New(cfg.StoreDir)
	md := metadata.NewManager(p, logger)
	pl := puller.NewRegistryPuller(p, logger)

	return store.New(p, md, pl, logger, nil)
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func init() {
	getCmd.Flags().BoolVar(&forceRefresh, "no-cache", false, "bypass the metadata cache and pull again")
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(recoverCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
