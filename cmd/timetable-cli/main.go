package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/internal/repository"
	"github.com/noah-isme/college-timetable-api/internal/service"
	"github.com/noah-isme/college-timetable-api/pkg/cache"
	"github.com/noah-isme/college-timetable-api/pkg/config"
	"github.com/noah-isme/college-timetable-api/pkg/logger"
)

var (
	input   = "-"
	indent  = true
	budget  time.Duration
	purgeOf = "all"
)

func main() {
	cmdRoot := &cobra.Command{
		Use:           "timetable-cli",
		Short:         "College timetable generator",
		Long:          "Runs core and lab timetable generations offline, manages the generation cache and shadow-compares the API against the legacy backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmdGenerate := &cobra.Command{
		Use:   "generate",
		Short: "generate a timetable from a JSON request",
	}
	cmdGenerate.PersistentFlags().StringVarP(&input, "input", "i", input, "request file, - reads stdin")
	cmdGenerate.PersistentFlags().BoolVar(&indent, "indent", indent, "pretty-print the JSON result")
	cmdGenerate.PersistentFlags().DurationVarP(&budget, "time", "t", budget, "solver time budget, 0 keeps the configured value")

	cmdCore := &cobra.Command{
		Use:   "core",
		Short: "generate section and teacher timetables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInput(func(r io.Reader) error {
				return runGenerate(cmd.Context(), models.TimetableKindCore, r, cmd.OutOrStdout())
			})
		},
	}
	cmdLabs := &cobra.Command{
		Use:   "labs",
		Short: "generate the lab rotation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInput(func(r io.Reader) error {
				return runGenerate(cmd.Context(), models.TimetableKindLab, r, cmd.OutOrStdout())
			})
		},
	}
	cmdGenerate.AddCommand(cmdCore, cmdLabs)
	cmdRoot.AddCommand(cmdGenerate)

	cmdCache := &cobra.Command{
		Use:   "cache",
		Short: "manage the generation cache",
	}
	cmdPurge := &cobra.Command{
		Use:   "purge",
		Short: "drop cached generations",
		Args:  cobra.NoArgs,
		RunE:  commandPurge,
	}
	cmdPurge.Flags().StringVarP(&purgeOf, "kind", "k", purgeOf, "CORE, LAB or all")
	cmdCache.AddCommand(cmdPurge)
	cmdRoot.AddCommand(cmdCache)
	cmdRoot.AddCommand(newShadowCommand())

	if err := cmdRoot.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func withInput(run func(io.Reader) error) error {
	if input == "-" {
		return run(os.Stdin)
	}
	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open request: %w", err)
	}
	defer f.Close()
	return run(f)
}

// runGenerate solves one request with the configured grid and writes the result as JSON.
func runGenerate(ctx context.Context, kind models.TimetableKind, r io.Reader, w io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	settings, err := service.EngineSettingsFromConfig(cfg.Scheduler)
	if err != nil {
		return err
	}
	if budget > 0 {
		settings.Options.TimeBudget = budget
	}
	svc := service.NewTimetableService(nil, nil, nil, nil, nil, nil, service.TimetableServiceConfig{Settings: settings})
	return generate(ctx, svc, kind, r, w)
}

func generate(ctx context.Context, svc *service.TimetableService, kind models.TimetableKind, r io.Reader, w io.Writer) error {
	dec := json.NewDecoder(r)
	var result interface{}
	switch kind {
	case models.TimetableKindCore:
		var req dto.GenerateTimetableRequest
		if err := dec.Decode(&req); err != nil {
			return fmt.Errorf("decode core request: %w", err)
		}
		resp, _, err := svc.GenerateCore(ctx, req, "")
		if err != nil {
			return err
		}
		result = resp
	case models.TimetableKindLab:
		var req dto.LabTimetableRequest
		if err := dec.Decode(&req); err != nil {
			return fmt.Errorf("decode lab request: %w", err)
		}
		resp, _, err := svc.GenerateLabs(ctx, req, "")
		if err != nil {
			return err
		}
		result = resp
	default:
		return fmt.Errorf("unknown timetable kind %q", kind)
	}

	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

func commandPurge(cmd *cobra.Command, args []string) error {
	kinds, err := purgeKinds(purgeOf)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	client, err := cache.NewRedis(cmd.Context(), cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	repo := repository.NewCacheRepository(client, logr)
	defer repo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(repo, nil, cfg.Scheduler.CacheTTL, logr, true)
	for _, kind := range kinds {
		if err := cacheSvc.InvalidateGenerations(cmd.Context(), kind); err != nil {
			return fmt.Errorf("purge %s generations: %w", kind, err)
		}
		logr.Info("cache purged", zap.String("kind", string(kind)))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "purged %d cache namespace(s)\n", len(kinds))
	return nil
}

func purgeKinds(raw string) ([]models.TimetableKind, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "ALL":
		return []models.TimetableKind{models.TimetableKindCore, models.TimetableKindLab}, nil
	case string(models.TimetableKindCore):
		return []models.TimetableKind{models.TimetableKindCore}, nil
	case string(models.TimetableKindLab):
		return []models.TimetableKind{models.TimetableKindLab}, nil
	}
	return nil, fmt.Errorf("unknown kind %q, want CORE, LAB or all", raw)
}
