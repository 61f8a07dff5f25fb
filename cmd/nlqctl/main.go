package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"carefinder/internal/config"
	"carefinder/internal/logger"
	"carefinder/internal/model"
	"carefinder/internal/repository"
	"carefinder/internal/service"
	"carefinder/internal/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "nlqctl",
		Short:        "Inspect the natural-language query pipeline without the HTTP server",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	parseCmd := &cobra.Command{
		Use:   "parse <query>",
		Short: "Parse a query into a structured intent",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runParseCommand,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Probe the completion service",
		Args:  cobra.NoArgs,
		RunE:  runStatusCommand,
	}

	queryCmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Run a query against the database and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runQueryCommand,
	}
	queryCmd.Flags().Float64("lng", 0, "reference longitude")
	queryCmd.Flags().Float64("lat", 0, "reference latitude")

	backfillCmd := &cobra.Command{
		Use:   "backfill-ecef",
		Short: "Fill location_ecef vectors from lng/lat for the nearest-N prefilter",
		Args:  cobra.NoArgs,
		RunE:  runBackfillCommand,
	}
	backfillCmd.Flags().StringSlice("domain", []string{string(model.DomainElderly), string(model.DomainHealth)}, "facility domains to backfill")

	root.AddCommand(parseCmd, statusCmd, queryCmd, backfillCmd)
	return root
}

// env bundles what every subcommand needs
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	client service.CompletionClient
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	level, _ := cmd.Flags().GetString("log-level")
	zl, err := logger.New(level, "console")
	if err != nil {
		return nil, err
	}
	client, err := service.NewCompletionClient(cfg.Completion, nil, zl)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: zl, client: client}, nil
}

func (e *env) intentParser() *service.IntentParser {
	return service.NewIntentParser(
		service.NewIntentExtractor(e.client, e.cfg.Vocabulary, e.cfg.Completion.Timeout),
		service.NewIntentNormalizer(e.cfg.Vocabulary, e.cfg.Query.DefaultLimit),
		e.cfg.Query.DefaultLimit,
		e.logger,
	)
}

func (e *env) openRepository() (*repository.PostgresRepository, error) {
	return repository.NewPostgresRepository(
		e.cfg.GetPostgreSQLDSN(),
		e.cfg.PostgreSQL.MaxConnections,
		e.cfg.PostgreSQL.MaxIdleConnections,
		repository.Options{
			ECEFPrefilter:        e.cfg.Query.ECEFPrefilter,
			ECEFPrefilterPadding: e.cfg.Query.ECEFPrefilterPadding,
		},
	)
}

type parseOutput struct {
	Query          string             `json:"query"`
	ParsedQuery    model.ParsedIntent `json:"parsed_query"`
	Interpretation string             `json:"interpretation"`
	Fallback       bool               `json:"fallback"`
	Error          string             `json:"error,omitempty"`
	ErrorKind      string             `json:"error_kind,omitempty"`
	Strategy       string             `json:"strategy,omitempty"`
	Diagnostics    []string           `json:"diagnostics,omitempty"`
	ModelOutput    string             `json:"model_output,omitempty"`
}

func runParseCommand(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	query := strings.Join(args, " ")
	result := e.intentParser().Parse(cmd.Context(), query)

	out := parseOutput{
		Query:          query,
		ParsedQuery:    result.Intent,
		Interpretation: service.Explain(result.Intent, e.cfg.Vocabulary),
		Fallback:       result.Fallback,
		Strategy:       result.Strategy,
		ModelOutput:    result.ModelOutput,
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
		out.ErrorKind = string(result.Err.Kind)
	}
	for _, d := range result.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, d.Error())
	}
	return printJSON(cmd, out)
}

func runStatusCommand(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	status := service.NewStatusProbe(e.client, e.cfg.Completion.ProbeTimeout, e.logger).Probe(cmd.Context())
	return printJSON(cmd, status)
}

func runQueryCommand(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	repo, err := e.openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	req := model.QueryRequest{Query: strings.Join(args, " ")}
	if cmd.Flags().Changed("lng") && cmd.Flags().Changed("lat") {
		lng, _ := cmd.Flags().GetFloat64("lng")
		lat, _ := cmd.Flags().GetFloat64("lat")
		req.UserLng, req.UserLat = &lng, &lat
	}

	svc := service.NewQueryService(
		repo,
		e.intentParser(),
		service.NewQueryPlanner(e.cfg.Vocabulary),
		service.NewGeoRanker(),
		e.cfg.Vocabulary,
		e.cfg.Query.StoreTimeout,
		nil,
		e.logger,
	)
	return printJSON(cmd, svc.Query(cmd.Context(), req))
}

func runBackfillCommand(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	repo, err := e.openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	domains, _ := cmd.Flags().GetStringSlice("domain")
	ctx := cmd.Context()

	failed := false
	for _, d := range domains {
		updated, errs := repo.BackfillECEF(ctx, model.Domain(d))
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows updated\n", d, updated)
		for _, msg := range errs {
			failed = true
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", msg)
		}
	}
	if failed {
		return fmt.Errorf("backfill finished with errors")
	}
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := utils.PrettyPrintJSON(v)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
