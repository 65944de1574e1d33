package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/goforj/catalog"
	"github.com/spf13/cobra"
)

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// session bundles what every store-backed command needs.
type session struct {
	cfg      fileConfig
	logger   *slog.Logger
	trending *catalog.Trending
	metrics  *metricsSink
	close    func()
}

func openSession(ctx context.Context, cmd *cobra.Command, flags *globalFlags, endpoint string) (*session, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	if endpoint != "" {
		cfg.Trending.Endpoint = endpoint
	}
	logger := newLogger(cmd.ErrOrStderr(), flags.verbose)
	store, closeFn, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	sink := newMetricsSink(flags.metrics)
	tr := catalog.NewTrending(store, catalog.TrendingConfig{
		StorageKey:   cfg.Trending.StorageKey,
		EndpointURL:  cfg.Trending.Endpoint,
		FetchTimeout: cfg.Trending.FetchTimeout,
		SnapshotTTL:  cfg.Trending.SnapshotTTL,
		Logger:       logger,
		Observer:     sink.Observer(),
	})
	return &session{cfg: cfg, logger: logger, trending: tr, metrics: sink, close: closeFn}, nil
}

func trendingCmd(flags *globalFlags) *cobra.Command {
	var endpoint string
	cmd := &cobra.Command{
		Use:   "trending",
		Short: "Show the trending list, refreshing the stored snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, flags, endpoint)
			if err != nil {
				return err
			}
			defer s.close()

			cancel := s.trending.Subscribe(func(st catalog.TrendingState) {
				s.logger.Debug("trending", "phase", st.Phase, "entries", len(st.Data), "loading", st.Loading)
			})
			defer cancel()

			st := s.trending.Load(ctx)
			if err := s.metrics.Write(cmd.ErrOrStderr()); err != nil {
				return err
			}
			if st.Failed() {
				return st.Err
			}
			if st.Err != nil {
				s.logger.Warn("showing stored snapshot, refresh failed", "error", st.Err)
			}
			return printEntries(cmd.OutOrStdout(), st.Data)
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "trending endpoint URL")
	return cmd
}

func popularCmd(flags *globalFlags) *cobra.Command {
	var (
		query string
		page  int
		token string
	)
	cmd := &cobra.Command{
		Use:   "popular",
		Short: "List popular titles, or search with --query",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if token != "" {
				cfg.TMDB.Token = token
			}
			logger := newLogger(cmd.ErrOrStderr(), flags.verbose)
			sink := newMetricsSink(flags.metrics)
			src := catalog.NewMovieSource(catalog.TMDBConfig{
				BaseURL: cfg.TMDB.BaseURL,
				Token:   cfg.TMDB.Token,
			})
			res := catalog.NewResource(cmd.Context(), src.Producer(catalog.MovieQuery{Query: query, Page: page}),
				catalog.WithAutoStart(false),
				catalog.WithResourceName("popular"),
				catalog.WithResourceLogger(logger),
				catalog.WithResourceObserver(sink.Observer()),
			)
			st := res.Fetch(cmd.Context())
			if err := sink.Write(cmd.ErrOrStderr()); err != nil {
				return err
			}
			if st.Err != nil {
				return st.Err
			}
			return printMovies(cmd.OutOrStdout(), st.Data)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search query; empty lists popular titles")
	cmd.Flags().IntVar(&page, "page", 0, "result page")
	cmd.Flags().StringVar(&token, "token", "", "TMDB bearer token (overrides "+envTMDBToken+")")
	return cmd
}

func snapshotCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect or clear the stored trending snapshot",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the stored snapshot without refreshing",
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openSession(cmd.Context(), cmd, flags, "")
				if err != nil {
					return err
				}
				defer s.close()
				entries, ok, err := s.trending.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "no snapshot stored under %q\n", s.trending.StorageKey())
					return nil
				}
				if err := printEntries(cmd.OutOrStdout(), entries); err != nil {
					return err
				}
				written, ok, err := s.trending.SnapshotWrittenAt(cmd.Context())
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintf(cmd.OutOrStdout(), "written %s\n", written.Format(time.RFC3339))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete the stored snapshot",
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openSession(cmd.Context(), cmd, flags, "")
				if err != nil {
					return err
				}
				defer s.close()
				if err := s.trending.ClearSnapshot(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %q\n", s.trending.StorageKey())
				return nil
			},
		},
	)
	return cmd
}

func printEntries(w io.Writer, entries []catalog.TrendingEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTITLE\tPOSTER")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", e.Rank, e.Title, e.PosterURL())
	}
	return tw.Flush()
}

func printMovies(w io.Writer, movies []catalog.Movie) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tYEAR\tRATING\tPOSTER")
	for _, m := range movies {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d/5\t%s\n", m.ID, m.Title, m.ReleaseYear(), m.Rating(), m.PosterURL())
	}
	return tw.Flush()
}
