package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/mediasearch"
	"github.com/poiesic/mediasearch/config"
	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/reindex"
	"github.com/poiesic/mediasearch/search"
	"github.com/poiesic/mediasearch/server"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := loadService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	searcher, err := svc.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	cfg := svc.Config()
	addr := cfg.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}
	srv, err := server.New(searcher,
		server.WithAddr(addr),
		server.WithRequestTimeout(cfg.Server.RequestTimeout),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})
	if c.Bool("with-worker") {
		consumer, err := svc.NewConsumer()
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
		defer consumer.Release()
		g.Go(func() error {
			return consumer.Run(ctx)
		})
	}
	return g.Wait()
}

func workerCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := loadService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if svc.Config().Queue.Backend == config.QueueMemory {
		slog.Warn("worker is using the in-memory queue; only events published by this process will be seen")
	}

	consumer, err := svc.NewConsumer()
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	defer consumer.Release()

	return consumer.Run(ctx)
}

func searchCommand(c *cli.Context) error {
	req, err := searchRequest(c)
	if err != nil {
		return err
	}

	svc, err := loadService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	searcher, err := svc.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	resp, err := searcher.Search(c.Context, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// searchRequest builds a search request from the command's arguments and flags.
func searchRequest(c *cli.Context) (search.Request, error) {
	req := search.Request{
		Query: strings.TrimSpace(strings.Join(c.Args().Slice(), " ")),
		Limit: c.Int("limit"),
	}
	if req.Query == "" {
		return req, search.ErrQueryRequired
	}

	if c.IsSet("min-duration") {
		req.Filter.Duration.Min = core.Some(c.Float64("min-duration"))
	}
	if c.IsSet("max-duration") {
		req.Filter.Duration.Max = core.Some(c.Float64("max-duration"))
	}
	for _, bound := range []struct {
		flag   string
		target *core.Bound[time.Time]
	}{
		{"start-date", &req.Filter.CreatedAt.Min},
		{"end-date", &req.Filter.CreatedAt.Max},
	} {
		raw := c.String(bound.flag)
		if raw == "" {
			continue
		}
		t, err := core.ParseDate(raw)
		if err != nil {
			return req, fmt.Errorf("%w: --%s: %w", search.ErrInvalidFilter, bound.flag, err)
		}
		*bound.target = core.Some(t)
	}
	return req, nil
}

func seedCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one records file is required")
	}
	records, err := readRecords(c.Args().First())
	if err != nil {
		return err
	}

	svc, err := loadService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if svc.Config().Queue.Backend == config.QueueMemory {
		// Nothing outside this process consumes the in-memory queue.
		n, err := seedInline(c.Context, svc, records)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Stored and indexed %d records\n", n)
		return nil
	}

	stored, err := svc.Seed(c.Context, records...)
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Stored %d records and published %d events\n", len(stored), len(stored))
	return nil
}

// seedInline stores records and indexes them directly. Records that fail
// validation are stored but not indexed.
func seedInline(ctx context.Context, svc *mediasearch.Service, records []*core.Record) (int, error) {
	collection := svc.Config().Search.Collection
	stored, err := svc.Records().PutRecords(ctx, collection, records...)
	if err != nil {
		return 0, fmt.Errorf("failed to store records: %w", err)
	}

	ingester, err := svc.NewIngester()
	if err != nil {
		return 0, fmt.Errorf("failed to create ingester: %w", err)
	}
	indexed := 0
	for _, rec := range stored {
		err := ingester.Process(ctx, rec.ID, rec)
		switch {
		case err == nil:
			indexed++
		case errors.Is(err, core.ErrInvalidRecord):
			slog.Warn("stored record not indexed", "id", rec.ID, "err", err)
		default:
			return indexed, fmt.Errorf("failed to index %s: %w", rec.ID, err)
		}
	}
	return indexed, nil
}

// readRecords decodes a JSON array of records.
func readRecords(path string) ([]*core.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	var records []*core.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return records, nil
}

func reindexCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reindexConfig := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	if reindexConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reindexConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reindexConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	svc, err := loadService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	cfg := svc.Config()
	reindexConfig.Collection = cfg.Search.Collection
	reindexConfig.RequireDuration = cfg.Ingest.RequireDuration

	fmt.Fprintf(c.App.ErrWriter, "Storage: %s\n", cfg.Storage.Backend)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	reindexer := reindex.NewReindexer(svc.Records(), svc.Index(), svc.Embedder(), reindexConfig, c.App.ErrWriter)
	if _, err := reindexer.Run(ctx); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	return nil
}
