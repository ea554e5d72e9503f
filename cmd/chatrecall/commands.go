// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/chatrecall"
	"github.com/poiesic/chatrecall/archive"
	"github.com/poiesic/chatrecall/config"
	"github.com/poiesic/chatrecall/core"
	"github.com/poiesic/chatrecall/ingestion"
	"github.com/poiesic/chatrecall/metrics"
	"github.com/poiesic/chatrecall/reembed"
	"github.com/poiesic/chatrecall/search"
	"github.com/poiesic/chatrecall/storage"
	"github.com/urfave/cli/v2"
)

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func importCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("archive path is required")
	}

	raws, err := archive.Load(path)
	if err != nil {
		return err
	}

	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	collector := metrics.New()
	errOut := c.App.ErrWriter
	importer, err := db.NewImporter(
		ingestion.WithObserver(collector),
		ingestion.WithProgress(func(processed, total int) {
			fmt.Fprintf(errOut, "\rImporting: %d/%d", processed, total)
		}),
	)
	if err != nil {
		return err
	}
	defer importer.Release()

	ctx, cancel := signalContext(c)
	defer cancel()

	fmt.Fprintf(errOut, "Archive: %s (%d conversations)\n", path, len(raws))
	report, err := importer.ImportBatch(ctx, raws)
	fmt.Fprintln(errOut)
	if err != nil {
		return err
	}

	printReport(c.App.Writer, report)
	return writeMetrics(collector, cfg)
}

func printReport(w io.Writer, report *core.ImportReport) {
	fmt.Fprintf(w, "Processed %d conversations in %v: %d succeeded, %d skipped, %d failed\n",
		report.Total, report.Duration.Round(time.Millisecond),
		report.Succeeded, report.Skipped, report.Failed)
	if len(report.Failures) == 0 {
		return
	}
	fmt.Fprintln(w, "Failures:")
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  #%d %q: %s\n", f.Index, f.Title, f.Message)
	}
}

func writeMetrics(collector *metrics.Collector, cfg *config.Config) error {
	if cfg.Import.MetricsFile == "" {
		return nil
	}
	if err := collector.WriteTextfile(cfg.Import.MetricsFile); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query is required")
	}

	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	collector := metrics.New()
	searcher, err := db.NewSearcher(search.WithMonitor(collector))
	if err != nil {
		return err
	}

	results, err := searcher.Search(c.Context, query, cfg.Search.TopK)
	if err != nil {
		return err
	}

	w := c.App.Writer
	if len(results) == 0 {
		fmt.Fprintln(w, "No matching conversations.")
	}
	for _, r := range results {
		fmt.Fprintf(w, "%d. %s (%s, %d messages) similarity %.3f\n",
			r.Rank, r.Title, r.DisplayDate, r.MessageCount, r.Similarity)
		fmt.Fprintf(w, "   id: %s\n", r.ID)
		body := r.BodyPreview
		if c.Bool("full") {
			body = r.Body
		}
		fmt.Fprintf(w, "   %s\n\n", strings.ReplaceAll(body, "\n", "\n   "))
	}
	return writeMetrics(collector, cfg)
}

func showCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("conversation id is required")
	}

	db, _, err := openDatabase(c, chatrecall.WithoutEmbedding())
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}
	doc, err := searcher.Show(c.Context, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("conversation %q not found", id)
	}
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Title:    %s\n", doc.Title)
	fmt.Fprintf(w, "ID:       %s\n", doc.ID)
	fmt.Fprintf(w, "Created:  %s\n", orNA(doc.CreatedAt))
	fmt.Fprintf(w, "Messages: %d\n", doc.MessageCount)
	if doc.Truncated {
		fmt.Fprintln(w, "(stored text was truncated at import)")
	}
	fmt.Fprintf(w, "\n%s\n", doc.Body)
	return nil
}

func resetCommand(c *cli.Context) error {
	if !c.Bool("yes") {
		return fmt.Errorf("refusing to delete every stored conversation without --yes")
	}

	db, _, err := openDatabase(c, chatrecall.WithoutEmbedding())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Reset(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Index reset.")
	return nil
}

func statsCommand(c *cli.Context) error {
	db, _, err := openDatabase(c, chatrecall.WithoutEmbedding())
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Stats(c.Context)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Conversations: %d\n", stats.Conversations)
	fmt.Fprintf(w, "Messages:      %d\n", stats.Messages)
	if stats.Manifest == nil {
		fmt.Fprintln(w, "Embedding:     none recorded")
		return nil
	}
	fmt.Fprintf(w, "Embedding:     %s (%d dimensions, updated %s)\n",
		stats.Manifest.EmbeddingModel, stats.Manifest.Dimensions,
		stats.Manifest.UpdatedAt.Format("2006-01-02 15:04:05"))
	if stats.Manifest.EmbeddingModel != db.ModelName() {
		fmt.Fprintf(w, "Configured model %s differs from the stored one; run reembed.\n", db.ModelName())
	}
	return nil
}

func inspectCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("archive path is required")
	}

	raws, err := archive.Load(path)
	if err != nil {
		return err
	}

	var opts []archive.Option
	if c.IsSet("max-chars") {
		opts = append(opts, archive.WithMaxChars(c.Int("max-chars")))
	}
	normalizer, err := archive.NewNormalizer(opts...)
	if err != nil {
		return err
	}
	summary := normalizer.Summarize(raws, c.Int("top"))

	w := c.App.Writer
	fmt.Fprintf(w, "Conversations:         %d\n", summary.Conversations)
	fmt.Fprintf(w, "Messages:              %d\n", summary.Messages)
	fmt.Fprintf(w, "Importable:            %d\n", summary.Importable)
	fmt.Fprintf(w, "Truncated on import:   %d\n", summary.Truncated)
	fmt.Fprintf(w, "Without messages:      %d\n", summary.NoMessages)
	fmt.Fprintf(w, "Without text:          %d\n", summary.NoText)
	fmt.Fprintf(w, "Malformed:             %d\n", summary.Malformed)
	if len(summary.Largest) > 0 {
		fmt.Fprintln(w, "Largest conversations:")
		for _, size := range summary.Largest {
			fmt.Fprintf(w, "  %5d  %s  %s\n", size.Messages, size.ID, size.Title)
		}
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	// Validate config
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	reembedder, err := db.NewReembedder(reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	errOut := c.App.ErrWriter
	fmt.Fprintf(errOut, "Store: %s\n", cfg.Store.Backend)
	fmt.Fprintf(errOut, "Embedding host: %s\n", cfg.Embedding.Host)
	fmt.Fprintf(errOut, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintln(errOut)

	ctx, cancel := signalContext(c)
	defer cancel()

	if _, err := reembedder.Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
