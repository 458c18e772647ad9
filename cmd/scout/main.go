package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pricescout/pricescout/internal/browser"
	"github.com/pricescout/pricescout/internal/catalog"
	"github.com/pricescout/pricescout/internal/engine"
	"github.com/pricescout/pricescout/internal/fetch"
)

func main() {
	var (
		url         = flag.String("url", "", "site or product URL to scrape")
		query       = flag.String("query", "", "search query to drive through the site's search box")
		pages       = flag.Int("pages", 2, "maximum listing pages to walk")
		product     = flag.Bool("product", false, "treat the URL as a single product page")
		headful     = flag.Bool("headful", false, "run the browser with a visible window")
		catalogPath = flag.String("catalog", "", "path to a selector catalog JSON file")
		timeout     = flag.Duration("timeout", 5*time.Minute, "overall deadline for the run")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if *url == "" {
		fmt.Fprintln(os.Stderr, "usage: scout -url <listing-or-product-url> [-query q] [-pages n] [-product]")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	if err := run(ctx, logger, *url, *query, *pages, *product, *headful, *catalogPath); err != nil {
		logger.Error("scrape failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, url, query string, pages int, product, headful bool, catalogPath string) error {
	cat := catalog.Default()
	if catalogPath != "" {
		var err error
		cat, err = catalog.Load(catalogPath)
		if err != nil {
			return err
		}
	}

	browserOpts := browser.DefaultOptions()
	browserOpts.Headless = !headful
	session := browser.NewSession(browserOpts)

	eng, err := engine.New(cat,
		fetch.NewStatic(fetch.StaticOptions{}),
		fetch.NewInteractive(session, fetch.InteractiveOptions{}),
		engine.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Shutdown(); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	if product {
		rec, err := eng.ScrapeSingleProduct(ctx, url)
		if err != nil {
			return err
		}
		return encoder.Encode(rec)
	}

	records, err := eng.ScrapeListing(ctx, url, query, pages)
	if err != nil {
		return err
	}
	logger.Info("listing scraped", "records", len(records))
	return encoder.Encode(records)
}
