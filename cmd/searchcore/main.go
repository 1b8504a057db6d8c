// Command searchcore is the command-line front end of the search core:
// create indexes, ingest JSON document batches, run ranked queries, and
// report statistics against the shared PostgreSQL store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/blackroad/searchcore/internal/engine"
	"github.com/blackroad/searchcore/internal/engine/storage"
	"github.com/blackroad/searchcore/internal/engine/value"
	"github.com/blackroad/searchcore/pkg/config"
	"github.com/blackroad/searchcore/pkg/logger"
	pkgpostgres "github.com/blackroad/searchcore/pkg/postgres"
)

const usage = `usage: searchcore <command> [flags]

commands:
  create <uid>            create an index
  add <index_uid>         ingest documents from a JSON file
  search <index_uid> <q>  run a ranked query
  stats                   print engine or per-index statistics
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "create":
		err = runCreate(os.Args[2:])
	case "add":
		err = runAdd(os.Args[2:])
	case "search":
		err = runSearch(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "searchcore: %v\n", err)
		os.Exit(1)
	}
}

// newEngine loads configuration and hydrates an engine from PostgreSQL.
func newEngine(ctx context.Context, configPath string) (*engine.Engine, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Setup("warn", "text")

	client, err := pkgpostgres.New(cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	store, err := storage.NewPostgresStore(ctx, client)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	eng, err := engine.New(ctx, store)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return eng, func() { client.Close() }, nil
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	primaryKey := fs.String("primary-key", "id", "primary key field")
	name := fs.String("name", "", "display name (defaults to uid)")
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("create requires exactly one index uid")
	}

	ctx := context.Background()
	eng, closeFn, err := newEngine(ctx, *configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	idx, err := eng.CreateIndex(ctx, fs.Arg(0), *primaryKey, *name)
	if err != nil {
		return err
	}
	fmt.Printf("Created index: %s\n", idx.UID)
	return nil
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	jsonFile := fs.String("json-file", "", "JSON file with a document array")
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("add requires exactly one index uid")
	}
	if *jsonFile == "" {
		return fmt.Errorf("--json-file is required")
	}

	data, err := os.ReadFile(*jsonFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", *jsonFile, err)
	}
	var docs []value.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("parsing %s: %w", *jsonFile, err)
	}

	ctx := context.Background()
	eng, closeFn, err := newEngine(ctx, *configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	count, err := eng.AddDocuments(ctx, fs.Arg(0), docs)
	if err != nil {
		return err
	}
	fmt.Printf("Added %d documents\n", count)
	return nil
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	limit := fs.Int("limit", 20, "result limit")
	offset := fs.Int("offset", 0, "result offset")
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("search requires an index uid and a query")
	}

	ctx := context.Background()
	eng, closeFn, err := newEngine(ctx, *configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := eng.Search(ctx, fs.Arg(0), engine.SearchParams{
		Query:  fs.Arg(1),
		Limit:  *limit,
		Offset: *offset,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Results: %d hits (%.2f ms)\n", result.Total, result.ProcessingTimeMs)
	for _, hit := range result.Hits {
		line, err := json.Marshal(hit)
		if err != nil {
			return err
		}
		fmt.Printf("  %s\n", line)
	}
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	indexUID := fs.String("index", "", "specific index uid")
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	ctx := context.Background()
	eng, closeFn, err := newEngine(ctx, *configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	var out any
	if *indexUID != "" {
		out, err = eng.Stats(ctx, *indexUID)
		if err != nil {
			return err
		}
	} else {
		out = eng.AggregateStats()
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
