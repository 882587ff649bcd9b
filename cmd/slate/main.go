// slate aligns the entity tables of a graph declaration file and prints the
// unified schema: a debugging surface over the alignment library, not part of
// the query core.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/slategraph/slate/internal/align"
	"github.com/slategraph/slate/internal/config"
	"github.com/slategraph/slate/internal/ingest"
	"github.com/slategraph/slate/pkg/validator"
)

func main() {
	configPath := flag.String("config", "", "directory holding config.yaml")
	graphFile := flag.String("graph", "", "graph declaration file (overrides config)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if *graphFile != "" {
		cfg.GraphFile = *graphFile
	}
	if cfg.GraphFile == "" {
		logger.Error("no graph declaration file given")
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("align", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	nodes, rels, err := ingest.LoadFile(cfg.GraphFile)
	if err != nil {
		return err
	}
	logger.Info("loaded graph declaration", "file", cfg.GraphFile,
		"node_tables", len(nodes), "relationship_tables", len(rels))

	v := validator.NewDeclValidator()
	for _, n := range nodes {
		report(logger, n.Decl.Name, v.ValidateNodeTable(n.Decl, n.Data))
	}
	for _, r := range rels {
		report(logger, r.Decl.Name, v.ValidateRelationshipTable(r.Decl, r.Data))
	}

	if len(nodes) > 0 {
		var opts []align.Option
		if len(cfg.Labels) > 0 {
			opts = append(opts, align.WithLabelFilter(cfg.Labels...))
		}
		scan, err := align.AlignNodes(ctx, cfg.NodeVar, nodes, opts...)
		if err != nil {
			return fmt.Errorf("align nodes: %w", err)
		}
		printScan("nodes", scan, cfg.ShowRows)
	}

	if len(rels) > 0 {
		var opts []align.Option
		if len(cfg.Types) > 0 {
			opts = append(opts, align.WithTypeFilter(cfg.Types...))
		}
		scan, err := align.AlignRelationships(ctx, cfg.RelVar, rels, opts...)
		if err != nil {
			return fmt.Errorf("align relationships: %w", err)
		}
		printScan("relationships", scan, cfg.ShowRows)
	}
	return nil
}

func report(logger *slog.Logger, name string, result validator.ValidationResult) {
	for _, w := range result.Warnings {
		logger.Warn("declaration warning", "table", name, "field", w.Field, "message", w.Message)
	}
	for _, e := range result.Errors {
		logger.Error("declaration error", "table", name, "field", e.Field, "message", e.Message)
	}
}

func printScan(kind string, scan *align.Scan, showRows bool) {
	fmt.Printf("%s scan %q: %d rows\n", kind, scan.Var, scan.Table.RowCount())
	for _, entry := range scan.Header.Entries() {
		fmt.Printf("  %-14s %-32s -> %s\n", entry.Kind, entry.Expr.Key(), entry.Column)
	}
	if !showRows {
		return
	}
	for row := 0; row < scan.Table.RowCount(); row++ {
		fmt.Printf("  row %d:", row)
		for _, name := range scan.Table.ColumnNames() {
			col, err := scan.Table.Column(name)
			if err != nil {
				continue
			}
			fmt.Printf(" %s=%v", name, col.Values[row])
		}
		fmt.Println()
	}
}
