package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/nutrition-etl/internal/app"
	"github.com/yungbote/nutrition-etl/internal/data/repos/nutrition"
	"github.com/yungbote/nutrition-etl/internal/jobs/pipeline/etl_daily"
	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
	"github.com/yungbote/nutrition-etl/internal/platform/shutdown"
)

const usage = `usage: etl <command> [flags]

commands:
  run       run every stage in-process (extract, consolidate, harmonize, quality gate, load)
  worker    poll the Temporal task queue for daily workflow runs
  trigger   start the daily workflow on Temporal (ETL_CRON schedules it)
  serve     serve the product lookup API
  lookup    print one product with its nutrient values
  migrate   create or update the dimensional schema
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	ctx, stop := shutdown.NotifyContext(context.Background())
	err := run(ctx, os.Args[1], os.Args[2:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "etl %s: %v\n", os.Args[1], err)
	}
	os.Exit(etlerr.ExitCode(err))
}

func run(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id (run, trigger); generated when empty")
	skipExtract := fs.Bool("skip-extract", false, "reuse the latest raw pages (run, trigger)")
	topN := fs.Int("n", nutrition.DefaultLookupNutrients, "nutrient values to print (lookup)")

	switch cmd {
	case "run", "worker", "trigger", "serve", "lookup", "migrate":
	case "-h", "--help", "help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	a, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	in := etl_daily.RunInput{RunID: strings.TrimSpace(*runID), SkipExtract: *skipExtract}
	switch cmd {
	case "run":
		sum, err := a.RunOnce(ctx, in)
		printJSON(sum)
		return err
	case "worker":
		return a.RunWorker(ctx)
	case "trigger":
		workflowID, temporalRunID, err := a.Trigger(ctx, in)
		if err != nil {
			return err
		}
		printJSON(map[string]string{"workflow_id": workflowID, "run_id": temporalRunID})
		return nil
	case "serve":
		return a.Serve(ctx)
	case "lookup":
		if fs.NArg() != 1 {
			return fmt.Errorf("lookup takes exactly one product code")
		}
		res, err := a.Lookup(ctx, fs.Arg(0), *topN)
		if err != nil {
			return err
		}
		if res == nil {
			return fmt.Errorf("product %s: %w", fs.Arg(0), etlerr.ErrNotFound)
		}
		printJSON(res)
		return nil
	default:
		return a.Migrate()
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
