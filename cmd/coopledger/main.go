package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	amqpx "coopledger/internal/amqp"
	"coopledger/internal/cache"
	"coopledger/internal/config"
	"coopledger/internal/core"
	"coopledger/internal/log"
	"coopledger/internal/notify"
	"coopledger/internal/services"
	"coopledger/internal/storage"
)

const usage = `Usage: coopledger <command> [flags]

Commands:
  quote      preview a loan schedule
  cash       print the available cash position
  dashboard  print the cooperative summary
  report     write the member balance report as CSV to stdout
  export     write a JSON backup of the whole book to stdout
  import     restore the book from a JSON backup file
  closing    perform the annual closing
`

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Args[2:], cfg, logger); err != nil {
		logger.Error("Command failed", "command", os.Args[1], log.FieldError, err)
		os.Exit(1)
	}
}

func run(command string, args []string, cfg config.Config, logger *log.Logger) error {
	ctx := context.Background()

	store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	book := services.NewBook()
	if err := book.Load(ctx, store); err != nil {
		return fmt.Errorf("load book: %w", err)
	}

	deps := services.Deps{
		Book:     book,
		Store:    store,
		Notifier: notify.NewLogNotifier(logger),
		Logger:   logger,
	}

	if cfg.RedisAddr != "" {
		deps.Cache = cache.NewRedisCache(cfg.RedisAddr)
		logger.Info("Quote cache enabled", "addr", cfg.RedisAddr)
	}

	// Activity publishing is optional for the CLI; a missing broker only
	// costs the event stream.
	if client, err := amqpx.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue); err == nil {
		defer client.Close()
		deps.Publisher = client
	} else {
		logger.Warn("Activity publishing disabled", log.FieldError, err)
	}

	switch command {
	case "quote":
		return runQuote(args, deps)
	case "cash":
		fmt.Printf("Available cash: %.2f %s\n",
			services.NewReportService(deps).AvailableCash(), book.Config.CurrencyCode)
		return nil
	case "dashboard":
		return runDashboard(deps)
	case "report":
		return services.NewReportService(deps).WriteMemberReportCSV(os.Stdout)
	case "export":
		return services.NewBackupService(deps).Export(os.Stdout)
	case "import":
		return runImport(ctx, args, deps)
	case "closing":
		carried, err := services.NewReportService(deps).AnnualClosing(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Annual closing complete. Opening balance carried forward: %.2f\n", carried)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func runQuote(args []string, deps services.Deps) error {
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	amount := fs.Float64("amount", 0, "loan principal")
	rate := fs.Float64("rate", deps.Book.Config.MonthlyInterestRate, "monthly interest rate, percent")
	term := fs.Int("term", 12, "term in months")
	start := fs.String("start", core.FormatDate(time.Now()), "start date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	startDate, err := core.ParseDate(*start)
	if err != nil {
		return fmt.Errorf("bad start date %q: %w", *start, err)
	}

	quote, err := services.NewLoanService(deps).Quote(core.QuoteParams{
		Amount:              *amount,
		MonthlyInterestRate: *rate,
		TermMonths:          *term,
		StartDate:           startDate,
		TransferFee:         deps.Book.Config.TransferFee,
	})
	if err != nil {
		return err
	}

	symbol := deps.Book.Config.CurrencySymbol
	fmt.Printf("Monthly payment: %s%.2f\n", symbol, quote.MonthlyPayment)
	fmt.Printf("Total interest:  %s%.2f\n", symbol, quote.TotalInterest)
	fmt.Printf("Total amount:    %s%.2f\n", symbol, quote.TotalAmount)
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tDue date\tPrincipal\tInterest\tPayment\tBalance")
	for _, row := range quote.Schedule {
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%.2f\t%.2f\t%.2f\n",
			row.InstallmentNumber, row.DueDate, row.Principal, row.Interest, row.Payment, row.Balance)
	}
	return w.Flush()
}

func runDashboard(deps services.Deps) error {
	stats := services.NewReportService(deps).Dashboard()
	symbol := deps.Book.Config.CurrencySymbol

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Members\t%d (%d active)\n", stats.TotalMembers, stats.ActiveMembers)
	fmt.Fprintf(w, "Loans\t%d (%d active)\n", stats.TotalLoans, stats.ActiveLoans)
	fmt.Fprintf(w, "Total loaned\t%s%.2f\n", symbol, stats.TotalLoaned)
	fmt.Fprintf(w, "Total contributions\t%s%.2f\n", symbol, stats.TotalContributions)
	fmt.Fprintf(w, "Interest earned\t%s%.2f\n", symbol, stats.TotalInterestEarned)
	fmt.Fprintf(w, "Penalties collected\t%s%.2f\n", symbol, stats.TotalPenalties)
	fmt.Fprintf(w, "Expenses\t%s%.2f\n", symbol, stats.TotalExpenses)
	fmt.Fprintf(w, "Delinquency rate\t%.0f%%\n", stats.DelinquencyRate*100)
	fmt.Fprintf(w, "Available cash\t%s%.2f\n", symbol, stats.AvailableCash)
	return w.Flush()
}

func runImport(ctx context.Context, args []string, deps services.Deps) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	path := fs.String("file", "", "backup file to restore")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("missing -file")
	}

	f, err := os.Open(*path)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	return services.NewBackupService(deps).Import(ctx, f)
}
