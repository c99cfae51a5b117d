package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"flow-rule-analyzer/internal/engine"
	"flow-rule-analyzer/internal/model"
	"flow-rule-analyzer/internal/parser"
)

type config struct {
	Provider  string `validate:"oneof=file mysql sqlite"`
	RulesFile string `validate:"required_if=Provider file"`
	DSN       string `validate:"required_unless=Provider file"`
	Table     string
	LogLevel  string `validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	LogFile   string
	Workers   int `validate:"min=1"`
}

var (
	cfg config

	logCloser io.Closer

	candidateFile string
	ruleID        string
	packetsFile   string
	outFile       string

	errRuleInvalid = errors.New("rule is invalid")
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowctl",
		Short: "Validate, audit and simulate OpenFlow-style flow rules",
		Long: `flowctl checks flow rules for field errors and for conflicts with the rest
of the rule set, and simulates how packets would be classified by it.`,
		PersistentPreRunE:  setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return closeLog() },
		SilenceUsage:       true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.Provider, "provider", "file", "Rule provider type: 'file', 'mysql' or 'sqlite'")
	flags.StringVar(&cfg.RulesFile, "rules", "", "YAML or JSON rule set (for 'file' provider)")
	flags.StringVar(&cfg.DSN, "db", "", "Database connection string (for 'mysql' and 'sqlite' providers)")
	flags.StringVar(&cfg.Table, "table", parser.DefaultRuleTable, "Rule table name (for database providers)")
	flags.IntVarP(&cfg.Workers, "workers", "w", runtime.NumCPU(), "Number of concurrent workers")
	flags.StringVar(&cfg.LogLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	flags.StringVar(&cfg.LogFile, "log-file", "", "Log file path (default: stderr)")

	rootCmd.AddCommand(newValidateCmd(), newSimulateCmd(), newAuditCmd())
	return rootCmd
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate one rule against the rule set",
		RunE:  runValidate,
	}
	cmd.Flags().StringVar(&candidateFile, "candidate", "", "YAML or JSON file holding the rule being edited")
	cmd.Flags().StringVar(&ruleID, "rule-id", "", "ID of an existing rule to re-validate")
	cmd.MarkFlagsOneRequired("candidate", "rule-id")
	cmd.MarkFlagsMutuallyExclusive("candidate", "rule-id")
	return cmd
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Classify packets from a CSV file against the rule set",
		RunE:  runSimulate,
	}
	cmd.Flags().StringVar(&packetsFile, "packets", "", "Packet CSV file (required)")
	cmd.Flags().StringVar(&outFile, "out", "simulation.csv", "Output CSV file")
	cmd.MarkFlagRequired("packets")
	return cmd
}

func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Validate every rule and report conflict clusters",
		RunE:  runAudit,
	}
}

func main() {
	err := newRootCmd().Execute()
	closeLog()
	if err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	closeLog()
	logger, closer := setupLogger(cfg.LogLevel, cfg.LogFile)
	slog.SetDefault(logger)
	logCloser = closer
	return nil
}

// closeLog closes the --log-file handle, if one is open. It is safe to call
// more than once.
func closeLog() error {
	if logCloser == nil {
		return nil
	}
	err := logCloser.Close()
	logCloser = nil
	return err
}

func runValidate(cmd *cobra.Command, args []string) error {
	rules, err := loadRules(cmd.Context(), cfg)
	if err != nil {
		slog.Error("Failed to load rules", "provider", cfg.Provider, "error", err)
		return err
	}

	var candidate *model.FlowRule
	if candidateFile != "" {
		candidate, err = readCandidate(candidateFile)
	} else {
		candidate, err = findRule(rules, ruleID)
	}
	if err != nil {
		slog.Error("Failed to load candidate rule", "error", err)
		return err
	}

	result := engine.ValidateFlowRule(candidate, rules)
	slog.Info("Rule validated", "rule", candidate.ID, "valid", result.IsValid,
		"errors", len(result.Errors), "warnings", len(result.Warnings), "conflicts", len(result.Conflicts))
	if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.IsValid {
		return errRuleInvalid
	}
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	startTime := time.Now()
	rules, err := loadRules(cmd.Context(), cfg)
	if err != nil {
		slog.Error("Failed to load rules", "provider", cfg.Provider, "error", err)
		return err
	}
	slog.Info("Successfully loaded rules", "count", len(rules))

	report, err := engine.Audit(cmd.Context(), rules, engine.AuditOptions{Workers: cfg.Workers})
	if err != nil {
		slog.Error("Audit aborted", "error", err)
		return err
	}
	slog.Info("Audit complete", "run_id", report.RunID, "invalid", report.Totals.Invalid,
		"conflicts", report.Totals.Conflicts, "clusters", len(report.Clusters), "duration", time.Since(startTime))
	return writeJSON(cmd.OutOrStdout(), report)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	startTime := time.Now()
	rules, err := loadRules(cmd.Context(), cfg)
	if err != nil {
		slog.Error("Failed to load rules", "provider", cfg.Provider, "error", err)
		return err
	}
	slog.Info("Successfully loaded rules", "count", len(rules))

	packetsF, err := os.Open(packetsFile)
	if err != nil {
		slog.Error("Failed to open packets file", "path", packetsFile, "error", err)
		return err
	}
	defer packetsF.Close()

	packets, err := parser.ParsePackets(packetsF)
	if err != nil {
		slog.Error("Failed to parse packets", "error", err)
		return err
	}
	slog.Info("Packets parsed", "count", len(packets))

	out, err := os.Create(outFile)
	if err != nil {
		slog.Error("Failed to create output file", "path", outFile, "error", err)
		return err
	}
	defer out.Close()

	simulator := engine.NewSimulator(rules)
	tasks := make(chan simulationTask, cfg.Workers*100)
	results := make(chan simulationRecord, cfg.Workers*100)

	var writerErr error
	var writerWg sync.WaitGroup
	writerWg.Add(1)
	go func() {
		defer writerWg.Done()
		writerErr = resultWriter(out, results)
	}()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go worker(&wg, i+1, simulator, tasks, results)
	}

	for i := range packets {
		tasks <- simulationTask{Index: i, Packet: &packets[i]}
	}
	close(tasks)

	wg.Wait()
	close(results)
	writerWg.Wait()
	if writerErr != nil {
		slog.Error("Failed to write results", "path", outFile, "error", writerErr)
		return writerErr
	}

	slog.Info("Simulation complete", "packets", len(packets), "output_file", outFile, "duration", time.Since(startTime))
	return nil
}

type simulationTask struct {
	Index  int
	Packet *model.Packet
}

type simulationRecord struct {
	Index  int
	Packet *model.Packet
	Result model.SimulationResult
}

func worker(wg *sync.WaitGroup, id int, simulator *engine.Simulator, tasks <-chan simulationTask, results chan<- simulationRecord) {
	defer wg.Done()
	slog.Debug("Worker started", "id", id)
	for task := range tasks {
		results <- simulationRecord{
			Index:  task.Index,
			Packet: task.Packet,
			Result: simulator.Simulate(task.Packet),
		}
	}
	slog.Debug("Worker finished", "id", id)
}

// resultWriter writes records as they arrive; packet_index restores input order.
func resultWriter(w io.Writer, results <-chan simulationRecord) error {
	writer := csv.NewWriter(w)
	header := []string{"packet_index", "src_ip", "dst_ip", "protocol", "dst_port", "matched_rule_id", "matched_rule_name", "action"}
	writer.Write(header)

	var written int
	for record := range results {
		var ruleID, ruleName string
		if record.Result.MatchedRule != nil {
			ruleID = record.Result.MatchedRule.ID
			ruleName = record.Result.MatchedRule.Name
		}
		dstPort := ""
		if record.Packet.DstPort != nil {
			dstPort = strconv.Itoa(*record.Packet.DstPort)
		}
		writer.Write([]string{
			strconv.Itoa(record.Index),
			record.Packet.SrcIP,
			record.Packet.DstIP,
			record.Packet.Protocol,
			dstPort,
			ruleID,
			ruleName,
			record.Result.Action,
		})
		written++
	}
	writer.Flush()
	slog.Info("Result writer finished", "records", written)
	return writer.Error()
}

// setupLogger returns a JSON logger and, when it writes to logFilePath, the
// file to close once the command is done.
func setupLogger(level, logFilePath string) (*slog.Logger, io.Closer) {
	var logWriter io.Writer = os.Stderr
	var closer io.Closer
	if logFilePath != "" {
		// An unopenable file falls back to stderr; there is no logger yet to report it.
		if f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			logWriter, closer = f, f
		}
	}

	lvl := slog.LevelInfo
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: lvl})), closer
}

func loadRules(ctx context.Context, c config) ([]model.FlowRule, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	switch c.Provider {
	case "file":
		if c.RulesFile == "" {
			return nil, fmt.Errorf("rules file path must be provided for file provider")
		}
		file, err := os.Open(c.RulesFile)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return parser.ParseRuleSet(file)
	case "mysql", "sqlite":
		if c.DSN == "" {
			return nil, fmt.Errorf("database connection string must be provided for %s provider", c.Provider)
		}
		driver := c.Provider
		if driver == "sqlite" {
			driver = "sqlite3"
		}
		src, err := parser.NewSQLRuleSource(parser.SQLRuleSourceConfig{
			Driver: driver,
			DSN:    c.DSN,
			Table:  c.Table,
			Logger: logr.FromSlogHandler(slog.Default().Handler()),
		})
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return src.Load(ctx)
	default:
		return nil, fmt.Errorf("unknown rule provider: %s", c.Provider)
	}
}

func readCandidate(path string) (*model.FlowRule, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parser.ParseRule(file)
}

func findRule(rules []model.FlowRule, id string) (*model.FlowRule, error) {
	for i := range rules {
		if rules[i].ID == id {
			rule := rules[i]
			return &rule, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", parser.ErrRuleNotFound, id)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
