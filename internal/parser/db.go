package parser

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/go-logr/logr"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"flow-rule-analyzer/internal/model"
)

const DefaultRuleTable = "flow_rules"

var (
	ErrRuleNotFound = errors.New("rule not found")

	tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// SQLRuleSourceConfig contains configuration for a SQL rule source.
type SQLRuleSourceConfig struct {
	// Driver is "mysql" (MariaDB/MySQL) or "sqlite3"
	Driver string
	DSN    string
	// Table defaults to DefaultRuleTable
	Table  string
	Logger logr.Logger
}

// SQLRuleSource reads flow rules from a table. It never writes.
type SQLRuleSource struct {
	db    *sql.DB
	table string
	log   logr.Logger
}

func NewSQLRuleSource(cfg SQLRuleSourceConfig) (*SQLRuleSource, error) {
	switch cfg.Driver {
	case "mysql", "sqlite3":
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database connection string is required")
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	src, err := NewSQLRuleSourceFromDB(db, cfg.Table, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return src, nil
}

// NewSQLRuleSourceFromDB wraps an already open database.
func NewSQLRuleSourceFromDB(db *sql.DB, table string, log logr.Logger) (*SQLRuleSource, error) {
	if table == "" {
		table = DefaultRuleTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	return &SQLRuleSource{db: db, table: table, log: log.WithName("sql-rule-source")}, nil
}

func (s *SQLRuleSource) Close() error {
	return s.db.Close()
}

func (s *SQLRuleSource) query() string {
	return "SELECT id, name, priority, match_json, actions_json, hard_timeout, idle_timeout, status, version FROM " + s.table
}

// Load returns every rule ordered by priority.
func (s *SQLRuleSource) Load(ctx context.Context) ([]model.FlowRule, error) {
	rows, err := s.db.QueryContext(ctx, s.query()+" ORDER BY priority ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []model.FlowRule
	for rows.Next() {
		rule, err := s.scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	s.log.V(1).Info("Loaded rules", "table", s.table, "count", len(rules))
	return rules, nil
}

// LoadByID returns a single rule or ErrRuleNotFound.
func (s *SQLRuleSource) LoadByID(ctx context.Context, id string) (*model.FlowRule, error) {
	rows, err := s.db.QueryContext(ctx, s.query()+" WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read rule %s: %w", id, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	rule, err := s.scanRule(rows)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// scanRule keeps rows whose JSON columns do not decode, leaving the field
// empty so that validation reports it.
func (s *SQLRuleSource) scanRule(rows *sql.Rows) (model.FlowRule, error) {
	var rule model.FlowRule
	var name, matchJSON, actionsJSON, status sql.NullString
	var priority, hardTimeout, idleTimeout, version sql.NullInt64

	if err := rows.Scan(&rule.ID, &name, &priority, &matchJSON, &actionsJSON, &hardTimeout, &idleTimeout, &status, &version); err != nil {
		return rule, fmt.Errorf("failed to scan rule: %w", err)
	}

	rule.Name = name.String
	rule.Status = model.RuleStatus(status.String)
	rule.Version = int(version.Int64)
	if priority.Valid {
		rule.Priority = model.Ptr(int(priority.Int64))
	}

	if matchJSON.Valid && matchJSON.String != "" {
		var match model.MatchFields
		if err := json.Unmarshal([]byte(matchJSON.String), &match); err != nil {
			s.log.Error(err, "Ignoring malformed match column", "rule", rule.ID)
		} else {
			rule.Match = &match
		}
	}
	if actionsJSON.Valid && actionsJSON.String != "" {
		if err := json.Unmarshal([]byte(actionsJSON.String), &rule.Actions); err != nil {
			s.log.Error(err, "Ignoring malformed actions column", "rule", rule.ID)
			rule.Actions = nil
		}
	}

	if hardTimeout.Valid || idleTimeout.Valid {
		rule.Timeout = &model.Timeout{}
		if hardTimeout.Valid {
			rule.Timeout.HardTimeout = model.Ptr(int(hardTimeout.Int64))
		}
		if idleTimeout.Valid {
			rule.Timeout.IdleTimeout = model.Ptr(int(idleTimeout.Int64))
		}
	}
	return rule, nil
}
