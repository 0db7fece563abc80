package surreal

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

type Client struct {
	db *surrealdb.DB
}

// identifierRegex ensures that table names and fields only contain alphanumeric characters and underscores
var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

func validateIdentifier(s string) error {
	if !identifierRegex.MatchString(s) {
		return fmt.Errorf("invalid identifier: %s", s)
	}
	return nil
}

func NewClient(ctx context.Context, host, user, pass, namespace, database string) (*Client, error) {
	db, err := surrealdb.New(host)
	if err != nil {
		return nil, fmt.Errorf("failed to create surrealdb client: %w", err)
	}

	if _, err = db.SignIn(ctx, map[string]interface{}{
		"user": user,
		"pass": pass,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to signin to surrealdb: %w", err)
	}

	if err = db.Use(ctx, namespace, database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to use surrealdb namespace/database: %w", err)
	}

	return &Client{db: db}, nil
}

// NormalizeHost turns a bare host into an RPC endpoint URL.
func NormalizeHost(host string) string {
	if host == "" || strings.Contains(host, "://") {
		return host
	}
	return "wss://" + strings.TrimRight(host, "/") + "/rpc"
}

func (c *Client) Close() {
	c.db.Close(context.Background())
}

// Query runs one or more statements and returns the result of the last one.
func (c *Client) Query(ctx context.Context, sql string, vars map[string]interface{}) (interface{}, error) {
	if vars == nil {
		vars = map[string]interface{}{}
	}
	results, err := surrealdb.Query[interface{}](ctx, c.db, sql, vars)
	if err != nil {
		return nil, err
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}

	for i, r := range *results {
		if r.Status != "" && r.Status != "OK" {
			return nil, fmt.Errorf("statement %d failed: %s", i, r.Status)
		}
	}
	return (*results)[len(*results)-1].Result, nil
}

// SelectWhere reads rows of table matching every key of filter.
func (c *Client) SelectWhere(ctx context.Context, table string, filter map[string]interface{}, orderBy string, limit int) ([]map[string]interface{}, error) {
	query, err := buildSelect(table, filter, orderBy, limit)
	if err != nil {
		return nil, err
	}

	vars := make(map[string]interface{}, len(filter))
	for k, v := range filter {
		vars[k] = v
	}

	result, err := c.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return Rows(result), nil
}

func buildSelect(table string, filter map[string]interface{}, orderBy string, limit int) (string, error) {
	if err := validateIdentifier(table); err != nil {
		return "", err
	}
	whereClause, err := buildWhereClause(filter)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT * FROM %s WHERE %s", table, whereClause)
	if orderBy != "" {
		fields := strings.Fields(orderBy)
		dir := "ASC"
		if len(fields) == 2 && strings.EqualFold(fields[1], "desc") {
			dir = "DESC"
		} else if len(fields) != 1 && !(len(fields) == 2 && strings.EqualFold(fields[1], "asc")) {
			return "", fmt.Errorf("invalid order clause: %s", orderBy)
		}
		if err := validateIdentifier(fields[0]); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", fields[0], dir)
	}
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	b.WriteString(";")
	return b.String(), nil
}

func buildWhereClause(filter map[string]interface{}) (string, error) {
	if len(filter) == 0 {
		return "true", nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		// Validate filter keys
		if err := validateIdentifier(k); err != nil {
			return "", err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s = $%s", k, k)
	}
	return strings.Join(parts, " AND "), nil
}

// Rows flattens a query result into row maps, dropping anything that is not
// an object.
func Rows(result interface{}) []map[string]interface{} {
	switch v := result.(type) {
	case []interface{}:
		rows := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			if row, ok := item.(map[string]interface{}); ok {
				rows = append(rows, row)
			}
		}
		return rows
	case map[string]interface{}:
		return []map[string]interface{}{v}
	case []map[string]interface{}:
		return v
	default:
		return nil
	}
}

// Int reads a numeric field regardless of how the driver decoded it.
func Int(row map[string]interface{}, key string) int64 {
	switch n := row[key].(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case uint32:
		return int64(n)
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	default:
		return 0
	}
}

func String(row map[string]interface{}, key string) string {
	s, _ := row[key].(string)
	return s
}

func Strings(row map[string]interface{}, key string) []string {
	switch v := row[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func Bool(row map[string]interface{}, key string) bool {
	b, _ := row[key].(bool)
	return b
}
