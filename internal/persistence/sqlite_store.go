package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrUsernameTaken is returned by CreateUser when the username exists.
var ErrUsernameTaken = errors.New("username already exists")

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash, fullName string, allergies []string) (User, error) {
	if allergies == nil {
		allergies = []string{}
	}
	allergiesJSON, err := json.Marshal(allergies)
	if err != nil {
		return User{}, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO users (username, password_hash, full_name, allergies, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		username,
		passwordHash,
		fullName,
		string(allergiesJSON),
		now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.username") {
			return User{}, ErrUsernameTaken
		}
		return User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return User{
		ID:        id,
		Username:  username,
		FullName:  fullName,
		Allergies: allergies,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (User, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, username, password_hash, full_name, allergies, created_at
		 FROM users WHERE username = ?`,
		username,
	)
	return scanUser(row)
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (User, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, username, password_hash, full_name, allergies, created_at
		 FROM users WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (User, bool, error) {
	var user User
	var allergiesJSON string
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.FullName,
		&allergiesJSON,
		&user.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return User{}, false, nil
		}
		return User{}, false, err
	}
	if err := json.Unmarshal([]byte(allergiesJSON), &user.Allergies); err != nil {
		return User{}, false, fmt.Errorf("decode allergies for %s: %w", user.Username, err)
	}
	if user.Allergies == nil {
		user.Allergies = []string{}
	}
	return user, true, nil
}

func (s *SQLiteStore) UpdateUserAllergies(ctx context.Context, userID int64, allergies []string) error {
	if allergies == nil {
		allergies = []string{}
	}
	allergiesJSON, err := json.Marshal(allergies)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET allergies = ? WHERE id = ?`, string(allergiesJSON), userID)
	return err
}

func (s *SQLiteStore) SaveScan(ctx context.Context, rec ScanRecord) error {
	if rec.Detected == nil {
		rec.Detected = []string{}
	}
	detectedJSON, err := json.Marshal(rec.Detected)
	if err != nil {
		return err
	}
	createdAt := rec.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO scan_history (username, product_name, raw_text, detected, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Username,
		rec.ProductName,
		rec.RawText,
		string(detectedJSON),
		createdAt,
	)
	return err
}

func (s *SQLiteStore) ListScansByUser(ctx context.Context, username string, limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, username, product_name, raw_text, detected, created_at
		 FROM scan_history
		 WHERE username = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		username,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]ScanRecord, 0)
	for rows.Next() {
		var rec ScanRecord
		var detectedJSON string
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.ProductName, &rec.RawText, &detectedJSON, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(detectedJSON), &rec.Detected); err != nil {
			return nil, err
		}
		ret = append(ret, rec)
	}
	return ret, rows.Err()
}

// DeleteScansBefore removes scan history rows older than cutoff. Used by the
// retention sweep.
func (s *SQLiteStore) DeleteScansBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scan_history WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) AddFeedback(ctx context.Context, entry FeedbackEntry) error {
	createdAt := entry.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO feedback (username, product_name, reaction, notes, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.Username,
		entry.ProductName,
		entry.Reaction,
		entry.Notes,
		createdAt,
	)
	return err
}

func (s *SQLiteStore) ListFeedbackByUser(ctx context.Context, username string, limit int) ([]FeedbackEntry, error) {
	return s.listFeedback(
		ctx,
		`SELECT id, username, product_name, reaction, notes, created_at
		 FROM feedback WHERE username = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		username, limitOrDefault(limit),
	)
}

func (s *SQLiteStore) ListRecentFeedback(ctx context.Context, limit int) ([]FeedbackEntry, error) {
	return s.listFeedback(
		ctx,
		`SELECT id, username, product_name, reaction, notes, created_at
		 FROM feedback
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		limitOrDefault(limit),
	)
}

func (s *SQLiteStore) listFeedback(ctx context.Context, query string, args ...any) ([]FeedbackEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]FeedbackEntry, 0)
	for rows.Next() {
		var entry FeedbackEntry
		if err := rows.Scan(&entry.ID, &entry.Username, &entry.ProductName, &entry.Reaction, &entry.Notes, &entry.CreatedAt); err != nil {
			return nil, err
		}
		ret = append(ret, entry)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) CountFeedbackByProduct(ctx context.Context, limit int) ([]ProductFeedbackCount, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT product_name, COUNT(*) AS cnt
		 FROM feedback
		 GROUP BY product_name
		 ORDER BY cnt DESC, product_name ASC
		 LIMIT ?`,
		limitOrDefault(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]ProductFeedbackCount, 0)
	for rows.Next() {
		var item ProductFeedbackCount
		if err := rows.Scan(&item.ProductName, &item.Count); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) ListSafeAlternatives(ctx context.Context, allergen string) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT alternative FROM safe_alternatives WHERE allergen = ? ORDER BY alternative ASC`,
		strings.ToLower(allergen),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]string, 0)
	for rows.Next() {
		var alt string
		if err := rows.Scan(&alt); err != nil {
			return nil, err
		}
		ret = append(ret, alt)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) ListHarmfulIngredients(ctx context.Context) ([]HarmfulIngredient, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ingredient, weight FROM harmful_ingredients ORDER BY ingredient ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]HarmfulIngredient, 0)
	for rows.Next() {
		var item HarmfulIngredient
		if err := rows.Scan(&item.Ingredient, &item.Weight); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) ListPredictiveRules(ctx context.Context) ([]PredictiveRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT food_item, possible_allergen FROM predictive_risks ORDER BY food_item ASC, possible_allergen ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]PredictiveRule, 0)
	for rows.Next() {
		var rule PredictiveRule
		if err := rows.Scan(&rule.FoodItem, &rule.Allergen); err != nil {
			return nil, err
		}
		ret = append(ret, rule)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) GetProductByBarcode(ctx context.Context, barcode string) (Product, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT barcode, name, ingredients FROM products WHERE barcode = ?`,
		barcode,
	)
	var product Product
	if err := row.Scan(&product.Barcode, &product.Name, &product.Ingredients); err != nil {
		if err == sql.ErrNoRows {
			return Product{}, false, nil
		}
		return Product{}, false, err
	}
	return product, true, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 200
	}
	return limit
}
