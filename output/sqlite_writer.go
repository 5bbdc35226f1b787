package output

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteWriter stores fields in a SQLite database. Every writer is a run,
// identified by a fresh UUID, so several runs can share one file.
type SQLiteWriter struct {
	db    *sql.DB
	runID string

	insertStmt *sql.Stmt
	loadStmt   *sql.Stmt
}

// NewSQLiteWriter opens (or creates) the database at path and starts a run
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	w := &SQLiteWriter{db: db, runID: uuid.New().String()}
	if err := w.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	if _, err := db.Exec(`INSERT INTO runs (run_id, created_at) VALUES (?, ?)`,
		w.runID, time.Now().UnixNano()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to register run: %w", err)
	}
	return w, nil
}

func (w *SQLiteWriter) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fields (
		run_id TEXT NOT NULL,
		time TEXT NOT NULL,
		name TEXT NOT NULL,
		association TEXT NOT NULL,
		type TEXT NOT NULL,
		components INTEGER NOT NULL,
		count INTEGER NOT NULL,
		data BLOB,
		PRIMARY KEY (run_id, time, name)
	);

	CREATE INDEX IF NOT EXISTS idx_fields_name ON fields(name);
	`
	_, err := w.db.Exec(schema)
	return err
}

func (w *SQLiteWriter) prepareStatements() error {
	var err error
	w.insertStmt, err = w.db.Prepare(`
		INSERT INTO fields (run_id, time, name, association, type, components, count, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, time, name) DO UPDATE SET
			association = excluded.association,
			type = excluded.type,
			components = excluded.components,
			count = excluded.count,
			data = excluded.data
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	w.loadStmt, err = w.db.Prepare(`
		SELECT association, type, components, count, data
		FROM fields WHERE run_id = ? AND time = ? AND name = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare load statement: %w", err)
	}
	return nil
}

// RunID returns the identifier this writer stores its fields under
func (w *SQLiteWriter) RunID() string { return w.runID }

func (w *SQLiteWriter) WriteField(f *Field) error {
	if err := f.validate(); err != nil {
		return err
	}
	_, err := w.insertStmt.Exec(w.runID, f.Time, f.Name, string(f.Association),
		f.Type, f.Components, f.Len(), encodeFloats(f.Values))
	if err != nil {
		return fmt.Errorf("failed to store field %q: %w", f.Name, err)
	}
	return nil
}

// ReadField loads a field stored by run runID
func (w *SQLiteWriter) ReadField(runID, time, name string) (*Field, error) {
	f := &Field{Name: name, Time: time}
	var (
		assoc string
		count int
		data  []byte
	)
	err := w.loadStmt.QueryRow(runID, time, name).Scan(&assoc, &f.Type, &f.Components, &count, &data)
	if err != nil {
		return nil, fmt.Errorf("failed to load field %q: %w", name, err)
	}
	f.Association = Association(assoc)
	if f.Values, err = decodeFloats(data); err != nil {
		return nil, fmt.Errorf("field %q: %w", name, err)
	}
	if len(f.Values) != count*f.Components {
		return nil, fmt.Errorf("field %q: stored %d values, expected %d",
			name, len(f.Values), count*f.Components)
	}
	return f, nil
}

func (w *SQLiteWriter) Close() error {
	for _, stmt := range []*sql.Stmt{w.insertStmt, w.loadStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return w.db.Close()
}

func encodeFloats(v []float64) []byte {
	b := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(x))
	}
	return b
}

func decodeFloats(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(b))
	}
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return v, nil
}
