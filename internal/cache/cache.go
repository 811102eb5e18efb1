// Package cache keeps outline documents returned by inference backends in a
// sqlite database, keyed by image hash, backend and model.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/menta2k/image-annotator/pkg/client"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when no fresh entry matches
var ErrNotFound = sql.ErrNoRows

// Entry is one cached outline document
type Entry struct {
	ID        string
	ImageHash string
	Backend   string
	Model     string
	Document  string
	CreatedAt time.Time
}

// Store handles database operations
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at path
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer, sqlite serialises anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// HashImage returns the hex sha256 of image bytes
func HashImage(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FindByHash returns the newest document for the key. With maxAge > 0 older
// entries count as missing.
func (s *Store) FindByHash(ctx context.Context, imageHash, backend, model string, maxAge time.Duration) (*Entry, error) {
	const q = `
select id, image_hash, backend, model, document, created_at
from outlines
where image_hash = ? and backend = ? and model = ?
order by created_at desc
limit 1`

	var e Entry
	err := s.db.QueryRowContext(ctx, q, imageHash, backend, model).
		Scan(&e.ID, &e.ImageHash, &e.Backend, &e.Model, &e.Document, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if maxAge > 0 && time.Since(e.CreatedAt) > maxAge {
		return nil, ErrNotFound
	}
	return &e, nil
}

// Save stores a document and returns the new entry
func (s *Store) Save(ctx context.Context, imageHash, backend, model, document string) (*Entry, error) {
	e := &Entry{
		ID:        uuid.New().String(),
		ImageHash: imageHash,
		Backend:   backend,
		Model:     model,
		Document:  document,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO outlines (id, image_hash, backend, model, document, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		e.ID, e.ImageHash, e.Backend, e.Model, e.Document, e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert outline: %w", err)
	}
	return e, nil
}

// Prune deletes entries older than maxAge and returns how many were removed
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM outlines WHERE created_at < ?", time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("prune outlines: %w", err)
	}
	return res.RowsAffected()
}

// Client serves outline documents from the cache and fills it from next
type Client struct {
	store   *Store
	next    client.OutlineClient
	backend string
	model   string
	maxAge  time.Duration
}

// Wrap returns an OutlineClient that caches the responses of next
func Wrap(store *Store, next client.OutlineClient, backend, model string, maxAge time.Duration) *Client {
	return &Client{store: store, next: next, backend: backend, model: model, maxAge: maxAge}
}

// Outline implements client.OutlineClient
func (c *Client) Outline(ctx context.Context, req client.Request) (string, error) {
	hash := HashImage(req.Image)

	e, err := c.store.FindByHash(ctx, hash, c.backend, c.model, c.maxAge)
	switch {
	case err == nil:
		return e.Document, nil
	case !errors.Is(err, ErrNotFound):
		log.Printf("cache: lookup failed: %v", err)
	}

	doc, err := c.next.Outline(ctx, req)
	if err != nil {
		return "", err
	}
	if _, err := c.store.Save(ctx, hash, c.backend, c.model, doc); err != nil {
		log.Printf("cache: %v", err)
	}
	return doc, nil
}
