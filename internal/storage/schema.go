package storage

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS cloud_guideline_sections (
  id BIGSERIAL PRIMARY KEY,
  external_id TEXT NOT NULL UNIQUE,
  title VARCHAR(512) NOT NULL,
  body TEXT NOT NULL,
  language VARCHAR(12) NOT NULL DEFAULT 'en',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS regulation_sections (
  id BIGSERIAL PRIMARY KEY,
  external_id TEXT NOT NULL UNIQUE,
  title VARCHAR(512) NOT NULL,
  body TEXT NOT NULL,
  region VARCHAR(64) NOT NULL,
  regulation_type VARCHAR(64) NOT NULL,
  language VARCHAR(12) NOT NULL DEFAULT 'en',
  embedding vector,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS matches (
  id BIGSERIAL PRIMARY KEY,
  guideline_id BIGINT NOT NULL REFERENCES cloud_guideline_sections(id),
  regulation_id BIGINT NOT NULL REFERENCES regulation_sections(id),
  score DOUBLE PRECISION NOT NULL,
  confidence DOUBLE PRECISION NOT NULL,
  rationale TEXT NOT NULL,
  guideline_excerpt TEXT,
  regulation_excerpt TEXT,
  guideline_span_start INTEGER,
  guideline_span_end INTEGER,
  regulation_span_start INTEGER,
  regulation_span_end INTEGER,
  status VARCHAR(32) NOT NULL DEFAULT 'pending',
  reviewer VARCHAR(128),
  reviewer_notes TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS matches_guideline_idx ON matches (guideline_id, status)`,
	`CREATE TABLE IF NOT EXISTS batch_runs (
  run_id TEXT PRIMARY KEY,
  status VARCHAR(32) NOT NULL,
  match_count INTEGER NOT NULL DEFAULT 0,
  report_path TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
}

// Migrate creates the schema if it does not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	for i, stmt := range postgresSchema {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
