package postgres

import (
	"context"
	"fmt"
)

// Migrate 创建扩展与表结构，可重复执行。
// dimension 大于 0 时 embedding 列固定维度。
func (c *Client) Migrate(ctx context.Context, dimension int) error {
	ctx, span := tracer.Start(ctx, "postgres.Migrate")
	defer span.End()

	vectorType := "vector"
	if dimension > 0 {
		vectorType = fmt.Sprintf("vector(%d)", dimension)
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		`CREATE TABLE IF NOT EXISTS videos (
			id BIGSERIAL PRIMARY KEY,
			video_id TEXT NOT NULL UNIQUE,
			encrypted_transcript TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT 'unknown',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS segments (
			video_id TEXT NOT NULL REFERENCES videos (video_id) ON DELETE CASCADE,
			segment_index INTEGER NOT NULL CHECK (segment_index >= 0),
			content TEXT NOT NULL CHECK (content <> ''),
			embedding %s NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (video_id, segment_index)
		)`, vectorType),
	}

	db := c.db.WithContext(ctx)
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil && !isAlreadyExists(err) {
			span.RecordError(err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
