package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fraudwatch/server/domain/entities"
	"github.com/fraudwatch/server/domain/repositories"
)

type AnalysisRepository struct {
	db *sql.DB
}

// NewAnalysisRepository creates a SQLite-backed analysis repository
func NewAnalysisRepository(db *sql.DB) repositories.AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Create implements repositories.AnalysisRepository
func (r *AnalysisRepository) Create(ctx context.Context, analysis *entities.Analysis) error {
	if analysis == nil {
		return errors.New("analysis cannot be nil")
	}
	if err := analysis.Validate(); err != nil {
		return err
	}
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO analisis (usuario_id, texto_analizado, resultado, session_id, origen, fecha)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		analysis.UserID, analysis.AnalyzedText, analysis.Result,
		analysis.SessionID, analysis.Origin, analysis.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read analysis id: %w", err)
	}
	analysis.ID = id
	return nil
}

// ListByUser implements repositories.AnalysisRepository
func (r *AnalysisRepository) ListByUser(ctx context.Context, userID int64) ([]*entities.Analysis, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, usuario_id, texto_analizado, resultado, session_id, origen, fecha
		 FROM analisis WHERE usuario_id = ? ORDER BY fecha DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var analyses []*entities.Analysis
	for rows.Next() {
		var a entities.Analysis
		if err := rows.Scan(&a.ID, &a.UserID, &a.AnalyzedText, &a.Result, &a.SessionID, &a.Origin, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		analyses = append(analyses, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analyses: %w", err)
	}
	return analyses, nil
}

// Delete implements repositories.AnalysisRepository
func (r *AnalysisRepository) Delete(ctx context.Context, id int64, userID int64) error {
	var ownerID int64
	err := r.db.QueryRowContext(ctx, `SELECT usuario_id FROM analisis WHERE id = ?`, id).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repositories.ErrNotFound
		}
		return fmt.Errorf("failed to look up analysis: %w", err)
	}
	if ownerID != userID {
		return repositories.ErrNotOwned
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM analisis WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	return nil
}
