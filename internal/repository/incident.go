package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/service"
)

const incidentColumns = `
			id,
			dispatch_id,
			ST_Y(location::geometry) as latitude,
			ST_X(location::geometry) as longitude,
			status,
			audio_url,
			owner_user_id,
			created_at,
			updated_at`

type IncidentRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
}

func NewIncidentRepository(db *pgxpool.Pool, redisClient *redis.Client) service.IncidentRepository {
	return &IncidentRepository{
		db:          db,
		redisClient: redisClient,
	}
}

// Create создает новую запись о вызове в бд.
// Уникальность dispatch_id обеспечивает индекс в бд.
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	query := `
		INSERT INTO incidents (dispatch_id, location, status, owner_user_id)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326), $4, $5)
		RETURNING id, created_at, updated_at;
	`
	err := r.db.QueryRow(ctx, query,
		incident.DispatchID,
		incident.Longitude,
		incident.Latitude,
		incident.Status,
		incident.OwnerUserID,
	).Scan(&incident.ID, &incident.CreatedAt, &incident.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// GetByID возвращает вызов по внутреннему UUID
func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	query := fmt.Sprintf(`SELECT %s FROM incidents WHERE id = $1;`, incidentColumns)

	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

// GetByDispatchID возвращает вызов по публичному идентификатору
func (r *IncidentRepository) GetByDispatchID(ctx context.Context, dispatchID string) (*models.Incident, error) {
	query := fmt.Sprintf(`SELECT %s FROM incidents WHERE dispatch_id = $1;`, incidentColumns)

	incident, err := scanIncident(r.db.QueryRow(ctx, query, dispatchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get incident by dispatch id: %w", err)
	}
	return incident, nil
}

// ListAll возвращает все вызовы, новые первыми
func (r *IncidentRepository) ListAll(ctx context.Context) ([]*models.Incident, error) {
	query := fmt.Sprintf(`SELECT %s FROM incidents ORDER BY created_at DESC;`, incidentColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	return scanIncidents(rows)
}

// ListByOwner возвращает вызовы пользователя, новые первыми
func (r *IncidentRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Incident, error) {
	query := fmt.Sprintf(`SELECT %s FROM incidents WHERE owner_user_id = $1 ORDER BY created_at DESC;`, incidentColumns)

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents by owner: %w", err)
	}
	defer rows.Close()

	return scanIncidents(rows)
}

// FindNearby находит вызовы в радиусе radiusMeters от точки, ближние первыми
func (r *IncidentRepository) FindNearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]*models.Incident, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM incidents
		WHERE ST_DWithin(
			location,
			ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
			$3
		)
		ORDER BY ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography);
	`, incidentColumns)

	rows, err := r.db.Query(ctx, query, lon, lat, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby incidents: %w", err)
	}
	defer rows.Close()

	return scanIncidents(rows)
}

// UpdateStatus записывает новый статус и возвращает обновленную запись.
// Никакой проверки порядка переходов на уровне бд нет: любой статус
// замещает любой, побеждает последняя запись.
func (r *IncidentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.Incident, error) {
	query := fmt.Sprintf(`
		UPDATE incidents SET
			status = $1,
			updated_at = NOW()
		WHERE id = $2
		RETURNING %s;
	`, incidentColumns)

	incident, err := scanIncident(r.db.QueryRow(ctx, query, status, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update incident status: %w", err)
	}
	return incident, nil
}

// AttachAudio прикрепляет ссылку на аудиозапись по dispatch_id
func (r *IncidentRepository) AttachAudio(ctx context.Context, dispatchID, audioURL string) (*models.Incident, error) {
	query := fmt.Sprintf(`
		UPDATE incidents SET
			audio_url = $1,
			updated_at = NOW()
		WHERE dispatch_id = $2
		RETURNING %s;
	`, incidentColumns)

	incident, err := scanIncident(r.db.QueryRow(ctx, query, audioURL, dispatchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to attach audio: %w", err)
	}
	return incident, nil
}

// GetFromCache пытается получить вызов из Redis по dispatch_id
func (r *IncidentRepository) GetFromCache(ctx context.Context, dispatchID string) (*models.Incident, error) {
	key := fmt.Sprintf("sos:%s", dispatchID)
	val, err := r.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get incident from cache: %w", err)
	}

	incident := &models.Incident{}
	if err := json.Unmarshal(val, incident); err != nil {
		return nil, fmt.Errorf("failed to unmarshal incident from cache: %w", err)
	}
	return incident, nil
}

// SetCache сохраняет вызов в Redis
func (r *IncidentRepository) SetCache(ctx context.Context, incident *models.Incident) error {
	key := fmt.Sprintf("sos:%s", incident.DispatchID)
	val, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("failed to marshal incident for cache: %w", err)
	}
	// Срок жизни кэша - 5 минут
	if err := r.redisClient.Set(ctx, key, val, 5*time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to set incident in cache: %w", err)
	}
	return nil
}

// InvalidateCache удаляет вызов из Redis кэша
func (r *IncidentRepository) InvalidateCache(ctx context.Context, dispatchID string) error {
	key := fmt.Sprintf("sos:%s", dispatchID)
	if err := r.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate incident cache: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (*models.Incident, error) {
	incident := &models.Incident{}
	err := row.Scan(
		&incident.ID,
		&incident.DispatchID,
		&incident.Latitude,
		&incident.Longitude,
		&incident.Status,
		&incident.AudioURL,
		&incident.OwnerUserID,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return incident, nil
}

func scanIncidents(rows pgx.Rows) ([]*models.Incident, error) {
	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return incidents, nil
}
