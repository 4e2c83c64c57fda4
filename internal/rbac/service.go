package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// Service resolves effective permissions from the role/permission tables.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// EffectivePermissions returns deduplicated permission names for a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT p.name
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		ORDER BY p.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}

// ResolveActor loads the actor's permission set and admin flag once per
// request. All transition checks afterwards are pure lookups on the Actor.
func (s *Service) ResolveActor(ctx context.Context, userID int64) (Actor, error) {
	var admin bool
	err := s.pool.QueryRow(ctx, `SELECT is_admin FROM users WHERE id = $1 AND is_active`, userID).Scan(&admin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Actor{}, ErrNotFound
		}
		return Actor{}, err
	}
	if admin {
		return NewActor(userID, true, nil), nil
	}
	perms, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return Actor{}, err
	}
	return NewActor(userID, false, perms), nil
}
