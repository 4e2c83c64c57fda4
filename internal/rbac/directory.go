package rbac

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Role is a named permission bundle as shown to administrators.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserAccount is the administrative view of a user.
type UserAccount struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsAdmin   bool      `json:"is_admin"`
	IsActive  bool      `json:"is_active"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

// Directory reads the role and user tables for administration.
type Directory struct {
	pool *pgxpool.Pool
}

// NewDirectory constructs Directory.
func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

// ListRoles returns every role with its granted permission names.
func (d *Directory) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, name, created_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	index := make(map[int64]int)
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt); err != nil {
			return nil, err
		}
		index[role.ID] = len(roles)
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	permRows, err := d.pool.Query(ctx, `
		SELECT rp.role_id, p.name
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		ORDER BY p.name`)
	if err != nil {
		return nil, err
	}
	defer permRows.Close()
	for permRows.Next() {
		var roleID int64
		var perm string
		if err := permRows.Scan(&roleID, &perm); err != nil {
			return nil, err
		}
		if i, ok := index[roleID]; ok {
			roles[i].Permissions = append(roles[i].Permissions, perm)
		}
	}
	return roles, permRows.Err()
}

// ListUsers returns every account with its assigned role names.
func (d *Directory) ListUsers(ctx context.Context) ([]UserAccount, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, email, name, is_admin, is_active, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []UserAccount
	index := make(map[int64]int)
	for rows.Next() {
		var u UserAccount
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.IsAdmin, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, err
		}
		index[u.ID] = len(users)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	roleRows, err := d.pool.Query(ctx, `
		SELECT ur.user_id, r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		ORDER BY r.name`)
	if err != nil {
		return nil, err
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var userID int64
		var role string
		if err := roleRows.Scan(&userID, &role); err != nil {
			return nil, err
		}
		if i, ok := index[userID]; ok {
			users[i].Roles = append(users[i].Roles, role)
		}
	}
	return users, roleRows.Err()
}

// AssignRole links a user to a role by name.
func (d *Directory) AssignRole(ctx context.Context, userID int64, role string) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2
		ON CONFLICT DO NOTHING`, userID, role)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
