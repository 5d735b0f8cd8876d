package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/document-management/internal"
	"github.com/frahmantamala/document-management/internal/auth"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

const userQuery = `
	SELECT u.id, u.email, u.name, u.password_hash, u.status, u.role_id,
	       COALESCE(r.name, '') AS role_name, u.created_at, u.updated_at
	FROM users u
	LEFT JOIN roles r ON r.id = u.role_id
	WHERE u.deleted_at IS NULL AND `

func (r *Repository) GetByEmail(ctx context.Context, email string) (*auth.CredentialUser, error) {
	return r.getUser(ctx, userQuery+"u.email = ?", email)
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*auth.CredentialUser, error) {
	return r.getUser(ctx, userQuery+"u.id = ?", id)
}

func (r *Repository) getUser(ctx context.Context, query string, arg interface{}) (*auth.CredentialUser, error) {
	var user auth.CredentialUser
	row := r.db.WithContext(ctx).Raw(query, arg).Row()
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&user.Status, &user.RoleID, &user.RoleName, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, internal.ErrUserNotFound.WithCause(err)
	}
	return &user, nil
}

// ResolvePermissions flattens the role's grant set. Inactive roles and
// inactive permissions contribute nothing.
func (r *Repository) ResolvePermissions(ctx context.Context, roleID int64) ([]string, error) {
	query := `
		SELECT p.key
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN roles ro ON ro.id = rp.role_id
		WHERE rp.role_id = ? AND ro.is_active = true AND p.is_active = true
		ORDER BY p.key`

	rows, err := r.db.WithContext(ctx).Raw(query, roleID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*auth.Session, error) {
	var session auth.Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrInvalidSession
		}
		return nil, err
	}
	return &session, nil
}

// Rotate swaps the stored token hash for the next generation. The WHERE
// clause on the old hash makes this a compare-and-swap: a concurrent refresh
// that already rotated the session leaves zero rows for the loser.
func (r *SessionRepository) Rotate(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) error {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE sessions
		SET token_hash = ?, generation = generation + 1, expires_at = ?
		WHERE id = ? AND token_hash = ? AND revoked_at IS NULL`,
		newHash, expiresAt, id, oldHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrInvalidSession
	}
	return nil
}

func (r *SessionRepository) Revoke(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		time.Now(), id).Error
}
