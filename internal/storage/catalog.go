package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fambudget/internal/core"
)

// CreateFamily inserts a family and returns its id.
func (r *SQLiteRepository) CreateFamily(ctx context.Context, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO families (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("insert family: %w", err)
	}
	return res.LastInsertId()
}

// CreateUser inserts a user and returns its id.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO users (name, email) VALUES (?, ?)`, u.Name, u.Email)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return res.LastInsertId()
}

// AddMember records a user's membership in a family. Adding an existing
// member is a no-op.
func (r *SQLiteRepository) AddMember(ctx context.Context, familyID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO family_members (family_id, user_id) VALUES (?, ?)`, familyID, userID)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// RemoveMember drops a user's membership in a family.
func (r *SQLiteRepository) RemoveMember(ctx context.Context, familyID, userID int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM family_members WHERE family_id = ? AND user_id = ?`, familyID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return requireRow(res, userID)
}

// IsMember reports whether the user belongs to the family. Handlers call this
// before any rule or ledger access; the scheduling engine itself trusts the
// family id it is given.
func (r *SQLiteRepository) IsMember(ctx context.Context, familyID, userID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM family_members WHERE family_id = ? AND user_id = ?`, familyID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return true, nil
}

// ListMembers returns the users belonging to a family.
func (r *SQLiteRepository) ListMembers(ctx context.Context, familyID int64) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.name, COALESCE(u.email, '')
		FROM users u JOIN family_members m ON m.user_id = u.id
		WHERE m.family_id = ? ORDER BY u.id`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateCategory inserts a category and returns its id.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (family_id, name, kind) VALUES (?, ?, ?)`,
		c.FamilyID, c.Name, string(c.Kind))
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return res.LastInsertId()
}

// GetCategory fetches a category within a family. Rule validation reads this
// on every create/update, usually through the service-level cache.
func (r *SQLiteRepository) GetCategory(ctx context.Context, familyID, id int64) (core.Category, error) {
	var (
		c    core.Category
		kind string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, family_id, name, kind FROM categories WHERE id = ? AND family_id = ?`,
		id, familyID).Scan(&c.ID, &c.FamilyID, &c.Name, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, err)
	}
	c.Kind = core.Kind(kind)
	return c, nil
}

// ListCategories returns a family's category catalog.
func (r *SQLiteRepository) ListCategories(ctx context.Context, familyID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, family_id, name, kind FROM categories WHERE family_id = ? ORDER BY name`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var (
			c    core.Category
			kind string
		)
		if err := rows.Scan(&c.ID, &c.FamilyID, &c.Name, &kind); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Kind = core.Kind(kind)
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// DeleteCategory removes a category; referencing rules and transactions keep
// their category_id, so deletion fails while references exist.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, familyID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	return requireRow(res, id)
}
