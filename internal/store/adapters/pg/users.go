package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
)

type userRepo struct{ pool *pgxpool.Pool }

func (r *userRepo) GetByID(ctx context.Context, userID string) (*repository.User, error) {
	var u repository.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, birth_date, language, gender,
		       authorized_client_ids, created_at
		FROM users WHERE id = $1`, userID).
		Scan(&u.ID, &u.FirstName, &u.LastName, &u.BirthDate, &u.Language,
			&u.Gender, &u.AuthorizedClientIDs, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *userRepo) Save(ctx context.Context, u *repository.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, birth_date, language, gender, authorized_client_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			birth_date = EXCLUDED.birth_date,
			language = EXCLUDED.language,
			gender = EXCLUDED.gender`,
		u.ID, u.FirstName, u.LastName, u.BirthDate, u.Language, u.Gender, u.AuthorizedClientIDs)
	return mapErr(err)
}

func (r *userRepo) AddAuthorizedClient(ctx context.Context, userID, clientID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET authorized_client_ids = CASE
			WHEN $2 = ANY(authorized_client_ids) THEN authorized_client_ids
			ELSE array_append(authorized_client_ids, $2)
		END
		WHERE id = $1`, userID, clientID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) PullAuthorizedClient(ctx context.Context, clientID string, userIDs []string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET authorized_client_ids = array_remove(authorized_client_ids, $1)
		WHERE id = ANY($2)`, clientID, userIDs)
	return mapErr(err)
}

func (r *userRepo) GetAddress(ctx context.Context, userID, addressID string) (*repository.Address, error) {
	var a repository.Address
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, street, house_number, zip_code, city, country, roles
		FROM addresses WHERE id = $2 AND user_id = $1`, userID, addressID).
		Scan(&a.ID, &a.UserID, &a.Street, &a.HouseNumber, &a.ZipCode, &a.City, &a.Country, &a.Roles)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (r *userRepo) SaveAddress(ctx context.Context, a *repository.Address) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO addresses (id, user_id, street, house_number, zip_code, city, country, roles)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			street = EXCLUDED.street,
			house_number = EXCLUDED.house_number,
			zip_code = EXCLUDED.zip_code,
			city = EXCLUDED.city,
			country = EXCLUDED.country,
			roles = EXCLUDED.roles`,
		a.ID, a.UserID, a.Street, a.HouseNumber, a.ZipCode, a.City, a.Country, a.Roles)
	return mapErr(err)
}

func (r *userRepo) RemoveAddress(ctx context.Context, userID, addressID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM addresses WHERE id = $2 AND user_id = $1`, userID, addressID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) ListAddresses(ctx context.Context, userID string) ([]repository.Address, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, street, house_number, zip_code, city, country, roles
		FROM addresses WHERE user_id = $1 ORDER BY position`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []repository.Address
	for rows.Next() {
		var a repository.Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Street, &a.HouseNumber,
			&a.ZipCode, &a.City, &a.Country, &a.Roles); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
