package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/meishi/internal/model"
)

// uniqueViolation はPostgreSQLのunique_violationエラーコード。
const uniqueViolation = "23505"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, password_digest, first_name, last_name,
	profile_image_url, profile_image_id, links, refresh_token, created_at, updated_at`

// scanUser は1行をmodel.Userに読み込む。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var linksJSON []byte
	var refreshToken sql.NullString

	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordDigest,
		&user.FirstName, &user.LastName,
		&user.ProfileImageURL, &user.ProfileImageID,
		&linksJSON, &refreshToken,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if refreshToken.Valid {
		user.RefreshToken = refreshToken.String
	}
	if len(linksJSON) > 0 {
		if err := json.Unmarshal(linksJSON, &user.Links); err != nil {
			return nil, fmt.Errorf("failed to decode links: %w", err)
		}
	}

	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。メールアドレス重複時はErrEmailTakenを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	linksJSON, err := encodeLinks(user.Links)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_digest, first_name, last_name,
		   profile_image_url, profile_image_id, links, refresh_token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, $9, $10)`,
		user.ID, user.Email, user.PasswordDigest,
		user.FirstName, user.LastName,
		user.ProfileImageURL, user.ProfileImageID,
		linksJSON, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// UpdateRefreshToken はリフレッシュトークンのスロットを丸ごと上書きする。
func (r *PostgresUserRepo) UpdateRefreshToken(ctx context.Context, id, refreshToken string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1`,
		id, refreshToken,
	)
	if err != nil {
		return fmt.Errorf("failed to update refresh token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// ClearRefreshToken はリフレッシュトークンのスロットを空にする。
// 対象ユーザーが存在しない場合もエラーにしない（ログアウトは冪等）。
func (r *PostgresUserRepo) ClearRefreshToken(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = NULL, updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	return nil
}

// UpdateProfile はプロフィールフィールドを部分更新し、更新後のユーザーを返す。
// SET句は指定されたフィールドのみから動的に構築する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, id string, update *ProfileUpdate) (*model.User, error) {
	sets := []string{"updated_at = now()"}
	args := []interface{}{id}

	appendSet := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.FirstName != nil {
		appendSet("first_name", *update.FirstName)
	}
	if update.LastName != nil {
		appendSet("last_name", *update.LastName)
	}
	if update.Email != nil {
		appendSet("email", *update.Email)
	}
	if update.Links != nil {
		linksJSON, err := encodeLinks(update.Links)
		if err != nil {
			return nil, err
		}
		appendSet("links", linksJSON)
	}
	if update.ProfileImageURL != nil {
		appendSet("profile_image_url", *update.ProfileImageURL)
	}
	if update.ProfileImageID != nil {
		appendSet("profile_image_id", *update.ProfileImageID)
	}

	query := `UPDATE users SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// encodeLinks はリンク一覧をJSONB格納用にエンコードする。nilは空配列として格納する。
func encodeLinks(links []model.Link) ([]byte, error) {
	if links == nil {
		links = []model.Link{}
	}
	data, err := json.Marshal(links)
	if err != nil {
		return nil, fmt.Errorf("failed to encode links: %w", err)
	}
	return data, nil
}

// isUniqueViolation はPostgreSQLのユニーク制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
