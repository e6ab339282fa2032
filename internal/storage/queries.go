package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type AccountRow struct {
	UID          string
	Email        string
	PasswordHash []byte
	Disabled     bool
	CreatedAt    int64
}

const insertAccount = `-- name: InsertAccount :execrows
INSERT INTO accounts (uid, email, password_hash, disabled, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(email) DO NOTHING
`

func (q *Queries) InsertAccount(ctx context.Context, arg AccountRow) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertAccount,
		arg.UID, arg.Email, arg.PasswordHash, arg.Disabled, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getAccountByEmail = `-- name: GetAccountByEmail :one
SELECT uid, email, password_hash, disabled, created_at FROM accounts WHERE email = ?
`

func (q *Queries) GetAccountByEmail(ctx context.Context, email string) (AccountRow, error) {
	row := q.db.QueryRowContext(ctx, getAccountByEmail, email)
	var a AccountRow
	err := row.Scan(&a.UID, &a.Email, &a.PasswordHash, &a.Disabled, &a.CreatedAt)
	return a, err
}

const insertRevokedToken = `-- name: InsertRevokedToken :exec
INSERT INTO revoked_tokens (token_id, expires_at) VALUES (?, ?)
ON CONFLICT(token_id) DO UPDATE SET expires_at = excluded.expires_at
`

func (q *Queries) InsertRevokedToken(ctx context.Context, tokenID string, expiresAt int64) error {
	_, err := q.db.ExecContext(ctx, insertRevokedToken, tokenID, expiresAt)
	return err
}

const deleteExpiredTokens = `-- name: DeleteExpiredTokens :exec
DELETE FROM revoked_tokens WHERE expires_at < ?
`

func (q *Queries) DeleteExpiredTokens(ctx context.Context, now int64) error {
	_, err := q.db.ExecContext(ctx, deleteExpiredTokens, now)
	return err
}

const countRevokedToken = `-- name: CountRevokedToken :one
SELECT COUNT(*) FROM revoked_tokens WHERE token_id = ?
`

func (q *Queries) CountRevokedToken(ctx context.Context, tokenID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countRevokedToken, tokenID)
	var n int64
	err := row.Scan(&n)
	return n, err
}

type ProfileRow struct {
	UID         string
	Email       string
	DisplayName string
}

// The display name is only overwritten when a new one is given.
const upsertProfile = `-- name: UpsertProfile :exec
INSERT INTO profiles (uid, email, display_name) VALUES (?, ?, ?)
ON CONFLICT(uid) DO UPDATE SET
    email = excluded.email,
    display_name = CASE WHEN excluded.display_name = '' THEN profiles.display_name ELSE excluded.display_name END,
    updated_at = CURRENT_TIMESTAMP
`

func (q *Queries) UpsertProfile(ctx context.Context, arg ProfileRow) error {
	_, err := q.db.ExecContext(ctx, upsertProfile, arg.UID, arg.Email, arg.DisplayName)
	return err
}

const getProfile = `-- name: GetProfile :one
SELECT uid, email, display_name FROM profiles WHERE uid = ?
`

func (q *Queries) GetProfile(ctx context.Context, uid string) (ProfileRow, error) {
	row := q.db.QueryRowContext(ctx, getProfile, uid)
	var p ProfileRow
	err := row.Scan(&p.UID, &p.Email, &p.DisplayName)
	return p, err
}

const putDocument = `-- name: PutDocument :exec
INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
ON CONFLICT(collection, id) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP
`

func (q *Queries) PutDocument(ctx context.Context, collection, id, body string) error {
	_, err := q.db.ExecContext(ctx, putDocument, collection, id, body)
	return err
}

const getDocument = `-- name: GetDocument :one
SELECT body FROM documents WHERE collection = ? AND id = ?
`

func (q *Queries) GetDocument(ctx context.Context, collection, id string) (string, error) {
	row := q.db.QueryRowContext(ctx, getDocument, collection, id)
	var body string
	err := row.Scan(&body)
	return body, err
}

type DocumentRow struct {
	ID   string
	Body string
}

const listDocuments = `-- name: ListDocuments :many
SELECT id, body FROM documents WHERE collection = ? ORDER BY id
`

func (q *Queries) ListDocuments(ctx context.Context, collection string) ([]DocumentRow, error) {
	rows, err := q.db.QueryContext(ctx, listDocuments, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DocumentRow
	for rows.Next() {
		var i DocumentRow
		if err := rows.Scan(&i.ID, &i.Body); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteDocument = `-- name: DeleteDocument :exec
DELETE FROM documents WHERE collection = ? AND id = ?
`

func (q *Queries) DeleteDocument(ctx context.Context, collection, id string) error {
	_, err := q.db.ExecContext(ctx, deleteDocument, collection, id)
	return err
}
