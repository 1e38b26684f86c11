// Package auth signs operators into the web console.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/srt-reserver/internal/db"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Operator struct {
	ID        int64
	Username  string
	CreatedAt time.Time
}

func HashPassword(pw string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
}

func CheckPassword(hash []byte, pw string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(pw)) == nil
}

// Operators is the operator table.
type Operators struct{ db *db.DB }

func NewOperators(d *db.DB) *Operators { return &Operators{db: d} }

func (o *Operators) Create(ctx context.Context, username, password string) (Operator, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < 8 {
		return Operator{}, fmt.Errorf("username is required and password needs at least 8 characters")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Operator{}, err
	}
	op := Operator{Username: username}
	err = o.db.QueryRow(ctx,
		`INSERT INTO operators(username, password_hash) VALUES ($1,$2) RETURNING id, created_at`,
		username, hash,
	).Scan(&op.ID, &op.CreatedAt)
	if err != nil {
		return Operator{}, db.WrapNotFound(err)
	}
	return op, nil
}

// Verify returns the operator when password matches. Unknown names and wrong
// passwords both give ErrInvalidCredentials.
func (o *Operators) Verify(ctx context.Context, username, password string) (Operator, error) {
	var (
		op   Operator
		hash []byte
	)
	err := o.db.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM operators WHERE username=$1`,
		strings.TrimSpace(username),
	).Scan(&op.ID, &op.Username, &hash, &op.CreatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return Operator{}, ErrInvalidCredentials
		}
		return Operator{}, db.WrapNotFound(err)
	}
	if !CheckPassword(hash, password) {
		return Operator{}, ErrInvalidCredentials
	}
	return op, nil
}
