package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestTranslatePQError(t *testing.T) {
	cases := map[string]struct {
		code pq.ErrorCode
		want error
	}{
		"unique violation":      {"23505", ErrEmailExists},
		"serialization failure": {"40001", ErrConflict},
		"deadlock":              {"40P01", ErrConflict},
		"numeric out of range":  {"22003", ErrOutOfRange},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := translatePQError(fmt.Errorf("exec: %w", &pq.Error{Code: tc.code}), ErrEmailExists)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	plain := errors.New("connection reset")
	assert.Equal(t, plain, translatePQError(plain, nil))
}
