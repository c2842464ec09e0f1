package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeTable(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		message   bool
		details   bool
		retryable bool
	}{
		{CodeValidation, http.StatusBadRequest, true, true, false},
		{CodeUnauthorized, http.StatusUnauthorized, true, false, false},
		{CodeForbidden, http.StatusForbidden, true, false, false},
		{CodeNotFound, http.StatusNotFound, true, false, false},
		{CodeConflict, http.StatusConflict, true, false, false},
		{CodeStateConflict, http.StatusUnprocessableEntity, true, true, false},
		{CodeIdempotency, http.StatusConflict, true, true, false},
		{CodePayment, http.StatusPaymentRequired, true, true, false},
		{CodeInternal, http.StatusInternalServerError, false, false, true},
		{CodeDependency, http.StatusServiceUnavailable, false, true, true},
		{CodeConfiguration, http.StatusInternalServerError, false, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.code.Status())
			assert.Equal(t, tt.message, tt.code.ShowsMessage())
			assert.Equal(t, tt.details, tt.code.ShowsDetails())
			assert.Equal(t, tt.retryable, tt.code.Retryable())
			assert.NotEmpty(t, tt.code.PublicMessage())
		})
	}

	unknown := Code("SOMETHING_UNKNOWN")
	assert.Equal(t, http.StatusInternalServerError, unknown.Status())
	assert.False(t, unknown.ShowsMessage())
}

func TestConstructorsAndChain(t *testing.T) {
	base := New(CodeValidation, "missing foo").WithDetails(map[string]any{"field": "foo"})
	assert.Equal(t, CodeValidation, base.Code())
	assert.Equal(t, "missing foo", base.Message())
	assert.NotNil(t, base.Details())
	assert.Equal(t, "VALIDATION_ERROR: missing foo", base.Error())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "save")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "CONFLICT: save: boom", wrapped.Error())

	assert.Equal(t, "Order 7 not found", Newf(CodeNotFound, "Order %d not found", 7).Message())
}

func TestAsCodeOfAndIsCode(t *testing.T) {
	outer := fmt.Errorf("checkout: %w", New(CodePayment, "card declined"))

	require.NotNil(t, As(outer))
	assert.Equal(t, CodePayment, CodeOf(outer))
	assert.True(t, IsCode(outer, CodePayment))
	assert.False(t, IsCode(outer, CodeValidation))

	plain := stdErrors.New("plain")
	assert.Nil(t, As(plain))
	assert.Nil(t, As(nil))
	assert.Equal(t, CodeInternal, CodeOf(plain))
	assert.False(t, IsCode(plain, CodePayment))
}

func TestLogFieldsIncludesPostgresDiagnostics(t *testing.T) {
	pgx := Wrap(CodeConflict, &pgconn.PgError{Code: "23505", ConstraintName: "orders_ref_key", TableName: "orders"}, "insert order")
	fields := LogFields(pgx)
	assert.Equal(t, CodeConflict, fields["error_code"])
	assert.Equal(t, "23505", fields["pg_code"])
	assert.Equal(t, "orders_ref_key", fields["pg_constraint"])
	assert.Len(t, fields["error_chain"], 2)

	pqErr := fmt.Errorf("raw: %w", &pq.Error{Code: "23503", Table: "basket_items"})
	fields = LogFields(pqErr)
	assert.Equal(t, "23503", fields["pg_code"])
	assert.Equal(t, "basket_items", fields["pg_table"])
	assert.NotContains(t, fields, "pg_constraint")

	assert.Empty(t, LogFields(nil))
}
