package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soochol/hookboard/internal/hookboard"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("other")))
}

func TestNullableJSON(t *testing.T) {
	v, err := nullableJSON(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = nullableJSON(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), v)
}

func TestSQLLimit(t *testing.T) {
	assert.Nil(t, sqlLimit(0))
	assert.Nil(t, sqlLimit(-1))
	assert.Equal(t, 20, sqlLimit(20))
}

func TestMarshalWorkflowJSONDefaultsEmpty(t *testing.T) {
	headers, schema, err := marshalWorkflowJSON(&hookboard.Workflow{ID: "wf-1"})

	require.NoError(t, err)
	assert.Equal(t, "{}", string(headers))
	assert.Equal(t, "[]", string(schema))
}
