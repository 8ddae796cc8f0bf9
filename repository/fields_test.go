package repository

import (
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/todostore/model"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

func todoTable() *schema.Table {
	return sqlitedialect.New().Tables().Get(reflect.TypeOf(model.Todo{}))
}

func TestPredicates(t *testing.T) {
	preds := predicates(todoTable(), Fields{
		"title":     "a",
		"Completed": true,
		"logic":     "or",
		"missing":   1,
	})
	require.Len(t, preds, 2)
	assert.Equal(t, predicate{column: "completed", value: true}, preds[0])
	assert.Equal(t, predicate{column: "title", value: "a"}, preds[1])
}

func TestIsOrLogic(t *testing.T) {
	tests := []struct {
		name   string
		fields Fields
		want   bool
	}{
		{"lower", Fields{"logic": "or"}, true},
		{"upper", Fields{"logic": "OR"}, true},
		{"and", Fields{"logic": "and"}, false},
		{"not a string", Fields{"logic": 1}, false},
		{"absent", Fields{"title": "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isOrLogic(tt.fields))
		})
	}
}

func TestIDFromFields(t *testing.T) {
	id, ok := idFromFields(todoTable(), Fields{"ID": 3, "title": "x"})
	assert.True(t, ok)
	assert.Equal(t, 3, id)

	_, ok = idFromFields(todoTable(), Fields{"title": "x"})
	assert.False(t, ok)

	_, ok = idFromFields(todoTable(), Fields{"id": nil})
	assert.False(t, ok)
}

func TestAssignFields(t *testing.T) {
	todo := &model.Todo{ID: 5, Title: "old"}
	err := assignFields(todoTable(), todo, Fields{
		"id":          9,
		"Title":       "new",
		"priority":    uint8(4),
		"description": nil,
		"bogus":       "x",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(5), todo.ID)
	assert.Equal(t, "new", todo.Title)
	assert.Equal(t, 4, todo.Priority)
	assert.Equal(t, "", todo.Description)

	err = assignFields(todoTable(), todo, Fields{"id": int32(9)}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(9), todo.ID)
}

func TestSetValue(t *testing.T) {
	var s string
	require.NoError(t, setValue(reflect.ValueOf(&s).Elem(), "x"))
	assert.Equal(t, "x", s)

	var p *int
	require.NoError(t, setValue(reflect.ValueOf(&p).Elem(), int64(7)))
	require.NotNil(t, p)
	assert.Equal(t, 7, *p)

	var n int
	assert.Error(t, setValue(reflect.ValueOf(&n).Elem(), "7"))

	var b bool
	assert.Error(t, setValue(reflect.ValueOf(&b).Elem(), 1))
}

func TestSetValueNumbersMustBeExact(t *testing.T) {
	var (
		i   int
		i8  int8
		i64 int64
		u8  uint8
		u   uint
		f32 float32
		f64 float64
	)
	tests := []struct {
		name  string
		dst   interface{}
		value interface{}
		ok    bool
	}{
		{"whole float to int", &i, 2.0, true},
		{"fractional float to int", &i, 1.9, false},
		{"negative fraction to int64", &i64, -1.5, false},
		{"nan to int", &i, math.NaN(), false},
		{"inf to int64", &i64, math.Inf(1), false},
		{"int8 overflow", &i8, 300, false},
		{"int8 fits", &i8, int64(-128), true},
		{"uint8 overflow", &u8, 256, false},
		{"negative to uint", &u, -1, false},
		{"negative float to uint8", &u8, -2.0, false},
		{"large uint to int64", &i64, uint64(math.MaxUint64), false},
		{"float32 overflow", &f32, 1e300, false},
		{"int to float64", &f64, int32(7), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := setValue(reflect.ValueOf(tt.dst).Elem(), tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
	assert.Equal(t, 2, i)
	assert.Equal(t, int8(-128), i8)
	assert.Equal(t, uint8(0), u8)
	assert.Equal(t, float64(7), f64)
}
