/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/uptrace/bun/schema"
)

const idColumn = "id"

// lookupField resolves key by column name first, then by Go field name.
func lookupField(table *schema.Table, key string) *schema.Field {
	if f := table.LookupField(key); f != nil {
		return f
	}
	for _, f := range table.Fields {
		if f.GoName == key {
			return f
		}
	}
	return nil
}

type predicate struct {
	column string
	value  interface{}
}

// predicates returns one equality predicate per key naming a column of table,
// sorted by column so the generated SQL is stable.
func predicates(table *schema.Table, filters Fields) []predicate {
	preds := make([]predicate, 0, len(filters))
	for key, value := range filters {
		f := lookupField(table, key)
		if f == nil {
			continue
		}
		preds = append(preds, predicate{column: f.Name, value: value})
	}
	sort.Slice(preds, func(i, j int) bool { return preds[i].column < preds[j].column })
	return preds
}

func isOrLogic(filters Fields) bool {
	s, ok := filters[LogicKey].(string)
	return ok && strings.EqualFold(s, "or")
}

// idFromFields returns the value given for the primary key, if any.
func idFromFields(table *schema.Table, fields Fields) (interface{}, bool) {
	for key, value := range fields {
		if f := lookupField(table, key); f != nil && f.Name == idColumn {
			return value, value != nil
		}
	}
	return nil, false
}

// assignFields copies fields onto entity. Keys that do not name a column are
// ignored; with skipPK the primary key is left untouched.
func assignFields[T any](table *schema.Table, entity *T, fields Fields, skipPK bool) error {
	strct := reflect.ValueOf(entity).Elem()
	for key, value := range fields {
		f := lookupField(table, key)
		if f == nil || (skipPK && f.IsPK) {
			continue
		}
		if err := setValue(f.Value(strct), value); err != nil {
			return errors.Wrapf(err, "field %s", key)
		}
	}
	return nil
}

// setValue assigns value to dst. Numbers convert only when exact: a float
// with a fractional part, a negative value into an unsigned field or a value
// out of the field's range is rejected.
func setValue(dst reflect.Value, value interface{}) error {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	src := reflect.ValueOf(value)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	if dst.Kind() == reflect.Ptr {
		ptr := reflect.New(dst.Type().Elem())
		if err := setValue(ptr.Elem(), value); err != nil {
			return err
		}
		dst.Set(ptr)
		return nil
	}
	switch {
	case isNumberKind(src.Kind()) && isNumberKind(dst.Kind()):
		return setNumber(dst, src)
	case src.Kind() == dst.Kind() && (src.Kind() == reflect.String || src.Kind() == reflect.Bool):
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, dst.Type())
}

func setNumber(dst, src reflect.Value) error {
	out := reflect.New(dst.Type()).Elem()
	switch {
	case isIntKind(dst.Kind()):
		i, ok := exactInt(src)
		if !ok || out.OverflowInt(i) {
			return fmt.Errorf("%v does not fit %s exactly", src.Interface(), dst.Type())
		}
		out.SetInt(i)
	case isUintKind(dst.Kind()):
		u, ok := exactUint(src)
		if !ok || out.OverflowUint(u) {
			return fmt.Errorf("%v does not fit %s exactly", src.Interface(), dst.Type())
		}
		out.SetUint(u)
	default:
		f := floatOf(src)
		if out.OverflowFloat(f) {
			return fmt.Errorf("%v overflows %s", src.Interface(), dst.Type())
		}
		out.SetFloat(f)
	}
	dst.Set(out)
	return nil
}

func exactInt(v reflect.Value) (int64, bool) {
	switch {
	case isIntKind(v.Kind()):
		return v.Int(), true
	case isUintKind(v.Kind()):
		u := v.Uint()
		return int64(u), u <= math.MaxInt64
	default:
		f := v.Float()
		// 2^63 is the first float64 above the int64 range
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	}
}

func exactUint(v reflect.Value) (uint64, bool) {
	switch {
	case isIntKind(v.Kind()):
		i := v.Int()
		return uint64(i), i >= 0
	case isUintKind(v.Kind()):
		return v.Uint(), true
	default:
		f := v.Float()
		if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
			return 0, false
		}
		return uint64(f), true
	}
}

func floatOf(v reflect.Value) float64 {
	switch {
	case isIntKind(v.Kind()):
		return float64(v.Int())
	case isUintKind(v.Kind()):
		return float64(v.Uint())
	default:
		return v.Float()
	}
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUintKind(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isNumberKind(k reflect.Kind) bool {
	return isIntKind(k) || isUintKind(k) || k == reflect.Float32 || k == reflect.Float64
}
