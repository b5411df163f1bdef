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

package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want SQLError
	}{
		{"nil", nil, UnknownErr},
		{"mysql table", &mysql.MySQLError{Number: 1050, Message: "Table 'fields' already exists"}, ExistTableErr},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, DuplicateKeyErr},
		{"pq relation", &pq.Error{Code: "42P07", Message: `relation "fields" already exists`}, ExistTableErr},
		{"pq index", &pq.Error{Code: "42P07", Message: `relation "idx_students_field" already exists (index)`}, ExistIndexErr},
		{"pq trigger", &pq.Error{Code: "42710", Message: `trigger "x" already exists`}, ExistObjectErr},
		{"pq missing", &pq.Error{Code: "42P01"}, NoTableErr},
		{"wrapped pq", fmt.Errorf("exec: %w", &pq.Error{Code: "23505"}), DuplicateKeyErr},
		{"sqlite table", errors.New("SQL logic error: table fields already exists (1)"), ExistTableErr},
		{"sqlite index", errors.New("index idx_students_field already exists"), ExistIndexErr},
		{"sqlite missing", errors.New("no such table: fields"), NoTableErr},
		{"sqlite unique", errors.New("UNIQUE constraint failed: fields.code"), DuplicateKeyErr},
		{"syntax", errors.New(`near "CREAT": syntax error`), SyntaxErr},
		{"other", errors.New("connection refused"), UnknownErr},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyError(tc.err))
		})
	}
}

func TestAlreadyExists(t *testing.T) {
	assert.True(t, ExistTableErr.AlreadyExists())
	assert.True(t, ExistIndexErr.AlreadyExists())
	assert.True(t, DuplicateKeyErr.AlreadyExists())
	assert.False(t, SyntaxErr.AlreadyExists())
	assert.False(t, UnknownErr.AlreadyExists())
	assert.Equal(t, "table_exists", ExistTableErr.String())
}
