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

package model

import (
	"context"
	"time"

	"github.com/tomoncle/scholar/types"
	"github.com/uptrace/bun"
)

// Field is an area of study a student can choose and a lecturer can
// supervise. Code is its natural key.
type Field struct {
	bun.BaseModel `bun:"table:fields,alias:f"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Code        string    `bun:"code,notnull,unique" json:"code"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description" json:"description"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Lecturer supervises students up to MaxStudents. Email is its natural key.
type Lecturer struct {
	bun.BaseModel `bun:"table:lecturers,alias:l"`

	ID              int64     `bun:"id,pk,autoincrement" json:"id"`
	Name            string    `bun:"name,notnull" json:"name"`
	Email           string    `bun:"email,notnull,unique" json:"email"`
	MaxStudents     int       `bun:"max_students,notnull" json:"max_students"`
	CurrentStudents int       `bun:"current_students,notnull" json:"current_students"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at,notnull" json:"updated_at"`

	Fields []*Field `bun:"m2m:lecturer_fields,join:Lecturer=Field" json:"fields,omitempty"`
}

// LecturerField records that a lecturer is qualified for a field. The
// (lecturer_id, field_id) pair is unique.
type LecturerField struct {
	bun.BaseModel `bun:"table:lecturer_fields,alias:lf"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	LecturerID int64     `bun:"lecturer_id,notnull" json:"lecturer_id"`
	Lecturer   *Lecturer `bun:"rel:belongs-to,join:lecturer_id=id" json:"-"`
	FieldID    int64     `bun:"field_id,notnull" json:"field_id"`
	Field      *Field    `bun:"rel:belongs-to,join:field_id=id" json:"-"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Student is a survey respondent. The field of interest and the assigned
// lecturer stay nil until known.
type Student struct {
	bun.BaseModel `bun:"table:students,alias:s"`

	ID               int64            `bun:"id,pk,autoincrement" json:"id"`
	KoboSubmissionID string           `bun:"kobo_submission_id,nullzero" json:"kobo_submission_id,omitempty"`
	Name             string           `bun:"name,notnull" json:"name"`
	Email            string           `bun:"email,nullzero" json:"email,omitempty"`
	StudentNumber    string           `bun:"student_number,nullzero" json:"student_number,omitempty"`
	FieldID          *int64           `bun:"field_id" json:"field_id"`
	Field            *Field           `bun:"rel:belongs-to,join:field_id=id" json:"field,omitempty"`
	LecturerID       *int64           `bun:"lecturer_id" json:"lecturer_id"`
	Lecturer         *Lecturer        `bun:"rel:belongs-to,join:lecturer_id=id" json:"lecturer,omitempty"`
	SurveyData       types.JsonObject `bun:"survey_data" json:"survey_data,omitempty"`
	Status           string           `bun:"status,notnull" json:"status"`
	CreatedAt        time.Time        `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time        `bun:"updated_at,notnull" json:"updated_at"`
}

// AssignmentLog is an append-only record of an assignment decision.
type AssignmentLog struct {
	bun.BaseModel `bun:"table:assignment_logs,alias:al"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	StudentID  int64     `bun:"student_id,notnull" json:"student_id"`
	LecturerID *int64    `bun:"lecturer_id" json:"lecturer_id"`
	FieldID    *int64    `bun:"field_id" json:"field_id"`
	Action     string    `bun:"action,notnull" json:"action"`
	Reason     string    `bun:"reason,nullzero" json:"reason,omitempty"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Student statuses.
const (
	StudentPending  = "pending"
	StudentAssigned = "assigned"
)

// Register makes the join model known to db; m2m relations need it.
func Register(db *bun.DB) {
	db.RegisterModel((*LecturerField)(nil))
}

var (
	_ bun.BeforeAppendModelHook = (*Field)(nil)
	_ bun.BeforeAppendModelHook = (*Lecturer)(nil)
	_ bun.BeforeAppendModelHook = (*LecturerField)(nil)
	_ bun.BeforeAppendModelHook = (*Student)(nil)
	_ bun.BeforeAppendModelHook = (*AssignmentLog)(nil)
)

// touch fills timestamps on insert and bumps updated on update. Columns are
// written explicitly since not every dialect accepts DEFAULT in VALUES.
func touch(query bun.Query, created, updated *time.Time) {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if created != nil && created.IsZero() {
			*created = now
		}
		if updated != nil && updated.IsZero() {
			*updated = now
		}
	case *bun.UpdateQuery:
		if updated != nil {
			*updated = now
		}
	}
}

func (f *Field) BeforeAppendModel(_ context.Context, query bun.Query) error {
	touch(query, &f.CreatedAt, &f.UpdatedAt)
	return nil
}

func (l *Lecturer) BeforeAppendModel(_ context.Context, query bun.Query) error {
	touch(query, &l.CreatedAt, &l.UpdatedAt)
	return nil
}

func (lf *LecturerField) BeforeAppendModel(_ context.Context, query bun.Query) error {
	touch(query, &lf.CreatedAt, nil)
	return nil
}

func (s *Student) BeforeAppendModel(_ context.Context, query bun.Query) error {
	touch(query, &s.CreatedAt, &s.UpdatedAt)
	if s.Status == "" {
		s.Status = StudentPending
	}
	return nil
}

func (a *AssignmentLog) BeforeAppendModel(_ context.Context, query bun.Query) error {
	touch(query, &a.CreatedAt, nil)
	if a.Action == "" {
		a.Action = "assigned"
	}
	return nil
}

// FieldCodes lists the codes of the lecturer's loaded fields.
func (l *Lecturer) FieldCodes() []string {
	codes := make([]string, 0, len(l.Fields))
	for _, f := range l.Fields {
		codes = append(codes, f.Code)
	}
	return codes
}
