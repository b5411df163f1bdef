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

package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/tomoncle/scholar/database"
	"github.com/tomoncle/scholar/model"
	"github.com/tomoncle/scholar/repository"
	"github.com/uptrace/bun"
)

// Result counts rows actually inserted by one seeding run.
type Result struct {
	Fields         int64
	Lecturers      int64
	Qualifications int64
	SkippedPairs   int
}

// Seeder inserts catalog records. Every insert ignores rows that already
// exist, so running it again changes nothing.
type Seeder struct {
	fields         repository.Repository[model.Field]
	lecturers      repository.Repository[model.Lecturer]
	lecturerFields repository.Repository[model.LecturerField]
	logger         database.Logger
}

// NewSeeder returns a seeder writing through db, which may be a single
// connection.
func NewSeeder(db bun.IDB, logger database.Logger) *Seeder {
	if logger == nil {
		logger = database.NopLogger()
	}
	return &Seeder{
		fields:         repository.NewRepository[model.Field](db),
		lecturers:      repository.NewRepository[model.Lecturer](db),
		lecturerFields: repository.NewRepository[model.LecturerField](db),
		logger:         logger,
	}
}

// Seed inserts fields, lecturers and qualifications in that order.
func (s *Seeder) Seed(ctx context.Context, c *Catalog) (*Result, error) {
	start := time.Now()
	result := &Result{}
	var err error

	if result.Fields, err = s.SeedFields(ctx, c.Fields); err != nil {
		return result, err
	}
	if result.Lecturers, err = s.SeedLecturers(ctx, c.Lecturers); err != nil {
		return result, err
	}
	if result.Qualifications, result.SkippedPairs, err = s.SeedQualifications(ctx, c.Rules()); err != nil {
		return result, err
	}

	s.logger.Info("Seed data populated",
		"fields", result.Fields,
		"lecturers", result.Lecturers,
		"qualifications", result.Qualifications,
		"skipped_pairs", result.SkippedPairs,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}

func (s *Seeder) SeedFields(ctx context.Context, specs []FieldSpec) (int64, error) {
	rows := make([]*model.Field, 0, len(specs))
	for _, f := range specs {
		rows = append(rows, &model.Field{Code: f.Code, Name: f.Name, Description: f.Description})
	}
	n, err := s.fields.InsertIgnore(ctx, []string{"code"}, rows...)
	if err != nil {
		return 0, fmt.Errorf("failed to seed fields: %w", err)
	}
	s.logger.Info("Fields seeded", "inserted", n, "catalog", len(specs))
	return n, nil
}

func (s *Seeder) SeedLecturers(ctx context.Context, specs []LecturerSpec) (int64, error) {
	rows := make([]*model.Lecturer, 0, len(specs))
	for _, l := range specs {
		rows = append(rows, &model.Lecturer{Name: l.Name, Email: l.Email, MaxStudents: l.MaxStudents})
	}
	n, err := s.lecturers.InsertIgnore(ctx, []string{"email"}, rows...)
	if err != nil {
		return 0, fmt.Errorf("failed to seed lecturers: %w", err)
	}
	s.logger.Info("Lecturers seeded", "inserted", n, "catalog", len(specs))
	return n, nil
}

// SeedQualifications links lecturers to fields rule by rule. Pairs naming a
// lecturer or field missing from the database are logged and skipped.
func (s *Seeder) SeedQualifications(ctx context.Context, rules []Rule) (int64, int, error) {
	var emails, codes []string
	for _, r := range rules {
		emails = append(emails, r.Lecturers...)
		codes = append(codes, r.Fields...)
	}
	lecturerIDs, err := s.lecturers.ResolveIDs(ctx, "email", unique(emails))
	if err != nil {
		return 0, 0, err
	}
	fieldIDs, err := s.fields.ResolveIDs(ctx, "code", unique(codes))
	if err != nil {
		return 0, 0, err
	}

	var (
		inserted int64
		skipped  int
	)
	for i, r := range rules {
		pairs := r.Expand()
		rows := make([]*model.LecturerField, 0, len(pairs))
		for _, p := range pairs {
			lid, okL := lecturerIDs[p.Email]
			fid, okF := fieldIDs[p.Code]
			if !okL || !okF {
				skipped++
				s.logger.Warn("Qualification skipped, unknown key", "rule", i+1, "email", p.Email, "code", p.Code)
				continue
			}
			rows = append(rows, &model.LecturerField{LecturerID: lid, FieldID: fid})
		}
		n, err := s.lecturerFields.InsertIgnore(ctx, []string{"lecturer_id", "field_id"}, rows...)
		if err != nil {
			return inserted, skipped, fmt.Errorf("failed to seed qualification rule %d: %w", i+1, err)
		}
		inserted += n
	}
	s.logger.Info("Qualifications seeded", "inserted", inserted, "rules", len(rules), "skipped", skipped)
	return inserted, skipped, nil
}

func unique(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
