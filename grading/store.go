package grading

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// One stored grading run, for comparing labeler revisions over time.
type GradeRun struct {
	gorm.Model
	Name     string `gorm:"index"`
	Revision string `gorm:"index"`

	Scored          int
	Skipped         int
	ExactMatches    int
	LenientMatches  int
	TP              int
	FP              int
	FN              int
	SeverityTotal   int
	SeverityCorrect int

	ExactMatchAccuracy float64
	Precision          float64
	Recall             float64
}

type GradePost struct {
	ID         uint   `gorm:"primarykey"`
	RunID      uint   `gorm:"index"`
	Locator    string `gorm:"index"`
	Predicted  string
	Gold       string
	Exact      bool
	Lenient    bool
	Skipped    bool
	SkipReason string
}

// Persists grading reports with gorm (sqlite or postgres).
type ResultStore struct {
	db *gorm.DB
}

func NewResultStore(db *gorm.DB) (*ResultStore, error) {
	if err := db.AutoMigrate(&GradeRun{}, &GradePost{}); err != nil {
		return nil, fmt.Errorf("migrating result store: %w", err)
	}
	return &ResultStore{db: db}, nil
}

func labelsJSON(vals []string) string {
	if vals == nil {
		vals = []string{}
	}
	b, _ := json.Marshal(vals)
	return string(b)
}

// Stores the report totals and every post it carries (breakdown or mismatches, plus skips) in one transaction. Returns the new run ID.
func (s *ResultStore) SaveRun(ctx context.Context, rep *Report, revision string) (uint, error) {
	run := GradeRun{
		Name:               rep.Name,
		Revision:           revision,
		Scored:             rep.Scored,
		Skipped:            rep.Skipped,
		ExactMatches:       rep.ExactMatches,
		LenientMatches:     rep.LenientMatches,
		TP:                 rep.TP,
		FP:                 rep.FP,
		FN:                 rep.FN,
		SeverityTotal:      rep.SeverityTotal,
		SeverityCorrect:    rep.SeverityCorrect,
		ExactMatchAccuracy: rep.ExactMatchAccuracy(),
		Precision:          rep.Precision(),
		Recall:             rep.Recall(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		posts := rep.Posts
		if len(posts) == 0 {
			posts = rep.Mismatches
		}
		rows := make([]GradePost, 0, len(posts)+len(rep.Skips))
		for _, p := range posts {
			rows = append(rows, GradePost{
				RunID:     run.ID,
				Locator:   p.Locator,
				Predicted: labelsJSON(p.Predicted),
				Gold:      labelsJSON(p.Gold),
				Exact:     p.Exact,
				Lenient:   p.Lenient,
			})
		}
		for _, sk := range rep.Skips {
			rows = append(rows, GradePost{
				RunID:      run.ID,
				Locator:    sk.Locator,
				Skipped:    true,
				SkipReason: sk.Reason,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 500).Error
	})
	if err != nil {
		return 0, fmt.Errorf("saving grade run: %w", err)
	}
	return run.ID, nil
}

// Most recent runs first, optionally filtered by name.
func (s *ResultStore) RecentRuns(ctx context.Context, name string, limit int) ([]GradeRun, error) {
	var out []GradeRun
	q := s.db.WithContext(ctx).Order("id desc").Limit(limit)
	if name != "" {
		q = q.Where("name = ?", name)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ResultStore) RunPosts(ctx context.Context, runID uint) ([]GradePost, error) {
	var out []GradePost
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
