package planner

import (
	"context"
	"sort"
	"strings"

	"studyplan/internal/model"
)

func (s *Service) CreateExam(ctx context.Context, owner string, in NewExam) (model.Exam, error) {
	if err := requireOwner(owner); err != nil {
		return model.Exam{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return model.Exam{}, err
	}
	at, err := parseDate("dateTime", in.DateTime)
	if err != nil {
		return model.Exam{}, err
	}
	e := model.Exam{
		OwnerID:  owner,
		Subject:  strings.TrimSpace(in.Subject),
		DateTime: at,
		Location: strings.TrimSpace(in.Location),
	}
	if _, err := s.exams.Insert(ctx, &e); err != nil {
		return model.Exam{}, err
	}
	return e, nil
}

// ListExams returns owner's exams, soonest first.
func (s *Service) ListExams(ctx context.Context, owner string) ([]model.Exam, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	exams, err := s.exams.ByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(exams, func(i, j int) bool {
		return exams[i].DateTime.Before(exams[j].DateTime)
	})
	return exams, nil
}

func (s *Service) UpdateExam(ctx context.Context, owner, id string, patch ExamPatch) (model.Exam, error) {
	if err := requireOwner(owner); err != nil {
		return model.Exam{}, err
	}
	if err := s.validate.Struct(patch); err != nil {
		return model.Exam{}, err
	}
	if _, err := s.exams.GetOwned(ctx, owner, id); err != nil {
		return model.Exam{}, err
	}
	return s.exams.Patch(ctx, id, func(e *model.Exam) error {
		if patch.Subject != nil {
			e.Subject = strings.TrimSpace(*patch.Subject)
		}
		if patch.DateTime != nil {
			at, err := parseDate("dateTime", *patch.DateTime)
			if err != nil {
				return err
			}
			e.DateTime = at
		}
		if patch.Location != nil {
			e.Location = strings.TrimSpace(*patch.Location)
		}
		return nil
	})
}

func (s *Service) DeleteExam(ctx context.Context, owner, id string) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	if _, err := s.exams.GetOwned(ctx, owner, id); err != nil {
		return err
	}
	return s.exams.Delete(ctx, id)
}
