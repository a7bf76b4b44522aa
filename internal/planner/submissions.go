package planner

import (
	"context"
	"sort"
	"strings"

	"studyplan/internal/model"
)

func (s *Service) CreateSubmission(ctx context.Context, owner string, in NewSubmission) (model.Submission, error) {
	if err := requireOwner(owner); err != nil {
		return model.Submission{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return model.Submission{}, err
	}
	due, err := parseDate("dueDate", in.DueDate)
	if err != nil {
		return model.Submission{}, err
	}
	sub := model.Submission{
		OwnerID: owner,
		Title:   strings.TrimSpace(in.Title),
		Subject: strings.TrimSpace(in.Subject),
		DueDate: due,
		Status:  in.Status,
	}
	if sub.Status == "" {
		sub.Status = model.SubmissionOpen
	}
	if _, err := s.submissions.Insert(ctx, &sub); err != nil {
		return model.Submission{}, err
	}
	return sub, nil
}

// ListSubmissions returns owner's submissions ordered by due date.
func (s *Service) ListSubmissions(ctx context.Context, owner string) ([]model.Submission, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	subs, err := s.submissions.ByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	sortSubmissions(subs)
	return subs, nil
}

// ListSubmissionsBySubject returns owner's submissions for one subject
// ordered by due date.
func (s *Service) ListSubmissionsBySubject(ctx context.Context, owner, subject string) ([]model.Submission, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	subs, err := s.submissions.ByIndex(ctx, model.IndexBySubject, model.SubjectKey(owner, strings.TrimSpace(subject)))
	if err != nil {
		return nil, err
	}
	sortSubmissions(subs)
	return subs, nil
}

func sortSubmissions(subs []model.Submission) {
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].DueDate.Before(subs[j].DueDate)
	})
}

func (s *Service) UpdateSubmission(ctx context.Context, owner, id string, patch SubmissionPatch) (model.Submission, error) {
	if err := requireOwner(owner); err != nil {
		return model.Submission{}, err
	}
	if err := s.validate.Struct(patch); err != nil {
		return model.Submission{}, err
	}
	if _, err := s.submissions.GetOwned(ctx, owner, id); err != nil {
		return model.Submission{}, err
	}
	return s.submissions.Patch(ctx, id, func(sub *model.Submission) error {
		if patch.Title != nil {
			sub.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Subject != nil {
			sub.Subject = strings.TrimSpace(*patch.Subject)
		}
		if patch.DueDate != nil {
			due, err := parseDate("dueDate", *patch.DueDate)
			if err != nil {
				return err
			}
			sub.DueDate = due
		}
		if patch.Status != nil {
			sub.Status = *patch.Status
		}
		return nil
	})
}

// ToggleSubmission flips a submission between open and done.
func (s *Service) ToggleSubmission(ctx context.Context, owner, id string) (model.Submission, error) {
	if err := requireOwner(owner); err != nil {
		return model.Submission{}, err
	}
	if _, err := s.submissions.GetOwned(ctx, owner, id); err != nil {
		return model.Submission{}, err
	}
	return s.submissions.Patch(ctx, id, func(sub *model.Submission) error {
		if sub.Status == model.SubmissionDone {
			sub.Status = model.SubmissionOpen
		} else {
			sub.Status = model.SubmissionDone
		}
		return nil
	})
}

func (s *Service) DeleteSubmission(ctx context.Context, owner, id string) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	if _, err := s.submissions.GetOwned(ctx, owner, id); err != nil {
		return err
	}
	return s.submissions.Delete(ctx, id)
}
