package handler

import (
	"amsf/internal/submission/models"
)

// SubmissionResponse adds the moves currently available to a submission.
type SubmissionResponse struct {
	*models.Submission
	AllowedEvents []models.Event `json:"allowed_events"`
	Frozen        bool           `json:"frozen"`
}

func FromSubmission(sub *models.Submission) SubmissionResponse {
	events := models.AllowedEvents(sub.Status)
	if events == nil {
		events = []models.Event{}
	}
	return SubmissionResponse{
		Submission:    sub,
		AllowedEvents: events,
		Frozen:        sub.Status.IsFrozen(),
	}
}

type ListResponse struct {
	Submissions []SubmissionResponse `json:"submissions"`
}

func FromSubmissions(subs []*models.Submission) ListResponse {
	out := ListResponse{Submissions: make([]SubmissionResponse, 0, len(subs))}
	for _, sub := range subs {
		out.Submissions = append(out.Submissions, FromSubmission(sub))
	}
	return out
}

type ValuesResponse struct {
	Values []models.SubmissionValue `json:"values"`
}

type MergedResponse struct {
	Values models.Merged `json:"values"`
}
