package user

import (
	"context"

	"github.com/Jabakyo/next-class/internal/httpx"
	"github.com/Jabakyo/next-class/internal/validation"
)

// MeetingTimeBody is one weekly meeting in a request.
type MeetingTimeBody struct {
	Days  string `json:"days" validate:"required,weekdays"`
	Start string `json:"start" validate:"required,clock"`
	End   string `json:"end" validate:"required,clock"`
}

// ClassBody describes a class section in a request.
type ClassBody struct {
	Subject      string            `json:"subject" validate:"required,max=16,excludes=-"`
	CourseNumber string            `json:"courseNumber" validate:"required,max=16,excludes=-"`
	Section      string            `json:"section" validate:"required,max=16,excludes=-"`
	Term         string            `json:"term,omitempty"`
	Instructor   string            `json:"instructor,omitempty"`
	MeetingTimes []MeetingTimeBody `json:"meetingTimes,omitempty" validate:"dive"`
	Room         string            `json:"room,omitempty"`
}

func (c ClassBody) toSelectedClass() SelectedClass {
	times := make([]MeetingTime, 0, len(c.MeetingTimes))
	for _, m := range c.MeetingTimes {
		times = append(times, MeetingTime(m))
	}
	return SelectedClass{
		Subject:      c.Subject,
		CourseNumber: c.CourseNumber,
		Section:      c.Section,
		Term:         c.Term,
		Instructor:   c.Instructor,
		MeetingTimes: times,
		Room:         c.Room,
	}
}

// AddClassRequest adds one class section.
type AddClassRequest struct {
	Body ClassBody
}

// AddClassResponse returns the stored class with its derived id.
type AddClassResponse struct {
	Body SelectedClass
}

// RemoveClassRequest names the class to drop.
type RemoveClassRequest struct {
	CourseID string `path:"courseId"`
}

// RemoveClassResponse is an empty successful response.
type RemoveClassResponse struct{}

// AddClassHandler adds a class to the current user's schedule.
func (h *Handler) AddClassHandler(ctx context.Context, input *AddClassRequest) (*AddClassResponse, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	class, err := h.service.AddClass(ctx, userID, input.Body.toSelectedClass())
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &AddClassResponse{Body: *class}, nil
}

// RemoveClassHandler removes a class from the current user's schedule.
func (h *Handler) RemoveClassHandler(ctx context.Context, input *RemoveClassRequest) (*RemoveClassResponse, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.service.RemoveClass(ctx, userID, input.CourseID); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &RemoveClassResponse{}, nil
}
