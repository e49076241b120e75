package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/fellowship-api/internal/application"
	"github.com/example/fellowship-api/internal/ics"
	"github.com/example/fellowship-api/internal/persistence"
)

type groupService interface {
	CreateGroup(ctx context.Context, params application.CreateGroupParams) (application.Group, error)
	CreateRecurringGroup(ctx context.Context, params application.CreateGroupParams) (application.Group, error)
	UpdateGroup(ctx context.Context, params application.UpdateGroupParams) (application.Group, error)
	DeleteGroup(ctx context.Context, principal application.Principal, groupID string) error
	ListUpcomingMeetings(ctx context.Context, principal application.Principal, limit int) ([]application.UpcomingMeeting, error)
	GroupCalendar(ctx context.Context, principal application.Principal, groupID string) (application.Group, []persistence.Instance, error)
}

type GroupHandler struct {
	service   groupService
	responder responder
	logger    *slog.Logger
}

func NewGroupHandler(service groupService, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{service: service, responder: newResponder(logger), logger: defaultLogger(logger)}
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, false)
}

// CreateRecurring forces the recurring flag and applies the stricter
// end-date validation of the single-call recurring flow.
func (h *GroupHandler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, true)
}

func (h *GroupHandler) create(w http.ResponseWriter, r *http.Request, recurring bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req groupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params := application.CreateGroupParams{Principal: principal, Input: req.toInput()}

	var (
		group application.Group
		err   error
	)
	if recurring {
		group, err = h.service.CreateRecurringGroup(r.Context(), params)
	} else {
		group, err = h.service.CreateGroup(r.Context(), params)
	}
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toGroupDTO(group))
}

func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	groupID := strings.TrimSpace(mux.Vars(r)["id"])
	if groupID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidGroupID)
		return
	}

	var req groupUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	group, err := h.service.UpdateGroup(r.Context(), application.UpdateGroupParams{
		Principal: principal,
		GroupID:   groupID,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toGroupDTO(group))
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	groupID := strings.TrimSpace(mux.Vars(r)["id"])
	if groupID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidGroupID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteGroup(r.Context(), principal, groupID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *GroupHandler) UpcomingMeetings(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.responder.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Message: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	principal, _ := PrincipalFromContext(r.Context())
	meetings, err := h.service.ListUpcomingMeetings(r.Context(), principal, limit)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := make([]upcomingMeetingDTO, 0, len(meetings))
	for _, meeting := range meetings {
		payload = append(payload, upcomingMeetingDTO{
			GroupID:     meeting.GroupID,
			Title:       meeting.Title,
			Theme:       meeting.Theme,
			MeetingDate: meeting.MeetingDate,
			EndTime:     meeting.EndTime,
			MeetLink:    meeting.MeetLink,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, upcomingMeetingsResponse{Meetings: payload})
}

// Calendar serves an iCalendar rendition of the group's materialized
// instances to members.
func (h *GroupHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	groupID := strings.TrimSpace(mux.Vars(r)["id"])
	if groupID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidGroupID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	group, instances, err := h.service.GroupCalendar(r.Context(), principal, groupID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	feed, err := ics.Render(group, instances)
	if err != nil {
		handlerLogger(r.Context(), h.logger, "group", "calendar").ErrorContext(r.Context(), "failed to render calendar feed", "error", err)
		h.responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Message: "an internal error occurred"})
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+groupID+`.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(feed)); err != nil {
		handlerLogger(r.Context(), h.logger, "group", "calendar").ErrorContext(r.Context(), "failed to write calendar feed", "error", err)
	}
}

type recurrenceDTO struct {
	Pattern    string     `json:"pattern"`
	Interval   int        `json:"interval"`
	DaysOfWeek []int      `json:"days_of_week,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
}

type groupRequest struct {
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	ScheduledTime    *time.Time     `json:"scheduled_time"`
	DurationMinutes  int            `json:"duration_minutes"`
	Timezone         string         `json:"timezone"`
	IsRecurring      bool           `json:"is_recurring"`
	Recurrence       *recurrenceDTO `json:"recurrence"`
	RequiresApproval bool           `json:"requires_approval"`
	MaxParticipants  int            `json:"max_participants"`
	InviteeEmails    []string       `json:"invitee_emails"`
}

func (req groupRequest) toInput() application.GroupInput {
	input := application.GroupInput{
		Title:            req.Title,
		Description:      req.Description,
		ScheduledTime:    req.ScheduledTime,
		DurationMinutes:  req.DurationMinutes,
		Timezone:         req.Timezone,
		IsRecurring:      req.IsRecurring,
		RequiresApproval: req.RequiresApproval,
		MaxParticipants:  req.MaxParticipants,
		InviteeEmails:    req.InviteeEmails,
	}
	if req.Recurrence != nil {
		input.Recurrence = &application.RecurrenceInput{
			Pattern:    req.Recurrence.Pattern,
			Interval:   req.Recurrence.Interval,
			DaysOfWeek: req.Recurrence.DaysOfWeek,
			EndDate:    req.Recurrence.EndDate,
		}
	}
	return input
}

type groupUpdateRequest struct {
	Title            *string    `json:"title"`
	Description      *string    `json:"description"`
	ScheduledTime    *time.Time `json:"scheduled_time"`
	DurationMinutes  *int       `json:"duration_minutes"`
	RequiresApproval *bool      `json:"requires_approval"`
	MaxParticipants  *int       `json:"max_participants"`
}

func (req groupUpdateRequest) toInput() application.GroupUpdateInput {
	return application.GroupUpdateInput{
		Title:            req.Title,
		Description:      req.Description,
		ScheduledTime:    req.ScheduledTime,
		DurationMinutes:  req.DurationMinutes,
		RequiresApproval: req.RequiresApproval,
		MaxParticipants:  req.MaxParticipants,
	}
}

type instanceDTO struct {
	MeetingDate time.Time `json:"meeting_date"`
	EndTime     time.Time `json:"end_time"`
}

type groupDTO struct {
	ID                    string         `json:"id"`
	Title                 string         `json:"title"`
	Description           string         `json:"description,omitempty"`
	Theme                 string         `json:"theme"`
	CreatorID             string         `json:"creator_id"`
	ScheduledTime         *time.Time     `json:"scheduled_time,omitempty"`
	DurationMinutes       int            `json:"duration_minutes"`
	IsRecurring           bool           `json:"is_recurring"`
	Recurrence            *recurrenceDTO `json:"recurrence,omitempty"`
	RecurrenceRule        string         `json:"recurrence_rule,omitempty"`
	RecurrenceDescription string         `json:"recurrence_description,omitempty"`
	NextOccurrence        *time.Time     `json:"next_occurrence,omitempty"`
	Timezone              string         `json:"timezone"`
	MeetLink              string         `json:"meet_link,omitempty"`
	RequiresApproval      bool           `json:"requires_approval"`
	MaxParticipants       int            `json:"max_participants,omitempty"`
	CalendarSynced        bool           `json:"calendar_synced"`
	Instances             []instanceDTO  `json:"instances,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

func toGroupDTO(group application.Group) groupDTO {
	dto := groupDTO{
		ID:                    group.ID,
		Title:                 group.Title,
		Description:           group.Description,
		Theme:                 group.Theme,
		CreatorID:             group.CreatorID,
		ScheduledTime:         group.ScheduledTime,
		DurationMinutes:       group.DurationMinutes,
		IsRecurring:           group.IsRecurring,
		RecurrenceRule:        group.RecurrenceRule,
		RecurrenceDescription: group.RecurrenceDescription,
		NextOccurrence:        group.NextOccurrence,
		Timezone:              group.Timezone,
		MeetLink:              group.MeetLink,
		RequiresApproval:      group.RequiresApproval,
		MaxParticipants:       group.MaxParticipants,
		CalendarSynced:        group.CalendarSynced,
		CreatedAt:             group.CreatedAt,
		UpdatedAt:             group.UpdatedAt,
	}
	if group.Recurrence != nil {
		dto.Recurrence = &recurrenceDTO{
			Pattern:    group.Recurrence.Pattern,
			Interval:   group.Recurrence.Interval,
			DaysOfWeek: group.Recurrence.DaysOfWeek,
			EndDate:    group.Recurrence.EndDate,
		}
	}
	for _, inst := range group.Instances {
		dto.Instances = append(dto.Instances, instanceDTO{MeetingDate: inst.MeetingDate, EndTime: inst.EndTime})
	}
	return dto
}

type upcomingMeetingDTO struct {
	GroupID     string    `json:"group_id"`
	Title       string    `json:"title"`
	Theme       string    `json:"theme"`
	MeetingDate time.Time `json:"meeting_date"`
	EndTime     time.Time `json:"end_time"`
	MeetLink    string    `json:"meet_link,omitempty"`
}

type upcomingMeetingsResponse struct {
	Meetings []upcomingMeetingDTO `json:"meetings"`
}
