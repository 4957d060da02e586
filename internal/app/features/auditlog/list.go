// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const pageSize = 50

// item is one event with actor and subject names resolved.
type item struct {
	audit.Event
	ActorName  string `json:"actor_name,omitempty"`
	TargetName string `json:"target_name,omitempty"`
}

type page struct {
	Items      []item `json:"items"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	Total      int64  `json:"total"`
}

// ServeList handles GET /me/activity. Filters: category, event_type,
// start_date and end_date (YYYY-MM-DD, end inclusive) and page.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	userID, err := uierrors.UserID(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	q := r.URL.Query()
	pageNum := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		pageNum = p
	}
	filter := audit.QueryFilter{
		Involving: &userID,
		Category:  strings.TrimSpace(q.Get("category")),
		EventType: strings.TrimSpace(q.Get("event_type")),
		Limit:     pageSize,
		Offset:    int64((pageNum - 1) * pageSize),
	}
	if s := strings.TrimSpace(q.Get("start_date")); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			h.ErrLog.Write(w, r, apperr.InvalidOperation("start_date must be YYYY-MM-DD"))
			return
		}
		filter.StartTime = &t
	}
	if s := strings.TrimSpace(q.Get("end_date")); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			h.ErrLog.Write(w, r, apperr.InvalidOperation("end_date must be YYYY-MM-DD"))
			return
		}
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &endOfDay
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "activity list")
	defer cancel()

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, apperr.FromStore(err, "query activity"))
		return
	}
	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, apperr.FromStore(err, "count activity"))
		return
	}

	ids := make([]primitive.ObjectID, 0, 2*len(events))
	seen := make(map[primitive.ObjectID]struct{})
	for _, e := range events {
		for _, id := range []*primitive.ObjectID{e.ActorID, e.UserID} {
			if id == nil {
				continue
			}
			if _, ok := seen[*id]; !ok {
				seen[*id] = struct{}{}
				ids = append(ids, *id)
			}
		}
	}
	names := make(map[primitive.ObjectID]string)
	if len(ids) > 0 {
		users, err := h.Users.GetByIDs(ctx, ids)
		if err != nil {
			h.Log.Warn("failed to fetch user names for activity", zap.Error(err))
		} else {
			for id, u := range users {
				names[id] = u.FullName
			}
		}
	}

	items := make([]item, 0, len(events))
	for _, e := range events {
		it := item{Event: e}
		if e.ActorID != nil {
			it.ActorName = names[*e.ActorID]
		}
		if e.UserID != nil {
			it.TargetName = names[*e.UserID]
		}
		items = append(items, it)
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}
	uierrors.JSON(w, http.StatusOK, page{Items: items, Page: pageNum, TotalPages: totalPages, Total: total})
}
