package handler

import (
	"net/http"
	"time"

	"github.com/BuzzLyutic/todo-query/internal/model"
	"github.com/BuzzLyutic/todo-query/pkg/respond"
)

// TimeHandler отдает текущее время сервера. Используется для демонстрации
// периодического опроса (refetch interval) на клиенте.
type TimeHandler struct {
	now func() time.Time
}

func NewTimeHandler(now func() time.Time) *TimeHandler {
	if now == nil {
		now = time.Now
	}
	return &TimeHandler{now: now}
}

func (h *TimeHandler) Now(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, model.ServerTime{Time: h.now().UTC()})
}
