package handler

import (
	"net/http"

	"storyvote/internal/auth"
	"storyvote/internal/ledger"
	"storyvote/internal/story"

	"go.uber.org/zap"
)

type StoryHandler struct {
	Stories *story.Service
	Ledger  *ledger.Service
	Log     *zap.Logger
}

type createStoryReq struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	AgeRating   string `json:"age_rating" validate:"omitempty,oneof=0+ 6+ 12+ 16+ 18+"`
}

type updateStoryReq struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	AgeRating   *string `json:"age_rating" validate:"omitempty,oneof=0+ 6+ 12+ 16+ 18+"`
}

type publishChapterReq struct {
	Number        int      `json:"chapter_number" validate:"required,min=1"`
	Title         string   `json:"title" validate:"required,max=200"`
	Content       string   `json:"content" validate:"required"`
	QuestionText  string   `json:"question_text" validate:"max=500"`
	Options       []string `json:"options" validate:"required,min=3,dive,required,max=300"`
	DurationHours int      `json:"duration_hours" validate:"min=0"`
}

func (h *StoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req createStoryReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.Stories.CreateStory(r.Context(), uid, story.CreateStoryInput{
		Title:       req.Title,
		Description: req.Description,
		AgeRating:   req.AgeRating,
	})
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// Get returns the story view. Authenticated readers also get their balance
// and the chapters they have voted on.
func (h *StoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())

	view, err := h.Stories.View(r.Context(), id, uid)
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}

	resp := map[string]any{"story": view.Story, "chapters": view.Chapters}
	if view.Viewer != nil {
		balance, err := h.Ledger.Balance(r.Context(), uid)
		if err != nil {
			writeAppError(w, h.Log, err)
			return
		}
		resp["viewer"] = map[string]any{
			"user_id":           view.Viewer.UserID,
			"is_author":         view.Viewer.IsAuthor,
			"voted_chapter_ids": view.Viewer.VotedChapterIDs,
			"coin_balance":      balance,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())

	var req updateStoryReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.Stories.UpdateStory(r.Context(), id, uid, story.UpdateStoryInput{
		Title:       req.Title,
		Description: req.Description,
		AgeRating:   req.AgeRating,
	})
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *StoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())

	if err := h.Stories.DeleteStory(r.Context(), id, uid); err != nil {
		writeAppError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StoryHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())

	if err := h.Stories.CompleteStory(r.Context(), id, uid); err != nil {
		writeAppError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_completed": true})
}

func (h *StoryHandler) PublishChapter(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())

	var req publishChapterReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ch, err := h.Stories.PublishChapter(r.Context(), story.PublishInput{
		StoryID:       id,
		AuthorID:      uid,
		Number:        req.Number,
		Title:         req.Title,
		Content:       req.Content,
		Question:      req.QuestionText,
		Options:       req.Options,
		DurationHours: req.DurationHours,
	})
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}
	chaptersPublishedTotal.Inc()
	writeJSON(w, http.StatusCreated, ch)
}

// DeleteChapter answers with the chapter that is latest after the delete,
// null when the story has none left.
func (h *StoryHandler) DeleteChapter(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())

	latest, err := h.Stories.DeleteChapter(r.Context(), id, uid)
	if err != nil {
		writeAppError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id, "latest": latest})
}
