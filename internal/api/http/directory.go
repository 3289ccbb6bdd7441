// internal/api/http/directory.go
package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/usersapi/internal/api/envelope"
	"github.com/mind-engage/usersapi/internal/directory"
	"github.com/mind-engage/usersapi/internal/storage"
)

const (
	defaultCount = 5
	maxCount     = 100
)

type Directory struct {
	Store         directory.Store
	Blobs         storage.BlobStore
	Log           *zap.Logger
	PhotoMaxBytes int64
	UsersURL      string // absolute URL of GET /users, used for page links
}

// MountDirectory registers the positions and users routes. protect guards
// user registration.
func MountDirectory(r chi.Router, d Directory, protect func(http.Handler) http.Handler) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r.Get("/positions", d.positions)
	r.Get("/users", d.listUsers)
	r.Get("/users/{id}", d.getUser)
	r.With(protect).Post("/users", d.createUser)
}

func (d Directory) positions(w http.ResponseWriter, r *http.Request) {
	ps, err := d.Store.ListPositions(r.Context())
	if err != nil {
		d.Log.Error("list positions", zap.Error(err))
		envelope.Fail(w, err)
		return
	}
	if len(ps) == 0 {
		envelope.Fail(w, envelope.NotFound("Page not found", nil))
		return
	}
	envelope.OK(w, http.StatusOK, "", map[string]any{"positions": ps})
}

type pageLinks struct {
	NextURL *string `json:"next_url"`
	PrevURL *string `json:"prev_url"`
}

// GET /users?page=N&count=M   or   GET /users?offset=K&count=M
func (d Directory) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fails := envelope.Fails{}

	count := defaultCount
	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fails.Add("count", "The count must be an integer.")
		} else {
			count = min(n, maxCount)
		}
	}

	useOffset := q.Get("offset") != ""
	offset, page := 0, 1
	if useOffset {
		n, err := strconv.Atoi(q.Get("offset"))
		if err != nil || n < 0 {
			fails.Add("offset", "The offset must be a non-negative integer.")
		}
		offset = n
	} else if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fails.Add("page", "The page must be at least 1.")
		}
		page = n
	}
	if !fails.Empty() {
		envelope.Fail(w, envelope.Unprocessable("Validation failed", fails))
		return
	}

	total, err := d.Store.CountUsers(r.Context())
	if err != nil {
		d.Log.Error("count users", zap.Error(err))
		envelope.Fail(w, err)
		return
	}

	data := map[string]any{"total_users": total}
	if !useOffset {
		totalPages := (total + count - 1) / count
		if page > 1 && page > totalPages {
			envelope.Fail(w, envelope.NotFound("Page not found", nil))
			return
		}
		var links pageLinks
		if page > 1 {
			links.PrevURL = d.pageURL(page-1, count)
		}
		if page < totalPages {
			links.NextURL = d.pageURL(page+1, count)
		}
		offset = count * (page - 1)
		data["page"] = page
		data["total_pages"] = totalPages
		data["links"] = links
	}

	users, err := d.Store.ListUsers(r.Context(), offset, count)
	if err != nil {
		d.Log.Error("list users", zap.Error(err))
		envelope.Fail(w, err)
		return
	}
	data["count"] = len(users)
	data["users"] = users
	envelope.OK(w, http.StatusOK, "", data)
}

func (d Directory) pageURL(page, count int) *string {
	s := fmt.Sprintf("%s?page=%d&count=%d", d.UsersURL, page, count)
	return &s
}

func (d Directory) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		envelope.Fail(w, envelope.Unprocessable("Validation failed",
			envelope.Fails{"user_id": {"The user_id must be an integer."}}))
		return
	}
	u, err := d.Store.GetUser(r.Context(), id)
	switch {
	case errors.Is(err, directory.ErrNotFound):
		envelope.Fail(w, envelope.NotFound("The user with the requested identifier does not exist",
			envelope.Fails{"user_id": {"User not found."}}))
	case err != nil:
		d.Log.Error("get user", zap.Int64("user_id", id), zap.Error(err))
		envelope.Fail(w, err)
	default:
		envelope.OK(w, http.StatusOK, "", map[string]any{"user": u})
	}
}
