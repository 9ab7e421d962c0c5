package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
)

const maxPayloadBytes = 16 << 10

// bookmarkPayload is the body of add and edit requests. Empty fields pass
// here: the service ignores them silently.
type bookmarkPayload struct {
	Title string `json:"title" validate:"max=512"`
	URL   string `json:"url" validate:"max=2048"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func decodePayload(w http.ResponseWriter, r *http.Request) (bookmarkPayload, error) {
	var p bookmarkPayload

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, err
	}
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return p, errors.New(verrs[0].Field() + " is too long")
		}
		return p, err
	}
	return p, nil
}

// State sets the title filter when q is present and returns the state.
func State(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := controllerFrom(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		if q.Has("q") {
			writeJSON(w, http.StatusOK, c.SetQuery(q.Get("q")))
			return
		}
		writeJSON(w, http.StatusOK, c.Snapshot())
	}
}

func AddBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := controllerFrom(w, r)
		if !ok {
			return
		}
		p, err := decodePayload(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		writeResult(w, d, c, c.Add(r.Context(), p.Title, p.URL))
	}
}

func StartEdit(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := controllerFrom(w, r)
		if !ok {
			return
		}

		writeResult(w, d, c, c.StartEdit(chi.URLParam(r, "id")))
	}
}

func CancelEdit(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := controllerFrom(w, r)
		if !ok {
			return
		}

		c.CancelEdit()
		writeResult(w, d, c, nil)
	}
}

func SaveEdit(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := controllerFrom(w, r)
		if !ok {
			return
		}
		p, err := decodePayload(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		writeResult(w, d, c, c.SaveEdit(r.Context(), chi.URLParam(r, "id"), p.Title, p.URL))
	}
}

func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := controllerFrom(w, r)
		if !ok {
			return
		}

		writeResult(w, d, c, c.Delete(r.Context(), chi.URLParam(r, "id")))
	}
}
