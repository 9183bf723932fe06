package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"example.com/userapi/internal/domain"
	"example.com/userapi/internal/storage"
	"example.com/userapi/pkg/response"
)

type UserService interface {
	List(ctx context.Context) ([]domain.User, error)
	Get(ctx context.Context, id int64) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Replace(ctx context.Context, id int64, user domain.User) (domain.User, error)
	Patch(ctx context.Context, id int64, upd domain.UserUpdate) (domain.User, error)
	Delete(ctx context.Context, id int64) (domain.User, error)
}

type Handler struct {
	mux      *http.ServeMux
	users    UserService
	log      zerolog.Logger
	validate *validator.Validate
	chain    http.Handler
}

func New(users UserService, log zerolog.Logger) http.Handler {
	h := &Handler{
		mux:      http.NewServeMux(),
		users:    users,
		log:      log,
		validate: newValidator(),
	}
	h.routes()
	h.chain = RequestID(Logging(log)(Recover(log)(h.mux)))
	return h
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /healthz", h.health)
	h.mux.HandleFunc("GET /{$}", h.root)
	h.mux.HandleFunc("GET /hello/{name}", h.hello)
	h.mux.HandleFunc("GET /search", h.search)
	h.mux.HandleFunc("GET /users", h.listUsers)
	h.mux.HandleFunc("POST /users", h.createUser)
	h.mux.HandleFunc("GET /users/{$}", h.listUsers)
	h.mux.HandleFunc("POST /users/{$}", h.createUser)
	h.mux.HandleFunc("GET /users/{id}", h.getUser)
	h.mux.HandleFunc("PUT /users/{id}", h.replaceUser)
	h.mux.HandleFunc("PATCH /users/{id}", h.patchUser)
	h.mux.HandleFunc("DELETE /users/{id}", h.deleteUser)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.chain.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"ok": "true"})
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"Message": "Hello World! This is the users API"})
}

func (h *Handler) hello(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"Welcome": r.PathValue("name")})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	var q *string
	if query := r.URL.Query(); query.Has("q") {
		v := query.Get("q")
		q = &v
	}
	response.JSON(w, http.StatusOK, map[string]any{"search results": q})
}

// userRequest is the body of POST and PUT. user_id is accepted and ignored.
type userRequest struct {
	UserID *int64 `json:"user_id"`
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
	Age    *int   `json:"age" validate:"required,gte=0"`
}

func (req userRequest) user() domain.User {
	return domain.User{Name: req.Name, Email: req.Email, Age: *req.Age}
}

type patchRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Email *string `json:"email" validate:"omitempty,email"`
	Age   *int    `json:"age" validate:"omitempty,gte=0"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	items, err := h.users.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, items)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, user)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	user, err := h.users.Create(r.Context(), req.user())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, user)
}

func (h *Handler) replaceUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req userRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	user, err := h.users.Replace(r.Context(), id, req.user())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, user)
}

func (h *Handler) patchUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req patchRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	user, err := h.users.Patch(r.Context(), id, domain.UserUpdate{
		Name:  req.Name,
		Email: req.Email,
		Age:   req.Age,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	user, err := h.users.Delete(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"message": "User deleted successfully",
		"user":    user,
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		writeError(w, http.StatusBadRequest, conflict.Error())
		return
	}
	h.log.Error().Err(err).
		Str("request_id", GetRequestID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("user request failed")
	writeError(w, http.StatusInternalServerError, "store")
}

// decodeValid decodes the body into dst and validates it, writing the
// error response itself when either step fails.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return false
	}
	return true
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "email":
			parts = append(parts, fe.Field()+" must be a valid email address")
		case "gte":
			parts = append(parts, fe.Field()+" must be at least "+fe.Param())
		case "min":
			parts = append(parts, fe.Field()+" must not be empty")
		default:
			parts = append(parts, fe.Field()+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data")
	}
	return nil
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, code int, msg string) {
	response.JSON(w, code, map[string]string{"error": msg})
}
