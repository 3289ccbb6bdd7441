package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mind-engage/usersapi/internal/api/envelope"
	auth "github.com/mind-engage/usersapi/internal/auth/middleware"
	"github.com/mind-engage/usersapi/internal/directory"
)

var phoneRe = regexp.MustCompile(`^\+?380\d{9}$`)

// registration is the text part of POST /users.
type registration struct {
	Name       string `form:"name" validate:"required,min=2"`
	Email      string `form:"email" validate:"required,min=2,max=100,email"`
	Phone      string `form:"phone" validate:"required,ua_phone"`
	PositionID int64  `form:"position_id" validate:"required,min=1"`
}

// Per-field messages; "field.tag" overrides the field's default.
var fieldMessages = map[string]string{
	"name":           "The name must be at least 2 characters.",
	"name.required":  "The name field is required.",
	"email":          "The email must be a valid email address.",
	"email.required": "The email field is required.",
	"phone":          "The phone field is required.",
	"position_id":    "The position id must be an integer.",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	if err := v.RegisterValidation("ua_phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

type userForm struct {
	user      directory.NewUser
	photo     multipart.File
	photoSize int64
}

// POST /users (multipart: name, email, phone, position_id, photo)
func (d Directory) createUser(w http.ResponseWriter, r *http.Request) {
	log := d.Log.With(zap.String("token_id", auth.TokenIDFromContext(r.Context())))

	r.Body = http.MaxBytesReader(w, r.Body, d.PhotoMaxBytes+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			envelope.Fail(w, envelope.Unprocessable("Validation failed",
				envelope.Fails{"photo": {d.photoTooLarge()}}))
			return
		}
		envelope.Fail(w, envelope.BadRequest("Expected a multipart/form-data body."))
		return
	}
	defer r.MultipartForm.RemoveAll()

	form, fails, err := d.validate(r)
	if form.photo != nil {
		defer form.photo.Close()
	}
	if err != nil {
		log.Error("validate registration", zap.Error(err))
		envelope.Fail(w, err)
		return
	}
	if !fails.Empty() {
		envelope.Fail(w, envelope.Unprocessable("Validation failed", fails))
		return
	}

	id, err := d.Store.CreateUser(r.Context(), form.user)
	switch {
	case errors.Is(err, directory.ErrConflict):
		envelope.Fail(w, envelope.Conflict("User with this phone or email already exist"))
		return
	case err != nil:
		log.Error("create user", zap.Error(err))
		envelope.Fail(w, err)
		return
	}

	url, err := d.Blobs.Put(r.Context(), fmt.Sprintf("%d.jpg", id), form.photo, form.photoSize, "image/jpeg")
	if err != nil {
		log.Error("upload photo", zap.Int64("user_id", id), zap.Error(err))
		d.abandon(r.Context(), log, id)
		envelope.Fail(w, err)
		return
	}
	if err := d.Store.SetUserPhoto(r.Context(), id, url); err != nil {
		log.Error("save photo url", zap.Int64("user_id", id), zap.Error(err))
		d.abandon(r.Context(), log, id)
		envelope.Fail(w, err)
		return
	}

	log.Info("user registered", zap.Int64("user_id", id))
	envelope.OK(w, http.StatusOK, "New user successfully registered.", map[string]any{"user_id": id})
}

// abandon deletes a user whose registration failed after the insert, so the
// email and phone are free for a retry.
func (d Directory) abandon(ctx context.Context, log *zap.Logger, id int64) {
	if err := d.Store.DeleteUser(context.WithoutCancel(ctx), id); err != nil {
		log.Error("roll back user", zap.Int64("user_id", id), zap.Error(err))
	}
}

// validate returns field failures in fails; err is reserved for faults of
// the store.
func (d Directory) validate(r *http.Request) (form userForm, fails envelope.Fails, err error) {
	fails = envelope.Fails{}

	reg := registration{
		Name:  strings.TrimSpace(r.FormValue("name")),
		Email: strings.ToLower(strings.TrimSpace(r.FormValue("email"))),
		Phone: strings.TrimSpace(r.FormValue("phone")),
	}
	// Unparseable ids stay zero and fail "required".
	reg.PositionID, _ = strconv.ParseInt(strings.TrimSpace(r.FormValue("position_id")), 10, 64)

	if verr := validate.Struct(reg); verr != nil {
		var ves validator.ValidationErrors
		if !errors.As(verr, &ves) {
			return form, fails, verr
		}
		for _, fe := range ves {
			fails.Add(fe.Field(), fieldMessage(fe))
		}
	}

	if _, bad := fails["position_id"]; !bad {
		ok, err := d.Store.PositionExists(r.Context(), reg.PositionID)
		if err != nil {
			return form, fails, fmt.Errorf("position lookup: %w", err)
		}
		if !ok {
			fails.Add("position_id", "The position id must refer to an existing position.")
		}
	}

	f, hdr, ferr := r.FormFile("photo")
	switch {
	case ferr != nil:
		fails.Add("photo", "The photo field is required.")
	case hdr.Size > d.PhotoMaxBytes:
		f.Close()
		fails.Add("photo", d.photoTooLarge())
	default:
		if !isJPEG(f) {
			f.Close()
			fails.Add("photo", "Image is invalid.")
			break
		}
		form.photo, form.photoSize = f, hdr.Size
	}

	form.user = directory.NewUser{Name: reg.Name, Email: reg.Email, Phone: reg.Phone, PositionID: reg.PositionID}
	return form, fails, nil
}

func fieldMessage(fe validator.FieldError) string {
	if m, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return m
	}
	if m, ok := fieldMessages[fe.Field()]; ok {
		return m
	}
	return fmt.Sprintf("The %s field is invalid.", fe.Field())
}

// isJPEG sniffs the content rather than trusting the part's Content-Type,
// then rewinds the file.
func isJPEG(f multipart.File) bool {
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false
	}
	return http.DetectContentType(head[:n]) == "image/jpeg" && bytes.HasPrefix(head, []byte{0xFF, 0xD8})
}

func (d Directory) photoTooLarge() string {
	return fmt.Sprintf("The photo may not be greater than %d Mbytes.", d.PhotoMaxBytes>>20)
}
