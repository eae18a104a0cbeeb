package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/schema"
	"github.com/rs/zerolog/hlog"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(code int, err error) error {
	return &codedError{err: err, code: code}
}

func CodedErrorf(code int, format string, args ...any) error {
	return &codedError{err: fmt.Errorf(format, args...), code: code}
}

var formDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

func ParseRequest[T any](r *http.Request) (T, error) {
	var data T
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("error parsing request body")
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request body")
	}
	return data, nil
}

// ParseForm decodes an urlencoded form into T using its schema tags.
func ParseForm[T any](r *http.Request) (T, error) {
	var data T
	if err := r.ParseForm(); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("error parsing form")
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse form")
	}

	if err := formDecoder.Decode(&data, r.PostForm); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("error decoding form")
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse form")
	}
	return data, nil
}

func RestHandler(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if res == nil {
			res = struct{}{}
		}

		WriteJsonResponse(w, r, res)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var cerr *codedError
	if errors.As(err, &cerr) {
		http.Error(w, err.Error(), cerr.code)
		if cerr.code == http.StatusInternalServerError {
			hlog.FromRequest(r).Error().Err(err).Msg("internal server error received in endpoint")
		}
		return
	}
	hlog.FromRequest(r).Error().Err(err).Msg("received non coded error from endpoint")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func WriteJsonResponse(w http.ResponseWriter, r *http.Request, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("error serializing response body")
	}
}

func URLParamUUID(r *http.Request, key string) (uuid.UUID, error) {
	param := chi.URLParam(r, key)

	if len(param) == 0 {
		return uuid.Nil, CodedErrorf(http.StatusBadRequest, "missing {%v} url parameter", key)
	}

	id, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, CodedErrorf(http.StatusBadRequest, "invalid uuid '%v' url parameter provided: %w", key, err)
	}

	return id, nil
}
