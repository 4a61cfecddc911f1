// Package common — respond.go: JSON-ответы HTTP API и разбор запросов.
package common

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// APIResponse — единый конверт всех ответов API.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON пишет v со статусом status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Не удалось записать ответ")
	}
}

// OK — успешный ответ с данными.
func OK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// Created — ответ 201 с данными.
func Created(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, APIResponse{Success: true, Data: data})
}

// Fail переводит ошибку в HTTP-статус по её Kind. Текст инфраструктурных
// ошибок клиенту не показывается.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := KindOf(err)
	status := StatusFor(kind)

	msg := err.Error()
	var e *Error
	if errors.As(err, &e) {
		msg = e.Msg
	}
	if kind == KindStorage {
		log.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("Ошибка обработки запроса")
		msg = ErrStorage.Msg
	}

	WriteJSON(w, status, APIResponse{Success: false, Message: msg, Code: kind.String()})
}

// StatusFor сопоставляет категорию ошибки и HTTP-статус.
func StatusFor(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindBusiness:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// maxBody — предел тела JSON-запроса.
const maxBody = 1 << 20

// DecodeJSON читает тело запроса в dst.
func DecodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return Invalid("cannot read request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return Invalid("invalid JSON body")
	}
	return nil
}

// PathID достаёт числовой параметр маршрута.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, Invalid("invalid %s", name)
	}
	return id, nil
}

// QueryInt читает целый query-параметр или def.
func QueryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}
