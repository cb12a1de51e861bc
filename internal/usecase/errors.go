package usecase

import (
	"errors"
	"fmt"
	"net/http"

	repo "xprexx/internal/repository"
)

type HTTPError struct {
	Status  int
	Message string

	// DB由来の元エラー（ログ用。レスポンスには出さない）
	Err error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d: %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

const (
	MsgStoreUnavailable    = "store unavailable"
	MsgTrackingNotFound    = "tracking number not found. please check your tracking number and try again"
	MsgShipmentNotFound    = "shipment not found"
	MsgShipmentPaused      = "shipment is paused"
	MsgShipmentDelivered   = "shipment already delivered"
	MsgUnauthorized        = "unauthorized"
	MsgAdminOnly           = "admin only"
	MsgReportStoreDisabled = "report storage is not configured"
)

// DB障害は503（呼び出し側でリトライしてよい）
func storeUnavailable(err error) error {
	return &HTTPError{Status: http.StatusServiceUnavailable, Message: MsgStoreUnavailable, Err: err}
}

// repoのエラーをHTTPErrorに寄せる（すでにHTTPErrorならそのまま）
func storeError(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if _, ok := AsHTTPError(err); ok {
		return err
	}
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, notFoundMsg)
	}
	return storeUnavailable(err)
}

// IsTransient は呼び出し側がリトライしてよいエラーか
func IsTransient(err error) bool {
	he, ok := AsHTTPError(err)
	return ok && he.Status == http.StatusServiceUnavailable
}

func IsNotFound(err error) bool {
	he, ok := AsHTTPError(err)
	return ok && he.Status == http.StatusNotFound
}
