package usecase

import (
	"context"
	"crypto/rand"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"xprexx/internal/domain/model"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// commit後に呼ぶ。失敗してもリクエストは失敗させない
type EventPublisher interface {
	Publish(ctx context.Context, ev model.ShipmentEvent) error
}

// 追跡番号の採番
type TrackingNumberGenerator interface {
	Generate(now time.Time) (string, error)
}

const trackingSuffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

type prefixedTrackingNumbers struct {
	prefix string
	rand   io.Reader
}

// prefix + 時刻(ms)の36進 + ランダム4桁。例: XPRM1ABCD2K9Q
func NewTrackingNumberGenerator(prefix string) TrackingNumberGenerator {
	return &prefixedTrackingNumbers{prefix: strings.ToUpper(prefix), rand: rand.Reader}
}

func (g *prefixedTrackingNumbers) Generate(now time.Time) (string, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(g.prefix)
	sb.WriteString(strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)))
	for _, b := range buf {
		sb.WriteByte(trackingSuffixAlphabet[int(b)%len(trackingSuffixAlphabet)])
	}
	return sb.String(), nil
}

// 入力の前後空白を落として大文字に揃える
func NormalizeTrackingNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// 管理者チェック（middlewareとは別に、usecaseでも必ず見る）
func requireAdmin(actor model.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.UserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, MsgUnauthorized)
	}
	return NewHTTPError(http.StatusForbidden, MsgAdminOnly)
}
