package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	CtxRequestIDKey = "request_id"

	// handlerが5xxを返したときの元エラー
	CtxHandlerErrorKey = "handler_error"

	HeaderRequestID = "X-Request-ID"
)

// 1リクエスト1行のアクセスログ。X-Request-IDが無ければ採番して返す。
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			reqID := c.Request().Header.Get(HeaderRequestID)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			c.Set(CtxRequestIDKey, reqID)
			c.Response().Header().Set(HeaderRequestID, reqID)

			err := next(c)
			if err != nil {
				// echoのエラーハンドラにレスポンスを書かせてからstatusを読む
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("request_id", reqID),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
			}
			if cause, ok := c.Get(CtxHandlerErrorKey).(error); ok && cause != nil {
				fields = append(fields, zap.NamedError("cause", cause))
			}
			if uid, ok := c.Get(CtxUserIDKey).(int64); ok {
				fields = append(fields, zap.Int64("user_id", uid))
			}

			switch {
			case c.Response().Status >= 500:
				log.Error("request", append(fields, zap.Error(err))...)
			case c.Response().Status >= 400:
				log.Warn("request", fields...)
			default:
				log.Info("request", fields...)
			}
			return nil
		}
	}
}
