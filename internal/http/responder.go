package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Lorra-V/RoomReserve-sub002/internal/application"
)

var (
	errBadRequestBody      = errors.New("無効なリクエスト形式です。")
	errInvalidBookingID    = errors.New("無効な予約 ID です。")
	errInvalidUserID       = errors.New("無効なユーザー ID です。")
	errInvalidRoomID       = errors.New("無効な会議室 ID です。")
	errMissingSessionToken = errors.New("認証トークンを指定してください")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "この操作を実行する権限がありません。",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "指定されたリソースが見つかりません。"})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "RESOURCE_ALREADY_EXISTS",
			Message:   "同じ内容のリソースが既に存在します。",
		})
	case errors.Is(err, application.ErrInvalidStatusChange):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "BOOKING_INVALID_STATUS_CHANGE",
			Message:   "現在の予約ステータスではこの操作は行えません。",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			details := localizeValidationErrors(vErr)
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: "入力内容に誤りがあります。",
				Errors:  details,
			})
			return
		}

		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "email is required":
		return "メールアドレスは必須です。"
	case "email is not a valid address":
		return "メールアドレスの形式が不正です。"
	case "display name is required":
		return "表示名は必須です。"
	case "password must be at least 8 characters":
		return "パスワードは 8 文字以上で指定してください。"
	case "administrators cannot delete their own account":
		return "自分自身のアカウントは削除できません。"
	case "user still has bookings or sessions":
		return "予約またはセッションが残っているユーザーは削除できません。"
	case "name is required":
		return "会議室名は必須です。"
	case "capacity must be positive":
		return "収容人数は正の整数で指定してください。"
	case "room still has bookings":
		return "予約が残っている会議室は削除できません。"
	case "title is required":
		return "タイトルは必須です。"
	case "start time must be HH:MM":
		return "開始時刻は HH:MM 形式で指定してください。"
	case "end time must be HH:MM":
		return "終了時刻は HH:MM 形式で指定してください。"
	case "end time must be after start time":
		return "終了時刻は開始時刻より後である必要があります。"
	case "room is required":
		return "会議室を指定してください。"
	case "unknown action or scope":
		return "指定された操作または適用範囲が不正です。"
	default:
		if strings.HasPrefix(message, "unknown room:") {
			return "指定された会議室は存在しません: " + strings.TrimSpace(strings.TrimPrefix(message, "unknown room:"))
		}
		if strings.HasPrefix(message, "unknown pattern:") {
			return "不明な繰り返しパターンです: " + strings.TrimSpace(strings.TrimPrefix(message, "unknown pattern:"))
		}
		if strings.HasPrefix(message, "unknown action:") {
			return "不明な操作です: " + strings.TrimSpace(strings.TrimPrefix(message, "unknown action:"))
		}
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
