package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/booking-reminder/internal/application"
	"github.com/example/booking-reminder/internal/timeutil"
)

var (
	errBadRequestBody = errors.New("รูปแบบคำขอไม่ถูกต้อง")
	errMissingID      = errors.New("ไม่พบรหัสที่ระบุ")
	errMissingIDs     = errors.New("กรุณาระบุรหัสตารางเวลา")
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
			ErrorCode: "FORBIDDEN",
			Message:   localizedStatusMessage(http.StatusForbidden),
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: localizedStatusMessage(http.StatusNotFound)})
	case errors.Is(err, application.ErrSlotUnavailable):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "SLOT_UNAVAILABLE",
			Message:   "ช่วงเวลานี้ถูกจองแล้ว กรุณาเลือกเวลาอื่น",
		})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_EXISTS",
			Message:   localizedStatusMessage(http.StatusConflict),
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: localizedStatusMessage(http.StatusUnprocessableEntity),
				Errors:  localizeValidationErrors(vErr),
			})
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: localizedStatusMessage(http.StatusInternalServerError)})
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
		return "คำขอไม่ถูกต้อง"
	case http.StatusUnauthorized:
		return "กรุณาเข้าสู่ระบบ"
	case http.StatusForbidden:
		return "คุณไม่มีสิทธิ์ดำเนินการนี้"
	case http.StatusNotFound:
		return "ไม่พบข้อมูลที่ระบุ"
	case http.StatusConflict:
		return "ข้อมูลนี้มีอยู่แล้ว"
	case http.StatusUnprocessableEntity:
		return "ข้อมูลที่กรอกไม่ถูกต้อง"
	default:
		return "เกิดข้อผิดพลาดภายในระบบ"
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
	case "activity type is required":
		return "กรุณาเลือกประเภทกิจกรรม"
	case "unknown activity type":
		return "ไม่พบประเภทกิจกรรมที่เลือก"
	case "subject is required":
		return "กรุณากรอกหัวข้อ"
	case "duration is required":
		return "กรุณาเลือกระยะเวลา"
	case "date is required", "date is required for a one-time reminder":
		return "กรุณาเลือกวันที่"
	case "date must be YYYY-MM-DD":
		return "รูปแบบวันที่ไม่ถูกต้อง"
	case "start time is required":
		return "กรุณาเลือกเวลาเริ่มต้น"
	case "start time is not an offered slot":
		return "เวลาที่เลือกไม่อยู่ในตารางที่เปิดให้จอง"
	case "meeting link is required":
		return "กรุณากรอกลิงก์การประชุม"
	case "location is required":
		return "กรุณากรอกสถานที่"
	case "title is required":
		return "กรุณากรอกชื่อการแจ้งเตือน"
	case "time must be HH:MM", "start time must be HH:MM", "end time must be HH:MM":
		return "รูปแบบเวลาไม่ถูกต้อง (HH:MM)"
	case "end time must be after start time":
		return "เวลาสิ้นสุดต้องอยู่หลังเวลาเริ่มต้น"
	case "unknown timezone":
		return "ไม่รู้จักเขตเวลาที่ระบุ"
	case "at least one day is required":
		return "กรุณาเลือกอย่างน้อยหนึ่งวัน"
	case "name is required":
		return "กรุณากรอกชื่อ"
	case "email is required":
		return "กรุณากรอกอีเมล"
	case "email is invalid":
		return "รูปแบบอีเมลไม่ถูกต้อง"
	case "duration could not be understood":
		return "ไม่เข้าใจระยะเวลาที่เลือก"
	case "meeting format must be Online or On-site":
		return "รูปแบบการประชุมต้องเป็น Online หรือ On-site"
	case "color must be a hex value such as #3f51b5":
		return "รหัสสีต้องอยู่ในรูปแบบ #3f51b5"
	case "repeat days must be between 0 (Sunday) and 6 (Saturday)":
		return "วันที่ทำซ้ำไม่ถูกต้อง"
	case "refresh token is required", "token is required":
		return "กรุณาระบุโทเคน"
	case "at least one template id is required":
		return "กรุณาระบุรหัสตารางเวลา"
	default:
		switch {
		case strings.HasPrefix(message, "custom duration must be at least"):
			return fmt.Sprintf("ระยะเวลาที่กำหนดเองต้องไม่น้อยกว่า %d นาที", timeutil.MinimumCustomDuration)
		case strings.HasPrefix(message, "unknown day "):
			return "ไม่รู้จักวัน " + strings.TrimPrefix(message, "unknown day ")
		}
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
