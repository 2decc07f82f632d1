package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"Courier/internal/apperr"
	"Courier/internal/breaker"
	"Courier/internal/constants"
	"Courier/internal/models"
	"Courier/internal/reports"
	"Courier/internal/tenant"
	"Courier/internal/utils"

	"github.com/go-chi/chi/v5"
)

// jsonResponse - стандартная обертка ответа API.
type jsonResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type handler struct {
	deps ApiDependencies
}

// --- Вспомогательные функции для JSON-ответов ---
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(jsonResponse{Status: "error", Message: message})
}

func writeJSONSuccess(w http.ResponseWriter, message string, data interface{}) {
	writeJSONStatus(w, http.StatusOK, message, data)
}

func writeJSONStatus(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(jsonResponse{Status: "success", Message: message, Data: data})
}

// statusForError сопоставляет вид ошибки ядра с HTTP-статусом.
func statusForError(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError пишет ошибку ядра. Выключатель открывается только при недоступности базы;
// отмена запроса, сериализация и дедлок касаются одного вызывающего.
func writeAppError(w http.ResponseWriter, b *breaker.Breaker, err error) {
	code := statusForError(err)
	switch {
	case apperr.IsRetryable(err):
		if errors.Is(err, apperr.ErrUnavailable) && b != nil {
			b.ReportFailure(err)
		}
		log.Printf("writeAppError: сбой хранилища: %v", err)
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, code, "Storage temporarily unavailable")
	case code == http.StatusInternalServerError:
		log.Printf("writeAppError: внутренняя ошибка: %v", err)
		writeJSONError(w, code, "Internal server error")
	default:
		writeJSONError(w, code, err.Error())
	}
}

// decodeBody читает JSON-тело; пустое тело допустимо, если allowEmpty.
func decodeBody(r *http.Request, dst interface{}, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	return err
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	writeAppError(w, h.deps.Breaker, err)
}

// publicBaseURL возвращает адрес для ссылок отслеживания: из конфига или из хоста запроса.
func (h *handler) publicBaseURL(r *http.Request) string {
	if h.deps.Config != nil && h.deps.Config.PublicBaseURL != "" {
		return h.deps.Config.PublicBaseURL
	}
	scheme := "https"
	if r.TLS == nil && (h.deps.Config == nil || h.deps.Config.IsDev()) {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// Healthz сообщает состояние хранилища по данным выключателя.
func (h *handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.deps.Breaker == nil {
		writeJSONSuccess(w, "ok", HealthData{Store: "unknown"})
		return
	}
	available := h.deps.Breaker.Available(r.Context())
	_, checkedAt, lastErr := h.deps.Breaker.State()

	data := HealthData{Store: "up"}
	if !checkedAt.IsZero() {
		data.CheckedAt = &checkedAt
	}
	if !available {
		data.Store = "down"
		if lastErr != nil {
			data.Error = lastErr.Error()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(jsonResponse{Status: "error", Message: "Storage unavailable", Data: data})
		return
	}
	writeJSONSuccess(w, "ok", data)
}

// TrackDelivery - публичный статус заявки без данных клиента.
func (h *handler) TrackDelivery(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	d, err := h.deps.Engine.Get(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSONSuccess(w, "", newTrackingView(d, constants.StatusDisplayMap[d.Status]))
}

// DeliveryQRCode отдаёт PNG с QR-кодом ссылки отслеживания.
func (h *handler) DeliveryQRCode(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	d, err := h.deps.Engine.Get(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	png, err := utils.GenerateTrackingQRCode(h.publicBaseURL(r), d.ID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// CreateDelivery создаёт заявку гостя или авторизованного клиента.
func (h *handler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	var req models.NewDelivery
	if err := decodeBody(r, &req, false); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if userID, ok := userFromContext(r.Context()); ok {
		req.CustomerID = userID
	}

	d, err := h.deps.Engine.Create(r.Context(), tenantID, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	link, _ := utils.TrackingLink(h.publicBaseURL(r), d.ID)
	writeJSONStatus(w, http.StatusCreated, "Заявка создана", CreatedDeliveryData{Delivery: d, TrackingURL: link})
}

// CustomerDeliveries - история заявок клиента (сначала новые).
func (h *handler) CustomerDeliveries(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	userID, _ := userFromContext(r.Context())
	list, err := h.deps.Engine.ListForCustomer(r.Context(), tenantID, userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSONSuccess(w, "", DeliveryListData{Deliveries: list, Total: len(list)})
}

// CustomerLoyalty - баланс лояльности текущего клиента.
func (h *handler) CustomerLoyalty(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	userID, _ := userFromContext(r.Context())
	status, err := h.deps.Ledger.Status(r.Context(), tenantID, userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSONSuccess(w, "", status)
}

// AvailableDeliveries - очередь доступных заявок (сначала старые).
func (h *handler) AvailableDeliveries(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	list, err := h.deps.Engine.ListAvailable(r.Context(), tenantID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSONSuccess(w, "", DeliveryListData{Deliveries: list, Total: len(list)})
}

// DriverDeliveries - активные заявки водителя.
func (h *handler) DriverDeliveries(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	staff, _ := staffFromContext(r.Context())
	list, err := h.deps.Engine.ListForDriver(r.Context(), tenantID, staff.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSONSuccess(w, "", DeliveryListData{Deliveries: list, Total: len(list)})
}

// ClaimDelivery - водитель забирает доступную заявку.
func (h *handler) ClaimDelivery(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	staff, _ := staffFromContext(r.Context())
	var req ClaimRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	d, err := h.deps.Engine.Claim(r.Context(), tenantID, staff.ID, chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSONSuccess(w, "Заявка закреплена за вами", d)
}

// AdvanceDelivery - водитель продвигает свою заявку по статусам или сохраняет заметки.
func (h *handler) AdvanceDelivery(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	staff, _ := staffFromContext(r.Context())
	var req AdvanceRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	d, err := h.deps.Engine.Advance(r.Context(), tenantID, staff.ID, chi.URLParam(r, "id"), req.Status, req.Notes)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSONSuccess(w, "Статус заявки обновлён", d)
}

// SetOwnDuty - водитель выходит на смену или уходит с неё.
func (h *handler) SetOwnDuty(w http.ResponseWriter, r *http.Request) {
	staff, _ := staffFromContext(r.Context())
	h.setDuty(w, r, staff.ID)
}

// SetStaffDuty - диспетчер меняет статус смены сотрудника.
func (h *handler) SetStaffDuty(w http.ResponseWriter, r *http.Request) {
	h.setDuty(w, r, chi.URLParam(r, "id"))
}

func (h *handler) setDuty(w http.ResponseWriter, r *http.Request, staffID string) {
	tenantID, _ := tenant.FromContext(r.Context())
	var req DutyRequest
	if err := decodeBody(r, &req, false); err != nil || req.OnDuty == nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body: on_duty is required")
		return
	}

	change, err := h.deps.Registry.SetOnDuty(r.Context(), tenantID, staffID, *req.OnDuty)
	if err != nil {
		h.fail(w, err)
		return
	}
	resp := DutyResponse{Staff: change.Staff, Released: change.Released}
	if resp.Released == nil {
		resp.Released = []string{}
	}
	message := "Статус смены обновлён"
	if change.ReleaseError != nil {
		resp.ReleaseError = change.ReleaseError.Error()
		message = "Статус смены обновлён, но заявки не удалось вернуть в очередь"
	}
	writeJSONSuccess(w, message, resp)
}

// AdminDeliveries - заявки арендатора с фильтрами status, driver_id, customer_id, limit.
func (h *handler) AdminDeliveries(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	filter, err := parseDeliveryFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	list, err := h.deps.Engine.List(r.Context(), tenantID, filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSONSuccess(w, "", DeliveryListData{Deliveries: list, Total: len(list)})
}

func parseDeliveryFilter(r *http.Request) (models.DeliveryFilter, error) {
	q := r.URL.Query()
	f := models.DeliveryFilter{
		DriverID:    strings.TrimSpace(q.Get("driver_id")),
		CustomerID:  strings.TrimSpace(q.Get("customer_id")),
		NewestFirst: true,
	}
	for _, raw := range strings.Split(q.Get("status"), ",") {
		if st := strings.TrimSpace(raw); st != "" {
			f.Statuses = append(f.Statuses, st)
		}
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return f, apperr.Validation("некорректный limit %q", raw)
		}
		f.Limit = limit
	}
	return f, nil
}

// ListStaff - сотрудники арендатора.
func (h *handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	staff, err := h.deps.Registry.List(r.Context(), tenantID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSONSuccess(w, "", StaffListData{Staff: staff, Total: len(staff)})
}

// AddStaff - администратор добавляет сотрудника.
func (h *handler) AddStaff(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	var req AddStaffRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	saved, err := h.deps.Registry.AddStaff(r.Context(), tenantID, models.StaffMember{
		ID:          req.ID,
		Role:        req.Role,
		DisplayName: req.DisplayName,
		Phone:       models.NewNullString(strings.TrimSpace(req.Phone)),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, "Сотрудник добавлен", saved)
}

// UpdateStaffRole - администратор меняет роль сотрудника.
func (h *handler) UpdateStaffRole(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	var req UpdateRoleRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	saved, err := h.deps.Registry.UpdateRole(r.Context(), tenantID, chi.URLParam(r, "id"), req.Role)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSONSuccess(w, "Роль обновлена", saved)
}

// CustomerLoyaltyStatus - баланс лояльности клиента для диспетчера.
func (h *handler) CustomerLoyaltyStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	status, err := h.deps.Ledger.Status(r.Context(), tenantID, chi.URLParam(r, "customerID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSONSuccess(w, "", status)
}

// DeliveriesReport отдаёт Excel-выгрузку заявок арендатора.
func (h *handler) DeliveriesReport(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	filter, err := parseDeliveryFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	list, err := h.deps.Engine.List(r.Context(), tenantID, filter)
	if err != nil {
		h.fail(w, err)
		return
	}

	// Пишем в буфер, чтобы при ошибке успеть ответить JSON
	var buf bytes.Buffer
	if err := reports.WriteDeliveries(&buf, list); err != nil {
		log.Printf("DeliveriesReport: ошибка формирования отчёта (арендатор %s): %v", tenantID, err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to build report")
		return
	}

	filename := fmt.Sprintf("deliveries_%s_%s.xlsx", tenantID, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
