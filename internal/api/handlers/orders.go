package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/eshaffer321/discount-allocator/internal/api/dto"
	"github.com/eshaffer321/discount-allocator/internal/application/allocation"
	"github.com/eshaffer321/discount-allocator/internal/domain/discount"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/storage"
)

// OrdersHandler handles order snapshot and allocation requests.
type OrdersHandler struct {
	*Base
	processor Processor
	logger    *slog.Logger
}

// NewOrdersHandler creates a new orders handler.
// processor may be nil, in which case Process responds 404.
func NewOrdersHandler(repo storage.Repository, processor Processor, logger *slog.Logger) *OrdersHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrdersHandler{
		Base:      NewBase(repo),
		processor: processor,
		logger:    logger,
	}
}

// Ingest handles PUT /api/orders/{id} - stores an order snapshot.
func (h *OrdersHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("order ID is required"))
		return
	}

	var req dto.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body: "+err.Error()))
		return
	}
	if msg := validateOrderRequest(req); msg != "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError(msg))
		return
	}

	order := toSnapshot(orderID, req)
	if err := h.repo.SaveOrder(order); err != nil {
		h.logger.Error("Failed to save order", "order_id", orderID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.OrderIngestResponse{
		OrderID: orderID,
		Items:   len(order.Items),
		Fees:    len(order.Fees),
		Coupons: len(order.Coupons),
	})
}

// Process handles POST /api/orders/{id}/process - runs the allocation.
func (h *OrdersHandler) Process(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("order ID is required"))
		return
	}
	if h.processor == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("allocation processor"))
		return
	}

	result, err := h.processor.Process(r.Context(), orderID)
	switch {
	case errors.Is(err, discount.ErrOrderNotFound):
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("order"))
		return
	case errors.Is(err, discount.ErrPersistence):
		h.WriteError(w, http.StatusInternalServerError, dto.PersistenceError())
		return
	case err != nil:
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, toProcessResponse(result))
}

// Discounts handles GET /api/orders/{id}/discounts - returns stored results.
func (h *OrdersHandler) Discounts(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("order ID is required"))
		return
	}

	summary, err := h.repo.GetOrderSummary(orderID)
	if err != nil {
		h.logger.Error("Failed to read summary", "order_id", orderID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if summary == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("discount summary"))
		return
	}

	records, err := h.repo.GetItemDiscounts(orderID)
	if err != nil {
		h.logger.Error("Failed to read item discounts", "order_id", orderID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.DiscountsResponse{
		OrderID: orderID,
		Summary: toSummaryResponse(summary),
		Items:   toItemResponses(records),
	})
}

func validateOrderRequest(req dto.OrderRequest) string {
	seen := make(map[string]bool, len(req.Items))
	for i, item := range req.Items {
		if item.ID == "" {
			return fmt.Sprintf("items[%d].id is required", i)
		}
		if seen[item.ID] {
			return fmt.Sprintf("items[%d].id %q is duplicated", i, item.ID)
		}
		seen[item.ID] = true
		if item.Subtotal.IsNegative() || item.Total.IsNegative() {
			return fmt.Sprintf("items[%d] has a negative price", i)
		}
	}
	for i, fee := range req.Fees {
		if fee.Name == "" {
			return fmt.Sprintf("fees[%d].name is required", i)
		}
	}
	return ""
}

func toSnapshot(orderID string, req dto.OrderRequest) *discount.OrderSnapshot {
	createdAt := time.Now()
	if req.CreatedAt != nil {
		createdAt = *req.CreatedAt
	}

	return &discount.OrderSnapshot{
		ID:        orderID,
		Status:    req.Status,
		CreatedAt: createdAt,
		Items: lo.Map(req.Items, func(item dto.LineItemRequest, _ int) discount.LineItem {
			return discount.LineItem{
				ID:             item.ID,
				Name:           item.Name,
				Group:          item.Group,
				Subtotal:       item.Subtotal,
				Total:          item.Total,
				Quantity:       item.Quantity,
				CouponDiscount: item.CouponDiscount,
			}
		}),
		Fees: lo.Map(req.Fees, func(fee dto.FeeRequest, _ int) discount.FeeEntry {
			return discount.FeeEntry{Name: fee.Name, Amount: fee.Amount, Group: fee.Group}
		}),
		Coupons: lo.Map(req.Coupons, func(c dto.CouponRequest, _ int) discount.Coupon {
			return discount.Coupon{Code: c.Code, Discount: c.Discount}
		}),
	}
}

func toProcessResponse(result *allocation.ProcessingResult) dto.ProcessResponse {
	return dto.ProcessResponse{
		OrderID:              result.OrderID,
		TotalAllocated:       result.TotalAllocated.StringFixed(2),
		TotalUnallocated:     result.TotalUnallocated.StringFixed(2),
		Items:                toItemResponses(result.ItemRecords),
		Summary:              toSummaryResponse(result.Summary),
		ClassificationIssues: result.ClassificationIssues,
	}
}

func toSummaryResponse(summary *discount.OrderSummary) dto.SummaryResponse {
	return dto.SummaryResponse{
		OrderID:          summary.OrderID,
		TotalDiscount:    summary.TotalDiscount.StringFixed(2),
		TotalAllocated:   summary.TotalAllocated.StringFixed(2),
		TotalUnallocated: summary.TotalUnallocated.StringFixed(2),
		ComboTotal:       summary.ComboTotal.StringFixed(2),
		CouponTotal:      summary.CouponTotal.StringFixed(2),
		LineItemTotal:    summary.LineItemTotal.StringFixed(2),
		Sources: lo.Map(summary.Sources, func(src discount.Source, _ int) dto.SourceResponse {
			return dto.SourceResponse{
				Name:   src.Name,
				Label:  src.Label,
				Type:   string(src.Type),
				Amount: src.Amount.StringFixed(2),
				Origin: src.Origin,
			}
		}),
		Mode:        string(summary.Mode),
		Processed:   summary.Processed,
		ProcessedAt: summary.ProcessedAt.UTC().Format(time.RFC3339),
	}
}

func toItemResponses(records []discount.ItemRecord) []dto.ItemDiscountResponse {
	return lo.Map(records, func(rec discount.ItemRecord, _ int) dto.ItemDiscountResponse {
		return dto.ItemDiscountResponse{
			ItemID: rec.ItemID,
			Total:  rec.Total.StringFixed(2),
			Allocations: lo.Map(rec.Allocations, func(a discount.Allocation, _ int) dto.AllocationResponse {
				return dto.AllocationResponse{
					SourceName: a.SourceName,
					SourceType: string(a.SourceType),
					Amount:     a.Amount.StringFixed(2),
					Method:     string(a.Method),
				}
			}),
		}
	})
}
