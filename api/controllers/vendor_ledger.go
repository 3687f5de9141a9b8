package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hydromart/marketplace-backend/api/responses"
	"github.com/hydromart/marketplace-backend/api/validators"
	"github.com/hydromart/marketplace-backend/internal/ledger"
	"github.com/hydromart/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/hydromart/marketplace-backend/pkg/errors"
	"github.com/hydromart/marketplace-backend/pkg/logger"
	"github.com/hydromart/marketplace-backend/pkg/pagination"
)

type vendorLedgerService interface {
	RecordPayout(ctx context.Context, input ledger.PayoutInput) (*models.VendorLedgerEntry, error)
	ListEntries(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*ledger.VendorLedger, error)
}

type vendorPayoutRequest struct {
	AmountCents int    `json:"amountCents" validate:"required,gt=0"`
	Reference   string `json:"reference" validate:"max=128"`
}

type ledgerEntryResponse struct {
	ID                uuid.UUID       `json:"id"`
	Type              string          `json:"type"`
	AmountCents       int             `json:"amount_cents"`
	BalanceAfterCents int             `json:"balance_after_cents"`
	OrderID           *uuid.UUID      `json:"order_id,omitempty"`
	OrderItemID       *uuid.UUID      `json:"order_item_id,omitempty"`
	Reference         *string         `json:"reference,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

type vendorLedgerResponse struct {
	VendorID     uuid.UUID             `json:"vendor_id"`
	Name         string                `json:"name"`
	BalanceCents int                   `json:"balance_cents"`
	Entries      []ledgerEntryResponse `json:"entries"`
	NextCursor   string                `json:"next_cursor,omitempty"`
}

func newLedgerEntryResponse(e *models.VendorLedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:                e.ID,
		Type:              string(e.Type),
		AmountCents:       e.AmountCents,
		BalanceAfterCents: e.BalanceAfterCents,
		OrderID:           e.OrderID,
		OrderItemID:       e.OrderItemID,
		Reference:         e.Reference,
		Metadata:          e.Metadata,
		CreatedAt:         e.CreatedAt,
	}
}

// AdminVendorLedger lists a vendor's balance entries, newest first.
func AdminVendorLedger(svc vendorLedgerService, limits pagination.Limits, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		vendorID, err := vendorIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePageParams(r, limits)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListEntries(r.Context(), vendorID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries := make([]ledgerEntryResponse, 0, len(page.Entries))
		for i := range page.Entries {
			entries = append(entries, newLedgerEntryResponse(&page.Entries[i]))
		}
		responses.WriteSuccess(w, vendorLedgerResponse{
			VendorID:     page.Vendor.ID,
			Name:         page.Vendor.Name,
			BalanceCents: page.Vendor.BalanceCents,
			Entries:      entries,
			NextCursor:   page.NextCursor,
		})
	}
}

// AdminVendorPayout debits a vendor balance.
func AdminVendorPayout(svc vendorLedgerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		vendorID, err := vendorIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req vendorPayoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithVendorID(ctx, vendorID.String())
		}
		entry, err := svc.RecordPayout(ctx, ledger.PayoutInput{
			VendorID:    vendorID,
			AmountCents: req.AmountCents,
			Reference:   req.Reference,
			ActorUserID: actorFromContext(ctx).UserID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newLedgerEntryResponse(entry))
	}
}

func vendorIDParam(r *http.Request) (uuid.UUID, error) {
	return validators.ParseUUID(chi.URLParam(r, "vendorId"), "vendor id")
}
