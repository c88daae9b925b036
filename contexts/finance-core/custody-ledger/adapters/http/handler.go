package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"commonpool/contexts/finance-core/custody-ledger/application"
	"commonpool/contexts/finance-core/custody-ledger/ports"
	httptransport "commonpool/contexts/finance-core/custody-ledger/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

// DepositHandler godoc
// @Summary Fund a custody account
// @Tags custody-ledger
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Account owner"
// @Param account_id path string true "Account id"
// @Param request body httptransport.DepositRequest true "Deposit"
// @Success 201 {object} httptransport.EntryResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Router /v1/custody/accounts/{account_id}/deposits [post]
func (h Handler) DepositHandler(
	ctx context.Context,
	accountID string,
	req httptransport.DepositRequest,
) (httptransport.EntryResponse, error) {
	entry, replayed, err := h.Service.Deposit(ctx, ports.DepositInput{
		AccountID: accountID,
		Amount:    req.Amount,
		Reference: req.Reference,
	})
	if err != nil {
		return httptransport.EntryResponse{}, err
	}
	return httptransport.EntryResponse{Status: "success", Replayed: replayed, Data: toDTO(entry)}, nil
}

// TransferHandler godoc
// @Summary Move funds between custody accounts
// @Description Internal endpoint used by the insurance engine. The reference deduplicates retries.
// @Tags custody-ledger
// @Accept json
// @Produce json
// @Param request body httptransport.TransferRequest true "Transfer"
// @Success 201 {object} httptransport.EntryResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /internal/custody/v1/transfers [post]
func (h Handler) TransferHandler(
	ctx context.Context,
	req httptransport.TransferRequest,
) (httptransport.EntryResponse, error) {
	entry, replayed, err := h.Service.Transfer(ctx, ports.TransferInput{
		From:      req.From,
		To:        req.To,
		Amount:    req.Amount,
		Reference: req.Reference,
	})
	if err != nil {
		return httptransport.EntryResponse{}, err
	}
	return httptransport.EntryResponse{Status: "success", Replayed: replayed, Data: toDTO(entry)}, nil
}

// GetAccountHandler godoc
// @Summary Get a custody account with recent entries
// @Tags custody-ledger
// @Produce json
// @Param account_id path string true "Account id"
// @Param limit query int false "Entry limit"
// @Success 200 {object} httptransport.AccountResponse
// @Router /v1/custody/accounts/{account_id} [get]
func (h Handler) GetAccountHandler(ctx context.Context, accountID string, limit int) (httptransport.AccountResponse, error) {
	account, err := h.Service.GetAccount(ctx, accountID)
	if err != nil {
		return httptransport.AccountResponse{}, err
	}
	entries, err := h.Service.ListEntries(ctx, accountID, limit)
	if err != nil {
		return httptransport.AccountResponse{}, err
	}
	resp := httptransport.AccountResponse{Status: "success"}
	resp.Data.AccountID = account.AccountID
	resp.Data.Balance = account.Balance
	if !account.UpdatedAt.IsZero() {
		resp.Data.UpdatedAt = account.UpdatedAt.UTC().Format(time.RFC3339)
	}
	resp.Data.Entries = make([]httptransport.EntryDTO, 0, len(entries))
	for _, entry := range entries {
		resp.Data.Entries = append(resp.Data.Entries, toDTO(entry))
	}
	return resp, nil
}

func toDTO(entry ports.Entry) httptransport.EntryDTO {
	return httptransport.EntryDTO{
		EntryID:     entry.EntryID,
		Kind:        string(entry.Kind),
		Reference:   entry.Reference,
		FromAccount: entry.FromAccount,
		ToAccount:   entry.ToAccount,
		Amount:      entry.Amount,
		CreatedAt:   entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}
