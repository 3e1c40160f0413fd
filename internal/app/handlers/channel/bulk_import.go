package channel

import (
	"context"
	"log/slog"

	"staybook/internal/app/commands"
	"staybook/internal/app/uow"
)

const bulkImportKey = "channel.bulk_import"

type BulkImportCommand struct {
	Items []ImportCommand `validate:"required,min=1,dive"`
}

func (c BulkImportCommand) Key() string { return bulkImportKey }

type BulkImportItemResult struct {
	ExternalID    string `json:"external_id"`
	ReservationID string `json:"reservation_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

type BulkImportResult struct {
	ImportedCount int                    `json:"imported_count"`
	FailedCount   int                    `json:"failed_count"`
	Results       []BulkImportItemResult `json:"results"`
}

// BulkImportHandler runs imports item by item. Each item gets its own unit of
// work, so one bad booking never rolls back its siblings; results come back
// in input order.
type BulkImportHandler struct {
	Importer *ImportHandler
	Logger   *slog.Logger
}

func (h *BulkImportHandler) Handle(ctx context.Context, cmd BulkImportCommand) (*BulkImportResult, error) {
	out := &BulkImportResult{Results: make([]BulkImportItemResult, 0, len(cmd.Items))}
	itemCtx := uow.Detach(ctx)
	for _, item := range cmd.Items {
		res, err := h.Importer.Handle(itemCtx, item)
		if err != nil {
			out.FailedCount++
			out.Results = append(out.Results, BulkImportItemResult{ExternalID: item.ExternalID, Error: err.Error()})
			if h.Logger != nil {
				h.Logger.Warn("bulk import item failed", "source", item.Source, "external_id", item.ExternalID, "error", err)
			}
			continue
		}
		out.ImportedCount++
		out.Results = append(out.Results, BulkImportItemResult{ExternalID: item.ExternalID, ReservationID: res.ReservationID})
	}
	return out, nil
}

var _ commands.Handler[BulkImportCommand, *BulkImportResult] = (*BulkImportHandler)(nil)
