package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/client"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/metadata"
)

const serviceName = "batch-ledger-api"

// Handler defines the interface for REST API handlers
type Handler interface {
	// GetTotalBatches returns the number of batches ever created
	// GET /api/v1/batches/total
	GetTotalBatches(c *gin.Context)

	// GetBatch returns the summary of a batch
	// GET /api/v1/batches/:id?expand=metadata
	GetBatch(c *gin.Context)

	// GetOwnerHistory returns every owner of a batch, creator first
	// GET /api/v1/batches/:id/history
	GetOwnerHistory(c *gin.Context)

	// GetBatchEvents returns the ledger events of a batch
	// GET /api/v1/batches/:id/events
	GetBatchEvents(c *gin.Context)

	// WasOwner reports whether an address ever owned a batch
	// GET /api/v1/batches/:id/owners/:address
	WasOwner(c *gin.Context)

	// GetOwnedBatches returns the batches currently owned by an address
	// GET /api/v1/owners/:address/batches
	GetOwnedBatches(c *gin.Context)

	// CreateBatch creates a batch owned by the service account (requires authentication)
	// POST /api/v1/batches
	CreateBatch(c *gin.Context)

	// TransferBatch transfers a batch held by the service account (requires authentication)
	// POST /api/v1/batches/:id/transfer
	TransferBatch(c *gin.Context)

	// UpdateMetadata replaces the metadata reference of a batch (requires authentication)
	// PUT /api/v1/batches/:id/metadata
	UpdateMetadata(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	service LedgerService
	base64  adapter.Base64
	clock   adapter.Clock
}

// NewHandler creates a new REST API handler
func NewHandler(service LedgerService, base64 adapter.Base64, clock adapter.Clock) Handler {
	return &handler{
		service: service,
		base64:  base64,
		clock:   clock,
	}
}

// batchID parses the :id path parameter, responding with a bad request when malformed
func batchID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid batch id", "batch id must be a non-negative integer")
		return 0, false
	}
	return id, true
}

func (h *handler) GetTotalBatches(c *gin.Context) {
	total, err := h.service.GetTotalBatches(c.Request.Context())
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, TotalBatchesResponse{Total: total})
}

func (h *handler) GetBatch(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}

	switch expand := c.Query("expand"); expand {
	case "":
		info, err := h.service.GetBatchInfo(c.Request.Context(), id)
		if err != nil {
			respondLedgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, newBatchResponse(*info))

	case "metadata":
		batch, err := h.service.GetBatchInfoWithMetadata(c.Request.Context(), id)
		if err != nil {
			respondLedgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, newBatchWithMetadataResponse(batch))

	default:
		respondValidationError(c, "unsupported expand value: "+expand)
	}
}

func (h *handler) GetOwnerHistory(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}

	owners, err := h.service.GetOwnerHistory(c.Request.Context(), id)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, newOwnerHistoryResponse(id, owners))
}

func (h *handler) GetBatchEvents(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}

	events, err := h.service.GetBatchHistoryEvents(c.Request.Context(), id)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	if events == nil {
		events = []domain.LedgerEvent{}
	}

	c.JSON(http.StatusOK, BatchEventsResponse{BatchID: id, Events: events})
}

func (h *handler) WasOwner(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}
	address := c.Param("address")

	wasOwner, err := h.service.WasOwner(c.Request.Context(), id, address)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, WasOwnerResponse{BatchID: id, Address: address, WasOwner: wasOwner})
}

func (h *handler) GetOwnedBatches(c *gin.Context) {
	owner := c.Param("address")

	batchIDs, err := h.service.GetUserOwnedBatches(c.Request.Context(), owner)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	if batchIDs == nil {
		batchIDs = []uint64{}
	}

	c.JSON(http.StatusOK, OwnedBatchesResponse{Owner: owner, BatchIDs: batchIDs, Total: len(batchIDs)})
}

func (h *handler) CreateBatch(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if req.Metadata == nil {
		result, err := h.service.CreateBatch(ctx, req.MetadataRef)
		if err != nil {
			respondLedgerError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
		return
	}

	input := client.CreateBatchInput{Input: *req.Metadata, ImageName: req.ImageName}
	if req.ImageBase64 != "" {
		image, err := h.base64.Decode(req.ImageBase64)
		if err != nil {
			respondValidationError(c, "image_base64 is not valid base64")
			return
		}
		input.Image = image
	}

	result, err := h.service.CreateBatchWithMetadata(ctx, input)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	logger.InfoCtx(ctx, "Batch created",
		zap.Uint64("batch_id", result.BatchID),
		zap.String("metadata_ref", result.MetadataRef),
		zap.String("tx_hash", result.TxHash.Hex()),
	)
	c.JSON(http.StatusCreated, result)
}

func (h *handler) TransferBatch(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}

	var req TransferBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	result, err := h.service.TransferBatch(c.Request.Context(), id, req.NewOwner)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *handler) UpdateMetadata(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}

	var req UpdateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if req.Metadata == nil {
		result, err := h.service.UpdateMetadata(ctx, id, req.MetadataRef)
		if err != nil {
			respondLedgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	doc, err := metadata.Build(*req.Metadata, req.Image, h.clock.Now())
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	result, err := h.service.UpdateMetadataDocument(ctx, id, doc)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HealthCheck returns the health status of the API and the deployment it resolved
func (h *handler) HealthCheck(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Service: serviceName}

	deployment, err := h.service.Chain(c.Request.Context())
	if err != nil {
		logger.WarnCtx(c.Request.Context(), "Health check could not resolve the ledger deployment", zap.Error(err))
		resp.Status = "degraded"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	resp.Chain = deployment.Chain
	resp.Contract = deployment.ContractAddress.Hex()
	if account := h.service.Account(); !domain.IsZeroAddress(account) {
		resp.Account = account.Hex()
	}

	c.JSON(http.StatusOK, resp)
}
