package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/domain/valueobject"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/http/handlers/common"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/service"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/storage"
)

// Разрешённые типы файлов-доказательств
var allowedEvidenceMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

var allowedEvidenceExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".pdf":  true,
}

// ReturnHandler — HTTP слой арбитража возвратов.
type ReturnHandler struct {
	returns *service.ReturnService
	storage *storage.EvidenceStorage
}

func NewReturnHandler(returns *service.ReturnService, storage *storage.EvidenceStorage) *ReturnHandler {
	return &ReturnHandler{returns: returns, storage: storage}
}

// Create обрабатывает POST /returns.
func (h *ReturnHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		OrderID         *uuid.UUID `json:"order_id"`
		BookingID       *uuid.UUID `json:"booking_id"`
		Reason          string     `json:"reason" binding:"required"`
		Description     string     `json:"description"`
		RequestedAmount string     `json:"requested_amount" binding:"required"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.HandleError(c, err)
		return
	}

	amount, err := valueobject.ParseAmount(req.RequestedAmount)
	if err != nil {
		common.HandleError(c, apperror.New(apperror.ErrCodeValidation, "некорректная сумма возврата"))
		return
	}

	ret, err := h.returns.CreateReturn(c.Request.Context(), userID, service.CreateReturnParams{
		OrderID:         req.OrderID,
		BookingID:       req.BookingID,
		Reason:          req.Reason,
		Description:     req.Description,
		RequestedAmount: amount,
	})
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ret)
}

// Get обрабатывает GET /returns/:id.
func (h *ReturnHandler) Get(c *gin.Context) {
	userID, role, returnID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	ret, err := h.returns.GetReturn(c.Request.Context(), returnID, userID, role)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ret)
}

// List обрабатывает GET /returns.
func (h *ReturnHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	limit, offset := common.GetPagination(c)
	returns, err := h.returns.ListReturns(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"returns": returns})
}

// SellerRespond обрабатывает POST /returns/:id/seller-response.
func (h *ReturnHandler) SellerRespond(c *gin.Context) {
	userID, _, returnID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req struct {
		Approve        bool    `json:"approve"`
		ProposedAmount *string `json:"proposed_amount"`
		Response       *string `json:"response"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.HandleError(c, err)
		return
	}

	params := service.SellerResponseParams{
		Approve:  req.Approve,
		Response: req.Response,
	}
	if req.ProposedAmount != nil {
		amount, err := valueobject.ParseAmount(*req.ProposedAmount)
		if err != nil {
			common.HandleError(c, apperror.New(apperror.ErrCodeValidation, "некорректная встречная сумма"))
			return
		}
		params.ProposedAmount = &amount
	}

	ret, err := h.returns.SellerRespond(c.Request.Context(), userID, returnID, params)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ret)
}

// AdminDecide обрабатывает POST /returns/:id/decision.
func (h *ReturnHandler) AdminDecide(c *gin.Context) {
	_, _, returnID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req struct {
		Approve bool    `json:"approve"`
		Amount  *string `json:"amount"`
		Notes   *string `json:"notes"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.HandleError(c, err)
		return
	}

	params := service.AdminDecisionParams{
		Approve: req.Approve,
		Notes:   req.Notes,
	}
	if req.Amount != nil {
		amount, err := valueobject.ParseAmount(*req.Amount)
		if err != nil {
			common.HandleError(c, apperror.New(apperror.ErrCodeValidation, "некорректная сумма возврата"))
			return
		}
		params.Amount = &amount
	}

	ret, err := h.returns.AdminDecide(c.Request.Context(), returnID, params)
	if err != nil {
		// Возврат по выпущенной транзакции помечен, но деньги не
		// двигались: клиенту отдаём и состояние, и ошибку.
		if apperror.Is(err, apperror.ErrCodePostReleaseRefund) && ret != nil {
			c.JSON(http.StatusConflict, gin.H{
				"return": ret,
				"error": gin.H{
					"code":    apperror.ErrCodePostReleaseRefund,
					"message": "транзакция уже выпущена продавцу, возврат требует ручного удержания",
				},
			})
			return
		}
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ret)
}

// UploadEvidence обрабатывает POST /returns/:id/evidence.
func (h *ReturnHandler) UploadEvidence(c *gin.Context) {
	userID, _, returnID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "поле file обязательно"})
		return
	}
	if file.Size == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "файл не может быть пустым"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedEvidenceExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неподдерживаемый формат файла"})
		return
	}

	src, err := file.Open()
	if err != nil {
		common.HandleError(c, err)
		return
	}
	defer src.Close()

	// Проверяем магические байты, а не только расширение.
	buffer := make([]byte, 512)
	n, err := src.Read(buffer)
	if err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "не удалось прочитать файл"})
		return
	}

	kind, err := filetype.Match(buffer[:n])
	if err != nil || kind == filetype.Unknown {
		c.JSON(http.StatusBadRequest, gin.H{"error": "не удалось определить тип файла"})
		return
	}

	contentType := kind.MIME.Value
	if !allowedEvidenceMimeTypes[contentType] {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("неподдерживаемый тип файла (%s)", contentType),
		})
		return
	}

	if seeker, ok := src.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			common.HandleError(c, err)
			return
		}
	}

	relativePath, size, err := h.storage.Save(c.Request.Context(), returnID, file.Filename, src)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	evidence := &models.ReturnEvidence{
		ReturnRequestID: returnID,
		FilePath:        filepath.ToSlash(relativePath),
		ContentType:     contentType,
		SizeBytes:       size,
	}
	if err := h.returns.AddEvidence(c.Request.Context(), userID, evidence); err != nil {
		_ = h.storage.Delete(c.Request.Context(), relativePath)
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, evidence)
}

// ListEvidence обрабатывает GET /returns/:id/evidence.
func (h *ReturnHandler) ListEvidence(c *gin.Context) {
	userID, role, returnID, ok := h.actorAndID(c)
	if !ok {
		return
	}

	if _, err := h.returns.GetReturn(c.Request.Context(), returnID, userID, role); err != nil {
		common.HandleError(c, err)
		return
	}

	evidence, err := h.returns.ListEvidence(c.Request.Context(), returnID)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"evidence": evidence})
}

func (h *ReturnHandler) actorAndID(c *gin.Context) (uuid.UUID, valueobject.Role, uuid.UUID, bool) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return uuid.Nil, "", uuid.Nil, false
	}

	roleStr, err := common.CurrentUserRole(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return uuid.Nil, "", uuid.Nil, false
	}

	returnID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.HandleError(c, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректный идентификатор возврата"))
		return uuid.Nil, "", uuid.Nil, false
	}

	return userID, valueobject.Role(roleStr), returnID, true
}
