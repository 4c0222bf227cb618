package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sparkride/apiserver/internal/services"
	"github.com/sparkride/apiserver/internal/store"
	"github.com/sparkride/apiserver/types"
)

const (
	maxMultipartMemory = 32 << 20
	maxImageBytes      = 10 << 20

	formFieldName     = "name"
	formFieldDesc     = "description"
	formFieldPrice    = "price_per_day"
	formFieldQuantity = "total_quantity"
	formFieldStation  = "station_id"
	formFieldStatus   = "status"
	formFieldImage    = "image"
)

// ImageFile represents an uploaded bike photo.
type ImageFile struct {
	Filename string
	Data     []byte
}

// BikeHandler provides HTTP handlers for the bike inventory.
type BikeHandler struct {
	inventory *services.InventoryService
	images    *services.ImageService
}

// NewBikeHandler constructs a handler with the provided services.
func NewBikeHandler(inventory *services.InventoryService, images *services.ImageService) *BikeHandler {
	return &BikeHandler{
		inventory: inventory,
		images:    images,
	}
}

// BikeRouter registers bike routes on the given router. Reads are public;
// mutations require the admin role and reviews any authenticated user.
func BikeRouter(
	r chi.Router,
	inventory *services.InventoryService,
	images *services.ImageService,
	authMiddleware func(http.Handler) http.Handler,
	adminMiddleware func(http.Handler) http.Handler,
) {
	handler := NewBikeHandler(inventory, images)

	r.Get("/", handler.ListBikes)
	r.With(authMiddleware, adminMiddleware).Post("/", handler.CreateBike)
	r.Route("/{bikeID}", func(r chi.Router) {
		r.Get("/", handler.GetBike)
		r.With(authMiddleware, adminMiddleware).Put("/", handler.UpdateBike)
		r.With(authMiddleware, adminMiddleware).Delete("/", handler.DeleteBike)
		r.With(authMiddleware).Post("/review", handler.AddReview)
	})
}

func (h *BikeHandler) ListBikes(w http.ResponseWriter, r *http.Request) {
	bikes, err := h.inventory.ListBikes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list bikes")
		return
	}
	writeJSON(w, http.StatusOK, bikes)
}

func (h *BikeHandler) GetBike(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "bikeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bike, err := h.inventory.GetBike(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bike not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch bike")
		return
	}
	writeJSON(w, http.StatusOK, bike)
}

func (h *BikeHandler) CreateBike(w http.ResponseWriter, r *http.Request) {
	form, err := parseBikeForm(r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bike := types.Bike{
		Name:          *form.Name,
		TotalQuantity: *form.TotalQuantity,
		StationID:     form.StationID,
	}
	if form.Description != nil {
		bike.Description = *form.Description
	}
	if form.PricePerDay != nil {
		bike.PricePerDay = *form.PricePerDay
	}
	if form.Status != nil {
		bike.Status = *form.Status
	}

	if form.Image != nil {
		key, err := h.images.Upload(r.Context(), form.Image.Filename, form.Image.Data)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to store image")
			return
		}
		bike.Images = []string{key}
	}

	created, err := h.inventory.CreateBike(r.Context(), bike)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create bike")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *BikeHandler) UpdateBike(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "bikeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	form, err := parseBikeForm(r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	update := services.BikeUpdate{
		Name:          form.Name,
		Description:   form.Description,
		PricePerDay:   form.PricePerDay,
		TotalQuantity: form.TotalQuantity,
		StationID:     form.StationID,
		Status:        form.Status,
	}

	var replacedImages []string
	if form.Image != nil {
		current, err := h.inventory.GetBike(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "bike not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to fetch bike")
			return
		}
		replacedImages = current.Images

		key, err := h.images.Upload(r.Context(), form.Image.Filename, form.Image.Data)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to store image")
			return
		}
		// A new upload replaces the existing image list.
		update.Images = []string{key}
	}

	updated, err := h.inventory.UpdateBike(r.Context(), id, update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bike not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update bike")
		return
	}

	// Replaced objects are removed best-effort once the row points at the
	// new key.
	for _, key := range replacedImages {
		_ = h.images.Remove(r.Context(), key)
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *BikeHandler) DeleteBike(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "bikeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.inventory.DeleteBike(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bike not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete bike")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BikeHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "bikeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	review, err := h.inventory.AddReview(r.Context(), types.Review{
		BikeID:  id,
		UserID:  userID,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "bike not found")
		case errors.Is(err, services.ErrInvalidRating):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to add review")
		}
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

// ReviewRequest is the JSON payload for appending a review.
type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// bikeForm is the parsed multipart payload for bike create/update.
// Pointers distinguish absent fields from zero values on partial updates.
type bikeForm struct {
	Name          *string
	Description   *string
	PricePerDay   *int64
	TotalQuantity *int
	StationID     *int
	Status        *string
	Image         *ImageFile
}

func parseBikeForm(r *http.Request, requireCore bool) (bikeForm, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return bikeForm{}, errors.New("invalid multipart form")
	}

	var form bikeForm

	if value := strings.TrimSpace(r.FormValue(formFieldName)); value != "" {
		form.Name = &value
	} else if requireCore {
		return bikeForm{}, errors.New("name is required")
	}

	if value := strings.TrimSpace(r.FormValue(formFieldDesc)); value != "" {
		form.Description = &value
	}

	if raw := strings.TrimSpace(r.FormValue(formFieldPrice)); raw != "" {
		price, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || price < 0 {
			return bikeForm{}, errors.New("invalid price_per_day")
		}
		form.PricePerDay = &price
	}

	if raw := strings.TrimSpace(r.FormValue(formFieldQuantity)); raw != "" {
		quantity, err := strconv.Atoi(raw)
		if err != nil || quantity < 0 {
			return bikeForm{}, errors.New("invalid total_quantity")
		}
		form.TotalQuantity = &quantity
	} else if requireCore {
		return bikeForm{}, errors.New("total_quantity is required")
	}

	if raw := strings.TrimSpace(r.FormValue(formFieldStation)); raw != "" {
		stationID, err := strconv.Atoi(raw)
		if err != nil || stationID < 1 {
			return bikeForm{}, errors.New("invalid station_id")
		}
		form.StationID = &stationID
	}

	if value := strings.TrimSpace(r.FormValue(formFieldStatus)); value != "" {
		if value != types.BikeAvailable && value != types.BikeUnavailable {
			return bikeForm{}, errors.New("invalid status")
		}
		form.Status = &value
	}

	image, err := parseImageFile(r.MultipartForm)
	if err != nil {
		return bikeForm{}, err
	}
	form.Image = image

	return form, nil
}

func parseImageFile(form *multipart.Form) (*ImageFile, error) {
	if form == nil {
		return nil, nil
	}

	files := form.File[formFieldImage]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		return nil, errors.New("only one image is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, errors.New("failed to read image")
	}

	data, err := readFileLimited(file, maxImageBytes)
	_ = file.Close()
	if err != nil {
		return nil, err
	}

	return &ImageFile{
		Filename: fileHeader.Filename,
		Data:     data,
	}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
