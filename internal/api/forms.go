package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"storefront-catalog/internal/catalog"
	"storefront-catalog/internal/domain"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

var (
	imageFields    = [domain.MaxImages]string{"image1", "image2", "image3", "image4", "image5"}
	existingFields = [domain.MaxImages]string{"existingImage1", "existingImage2", "existingImage3", "existingImage4", "existingImage5"}
)

func (h *HTTPHandler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return false
	}
	return true
}

// parseProductForm reads the product fields, image1..image5 and
// existingImage1..existingImage5 from a multipart request.
func (h *HTTPHandler) parseProductForm(w http.ResponseWriter, r *http.Request) (catalog.UpdateInput, bool) {
	var in catalog.UpdateInput
	if !h.parseMultipart(w, r) {
		return in, false
	}

	in.Name = r.FormValue("name")
	in.Intro = r.FormValue("intro")
	in.Description = r.FormValue("description")
	in.Price = r.FormValue("price")
	in.Category = r.FormValue("category")
	in.Published = parseFormBool(r.FormValue("published"))
	in.SoldOut = parseFormBool(r.FormValue("soldOut"))

	for _, field := range imageFields {
		up, err := readUpload(r, field)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read %s: %v", field, err))
			return in, false
		}
		if up != nil {
			in.Images = append(in.Images, *up)
		}
	}
	for _, field := range existingFields {
		if ref := strings.TrimSpace(r.FormValue(field)); ref != "" {
			in.ExistingImages = append(in.ExistingImages, ref)
		}
	}
	return in, true
}

// readUpload returns the file posted under field, or nil if there is none.
// The media type is sniffed when the client did not declare a useful one.
func readUpload(r *http.Request, field string) (*catalog.Upload, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, nil
	}
	fh := r.MultipartForm.File[field][0]
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	mediaType := fh.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = mimetype.Detect(data).String()
	}
	return &catalog.Upload{Field: field, Filename: fh.Filename, MediaType: mediaType, Data: data}, nil
}
