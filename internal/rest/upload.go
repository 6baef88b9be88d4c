package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dfryer1193/storefront/shop/domain"
	"github.com/dfryer1193/storefront/shop/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	imageField     = "image"
	MaxUploadBytes = 5 << 20

	// room for the text fields and multipart framing around the file
	formOverheadBytes = 64 << 10

	uploadKey = "upload"
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// UploadImage stores the "image" file of a multipart request in blobs and hands the
// result to the next handler. Oversized or non-image files are rejected with 400
// before the handler runs. A request without the field passes through.
func UploadImage(blobs domain.BlobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes+formOverheadBytes)

		fh, err := c.FormFile(imageField)
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondError(c, tooLargeError())
			return
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			c.Next()
			return
		case err != nil:
			respondError(c, domain.NewValidationError("Invalid upload", imageField, "Could not read the uploaded file"))
			return
		}

		if fh.Size > MaxUploadBytes {
			respondError(c, tooLargeError())
			return
		}

		file, err := fh.Open()
		if err != nil {
			respondError(c, fmt.Errorf("failed to open uploaded file: %w", err))
			return
		}
		defer file.Close()

		mtype, err := mimetype.DetectReader(file)
		if err != nil {
			respondError(c, fmt.Errorf("failed to sniff uploaded file: %w", err))
			return
		}
		if !mimetype.EqualsAny(mtype.String(), allowedImageTypes...) {
			log.Debug().Str("filename", fh.Filename).Str("detected", mtype.String()).Msg("Rejected upload type")
			respondError(c, domain.NewValidationError("Only image files are allowed", imageField,
				"Allowed types are JPEG, PNG, GIF and WEBP"))
			return
		}

		if _, err := file.Seek(0, io.SeekStart); err != nil {
			respondError(c, fmt.Errorf("failed to rewind uploaded file: %w", err))
			return
		}

		upload, err := blobs.Put(c.Request.Context(), uploadName(mtype.Extension()), file, mtype.String())
		if err != nil {
			respondError(c, &domain.StorageError{Op: "store upload", Err: err})
			return
		}

		log.Debug().Str("image", upload.Path).Int64("size", upload.Size).Msg("Stored upload")
		c.Set(uploadKey, upload)
		c.Next()
	}
}

// uploadFrom returns the upload stored by UploadImage, or nil
func uploadFrom(c *gin.Context) *domain.Upload {
	v, ok := c.Get(uploadKey)
	if !ok {
		return nil
	}
	upload, _ := v.(*domain.Upload)
	return upload
}

func uploadName(ext string) string {
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
}

func tooLargeError() error {
	return domain.NewValidationError("File too large", imageField,
		fmt.Sprintf("Image must be at most %d MB", MaxUploadBytes>>20))
}

// serveUpload streams a stored image from whichever blob store is configured
func serveUpload(blobs domain.BlobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := storage.RefPrefix + c.Param("name")

		body, info, err := blobs.Open(c.Request.Context(), ref)
		if err != nil {
			respondError(c, err)
			return
		}
		defer body.Close()

		contentType := info.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		c.DataFromReader(http.StatusOK, info.Size, contentType, body, map[string]string{
			"Cache-Control":          "public, max-age=86400",
			"X-Content-Type-Options": "nosniff",
		})
	}
}
