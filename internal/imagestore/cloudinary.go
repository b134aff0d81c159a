package imagestore

import (
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// uploadAPI is the part of the Cloudinary upload API the gateway needs.
type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, uploadParams uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// Cloudinary stores images in a Cloudinary folder.
type Cloudinary struct {
	api    uploadAPI
	folder string
}

// NewCloudinary creates a gateway for the given account and folder.
func NewCloudinary(cloudName, apiKey, apiSecret, folder string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("imagestore: cloudinary init: %w", err)
	}
	return &Cloudinary{api: &cld.Upload, folder: folder}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, data []byte, mediaType string) (string, error) {
	res, err := c.api.Upload(ctx, DataURI(data, mediaType), uploader.UploadParams{Folder: c.folder})
	if err != nil {
		return "", fmt.Errorf("imagestore: cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("imagestore: cloudinary upload: %s", res.Error.Message)
	}
	if res.SecureURL == "" {
		return "", fmt.Errorf("imagestore: cloudinary upload returned no URL")
	}
	return res.SecureURL, nil
}

func (c *Cloudinary) Delete(ctx context.Context, ref string) error {
	id, err := AssetID(ref)
	if err != nil {
		return err
	}
	publicID := scoped(c.folder, id)
	res, err := c.api.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("imagestore: cloudinary destroy %s: %w", publicID, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("imagestore: cloudinary destroy %s: %s", publicID, res.Error.Message)
	}
	if res.Result != "ok" {
		return fmt.Errorf("imagestore: cloudinary destroy %s: result %q", publicID, res.Result)
	}
	return nil
}
