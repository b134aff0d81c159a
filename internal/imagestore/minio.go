package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type objectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Minio stores images in an S3-compatible bucket. Object names carry no
// extension so AssetID recovers them from the public URL.
type Minio struct {
	client  objectAPI
	bucket  string
	folder  string
	baseURL string
}

// NewMinio connects to an S3-compatible endpoint.
func NewMinio(endpoint, accessKey, secretKey, bucket, folder string, useSSL bool) (*Minio, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("imagestore: minio init: %w", err)
	}
	return &Minio{
		client:  client,
		bucket:  bucket,
		folder:  folder,
		baseURL: strings.TrimSuffix(client.EndpointURL().String(), "/"),
	}, nil
}

func (m *Minio) Upload(ctx context.Context, data []byte, mediaType string) (string, error) {
	name := scoped(m.folder, uuid.NewString())
	_, err := m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: mediaType})
	if err != nil {
		return "", fmt.Errorf("imagestore: minio put %s: %w", name, err)
	}
	return m.baseURL + "/" + m.bucket + "/" + name, nil
}

func (m *Minio) Delete(ctx context.Context, ref string) error {
	id, err := AssetID(ref)
	if err != nil {
		return err
	}
	name := scoped(m.folder, id)
	if err := m.client.RemoveObject(ctx, m.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("imagestore: minio remove %s: %w", name, err)
	}
	return nil
}
