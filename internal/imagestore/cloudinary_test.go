package imagestore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUploadAPI struct {
	mock.Mock
}

func (m *mockUploadAPI) Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	args := m.Called(ctx, file, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*uploader.UploadResult), args.Error(1)
}

func (m *mockUploadAPI) Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*uploader.DestroyResult), args.Error(1)
}

func TestCloudinary_UploadSendsDataURIToFolder(t *testing.T) {
	m := new(mockUploadAPI)
	gw := &Cloudinary{api: m, folder: "soft-toys"}

	m.On("Upload", mock.Anything, mock.MatchedBy(func(file interface{}) bool {
		s, ok := file.(string)
		return ok && strings.HasPrefix(s, "data:image/jpeg;base64,")
	}), uploader.UploadParams{Folder: "soft-toys"}).
		Return(&uploader.UploadResult{SecureURL: "https://res.cloudinary.com/demo/image/upload/v1/soft-toys/abc.jpg"}, nil).Once()

	ref, err := gw.Upload(context.Background(), []byte{0xff, 0xd8}, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/v1/soft-toys/abc.jpg", ref)
	m.AssertExpectations(t)
}

func TestCloudinary_UploadHostError(t *testing.T) {
	m := new(mockUploadAPI)
	gw := &Cloudinary{api: m, folder: "soft-toys"}

	m.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Return(&uploader.UploadResult{Error: api.ErrorResp{Message: "Invalid image file"}}, nil).Once()

	_, err := gw.Upload(context.Background(), []byte("x"), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid image file")
}

func TestCloudinary_UploadTransportError(t *testing.T) {
	m := new(mockUploadAPI)
	gw := &Cloudinary{api: m, folder: "soft-toys"}

	m.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: timeout")).Once()

	_, err := gw.Upload(context.Background(), []byte("x"), "image/png")
	require.Error(t, err)
}

func TestCloudinary_DeleteScopesPublicIDToFolder(t *testing.T) {
	m := new(mockUploadAPI)
	gw := &Cloudinary{api: m, folder: "soft-toys"}

	m.On("Destroy", mock.Anything, uploader.DestroyParams{PublicID: "soft-toys/abc"}).
		Return(&uploader.DestroyResult{Result: "ok"}, nil).Once()

	err := gw.Delete(context.Background(), "https://res.cloudinary.com/demo/image/upload/v1/soft-toys/abc.jpg")
	require.NoError(t, err)
	m.AssertExpectations(t)
}

func TestCloudinary_DeleteNotFoundResult(t *testing.T) {
	m := new(mockUploadAPI)
	gw := &Cloudinary{api: m, folder: "soft-toys"}

	m.On("Destroy", mock.Anything, mock.Anything).Return(&uploader.DestroyResult{Result: "not found"}, nil).Once()

	err := gw.Delete(context.Background(), "https://res.cloudinary.com/demo/image/upload/v1/soft-toys/abc.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCloudinary_DeleteUnrecognizedURLSkipsHost(t *testing.T) {
	m := new(mockUploadAPI)
	gw := &Cloudinary{api: m, folder: "soft-toys"}

	err := gw.Delete(context.Background(), "https://res.cloudinary.com/")
	require.ErrorIs(t, err, ErrUnrecognizedURL)
	m.AssertNotCalled(t, "Destroy", mock.Anything, mock.Anything)
}
