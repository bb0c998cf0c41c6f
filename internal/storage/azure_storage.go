package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	apperrors "go-optical-measure/internal/errors"
)

// AzureBlobHostSuffix identifies Azure Blob Storage endpoints
const AzureBlobHostSuffix = ".blob.core.windows.net"

// AzureBlobFetcher downloads images from one storage account with a shared key
type AzureBlobFetcher struct {
	client   *azblob.Client
	account  string
	maxBytes int64
}

// NewAzureStorage creates a fetcher for accountName
func NewAzureStorage(accountName, accountKey string, maxBytes int64) (*AzureBlobFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s%s", accountName, AzureBlobHostSuffix),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &AzureBlobFetcher{client: client, account: strings.ToLower(accountName), maxBytes: maxBytes}, nil
}

// Account returns the storage account name
func (s *AzureBlobFetcher) Account() string {
	return s.account
}

// Fetch downloads the blob addressed by blobURL
func (s *AzureBlobFetcher) Fetch(ctx context.Context, blobURL string) ([]byte, error) {
	container, blob, err := BlobLocation(blobURL)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewTimeoutError("blob download did not finish in time", err)
		}
		return nil, apperrors.NewNetworkError("blob download failed", err)
	}
	body := resp.Body
	defer body.Close()

	return readLimited(body, s.maxBytes)
}

// BlobLocation extracts the container and blob name from a blob URL. Both
// https://acct.blob.core.windows.net/container/path/to/blob and the legacy
// https://acct.blob.core.windows.net/container?blob=path/to/blob forms are accepted.
func BlobLocation(blobURL string) (container, blob string, err error) {
	parsed, err := url.Parse(blobURL)
	if err != nil {
		return "", "", apperrors.NewValidationError("invalid blob URL", err)
	}

	if name := parsed.Query().Get("blob"); name != "" {
		container = strings.Trim(parsed.Path, "/")
		blob = name
	} else {
		parts, err := azblob.ParseURL(blobURL)
		if err != nil {
			return "", "", apperrors.NewValidationError("invalid blob URL", err)
		}
		container, blob = parts.ContainerName, parts.BlobName
	}

	if container == "" || blob == "" {
		return "", "", apperrors.NewValidationError("blob URL must name a container and a blob", nil)
	}
	return container, blob, nil
}

// IsAzureBlobHost reports whether host is an Azure Blob Storage endpoint
func IsAzureBlobHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), AzureBlobHostSuffix)
}

// AccountFromHost returns the storage account of an Azure Blob host
func AccountFromHost(host string) string {
	host = strings.ToLower(host)
	if !IsAzureBlobHost(host) {
		return ""
	}
	return strings.TrimSuffix(host, AzureBlobHostSuffix)
}
