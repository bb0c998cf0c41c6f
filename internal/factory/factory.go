package factory

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"go-optical-measure/internal/config"
	"go-optical-measure/internal/landmark"
	"go-optical-measure/internal/repository"
	"go-optical-measure/internal/storage"
	"go-optical-measure/pkg/validation"
)

// StorageType represents different types of image sources
type StorageType string

const (
	// HTTPStorage for plain HTTP(S) image URLs
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure Blob Storage URLs of the configured account
	AzureStorage StorageType = "azure"
)

// ProviderFactory creates landmark providers
type ProviderFactory interface {
	CreateProvider(strategy landmark.Strategy) (landmark.Provider, error)
}

// StorageFactory creates image sources
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ImageSource, error)
}

type providerFactory struct {
	manifestPath string
	client       *http.Client
}

// NewProviderFactory creates a provider factory. manifestPath is only used by
// the model strategy.
func NewProviderFactory(manifestPath string, client *http.Client) ProviderFactory {
	return &providerFactory{manifestPath: manifestPath, client: client}
}

// CreateProvider creates a provider for the given strategy
func (f *providerFactory) CreateProvider(strategy landmark.Strategy) (landmark.Provider, error) {
	switch strategy {
	case landmark.StrategyModel:
		if f.manifestPath == "" {
			return nil, fmt.Errorf("model strategy requires a manifest path")
		}
		return landmark.NewModelProvider(f.manifestPath, f.client), nil
	case landmark.StrategyHeuristic:
		return landmark.NewHeuristicProvider(landmark.DefaultHeuristicOptions()), nil
	default:
		return nil, fmt.Errorf("unsupported landmark strategy: %s", strategy)
	}
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates an image source of the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ImageSource, error) {
	switch storageType {
	case HTTPStorage:
		opts := storage.DefaultHTTPFetcherOptions()
		opts.Timeout = f.cfg.ImageFetchTimeout
		return storage.NewHTTPImageFetcher(opts), nil
	case AzureStorage:
		if !f.cfg.AzureEnabled() {
			return nil, fmt.Errorf("azure storage is not configured")
		}
		return storage.NewAzureStorage(f.cfg.AzureStorageAccount, f.cfg.AzureStorageKey, storage.DefaultMaxImageBytes)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	ProviderFactory ProviderFactory
	StorageFactory  StorageFactory
	cfg             *config.Config
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		ProviderFactory: NewProviderFactory(cfg.LandmarkModelManifest, nil),
		StorageFactory:  NewStorageFactory(cfg),
		cfg:             cfg,
	}
}

// CreateProvider creates the configured landmark provider
func (f *ComponentFactory) CreateProvider() (landmark.Provider, error) {
	return f.ProviderFactory.CreateProvider(f.cfg.LandmarkStrategy)
}

// CreateImageRepository wires the HTTP source and, when configured, the blob
// source of the storage account
func (f *ComponentFactory) CreateImageRepository() (repository.ImageRepository, error) {
	httpSource, err := f.StorageFactory.CreateStorage(HTTPStorage)
	if err != nil {
		return nil, err
	}
	repo := repository.NewImageRepository(f.urlValidator(), httpSource)

	if f.cfg.AzureEnabled() {
		blob, err := f.StorageFactory.CreateStorage(AzureStorage)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure storage: %w", err)
		}
		repo.WithBlobSource(strings.ToLower(f.cfg.AzureStorageAccount), blob)
	}
	return repo, nil
}

// urlValidator admits any http(s) host unless ALLOWED_IMAGE_HOSTS is set. A
// restricted list always admits the configured storage account.
func (f *ComponentFactory) urlValidator() *validation.URLValidator {
	if len(f.cfg.AllowedImageHosts) == 0 {
		return validation.NewURLValidator()
	}
	hosts := slices.Clone(f.cfg.AllowedImageHosts)
	if f.cfg.AzureEnabled() {
		hosts = append(hosts, strings.ToLower(f.cfg.AzureStorageAccount)+storage.AzureBlobHostSuffix)
	}
	return validation.NewURLValidatorWithOptions([]string{"http", "https"}, hosts)
}
