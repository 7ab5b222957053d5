package addons

import (
	"context"
	"encoding/json"
	"log/slog"

	minioclient "github.com/StricklySoft/stricklysoft-functions/pkg/clients/minio"
	"github.com/StricklySoft/stricklysoft-functions/pkg/clients/postgres"
	"github.com/StricklySoft/stricklysoft-functions/pkg/dao"
	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// Descriptor section and type names owned by the storage add-on.
const (
	StorageAddonName = "storage"
	SectionStorage   = "Storage"

	TypeMemoryDocumentStore   = "MemoryDocumentStore"
	TypePostgresDocumentStore = "PostgresDocumentStore"
)

// StorageAddon publishes the persistence bindings of a function: the
// document store backing the load and save phases and an optional object
// storage client for blob payloads.
type StorageAddon struct {
	logger *slog.Logger
}

// Compile-time assertion that StorageAddon implements Addon.
var _ Addon = (*StorageAddon)(nil)

// NewStorageAddon creates the storage add-on. A nil logger means
// slog.Default().
func NewStorageAddon(logger *slog.Logger) *StorageAddon {
	if logger == nil {
		logger = slog.Default()
	}
	return &StorageAddon{logger: logger}
}

// Name returns "storage".
func (a *StorageAddon) Name() string { return StorageAddonName }

// Dependencies returns nil; storage does not need the HTTP surface.
func (a *StorageAddon) Dependencies() []string { return nil }

// ConfigParsers returns the parser for the "Storage" descriptor section.
func (a *StorageAddon) ConfigParsers() []ConfigParser {
	return []ConfigParser{&storageSectionParser{}}
}

// AttributeParsers returns the parsers for the built-in document store
// kinds.
func (a *StorageAddon) AttributeParsers() []AttributeParser {
	return []AttributeParser{&documentStoreParser{}}
}

// Initialize prepares the published backends: the Postgres document
// schema is ensured and the blob bucket is created when missing. A
// descriptor with no Storage section leaves the function without
// persistence bindings, which is valid for stateless functions.
func (a *StorageAddon) Initialize(ctx context.Context, reg *Registry) error {
	if store, ok := reg.DocumentStore().(*dao.PostgresStore); ok {
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	if blobs, bucket := reg.BlobClient(); blobs != nil && bucket != "" {
		if err := blobs.EnsureBucket(ctx, bucket); err != nil {
			return err
		}
	}
	return nil
}

// storageSectionParser applies the "Storage" descriptor section.
type storageSectionParser struct{}

func (*storageSectionParser) Section() string { return SectionStorage }

func (*storageSectionParser) Parse(ctx context.Context, raw json.RawMessage, reg *Registry) error {
	var sec struct {
		Documents json.RawMessage `json:"documents,omitempty"`
		Blobs     *struct {
			Endpoint  string `json:"endpoint"`
			AccessKey string `json:"accessKey"`
			SecretKey string `json:"secretKey"`
			Bucket    string `json:"bucket"`
			Region    string `json:"region,omitempty"`
			UseSSL    bool   `json:"useSSL,omitempty"`
		} `json:"blobs,omitempty"`
	}
	if err := json.Unmarshal(raw, &sec); err != nil {
		return sserr.Wrap(err, sserr.CodeValidation,
			"addons: Storage section is not a valid object")
	}

	if len(sec.Documents) > 0 {
		store, err := ParseAs[dao.Store](ctx, reg.Attributes(), sec.Documents, reg)
		if err != nil {
			return err
		}
		reg.SetDocumentStore(store)
	}

	if sec.Blobs != nil {
		if sec.Blobs.Bucket == "" {
			return sserr.Validation("addons: Storage blobs require a \"bucket\"")
		}
		client, err := minioclient.NewClient(ctx, minioclient.Config{
			Endpoint:  sec.Blobs.Endpoint,
			AccessKey: sec.Blobs.AccessKey,
			SecretKey: minioclient.Secret(sec.Blobs.SecretKey),
			Region:    sec.Blobs.Region,
			UseSSL:    sec.Blobs.UseSSL,
		})
		if err != nil {
			return err
		}
		reg.SetBlobClient(client, sec.Blobs.Bucket)
	}
	return nil
}

// documentStoreParser materializes the built-in document store kinds.
type documentStoreParser struct{}

func (*documentStoreParser) Recognizes(typeName string) bool {
	switch typeName {
	case TypeMemoryDocumentStore, TypePostgresDocumentStore:
		return true
	default:
		return false
	}
}

func (*documentStoreParser) Parse(ctx context.Context, raw json.RawMessage, _ *Registry) (any, error) {
	typeName, err := Discriminant(raw)
	if err != nil {
		return nil, err
	}

	var cfg struct {
		URI   string `json:"uri,omitempty"`
		Table string `json:"table,omitempty"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeValidation,
			"addons: %s configuration is not a valid object", typeName)
	}

	switch typeName {
	case TypeMemoryDocumentStore:
		return dao.NewMemoryStore(), nil

	case TypePostgresDocumentStore:
		if cfg.URI == "" {
			return nil, sserr.Validation(
				"addons: PostgresDocumentStore requires a \"uri\"")
		}
		client, err := postgres.NewClient(ctx, postgres.Config{URI: cfg.URI})
		if err != nil {
			return nil, err
		}
		return dao.NewPostgresStore(client, cfg.Table)

	default:
		return nil, sserr.Newf(sserr.CodeConfigurationUnknownType,
			"addons: no parser recognizes configuration type %q", typeName)
	}
}
