package addons

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-functions/pkg/config"
	"github.com/StricklySoft/stricklysoft-functions/pkg/dao"
	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// bootstrapStorage runs a bootstrap with only the storage add-on
// registered.
func bootstrapStorage(t *testing.T, descriptor string) (*Registry, error) {
	t.Helper()
	m := NewManager(nil)
	require.NoError(t, m.Register(NewStorageAddon(nil)))
	desc, err := config.ParseDescriptor([]byte(descriptor))
	require.NoError(t, err)
	return m.Bootstrap(context.Background(), desc)
}

func TestStorageAddon_MemoryDocumentStore(t *testing.T) {
	t.Parallel()

	reg, err := bootstrapStorage(t, `{
		"Storage": {
			"documents": {"_type": "MemoryDocumentStore"}
		}
	}`)
	require.NoError(t, err)

	store := reg.DocumentStore()
	require.NotNil(t, store)
	assert.IsType(t, &dao.MemoryStore{}, store)

	// The published store is usable right away.
	doc := &dao.Document{Collection: "orders", ID: "o-1", Body: json.RawMessage(`{}`)}
	require.NoError(t, store.Put(context.Background(), doc))
}

func TestStorageAddon_NoSectionLeavesBindingsEmpty(t *testing.T) {
	t.Parallel()

	reg, err := bootstrapStorage(t, `{}`)
	require.NoError(t, err)
	assert.Nil(t, reg.DocumentStore())

	blobs, bucket := reg.BlobClient()
	assert.Nil(t, blobs)
	assert.Empty(t, bucket)
}

func TestStorageAddon_UnknownDocumentStoreType(t *testing.T) {
	t.Parallel()

	_, err := bootstrapStorage(t, `{
		"Storage": {
			"documents": {"_type": "GraphDocumentStore"}
		}
	}`)
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeConfigurationUnknownType))
	assert.Contains(t, err.Error(), "GraphDocumentStore")
}

func TestStorageAddon_PostgresStoreRequiresURI(t *testing.T) {
	t.Parallel()

	_, err := bootstrapStorage(t, `{
		"Storage": {
			"documents": {"_type": "PostgresDocumentStore"}
		}
	}`)
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeValidation))
	assert.Contains(t, err.Error(), "uri")
}

func TestStorageAddon_BlobsRequireBucket(t *testing.T) {
	t.Parallel()

	_, err := bootstrapStorage(t, `{
		"Storage": {
			"blobs": {"endpoint": "localhost:9000", "accessKey": "ak", "secretKey": "sk"}
		}
	}`)
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeValidation))
	assert.Contains(t, err.Error(), "bucket")
}
