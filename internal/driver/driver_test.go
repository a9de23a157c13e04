package driver

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/internal/config"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/internal/logging"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
)

func testConfig(t *testing.T, outDir string) *config.PipelineConfig {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Destinations.File = &config.FileDestinationConfig{Directory: outDir, Suffix: ".xml"}
	cfg.FilterRules = []config.FilterRuleConfig{
		{Attr: "registrar", Value: "urn:federation:a", Authority: "urn:federation:a"},
	}
	return cfg
}

func writeSourceFile(t *testing.T, dir, name, entityID, registrar string) {
	t.Helper()
	content := `<EntityDescriptor entityID="` + entityID + `" registrar="` + registrar + `"/>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestAggregator_RunFiltersAndSerializesToFiles(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	writeSourceFile(t, srcDir, "a.xml", "urn:a", "urn:federation:a")
	writeSourceFile(t, srcDir, "b.xml", "urn:b", "urn:federation:other")

	cfg := testConfig(t, outDir)

	agg, err := New(context.Background(), cfg, logging.New(cfg.App))
	require.NoError(t, err)
	defer agg.Shutdown(context.Background())

	out, err := agg.Run(context.Background(), srcDir)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "urn:a", out[0].IDs()[0].Value())

	written, err := os.ReadFile(filepath.Join(outDir, "urn_a.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(written), `entityID="urn:a"`)
}

// writeKeyPair generates a throwaway self-signed RSA key pair and writes
// both PEM files into dir, returning their paths.
func writeKeyPair(t *testing.T, dir string) (keyFile, certFile string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	keyFile = filepath.Join(dir, "key.pem")
	certFile = filepath.Join(dir, "cert.pem")

	keyBytes, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyBytes}), 0o600))
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	return keyFile, certFile
}

func TestAggregator_RunSignsItemsWhenSigningEnabled(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	keyDir := t.TempDir()
	writeSourceFile(t, srcDir, "a.xml", "urn:a", "urn:federation:a")

	keyFile, certFile := writeKeyPair(t, keyDir)

	cfg := testConfig(t, outDir)
	cfg.Signing.Enabled = true
	cfg.Signing.KeyFile = keyFile
	cfg.Signing.CertFile = certFile

	agg, err := New(context.Background(), cfg, logging.New(cfg.App))
	require.NoError(t, err)
	defer agg.Shutdown(context.Background())

	out, err := agg.Run(context.Background(), srcDir)
	require.NoError(t, err)
	require.Len(t, out, 1)

	signed := false
	for _, s := range meta.All[meta.StatusMetadata](out[0].Metadata()) {
		if s.StageID() == "stage.signing.metadata-aggregator" {
			signed = true
		}
	}
	assert.True(t, signed, "expected a signing InfoStatus on the output item")
}

func TestAggregator_RunPrunesBlockedElementsWhenEnabled(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	content := `<EntityDescriptor entityID="urn:a" registrar="urn:federation:a"><Extensions><Foo/></Extensions><KeyDescriptor/></EntityDescriptor>`
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.xml"), []byte(content), 0o600))

	cfg := testConfig(t, outDir)
	cfg.Prune.Enabled = true
	cfg.Prune.BlockedElements = []string{"Extensions"}

	agg, err := New(context.Background(), cfg, logging.New(cfg.App))
	require.NoError(t, err)
	defer agg.Shutdown(context.Background())

	out, err := agg.Run(context.Background(), srcDir)
	require.NoError(t, err)
	require.Len(t, out, 1)

	for _, child := range out[0].Payload().Children {
		assert.NotEqual(t, "Extensions", child.Name)
	}

	written, err := os.ReadFile(filepath.Join(outDir, "urn_a.xml"))
	require.NoError(t, err)
	assert.NotContains(t, string(written), "Extensions")
}

func TestAggregator_RunMergesAdditionalSourceDirectoriesByItemID(t *testing.T) {
	primaryDir := t.TempDir()
	extraDir := t.TempDir()
	outDir := t.TempDir()

	writeSourceFile(t, primaryDir, "a.xml", "urn:a", "urn:federation:a")
	writeSourceFile(t, extraDir, "dup.xml", "urn:a", "urn:federation:a")
	writeSourceFile(t, extraDir, "c.xml", "urn:c", "urn:federation:a")

	cfg := testConfig(t, outDir)
	cfg.Source.Directory = primaryDir
	cfg.Source.AdditionalDirectories = []string{extraDir}

	agg, err := New(context.Background(), cfg, logging.New(cfg.App))
	require.NoError(t, err)
	defer agg.Shutdown(context.Background())

	out, err := agg.Run(context.Background(), primaryDir)
	require.NoError(t, err)

	var ids []string
	for _, it := range out {
		ids = append(ids, it.IDs()[0].Value())
	}
	assert.ElementsMatch(t, []string{"urn:a", "urn:c"}, ids, "urn:a from the extra directory is a duplicate and dropped")
}

func TestAggregator_MissingSourceDirIsAnError(t *testing.T) {
	outDir := t.TempDir()
	cfg := testConfig(t, outDir)

	agg, err := New(context.Background(), cfg, logging.New(cfg.App))
	require.NoError(t, err)
	defer agg.Shutdown(context.Background())

	_, err = agg.Run(context.Background(), filepath.Join(outDir, "missing"))
	assert.Error(t, err)
}
